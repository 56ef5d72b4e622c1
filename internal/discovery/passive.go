package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"lanwatch/internal/domain"
)

// passiveRetryBackoff is how long a listener waits after a socket error
// before rebinding.
const passiveRetryBackoff = 500 * time.Millisecond

// PassiveListener binds one well-known discovery port and turns every
// received datagram into an observation carrying the sender's IP. The
// protocol name doubles as source and type hint; payloads are not parsed.
type PassiveListener struct {
	protocol  string
	port      int
	groupIP   net.IP // nil for broadcast-only protocols
	sink      Sink
	log       zerolog.Logger
}

// Passive listener set: mDNS, LLMNR, and NetBIOS name service.
func NewPassiveListeners(sink Sink, log zerolog.Logger) []*PassiveListener {
	mk := func(protocol string, port int, group string) *PassiveListener {
		var groupIP net.IP
		if group != "" {
			groupIP = net.ParseIP(group)
		}
		return &PassiveListener{
			protocol: protocol,
			port:     port,
			groupIP:  groupIP,
			sink:     sink,
			log:      log.With().Str("component", "passive").Str("protocol", protocol).Logger(),
		}
	}
	return []*PassiveListener{
		mk("mdns", 5353, "224.0.0.251"),
		mk("llmnr", 5355, "224.0.0.252"),
		mk("nbns", 137, ""),
	}
}

// Run listens until ctx is cancelled. Socket errors cause a rebind after
// a short backoff instead of terminating the listener.
func (l *PassiveListener) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			l.log.Warn().Err(err).Msg("listener error, retrying")
			select {
			case <-time.After(passiveRetryBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (l *PassiveListener) listen(ctx context.Context) error {
	conn, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(l.port)))
	if err != nil {
		return err
	}
	defer conn.Close()

	if l.groupIP != nil {
		pc := ipv4.NewPacketConn(conn)
		if err := joinAllInterfaces(pc, l.groupIP); err != nil {
			l.log.Debug().Err(err).Msg("multicast join failed, receiving unicast only")
		}
	}

	// Close the socket when ctx is cancelled to unblock ReadFrom.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, 4096)
	for {
		// Bounded read so a silent network cannot pin the goroutine.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		obs := domain.Observation{
			Source:    l.protocol,
			IPAddress: peerIP(addr),
			TypeHint:  l.protocol,
		}
		if _, err := l.sink.Ingest(ctx, obs); err != nil && ctx.Err() == nil {
			l.log.Warn().Err(err).Str("ip", obs.IPAddress).Msg("failed to ingest observation")
		}
	}
}

// joinAllInterfaces joins the multicast group on every eligible
// interface; joining on at least one is enough.
func joinAllInterfaces(pc *ipv4.PacketConn, group net.IP) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return err
	}

	var lastErr error
	joined := false
	for i := range ifaces {
		iface := &ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
			lastErr = err
			continue
		}
		joined = true
	}
	if !joined && lastErr != nil {
		return lastErr
	}
	return nil
}
