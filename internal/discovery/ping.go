package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// Pinger probes host liveness. ICMP echo is attempted first over an
// unprivileged datagram socket, then over a raw socket when the process
// has the privilege; when neither socket can be opened the probe falls
// back to TCP connects against the configured port list, so the scanner
// still works in containers without NET_RAW.
type Pinger struct {
	fallbackPorts []int
	seq           atomic.Uint32
}

// NewPinger creates a pinger whose TCP fallback tries ports in order.
func NewPinger(fallbackPorts []int) *Pinger {
	ports := fallbackPorts
	if len(ports) == 0 {
		ports = []int{80, 443, 22, 23}
	}
	return &Pinger{fallbackPorts: ports}
}

// Ping reports whether the host answered within timeout.
func (p *Pinger) Ping(ctx context.Context, ip string, timeout time.Duration) bool {
	if alive, ok := p.icmpEcho(ctx, ip, timeout); ok {
		return alive
	}
	return p.tcpProbe(ctx, ip, timeout)
}

// icmpEcho sends one echo request and waits for any reply from the
// target. The second return is false when no ICMP socket could be opened.
func (p *Pinger) icmpEcho(ctx context.Context, ip string, timeout time.Duration) (alive, ok bool) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	var dst net.Addr = &net.UDPAddr{IP: net.ParseIP(ip)}
	if err != nil {
		conn, err = icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		dst = &net.IPAddr{IP: net.ParseIP(ip)}
		if err != nil {
			return false, false
		}
	}
	defer conn.Close()

	seq := p.seq.Add(1)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  int(seq) & 0xffff,
			Data: []byte("lanwatch"),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return false, true
	}
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return false, true
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, hasDeadline := ctx.Deadline(); hasDeadline && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return false, true
		}
		if peerIP(peer) != ip {
			continue
		}
		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil {
			continue
		}
		if reply.Type == ipv4.ICMPTypeEchoReply {
			return true, true
		}
	}
}

// tcpProbe treats any completed or refused connection as proof of life; a
// RST still means something answered at that address.
func (p *Pinger) tcpProbe(ctx context.Context, ip string, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	for _, port := range p.fallbackPorts {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return true
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func peerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.IPAddr:
		return a.IP.String()
	default:
		return addr.String()
	}
}
