package discovery

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"lanwatch/internal/domain"
)

// Sink receives the observations producers synthesize. Implemented by the
// device service; producers never touch device identity directly.
type Sink interface {
	Ingest(ctx context.Context, obs domain.Observation) (*domain.Device, error)
}

// Scanner actively sweeps attached subnets: ping every host, look up MACs
// in the neighbor cache, probe the configured TCP ports on responders,
// and issue an SSDP discovery broadcast. Runs on a fixed interval with
// settings re-read each cycle so updates apply live.
type Scanner struct {
	settings *SettingsStore
	sink     Sink
	pinger   *Pinger
	log      zerolog.Logger

	nmapOnce sync.Once
	nmapOK   bool
}

// NewScanner creates the active scanner.
func NewScanner(settings *SettingsStore, sink Sink, log zerolog.Logger) *Scanner {
	return &Scanner{
		settings: settings,
		sink:     sink,
		pinger:   NewPinger(settings.Get().TCPPorts),
		log:      log.With().Str("component", "scanner").Logger(),
	}
}

// Run executes scan cycles until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	for {
		settings := s.settings.Get()
		s.scanOnce(ctx, settings)

		select {
		case <-time.After(time.Duration(settings.ScanIntervalSeconds) * time.Second):
		case <-ctx.Done():
			s.log.Debug().Msg("scanner stopped")
			return
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context, settings Settings) {
	started := time.Now()

	subnets, err := LocalSubnets()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to enumerate subnets")
		return
	}

	var alive []string
	for _, subnet := range subnets {
		if ctx.Err() != nil {
			return
		}
		alive = append(alive, s.sweepSubnet(ctx, subnet, settings)...)
	}

	arp := ARPTable()
	for _, ip := range alive {
		s.ingest(ctx, domain.Observation{
			Source:     "active-ping",
			IPAddress:  ip,
			MACAddress: arp[ip],
		})
	}

	s.probePorts(ctx, alive, arp, settings)

	if settings.SSDPEnabled {
		s.ssdpSweep(ctx)
	}

	s.log.Info().
		Int("subnets", len(subnets)).
		Int("alive", len(alive)).
		Dur("elapsed", time.Since(started)).
		Msg("scan cycle complete")
}

// sweepSubnet pings every host in the subnet, bounded by the configured
// concurrency. Oversized subnets are skipped entirely.
func (s *Scanner) sweepSubnet(ctx context.Context, subnet *net.IPNet, settings Settings) []string {
	if settings.NmapEnabled {
		s.nmapOnce.Do(func() {
			s.nmapOK = nmapAvailable(ctx)
			if !s.nmapOK {
				s.log.Warn().Msg("nmap enabled but binary not usable, using built-in pinger")
			}
		})
		if s.nmapOK {
			ips, err := nmapSweep(ctx, subnet.String())
			if err == nil {
				return ips
			}
			s.log.Warn().Err(err).Str("subnet", subnet.String()).Msg("nmap sweep failed, using built-in pinger")
		}
	}

	hosts := HostAddresses(subnet, settings.MaxHostsPerSubnet)
	if hosts == nil {
		s.log.Debug().Str("subnet", subnet.String()).Msg("subnet skipped as oversized")
		return nil
	}

	timeout := time.Duration(settings.PingTimeoutMS) * time.Millisecond
	sem := semaphore.NewWeighted(int64(settings.Concurrency))

	var mu sync.Mutex
	var alive []string
	var wg sync.WaitGroup

	for _, ip := range hosts {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer sem.Release(1)
			if s.pinger.Ping(ctx, ip, timeout) {
				mu.Lock()
				alive = append(alive, ip)
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()
	return alive
}

// probePorts connects to each configured port on every live host and
// records one service-hint observation per open port.
func (s *Scanner) probePorts(ctx context.Context, alive []string, arp map[string]string, settings Settings) {
	timeout := time.Duration(settings.TCPTimeoutMS) * time.Millisecond
	sem := semaphore.NewWeighted(int64(settings.Concurrency))
	dialer := net.Dialer{Timeout: timeout}

	type hit struct {
		ip   string
		port int
	}
	var mu sync.Mutex
	var hits []hit
	var wg sync.WaitGroup

	for _, ip := range alive {
		for _, port := range settings.TCPPorts {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(ip string, port int) {
				defer wg.Done()
				defer sem.Release(1)
				conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
				if err != nil {
					return
				}
				conn.Close()
				mu.Lock()
				hits = append(hits, hit{ip: ip, port: port})
				mu.Unlock()
			}(ip, port)
		}
	}
	wg.Wait()

	for _, h := range hits {
		s.ingest(ctx, domain.Observation{
			Source:      "active-tcp",
			IPAddress:   h.ip,
			MACAddress:  arp[h.ip],
			ServiceHint: "tcp/" + strconv.Itoa(h.port),
		})
	}
}

func (s *Scanner) ssdpSweep(ctx context.Context) {
	observations, err := SSDPProbe(ctx, 3*time.Second)
	if err != nil {
		s.log.Warn().Err(err).Msg("ssdp probe failed")
		return
	}
	for _, obs := range observations {
		s.ingest(ctx, obs)
	}
}

// ingest hands one observation to the sink; per-item failures are logged
// and the sweep continues.
func (s *Scanner) ingest(ctx context.Context, obs domain.Observation) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.sink.Ingest(ctx, obs); err != nil {
		s.log.Warn().Err(err).Str("source", obs.Source).Str("ip", obs.IPAddress).Msg("failed to ingest observation")
	}
}
