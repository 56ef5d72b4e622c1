package connector

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lanwatch/internal/domain"
)

var fingerprintTitleRe = regexp.MustCompile(`(?is)<title>(.*?)</title>`)

var fingerprintPaths = []string{
	"/",
	"/index.html",
	"/login.htm",
	"/login.html",
	"/cgi-bin/luci",
}

// fingerprintRule matches admin-page content against a vendor signature.
// Rules are checked in order and the best match per gateway wins.
type fingerprintRule struct {
	keywords   []string
	vendor     string
	model      string
	confidence float64
	// connector picks the suggested connector key, which for netgear
	// depends on whether the page mentions orbi.
	connector func(body string) string
}

var fingerprintRules = []fingerprintRule{
	{
		keywords:   []string{"netgear", "nighthawk"},
		vendor:     "Netgear",
		model:      "Nighthawk",
		confidence: 0.75,
		connector: func(body string) string {
			if strings.Contains(body, "orbi") {
				return KeyOrbi
			}
			return KeyNetgear
		},
	},
	{
		keywords:   []string{"tp-link", "tplink", "archer"},
		vendor:     "TP-Link",
		model:      "Archer",
		confidence: 0.75,
		connector:  func(string) string { return KeyTPLink },
	},
	{
		keywords:   []string{"unifi", "ubiquiti"},
		vendor:     "UniFi",
		confidence: 0.75,
		connector:  func(string) string { return KeyUniFi },
	},
	{
		keywords:   []string{"asus", "rt-"},
		vendor:     "Asus",
		confidence: 0.6,
		connector:  func(string) string { return KeyAsus },
	},
	{
		keywords:   []string{"omada"},
		vendor:     "Omada",
		model:      "Omada",
		confidence: 0.6,
		connector:  func(string) string { return KeyOmada },
	},
}

// FingerprintStore holds the latest router fingerprints. Results are
// replaced wholesale each probe cycle.
type FingerprintStore struct {
	mu           sync.RWMutex
	fingerprints []domain.RouterFingerprint
}

func NewFingerprintStore() *FingerprintStore {
	return &FingerprintStore{}
}

func (s *FingerprintStore) Replace(fingerprints []domain.RouterFingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprints = fingerprints
}

func (s *FingerprintStore) All() []domain.RouterFingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RouterFingerprint, len(s.fingerprints))
	copy(out, s.fingerprints)
	return out
}

// Fingerprinter probes default gateways over HTTP and HTTPS looking for
// vendor signatures in their admin pages, to suggest which router
// connector is worth configuring.
type Fingerprinter struct {
	gateways func() []string
	store    *FingerprintStore
	client   *http.Client
	interval time.Duration
	log      zerolog.Logger
}

// NewFingerprinter creates a fingerprinter. The interval is floored at
// one minute; zero uses five minutes.
func NewFingerprinter(gateways func() []string, store *FingerprintStore, interval time.Duration, log zerolog.Logger) *Fingerprinter {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &Fingerprinter{
		gateways: gateways,
		store:    store,
		client: &http.Client{
			Transport: transport,
			Timeout:   2 * time.Second,
		},
		interval: interval,
		log:      log.With().Str("component", "fingerprinter").Logger(),
	}
}

// Run probes until ctx is cancelled. The first cycle starts immediately.
func (f *Fingerprinter) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.probeAll(ctx)
		}
	}
}

func (f *Fingerprinter) probeAll(ctx context.Context) {
	var results []domain.RouterFingerprint
	for _, gateway := range f.gateways() {
		if ctx.Err() != nil {
			return
		}
		if fp := f.probeGateway(ctx, gateway); fp != nil {
			results = append(results, *fp)
		}
	}
	f.store.Replace(results)
	f.log.Debug().Int("fingerprints", len(results)).Msg("fingerprint cycle complete")
}

// probeGateway tries each candidate path over http then https, keeping
// the highest-confidence match. High-confidence matches stop the probe
// early.
func (f *Fingerprinter) probeGateway(ctx context.Context, gateway string) *domain.RouterFingerprint {
	var best *domain.RouterFingerprint
	for _, scheme := range []string{"http", "https"} {
		base := scheme + "://" + gateway
		for _, path := range fingerprintPaths {
			if ctx.Err() != nil {
				return best
			}
			page, ok := f.fetchPage(ctx, base+path)
			if !ok {
				continue
			}
			fp := matchFingerprint(gateway, base, page)
			if fp == nil {
				continue
			}
			if best == nil || fp.Confidence > best.Confidence {
				best = fp
			}
			if best.Confidence >= 0.8 {
				return best
			}
		}
	}
	return best
}

// fingerprintPage carries the signals checked against the vendor rules:
// the Server response header, the page title, and the lowercased body.
type fingerprintPage struct {
	server string
	title  string
	body   string
}

func (f *Fingerprinter) fetchPage(ctx context.Context, url string) (fingerprintPage, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fingerprintPage{}, false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fingerprintPage{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		return fingerprintPage{}, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		return fingerprintPage{}, false
	}
	page := fingerprintPage{
		server: strings.TrimSpace(resp.Header.Get("Server")),
		body:   strings.ToLower(string(body)),
	}
	if m := fingerprintTitleRe.FindStringSubmatch(string(body)); m != nil {
		page.title = strings.TrimSpace(m[1])
	}
	return page, true
}

func matchFingerprint(gateway, baseURL string, page fingerprintPage) *domain.RouterFingerprint {
	var evidence []string
	if page.server != "" {
		evidence = append(evidence, "server:"+page.server)
	}
	if page.title != "" {
		evidence = append(evidence, "title:"+page.title)
	}
	// Newline keeps keywords from matching across field boundaries.
	haystack := strings.ToLower(page.server) + "\n" + strings.ToLower(page.title) + "\n" + page.body
	for _, rule := range fingerprintRules {
		keyword := matchKeyword(haystack, rule.keywords)
		if keyword == "" {
			continue
		}
		return &domain.RouterFingerprint{
			GatewayIP:          gateway,
			BaseURL:            baseURL,
			Vendor:             rule.vendor,
			Model:              rule.model,
			Confidence:         rule.confidence,
			SuggestedConnector: rule.connector(haystack),
			Evidence:           append(evidence, "keyword:"+keyword),
			ObservedAt:         time.Now().UTC(),
		}
	}
	return nil
}

func matchKeyword(body string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			return kw
		}
	}
	return ""
}
