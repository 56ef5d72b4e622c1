// Package connector polls router and controller backends for their view
// of the network (ARP tables, DHCP leases, wireless client lists) and
// feeds the results into the device service as observations. The
// connector set is fixed at build time; a static registry dispatches a
// uniform Run capability per backend family.
package connector

import (
	"context"
	"strings"
	"sync"
	"time"

	"lanwatch/internal/domain"
)

// Connector is one pollable backend. Run synthesizes observations from
// the backend's current state using the settings snapshot it is handed;
// it returns an error only for whole-run failures (per-item parse
// problems are skipped).
type Connector interface {
	Key() string
	Run(ctx context.Context, settings Settings) error
}

// Resolver resolves credential references to secret values. Implemented
// by the secrets vault; a false return means "use the plaintext setting".
type Resolver interface {
	TryResolve(id string) (string, bool)
}

// Registry holds the fixed connector set and their operational status.
type Registry struct {
	connectors map[string]Connector
	order      []string
	status     *StatusStore
}

// NewRegistry builds a registry from the given connectors, preserving
// their order for scheduling.
func NewRegistry(status *StatusStore, connectors ...Connector) *Registry {
	r := &Registry{
		connectors: make(map[string]Connector, len(connectors)),
		status:     status,
	}
	for _, c := range connectors {
		key := strings.ToLower(c.Key())
		r.connectors[key] = c
		r.order = append(r.order, key)
	}
	return r
}

// All returns the connectors in registration order.
func (r *Registry) All() []Connector {
	out := make([]Connector, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.connectors[key])
	}
	return out
}

// Get looks a connector up by key (case-insensitive).
func (r *Registry) Get(key string) (Connector, bool) {
	c, ok := r.connectors[strings.ToLower(key)]
	return c, ok
}

// ReportSuccess records a successful run for key.
func (r *Registry) ReportSuccess(key string) {
	r.status.ReportSuccess(key)
}

// ReportFailure records a failed run for key.
func (r *Registry) ReportFailure(key string, err error) {
	r.status.ReportFailure(key, err.Error())
}

// Status returns the current status of every connector that has run.
func (r *Registry) Status() []domain.ConnectorStatus {
	return r.status.All()
}

// StatusStore is the in-memory operational status table, guarded by a
// single internal lock.
type StatusStore struct {
	mu     sync.Mutex
	status map[string]*domain.ConnectorStatus
}

// NewStatusStore creates an empty status table.
func NewStatusStore() *StatusStore {
	return &StatusStore{status: make(map[string]*domain.ConnectorStatus)}
}

// ReportSuccess stamps a successful run and clears the last error.
func (s *StatusStore) ReportSuccess(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(key)
	now := time.Now().UTC()
	st.LastSuccess = &now
	st.LastError = ""
}

// ReportFailure stamps a failed run with its error message.
func (s *StatusStore) ReportFailure(key, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(key)
	now := time.Now().UTC()
	st.LastErrorAt = &now
	st.LastError = message
}

// All returns a snapshot of every tracked status.
func (s *StatusStore) All() []domain.ConnectorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ConnectorStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	return out
}

func (s *StatusStore) get(key string) *domain.ConnectorStatus {
	key = strings.ToLower(key)
	st, ok := s.status[key]
	if !ok {
		st = &domain.ConnectorStatus{Key: key}
		s.status[key] = st
	}
	return st
}
