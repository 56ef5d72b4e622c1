package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lanwatch/internal/classify"
	"lanwatch/internal/domain"
	"lanwatch/internal/repository"
	"lanwatch/internal/risk"
)

// DeviceService resolves incoming observations to durable device
// identities and maintains the presence timeline. All writes are
// serialized through a single mutex on top of the store transaction, so
// two concurrent observations of a brand-new device cannot race into two
// identities.
type DeviceService struct {
	repo       repository.Store
	classifier *classify.Classifier
	eventBus   *EventBus
	log        zerolog.Logger

	writeMu chMutex
}

// chMutex is a channel-based mutex so writes can honor ctx cancellation
// while waiting for their turn.
type chMutex chan struct{}

func (m chMutex) lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m chMutex) unlock() { <-m }

// NewDeviceService creates a new device service
func NewDeviceService(repo repository.Store, classifier *classify.Classifier, eventBus *EventBus, log zerolog.Logger) *DeviceService {
	return &DeviceService{
		repo:       repo,
		classifier: classifier,
		eventBus:   eventBus,
		log:        log.With().Str("component", "devices").Logger(),
		writeMu:    make(chMutex, 1),
	}
}

// Ingest resolves an observation to a device, creating or updating it,
// records the observation, and publishes the resulting state. The device
// returned reflects the committed state.
func (s *DeviceService) Ingest(ctx context.Context, obs domain.Observation) (*domain.Device, error) {
	if obs.Source == "" {
		return nil, fmt.Errorf("observation has no source")
	}

	obs.MACAddress = NormalizeMAC(obs.MACAddress)
	obs.IPAddress = strings.TrimSpace(obs.IPAddress)
	obs.Hostname = strings.TrimSpace(obs.Hostname)
	if obs.MACAddress == "" && obs.IPAddress == "" {
		return nil, fmt.Errorf("observation from %s has neither MAC nor IP", obs.Source)
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now().UTC()
	}

	if err := s.writeMu.lock(ctx); err != nil {
		return nil, err
	}
	defer s.writeMu.unlock()

	var device *domain.Device
	var timeline []domain.DeviceEvent

	err := s.repo.Transact(ctx, func(tx repository.Tx) error {
		device = nil
		timeline = timeline[:0]

		existing, err := s.resolve(ctx, tx, obs)
		if err != nil {
			return err
		}

		if existing == nil {
			device = s.newDevice(obs)
			timeline = append(timeline, domain.DeviceEvent{
				DeviceID:   device.DeviceID,
				EventType:  domain.EventJoin,
				OccurredAt: obs.ObservedAt,
				Detail:     domain.DetailFirstSeen,
			})
		} else {
			device = existing
			if s.applyObservation(device, obs) {
				timeline = append(timeline, domain.DeviceEvent{
					DeviceID:   device.DeviceID,
					EventType:  domain.EventJoin,
					OccurredAt: obs.ObservedAt,
					Detail:     domain.DetailBackOnline,
				})
			}
		}

		s.applyClassification(device, obs)

		if existing == nil {
			if err := tx.InsertDevice(ctx, device); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateDevice(ctx, device); err != nil {
				return err
			}
		}

		record := domain.DeviceObservation{
			DeviceID:    device.DeviceID,
			Source:      obs.Source,
			MACAddress:  obs.MACAddress,
			IPAddress:   obs.IPAddress,
			Hostname:    obs.Hostname,
			Vendor:      obs.Vendor,
			TypeHint:    obs.TypeHint,
			ServiceHint: obs.ServiceHint,
			ObservedAt:  obs.ObservedAt,
		}
		if _, err := tx.InsertObservation(ctx, &record); err != nil {
			return err
		}

		for i := range timeline {
			id, err := tx.InsertEvent(ctx, &timeline[i])
			if err != nil {
				return err
			}
			timeline[i].EventID = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest observation from %s: %w", obs.Source, err)
	}

	s.publish(device, timeline)
	return device, nil
}

// MarkOfflineIfStale flips every online device whose last_seen is older
// than threshold to offline and records a leave event for each. Returns
// the devices that transitioned.
func (s *DeviceService) MarkOfflineIfStale(ctx context.Context, threshold time.Duration) ([]domain.Device, error) {
	if err := s.writeMu.lock(ctx); err != nil {
		return nil, err
	}
	defer s.writeMu.unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-threshold)

	var stale []domain.Device
	var timeline []domain.DeviceEvent

	err := s.repo.Transact(ctx, func(tx repository.Tx) error {
		timeline = timeline[:0]

		var err error
		stale, err = tx.ListStaleOnline(ctx, cutoff)
		if err != nil {
			return err
		}

		for i := range stale {
			if err := tx.MarkOffline(ctx, stale[i].DeviceID); err != nil {
				return err
			}
			stale[i].Online = false

			ev := domain.DeviceEvent{
				DeviceID:   stale[i].DeviceID,
				EventType:  domain.EventLeave,
				OccurredAt: now,
				Detail:     domain.DetailStaleTimeout,
			}
			id, err := tx.InsertEvent(ctx, &ev)
			if err != nil {
				return err
			}
			ev.EventID = id
			timeline = append(timeline, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sweep stale devices: %w", err)
	}

	for i := range stale {
		s.log.Info().
			Str("device_id", stale[i].DeviceID).
			Str("ip", stale[i].IPAddress).
			Time("last_seen", stale[i].LastSeen).
			Msg("device went offline")
		s.publish(&stale[i], timeline[i:i+1])
	}
	return stale, nil
}

// resolve looks the observation up by MAC first, IP second. A MAC match
// always wins so a device that changed IP keeps its identity.
func (s *DeviceService) resolve(ctx context.Context, tx repository.Tx, obs domain.Observation) (*domain.Device, error) {
	if obs.MACAddress != "" {
		device, err := tx.FindDeviceByMAC(ctx, obs.MACAddress)
		if err != nil || device != nil {
			return device, err
		}
	}
	if obs.IPAddress != "" {
		return tx.FindDeviceByIP(ctx, obs.IPAddress)
	}
	return nil, nil
}

func (s *DeviceService) newDevice(obs domain.Observation) *domain.Device {
	device := &domain.Device{
		DeviceID:   NewDeviceID(),
		MACAddress: obs.MACAddress,
		IPAddress:  obs.IPAddress,
		Hostname:   obs.Hostname,
		Vendor:     obs.Vendor,
		TypeGuess:  obs.TypeHint,
		FirstSeen:  obs.ObservedAt,
		LastSeen:   obs.ObservedAt,
		Confidence: 0.2,
		Online:     true,
	}

	s.log.Info().
		Str("device_id", device.DeviceID).
		Str("source", obs.Source).
		Str("mac", device.MACAddress).
		Str("ip", device.IPAddress).
		Msg("new device discovered")
	return device
}

// applyObservation merges an observation into an existing device and
// reports whether the device came back online.
func (s *DeviceService) applyObservation(device *domain.Device, obs domain.Observation) (backOnline bool) {
	if obs.MACAddress != "" {
		device.MACAddress = obs.MACAddress
	}
	if obs.IPAddress != "" {
		device.IPAddress = obs.IPAddress
	}
	if obs.Hostname != "" {
		device.Hostname = obs.Hostname
	}
	if obs.Vendor != "" {
		device.Vendor = obs.Vendor
	}
	if obs.TypeHint != "" {
		device.TypeGuess = obs.TypeHint
	}

	device.Confidence += 0.1
	if device.Confidence > 1.0 {
		device.Confidence = 1.0
	}
	if obs.ObservedAt.After(device.LastSeen) {
		device.LastSeen = obs.ObservedAt
	}

	backOnline = !device.Online
	device.Online = true
	return backOnline
}

// applyClassification lets the classifier refine the device before it is
// persisted. The classifier may fill vendor, replace the type guess, and
// raise confidence; it never lowers confidence.
func (s *DeviceService) applyClassification(device *domain.Device, obs domain.Observation) {
	result := s.classifier.Classify(device, obs)
	if device.Vendor == "" && result.Vendor != "" {
		device.Vendor = result.Vendor
	}
	if result.TypeGuess != "" {
		device.TypeGuess = result.TypeGuess
	}
	if result.Confidence > device.Confidence {
		device.Confidence = result.Confidence
	}
}

func (s *DeviceService) publish(device *domain.Device, timeline []domain.DeviceEvent) {
	s.eventBus.Publish(Event{Type: EventDevice, Payload: device})
	for i := range timeline {
		s.eventBus.Publish(Event{Type: EventTimeline, Payload: timeline[i]})
	}
}

// GetDevice retrieves a single device by ID
func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	device, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, fmt.Errorf("device %s not found", deviceID)
	}
	return device, nil
}

// ListDevices returns all known devices
func (s *DeviceService) ListDevices(ctx context.Context) ([]domain.Device, error) {
	return s.repo.ListDevices(ctx)
}

// ListEvents returns the most recent presence events, newest first
func (s *DeviceService) ListEvents(ctx context.Context, limit int) ([]domain.DeviceEvent, error) {
	return s.repo.ListEvents(ctx, limit)
}

// ListEventsSince returns presence events newer than since, newest first
func (s *DeviceService) ListEventsSince(ctx context.Context, since time.Time, limit int) ([]domain.DeviceEvent, error) {
	return s.repo.ListEventsSince(ctx, since, limit)
}

// ListDeviceEvents returns one device's presence events, newest first
func (s *DeviceService) ListDeviceEvents(ctx context.Context, deviceID string, limit int) ([]domain.DeviceEvent, error) {
	return s.repo.ListEventsForDeviceSince(ctx, deviceID, time.Time{}, limit)
}

// ListObservations returns the most recent observations, newest first
func (s *DeviceService) ListObservations(ctx context.Context, limit int) ([]domain.DeviceObservation, error) {
	return s.repo.ListObservations(ctx, limit)
}

// ListDeviceObservations returns one device's observations, newest first
func (s *DeviceService) ListDeviceObservations(ctx context.Context, deviceID string, limit int) ([]domain.DeviceObservation, error) {
	return s.repo.ListObservationsForDevice(ctx, deviceID, limit)
}

// ClassifyDevice re-evaluates a device's full observation history.
func (s *DeviceService) ClassifyDevice(ctx context.Context, deviceID string) (*classify.Result, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListObservationsForDevice(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}
	result := s.classifier.ClassifyHistory(device, history)
	return &result, nil
}

// AssessDevice scores a device's exposure from its observation history.
func (s *DeviceService) AssessDevice(ctx context.Context, deviceID string) (*risk.Assessment, error) {
	device, err := s.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListObservationsForDevice(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}
	assessment := risk.Score(device, history)
	return &assessment, nil
}

// NormalizeMAC canonicalizes a MAC to trimmed lowercase. Notation (colons
// versus dashes) is preserved as producers sent it; identity matching in
// practice sees colon notation from every producer.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}

// NewDeviceID mints a device identifier: a UUIDv4 with dashes stripped.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
