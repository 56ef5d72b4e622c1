package repository

import (
	"context"
	"time"

	"lanwatch/internal/domain"
)

// Store is the persistence contract required by the device engine: three
// append-friendly tables (devices, observations, device_events) with
// indexed lookups by MAC and IP and transactional multi-statement writes.
type Store interface {
	// Transact runs fn inside a single transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	GetDevice(ctx context.Context, deviceID string) (*domain.Device, error)
	ListDevices(ctx context.Context) ([]domain.Device, error)

	ListEvents(ctx context.Context, limit int) ([]domain.DeviceEvent, error)
	ListEventsSince(ctx context.Context, since time.Time, limit int) ([]domain.DeviceEvent, error)
	ListEventsForDeviceSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]domain.DeviceEvent, error)

	ListObservations(ctx context.Context, limit int) ([]domain.DeviceObservation, error)
	ListObservationsForDevice(ctx context.Context, deviceID string, limit int) ([]domain.DeviceObservation, error)

	Close() error
}

// Tx exposes the write-side operations available inside a transaction.
// Lookup methods return (nil, nil) when no row matches.
type Tx interface {
	FindDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error)
	FindDeviceByIP(ctx context.Context, ip string) (*domain.Device, error)
	InsertDevice(ctx context.Context, d *domain.Device) error
	UpdateDevice(ctx context.Context, d *domain.Device) error
	InsertObservation(ctx context.Context, o *domain.DeviceObservation) (int64, error)
	InsertEvent(ctx context.Context, e *domain.DeviceEvent) (int64, error)
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]domain.Device, error)
	MarkOffline(ctx context.Context, deviceID string) error
}
