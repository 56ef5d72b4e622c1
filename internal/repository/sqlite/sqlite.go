package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lanwatch/internal/domain"
	"lanwatch/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Store on an embedded SQLite database.
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// New opens (or creates) the database at dbPath and applies migrations.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The modernc driver opens one connection per SQLite handle; writes
	// must be serialized on a single connection to avoid SQLITE_BUSY on
	// in-memory databases.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		device_id TEXT PRIMARY KEY,
		mac_address TEXT,
		ip_address TEXT,
		hostname TEXT,
		vendor TEXT,
		type_guess TEXT,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0.1,
		is_online INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_devices_mac ON devices(mac_address);
	CREATE INDEX IF NOT EXISTS idx_devices_ip ON devices(ip_address);

	CREATE TABLE IF NOT EXISTS observations (
		observation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		source TEXT NOT NULL,
		mac_address TEXT,
		ip_address TEXT,
		hostname TEXT,
		vendor TEXT,
		type_hint TEXT,
		observed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_observations_device ON observations(device_id);

	CREATE TABLE IF NOT EXISTS device_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_device ON device_events(device_id);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	// Additive migrations: adding a column that already exists is not an
	// error we care about.
	if _, err := r.db.Exec(`ALTER TABLE observations ADD COLUMN service_hint TEXT`); err != nil {
		if !strings.Contains(err.Error(), "duplicate column") {
			return err
		}
	}

	return nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Transact runs fn inside a transaction, committing on nil and rolling
// back on error.
func (r *Repository) Transact(ctx context.Context, fn func(tx repository.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&txn{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDevice retrieves a single device by id, or (nil, nil) when absent.
func (r *Repository) GetDevice(ctx context.Context, deviceID string) (*domain.Device, error) {
	return scanOneDevice(r.db.QueryRowContext(ctx, deviceSelect+` WHERE device_id = ?`, deviceID))
}

// ListDevices returns all devices ordered by most recently seen.
func (r *Repository) ListDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, deviceSelect+` ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// ListEvents returns the most recent events, newest first. A limit of
// zero or less means no limit.
func (r *Repository) ListEvents(ctx context.Context, limit int) ([]domain.DeviceEvent, error) {
	rows, err := r.db.QueryContext(ctx, eventSelect+` ORDER BY occurred_at DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsSince returns events at or after since, oldest first.
func (r *Repository) ListEventsSince(ctx context.Context, since time.Time, limit int) ([]domain.DeviceEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		eventSelect+` WHERE occurred_at >= ? ORDER BY occurred_at ASC LIMIT ?`,
		formatTime(since), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsForDeviceSince returns one device's events at or after since,
// oldest first.
func (r *Repository) ListEventsForDeviceSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]domain.DeviceEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		eventSelect+` WHERE device_id = ? AND occurred_at >= ? ORDER BY occurred_at ASC LIMIT ?`,
		deviceID, formatTime(since), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query device events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListObservations returns the most recent observations, newest first.
func (r *Repository) ListObservations(ctx context.Context, limit int) ([]domain.DeviceObservation, error) {
	rows, err := r.db.QueryContext(ctx, observationSelect+` ORDER BY observation_id DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListObservationsForDevice returns one device's observations, newest first.
func (r *Repository) ListObservationsForDevice(ctx context.Context, deviceID string, limit int) ([]domain.DeviceObservation, error) {
	rows, err := r.db.QueryContext(ctx,
		observationSelect+` WHERE device_id = ? ORDER BY observation_id DESC LIMIT ?`,
		deviceID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query device observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// txn implements repository.Tx on a live *sql.Tx.
type txn struct {
	tx *sql.Tx
}

var _ repository.Tx = (*txn)(nil)

func (t *txn) FindDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	return scanOneDevice(t.tx.QueryRowContext(ctx, deviceSelect+` WHERE mac_address = ? LIMIT 1`, mac))
}

func (t *txn) FindDeviceByIP(ctx context.Context, ip string) (*domain.Device, error) {
	return scanOneDevice(t.tx.QueryRowContext(ctx, deviceSelect+` WHERE ip_address = ? LIMIT 1`, ip))
}

func (t *txn) InsertDevice(ctx context.Context, d *domain.Device) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO devices (
			device_id, mac_address, ip_address, hostname, vendor, type_guess,
			first_seen, last_seen, confidence, is_online
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DeviceID,
		nullString(d.MACAddress),
		nullString(d.IPAddress),
		nullString(d.Hostname),
		nullString(d.Vendor),
		nullString(d.TypeGuess),
		formatTime(d.FirstSeen),
		formatTime(d.LastSeen),
		d.Confidence,
		boolToInt(d.Online),
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

func (t *txn) UpdateDevice(ctx context.Context, d *domain.Device) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE devices SET
			mac_address = ?, ip_address = ?, hostname = ?, vendor = ?,
			type_guess = ?, last_seen = ?, confidence = ?, is_online = ?
		WHERE device_id = ?`,
		nullString(d.MACAddress),
		nullString(d.IPAddress),
		nullString(d.Hostname),
		nullString(d.Vendor),
		nullString(d.TypeGuess),
		formatTime(d.LastSeen),
		d.Confidence,
		boolToInt(d.Online),
		d.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return nil
}

func (t *txn) InsertObservation(ctx context.Context, o *domain.DeviceObservation) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO observations (
			device_id, source, mac_address, ip_address, hostname, vendor,
			type_hint, service_hint, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.DeviceID,
		o.Source,
		nullString(o.MACAddress),
		nullString(o.IPAddress),
		nullString(o.Hostname),
		nullString(o.Vendor),
		nullString(o.TypeHint),
		nullString(o.ServiceHint),
		formatTime(o.ObservedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert observation: %w", err)
	}
	return res.LastInsertId()
}

func (t *txn) InsertEvent(ctx context.Context, e *domain.DeviceEvent) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO device_events (device_id, event_type, occurred_at, detail)
		VALUES (?, ?, ?, ?)`,
		e.DeviceID,
		e.EventType,
		formatTime(e.OccurredAt),
		nullString(e.Detail),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return res.LastInsertId()
}

func (t *txn) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]domain.Device, error) {
	rows, err := t.tx.QueryContext(ctx,
		deviceSelect+` WHERE is_online = 1 AND last_seen < ?`,
		formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

func (t *txn) MarkOffline(ctx context.Context, deviceID string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE devices SET is_online = 0 WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to mark device offline: %w", err)
	}
	return nil
}
