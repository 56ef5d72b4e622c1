package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"lanwatch/internal/domain"
)

const deviceSelect = `
	SELECT device_id, mac_address, ip_address, hostname, vendor, type_guess,
	       first_seen, last_seen, confidence, is_online
	FROM devices`

const eventSelect = `
	SELECT event_id, device_id, event_type, occurred_at, detail
	FROM device_events`

const observationSelect = `
	SELECT observation_id, device_id, source, mac_address, ip_address,
	       hostname, vendor, type_hint, service_hint, observed_at
	FROM observations`

// formatTime stores timestamps as RFC 3339 with nanoseconds so ordering by
// the TEXT column matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var (
		d                                   domain.Device
		mac, ip, hostname, vendor, typeGuess sql.NullString
		firstSeen, lastSeen                 string
		online                              int
	)

	err := row.Scan(&d.DeviceID, &mac, &ip, &hostname, &vendor, &typeGuess,
		&firstSeen, &lastSeen, &d.Confidence, &online)
	if err != nil {
		return nil, err
	}

	d.MACAddress = mac.String
	d.IPAddress = ip.String
	d.Hostname = hostname.String
	d.Vendor = vendor.String
	d.TypeGuess = typeGuess.String
	d.Online = online == 1

	if d.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if d.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, err
	}

	return &d, nil
}

func scanOneDevice(row *sql.Row) (*domain.Device, error) {
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}
	return d, nil
}

func scanDevices(rows *sql.Rows) ([]domain.Device, error) {
	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]domain.DeviceEvent, error) {
	var events []domain.DeviceEvent
	for rows.Next() {
		var (
			e          domain.DeviceEvent
			occurredAt string
			detail     sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.DeviceID, &e.EventType, &occurredAt, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Detail = detail.String

		var err error
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanObservations(rows *sql.Rows) ([]domain.DeviceObservation, error) {
	var observations []domain.DeviceObservation
	for rows.Next() {
		var (
			o                                          domain.DeviceObservation
			mac, ip, hostname, vendor, typeHint, svc   sql.NullString
			observedAt                                 string
		)
		if err := rows.Scan(&o.ObservationID, &o.DeviceID, &o.Source, &mac, &ip,
			&hostname, &vendor, &typeHint, &svc, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.MACAddress = mac.String
		o.IPAddress = ip.String
		o.Hostname = hostname.String
		o.Vendor = vendor.String
		o.TypeHint = typeHint.String
		o.ServiceHint = svc.String

		var err error
		if o.ObservedAt, err = parseTime(observedAt); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// limitOrAll maps a non-positive limit to SQLite's "no limit" sentinel.
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
