package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-and-delivery/internal/models"
)

// DeviceStoreInterface defines the contract for a subject's recent
// device history, per spec.md §6.
type DeviceStoreInterface interface {
	Recent(ctx context.Context, subject string) ([]models.DeviceRecord, error)
}

// DeviceStore implements DeviceStoreInterface against Postgres.
type DeviceStore struct {
	db *pgxpool.Pool
}

// NewDeviceStore creates a new device store.
func NewDeviceStore(db *pgxpool.Pool) DeviceStoreInterface {
	return &DeviceStore{db: db}
}

// Recent returns the subject's last 50 observed (ip, userAgent,
// fingerprint) combinations, most recent first.
func (s *DeviceStore) Recent(ctx context.Context, subject string) ([]models.DeviceRecord, error) {
	const query = `
		SELECT ip, user_agent, fingerprint, last_seen
		FROM device_sightings
		WHERE subject = $1
		ORDER BY last_seen DESC
		LIMIT 50`

	rows, err := s.db.Query(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("Recent failed: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceRecord
	for rows.Next() {
		var d models.DeviceRecord
		if err := rows.Scan(&d.IP, &d.UserAgent, &d.Fingerprint, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("Recent scan failed: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent rows failed: %w", err)
	}
	return out, nil
}
