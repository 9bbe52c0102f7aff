package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-and-delivery/internal/models"
)

// ActivityStoreInterface defines the contract for a subject's recent
// activity log, per spec.md §6.
type ActivityStoreInterface interface {
	Recent(ctx context.Context, subject string, fromInstant time.Time) ([]models.ActivityEntry, error)
}

// ActivityStore implements ActivityStoreInterface against Postgres,
// used to seed the threat meter's in-memory window on cold start.
type ActivityStore struct {
	db *pgxpool.Pool
}

// NewActivityStore creates a new activity store.
func NewActivityStore(db *pgxpool.Pool) ActivityStoreInterface {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Recent(ctx context.Context, subject string, fromInstant time.Time) ([]models.ActivityEntry, error) {
	const query = `
		SELECT action, occurred_at
		FROM security_logs
		WHERE subject = $1 AND occurred_at >= $2
		ORDER BY occurred_at`

	rows, err := s.db.Query(ctx, query, subject, fromInstant)
	if err != nil {
		return nil, fmt.Errorf("Recent failed: %w", err)
	}
	defer rows.Close()

	var out []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.Activity, &e.At); err != nil {
			return nil, fmt.Errorf("Recent scan failed: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent rows failed: %w", err)
	}
	return out, nil
}
