package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-and-delivery/internal/models"
)

// PerformanceStoreInterface defines the contract for the 30-day
// driver performance rollup lookup, per spec.md §6.
type PerformanceStoreInterface interface {
	FetchWindow(ctx context.Context, driverID string, fromInstant time.Time) (models.PerformanceAggregate, error)
}

// PerformanceStore implements PerformanceStoreInterface against
// Postgres.
type PerformanceStore struct {
	db *pgxpool.Pool
}

// NewPerformanceStore creates a new performance store.
func NewPerformanceStore(db *pgxpool.Pool) PerformanceStoreInterface {
	return &PerformanceStore{db: db}
}

// FetchWindow aggregates delivery_events for driverID since
// fromInstant into a PerformanceAggregate.
func (s *PerformanceStore) FetchWindow(ctx context.Context, driverID string, fromInstant time.Time) (models.PerformanceAggregate, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE success),
			COUNT(*),
			COALESCE(SUM(rating), 0),
			COUNT(*) FILTER (WHERE rating IS NOT NULL),
			COALESCE(SUM(delivery_minutes), 0),
			COUNT(*) FILTER (WHERE delivery_minutes IS NOT NULL)
		FROM delivery_events
		WHERE driver_id = $1 AND occurred_at >= $2`

	var agg models.PerformanceAggregate
	row := s.db.QueryRow(ctx, query, driverID, fromInstant)
	err := row.Scan(
		&agg.SuccessCount, &agg.TotalCount,
		&agg.RatingSum, &agg.RatingCount,
		&agg.DeliveryMinutesSum, &agg.DeliveryMinutesCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.PerformanceAggregate{}, nil
		}
		return models.PerformanceAggregate{}, fmt.Errorf("FetchWindow failed: %w", err)
	}
	return agg, nil
}
