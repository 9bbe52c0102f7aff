package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch-and-delivery/internal/models"
)

// PreferenceStoreInterface defines the contract for looking up a
// customer's preferred/blocked driver lists, per spec.md §6.
type PreferenceStoreInterface interface {
	Customer(ctx context.Context, uid string) (models.CustomerPreference, error)
}

// PreferenceStore implements PreferenceStoreInterface against
// Postgres.
type PreferenceStore struct {
	db *pgxpool.Pool
}

// NewPreferenceStore creates a new preference store.
func NewPreferenceStore(db *pgxpool.Pool) PreferenceStoreInterface {
	return &PreferenceStore{db: db}
}

// Customer looks up a customer's preferred and blocked driver id
// lists. A customer with no rows recorded returns an empty
// preference, not an error — absence of preference is the common case.
func (s *PreferenceStore) Customer(ctx context.Context, uid string) (models.CustomerPreference, error) {
	const query = `
		SELECT
			COALESCE(array_agg(driver_id) FILTER (WHERE kind = 'preferred'), '{}'),
			COALESCE(array_agg(driver_id) FILTER (WHERE kind = 'blocked'), '{}')
		FROM customer_driver_preferences
		WHERE user_id = $1`

	pref := models.CustomerPreference{UserID: uid}
	err := s.db.QueryRow(ctx, query, uid).Scan(&pref.Preferred, &pref.Blocked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return pref, nil
		}
		return models.CustomerPreference{}, fmt.Errorf("Customer failed: %w", err)
	}
	return pref, nil
}
