// Package store adapts external collaborators (driver population,
// performance/preference/device/activity stores, IP reputation, the
// audit sink) to the narrow interfaces spec.md §6 defines, each
// backed by the datastore driver best suited to its shape.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"dispatch-and-delivery/internal/models"
)

// DriverSourceInterface is the collaborator internal/dispatch queries
// for the live candidate population, per spec.md §6.
type DriverSourceInterface interface {
	ListCandidates(ctx context.Context, order models.Order) ([]models.Driver, error)
}

// driverDoc is the document shape driver profiles are stored as; the
// collection holds live-updated location/heartbeat/assignment state,
// which is why it's document-store-backed rather than relational.
type driverDoc struct {
	ID                string          `bson:"_id"`
	Latitude          float64         `bson:"lat"`
	Longitude         float64         `bson:"lon"`
	Active            bool            `bson:"active"`
	LastHeartbeat     time.Time       `bson:"lastHeartbeat"`
	ActiveAssignments int             `bson:"activeAssignments"`
	PreferredVendors  map[string]bool `bson:"preferredVendors"`
}

// DriverSource implements DriverSourceInterface against a MongoDB
// collection of driver profiles.
type DriverSource struct {
	collection *mongo.Collection
}

// NewDriverSource wraps an already-connected collection handle.
func NewDriverSource(collection *mongo.Collection) *DriverSource {
	return &DriverSource{collection: collection}
}

// ListCandidates returns every active driver, regardless of location —
// C4's spatial index performs the actual radius filter, so this query
// only narrows by activity to keep the transferred document count
// reasonable.
func (s *DriverSource) ListCandidates(ctx context.Context, order models.Order) ([]models.Driver, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("ListCandidates find: %w", err)
	}
	defer cursor.Close(ctx)

	var drivers []models.Driver
	for cursor.Next(ctx) {
		var doc driverDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("ListCandidates decode: %w", err)
		}
		drivers = append(drivers, models.Driver{
			ID:                doc.ID,
			Latitude:          doc.Latitude,
			Longitude:         doc.Longitude,
			Active:            doc.Active,
			LastHeartbeat:     doc.LastHeartbeat,
			ActiveAssignments: doc.ActiveAssignments,
			PreferredVendors:  doc.PreferredVendors,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("ListCandidates cursor: %w", err)
	}
	return drivers, nil
}
