package spatial

import (
	"testing"
	"time"

	"dispatch-and-delivery/internal/models"
)

func TestNearFindsNearbyDriversSortedByDistance(t *testing.T) {
	now := time.Now()
	idx := New(0.01)
	idx.now = func() time.Time { return now }

	idx.UpsertDrivers([]models.Driver{
		{ID: "far", Latitude: 34.15, Longitude: -118.25, Active: true, LastHeartbeat: now},
		{ID: "near", Latitude: 34.051, Longitude: -118.251, Active: true, LastHeartbeat: now},
		{ID: "center", Latitude: 34.050, Longitude: -118.250, Active: true, LastHeartbeat: now},
	})

	results := idx.Near(34.050, -118.250, 5)
	if len(results) != 2 {
		t.Fatalf("Near returned %d drivers; want 2 (far one excluded)", len(results))
	}
	if results[0].ID != "center" || results[1].ID != "near" {
		t.Errorf("Near order = [%s, %s]; want [center, near]", results[0].ID, results[1].ID)
	}
}

func TestLivenessEviction(t *testing.T) {
	now := time.Now()
	idx := New(0.01)
	idx.now = func() time.Time { return now }

	idx.UpsertDrivers([]models.Driver{
		{ID: "stale", Latitude: 34.05, Longitude: -118.25, Active: true, LastHeartbeat: now.Add(-11 * time.Minute)},
	})

	results := idx.Near(34.05, -118.25, 5)
	if len(results) != 0 {
		t.Errorf("Near after GC of stale heartbeat returned %d; want 0", len(results))
	}
}

func TestZeroRadiusExactMatchOnly(t *testing.T) {
	now := time.Now()
	idx := New(0.01)
	idx.now = func() time.Time { return now }
	idx.UpsertDrivers([]models.Driver{
		{ID: "exact", Latitude: 34.05, Longitude: -118.25, Active: true, LastHeartbeat: now},
		{ID: "close", Latitude: 34.0501, Longitude: -118.25, Active: true, LastHeartbeat: now},
	})

	results := idx.Near(34.05, -118.25, 0)
	if len(results) != 1 || results[0].ID != "exact" {
		t.Errorf("Near(radius=0) = %v; want only [exact]", results)
	}
}

func TestUpsertReplacesAtomically(t *testing.T) {
	now := time.Now()
	idx := New(0.01)
	idx.now = func() time.Time { return now }
	idx.UpsertDrivers([]models.Driver{{ID: "a", Latitude: 1, Longitude: 1, Active: true, LastHeartbeat: now}})
	idx.UpsertDrivers([]models.Driver{{ID: "b", Latitude: 1, Longitude: 1, Active: true, LastHeartbeat: now}})

	results := idx.Near(1, 1, 1)
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("Near after second UpsertDrivers = %v; want only [b]", results)
	}
}

func TestStats(t *testing.T) {
	now := time.Now()
	idx := New(0.01)
	idx.now = func() time.Time { return now }
	idx.UpsertDrivers([]models.Driver{
		{ID: "a", Latitude: 1, Longitude: 1, Active: true, LastHeartbeat: now},
		{ID: "b", Latitude: 1, Longitude: 1, Active: true, LastHeartbeat: now},
	})
	stats := idx.Stats()
	if stats.Drivers != 2 || stats.Cells != 1 || stats.MeanPerCell != 2 {
		t.Errorf("Stats = %+v; want {Cells:1 Drivers:2 MeanPerCell:2}", stats)
	}
}
