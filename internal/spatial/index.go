// Package spatial implements the grid-bucketed live-driver index,
// spec.md §4.4: cheap pre-filtering for radius queries without a
// k-d tree, backed by atomic whole-map replacement so readers never
// observe a partially-merged state.
package spatial

import (
	"sort"
	"sync/atomic"
	"time"

	"dispatch-and-delivery/internal/geo"
	"dispatch-and-delivery/internal/models"
)

// LivenessWindow is the maximum heartbeat age for a driver to remain
// indexable, per spec.md §3/GLOSSARY.
const LivenessWindow = 10 * time.Minute

type cellMap map[string][]models.Driver

// Index is the process-local grid index over the live driver
// population. The current cellMap is held behind an atomic.Value so
// upsertDrivers can replace it in one atomic swap (spec.md §4.4/§5):
// a reader observes either the pre- or post-upsert map, never a
// partial merge.
type Index struct {
	grid atomic.Value // cellMap
	g    float64
	now  func() time.Time
}

// New constructs an Index with grid size g degrees (spec.md default
// 0.01).
func New(g float64) *Index {
	idx := &Index{g: g, now: time.Now}
	idx.grid.Store(cellMap{})
	return idx
}

func (idx *Index) snapshot() cellMap {
	return idx.grid.Load().(cellMap)
}

func live(d models.Driver, now time.Time) bool {
	return d.Active && now.Sub(d.LastHeartbeat) <= LivenessWindow && d.HasLocation()
}

// UpsertDrivers rebuilds the index from scratch with the given
// drivers, keeping only those satisfying the liveness predicate, then
// replaces the previous map atomically and runs GCStale.
func (idx *Index) UpsertDrivers(drivers []models.Driver) {
	now := idx.now()
	next := cellMap{}
	for _, d := range drivers {
		if !live(d, now) {
			continue
		}
		key := geo.GridKey(d.Latitude, d.Longitude, idx.g)
		next[key] = append(next[key], d)
	}
	idx.grid.Store(next)
	idx.GCStale()
}

// GCStale drops drivers that have fallen out of the liveness window
// from every cell, deleting cells that become empty. It is re-applied
// atomically so concurrent readers never see a half-collected cell.
func (idx *Index) GCStale() {
	now := idx.now()
	cur := idx.snapshot()
	next := cellMap{}
	for key, drivers := range cur {
		var kept []models.Driver
		for _, d := range drivers {
			if live(d, now) {
				kept = append(kept, d)
			}
		}
		if len(kept) > 0 {
			next[key] = kept
		}
	}
	idx.grid.Store(next)
}

// Near returns every live driver within radiusMiles of (lat, lon),
// deduplicated by id, sorted by ascending distance. radius=0 returns
// only drivers exactly at the query position, per spec.md §8.
func (idx *Index) Near(lat, lon, radiusMiles float64) []models.Driver {
	cells := idx.snapshot()
	dLat, dLon := geo.BoundingBoxDegrees(lat, radiusMiles)

	minLat, maxLat := lat-dLat, lat+dLat
	minLon, maxLon := lon-dLon, lon+dLon

	type candidate struct {
		driver   models.Driver
		distance float64
	}
	seen := make(map[string]bool)
	var candidates []candidate

	for cLat := roundDown(minLat, idx.g); cLat <= maxLat; cLat += idx.g {
		for cLon := roundDown(minLon, idx.g); cLon <= maxLon; cLon += idx.g {
			key := geo.GridKey(cLat, cLon, idx.g)
			for _, d := range cells[key] {
				if seen[d.ID] {
					continue
				}
				dist := geo.DistanceMiles(lat, lon, d.Latitude, d.Longitude)
				if dist <= radiusMiles {
					seen[d.ID] = true
					candidates = append(candidates, candidate{driver: d, distance: dist})
				}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	out := make([]models.Driver, len(candidates))
	for i, c := range candidates {
		out[i] = c.driver
	}
	return out
}

func roundDown(v, g float64) float64 {
	cellLat, _ := geo.CellCoords(v, 0, g)
	return cellLat
}

// Stats reports cell count, total driver count, and mean drivers per
// cell, for the operator snapshot.
func (idx *Index) Stats() models.SpatialStats {
	cells := idx.snapshot()
	total := 0
	for _, drivers := range cells {
		total += len(drivers)
	}
	mean := 0.0
	if len(cells) > 0 {
		mean = float64(total) / float64(len(cells))
	}
	return models.SpatialStats{Cells: len(cells), Drivers: total, MeanPerCell: mean}
}

// Clear empties the index entirely — used by admission's emergency
// cleanup.
func (idx *Index) Clear() {
	idx.grid.Store(cellMap{})
}
