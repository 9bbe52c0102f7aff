package models

import "time"

// Driver is a courier known to the spatial index and matcher. Records
// inside a SpatialCell are copies of what DriverSource returns, never
// aliases — the index owns its own snapshot.
type Driver struct {
	ID                string
	Latitude          float64
	Longitude         float64
	Active            bool
	LastHeartbeat     time.Time
	ActiveAssignments int
	PreferredVendors  map[string]bool

	Performance PerformanceAggregate

	// MatchScore is populated by internal/matcher.Rank; zero until then.
	MatchScore float64
}

// HasLocation reports whether the driver carries a usable position.
func (d Driver) HasLocation() bool {
	return d.Latitude != 0 || d.Longitude != 0
}

// PerformanceAggregate is the 30-day rollup spec.md §3 describes:
// success count, total count, rating sum/count, delivery-minute
// sum/count. Ratios are computed on demand rather than stored, so a
// zero-value aggregate unambiguously means "no data".
type PerformanceAggregate struct {
	SuccessCount        int
	TotalCount           int
	RatingSum            float64
	RatingCount          int
	DeliveryMinutesSum   float64
	DeliveryMinutesCount int
}

// HasData reports whether any samples have been recorded.
func (p PerformanceAggregate) HasData() bool { return p.TotalCount > 0 }

// SuccessRate returns the percentage (0..100) of successful
// deliveries, 0 if no samples exist.
func (p PerformanceAggregate) SuccessRate() float64 {
	if p.TotalCount == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.TotalCount) * 100
}

// AvgRating returns the mean rating, defaulting to 4.5 (spec.md §4.5)
// when no ratings have been recorded.
func (p PerformanceAggregate) AvgRating() float64 {
	if p.RatingCount == 0 {
		return 4.5
	}
	return p.RatingSum / float64(p.RatingCount)
}

// AvgDeliveryMinutes returns the mean delivery duration, defaulting to
// 30 (spec.md §4.5) when no samples have been recorded.
func (p PerformanceAggregate) AvgDeliveryMinutes() float64 {
	if p.DeliveryMinutesCount == 0 {
		return 30
	}
	return p.DeliveryMinutesSum / float64(p.DeliveryMinutesCount)
}
