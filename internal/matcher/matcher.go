// Package matcher implements the weighted multi-factor driver ranking
// described in spec.md §4.5. Rank is pure relative to a snapshot of
// historical performance data already loaded onto the candidate
// Driver values before ranking begins.
package matcher

import (
	"math"
	"sort"
	"time"

	"dispatch-and-delivery/internal/geo"
	"dispatch-and-delivery/internal/models"
)

// Weights, fixed evaluation order per spec.md §4.5.
const (
	weightDistance     = 0.30
	weightPerformance  = 0.25
	weightAvailability = 0.20
	weightPreference   = 0.15
	weightRealtime     = 0.10
)

const rushHourMorningStart, rushHourMorningEnd = 11, 14
const rushHourEveningStart, rushHourEveningEnd = 17, 21

// Context supplies the request-scoped signals scoring needs: the
// customer's preference lists, current weather/traffic, and the hour
// of day to evaluate rush-hour bonuses against.
type Context struct {
	Preference models.CustomerPreference
	Weather    string
	Traffic    string
	Hour       int `validate:"gte=0,lte=23"`

	// Now is the evaluation instant for heartbeat staleness. Zero
	// means time.Now().
	Now time.Time
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Rank scores every candidate against order+context and returns them
// sorted by descending MatchScore. Ties preserve input order — Go's
// sort.SliceStable guarantees that directly.
func Rank(order models.Order, candidates []models.Driver, ctx Context) []models.Driver {
	ranked := make([]models.Driver, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].MatchScore = score(order, ranked[i], ctx)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	return ranked
}

// score blends sub-scores into a single value, per spec.md §4.5:
// start at 100, then for each factor in fixed order,
// score := score*(1-w) + sub*w. realtimeScore can reach 110 during
// rush hour, so the result can reach 101.
func score(order models.Order, d models.Driver, ctx Context) float64 {
	s := 100.0
	s = blend(s, distanceScore(order, d), weightDistance)
	s = blend(s, performanceScore(d), weightPerformance)
	s = blend(s, availabilityScore(d, ctx.now()), weightAvailability)
	s = blend(s, preferenceScore(order, d, ctx.Preference), weightPreference)
	s = blend(s, realtimeScore(ctx), weightRealtime)
	return round2(s)
}

func blend(current, sub, w float64) float64 {
	return current*(1-w) + sub*w
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// distanceScore: <=5mi -> 100, else decays 10 points per mile beyond
// 5, floored at 0. Missing location -> 50.
func distanceScore(order models.Order, d models.Driver) float64 {
	if !d.HasLocation() {
		return 50
	}
	miles := geo.DistanceMiles(d.Latitude, d.Longitude, order.VendorLatitude, order.VendorLongitude)
	if miles <= 5 {
		return 100
	}
	return math.Max(0, 100-10*(miles-5))
}

// performanceScore blends the 30-day rollup per spec.md §4.5. No
// data -> 75.
func performanceScore(d models.Driver) float64 {
	if !d.Performance.HasData() {
		return 75
	}
	successRate := clamp0100(d.Performance.SuccessRate())
	ratingComponent := (d.Performance.AvgRating() / 5) * 100
	speedComponent := math.Max(0, 100-2*(d.Performance.AvgDeliveryMinutes()-20))

	v := successRate*0.4 + ratingComponent*0.3 + speedComponent*0.3
	return clamp0100(v)
}

func clamp0100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// availabilityScore: 100 minus 30 per active assignment (capped at
// 100); inactive driver -> 0; stale heartbeat beyond 5 min subtracts
// 5 per extra minute, floored at 0.
func availabilityScore(d models.Driver, now time.Time) float64 {
	if !d.Active {
		return 0
	}
	v := 100 - math.Min(100, 30*float64(d.ActiveAssignments))

	staleMinutes := now.Sub(d.LastHeartbeat).Minutes()
	if staleMinutes > 5 {
		v -= 5 * (staleMinutes - 5)
	}
	return math.Max(0, v)
}

// preferenceScore: customer-preferred -> 100; blocked -> 0;
// driver-prefers-the-vendor -> 90; else 80.
func preferenceScore(order models.Order, d models.Driver, pref models.CustomerPreference) float64 {
	if pref.Blocks(d.ID) {
		return 0
	}
	if pref.Prefers(d.ID) {
		return 100
	}
	if d.PreferredVendors != nil && d.PreferredVendors[order.VendorID] {
		return 90
	}
	return 80
}

// realtimeScore: 100, -10 rain/snow, -15 heavy traffic, +10 rush
// hour, floored at 0.
func realtimeScore(ctx Context) float64 {
	v := 100.0
	if ctx.Weather == "rain" || ctx.Weather == "snow" {
		v -= 10
	}
	if ctx.Traffic == "heavy" {
		v -= 15
	}
	if isRushHour(ctx.Hour) {
		v += 10
	}
	return math.Max(0, v)
}

func isRushHour(hour int) bool {
	return (hour >= rushHourMorningStart && hour <= rushHourMorningEnd) ||
		(hour >= rushHourEveningStart && hour <= rushHourEveningEnd)
}
