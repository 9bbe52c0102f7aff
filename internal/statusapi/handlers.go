package statusapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dispatch-and-delivery/internal/models"
)

// GetPerformance returns internal/metrics' current report: per-op
// ring-buffer aggregates plus the system-health bucket.
func (s *Server) GetPerformance(c echo.Context) error {
	if s.performance == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "performance meter not wired"})
	}
	return c.JSON(http.StatusOK, s.performance.Report())
}

// GetSpatial returns the grid index's cell/driver counts.
func (s *Server) GetSpatial(c echo.Context) error {
	if s.spatial == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "spatial index not wired"})
	}
	return c.JSON(http.StatusOK, s.spatial.Stats())
}

// GetResources returns every tracked resource counter against its
// limit.
func (s *Server) GetResources(c echo.Context) error {
	if s.resources == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "admission tracker not wired"})
	}
	return c.JSON(http.StatusOK, s.resources.Snapshot())
}

// GetBreakers returns the circuit breaker table.
func (s *Server) GetBreakers(c echo.Context) error {
	if s.breakers == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "breaker not wired"})
	}
	return c.JSON(http.StatusOK, s.breakers.Snapshot())
}

// GetJobs returns the scheduler's job table.
func (s *Server) GetJobs(c echo.Context) error {
	if s.jobs == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "scheduler not wired"})
	}
	return c.JSON(http.StatusOK, s.jobs.Snapshot())
}

type cacheStatsResponse struct {
	HitRate  float64 `json:"hitRate"`
	Accesses int     `json:"accesses"`
	Entries  int     `json:"entries"`
}

// GetCache returns the adaptive cache's aggregate hit rate and size.
func (s *Server) GetCache(c echo.Context) error {
	if s.cache == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "cache not wired"})
	}
	hitRate, accesses := s.cache.Stats()
	return c.JSON(http.StatusOK, cacheStatsResponse{HitRate: hitRate, Accesses: accesses, Entries: s.cache.Len()})
}

type threatStatsResponse struct {
	Suspended []string `json:"suspended"`
}

// GetThreat returns the subjects currently auto-suspended by the
// threat meter.
func (s *Server) GetThreat(c echo.Context) error {
	if s.threat == nil {
		return c.JSON(http.StatusNotImplemented, models.ErrorResponse{Message: "threat meter not wired"})
	}
	return c.JSON(http.StatusOK, threatStatsResponse{Suspended: s.threat.SuspendedSubjects()})
}
