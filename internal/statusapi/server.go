// Package statusapi is the read-only operator HTTP surface spec.md §6
// requires alongside the dispatch core: Echo routes exposing every
// component's operator-facing snapshot behind JWT admin auth, mirroring
// the teacher's Handler{svc}/RegisterRoutes(g) shape.
package statusapi

import (
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dispatch-and-delivery/internal/models"
)

// PerformanceSource is internal/metrics.Meter's read surface.
type PerformanceSource interface {
	Report() models.PerformanceOverview
}

// SpatialSource is internal/spatial.Index's read surface.
type SpatialSource interface {
	Stats() models.SpatialStats
}

// ResourceSource is internal/admission.Admission's read surface.
type ResourceSource interface {
	Snapshot() []models.ResourceSnapshot
}

// BreakerSource is internal/breaker.Breaker's read surface.
type BreakerSource interface {
	Snapshot() []models.BreakerSnapshot
}

// JobSource is internal/scheduler.Scheduler's read surface.
type JobSource interface {
	Snapshot() []models.JobSnapshot
}

// CacheSource is internal/cache.AdaptiveCache's read surface.
type CacheSource interface {
	Stats() (hitRate float64, accesses int)
	Len() int
}

// ThreatSource is internal/threat.Meter's read surface.
type ThreatSource interface {
	SuspendedSubjects() []string
}

// Server wires every component snapshot behind Echo routes.
type Server struct {
	echo *echo.Echo

	performance PerformanceSource
	spatial     SpatialSource
	resources   ResourceSource
	breakers    BreakerSource
	jobs        JobSource
	cache       CacheSource
	threat      ThreatSource

	adminUser string
	adminHash string
	jwtSecret string
	now       func() time.Time
}

// New constructs a Server. Every *Source argument may be nil — its
// route then reports 501 rather than panicking, so a partially wired
// deployment (e.g. running only the scheduler) still serves what it
// has.
func New(
	performance PerformanceSource,
	spatial SpatialSource,
	resources ResourceSource,
	breakers BreakerSource,
	jobs JobSource,
	cache CacheSource,
	threat ThreatSource,
	adminUser, adminHash, jwtSecret string,
) *Server {
	s := &Server{
		echo:        echo.New(),
		performance: performance,
		spatial:     spatial,
		resources:   resources,
		breakers:    breakers,
		jobs:        jobs,
		cache:       cache,
		threat:      threat,
		adminUser:   adminUser,
		adminHash:   adminHash,
		jwtSecret:   jwtSecret,
		now:         time.Now,
	}
	s.echo.Validator = newRequestValidator()
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.Logger())
	s.registerRoutes()
	return s
}

// Echo exposes the underlying *echo.Echo, e.g. for cmd/dispatchd's
// http.Server wiring or tests driving requests directly.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.POST("/auth/login", s.Login)

	status := s.echo.Group("/status")
	status.Use(echojwt.WithConfig(echojwt.Config{SigningKey: []byte(s.jwtSecret)}))
	status.GET("/performance", s.GetPerformance)
	status.GET("/spatial", s.GetSpatial)
	status.GET("/resources", s.GetResources)
	status.GET("/breakers", s.GetBreakers)
	status.GET("/jobs", s.GetJobs)
	status.GET("/cache", s.GetCache)
	status.GET("/threat", s.GetThreat)
}
