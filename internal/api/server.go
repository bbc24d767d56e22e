// Package api implements the HTTP external interface (spec section 6): a
// Fiber server exposing the user, device, and API-key endpoint surface
// over the dose lifecycle engine's components.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dosecore/backend/internal/auth"
	"github.com/dosecore/backend/internal/clock"
	"github.com/dosecore/backend/internal/config"
	"github.com/dosecore/backend/internal/correlator"
	"github.com/dosecore/backend/internal/dose"
	"github.com/dosecore/backend/internal/metrics"
	"github.com/dosecore/backend/internal/query"
	"github.com/dosecore/backend/internal/store"
	"github.com/dosecore/backend/internal/sweeper"
)

// Server wires every component into the HTTP surface.
type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	clock  clock.Clock
	logger *zap.Logger

	engine      *dose.Machine
	correlator  *correlator.Correlator
	surface     *query.Surface
	sessions    *auth.Sessions
	deviceLimit *auth.DeviceLimiter
	sweeper     *sweeper.Sweeper
	metrics     *metrics.Metrics
}

// New constructs the API server and registers every route. m is the
// process-wide metrics registry shared with the dose engine and sweeper,
// so transition and tick counters observed outside the HTTP layer still
// surface on /metrics.
func New(cfg *config.Config, st *store.Store, sw *sweeper.Sweeper, logger *zap.Logger, m *metrics.Metrics) *Server {
	c := clock.Real()
	engine := sw.Engine()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	s := &Server{
		app:         app,
		config:      cfg,
		store:       st,
		clock:       c,
		logger:      logger,
		engine:      engine,
		correlator:  correlator.New(st, engine, c, logger, cfg.Correlator.Tolerance(), m),
		surface:     query.New(st, c),
		sessions:    auth.NewSessions(cfg.Security.JWTSecret, time.Duration(cfg.Security.SessionTTLHours)*time.Hour),
		deviceLimit: auth.NewDeviceLimiter(cfg.Security.DeviceEventRPM, cfg.Security.DeviceEventBurst),
		sweeper:     sw,
		metrics:     m,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Device-ID, X-Device-Auth-Token",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	apiGroup := s.app.Group("/api")

	apiGroup.Post("/register", s.handleRegister)
	apiGroup.Post("/login", s.handleLogin)
	apiGroup.Delete("/users/:email", s.handleDeleteUser)

	// Medication CRUD is unauthenticated in the reference; preserved and
	// flagged per spec section 9's open question.
	apiGroup.Get("/medications", s.handleListMedications)
	apiGroup.Post("/medications", s.handleCreateMedication)
	apiGroup.Get("/medications/:id", s.handleGetMedication)
	apiGroup.Put("/medications/:id", s.handleUpdateMedication)
	apiGroup.Delete("/medications/:id", s.handleDeleteMedication)

	// Device routes are registered on apiGroup before userAuthMiddleware is
	// attached below: Fiber's router walks registered layers in the order
	// they were added, and a Use() layer matches its path prefix for every
	// method, so a device route added afterward would still be intercepted
	// by user-session auth and never reach deviceAuthMiddleware.
	devices := apiGroup.Group("/devices")
	devices.Post("/dispenser/event", s.deviceAuthMiddleware(store.DeviceDispenser), s.handleDeviceEvent)
	devices.Post("/band/event", s.deviceAuthMiddleware(store.DeviceBand), s.handleDeviceEvent)

	userGroup := apiGroup.Use(s.userAuthMiddleware())
	userGroup.Get("/keys", s.handleListAPIKeys)
	userGroup.Post("/keys/generate", s.handleGenerateAPIKey)
	userGroup.Delete("/keys/:id", s.handleRevokeAPIKey)

	userGroup.Get("/doses/today", s.handleDosesToday)
	userGroup.Get("/doses/upcoming", s.handleDosesUpcoming)
	userGroup.Get("/stats/adherence", s.handleAdherence)
	userGroup.Get("/stats/weekly", s.handleWeekly)
	userGroup.Get("/stats/calendar", s.handleCalendar)
	userGroup.Get("/history/doses", s.handleHistory)

	userGroup.Post("/health/log-symptom", s.handleLogSymptom)
	userGroup.Get("/health/symptoms", s.handleListSymptoms)
	userGroup.Get("/health/symptom-correlations", s.handleSymptomCorrelations)

	userGroup.Get("/reports/doctor-visit", s.handleDoctorVisitReport)
	userGroup.Get("/inventory", s.handleInventory)

	userGroup.Post("/caregivers/add", s.handleAddCaregiver)
	userGroup.Get("/caregivers/dashboard", s.handleCaregiverDashboard)
	userGroup.Post("/caregivers/alert-rules", s.handleCreateAlertRule)
	userGroup.Get("/caregivers/alert-rules", s.handleListAlertRules)
}

// App exposes the underlying Fiber app, for the entrypoint to call
// Listen/ShutdownWithContext.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops accepting new connections and drains
// in-flight requests, honoring transport-level cancellation per spec
// section 5.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
