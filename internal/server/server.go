// Package server exposes the lifecycle engines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"keyhouse/internal/bootstrap"
	"keyhouse/internal/config"
	"keyhouse/internal/middleware"
	"keyhouse/internal/models"
	"keyhouse/internal/repository"
	"keyhouse/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP collector. fiberprometheus
// registers on the default registry, which rejects a second registration.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("keyhouse-api")
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	app    *fiber.App
	svc    *service.Services
}

// NewServer creates a server over an initialized runtime.
func NewServer(rt *bootstrap.Runtime) *Server {
	return &Server{
		config: rt.Config,
		db:     rt.DB,
		redis:  rt.Redis,
		svc:    rt.Services,
	}
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient disables caching, event delivery and rate limiting.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	return &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		svc:    service.NewServices(repository.NewStore(db), redisClient, bootstrap.Settings(cfg)),
	}
}

// limiterStore returns the rate limit backend, or a nil interface when
// Redis is not configured.
func (s *Server) limiterStore() redis.Cmdable {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "keyhouse API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(httpMetrics().Middleware)
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	httpMetrics().RegisterAt(app, "/metrics")

	api := app.Group("/api")
	protected := api.Group("", middleware.AuthRequired(s.config.JWTSecret), middleware.ContextMiddleware())

	protected.Get("/feature-flags", s.GetFeatureFlags)

	// Availability
	protected.Post("/availability/templates", s.CreateDayAvailability)
	protected.Post("/availability/templates/:id/slots", s.GenerateSlot)
	protected.Get("/availability/templates/:id", s.GetDayAvailability)
	protected.Get("/slots/:id", s.GetSlot)
	orgs := protected.Group("/organizations/:orgId")
	orgs.Get("/availability/templates", s.ListDayAvailability)
	orgs.Get("/slots", s.ListAvailableSlots)
	orgs.Get("/inspections", s.ListOrganizationInspections)

	// Inspections and reschedules
	inspections := protected.Group("/inspections")
	inspections.Post("/", middleware.RateLimit(
		s.limiterStore(), 10, time.Minute, "book_inspection"), s.BookInspection)
	inspections.Post("/:id/cancel", s.CancelInspection)
	inspections.Post("/:id/outcome", s.RecordInspectionOutcome)
	inspections.Post("/:id/reschedules", s.ProposeReschedule)
	inspections.Get("/:id/reschedules", s.ListReschedules)
	inspections.Get("/:id", s.GetInspection)

	reschedules := protected.Group("/reschedules")
	reschedules.Post("/:id/accept", s.AcceptReschedule)
	reschedules.Post("/:id/reject", s.RejectReschedule)
	reschedules.Get("/:id", s.GetReschedule)

	// Review engine
	stages := protected.Group("/review-stages")
	stages.Get("/", s.ListReviewStages)
	stages.Post("/", s.ConfigureReviewStage)
	stages.Patch("/:id", s.SetReviewStageEnabled)

	reviews := protected.Group("/review-requests")
	reviews.Post("/", s.CreateReviewRequest)
	reviews.Post("/:id/approvals", s.RecordApproval)
	reviews.Get("/:id", s.GetReviewRequest)

	// Applications
	apps := protected.Group("/applications")
	apps.Post("/", s.CreateApplication)
	apps.Get("/", s.ListMyApplications)
	apps.Get("/:id/history", s.GetApplicationHistory)
	apps.Get("/:id/next-stages", s.GetNextStages)
	apps.Post("/:id/advance", s.AdvanceApplication)
	apps.Post("/:id/decline", s.DeclineApplication)
	apps.Post("/:id/eligibility", s.RecordEligibility)
	apps.Post("/:id/offer-letter/accept", s.AcceptOfferLetter)
	apps.Post("/:id/offer-letter", s.IssueOfferLetter)
	apps.Post("/:id/escrow", s.OpenEscrow)
	apps.Post("/:id/loan-offer", s.ChooseLoanOffer)
	apps.Get("/:id", s.GetApplication)

	// Condition precedents
	precedents := protected.Group("/condition-precedents")
	precedents.Post("/:id/reviews", s.MarkPrecedentReviewed)
	precedents.Delete("/:id/reviews/:reviewer", s.RevokePrecedentReview)
	precedents.Put("/:id/due-date", s.SetPrecedentDueDate)
	precedents.Post("/:id/expire", s.ExpirePrecedent)
	precedents.Get("/:id", s.GetPrecedent)

	// Loans
	loans := protected.Group("/loan-decisions")
	loans.Post("/:id/decision", s.DecideLoan)
	loans.Get("/:id/repayments", s.ListRepayments)
	loans.Get("/:id", s.GetLoanDecision)
	protected.Post("/repayments/:id/pay", s.RecordRepayment)

	// Platform boundary: payment provider confirmations and periodic jobs
	protected.Post("/payments/confirmations", middleware.RateLimitWithPolicy(
		s.limiterStore(), 120, time.Minute, middleware.FailOpen, "payment_confirmation"), s.ConfirmPayment)
	jobs := protected.Group("/jobs")
	jobs.Get("/", s.ListJobs)
	jobs.Post("/:name/run", s.RunJob)
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports database and Redis health. A missing Redis is
// reported but does not fail readiness since every consumer degrades.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
