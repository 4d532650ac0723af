package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chemtech/maintenance-push/internal/config"
	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/service"
	"github.com/chemtech/maintenance-push/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Pinger is anything the health endpoint can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the services the HTTP layer calls into.
type Deps struct {
	Auth     *service.AuthService
	Tokens   *service.TokenService
	Catalog  *service.Catalog
	Logs     *service.DispatchLogService
	Database Pinger
	Push     Pinger
	// Metrics is served on cfg.Metrics.Path when set.
	Metrics http.Handler
}

// Server wires HTTP handlers.
type Server struct {
	app  *fiber.App
	cfg  *config.Config
	deps Deps
	log  *logger.Logger
}

// New builds a server instance.
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log.With("component", "http"),
	}
	s.app = fiber.New(fiber.Config{
		IdleTimeout:  cfg.HTTP.ReadTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		AppName:      "maintenance-push",
		ErrorHandler: s.handleFiberError,
	})
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(s.requestLogger)

	if s.deps.Metrics != nil {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.app.Get(path, adaptor.HTTPHandler(s.deps.Metrics))
	}

	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.handleRegister)
	authGroup.Post("/login", s.handleClientLogin)

	team := api.Group("/maintenance-team")
	team.Post("/login", s.handleTeamLogin)
	team.Post("/users", s.requireAuth, s.requireAdmin, s.handleAddTeamMember)

	notifications := api.Group("/notifications")
	notifications.Post("/save-token", s.requireAuth, s.handleSaveToken)
	notifications.Post("/remove-token", s.requireAuth, s.handleRemoveToken)
	notifications.Post("/test", s.requireAuth, s.handleTestNotification)
	notifications.Get("/cleanup", s.requireAuth, s.requireAdmin, s.handleCleanup)
	notifications.Get("/debug/:userId", s.requireAuth, s.handleDebugTokens)

	logs := notifications.Group("/logs", s.requireAuth, s.requireAdmin)
	logs.Get("/", s.handleLogList)
	logs.Get("/count/status", s.handleLogCountStatus)
	logs.Get("/count/type", s.handleLogCountType)
	logs.Get("/count/error", s.handleLogCountError)

	// called by the ticketing backend on lifecycle events
	notifications.Post("/admin/new-request", s.requireAPIKey, s.handleAdminNewRequest)
	notifications.Post("/technician/assigned", s.requireAPIKey, s.handleTechnicianAssigned)
	notifications.Post("/client/assigned", s.requireAPIKey, s.handleClientAssigned)
	notifications.Post("/client/status-update", s.requireAPIKey, s.handleClientStatusUpdate)
	notifications.Post("/admin/request-closed", s.requireAPIKey, s.handleAdminRequestClosed)
	notifications.Post("/client/rating-request", s.requireAPIKey, s.handleClientRatingRequest)
	notifications.Post("/technician/rating-received", s.requireAPIKey, s.handleTechnicianRatingReceived)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	resp := model.HealthStatus{Status: "ok", Database: "up", Push: "up"}
	code := http.StatusOK
	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			resp.Status, resp.Database, resp.Error = "down", "down", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.deps.Push == nil {
		resp.Push = "not configured"
		if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	} else if err := s.deps.Push.Ping(ctx); err != nil {
		resp.Push = "down"
		if resp.Status == "ok" {
			resp.Status, resp.Error = "degraded", err.Error()
		}
	}
	return c.Status(code).JSON(resp)
}

// fail maps service errors onto HTTP status codes.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(http.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, ve.Message))
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "invalid credentials"))
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(model.ErrorWithCode(model.NotFoundCode, "not found"))
	}
	s.log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(http.StatusInternalServerError).JSON(model.Error("internal server error"))
}

func (s *Server) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, msg))
}

func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := model.ErrorCode
		if fe.Code == http.StatusNotFound {
			code = model.NotFoundCode
		}
		return c.Status(fe.Code).JSON(model.ErrorWithCode(code, fe.Message))
	}
	return s.fail(c, err)
}
