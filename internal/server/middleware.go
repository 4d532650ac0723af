package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	localClaims    = "claims"
	localRequestID = "requestId"

	headerAPIKey = "X-API-Key"
)

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	reqID := c.Get(fiber.HeaderXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, reqID)
	c.Locals(localRequestID, reqID)

	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	s.log.Info("http request",
		"requestId", reqID,
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start).String())
	return err
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	token := extractBearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "authorization token missing"))
	}
	claims, err := s.deps.Auth.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "invalid or expired token"))
	}
	c.Locals(localClaims, claims)
	return c.Next()
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if !claimsFrom(c).IsAdmin() {
		return c.Status(http.StatusForbidden).JSON(model.ErrorWithCode(model.ForbiddenCode, "access denied"))
	}
	return c.Next()
}

func (s *Server) requireAPIKey(c *fiber.Ctx) error {
	expected := strings.TrimSpace(s.cfg.Notify.APIKey)
	got := c.Get(headerAPIKey)
	if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "invalid api key"))
	}
	return c.Next()
}

// claimsFrom returns the session set by requireAuth. Handlers behind
// requireAuth can rely on it being non-nil.
func claimsFrom(c *fiber.Ctx) *service.Claims {
	claims, _ := c.Locals(localClaims).(*service.Claims)
	if claims == nil {
		return &service.Claims{}
	}
	return claims
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
