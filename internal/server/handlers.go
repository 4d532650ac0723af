package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/service"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	user, err := s.deps.Auth.RegisterClient(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(model.Success("account created", user))
}

type loginBody struct {
	Email        string          `json:"email"`
	EmailOrPhone string          `json:"emailOrPhone"`
	Password     string          `json:"password"`
	FCMToken     string          `json:"fcmToken"`
	DeviceInfo   json.RawMessage `json:"deviceInfo"`
}

func (b loginBody) request(login string) service.LoginRequest {
	return service.LoginRequest{
		Login:      login,
		Password:   b.Password,
		FCMToken:   b.FCMToken,
		DeviceInfo: b.DeviceInfo,
	}
}

func (s *Server) handleClientLogin(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	res, err := s.deps.Auth.LoginClient(c.UserContext(), body.request(body.Email))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("login successful", res))
}

func (s *Server) handleTeamLogin(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	res, err := s.deps.Auth.LoginTeamMember(c.UserContext(), body.request(body.EmailOrPhone))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("login successful", res))
}

func (s *Server) handleAddTeamMember(c *fiber.Ctx) error {
	var req service.TeamMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	member, err := s.deps.Auth.AddTeamMember(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(model.Success("user added successfully", member))
}

func (s *Server) handleSaveToken(c *fiber.Ctx) error {
	var body struct {
		Token      string          `json:"token"`
		DeviceInfo json.RawMessage `json:"deviceInfo"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Token) == "" {
		return s.badRequest(c, "token is required")
	}
	claims := claimsFrom(c)
	saved, err := s.deps.Tokens.SaveToken(c.UserContext(), claims.ID, claims.UserType(), body.Token, body.DeviceInfo)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("token saved successfully", fiber.Map{
		"id":       saved.ID,
		"userType": saved.UserType,
	}))
}

func (s *Server) handleRemoveToken(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	if err := s.deps.Tokens.RemoveToken(c.UserContext(), body.Token); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("token removed successfully", nil))
}

func (s *Server) handleTestNotification(c *fiber.Ctx) error {
	var body struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	// an empty body falls back to the default test texts
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return s.badRequest(c, "invalid request body")
		}
	}
	claims := claimsFrom(c)
	res, err := s.deps.Catalog.SendTest(c.UserContext(), claims.ID, claims.UserType(), body.Title, body.Body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}

func (s *Server) handleCleanup(c *fiber.Ctx) error {
	res, err := s.deps.Tokens.PurgeInvalid(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("cleanup finished", res))
}

func (s *Server) handleDebugTokens(c *fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 64)
	if err != nil {
		return s.badRequest(c, "userId must be a positive integer")
	}
	claims := claimsFrom(c)
	if !claims.IsAdmin() && uint(userID) != claims.ID {
		return c.Status(http.StatusForbidden).JSON(model.ErrorWithCode(model.ForbiddenCode, "access denied"))
	}
	userType := claims.UserType()
	// admins may inspect any principal
	if raw := c.Query("userType"); raw != "" && claims.IsAdmin() {
		parsed, ok := model.ParseUserType(raw)
		if !ok {
			return s.badRequest(c, "userType must be client, technician or admin")
		}
		userType = parsed
	}
	views, err := s.deps.Tokens.UserTokens(c.UserContext(), uint(userID), userType)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"userId":   userID,
		"userType": userType,
		"count":    len(views),
		"tokens":   views,
	}))
}

func (s *Server) handleLogList(c *fiber.Ctx) error {
	page, err := s.deps.Logs.Query(c.UserContext(), parseLogFilter(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", page))
}

func (s *Server) handleLogCountStatus(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.deps.Logs.CountByStatus(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountType(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.deps.Logs.CountByType(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountError(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.deps.Logs.CountByErrorCode(c.UserContext(), begin, end)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("ok", data))
}

func parseLogFilter(c *fiber.Ctx) model.DispatchLogFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	begin, end := parseTimeRange(c)
	return model.DispatchLogFilter{
		UserType:  c.Query("userType"),
		Status:    c.Query("status"),
		Type:      c.Query("type"),
		BeginTime: begin,
		EndTime:   end,
		Page:      page,
		PageSize:  pageSize,
	}
}

func parseTimeRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	return parseTime(c.Query("beginTime")), parseTime(c.Query("endTime"))
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
