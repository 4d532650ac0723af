package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/service"
	"github.com/gofiber/fiber/v2"
)

// flexString accepts a JSON string or number. The ticketing backend sends
// ticket numbers and ids in either form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// id returns the value as a user id; ok is false when it is not a positive integer.
func (f flexString) id() (uint, bool) {
	n, err := strconv.ParseUint(string(f), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

type eventBody struct {
	TicketNumber   flexString `json:"ticketNumber"`
	ClientName     string     `json:"clientName"`
	ClientID       flexString `json:"clientId"`
	TechnicianID   flexString `json:"technicianId"`
	TechnicianName string     `json:"technicianName"`
	Status         string     `json:"status"`
	Stars          flexString `json:"stars"`
}

func parseEvent(c *fiber.Ctx) (eventBody, bool) {
	var body eventBody
	if err := c.BodyParser(&body); err != nil {
		return body, false
	}
	return body, true
}

func (s *Server) missingFields(c *fiber.Ctx) error {
	return s.badRequest(c, "missing required fields")
}

func (s *Server) handleAdminNewRequest(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	if body.TicketNumber == "" || body.ClientName == "" {
		return s.missingFields(c)
	}
	results, err := s.deps.Catalog.NotifyAdminNewRequest(c.UserContext(), body.TicketNumber.String(), body.ClientName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("notification sent to admins", results))
}

func (s *Server) handleTechnicianAssigned(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	techID, ok := body.TechnicianID.id()
	if !ok || body.TicketNumber == "" || body.ClientName == "" {
		return s.missingFields(c)
	}
	res, err := s.deps.Catalog.NotifyTechnicianAssigned(c.UserContext(), techID, body.TicketNumber.String(), body.ClientName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}

func (s *Server) handleClientAssigned(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	clientID, ok := body.ClientID.id()
	if !ok || body.TicketNumber == "" || body.TechnicianName == "" {
		return s.missingFields(c)
	}
	res, err := s.deps.Catalog.NotifyClientRequestAssigned(c.UserContext(), clientID, body.TicketNumber.String(), body.TechnicianName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}

func (s *Server) handleClientStatusUpdate(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	clientID, ok := body.ClientID.id()
	if !ok || body.TicketNumber == "" || body.Status == "" {
		return s.missingFields(c)
	}
	if !service.ValidStatus(body.Status) {
		return s.badRequest(c, "unknown status "+strconv.Quote(body.Status))
	}
	if service.StatusNeedsTechnician(body.Status) && strings.TrimSpace(body.TechnicianName) == "" {
		return s.missingFields(c)
	}
	res, err := s.deps.Catalog.NotifyClientStatusUpdate(c.UserContext(), clientID, body.TicketNumber.String(), body.Status, body.TechnicianName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}

func (s *Server) handleAdminRequestClosed(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	if body.TicketNumber == "" || body.Status == "" || body.TechnicianName == "" {
		return s.missingFields(c)
	}
	results, err := s.deps.Catalog.NotifyAdminRequestClosed(c.UserContext(), body.TicketNumber.String(), body.Status, body.TechnicianName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success("notification sent to admins", results))
}

func (s *Server) handleClientRatingRequest(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	clientID, ok := body.ClientID.id()
	if !ok || body.TicketNumber == "" {
		return s.missingFields(c)
	}
	res, err := s.deps.Catalog.NotifyClientRatingRequest(c.UserContext(), clientID, body.TicketNumber.String())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}

func (s *Server) handleTechnicianRatingReceived(c *fiber.Ctx) error {
	body, ok := parseEvent(c)
	if !ok {
		return s.badRequest(c, "invalid request body")
	}
	techID, ok := body.TechnicianID.id()
	if !ok || body.TicketNumber == "" || body.Stars == "" {
		return s.missingFields(c)
	}
	stars, convErr := strconv.Atoi(body.Stars.String())
	if convErr != nil {
		return s.badRequest(c, "stars must be a number")
	}
	res, err := s.deps.Catalog.NotifyTechnicianRatingReceived(c.UserContext(), techID, stars, body.TicketNumber.String())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(model.Success(res.Message, res))
}
