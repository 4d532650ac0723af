package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chemtech/maintenance-push/internal/model"
)

// Notification types carried in the "type" data key.
const (
	TypeNewRequest           = "new_request"
	TypeAssigned             = "assigned"
	TypeAssignedToTechnician = "assigned_to_technician"
	TypeStatusUpdate         = "status_update"
	TypeRequestClosed        = "request_closed"
	TypeRatingRequest        = "rating_request"
	TypeRatingReceived       = "rating_received"
	TypeTest                 = "test"
)

const (
	screenRequestDetails = "RequestDetails"
	screenRating         = "Rating"
	screenProfile        = "Profile"
)

// Ticket status codes reported by technicians.
const (
	StatusOnWay     = "on_way"
	StatusArrived   = "arrived"
	StatusSolved    = "solved"
	StatusNotSolved = "not_solved"
	StatusCanceled  = "canceled"
)

type statusText struct {
	icon    string
	message func(technician string) string
	// the message names the technician
	needsTechnician bool
}

var statusTexts = map[string]statusText{
	StatusOnWay: {"🚗", func(tech string) string {
		return fmt.Sprintf("الفني %s في الطريق إليك", tech)
	}, true},
	StatusArrived: {"📍", func(tech string) string {
		return fmt.Sprintf("الفني %s وصل إلى الموقع", tech)
	}, true},
	StatusSolved:    {"✅", func(string) string { return "تم حل المشكلة بنجاح ✅" }, false},
	StatusNotSolved: {"❌", func(string) string { return "لم يتم حل المشكلة" }, false},
	StatusCanceled:  {"🚫", func(string) string { return "تم إلغاء الطلب" }, false},
}

// ValidStatus reports whether status is a known ticket status code.
func ValidStatus(status string) bool {
	_, ok := statusTexts[status]
	return ok
}

// StatusNeedsTechnician reports whether the client message for status
// names the technician.
func StatusNeedsTechnician(status string) bool {
	return statusTexts[status].needsTechnician
}

// Sender is the part of Dispatcher the catalog needs.
type Sender interface {
	SendToUser(ctx context.Context, userID uint, userType model.UserType, payload model.Payload) (model.DispatchResult, error)
	SendToRole(ctx context.Context, role model.TeamRole, payload model.Payload) ([]model.DispatchResult, error)
}

// Catalog turns ticket lifecycle events into notifications.
type Catalog struct {
	sender Sender
}

// NewCatalog constructs Catalog.
func NewCatalog(sender Sender) *Catalog {
	return &Catalog{sender: sender}
}

// NotifyAdminNewRequest tells every admin about a new ticket.
func (c *Catalog) NotifyAdminNewRequest(ctx context.Context, ticketNumber, clientName string) ([]model.DispatchResult, error) {
	return c.sender.SendToRole(ctx, model.RoleAdmin, model.Payload{
		Title: "🔔 طلب صيانة جديد",
		Body:  fmt.Sprintf("طلب جديد #%s من %s", ticketNumber, clientName),
		Data: map[string]string{
			"type":         TypeNewRequest,
			"ticketNumber": ticketNumber,
			"clientName":   clientName,
			"screen":       screenRequestDetails,
		},
	})
}

// NotifyTechnicianAssigned tells a technician a ticket was assigned to them.
func (c *Catalog) NotifyTechnicianAssigned(ctx context.Context, technicianID uint, ticketNumber, clientName string) (model.DispatchResult, error) {
	return c.sender.SendToUser(ctx, technicianID, model.UserTypeTechnician, model.Payload{
		Title: "🔧 تم إسناد طلب صيانة لك",
		Body:  fmt.Sprintf("طلب #%s من العميل %s", ticketNumber, clientName),
		Data: map[string]string{
			"type":         TypeAssigned,
			"ticketNumber": ticketNumber,
			"clientName":   clientName,
			"screen":       screenRequestDetails,
		},
	})
}

// NotifyClientRequestAssigned tells a client which technician took the ticket.
func (c *Catalog) NotifyClientRequestAssigned(ctx context.Context, clientID uint, ticketNumber, technicianName string) (model.DispatchResult, error) {
	return c.sender.SendToUser(ctx, clientID, model.UserTypeClient, model.Payload{
		Title: "✅ تم إسناد طلبك",
		Body:  fmt.Sprintf("تم إسناد طلب #%s للفني %s", ticketNumber, technicianName),
		Data: map[string]string{
			"type":           TypeAssignedToTechnician,
			"ticketNumber":   ticketNumber,
			"technicianName": technicianName,
			"screen":         screenRequestDetails,
		},
	})
}

// NotifyClientStatusUpdate reports a ticket status change to the client.
// An unknown status, or a missing technician name for on_way and arrived,
// fails before anything is sent.
func (c *Catalog) NotifyClientStatusUpdate(ctx context.Context, clientID uint, ticketNumber, status, technicianName string) (model.DispatchResult, error) {
	text, ok := statusTexts[status]
	if !ok {
		return model.DispatchResult{}, &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", status),
			Reason:  ErrUnknownStatus,
		}
	}
	if text.needsTechnician && strings.TrimSpace(technicianName) == "" {
		return model.DispatchResult{}, &ValidationError{
			Field:   "technicianName",
			Message: fmt.Sprintf("technicianName is required for status %q", status),
			Reason:  ErrValidation,
		}
	}
	return c.sender.SendToUser(ctx, clientID, model.UserTypeClient, model.Payload{
		Title: fmt.Sprintf("%s تحديث حالة الطلب #%s", text.icon, ticketNumber),
		Body:  text.message(technicianName),
		Data: map[string]string{
			"type":           TypeStatusUpdate,
			"ticketNumber":   ticketNumber,
			"status":         status,
			"technicianName": technicianName,
			"screen":         screenRequestDetails,
		},
	})
}

// NotifyAdminRequestClosed tells every admin a ticket was closed.
func (c *Catalog) NotifyAdminRequestClosed(ctx context.Context, ticketNumber, status, technicianName string) ([]model.DispatchResult, error) {
	statusLabel, icon := "لم يتم الحل", "❌"
	if status == StatusSolved {
		statusLabel, icon = "تم الحل", "✅"
	}
	return c.sender.SendToRole(ctx, model.RoleAdmin, model.Payload{
		Title: fmt.Sprintf("%s إغلاق طلب #%s", icon, ticketNumber),
		Body:  fmt.Sprintf("%s بواسطة %s", statusLabel, technicianName),
		Data: map[string]string{
			"type":           TypeRequestClosed,
			"ticketNumber":   ticketNumber,
			"status":         status,
			"technicianName": technicianName,
			"screen":         screenRequestDetails,
		},
	})
}

// NotifyClientRatingRequest asks a client to rate a finished ticket.
func (c *Catalog) NotifyClientRatingRequest(ctx context.Context, clientID uint, ticketNumber string) (model.DispatchResult, error) {
	return c.sender.SendToUser(ctx, clientID, model.UserTypeClient, model.Payload{
		Title: "⭐ قيّم تجربتك",
		Body:  fmt.Sprintf("يرجى تقييم الخدمة للطلب #%s", ticketNumber),
		Data: map[string]string{
			"type":         TypeRatingRequest,
			"ticketNumber": ticketNumber,
			"screen":       screenRating,
		},
	})
}

// NotifyTechnicianRatingReceived tells a technician about a new rating.
func (c *Catalog) NotifyTechnicianRatingReceived(ctx context.Context, technicianID uint, stars int, ticketNumber string) (model.DispatchResult, error) {
	if stars < 1 || stars > 5 {
		return model.DispatchResult{}, invalid("stars", "stars must be between 1 and 5")
	}
	return c.sender.SendToUser(ctx, technicianID, model.UserTypeTechnician, model.Payload{
		Title: "⭐ تقييم جديد",
		Body:  fmt.Sprintf("حصلت على %d نجوم للطلب #%s", stars, ticketNumber),
		Data: map[string]string{
			"type":         TypeRatingReceived,
			"stars":        strconv.Itoa(stars),
			"ticketNumber": ticketNumber,
			"screen":       screenProfile,
		},
	})
}

// SendTest sends a test notification to the caller's own devices.
func (c *Catalog) SendTest(ctx context.Context, userID uint, userType model.UserType, title, body string) (model.DispatchResult, error) {
	if title == "" {
		title = "Test Notification"
	}
	if body == "" {
		body = "This is a test notification"
	}
	return c.sender.SendToUser(ctx, userID, userType, model.Payload{
		Title: title,
		Body:  body,
		Data:  map[string]string{"type": TypeTest},
	})
}
