package handler

import (
	"context"
	"net/http"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/apierror"
	"household-inventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// NotificationHandler handles notification listing, settings and generation.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.NotificationFilter{
		Type:     model.NotificationType(q.Get("type")),
		Priority: model.Priority(q.Get("priority")),
	}
	if raw := q.Get("is_read"); raw != "" {
		isRead, err := queryBool(r, "is_read")
		if err != nil {
			response.Error(w, err)
			return
		}
		filter.IsRead = &isRead
	}

	var err error
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		response.Error(w, err)
		return
	}
	if filter.PageSize, err = queryInt(r, "limit", 20); err != nil {
		response.Error(w, err)
		return
	}

	page, err := h.notifications.List(r.Context(), memberID(r), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, page.Notifications, page.Page, page.PageSize, page.Total)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.CountUnread(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, count)
}

// GetConfig handles GET /api/v1/notifications/config
func (h *NotificationHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.notifications.Config(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, cfg)
}

// UpdateConfig handles PUT /api/v1/notifications/config
func (h *NotificationHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var in service.NotificationConfigInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	cfg, err := h.notifications.UpdateConfig(r.Context(), memberID(r), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, cfg)
}

type generateRequest struct {
	Type model.NotificationType `json:"type"`
}

// Generate handles POST /api/v1/notifications/generate. Without a type every family runs.
func (h *NotificationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var in generateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			response.Error(w, err)
			return
		}
	}

	var generate func(ctx context.Context, memberID string) ([]model.Notification, error)
	switch in.Type {
	case "":
		generate = h.notifications.GenerateAll
	case model.NotificationExpiryWarning, model.NotificationExpiredAlert:
		generate = h.notifications.GenerateExpiry
	case model.NotificationLowStock:
		generate = h.notifications.GenerateLowStock
	case model.NotificationWasteReport:
		generate = h.notifications.GenerateWasteReport
	case model.NotificationPurchaseSuggestion:
		generate = h.notifications.GeneratePurchaseSuggestions
	case model.NotificationUsageReminder:
		generate = h.notifications.GenerateUsageReminder
	default:
		response.Error(w, apierror.ValidationError("unknown notification type "+string(in.Type),
			apierror.FieldError{Field: "type", Message: "unknown notification type"}))
		return
	}

	created, err := generate(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"created":       len(created),
		"notifications": created,
	})
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"updated": n})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), memberID(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Delete handles DELETE /api/v1/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Delete(r.Context(), memberID(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
