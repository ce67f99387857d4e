package handler

import (
	"net/http"

	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/response"
)

// ExpiryHandler exposes expiry summaries, trends and disposal.
type ExpiryHandler struct {
	monitor *service.ExpiryMonitor
}

// NewExpiryHandler creates a new expiry handler.
func NewExpiryHandler(monitor *service.ExpiryMonitor) *ExpiryHandler {
	return &ExpiryHandler{monitor: monitor}
}

// Summary handles GET /api/v1/expiry/summary
func (h *ExpiryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.monitor.Summary(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, summary)
}

// Trends handles GET /api/v1/expiry/trends?days=
func (h *ExpiryHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		response.Error(w, err)
		return
	}

	report, err := h.monitor.Trends(r.Context(), memberID(r), days)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, report)
}

type disposeRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// Dispose handles POST /api/v1/expiry/dispose. An empty body disposes every expired item.
func (h *ExpiryHandler) Dispose(w http.ResponseWriter, r *http.Request) {
	var in disposeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			response.Error(w, err)
			return
		}
	}

	report, err := h.monitor.DisposeExpired(r.Context(), memberID(r), in.ItemIDs)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, report)
}

// Notify handles POST /api/v1/expiry/notify
func (h *ExpiryHandler) Notify(w http.ResponseWriter, r *http.Request) {
	created, err := h.monitor.NotifyExpiry(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"created":       len(created),
		"notifications": created,
	})
}
