package handler

import (
	"net/http"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/apierror"
	"household-inventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	tracker *service.InventoryTracker
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(tracker *service.InventoryTracker) *InventoryHandler {
	return &InventoryHandler{tracker: tracker}
}

// List handles GET /api/v1/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ItemFilter{
		Status:   model.ItemStatus(q.Get("status")),
		Location: model.StorageLocation(q.Get("location")),
		Category: q.Get("category"),
		FoodID:   q.Get("food_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		response.Error(w, apierror.ValidationError("unknown status "+string(filter.Status)))
		return
	}
	if filter.Location != "" && !filter.Location.Valid() {
		response.Error(w, apierror.ValidationError("unknown location "+string(filter.Location)))
		return
	}

	var err error
	for name, dst := range map[string]*bool{
		"expiring":  &filter.Expiring,
		"expired":   &filter.Expired,
		"low_stock": &filter.LowStock,
	} {
		if *dst, err = queryBool(r, name); err != nil {
			response.Error(w, err)
			return
		}
	}
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		response.Error(w, err)
		return
	}
	if filter.PageSize, err = queryInt(r, "limit", 20); err != nil {
		response.Error(w, err)
		return
	}

	page, err := h.tracker.List(r.Context(), memberID(r), filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, page.Items, page.Page, page.PageSize, page.Total)
}

// Create handles POST /api/v1/inventory
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.tracker.Create(r.Context(), memberID(r), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, item)
}

// Stats handles GET /api/v1/inventory/stats
func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.Stats(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

// UseForRecipe handles POST /api/v1/inventory/use-for-recipe
func (h *InventoryHandler) UseForRecipe(w http.ResponseWriter, r *http.Request) {
	var in service.RecipeUsageInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.tracker.UseForRecipe(r.Context(), memberID(r), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Get handles GET /api/v1/inventory/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.tracker.Get(r.Context(), memberID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Update handles PATCH /api/v1/inventory/{id}
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.tracker.Update(r.Context(), memberID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Delete handles DELETE /api/v1/inventory/{id}
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Delete(r.Context(), memberID(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Use handles POST /api/v1/inventory/{id}/use
func (h *InventoryHandler) Use(w http.ResponseWriter, r *http.Request) {
	var in service.UseInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.tracker.Use(r.Context(), memberID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

type restockRequest struct {
	Amount float64 `json:"amount"`
}

// Restock handles POST /api/v1/inventory/{id}/restock
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	var in restockRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.tracker.Restock(r.Context(), memberID(r), chi.URLParam(r, "id"), in.Amount)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Waste handles POST /api/v1/inventory/{id}/waste
func (h *InventoryHandler) Waste(w http.ResponseWriter, r *http.Request) {
	var in service.WasteInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	event, err := h.tracker.Waste(r.Context(), memberID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, event)
}

// Usage handles GET /api/v1/inventory/{id}/usage
func (h *InventoryHandler) Usage(w http.ResponseWriter, r *http.Request) {
	events, err := h.tracker.UsageHistory(r.Context(), memberID(r), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, events)
}
