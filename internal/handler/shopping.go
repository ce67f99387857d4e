package handler

import (
	"net/http"

	"household-inventory-api/internal/model"
	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/response"
)

// ShoppingHandler handles purchase suggestions, list optimization and purchase recording.
type ShoppingHandler struct {
	shopping *service.ShoppingService
}

// NewShoppingHandler creates a new shopping handler.
func NewShoppingHandler(shopping *service.ShoppingService) *ShoppingHandler {
	return &ShoppingHandler{shopping: shopping}
}

// Suggestions handles GET /api/v1/shopping/suggestions
func (h *ShoppingHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.shopping.Suggestions(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, suggestions)
}

type optimizeRequest struct {
	Items []model.ShoppingListItem `json:"items"`
}

// Optimize handles POST /api/v1/shopping/optimize
func (h *ShoppingHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var in optimizeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.shopping.OptimizeList(r.Context(), memberID(r), in.Items)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

type purchaseRequest struct {
	Purchases []model.Purchase `json:"purchases"`
}

// Purchases handles POST /api/v1/shopping/purchases
func (h *ShoppingHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	var in purchaseRequest
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.shopping.RecordPurchase(r.Context(), memberID(r), in.Purchases)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, result)
}
