package handler

import (
	"net/http"

	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// RecipeHandler handles recipe matching and cooking.
type RecipeHandler struct {
	recipes *service.RecipeService
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(recipes *service.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes}
}

// Recommendations handles GET /api/v1/recipes/recommendations
func (h *RecipeHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recipes.Recommend(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, recs)
}

// Expiring handles GET /api/v1/recipes/expiring
func (h *RecipeHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	out, err := h.recipes.ForExpiring(r.Context(), memberID(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, out)
}

// History handles GET /api/v1/recipes/history?limit=
func (h *RecipeHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.Error(w, err)
		return
	}

	records, err := h.recipes.CookHistory(r.Context(), memberID(r), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, records)
}

// Match handles GET /api/v1/recipes/{id}/match?servings=
func (h *RecipeHandler) Match(w http.ResponseWriter, r *http.Request) {
	servings, err := queryInt(r, "servings", 1)
	if err != nil {
		response.Error(w, err)
		return
	}

	match, err := h.recipes.Match(r.Context(), memberID(r), chi.URLParam(r, "id"), servings)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, match)
}

type cookRequest struct {
	Servings int `json:"servings"`
}

// Cook handles POST /api/v1/recipes/{id}/cook
func (h *RecipeHandler) Cook(w http.ResponseWriter, r *http.Request) {
	in := cookRequest{Servings: 1}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			response.Error(w, err)
			return
		}
	}

	result, err := h.recipes.Cook(r.Context(), memberID(r), chi.URLParam(r, "id"), in.Servings)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, result)
}
