package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"household-inventory-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", model.Invalid("quantity", "must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"permission", &model.PermissionError{MemberID: "m2", Resource: "item", ID: "i1"}, http.StatusForbidden, "FORBIDDEN"},
		{"not found", model.NotFound("item", "i1"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("load: %w", model.NotFound("food", "f1")), http.StatusNotFound, "NOT_FOUND"},
		{"insufficient", &model.InsufficientStockError{ItemID: "i1", Requested: 11, Available: 10}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"shortage", &model.ShortageError{RecipeID: "r1"}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"dependency", model.Dependency("update item", errors.New("connection refused")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"already mapped", Unauthorized(""), http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestFromErrorHidesDependencyDetail(t *testing.T) {
	got := FromError(model.Dependency("update item", errors.New("dial tcp 10.0.0.5:5432")))
	assert.NotContains(t, got.Message, "10.0.0.5")
}

func TestInsufficientStockDetails(t *testing.T) {
	got := FromError(&model.InsufficientStockError{ItemID: "i1", Requested: 11, Available: 10})

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Details struct {
				ItemID    string  `json:"item_id"`
				Shortfall float64 `json:"shortfall"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(got.ToJSON(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Error.Code)
	assert.Equal(t, "i1", body.Error.Details.ItemID)
	assert.Equal(t, 1.0, body.Error.Details.Shortfall)
}

func TestValidationErrorDetails(t *testing.T) {
	got := FromError(model.Invalid("amount", "must be positive"))
	details, ok := got.Details.([]FieldError)
	require.True(t, ok)
	assert.Equal(t, []FieldError{{Field: "amount", Message: "must be positive"}}, details)

	assert.Nil(t, ValidationError("bad").Details)
}
