package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"household-inventory-api/internal/handler"
	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/model"
	"household-inventory-api/internal/repository"
	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total int `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	store.AddMember("m1")
	store.AddMember("m2")
	store.AddFood(model.Food{ID: "food-milk", Name: "Milk", Category: "dairy", DefaultUnit: "ml"})
	store.AddFood(model.Food{ID: "food-eggs", Name: "Eggs", Category: "dairy", DefaultUnit: "pcs"})

	clk := clock.NewFixed(time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))
	m := metrics.New()
	logger := zap.NewNop()

	seasonal, err := service.DefaultSeasonalTable()
	require.NoError(t, err)

	tracker := service.NewInventoryTracker(store, nil, clk, m, logger, service.TrackerConfig{})
	shopping := service.NewShoppingService(store, nil, tracker, seasonal, clk, logger)
	notifications := service.NewNotificationService(store, shopping, clk, m, logger, service.NotificationConfig{})
	monitor := service.NewExpiryMonitor(store, notifications, clk, m, logger, service.MonitorConfig{})
	recipes := service.NewRecipeService(store, clk, m, logger)
	scheduler := service.NewScheduler(monitor, notifications, service.SchedulerConfig{}, logger)

	r := New(Config{
		Handler:             handler.New("household-inventory-api", "test", nil, clk),
		InventoryHandler:    handler.NewInventoryHandler(tracker),
		ExpiryHandler:       handler.NewExpiryHandler(monitor),
		NotificationHandler: handler.NewNotificationHandler(notifications),
		RecipeHandler:       handler.NewRecipeHandler(recipes),
		ShoppingHandler:     handler.NewShoppingHandler(shopping),
		AdminHandler:        handler.NewAdminHandler(scheduler, store, "memory", clk),
		Metrics:             m.Handler(),
		AdminAPIKeys:        []string{"secret"},
		Logger:              logger,
	})
	return &testServer{t: t, handler: r}
}

func (s *testServer) do(method, path, member string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if member != "" {
		req.Header.Set("X-Member-ID", member)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) createItem(member string, body map[string]interface{}) model.InventoryItem {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/v1/inventory", member, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var item model.InventoryItem
	require.NoError(s.t, json.Unmarshal(env.Data, &item))
	return item
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = s.do(http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemberHeaderRequired(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(http.MethodGet, "/api/v1/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestInventoryLifecycle(t *testing.T) {
	s := newTestServer(t)
	item := s.createItem("m1", map[string]interface{}{
		"food_id": "food-eggs", "quantity": 10, "unit": "pcs", "min_stock_threshold": 3,
	})
	assert.Equal(t, model.StatusFresh, item.Status)

	rec, env := s.do(http.MethodPost, "/api/v1/inventory/"+item.ID+"/use", "m1", map[string]interface{}{"amount": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var used model.InventoryItem
	require.NoError(t, json.Unmarshal(env.Data, &used))
	assert.Equal(t, 2.0, used.Quantity)
	assert.Equal(t, model.StatusLowStock, used.Status)

	rec, env = s.do(http.MethodPost, "/api/v1/inventory/"+item.ID+"/use", "m1", map[string]interface{}{"amount": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/inventory/"+item.ID, "m2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/inventory/missing", "m1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/inventory?low_stock=true", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)

	rec, _ = s.do(http.MethodGet, "/api/v1/inventory/"+item.ID+"/usage", "m1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/api/v1/inventory/"+item.ID, "m1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/v1/inventory/"+item.ID, "m1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(http.MethodPost, "/api/v1/inventory", "m1", `{"food_id":"food-eggs","quantity":1,"unit":"pcs","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	rec, env = s.do(http.MethodPost, "/api/v1/inventory", "m1", map[string]interface{}{"food_id": "food-eggs", "quantity": -1, "unit": "pcs"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/inventory?status=MOULDY", "m1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/expiry/trends?days=400", "m1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/notifications/generate", "m1", map[string]string{"type": "GOSSIP"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationsFlow(t *testing.T) {
	s := newTestServer(t)
	s.createItem("m1", map[string]interface{}{
		"food_id": "food-milk", "quantity": 500, "unit": "ml", "expiry_date": "2026-05-13T00:00:00Z",
	})

	rec, env := s.do(http.MethodPost, "/api/v1/notifications/generate", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var generated struct {
		Created int `json:"created"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &generated))
	assert.Equal(t, 1, generated.Created)

	rec, env = s.do(http.MethodPost, "/api/v1/expiry/notify", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &generated))
	assert.Zero(t, generated.Created, "unread notification suppresses a duplicate")

	rec, env = s.do(http.MethodGet, "/api/v1/notifications/unread-count", "m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count model.UnreadCount
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Equal(t, 1, count.Total)

	rec, _ = s.do(http.MethodPost, "/api/v1/notifications/read-all", "m1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPut, "/api/v1/notifications/config", "m1", map[string]interface{}{"expiry_advance_days": 45})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecipeAndShoppingRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, "/api/v1/recipes/recipe-missing/cook", "m1", map[string]int{"servings": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/recipes/recommendations", "m1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.createItem("m1", map[string]interface{}{"food_id": "food-eggs", "quantity": 4, "unit": "pcs", "min_stock_threshold": 2})
	rec, env := s.do(http.MethodPost, "/api/v1/shopping/optimize", "m1", map[string]interface{}{
		"items": []map[string]interface{}{{"food_id": "food-eggs", "name": "Eggs", "amount": 5, "unit": "pcs", "unit_price": "0.30"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var optimized model.OptimizedList
	require.NoError(t, json.Unmarshal(env.Data, &optimized))
	require.Len(t, optimized.Items, 1)
	assert.Equal(t, 3.0, optimized.Items[0].Amount)

	rec, _ = s.do(http.MethodPost, "/api/v1/shopping/purchases", "m1", map[string]interface{}{
		"purchases": []map[string]interface{}{{"food_id": "food-milk", "quantity": 1000}},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(http.MethodPost, "/api/v1/admin/sweeps/expiry", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/admin/sweeps/expiry", "", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/admin/sweeps/compost", "", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/admin/stats", "", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}
