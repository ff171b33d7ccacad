package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository/gormstore"
	"github.com/ashendes/rental-inventory/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

type harness struct {
	handler http.Handler
	store   *gormstore.Store
	tokens  *auth.Tokens
	manager string
	staff   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := gormstore.Open(gormstore.Options{
		Driver:       gormstore.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "rental.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokens([]byte("api-test-signing-key"), "rental-test", "rental-api", time.Hour)
	manager, err := tokens.Issue(auth.Caller{UserID: 7, StoreID: "store-1", Role: "Manager"})
	require.NoError(t, err)
	staff, err := tokens.Issue(auth.Caller{UserID: 9, StoreID: "store-1", Role: "Staff"})
	require.NoError(t, err)

	server := NewServer(store,
		service.NewItemService(store.Items()),
		service.NewPackageService(store.Packages(), store.Items()),
		Options{
			ServiceName: "rental-service",
			Environment: "test",
			Roles:       []string{"Admin", "Manager"},
			CORSOrigins: []string{"https://shop.example.com"},
		})

	return &harness{
		handler: server.Handler(tokens),
		store:   store,
		tokens:  tokens,
		manager: manager,
		staff:   staff,
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (h *harness) createTent(t *testing.T) models.ItemResponse {
	t.Helper()
	w, env := h.do(t, http.MethodPost, "/api/items", h.manager, models.ItemRequest{
		Name:  "Tent",
		Price: dec("30"),
		Rates: []models.RateRequest{
			{MinDays: 1, DailyRate: dec("50")},
			{MinDays: 3, DailyRate: dec("45")},
			{MinDays: 7, DailyRate: dec("40")},
		},
		Children: []models.ChildItemRequest{
			{Name: "Tent 2P", Quantity: 4, Price: dec("30")},
			{Name: "Tent 4P", Quantity: 2, Price: dec("45")},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.ItemResponse](t, env)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[models.HealthResponse](t, env)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "sqlite", health.Storage)
	assert.Equal(t, "test", health.Environment)

	require.NoError(t, h.store.Close())
	w, env = h.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
}

func TestCreateAndGetItem(t *testing.T) {
	h := newHarness(t)
	tent := h.createTent(t)

	assert.Equal(t, 6, tent.Quantity)
	assert.True(t, tent.HasChildren)
	assert.Len(t, tent.Children, 2)
	assert.Equal(t, "store-1", tent.StoreID)

	w, env := h.do(t, http.MethodGet, "/api/items/"+tent.ID, h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.ItemResponse](t, env)
	assert.Equal(t, tent.ID, got.ID)
	assert.Len(t, got.Rates, 3)
}

func TestItemErrors(t *testing.T) {
	h := newHarness(t)
	tent := h.createTent(t)

	t.Run("missing token", func(t *testing.T) {
		w, _ := h.do(t, http.MethodGet, "/api/items", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		w, _ := h.do(t, http.MethodPost, "/api/items", h.staff, models.ItemRequest{Name: "Lamp"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w, env := h.do(t, http.MethodPost, "/api/items", h.manager, models.ItemRequest{
			Price: dec("-1"),
			Rates: []models.RateRequest{{MinDays: 2, DailyRate: dec("5")}, {MinDays: 2, DailyRate: dec("4")}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Errors)
	})

	t.Run("malformed body", func(t *testing.T) {
		w, env := h.do(t, http.MethodPost, "/api/items", h.manager, "not an object")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", env.Message)
	})

	t.Run("not found", func(t *testing.T) {
		w, env := h.do(t, http.MethodGet, "/api/items/missing", h.manager, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("days must be an integer", func(t *testing.T) {
		w, _ := h.do(t, http.MethodGet, "/api/items/"+tent.ID+"/rate?days=two", h.manager, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestItemRate(t *testing.T) {
	h := newHarness(t)
	tent := h.createTent(t)

	w, env := h.do(t, http.MethodGet, "/api/items/"+tent.ID+"/rate?days=5", h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decode[models.RateQuoteResponse](t, env)
	assert.Equal(t, 3, quote.MinDays)
	assert.True(t, quote.DailyRate.Equal(dec("45")))
	assert.True(t, quote.Total.Equal(dec("225")))

	lamp, env := h.do(t, http.MethodPost, "/api/items", h.manager, models.ItemRequest{
		Name:  "Lamp",
		Price: dec("5"),
		Rates: []models.RateRequest{{MinDays: 3, DailyRate: dec("4")}},
	})
	require.Equal(t, http.StatusCreated, lamp.Code)
	lampID := decode[models.ItemResponse](t, env).ID

	w, _ = h.do(t, http.MethodGet, "/api/items/"+lampID+"/rate?days=2", h.manager, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateQuantityAndDelete(t *testing.T) {
	h := newHarness(t)
	tent := h.createTent(t)
	child := tent.Children[0]

	w, _ := h.do(t, http.MethodPut, "/api/items/"+child.ID+"/quantity?quantity=10", h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env := h.do(t, http.MethodGet, "/api/items/"+tent.ID, h.manager, nil)
	assert.Equal(t, 12, decode[models.ItemResponse](t, env).Quantity)

	w, _ = h.do(t, http.MethodPut, "/api/items/"+tent.ID+"/quantity?quantity=1", h.manager, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "parents derive their quantity")

	w, _ = h.do(t, http.MethodDelete, "/api/items/"+child.ID, h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, env = h.do(t, http.MethodGet, "/api/items/"+tent.ID, h.manager, nil)
	parent := decode[models.ItemResponse](t, env)
	assert.Equal(t, 2, parent.Quantity)
	assert.Len(t, parent.Children, 1)

	w, _ = h.do(t, http.MethodDelete, "/api/items/"+tent.ID, h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/items/"+tent.ID, h.manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchIsAnonymous(t *testing.T) {
	h := newHarness(t)
	h.createTent(t)

	w, env := h.do(t, http.MethodGet, "/api/items/search?keyword=4p&storeId=store-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]models.ItemResponse](t, env)
	require.Len(t, found, 1)
	assert.Equal(t, "Tent 4P", found[0].Name)

	w, _ = h.do(t, http.MethodGet, "/api/items/search?keyword=tent", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPackageEndpoints(t *testing.T) {
	h := newHarness(t)
	tent := h.createTent(t)

	w, env := h.do(t, http.MethodPost, "/api/packages", h.manager, models.PackageRequest{
		Name:      "Weekend camping",
		BasePrice: dec("80"),
		Items:     []models.PackageItemRequest{{ItemID: tent.Children[0].ID, Quantity: 1}},
		Rates:     []models.RateRequest{{MinDays: 2, DailyRate: dec("70")}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pkg := decode[models.PackageResponse](t, env)
	assert.Equal(t, "/api/packages/"+pkg.ID, w.Header().Get("Location"))
	require.Len(t, pkg.Items, 1)
	assert.Equal(t, "Tent 2P", pkg.Items[0].ItemName)

	w, env = h.do(t, http.MethodPut, "/api/packages/"+pkg.ID, h.manager, models.PackageRequest{
		Name:      "Weekend camping",
		BasePrice: dec("80"),
		Items: []models.PackageItemRequest{
			{ItemID: tent.Children[0].ID, Quantity: 2},
			{ItemID: tent.Children[1].ID, Quantity: 1},
		},
		Rates: []models.RateRequest{{MinDays: 2, DailyRate: dec("65")}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.PackageResponse](t, env)
	assert.Len(t, updated.Items, 2)

	w, env = h.do(t, http.MethodGet, "/api/packages/"+pkg.ID+"/rate?days=3", h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.RateQuoteResponse](t, env).Total.Equal(dec("195")))

	w, env = h.do(t, http.MethodGet, "/api/packages", h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.PackageResponse](t, env), 1)

	w, _ = h.do(t, http.MethodPost, "/api/packages", h.manager, models.PackageRequest{
		Name:  "Broken",
		Items: []models.PackageItemRequest{{ItemID: "missing", Quantity: 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.do(t, http.MethodDelete, "/api/packages/"+pkg.ID, h.manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/packages/"+pkg.ID, h.manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSAndMetrics(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/items", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	h.do(t, http.MethodGet, "/api/health", "", nil)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
