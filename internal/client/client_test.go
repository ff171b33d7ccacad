package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ashendes/rental-inventory/internal/api"
	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/patterns"
	"github.com/ashendes/rental-inventory/internal/repository/redisstore"
	"github.com/ashendes/rental-inventory/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newAPI(t *testing.T) (*httptest.Server, *auth.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	store := redisstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokens([]byte("client-test-signing-key"), "rental-test", "rental-api", time.Hour)
	server := api.NewServer(store,
		service.NewItemService(store.Items()),
		service.NewPackageService(store.Packages(), store.Items()),
		api.Options{ServiceName: "rental-service", Environment: "test", Roles: []string{"Admin", "Manager"}},
	)
	srv := httptest.NewServer(server.Handler(tokens))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func TestClientAgainstAPI(t *testing.T) {
	srv, tokens := newAPI(t)
	token, err := tokens.Issue(auth.Caller{UserID: 3, StoreID: "store-1", Role: "Manager"})
	require.NoError(t, err)

	ctx := context.Background()
	c := New(Options{BaseURL: srv.URL, Token: token, Service: "client-test"})

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", health.Storage)

	kayak, err := c.CreateItem(ctx, models.ItemRequest{
		Name:     "Kayak",
		Quantity: 3,
		Price:    dec("60"),
		Rates:    []models.RateRequest{{MinDays: 1, DailyRate: dec("35")}, {MinDays: 5, DailyRate: dec("28")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, kayak.Quantity)

	quote, err := c.ItemRate(ctx, kayak.ID, 6)
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(dec("168")))

	updated, err := c.UpdateItemQuantity(ctx, kayak.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	items, err := c.ListItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	found, err := c.SearchItems(ctx, "store-1", "kay")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	pkg, err := c.CreatePackage(ctx, models.PackageRequest{
		Name:      "River day",
		BasePrice: dec("70"),
		Items:     []models.PackageItemRequest{{ItemID: kayak.ID, Quantity: 2}},
		Rates:     []models.RateRequest{{MinDays: 1, DailyRate: dec("60")}},
	})
	require.NoError(t, err)
	require.Len(t, pkg.Items, 1)
	assert.Equal(t, "Kayak", pkg.Items[0].ItemName)

	pkgQuote, err := c.PackageRate(ctx, pkg.ID, 2)
	require.NoError(t, err)
	assert.True(t, pkgQuote.Total.Equal(dec("120")))

	require.NoError(t, c.DeleteItem(ctx, kayak.ID))
	pkgAfter, err := c.GetPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Empty(t, pkgAfter.Items)

	require.NoError(t, c.DeletePackage(ctx, pkg.ID))
	_, err = c.GetPackage(ctx, pkg.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestClientErrorKinds(t *testing.T) {
	srv, tokens := newAPI(t)
	token, err := tokens.Issue(auth.Caller{UserID: 3, StoreID: "store-1", Role: "Manager"})
	require.NoError(t, err)
	ctx := context.Background()
	c := New(Options{BaseURL: srv.URL, Token: token, Service: "client-test"})

	_, err = c.CreateItem(ctx, models.ItemRequest{Price: dec("1")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	lamp, err := c.CreateItem(ctx, models.ItemRequest{
		Name:  "Lamp",
		Price: dec("5"),
		Rates: []models.RateRequest{{MinDays: 3, DailyRate: dec("4")}},
	})
	require.NoError(t, err)
	_, err = c.ItemRate(ctx, lamp.ID, 1)
	assert.Equal(t, apperr.KindNoApplicableRate, apperr.KindOf(err))

	anonymous := New(Options{BaseURL: srv.URL, Service: "client-test"})
	_, err = anonymous.ListItems(ctx, "store-1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	for n := 0; n < 5; n++ {
		_, err = c.GetItem(ctx, "missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	}
	assert.Equal(t, "closed", c.BreakerState(), "client errors do not trip the circuit")
}

func TestClientOpensCircuitOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"An unexpected error occurred"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Options{BaseURL: srv.URL, Service: "client-test", Breaker: patterns.BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	}})

	ctx := context.Background()
	for n := 0; n < 3; n++ {
		_, err := c.GetItem(ctx, "any")
		assert.Equal(t, apperr.KindUnexpected, apperr.KindOf(err))
	}
	_, err := c.GetItem(ctx, "any")
	assert.ErrorIs(t, err, patterns.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "open", c.BreakerState())
}
