package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ashendes/rental-inventory/internal/api"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/client"
	"github.com/ashendes/rental-inventory/internal/repository/redisstore"
	"github.com/ashendes/rental-inventory/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inventoryJSON = `{
  "storeId": "store-9",
  "items": [
    {"name": "Tent", "price": "30", "rates": [{"minDays": 1, "dailyRate": "50"}],
     "children": [{"name": "Tent 2P", "quantity": 4, "price": "30"}, {"name": "Tent 4P", "quantity": 2, "price": "45"}]},
    {"name": "Stove", "quantity": 6, "price": "12"},
    {"name": "Lantern", "quantity": 10, "price": 4.5}
  ],
  "packages": [
    {"name": "Base camp", "basePrice": 90, "lines": [{"item": "Tent 4P", "quantity": 1}, {"item": "Stove", "quantity": 1}],
     "rates": [{"minDays": 2, "dailyRate": "75"}]}
  ]
}`

func newClient(t *testing.T) *client.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	store := redisstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokens([]byte("seed-test-signing-key"), "rental-test", "rental-api", time.Hour)
	server := api.NewServer(store,
		service.NewItemService(store.Items()),
		service.NewPackageService(store.Packages(), store.Items()),
		api.Options{ServiceName: "rental-service", Roles: []string{"Admin"}},
	)
	srv := httptest.NewServer(server.Handler(tokens))
	t.Cleanup(srv.Close)

	token, err := tokens.Issue(auth.Caller{UserID: 1, Role: "Admin"})
	require.NoError(t, err)
	return client.New(client.Options{BaseURL: srv.URL, Token: token, Service: "seed-test"})
}

func TestSeedFile(t *testing.T) {
	c := newClient(t)
	path := filepath.Join(t.TempDir(), "inventory.json")
	require.NoError(t, os.WriteFile(path, []byte(inventoryJSON), 0o600))

	ctx := context.Background()
	result, err := seedFile(ctx, c, path)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Items: 3, Variants: 2, Packages: 1}, result)

	items, err := c.ListItems(ctx, "store-9")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	pkgs, err := c.ListPackages(ctx, "store-9")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Len(t, pkgs[0].Items, 2)
	assert.True(t, pkgs[0].BasePrice.Equal(decimalOf(t, "90")))
}

func TestSeedRejectsUnknownLineItem(t *testing.T) {
	c := newClient(t)
	_, err := seed(context.Background(), c, Inventory{
		StoreID:  "store-9",
		Packages: []SeedPackage{{Name: "Ghost", Lines: []SeedLine{{Item: "Nothing", Quantity: 1}}}},
	})
	assert.ErrorContains(t, err, `unknown item "Nothing"`)
}

func decimalOf(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}
