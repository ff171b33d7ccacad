// Package api exposes the rental inventory over HTTP.
package api

import (
	"net/http"

	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/metrics"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/ashendes/rental-inventory/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func init() {
	// Bound request bodies are validated with the same rules the services use
	binding.Validator = models.NewValidator()
}

// Options configures the router
type Options struct {
	ServiceName string
	Environment string
	// Roles allowed to list and modify inventory
	Roles       []string
	CORSOrigins []string
}

// Server holds the handlers' dependencies
type Server struct {
	items    *service.ItemService
	packages *service.PackageService
	store    repository.Store
	opts     Options
}

func NewServer(store repository.Store, items *service.ItemService, packages *service.PackageService, opts Options) *Server {
	return &Server{items: items, packages: packages, store: store, opts: opts}
}

// Handler builds the gin engine wrapped in the CORS handler
func (s *Server) Handler(tokens *auth.Tokens) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(metrics.PrometheusMiddleware(s.opts.ServiceName))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/health", s.health)

	authenticated := auth.Authenticate(tokens, true)
	staff := auth.RequireRole(s.opts.Roles...)

	items := api.Group("/items")
	items.GET("/search", auth.Authenticate(tokens, false), s.searchItems)
	items.GET("", authenticated, staff, s.listItems)
	items.POST("", authenticated, staff, s.createItem)
	items.GET("/:id", authenticated, s.getItem)
	items.PUT("/:id", authenticated, staff, s.updateItem)
	items.PUT("/:id/quantity", authenticated, staff, s.updateItemQuantity)
	items.DELETE("/:id", authenticated, staff, s.deleteItem)
	items.GET("/:id/rate", authenticated, s.itemRate)

	packages := api.Group("/packages")
	packages.GET("", authenticated, staff, s.listPackages)
	packages.POST("", authenticated, staff, s.createPackage)
	packages.GET("/:id", authenticated, s.getPackage)
	packages.PUT("/:id", authenticated, staff, s.updatePackage)
	packages.DELETE("/:id", authenticated, staff, s.deletePackage)
	packages.GET("/:id/rate", authenticated, s.packageRate)

	return cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)
}
