package api

import (
	"net/http"
	"time"

	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/patterns"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func caller(c *gin.Context) auth.Caller {
	who, _ := auth.CallerFrom(c)
	return who
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := patterns.WithTimeout(c.Request.Context(), patterns.PingTimeout)
	defer cancel()

	resp := models.HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Environment: s.opts.Environment,
		Storage:     s.store.Driver(),
	}
	if err := s.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("Storage ping failed")
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Success: false,
			Message: "Storage unavailable",
			Data:    resp,
		})
		return
	}
	ok(c, http.StatusOK, "Service is healthy", resp)
}

// Items

func (s *Server) listItems(c *gin.Context) {
	items, err := s.items.ListRoot(c.Request.Context(), caller(c), c.Query("storeId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Items retrieved", items)
}

func (s *Server) searchItems(c *gin.Context) {
	items, err := s.items.Search(c.Request.Context(), caller(c), c.Query("storeId"), c.Query("keyword"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Items retrieved", items)
}

func (s *Server) getItem(c *gin.Context) {
	item, err := s.items.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item retrieved", item)
}

func (s *Server) createItem(c *gin.Context) {
	var req models.ItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := s.items.Create(c.Request.Context(), caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", "/api/items/"+item.ID)
	ok(c, http.StatusCreated, "Item created", item)
}

func (s *Server) updateItem(c *gin.Context) {
	var req models.ItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := s.items.Update(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item updated", item)
}

func (s *Server) updateItemQuantity(c *gin.Context) {
	quantity, valid := intQuery(c, "quantity")
	if !valid {
		return
	}
	item, err := s.items.UpdateQuantity(c.Request.Context(), caller(c), c.Param("id"), quantity)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Quantity updated", item)
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.items.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Item deleted", nil)
}

func (s *Server) itemRate(c *gin.Context) {
	days, valid := intQuery(c, "days")
	if !valid {
		return
	}
	quote, err := s.items.Rate(c.Request.Context(), caller(c), c.Param("id"), days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Rate retrieved", quote)
}

// Packages

func (s *Server) listPackages(c *gin.Context) {
	pkgs, err := s.packages.List(c.Request.Context(), caller(c), c.Query("storeId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Packages retrieved", pkgs)
}

func (s *Server) getPackage(c *gin.Context) {
	pkg, err := s.packages.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Package retrieved", pkg)
}

func (s *Server) createPackage(c *gin.Context) {
	var req models.PackageRequest
	if !bindJSON(c, &req) {
		return
	}
	pkg, err := s.packages.Create(c.Request.Context(), caller(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Location", "/api/packages/"+pkg.ID)
	ok(c, http.StatusCreated, "Package created", pkg)
}

func (s *Server) updatePackage(c *gin.Context) {
	var req models.PackageRequest
	if !bindJSON(c, &req) {
		return
	}
	pkg, err := s.packages.Update(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Package updated", pkg)
}

func (s *Server) deletePackage(c *gin.Context) {
	if err := s.packages.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Package deleted", nil)
}

func (s *Server) packageRate(c *gin.Context) {
	days, valid := intQuery(c, "days")
	if !valid {
		return
	}
	quote, err := s.packages.Rate(c.Request.Context(), caller(c), c.Param("id"), days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, "Rate retrieved", quote)
}
