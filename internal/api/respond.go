package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// fail writes the envelope for err with the status of its kind
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp := models.APIResponse{Success: false}

	var appErr *apperr.Error
	if kind != apperr.KindUnexpected && errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Errors = appErr.Details
	} else {
		resp.Message = "An unexpected error occurred"
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err.Error(),
		}).Error("Request failed")
	}

	c.JSON(statusFor(kind), resp)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNoApplicableRate:
		return http.StatusUnprocessableEntity
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes and validates the body into obj
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if !apperr.Is(err, apperr.KindValidation) {
			err = apperr.Validation("Invalid request body", err.Error())
		}
		fail(c, err)
		return false
	}
	return true
}

// intQuery parses a required positive-or-zero integer query parameter
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		fail(c, apperr.Validation("Validation failed", name+": is required"))
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fail(c, apperr.Validation("Validation failed", name+": must be an integer"))
		return 0, false
	}
	return v, true
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	}
}
