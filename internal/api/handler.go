package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"commerce-analytics/internal/analytics"
	"commerce-analytics/internal/models"
	"commerce-analytics/internal/service"
	"commerce-analytics/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportService is what the HTTP surface needs from the report service
type ReportService interface {
	Run(ctx context.Context, name, asOf string) (*service.ReportResult, error)
	Refresh(ctx context.Context, name, asOf string) (*service.ReportResult, error)
	Request(ctx context.Context, name, asOf string) (*models.ReportRequestedEvent, error)
}

// Pinger is a dependency probed by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	reports ReportService
	checks  map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(reports ReportService, checks map[string]Pinger) *Handler {
	return &Handler{
		reports: reports,
		checks:  checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/reports", h.listReports)
		v1.GET("/reports/:name", h.getReport)
		v1.POST("/reports/:name/requests", h.requestReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := gin.H{}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listReports lists the report names
func (h *Handler) listReports(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reports": service.Reports()})
}

// getReport runs or serves a cached report; as_of defaults to yesterday and
// refresh=true bypasses the cache
func (h *Handler) getReport(c *gin.Context) {
	asOf := c.DefaultQuery("as_of", service.DefaultAsOf(time.Now()))
	run := h.reports.Run
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		run = h.reports.Refresh
	}

	result, err := run(c.Request.Context(), c.Param("name"), asOf)
	if err != nil {
		respondError(c, "Failed to run report", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type requestBody struct {
	AsOf string `json:"as_of"`
}

// requestReport queues a report run for the worker
func (h *Handler) requestReport(c *gin.Context) {
	var body requestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}
	if body.AsOf == "" {
		body.AsOf = service.DefaultAsOf(time.Now())
	}

	event, err := h.reports.Request(c.Request.Context(), c.Param("name"), body.AsOf)
	if err != nil {
		respondError(c, "Failed to queue report", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_id": event.EventID,
		"report":   event.Report,
		"as_of":    event.AsOf,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownReport):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidAsOf):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, analytics.ErrDataIntegrity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	c.JSON(statusFor(err), gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
