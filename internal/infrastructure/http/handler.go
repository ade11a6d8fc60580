package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/internal/infrastructure/database"
	"egress-worker/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// QueueLister reports the queues currently joined
type QueueLister interface {
	Joined() []string
}

// JobErrorSource returns recently reported job failures
type JobErrorSource interface {
	RecentJobErrors(ctx context.Context, limit int64) ([]*database.JobErrorDocument, error)
}

// Handler serves the worker's status endpoints
type Handler struct {
	state    *domain.WorkerState
	label    *domain.StatusLabel
	queues   QueueLister
	registry *domain.JobRegistry
	errors   JobErrorSource
	gatherer prometheus.Gatherer
	started  time.Time
}

// NewHandler creates a new HTTP handler. errors may be nil when MongoDB is disabled.
func NewHandler(state *domain.WorkerState, label *domain.StatusLabel, queues QueueLister, registry *domain.JobRegistry, errors JobErrorSource, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		state:    state,
		label:    label,
		queues:   queues,
		registry: registry,
		errors:   errors,
		gatherer: gatherer,
		started:  time.Now(),
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/status", h.GetStatus)
		api.GET("/errors", h.GetJobErrors)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

// HealthCheck returns 200 while the worker accepts work and 503 once it is shutting down
func (h *Handler) HealthCheck(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if h.state.ExitRequested() {
		status = "shutting_down"
		code = http.StatusServiceUnavailable
	}

	health := gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"service":   "egress-worker",
	}
	if h.errors != nil {
		health["mongodb"] = "connected"
	} else {
		health["mongodb"] = "disabled"
	}

	c.JSON(code, health)
}

// GetStatus returns the worker state, the status label and the joined queues
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"label":           h.label.String(),
		"running_job":     h.state.RunningJob(),
		"exit_requested":  h.state.ExitRequested(),
		"exit_wait_ticks": h.state.ExitWaitTicks(),
		"joined_queues":   h.queues.Joined(),
		"job_classes":     h.registry.Classes(),
		"uptime":          time.Since(h.started).String(),
	})
}

// GetJobErrors returns the most recent job failures
func (h *Handler) GetJobErrors(c *gin.Context) {
	if h.errors == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "error store disabled"})
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	docs, err := h.errors.RecentJobErrors(c.Request.Context(), limit)
	if err != nil {
		log.L().Error("Failed to load job errors", zap.String("event", "job_errors_query_failed"), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job errors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"errors": docs, "count": len(docs)})
}
