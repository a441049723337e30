package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/jobalerts/internal/api/middleware"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/scheduler"
	"github.com/timmy/jobalerts/internal/service"
	"github.com/timmy/jobalerts/internal/storage"
)

// CycleRunner runs one alert cycle unless one is already in progress.
type CycleRunner interface {
	RunNow(ctx context.Context) (*service.CycleStats, error)
}

// Resender retries one failed delivery.
type Resender interface {
	Resend(ctx context.Context, deliveryID uint) error
}

// JobResetter clears the job store.
type JobResetter interface {
	Reset(ctx context.Context) (int64, error)
}

// SnapshotLoader reads archived fetch snapshots.
type SnapshotLoader interface {
	Load(ctx context.Context, key string) (*storage.Snapshot, error)
}

// AdminDeps wires the collaborators of an AdminHandler. Snapshots may be nil
// when no object storage is configured.
type AdminDeps struct {
	Cycle         CycleRunner
	Resender      Resender
	Jobs          JobResetter
	Subscriptions *service.SubscriptionService
	Snapshots     SnapshotLoader
	Logger        *logger.Logger
}

// AdminHandler handles admin operations.
type AdminHandler struct {
	deps AdminDeps

	// Manual cycle state
	mu            sync.RWMutex
	lastRunTime   time.Time
	lastRunStatus string
	lastStats     *service.CycleStats
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - deps: cycle runner, resender, job store, subscription service and optional snapshot loader.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	if deps.Logger == nil {
		deps.Logger = logger.GetDefault()
	}
	return &AdminHandler{deps: deps}
}

// CycleStatusResponse represents the state of manually triggered cycles.
type CycleStatusResponse struct {
	LastRunTime   string              `json:"last_run_time,omitempty"`
	LastRunStatus string              `json:"last_run_status,omitempty"`
	LastStats     *service.CycleStats `json:"last_stats,omitempty"`
}

// TriggerCycle handles POST /api/v1/admin/cycle and runs one alert cycle synchronously.
func (h *AdminHandler) TriggerCycle(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Received cycle trigger: client_ip=%s", c.ClientIP())

	// Detach from the request so a client timeout does not cut the cycle short
	runCtx := context.WithoutCancel(ctx)
	startTime := time.Now()
	stats, err := h.deps.Cycle.RunNow(runCtx)
	duration := time.Since(startTime)

	if errors.Is(err, scheduler.ErrCycleRunning) {
		logger.CtxWarn(ctx, "Cycle trigger rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Alert cycle is already running"})
		return
	}

	h.mu.Lock()
	h.lastRunTime = time.Now()
	h.lastStats = stats
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Manual cycle failed: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      stats.EmailsSent,
	}).Info(ctx, "Manual cycle completed: cycle_id=%s, candidates=%d, failed=%d",
		stats.CycleID, stats.Candidates, stats.EmailsFailed)

	c.JSON(http.StatusOK, gin.H{
		"message": "Cycle completed",
		"stats":   stats,
	})
}

// GetCycleStatus handles GET /api/v1/admin/cycle
func (h *AdminHandler) GetCycleStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := CycleStatusResponse{
		LastRunStatus: h.lastRunStatus,
		LastStats:     h.lastStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// ResetJobs handles POST /api/v1/admin/jobs/reset
func (h *AdminHandler) ResetJobs(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.deps.Jobs.Reset(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.CtxWarn(ctx, "Job store reset: removed=%d, client_ip=%s", n, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// ResendDelivery handles POST /api/v1/admin/deliveries/:id/resend
func (h *AdminHandler) ResendDelivery(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	err := h.deps.Resender.Resend(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Delivery re-sent"})
		return
	}
	if isDeliveryFailure(err) {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	respondError(c, err)
}

// DeactivateSubscription handles POST /api/v1/admin/subscriptions/:id/deactivate
func (h *AdminHandler) DeactivateSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.deps.Subscriptions.DeactivateSubscription(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription deactivated"})
}

// GetSnapshot handles GET /api/v1/admin/snapshots/*key
func (h *AdminHandler) GetSnapshot(c *gin.Context) {
	if h.deps.Snapshots == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Snapshot storage is not configured"})
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid snapshot key"})
		return
	}

	snap, err := h.deps.Snapshots.Load(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found"})
		return
	}
	if err != nil {
		middleware.GetLogger(c).WithError(err).WithField("key", key).Error("Snapshot load failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Snapshot storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func isDeliveryFailure(err error) bool {
	var de *domain.DeliveryError
	return errors.As(err, &de)
}
