package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/matching"
	"github.com/timmy/jobalerts/internal/service"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// JobLister lists stored jobs newest first.
type JobLister interface {
	ListAll(ctx context.Context, limit int) ([]domain.Job, error)
}

// JobHandler serves read-only job, stats and vocabulary endpoints.
type JobHandler struct {
	jobs     JobLister
	stats    *service.StatsService
	expander *matching.Expander
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobs JobLister, stats *service.StatsService, expander *matching.Expander) *JobHandler {
	return &JobHandler{jobs: jobs, stats: stats, expander: expander}
}

// ListJobs handles GET /api/v1/jobs?limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.ListAll(c.Request.Context(), queryLimit(c, defaultJobLimit, maxJobLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetStats handles GET /api/v1/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AreaGroups handles GET /api/v1/area-groups and lists the location
// shortcuts and job types a subscriber may pick.
func (h *JobHandler) AreaGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"area_groups": h.expander.Groups(),
		"job_types":   domain.JobTypeOptions,
		"max_slots":   domain.MaxLocationSlots,
	})
}
