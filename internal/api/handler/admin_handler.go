package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mhixter/arapointx-sub002/internal/api/domain"
	"github.com/Mhixter/arapointx-sub002/internal/api/dto"
	"github.com/Mhixter/arapointx-sub002/internal/api/storage"
	"github.com/Mhixter/arapointx-sub002/internal/provider"
	workerdomain "github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// ListJobs handles GET /api/v1/admin/jobs
// Cursor-paginated listing across all requesters.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		RequesterID: req.RequesterID,
		ServiceType: req.ServiceType,
		Status:      req.Status,
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	views := make([]dto.JobView, len(jobs))
	for i := range jobs {
		views[i] = jobToView(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       views,
		NextCursor: nextCursor,
	})
}

// JobStats handles GET /api/v1/admin/jobs/stats
func (h *AdminHandler) JobStats(c *gin.Context) {
	counts, err := h.storage.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count jobs",
		})
		return
	}

	c.JSON(http.StatusOK, dto.JobStatsResponse{
		Pending:    counts[domain.JobStatusPending],
		Processing: counts[domain.JobStatusProcessing],
		Completed:  counts[domain.JobStatusCompleted],
		Failed:     counts[domain.JobStatusFailed],
	})
}

// RetryJob handles POST /api/v1/admin/jobs/:job_id/retry
func (h *AdminHandler) RetryJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.storage.ManualRetry(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, domain.ErrRetryExhausted):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Retry budget exhausted",
			"code":  "retry_exhausted",
		})
	case err != nil:
		h.logger.Error("Failed to retry job", slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.Info("Job manually requeued", slog.String("job_id", jobID))
		c.JSON(http.StatusOK, gin.H{
			"job_id": jobID,
			"status": domain.JobStatusPending,
		})
	}
}

// FailJob handles POST /api/v1/admin/jobs/:job_id/fail
// Force-fails a stuck job; a worker mid-flight loses the write-back.
func (h *AdminHandler) FailJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Reason == "" {
		body.Reason = "cancelled by operator"
	}

	err := h.storage.ForceFail(c.Request.Context(), jobID, body.Reason)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case err != nil:
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.Info("Job force-failed",
			slog.String("job_id", jobID),
			slog.String("reason", body.Reason),
		)
		c.JSON(http.StatusOK, gin.H{
			"job_id": jobID,
			"status": domain.JobStatusFailed,
		})
	}
}

// ListTargets handles GET /api/v1/admin/targets
func (h *AdminHandler) ListTargets(c *gin.Context) {
	targets, err := h.targets.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list scrape targets", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list targets",
		})
		return
	}

	views := make([]dto.TargetView, len(targets))
	for i, t := range targets {
		views[i] = dto.TargetView{
			ServiceType: t.ServiceType,
			PortalURL:   t.PortalURL,
			Selectors:   t.Selectors,
			Enabled:     t.Enabled,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"targets": views,
	})
}

// UpsertTarget handles PUT /api/v1/admin/targets/:service_type
// Writes the portal configuration and drops the local cache entry; worker
// processes pick the change up when their cache TTL expires.
func (h *AdminHandler) UpsertTarget(c *gin.Context) {
	serviceType := c.Param("service_type")
	if !workerdomain.KnownServiceType(serviceType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown service type",
		})
		return
	}

	var req dto.UpsertTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	target := &provider.Target{
		ServiceType: serviceType,
		PortalURL:   req.PortalURL,
		Selectors:   req.Selectors,
		Enabled:     req.Enabled,
	}

	if err := h.targets.Upsert(c.Request.Context(), target); err != nil {
		h.logger.Error("Failed to upsert scrape target", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save target",
		})
		return
	}

	h.targetCache.Invalidate(serviceType)
	h.logger.Info("Scrape target updated",
		slog.String("service_type", serviceType),
		slog.Bool("enabled", req.Enabled),
	)

	c.JSON(http.StatusOK, dto.TargetView{
		ServiceType: target.ServiceType,
		PortalURL:   target.PortalURL,
		Selectors:   target.Selectors,
		Enabled:     target.Enabled,
	})
}
