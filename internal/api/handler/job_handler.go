package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mhixter/arapointx-sub002/internal/api/domain"
	"github.com/Mhixter/arapointx-sub002/internal/api/dto"
	"github.com/Mhixter/arapointx-sub002/internal/api/model"
	workerdomain "github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// EnqueueJob handles POST /api/v1/jobs
// Records a pending verification job and nudges the workers.
func (h *JobHandler) EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if !workerdomain.KnownServiceType(req.ServiceType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown service type",
		})
		return
	}

	if req.Priority < 0 || req.Priority > h.queueCfg.MaxPriority {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Priority out of range",
		})
		return
	}

	now := time.Now()
	job := model.Job{
		JobID:       uuid.New().String(),
		RequesterID: req.RequesterID,
		ServiceType: req.ServiceType,
		Payload:     req.Payload,
		Priority:    req.Priority,
		Status:      domain.JobStatusPending,
		MaxRetries:  h.queueCfg.DefaultMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Position is sampled before the insert so the new job is not counted
	// as ahead of itself.
	position, err := h.storage.CountPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count pending jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	// Best-effort wake nudge; the workers' poll tick covers a lost one
	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), []byte(job.JobID), "text/plain"); err != nil {
		h.logger.Warn("Failed to publish job nudge",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusAccepted, dto.EnqueueJobResponse{
		JobID:                job.JobID,
		Status:               job.Status,
		QueuePosition:        position,
		EstimatedWaitSeconds: int(EstimateWait(position, h.queueCfg.AvgServiceTime).Seconds()),
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Requester-scoped job status lookup.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	requesterID := c.Query("requester_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "requester_id is required",
		})
		return
	}

	job, err := h.storage.GetJobForRequester(c.Request.Context(), jobID, requesterID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToView(job))
}

func jobToView(job *model.Job) dto.JobView {
	view := dto.JobView{
		JobID:       job.JobID,
		RequesterID: job.RequesterID,
		ServiceType: job.ServiceType,
		Priority:    job.Priority,
		Status:      job.Status,
		RetryCount:  job.RetryCount,
		MaxRetries:  job.MaxRetries,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	}

	if job.Result != nil {
		view.Result = *job.Result
	}
	if job.ErrorMessage != nil {
		view.ErrorMessage = *job.ErrorMessage
	}
	if job.CompletedAt != nil {
		view.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	return view
}
