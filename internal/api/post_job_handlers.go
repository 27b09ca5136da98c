package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/scheduler"
	"github.com/Past-Tang/x/internal/selector"
)

type PostJobsHandler struct {
	repo      models.PostJobRepository
	scheduler *scheduler.PostScheduler
	logger    *slog.Logger
}

func NewPostJobsHandler(repo models.PostJobRepository, sched *scheduler.PostScheduler, logger *slog.Logger) *PostJobsHandler {
	return &PostJobsHandler{
		repo:      repo,
		scheduler: sched,
		logger:    logger,
	}
}

type postJobPayload struct {
	Name            *string `json:"name"`
	Status          *string `json:"status"`
	IntervalMinutes *int    `json:"interval_minutes"`
	AccountStrategy *string `json:"account_strategy"`
}

// ListPostJobs returns all post jobs, optionally filtered by status
// GET /api/post-jobs?status=active
func (h *PostJobsHandler) ListPostJobs(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	jobs, err := h.repo.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("failed to list post jobs", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list post jobs")
		return
	}
	respondData(w, http.StatusOK, jobs)
}

// CreatePostJob adds a recurring posting job
// POST /api/post-jobs
func (h *PostJobsHandler) CreatePostJob(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload postJobPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	job := &models.PostJob{
		Status:          models.StatusActive,
		IntervalMinutes: 60,
		AccountStrategy: string(selector.StrategyRoundRobin),
	}
	if payload.Name != nil {
		job.Name = *payload.Name
	}
	if payload.Status != nil {
		job.Status = *payload.Status
	}
	if payload.IntervalMinutes != nil {
		job.IntervalMinutes = *payload.IntervalMinutes
	}
	if payload.AccountStrategy != nil {
		job.AccountStrategy = *payload.AccountStrategy
	}

	if err := validatePostJob(job.Name, job.IntervalMinutes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := selector.ParseStrategy(job.AccountStrategy); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_strategy")
		return
	}

	if err := h.repo.Create(r.Context(), job); err != nil {
		h.logger.Error("failed to create post job", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create post job")
		return
	}

	h.logger.Info("post job created", "job_id", job.ID, "name", job.Name)
	respondData(w, http.StatusCreated, job)
}

// GetPostJob returns a single post job
// GET /api/post-jobs/:id
func (h *PostJobsHandler) GetPostJob(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-jobs/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	job, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post job", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "Post job not found")
		return
	}
	respondData(w, http.StatusOK, job)
}

// UpdatePostJob applies a partial update to a post job
// PUT /api/post-jobs/:id
func (h *PostJobsHandler) UpdatePostJob(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-jobs/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	job, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post job", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "Post job not found")
		return
	}

	var payload postJobPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if payload.Name != nil {
		job.Name = *payload.Name
	}
	if payload.Status != nil {
		job.Status = *payload.Status
	}
	if payload.IntervalMinutes != nil {
		job.IntervalMinutes = *payload.IntervalMinutes
	}
	if payload.AccountStrategy != nil {
		job.AccountStrategy = *payload.AccountStrategy
	}

	if err := validatePostJob(job.Name, job.IntervalMinutes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := selector.ParseStrategy(job.AccountStrategy); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid account_strategy")
		return
	}

	if err := h.repo.Update(r.Context(), job); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post job not found")
			return
		}
		h.logger.Error("failed to update post job", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update post job")
		return
	}
	respondData(w, http.StatusOK, job)
}

// DeletePostJob removes a post job
// DELETE /api/post-jobs/:id
func (h *PostJobsHandler) DeletePostJob(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-jobs/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post job not found")
			return
		}
		h.logger.Error("failed to delete post job", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete post job")
		return
	}

	h.logger.Info("post job deleted", "job_id", id)
	respondMessage(w, http.StatusOK, "Post job deleted")
}

// TogglePostJobStatus flips a post job between active and disabled
// POST /api/post-jobs/:id/toggle-status
func (h *PostJobsHandler) TogglePostJobStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-jobs/", "/toggle-status")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	job, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post job", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "Post job not found")
		return
	}

	if job.Status == models.StatusActive {
		job.Status = models.StatusDisabled
	} else {
		job.Status = models.StatusActive
	}

	if err := h.repo.Update(r.Context(), job); err != nil {
		h.logger.Error("failed to toggle post job status", "job_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update post job")
		return
	}

	h.logger.Info("post job status toggled", "job_id", id, "status", job.Status)
	respondData(w, http.StatusOK, job)
}

// RunPostJobNow executes a post job immediately, bypassing its
// schedule. A run already in flight wins.
// POST /api/post-jobs/:id/run
func (h *PostJobsHandler) RunPostJobNow(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-jobs/", "/run")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	outcome, err := h.scheduler.RunNow(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, "Post job not found")
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			respondError(w, http.StatusConflict, "Run already in progress")
		default:
			h.logger.Error("manual post job run failed", "job_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Run failed")
		}
		return
	}
	respondData(w, http.StatusOK, outcome)
}
