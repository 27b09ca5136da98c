package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/scheduler"
)

type TargetsHandler struct {
	repo      models.TargetRepository
	scheduler *scheduler.MonitorScheduler
	logger    *slog.Logger
}

func NewTargetsHandler(repo models.TargetRepository, sched *scheduler.MonitorScheduler, logger *slog.Logger) *TargetsHandler {
	return &TargetsHandler{
		repo:      repo,
		scheduler: sched,
		logger:    logger,
	}
}

type targetPayload struct {
	TargetUserID         *string `json:"target_user_id"`
	TargetUsername       *string `json:"target_username"`
	Name                 *string `json:"name"`
	Status               *string `json:"status"`
	CheckIntervalMinutes *int    `json:"check_interval_minutes"`
	FetchTweetCount      *int    `json:"fetch_tweet_count"`
	MaxNewTweetsPerCheck *int    `json:"max_new_tweets_per_check"`
}

// ListTargets returns all monitor targets, optionally filtered by status
// GET /api/targets?status=active
func (h *TargetsHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	targets, err := h.repo.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("failed to list targets", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list targets")
		return
	}
	respondData(w, http.StatusOK, targets)
}

// CreateTarget adds a new monitor target
// POST /api/targets
func (h *TargetsHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload targetPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	target := &models.Target{
		Status:               models.TargetStatusActive,
		CheckIntervalMinutes: 15,
		FetchTweetCount:      10,
		MaxNewTweetsPerCheck: 3,
	}
	if payload.TargetUserID != nil {
		target.TargetUserID = *payload.TargetUserID
	}
	if payload.TargetUsername != nil {
		target.TargetUsername = *payload.TargetUsername
	}
	if payload.Name != nil {
		target.Name = *payload.Name
	}
	if payload.Status != nil {
		target.Status = models.TargetStatus(*payload.Status)
	}
	if payload.CheckIntervalMinutes != nil {
		target.CheckIntervalMinutes = *payload.CheckIntervalMinutes
	}
	if payload.FetchTweetCount != nil {
		target.FetchTweetCount = *payload.FetchTweetCount
	}
	if payload.MaxNewTweetsPerCheck != nil {
		target.MaxNewTweetsPerCheck = *payload.MaxNewTweetsPerCheck
	}

	if err := validateTargetCreate(target.TargetUserID, target.CheckIntervalMinutes, target.FetchTweetCount, target.MaxNewTweetsPerCheck); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.repo.GetByUserID(r.Context(), target.TargetUserID)
	if err != nil {
		h.logger.Error("failed to check for existing target", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create target")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "Target already exists")
		return
	}

	if err := h.repo.Create(r.Context(), target); err != nil {
		h.logger.Error("failed to create target", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create target")
		return
	}

	h.logger.Info("target created", "target_id", target.ID, "target_user_id", target.TargetUserID)
	respondData(w, http.StatusCreated, target)
}

// GetTarget returns a single monitor target
// GET /api/targets/:id
func (h *TargetsHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/targets/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	target, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get target", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get target")
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "Target not found")
		return
	}
	respondData(w, http.StatusOK, target)
}

// UpdateTarget applies a partial update. The external user id is
// immutable once created.
// PUT /api/targets/:id
func (h *TargetsHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/targets/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	target, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get target", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get target")
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "Target not found")
		return
	}

	var payload targetPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if payload.TargetUserID != nil && *payload.TargetUserID != target.TargetUserID {
		respondError(w, http.StatusBadRequest, "target_user_id cannot be changed")
		return
	}
	if payload.TargetUsername != nil {
		target.TargetUsername = *payload.TargetUsername
	}
	if payload.Name != nil {
		target.Name = *payload.Name
	}
	if payload.Status != nil {
		next := models.TargetStatus(*payload.Status)
		if next == models.TargetStatusActive && target.Status != models.TargetStatusActive {
			target.ConsecutiveFailures = 0
		}
		target.Status = next
	}
	if payload.CheckIntervalMinutes != nil {
		target.CheckIntervalMinutes = *payload.CheckIntervalMinutes
	}
	if payload.FetchTweetCount != nil {
		target.FetchTweetCount = *payload.FetchTweetCount
	}
	if payload.MaxNewTweetsPerCheck != nil {
		target.MaxNewTweetsPerCheck = *payload.MaxNewTweetsPerCheck
	}

	if err := validateTargetLimits(target.CheckIntervalMinutes, target.FetchTweetCount, target.MaxNewTweetsPerCheck); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), target); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Target not found")
			return
		}
		h.logger.Error("failed to update target", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update target")
		return
	}
	respondData(w, http.StatusOK, target)
}

// DeleteTarget removes a monitor target
// DELETE /api/targets/:id
func (h *TargetsHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/targets/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Target not found")
			return
		}
		h.logger.Error("failed to delete target", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete target")
		return
	}

	h.logger.Info("target deleted", "target_id", id)
	respondMessage(w, http.StatusOK, "Target deleted")
}

// ToggleTargetStatus flips a target between active and disabled.
// Activating clears the consecutive-failure counter so a target that
// was auto-disabled starts fresh.
// POST /api/targets/:id/toggle-status
func (h *TargetsHandler) ToggleTargetStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/targets/", "/toggle-status")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	target, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get target", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get target")
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "Target not found")
		return
	}

	if target.Status == models.TargetStatusActive {
		target.Status = models.TargetStatusDisabled
	} else {
		target.Status = models.TargetStatusActive
		target.ConsecutiveFailures = 0
	}

	if err := h.repo.Update(r.Context(), target); err != nil {
		h.logger.Error("failed to toggle target status", "target_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update target")
		return
	}

	h.logger.Info("target status toggled", "target_id", id, "status", target.Status)
	respondData(w, http.StatusOK, target)
}

// CheckTargetNow runs a monitor check for the target immediately,
// bypassing its schedule. A check already in flight wins.
// POST /api/targets/:id/check
func (h *TargetsHandler) CheckTargetNow(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/targets/", "/check")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid target id")
		return
	}

	outcome, err := h.scheduler.RunNow(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, "Target not found")
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			respondError(w, http.StatusConflict, "Check already in progress")
		default:
			h.logger.Error("manual target check failed", "target_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Check failed")
		}
		return
	}
	respondData(w, http.StatusOK, outcome)
}
