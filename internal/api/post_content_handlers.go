package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
)

type PostContentsHandler struct {
	repo   models.PostContentRepository
	logger *slog.Logger
}

func NewPostContentsHandler(repo models.PostContentRepository, logger *slog.Logger) *PostContentsHandler {
	return &PostContentsHandler{repo: repo, logger: logger}
}

type postContentPayload struct {
	Text      *string `json:"text"`
	Link      *string `json:"link"`
	Status    *string `json:"status"`
	SortOrder *int    `json:"sort_order"`
}

// ListPostContents returns the content pool, optionally filtered by status
// GET /api/post-contents?status=active
func (h *PostContentsHandler) ListPostContents(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	contents, err := h.repo.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("failed to list post contents", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list post contents")
		return
	}
	respondData(w, http.StatusOK, contents)
}

// CreatePostContent adds an entry to the content pool
// POST /api/post-contents
func (h *PostContentsHandler) CreatePostContent(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload postContentPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	content := &models.PostContent{Status: models.StatusActive}
	if payload.Text != nil {
		content.Text = *payload.Text
	}
	if payload.Link != nil {
		content.Link = *payload.Link
	}
	if payload.Status != nil {
		content.Status = *payload.Status
	}
	if payload.SortOrder != nil {
		content.SortOrder = *payload.SortOrder
	}

	if err := validatePostContent(content.Text); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(r.Context(), content); err != nil {
		h.logger.Error("failed to create post content", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create post content")
		return
	}
	respondData(w, http.StatusCreated, content)
}

// GetPostContent returns a single content entry
// GET /api/post-contents/:id
func (h *PostContentsHandler) GetPostContent(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-contents/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid content id")
		return
	}

	content, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post content", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post content")
		return
	}
	if content == nil {
		respondError(w, http.StatusNotFound, "Post content not found")
		return
	}
	respondData(w, http.StatusOK, content)
}

// UpdatePostContent applies a partial update to a content entry
// PUT /api/post-contents/:id
func (h *PostContentsHandler) UpdatePostContent(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-contents/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid content id")
		return
	}

	content, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post content", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post content")
		return
	}
	if content == nil {
		respondError(w, http.StatusNotFound, "Post content not found")
		return
	}

	var payload postContentPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if payload.Text != nil {
		content.Text = *payload.Text
	}
	if payload.Link != nil {
		content.Link = *payload.Link
	}
	if payload.Status != nil {
		content.Status = *payload.Status
	}
	if payload.SortOrder != nil {
		content.SortOrder = *payload.SortOrder
	}

	if err := validatePostContent(content.Text); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), content); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post content not found")
			return
		}
		h.logger.Error("failed to update post content", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update post content")
		return
	}
	respondData(w, http.StatusOK, content)
}

// DeletePostContent removes a content entry
// DELETE /api/post-contents/:id
func (h *PostContentsHandler) DeletePostContent(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-contents/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid content id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Post content not found")
			return
		}
		h.logger.Error("failed to delete post content", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete post content")
		return
	}
	respondMessage(w, http.StatusOK, "Post content deleted")
}

// TogglePostContentStatus flips a content entry between active and disabled
// POST /api/post-contents/:id/toggle-status
func (h *PostContentsHandler) TogglePostContentStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/post-contents/", "/toggle-status")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid content id")
		return
	}

	content, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get post content", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get post content")
		return
	}
	if content == nil {
		respondError(w, http.StatusNotFound, "Post content not found")
		return
	}

	if content.Status == models.StatusActive {
		content.Status = models.StatusDisabled
	} else {
		content.Status = models.StatusActive
	}

	if err := h.repo.Update(r.Context(), content); err != nil {
		h.logger.Error("failed to toggle post content status", "content_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update post content")
		return
	}
	respondData(w, http.StatusOK, content)
}

// ReorderPostContents rewrites sort_order to match the given id sequence
// POST /api/post-contents/reorder
func (h *PostContentsHandler) ReorderPostContents(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	if len(payload.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids is required")
		return
	}

	if err := h.repo.Reorder(r.Context(), payload.IDs); err != nil {
		h.logger.Error("failed to reorder post contents", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reorder post contents")
		return
	}
	respondMessage(w, http.StatusOK, "Post contents reordered")
}
