package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
)

type TemplatesHandler struct {
	repo   models.ReplyTemplateRepository
	logger *slog.Logger
}

func NewTemplatesHandler(repo models.ReplyTemplateRepository, logger *slog.Logger) *TemplatesHandler {
	return &TemplatesHandler{repo: repo, logger: logger}
}

type templatePayload struct {
	Content   *string `json:"content"`
	Status    *string `json:"status"`
	Scope     *string `json:"scope"`
	TargetID  *int64  `json:"target_id"`
	SortOrder *int    `json:"sort_order"`
}

// ListTemplates returns reply templates with optional filters
// GET /api/reply-templates?status=active&scope=target&target_id=3
func (h *TemplatesHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	q := r.URL.Query()
	var targetID *int64
	if raw := q.Get("target_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid target_id")
			return
		}
		targetID = &id
	}

	templates, err := h.repo.List(r.Context(), q.Get("status"), q.Get("scope"), targetID)
	if err != nil {
		h.logger.Error("failed to list reply templates", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	respondData(w, http.StatusOK, templates)
}

// CreateTemplate adds a reply template
// POST /api/reply-templates
func (h *TemplatesHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload templatePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	template := &models.ReplyTemplate{
		Status: models.StatusActive,
		Scope:  models.TemplateScopeGlobal,
	}
	if payload.Content != nil {
		template.Content = *payload.Content
	}
	if payload.Status != nil {
		template.Status = *payload.Status
	}
	if payload.Scope != nil {
		template.Scope = models.TemplateScope(*payload.Scope)
	}
	template.TargetID = payload.TargetID
	if payload.SortOrder != nil {
		template.SortOrder = *payload.SortOrder
	}

	if err := validateTemplate(template.Content, template.Scope, template.TargetID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Create(r.Context(), template); err != nil {
		h.logger.Error("failed to create reply template", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	h.logger.Info("reply template created", "template_id", template.ID, "scope", template.Scope)
	respondData(w, http.StatusCreated, template)
}

// GetTemplate returns a single reply template
// GET /api/reply-templates/:id
func (h *TemplatesHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/reply-templates/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid template id")
		return
	}

	template, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get reply template", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if template == nil {
		respondError(w, http.StatusNotFound, "Template not found")
		return
	}
	respondData(w, http.StatusOK, template)
}

// UpdateTemplate applies a partial update to a reply template
// PUT /api/reply-templates/:id
func (h *TemplatesHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/reply-templates/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid template id")
		return
	}

	template, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get reply template", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if template == nil {
		respondError(w, http.StatusNotFound, "Template not found")
		return
	}

	var payload templatePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if payload.Content != nil {
		template.Content = *payload.Content
	}
	if payload.Status != nil {
		template.Status = *payload.Status
	}
	if payload.Scope != nil {
		template.Scope = models.TemplateScope(*payload.Scope)
		// Switching to global drops the target binding.
		if template.Scope == models.TemplateScopeGlobal {
			template.TargetID = nil
		}
	}
	if payload.TargetID != nil {
		template.TargetID = payload.TargetID
	}
	if payload.SortOrder != nil {
		template.SortOrder = *payload.SortOrder
	}

	if err := validateTemplate(template.Content, template.Scope, template.TargetID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), template); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Template not found")
			return
		}
		h.logger.Error("failed to update reply template", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	respondData(w, http.StatusOK, template)
}

// DeleteTemplate removes a reply template
// DELETE /api/reply-templates/:id
func (h *TemplatesHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/reply-templates/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid template id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Template not found")
			return
		}
		h.logger.Error("failed to delete reply template", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}
	respondMessage(w, http.StatusOK, "Template deleted")
}

// ToggleTemplateStatus flips a reply template between active and disabled
// POST /api/reply-templates/:id/toggle-status
func (h *TemplatesHandler) ToggleTemplateStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/reply-templates/", "/toggle-status")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid template id")
		return
	}

	template, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get reply template", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if template == nil {
		respondError(w, http.StatusNotFound, "Template not found")
		return
	}

	if template.Status == models.StatusActive {
		template.Status = models.StatusDisabled
	} else {
		template.Status = models.StatusActive
	}

	if err := h.repo.Update(r.Context(), template); err != nil {
		h.logger.Error("failed to toggle reply template status", "template_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}
	respondData(w, http.StatusOK, template)
}

// ReorderTemplates rewrites sort_order to match the given id sequence
// POST /api/reply-templates/reorder
func (h *TemplatesHandler) ReorderTemplates(w http.ResponseWriter, r *http.Request) {
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
		h.logger.Error("failed to reorder reply templates", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reorder templates")
		return
	}
	respondMessage(w, http.StatusOK, "Templates reordered")
}
