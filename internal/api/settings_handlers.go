package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/settings"
)

type SettingsHandler struct {
	repo   models.SettingRepository
	logger *slog.Logger
}

func NewSettingsHandler(repo models.SettingRepository, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{repo: repo, logger: logger}
}

// settingValueString renders a JSON value the way it is stored in the
// value column: strings bare, everything else JSON-encoded.
func settingValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

// ListSettings returns all settings with typed values
// GET /api/settings
func (h *SettingsHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	rows, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list settings", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	respondData(w, http.StatusOK, rows)
}

// GetSetting returns a single setting by key
// GET /api/settings/:key
func (h *SettingsHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	key := settingKey(r.URL.Path)
	if key == "" {
		respondError(w, http.StatusBadRequest, "Invalid setting key")
		return
	}

	setting, err := h.repo.Get(r.Context(), key)
	if err != nil {
		h.logger.Error("failed to get setting", "key", key, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	if setting == nil {
		respondError(w, http.StatusNotFound, "Setting not found")
		return
	}
	respondData(w, http.StatusOK, setting)
}

// UpsertSetting creates or updates a setting
// PUT /api/settings/:key
// Body: {"value": 30, "value_type": "int", "description": "..."}
func (h *SettingsHandler) UpsertSetting(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	key := settingKey(r.URL.Path)
	if key == "" {
		respondError(w, http.StatusBadRequest, "Invalid setting key")
		return
	}

	var payload struct {
		Value       any    `json:"value"`
		ValueType   string `json:"value_type"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.Value == nil {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	setting := &models.Setting{
		Key:         key,
		Value:       settingValueString(payload.Value),
		ValueType:   payload.ValueType,
		Description: payload.Description,
	}
	if err := h.repo.Upsert(r.Context(), setting); err != nil {
		h.logger.Error("failed to upsert setting", "key", key, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	saved, err := h.repo.Get(r.Context(), key)
	if err != nil || saved == nil {
		respondMessage(w, http.StatusOK, "Setting saved")
		return
	}
	respondData(w, http.StatusOK, saved)
}

// BatchUpdateSettings updates several existing settings at once.
// Unknown keys are skipped.
// PUT /api/settings/batch
// Body: {"settings": {"global_rate_limit": 30, "min_random_delay": 1}}
func (h *SettingsHandler) BatchUpdateSettings(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload struct {
		Settings map[string]any `json:"settings"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}
	if len(payload.Settings) == 0 {
		respondError(w, http.StatusBadRequest, "settings is required")
		return
	}

	for key, value := range payload.Settings {
		if err := h.repo.SetValue(r.Context(), key, settingValueString(value)); err != nil {
			h.logger.Error("failed to update setting", "key", key, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}
	}
	respondMessage(w, http.StatusOK, fmt.Sprintf("Updated %d settings", len(payload.Settings)))
}

// InitSettings seeds any missing default settings and reports the keys
// it created
// POST /api/settings/init
func (h *SettingsHandler) InitSettings(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	created, err := h.repo.InitDefaults(r.Context(), settings.Defaults())
	if err != nil {
		h.logger.Error("failed to init settings", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to init settings")
		return
	}

	h.logger.Info("settings initialized", "created", len(created))
	respondData(w, http.StatusOK, map[string]any{"created": created})
}

func settingKey(path string) string {
	return strings.Trim(strings.TrimPrefix(path, "/api/settings/"), "/")
}
