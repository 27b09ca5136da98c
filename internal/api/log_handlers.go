package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Past-Tang/x/internal/models"
)

type LogsHandler struct {
	repo   models.ExecutionLogRepository
	logger *slog.Logger
}

func NewLogsHandler(repo models.ExecutionLogRepository, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{repo: repo, logger: logger}
}

const (
	defaultLogPageSize = 20
	maxLogPageSize     = 100
)

func parseLogFilter(q url.Values) (models.LogFilter, error) {
	filter := models.LogFilter{
		LogType: q.Get("log_type"),
		Result:  q.Get("result"),
		TweetID: q.Get("tweet_id"),
		Page:    1,
		PerPage: defaultLogPageSize,
	}

	for key, dst := range map[string]**int64{
		"account_id": &filter.AccountID,
		"target_id":  &filter.TargetID,
		"job_id":     &filter.JobID,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, ValidationError{Field: key, Message: "must be an integer"}
		}
		*dst = &id
	}

	for key, dst := range map[string]**time.Time{
		"start_date": &filter.StartDate,
		"end_date":   &filter.EndDate,
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			// Bare dates are accepted too.
			t, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return filter, ValidationError{Field: key, Message: "must be an RFC 3339 timestamp or YYYY-MM-DD date"}
		}
		*dst = &t
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, ValidationError{Field: "page", Message: "must be a positive integer"}
		}
		filter.Page = page
	}
	if raw := q.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return filter, ValidationError{Field: "per_page", Message: "must be a positive integer"}
		}
		if perPage > maxLogPageSize {
			perPage = maxLogPageSize
		}
		filter.PerPage = perPage
	}

	return filter, nil
}

// ListLogs returns one page of execution logs, newest first
// GET /api/logs?log_type=reply&result=failed&target_id=3&page=1&per_page=20
func (h *LogsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	filter, err := parseLogFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list execution logs", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}

	pages := total / filter.PerPage
	if total%filter.PerPage != 0 {
		pages++
	}
	respondPage(w, entries, Pagination{
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   total,
		Pages:   pages,
	})
}

// GetLogStats summarizes log volume by type, result and recency
// GET /api/logs/stats
func (h *LogsHandler) GetLogStats(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute log stats", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to compute log stats")
		return
	}
	respondData(w, http.StatusOK, stats)
}

// GetLog returns a single execution log entry
// GET /api/logs/:id
func (h *LogsHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/logs/"), "/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Invalid log id")
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get execution log", "log_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get log")
		return
	}
	if entry == nil {
		respondError(w, http.StatusNotFound, "Log not found")
		return
	}
	respondData(w, http.StatusOK, entry)
}
