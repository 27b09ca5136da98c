package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Past-Tang/x/internal/models"
)

type fakeLogRepo struct {
	models.ExecutionLogRepository
	entries    []*models.ExecutionLog
	total      int
	lastFilter models.LogFilter
	stats      *models.LogStats
}

func (r *fakeLogRepo) List(ctx context.Context, filter models.LogFilter) ([]*models.ExecutionLog, int, error) {
	r.lastFilter = filter
	return r.entries, r.total, nil
}

func (r *fakeLogRepo) GetByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	for _, entry := range r.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) Stats(ctx context.Context) (*models.LogStats, error) {
	return r.stats, nil
}

func TestListLogsPagination(t *testing.T) {
	repo := &fakeLogRepo{
		entries: []*models.ExecutionLog{{ID: "a"}, {ID: "b"}},
		total:   45,
	}
	handler := NewLogsHandler(repo, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/logs?log_type=reply&result=failed&target_id=3&page=2&per_page=20", nil)
	rec := httptest.NewRecorder()
	handler.ListLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if repo.lastFilter.LogType != "reply" || repo.lastFilter.Result != "failed" {
		t.Fatalf("filter not passed through: %+v", repo.lastFilter)
	}
	if repo.lastFilter.TargetID == nil || *repo.lastFilter.TargetID != 3 {
		t.Fatal("target_id filter not parsed")
	}

	envelope := decodeEnvelope(t, rec.Body)
	pagination := envelope["pagination"].(map[string]any)
	if pagination["page"] != float64(2) || pagination["per_page"] != float64(20) {
		t.Fatalf("pagination = %v", pagination)
	}
	if pagination["total"] != float64(45) || pagination["pages"] != float64(3) {
		t.Fatalf("pagination totals = %v", pagination)
	}
}

func TestListLogsPerPageCapped(t *testing.T) {
	repo := &fakeLogRepo{}
	handler := NewLogsHandler(repo, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/logs?per_page=500", nil)
	rec := httptest.NewRecorder()
	handler.ListLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.lastFilter.PerPage != maxLogPageSize {
		t.Fatalf("PerPage = %d, want %d", repo.lastFilter.PerPage, maxLogPageSize)
	}
}

func TestListLogsRejectsBadDate(t *testing.T) {
	handler := NewLogsHandler(&fakeLogRepo{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/logs?start_date=yesterday", nil)
	rec := httptest.NewRecorder()
	handler.ListLogs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetLogNotFound(t *testing.T) {
	handler := NewLogsHandler(&fakeLogRepo{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/logs/550e8400-e29b-41d4-a716-446655440000", nil)
	rec := httptest.NewRecorder()
	handler.GetLog(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetLogStats(t *testing.T) {
	repo := &fakeLogRepo{stats: &models.LogStats{
		ByType:    map[string]int{"reply": 10},
		ByResult:  map[string]int{"success": 9, "failed": 1},
		Recent24h: 4,
	}}
	handler := NewLogsHandler(repo, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil)
	rec := httptest.NewRecorder()
	handler.GetLogStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]any)
	if data["recent_24h"] != float64(4) {
		t.Fatalf("recent_24h = %v, want 4", data["recent_24h"])
	}
}
