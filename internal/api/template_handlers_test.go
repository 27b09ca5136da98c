package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Past-Tang/x/internal/models"
)

type fakeTemplateRepo struct {
	models.ReplyTemplateRepository
	templates map[int64]*models.ReplyTemplate
	nextID    int64
	reordered []int64
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[int64]*models.ReplyTemplate{}, nextID: 1}
}

func (r *fakeTemplateRepo) Create(ctx context.Context, template *models.ReplyTemplate) error {
	template.ID = r.nextID
	r.nextID++
	copied := *template
	r.templates[template.ID] = &copied
	return nil
}

func (r *fakeTemplateRepo) List(ctx context.Context, status, scope string, targetID *int64) ([]*models.ReplyTemplate, error) {
	var out []*models.ReplyTemplate
	for id := int64(1); id < r.nextID; id++ {
		if template, ok := r.templates[id]; ok {
			copied := *template
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTemplateRepo) Reorder(ctx context.Context, ids []int64) error {
	r.reordered = ids
	return nil
}

func TestCreateTemplateTargetScopeRequiresTargetID(t *testing.T) {
	handler := NewTemplatesHandler(newFakeTemplateRepo(), testLogger())

	body := `{"content":"nice one","scope":"target"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply-templates", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.CreateTemplate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateTemplateGlobalRejectsTargetID(t *testing.T) {
	handler := NewTemplatesHandler(newFakeTemplateRepo(), testLogger())

	body := `{"content":"nice one","scope":"global","target_id":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply-templates", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.CreateTemplate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateTemplateDefaultsToGlobal(t *testing.T) {
	repo := newFakeTemplateRepo()
	handler := NewTemplatesHandler(repo, testLogger())

	body := `{"content":"nice one"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply-templates", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.CreateTemplate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	stored := repo.templates[1]
	if stored.Scope != models.TemplateScopeGlobal || stored.Status != models.StatusActive {
		t.Fatalf("defaults wrong: %+v", stored)
	}
}

func TestReorderTemplates(t *testing.T) {
	repo := newFakeTemplateRepo()
	handler := NewTemplatesHandler(repo, testLogger())

	body := `{"ids":[3,1,2]}`
	req := httptest.NewRequest(http.MethodPost, "/api/reply-templates/reorder", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ReorderTemplates(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if len(repo.reordered) != 3 || repo.reordered[0] != 3 {
		t.Fatalf("reordered = %v, want [3 1 2]", repo.reordered)
	}
}

func TestReorderTemplatesRequiresIDs(t *testing.T) {
	handler := NewTemplatesHandler(newFakeTemplateRepo(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/reply-templates/reorder", bytes.NewBufferString(`{"ids":[]}`))
	rec := httptest.NewRecorder()
	handler.ReorderTemplates(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
