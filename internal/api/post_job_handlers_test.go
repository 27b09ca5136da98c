package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/poster"
	"github.com/Past-Tang/x/internal/scheduler"
)

type fakePostJobRepo struct {
	models.PostJobRepository
	jobs   map[int64]*models.PostJob
	nextID int64
}

func newFakePostJobRepo() *fakePostJobRepo {
	return &fakePostJobRepo{jobs: map[int64]*models.PostJob{}, nextID: 1}
}

func (r *fakePostJobRepo) Create(ctx context.Context, job *models.PostJob) error {
	job.ID = r.nextID
	r.nextID++
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *fakePostJobRepo) GetByID(ctx context.Context, id int64) (*models.PostJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakePostJobRepo) Update(ctx context.Context, job *models.PostJob) error {
	if _, ok := r.jobs[job.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

type stubRunner struct {
	outcome *poster.RunOutcome
	err     error
}

func (s *stubRunner) ExecuteJob(ctx context.Context, job *models.PostJob) (*poster.RunOutcome, error) {
	return s.outcome, s.err
}

func newPostJobsHandler(repo *fakePostJobRepo, runner *stubRunner) *PostJobsHandler {
	if runner == nil {
		runner = &stubRunner{outcome: &poster.RunOutcome{}}
	}
	sched := scheduler.NewPostScheduler(repo, runner, testLogger())
	return NewPostJobsHandler(repo, sched, testLogger())
}

func TestCreatePostJobDefaults(t *testing.T) {
	repo := newFakePostJobRepo()
	handler := newPostJobsHandler(repo, nil)

	body := `{"name":"daily promo"}`
	req := httptest.NewRequest(http.MethodPost, "/api/post-jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.CreatePostJob(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	stored := repo.jobs[1]
	if stored.IntervalMinutes != 60 || stored.AccountStrategy != "round_robin" {
		t.Fatalf("defaults wrong: %+v", stored)
	}
}

func TestCreatePostJobRejectsUnknownStrategy(t *testing.T) {
	handler := newPostJobsHandler(newFakePostJobRepo(), nil)

	body := `{"name":"daily promo","account_strategy":"fastest"}`
	req := httptest.NewRequest(http.MethodPost, "/api/post-jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.CreatePostJob(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRunPostJobNow(t *testing.T) {
	repo := newFakePostJobRepo()
	runner := &stubRunner{outcome: &poster.RunOutcome{TweetID: "123", ContentID: 7, AccountID: 2}}
	handler := newPostJobsHandler(repo, runner)
	repo.jobs[1] = &models.PostJob{ID: 1, Name: "daily promo", Status: models.StatusActive}
	repo.nextID = 2

	req := httptest.NewRequest(http.MethodPost, "/api/post-jobs/1/run", nil)
	rec := httptest.NewRecorder()
	handler.RunPostJobNow(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec.Body)
	data := envelope["data"].(map[string]any)
	if data["tweet_id"] != "123" {
		t.Fatalf("tweet_id = %v, want 123", data["tweet_id"])
	}
}

func TestRunPostJobNowMissingJob(t *testing.T) {
	handler := newPostJobsHandler(newFakePostJobRepo(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/post-jobs/5/run", nil)
	rec := httptest.NewRecorder()
	handler.RunPostJobNow(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
