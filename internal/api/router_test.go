package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Past-Tang/x/internal/accountpool"
	"github.com/Past-Tang/x/internal/auth"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/scheduler"
	"github.com/Past-Tang/x/internal/selector"
)

type fakePostContentRepo struct {
	models.PostContentRepository
}

func (fakePostContentRepo) List(ctx context.Context, status string) ([]*models.PostContent, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, authConfig auth.Config) *http.ServeMux {
	t.Helper()

	accountRepo := newFakeAccountRepo()
	targetRepo := newFakeTargetRepo()
	pool := accountpool.New(accountRepo, selector.New(), fakeSettings{}, testLogger())
	box := testBox(t)
	monitorSched := scheduler.NewMonitorScheduler(targetRepo, &stubChecker{}, testLogger())
	postSched := scheduler.NewPostScheduler(newFakePostJobRepo(), &stubRunner{}, testLogger())

	mux := http.NewServeMux()
	SetupRoutes(mux, Repositories{
		Accounts:     accountRepo,
		Targets:      targetRepo,
		Templates:    newFakeTemplateRepo(),
		PostJobs:     newFakePostJobRepo(),
		PostContents: fakePostContentRepo{},
		Logs:         &fakeLogRepo{},
		Settings:     newFakeSettingRepo(),
	}, pool, box, monitorSched, postSched, authConfig, testLogger())
	return mux
}

func testAuthConfig() auth.Config {
	return auth.Config{
		JWTSecret:     "test-secret",
		AdminPassword: "hunter2",
		TokenDuration: time.Hour,
	}
}

func TestRouterReadsArePublic(t *testing.T) {
	mux := newTestRouter(t, testAuthConfig())

	for _, path := range []string{"/api/accounts", "/api/targets", "/api/reply-templates", "/api/post-contents", "/api/logs", "/api/settings"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestRouterMutationsRequireAuth(t *testing.T) {
	mux := newTestRouter(t, testAuthConfig())

	requests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/accounts"},
		{http.MethodDelete, "/api/accounts/1"},
		{http.MethodPost, "/api/targets"},
		{http.MethodPut, "/api/targets/1"},
		{http.MethodPost, "/api/post-jobs/1/run"},
		{http.MethodPut, "/api/settings/global_rate_limit"},
		{http.MethodPost, "/api/settings/init"},
	}
	for _, tc := range requests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(`{}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRouterAuthorizedMutation(t *testing.T) {
	cfg := testAuthConfig()
	mux := newTestRouter(t, cfg)

	token, err := auth.GenerateToken("admin", cfg.JWTSecret, cfg.TokenDuration)
	if err != nil {
		t.Fatal(err)
	}

	body := `{"name":"main","auth_token":"tok_1234567890"}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouterLogin(t *testing.T) {
	mux := newTestRouter(t, testAuthConfig())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"password":"hunter2"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRouterPreflight(t *testing.T) {
	mux := newTestRouter(t, testAuthConfig())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/accounts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("CORS header missing on preflight")
	}
}
