package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/Past-Tang/x/internal/accountpool"
	"github.com/Past-Tang/x/internal/auth"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/scheduler"
	"github.com/Past-Tang/x/internal/secrets"
)

// Repositories bundles the persistence interfaces the API serves.
type Repositories struct {
	Accounts     models.AccountRepository
	Targets      models.TargetRepository
	Templates    models.ReplyTemplateRepository
	PostJobs     models.PostJobRepository
	PostContents models.PostContentRepository
	Logs         models.ExecutionLogRepository
	Settings     models.SettingRepository
}

// SetupRoutes configures all API routes. Reads are public; mutations
// go through the auth middleware.
func SetupRoutes(mux *http.ServeMux, repos Repositories, pool *accountpool.Pool, box *secrets.Box, monitorSched *scheduler.MonitorScheduler, postSched *scheduler.PostScheduler, authConfig auth.Config, logger *slog.Logger) {
	accountsHandler := NewAccountsHandler(repos.Accounts, pool, box, logger)
	targetsHandler := NewTargetsHandler(repos.Targets, monitorSched, logger)
	templatesHandler := NewTemplatesHandler(repos.Templates, logger)
	postJobsHandler := NewPostJobsHandler(repos.PostJobs, postSched, logger)
	postContentsHandler := NewPostContentsHandler(repos.PostContents, logger)
	logsHandler := NewLogsHandler(repos.Logs, logger)
	settingsHandler := NewSettingsHandler(repos.Settings, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	authMiddleware := auth.AuthMiddleware(authConfig)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authMiddleware(h).ServeHTTP(w, r)
		}
	}
	preflight := func(w http.ResponseWriter) {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusOK)
	}

	// Authentication routes
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", protected(authHandler.ValidateToken))

	// Account routes
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			accountsHandler.ListAccounts(w, r)
		case http.MethodPost:
			protected(accountsHandler.CreateAccount)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case r.URL.Path == "/api/accounts/available" && r.Method == http.MethodGet:
			accountsHandler.ListAvailableAccounts(w, r)
		case strings.HasSuffix(r.URL.Path, "/toggle-status") && r.Method == http.MethodPost:
			protected(accountsHandler.ToggleAccountStatus)(w, r)
		case r.Method == http.MethodGet:
			accountsHandler.GetAccount(w, r)
		case r.Method == http.MethodPut:
			protected(accountsHandler.UpdateAccount)(w, r)
		case r.Method == http.MethodDelete:
			protected(accountsHandler.DeleteAccount)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Monitor target routes
	mux.HandleFunc("/api/targets", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			targetsHandler.ListTargets(w, r)
		case http.MethodPost:
			protected(targetsHandler.CreateTarget)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/targets/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case strings.HasSuffix(r.URL.Path, "/toggle-status") && r.Method == http.MethodPost:
			protected(targetsHandler.ToggleTargetStatus)(w, r)
		case strings.HasSuffix(r.URL.Path, "/check") && r.Method == http.MethodPost:
			protected(targetsHandler.CheckTargetNow)(w, r)
		case r.Method == http.MethodGet:
			targetsHandler.GetTarget(w, r)
		case r.Method == http.MethodPut:
			protected(targetsHandler.UpdateTarget)(w, r)
		case r.Method == http.MethodDelete:
			protected(targetsHandler.DeleteTarget)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Reply template routes
	mux.HandleFunc("/api/reply-templates", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			templatesHandler.ListTemplates(w, r)
		case http.MethodPost:
			protected(templatesHandler.CreateTemplate)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/reply-templates/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case r.URL.Path == "/api/reply-templates/reorder" && r.Method == http.MethodPost:
			protected(templatesHandler.ReorderTemplates)(w, r)
		case strings.HasSuffix(r.URL.Path, "/toggle-status") && r.Method == http.MethodPost:
			protected(templatesHandler.ToggleTemplateStatus)(w, r)
		case r.Method == http.MethodGet:
			templatesHandler.GetTemplate(w, r)
		case r.Method == http.MethodPut:
			protected(templatesHandler.UpdateTemplate)(w, r)
		case r.Method == http.MethodDelete:
			protected(templatesHandler.DeleteTemplate)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Post job routes
	mux.HandleFunc("/api/post-jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			postJobsHandler.ListPostJobs(w, r)
		case http.MethodPost:
			protected(postJobsHandler.CreatePostJob)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/post-jobs/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case strings.HasSuffix(r.URL.Path, "/toggle-status") && r.Method == http.MethodPost:
			protected(postJobsHandler.TogglePostJobStatus)(w, r)
		case strings.HasSuffix(r.URL.Path, "/run") && r.Method == http.MethodPost:
			protected(postJobsHandler.RunPostJobNow)(w, r)
		case r.Method == http.MethodGet:
			postJobsHandler.GetPostJob(w, r)
		case r.Method == http.MethodPut:
			protected(postJobsHandler.UpdatePostJob)(w, r)
		case r.Method == http.MethodDelete:
			protected(postJobsHandler.DeletePostJob)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Post content routes
	mux.HandleFunc("/api/post-contents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			postContentsHandler.ListPostContents(w, r)
		case http.MethodPost:
			protected(postContentsHandler.CreatePostContent)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/post-contents/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case r.URL.Path == "/api/post-contents/reorder" && r.Method == http.MethodPost:
			protected(postContentsHandler.ReorderPostContents)(w, r)
		case strings.HasSuffix(r.URL.Path, "/toggle-status") && r.Method == http.MethodPost:
			protected(postContentsHandler.TogglePostContentStatus)(w, r)
		case r.Method == http.MethodGet:
			postContentsHandler.GetPostContent(w, r)
		case r.Method == http.MethodPut:
			protected(postContentsHandler.UpdatePostContent)(w, r)
		case r.Method == http.MethodDelete:
			protected(postContentsHandler.DeletePostContent)(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Execution log routes (read-only)
	mux.HandleFunc("/api/logs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			logsHandler.ListLogs(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/logs/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case r.URL.Path == "/api/logs/stats" && r.Method == http.MethodGet:
			logsHandler.GetLogStats(w, r)
		case r.Method == http.MethodGet:
			logsHandler.GetLog(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Settings routes
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			preflight(w)
		case http.MethodGet:
			settingsHandler.ListSettings(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/api/settings/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodOptions:
			preflight(w)
		case r.URL.Path == "/api/settings/batch" && r.Method == http.MethodPut:
			protected(settingsHandler.BatchUpdateSettings)(w, r)
		case r.URL.Path == "/api/settings/init" && r.Method == http.MethodPost:
			protected(settingsHandler.InitSettings)(w, r)
		case r.Method == http.MethodGet:
			settingsHandler.GetSetting(w, r)
		case r.Method == http.MethodPut:
			protected(settingsHandler.UpsertSetting)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
}
