package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Past-Tang/x/internal/accountpool"
	"github.com/Past-Tang/x/internal/database"
	"github.com/Past-Tang/x/internal/models"
	"github.com/Past-Tang/x/internal/secrets"
)

type AccountsHandler struct {
	repo   models.AccountRepository
	pool   *accountpool.Pool
	box    *secrets.Box
	logger *slog.Logger
}

func NewAccountsHandler(repo models.AccountRepository, pool *accountpool.Pool, box *secrets.Box, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		repo:   repo,
		pool:   pool,
		box:    box,
		logger: logger,
	}
}

type accountPayload struct {
	Name               *string `json:"name"`
	TwitterUserID      *string `json:"twitter_user_id"`
	TwitterHandle      *string `json:"twitter_handle"`
	AuthToken          *string `json:"auth_token"`
	Status             *string `json:"status"`
	Weight             *int    `json:"weight"`
	MaxConcurrentUsage *int    `json:"max_concurrent_usage"`
}

// maskToken fills TokenMasked from the sealed token so responses never
// carry the plaintext.
func (h *AccountsHandler) maskToken(account *models.Account) {
	token, err := h.box.Open(account.EncryptedToken)
	if err != nil {
		h.logger.Warn("failed to open account token for masking", "account_id", account.ID, "error", err)
		return
	}
	account.TokenMasked = secrets.Mask(token)
}

// ListAccounts returns all accounts, optionally filtered by status
// GET /api/accounts?status=active
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	accounts, err := h.repo.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	for _, account := range accounts {
		h.maskToken(account)
	}
	respondData(w, http.StatusOK, accounts)
}

// ListAvailableAccounts returns accounts currently eligible for work
// GET /api/accounts/available
func (h *AccountsHandler) ListAvailableAccounts(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	accounts, err := h.pool.Eligible(r.Context())
	if err != nil {
		h.logger.Error("failed to list eligible accounts", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to list available accounts")
		return
	}

	for _, account := range accounts {
		h.maskToken(account)
	}
	respondData(w, http.StatusOK, accounts)
}

// CreateAccount adds a new account to the pool
// POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	var payload accountPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	account := &models.Account{
		Status:             models.AccountStatusActive,
		Weight:             1,
		MaxConcurrentUsage: 3,
	}
	if payload.Name != nil {
		account.Name = *payload.Name
	}
	if payload.TwitterUserID != nil {
		account.TwitterUserID = *payload.TwitterUserID
	}
	if payload.TwitterHandle != nil {
		account.TwitterHandle = *payload.TwitterHandle
	}
	if payload.Weight != nil {
		account.Weight = *payload.Weight
	}
	if payload.MaxConcurrentUsage != nil {
		account.MaxConcurrentUsage = *payload.MaxConcurrentUsage
	}
	if payload.Status != nil {
		account.Status = models.AccountStatus(*payload.Status)
	}

	var token string
	if payload.AuthToken != nil {
		token = *payload.AuthToken
	}
	if err := validateAccountCreate(account.Name, token, account.Weight, account.MaxConcurrentUsage); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sealed, err := h.box.Seal(token)
	if err != nil {
		h.logger.Error("failed to seal account token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to store account")
		return
	}
	account.EncryptedToken = sealed

	if err := h.repo.Create(r.Context(), account); err != nil {
		h.logger.Error("failed to create account", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.logger.Info("account created", "account_id", account.ID, "name", account.Name)

	account.TokenMasked = secrets.Mask(token)
	respondData(w, http.StatusCreated, account)
}

// GetAccount returns a single account
// GET /api/accounts/:id
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/accounts/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get account", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get account")
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}

	h.maskToken(account)
	respondData(w, http.StatusOK, account)
}

// UpdateAccount applies a partial update to an account. Setting status
// back to active clears the consecutive-failure counter.
// PUT /api/accounts/:id
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/accounts/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get account", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get account")
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}

	var payload accountPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if payload.Name != nil {
		account.Name = *payload.Name
	}
	if payload.TwitterUserID != nil {
		account.TwitterUserID = *payload.TwitterUserID
	}
	if payload.TwitterHandle != nil {
		account.TwitterHandle = *payload.TwitterHandle
	}
	if payload.Weight != nil {
		account.Weight = *payload.Weight
	}
	if payload.MaxConcurrentUsage != nil {
		account.MaxConcurrentUsage = *payload.MaxConcurrentUsage
	}
	if payload.Status != nil {
		next := models.AccountStatus(*payload.Status)
		if next == models.AccountStatusActive && account.Status != models.AccountStatusActive {
			account.ConsecutiveFailures = 0
		}
		account.Status = next
	}
	if err := validateAccountLimits(account.Weight, account.MaxConcurrentUsage); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if payload.AuthToken != nil && *payload.AuthToken != "" {
		sealed, err := h.box.Seal(*payload.AuthToken)
		if err != nil {
			h.logger.Error("failed to seal account token", "account_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to update account")
			return
		}
		account.EncryptedToken = sealed
	}

	if err := h.repo.Update(r.Context(), account); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.logger.Error("failed to update account", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}

	h.maskToken(account)
	respondData(w, http.StatusOK, account)
}

// DeleteAccount removes an account from the pool
// DELETE /api/accounts/:id
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/accounts/", "")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.logger.Error("failed to delete account", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	h.logger.Info("account deleted", "account_id", id)
	respondMessage(w, http.StatusOK, "Account deleted")
}

// ToggleAccountStatus flips an account between active and disabled.
// Activating also clears the consecutive-failure counter, which is how
// an operator rehabilitates a suspect account.
// POST /api/accounts/:id/toggle-status
func (h *AccountsHandler) ToggleAccountStatus(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id, ok := pathID(r.URL.Path, "/api/accounts/", "/toggle-status")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid account id")
		return
	}

	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get account", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to get account")
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}

	if account.Status == models.AccountStatusActive {
		account.Status = models.AccountStatusDisabled
	} else {
		account.Status = models.AccountStatusActive
		account.ConsecutiveFailures = 0
	}

	if err := h.repo.Update(r.Context(), account); err != nil {
		h.logger.Error("failed to toggle account status", "account_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update account")
		return
	}

	h.logger.Info("account status toggled", "account_id", id, "status", account.Status)

	h.maskToken(account)
	respondData(w, http.StatusOK, account)
}
