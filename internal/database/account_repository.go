package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresAccountRepository persists pooled accounts. All counter
// mutations are single conditional UPDATE statements so concurrent
// pipeline runs cannot both claim the same capacity.
type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `
	id, name, twitter_user_id, twitter_handle, encrypted_token, status,
	last_used_at, last_success_at, last_failure_at, last_failure_reason,
	consecutive_failures, hourly_action_count, hourly_reset_at,
	current_usage_count, max_concurrent_usage, weight, created_at, updated_at`

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts
		(name, twitter_user_id, twitter_handle, encrypted_token, status,
		 max_concurrent_usage, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		account.Name,
		nullString(account.TwitterUserID),
		nullString(account.TwitterHandle),
		account.EncryptedToken,
		account.Status,
		account.MaxConcurrentUsage,
		account.Weight,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepository) List(ctx context.Context, status string) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *PostgresAccountRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts SET
			name = $2,
			twitter_user_id = $3,
			twitter_handle = $4,
			encrypted_token = $5,
			status = $6,
			consecutive_failures = $7,
			max_concurrent_usage = $8,
			weight = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		account.ID,
		account.Name,
		nullString(account.TwitterUserID),
		nullString(account.TwitterHandle),
		account.EncryptedToken,
		account.Status,
		account.ConsecutiveFailures,
		account.MaxConcurrentUsage,
		account.Weight,
	).Scan(&account.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEligible returns accounts that can take another action right now.
// The hourly counter only blocks while its rolling window is open.
func (r *PostgresAccountRepository) ListEligible(ctx context.Context, failureThreshold, hourlyLimit int) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		WHERE status = 'active'
		  AND consecutive_failures < $1
		  AND current_usage_count < max_concurrent_usage
		  AND (hourly_reset_at IS NULL
		       OR hourly_reset_at < NOW() - INTERVAL '1 hour'
		       OR hourly_action_count < $2)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, failureThreshold, hourlyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// TryAcquire claims a concurrency slot. The WHERE clause re-checks
// eligibility inside the same statement, so a row that lost capacity
// between listing and acquiring simply matches nothing.
func (r *PostgresAccountRepository) TryAcquire(ctx context.Context, id int64, failureThreshold, hourlyLimit int) (bool, error) {
	query := `
		UPDATE accounts SET
			current_usage_count = current_usage_count + 1,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND consecutive_failures < $2
		  AND current_usage_count < max_concurrent_usage
		  AND (hourly_reset_at IS NULL
		       OR hourly_reset_at < NOW() - INTERVAL '1 hour'
		       OR hourly_action_count < $3)
	`

	res, err := r.db.ExecContext(ctx, query, id, failureThreshold, hourlyLimit)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresAccountRepository) Release(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			current_usage_count = GREATEST(current_usage_count - 1, 0),
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// hourlyBump resets the rolling counter when the window has lapsed,
// otherwise increments it. Shared by RecordSuccess and RecordFailure.
const hourlyBump = `
	hourly_action_count = CASE
		WHEN hourly_reset_at IS NULL OR hourly_reset_at < NOW() - INTERVAL '1 hour' THEN 1
		ELSE hourly_action_count + 1
	END,
	hourly_reset_at = CASE
		WHEN hourly_reset_at IS NULL OR hourly_reset_at < NOW() - INTERVAL '1 hour' THEN NOW()
		ELSE hourly_reset_at
	END`

func (r *PostgresAccountRepository) RecordSuccess(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			last_used_at = NOW(),
			last_success_at = NOW(),
			consecutive_failures = 0,
			`+hourlyBump+`,
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresAccountRepository) RecordFailure(ctx context.Context, id int64, reason string, failureThreshold int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			last_used_at = NOW(),
			last_failure_at = NOW(),
			last_failure_reason = $2,
			consecutive_failures = consecutive_failures + 1,
			status = CASE
				WHEN consecutive_failures + 1 >= $3 AND status = 'active' THEN 'suspect'
				ELSE status
			END,
			`+hourlyBump+`,
			updated_at = NOW()
		WHERE id = $1
	`, id, reason, failureThreshold)
	return err
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var twitterUserID, twitterHandle, failureReason sql.NullString

	err := row.Scan(
		&a.ID, &a.Name, &twitterUserID, &twitterHandle, &a.EncryptedToken, &a.Status,
		&a.LastUsedAt, &a.LastSuccessAt, &a.LastFailureAt, &failureReason,
		&a.ConsecutiveFailures, &a.HourlyActionCount, &a.HourlyResetAt,
		&a.CurrentUsageCount, &a.MaxConcurrentUsage, &a.Weight, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.TwitterUserID = twitterUserID.String
	a.TwitterHandle = twitterHandle.String
	a.LastFailureReason = failureReason.String
	return &a, nil
}

func collectAccounts(rows *sql.Rows) ([]*models.Account, error) {
	accounts := []*models.Account{}
	for rows.Next() {
		var a models.Account
		var twitterUserID, twitterHandle, failureReason sql.NullString

		err := rows.Scan(
			&a.ID, &a.Name, &twitterUserID, &twitterHandle, &a.EncryptedToken, &a.Status,
			&a.LastUsedAt, &a.LastSuccessAt, &a.LastFailureAt, &failureReason,
			&a.ConsecutiveFailures, &a.HourlyActionCount, &a.HourlyResetAt,
			&a.CurrentUsageCount, &a.MaxConcurrentUsage, &a.Weight, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		a.TwitterUserID = twitterUserID.String
		a.TwitterHandle = twitterHandle.String
		a.LastFailureReason = failureReason.String
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
