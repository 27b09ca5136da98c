package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresTargetRepository persists monitor targets.
type PostgresTargetRepository struct {
	db *sql.DB
}

func NewPostgresTargetRepository(db *sql.DB) *PostgresTargetRepository {
	return &PostgresTargetRepository{db: db}
}

const targetColumns = `
	id, target_user_id, target_username, name, status,
	check_interval_minutes, fetch_tweet_count, max_new_tweets_per_check,
	last_seen_tweet_id, last_check_at, next_check_at, last_check_result,
	last_check_error, consecutive_failures, total_tweets_found,
	total_replies_sent, created_at, updated_at`

func (r *PostgresTargetRepository) Create(ctx context.Context, target *models.Target) error {
	query := `
		INSERT INTO monitor_targets
		(target_user_id, target_username, name, status,
		 check_interval_minutes, fetch_tweet_count, max_new_tweets_per_check)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		target.TargetUserID,
		nullString(target.TargetUsername),
		nullString(target.Name),
		target.Status,
		target.CheckIntervalMinutes,
		target.FetchTweetCount,
		target.MaxNewTweetsPerCheck,
	).Scan(&target.ID, &target.CreatedAt, &target.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}
	return nil
}

func (r *PostgresTargetRepository) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+targetColumns+` FROM monitor_targets WHERE id = $1`, id)
	return scanTarget(row)
}

func (r *PostgresTargetRepository) GetByUserID(ctx context.Context, userID string) (*models.Target, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+targetColumns+` FROM monitor_targets WHERE target_user_id = $1`, userID)
	return scanTarget(row)
}

func (r *PostgresTargetRepository) List(ctx context.Context, status string) ([]*models.Target, error) {
	query := `SELECT` + targetColumns + ` FROM monitor_targets`
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

	return collectTargets(rows)
}

func (r *PostgresTargetRepository) Update(ctx context.Context, target *models.Target) error {
	// target_user_id is immutable and deliberately absent here.
	query := `
		UPDATE monitor_targets SET
			target_username = $2,
			name = $3,
			status = $4,
			check_interval_minutes = $5,
			fetch_tweet_count = $6,
			max_new_tweets_per_check = $7,
			consecutive_failures = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		target.ID,
		nullString(target.TargetUsername),
		nullString(target.Name),
		target.Status,
		target.CheckIntervalMinutes,
		target.FetchTweetCount,
		target.MaxNewTweetsPerCheck,
		target.ConsecutiveFailures,
	).Scan(&target.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (r *PostgresTargetRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monitor_targets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTargetRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Target, error) {
	query := `SELECT` + targetColumns + `
		FROM monitor_targets
		WHERE status = 'active'
		  AND (next_check_at IS NULL OR next_check_at <= $1)
		ORDER BY next_check_at NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTargets(rows)
}

// UpdateCheckState writes only the fields a monitor check mutates.
// Watermark monotonicity is the monitor service's job; checks for one
// target are serialized by the scheduler guard, so there is no
// concurrent writer to defend against here.
func (r *PostgresTargetRepository) UpdateCheckState(ctx context.Context, target *models.Target) error {
	query := `
		UPDATE monitor_targets SET
			last_seen_tweet_id = $2,
			last_check_at = $3,
			next_check_at = $4,
			last_check_result = $5,
			last_check_error = $6,
			consecutive_failures = $7,
			status = $8,
			total_tweets_found = $9,
			total_replies_sent = $10,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		target.ID,
		nullString(target.LastSeenTweetID),
		target.LastCheckAt,
		target.NextCheckAt,
		nullString(target.LastCheckResult),
		nullString(target.LastCheckError),
		target.ConsecutiveFailures,
		target.Status,
		target.TotalTweetsFound,
		target.TotalRepliesSent,
	)
	return err
}

func scanTarget(row *sql.Row) (*models.Target, error) {
	var t models.Target
	var username, name, lastSeen, result, checkErr sql.NullString

	err := row.Scan(
		&t.ID, &t.TargetUserID, &username, &name, &t.Status,
		&t.CheckIntervalMinutes, &t.FetchTweetCount, &t.MaxNewTweetsPerCheck,
		&lastSeen, &t.LastCheckAt, &t.NextCheckAt, &result,
		&checkErr, &t.ConsecutiveFailures, &t.TotalTweetsFound,
		&t.TotalRepliesSent, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.TargetUsername = username.String
	t.Name = name.String
	t.LastSeenTweetID = lastSeen.String
	t.LastCheckResult = result.String
	t.LastCheckError = checkErr.String
	return &t, nil
}

func collectTargets(rows *sql.Rows) ([]*models.Target, error) {
	targets := []*models.Target{}
	for rows.Next() {
		var t models.Target
		var username, name, lastSeen, result, checkErr sql.NullString

		err := rows.Scan(
			&t.ID, &t.TargetUserID, &username, &name, &t.Status,
			&t.CheckIntervalMinutes, &t.FetchTweetCount, &t.MaxNewTweetsPerCheck,
			&lastSeen, &t.LastCheckAt, &t.NextCheckAt, &result,
			&checkErr, &t.ConsecutiveFailures, &t.TotalTweetsFound,
			&t.TotalRepliesSent, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		t.TargetUsername = username.String
		t.Name = name.String
		t.LastSeenTweetID = lastSeen.String
		t.LastCheckResult = result.String
		t.LastCheckError = checkErr.String
		targets = append(targets, &t)
	}
	return targets, rows.Err()
}
