package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresPostJobRepository persists auto-posting jobs.
type PostgresPostJobRepository struct {
	db *sql.DB
}

func NewPostgresPostJobRepository(db *sql.DB) *PostgresPostJobRepository {
	return &PostgresPostJobRepository{db: db}
}

const postJobColumns = `
	id, name, status, interval_minutes, current_content_index,
	account_strategy, last_run_at, next_run_at, last_run_result,
	last_run_error, last_tweet_id, total_posts, created_at, updated_at`

func (r *PostgresPostJobRepository) Create(ctx context.Context, job *models.PostJob) error {
	query := `
		INSERT INTO post_jobs (name, status, interval_minutes, account_strategy)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		job.Name,
		job.Status,
		job.IntervalMinutes,
		job.AccountStrategy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post job: %w", err)
	}
	return nil
}

func (r *PostgresPostJobRepository) GetByID(ctx context.Context, id int64) (*models.PostJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+postJobColumns+` FROM post_jobs WHERE id = $1`, id)
	return scanPostJob(row)
}

func (r *PostgresPostJobRepository) List(ctx context.Context, status string) ([]*models.PostJob, error) {
	query := `SELECT` + postJobColumns + ` FROM post_jobs`
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

	return collectPostJobs(rows)
}

func (r *PostgresPostJobRepository) Update(ctx context.Context, job *models.PostJob) error {
	query := `
		UPDATE post_jobs SET
			name = $2,
			status = $3,
			interval_minutes = $4,
			current_content_index = $5,
			account_strategy = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		job.ID,
		job.Name,
		job.Status,
		job.IntervalMinutes,
		job.CurrentContentIndex,
		job.AccountStrategy,
	).Scan(&job.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (r *PostgresPostJobRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM post_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresPostJobRepository) ListDue(ctx context.Context, now time.Time) ([]*models.PostJob, error) {
	query := `SELECT` + postJobColumns + `
		FROM post_jobs
		WHERE status = 'active'
		  AND (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY next_run_at NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPostJobs(rows)
}

func (r *PostgresPostJobRepository) UpdateRunState(ctx context.Context, job *models.PostJob) error {
	query := `
		UPDATE post_jobs SET
			current_content_index = $2,
			last_run_at = $3,
			next_run_at = $4,
			last_run_result = $5,
			last_run_error = $6,
			last_tweet_id = $7,
			total_posts = $8,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.CurrentContentIndex,
		job.LastRunAt,
		job.NextRunAt,
		nullString(job.LastRunResult),
		nullString(job.LastRunError),
		nullString(job.LastTweetID),
		job.TotalPosts,
	)
	return err
}

func scanPostJob(row *sql.Row) (*models.PostJob, error) {
	var j models.PostJob
	var result, runErr, tweetID sql.NullString

	err := row.Scan(
		&j.ID, &j.Name, &j.Status, &j.IntervalMinutes, &j.CurrentContentIndex,
		&j.AccountStrategy, &j.LastRunAt, &j.NextRunAt, &result,
		&runErr, &tweetID, &j.TotalPosts, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.LastRunResult = result.String
	j.LastRunError = runErr.String
	j.LastTweetID = tweetID.String
	return &j, nil
}

func collectPostJobs(rows *sql.Rows) ([]*models.PostJob, error) {
	jobs := []*models.PostJob{}
	for rows.Next() {
		var j models.PostJob
		var result, runErr, tweetID sql.NullString

		err := rows.Scan(
			&j.ID, &j.Name, &j.Status, &j.IntervalMinutes, &j.CurrentContentIndex,
			&j.AccountStrategy, &j.LastRunAt, &j.NextRunAt, &result,
			&runErr, &tweetID, &j.TotalPosts, &j.CreatedAt, &j.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		j.LastRunResult = result.String
		j.LastRunError = runErr.String
		j.LastTweetID = tweetID.String
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}
