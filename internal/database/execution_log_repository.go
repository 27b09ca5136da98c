package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresExecutionLogRepository stores the append-only action log.
// Related entity names are joined in on read so the dashboard can show
// them without extra lookups.
type PostgresExecutionLogRepository struct {
	db *sql.DB
}

func NewPostgresExecutionLogRepository(db *sql.DB) *PostgresExecutionLogRepository {
	return &PostgresExecutionLogRepository{db: db}
}

func (r *PostgresExecutionLogRepository) Insert(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO execution_logs
		(id, log_type, account_id, target_id, job_id, tweet_id,
		 tweet_author_id, content_id, content_text, result, error_message,
		 api_response, execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.LogType,
		entry.AccountID,
		entry.TargetID,
		entry.JobID,
		nullString(entry.TweetID),
		nullString(entry.TweetAuthorID),
		entry.ContentID,
		nullString(entry.ContentText),
		entry.Result,
		nullString(entry.ErrorMessage),
		nullString(entry.APIResponse),
		entry.ExecutionTimeMs,
		entry.CreatedAt,
	)
	return err
}

const logSelect = `
	SELECT l.id, l.log_type, l.account_id, a.name, l.target_id,
	       t.target_username, l.job_id, j.name, l.tweet_id,
	       l.tweet_author_id, l.content_id, l.content_text, l.result,
	       l.error_message, l.api_response, l.execution_time_ms, l.created_at
	FROM execution_logs l
	LEFT JOIN accounts a ON a.id = l.account_id
	LEFT JOIN monitor_targets t ON t.id = l.target_id
	LEFT JOIN post_jobs j ON j.id = l.job_id`

func (r *PostgresExecutionLogRepository) GetByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx, logSelect+` WHERE l.id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := collectLogs(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (r *PostgresExecutionLogRepository) List(ctx context.Context, filter models.LogFilter) ([]*models.ExecutionLog, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	addCond := func(cond string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}

	if filter.LogType != "" {
		addCond("l.log_type = $%d", filter.LogType)
	}
	if filter.Result != "" {
		addCond("l.result = $%d", filter.Result)
	}
	if filter.AccountID != nil {
		addCond("l.account_id = $%d", *filter.AccountID)
	}
	if filter.TargetID != nil {
		addCond("l.target_id = $%d", *filter.TargetID)
	}
	if filter.JobID != nil {
		addCond("l.job_id = $%d", *filter.JobID)
	}
	if filter.TweetID != "" {
		addCond("l.tweet_id = $%d", filter.TweetID)
	}
	if filter.StartDate != nil {
		addCond("l.created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		addCond("l.created_at <= $%d", *filter.EndDate)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM execution_logs l` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	args = append(args, perPage, (page-1)*perPage)
	query := logSelect + where + fmt.Sprintf(
		` ORDER BY l.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectLogs(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *PostgresExecutionLogRepository) Stats(ctx context.Context) (*models.LogStats, error) {
	stats := &models.LogStats{
		ByType:   map[string]int{},
		ByResult: map[string]int{},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT log_type, COUNT(*) FROM execution_logs GROUP BY log_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var logType string
		var count int
		if err := rows.Scan(&logType, &count); err != nil {
			return nil, err
		}
		stats.ByType[logType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resultRows, err := r.db.QueryContext(ctx, `SELECT result, COUNT(*) FROM execution_logs GROUP BY result`)
	if err != nil {
		return nil, err
	}
	defer resultRows.Close()
	for resultRows.Next() {
		var result string
		var count int
		if err := resultRows.Scan(&result, &count); err != nil {
			return nil, err
		}
		stats.ByResult[result] = count
	}
	if err := resultRows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM execution_logs WHERE created_at >= NOW() - INTERVAL '24 hours'`,
	).Scan(&stats.Recent24h)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func collectLogs(rows *sql.Rows) ([]*models.ExecutionLog, error) {
	entries := []*models.ExecutionLog{}
	for rows.Next() {
		var e models.ExecutionLog
		var accountName, targetUsername, jobName sql.NullString
		var tweetID, authorID, contentText, errMsg, apiResp sql.NullString

		err := rows.Scan(
			&e.ID, &e.LogType, &e.AccountID, &accountName, &e.TargetID,
			&targetUsername, &e.JobID, &jobName, &tweetID,
			&authorID, &e.ContentID, &contentText, &e.Result,
			&errMsg, &apiResp, &e.ExecutionTimeMs, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		e.AccountName = accountName.String
		e.TargetUsername = targetUsername.String
		e.JobName = jobName.String
		e.TweetID = tweetID.String
		e.TweetAuthorID = authorID.String
		e.ContentText = contentText.String
		e.ErrorMessage = errMsg.String
		e.APIResponse = apiResp.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
