package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresPostContentRepository persists the auto-posting content pool.
type PostgresPostContentRepository struct {
	db *sql.DB
}

func NewPostgresPostContentRepository(db *sql.DB) *PostgresPostContentRepository {
	return &PostgresPostContentRepository{db: db}
}

const postContentColumns = `
	id, text, link, status, sort_order, usage_count,
	last_used_at, created_at, updated_at`

func (r *PostgresPostContentRepository) Create(ctx context.Context, content *models.PostContent) error {
	query := `
		INSERT INTO post_contents (text, link, status, sort_order)
		VALUES ($1, $2, $3,
			COALESCE($4, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM post_contents)))
		RETURNING id, sort_order, created_at, updated_at
	`

	var sortOrder *int
	if content.SortOrder > 0 {
		sortOrder = &content.SortOrder
	}

	err := r.db.QueryRowContext(ctx, query,
		content.Text,
		nullString(content.Link),
		content.Status,
		sortOrder,
	).Scan(&content.ID, &content.SortOrder, &content.CreatedAt, &content.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post content: %w", err)
	}
	return nil
}

func (r *PostgresPostContentRepository) GetByID(ctx context.Context, id int64) (*models.PostContent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+postContentColumns+` FROM post_contents WHERE id = $1`, id)
	return scanPostContent(row)
}

func (r *PostgresPostContentRepository) List(ctx context.Context, status string) ([]*models.PostContent, error) {
	query := `SELECT` + postContentColumns + ` FROM post_contents`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPostContents(rows)
}

func (r *PostgresPostContentRepository) Update(ctx context.Context, content *models.PostContent) error {
	query := `
		UPDATE post_contents SET
			text = $2,
			link = $3,
			status = $4,
			sort_order = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		content.ID,
		content.Text,
		nullString(content.Link),
		content.Status,
		content.SortOrder,
	).Scan(&content.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (r *PostgresPostContentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM post_contents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresPostContentRepository) ListActive(ctx context.Context) ([]*models.PostContent, error) {
	return r.List(ctx, models.StatusActive)
}

func (r *PostgresPostContentRepository) RecordUsage(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE post_contents SET
			usage_count = usage_count + 1,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresPostContentRepository) Reorder(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE post_contents SET sort_order = $2, updated_at = NOW() WHERE id = $1`,
			id, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanPostContent(row *sql.Row) (*models.PostContent, error) {
	var c models.PostContent
	var link sql.NullString

	err := row.Scan(
		&c.ID, &c.Text, &link, &c.Status, &c.SortOrder, &c.UsageCount,
		&c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.Link = link.String
	return &c, nil
}

func collectPostContents(rows *sql.Rows) ([]*models.PostContent, error) {
	contents := []*models.PostContent{}
	for rows.Next() {
		var c models.PostContent
		var link sql.NullString

		err := rows.Scan(
			&c.ID, &c.Text, &link, &c.Status, &c.SortOrder, &c.UsageCount,
			&c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		c.Link = link.String
		contents = append(contents, &c)
	}
	return contents, rows.Err()
}
