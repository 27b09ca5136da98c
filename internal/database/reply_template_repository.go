package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresReplyTemplateRepository persists reply templates.
type PostgresReplyTemplateRepository struct {
	db *sql.DB
}

func NewPostgresReplyTemplateRepository(db *sql.DB) *PostgresReplyTemplateRepository {
	return &PostgresReplyTemplateRepository{db: db}
}

const templateColumns = `
	id, content, status, scope, target_id, sort_order,
	usage_count, last_used_at, created_at, updated_at`

func (r *PostgresReplyTemplateRepository) Create(ctx context.Context, template *models.ReplyTemplate) error {
	// New templates default to the end of the pick order.
	query := `
		INSERT INTO reply_templates (content, status, scope, target_id, sort_order)
		VALUES ($1, $2, $3, $4,
			COALESCE($5, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM reply_templates)))
		RETURNING id, sort_order, created_at, updated_at
	`

	var sortOrder *int
	if template.SortOrder > 0 {
		sortOrder = &template.SortOrder
	}

	err := r.db.QueryRowContext(ctx, query,
		template.Content,
		template.Status,
		template.Scope,
		template.TargetID,
		sortOrder,
	).Scan(&template.ID, &template.SortOrder, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reply template: %w", err)
	}
	return nil
}

func (r *PostgresReplyTemplateRepository) GetByID(ctx context.Context, id int64) (*models.ReplyTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+templateColumns+` FROM reply_templates WHERE id = $1`, id)
	return scanTemplate(row)
}

func (r *PostgresReplyTemplateRepository) List(ctx context.Context, status, scope string, targetID *int64) ([]*models.ReplyTemplate, error) {
	query := `SELECT` + templateColumns + ` FROM reply_templates WHERE 1=1`
	args := []any{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if scope != "" {
		args = append(args, scope)
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if targetID != nil {
		args = append(args, *targetID)
		query += fmt.Sprintf(" AND target_id = $%d", len(args))
	}
	query += ` ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (r *PostgresReplyTemplateRepository) Update(ctx context.Context, template *models.ReplyTemplate) error {
	query := `
		UPDATE reply_templates SET
			content = $2,
			status = $3,
			scope = $4,
			target_id = $5,
			sort_order = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		template.ID,
		template.Content,
		template.Status,
		template.Scope,
		template.TargetID,
		template.SortOrder,
	).Scan(&template.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

func (r *PostgresReplyTemplateRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reply_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveForTarget returns active templates usable for a target:
// target-scoped ones first, then global ones, each ordered by
// sort_order then id. The rotation layer relies on this ordering.
func (r *PostgresReplyTemplateRepository) ListActiveForTarget(ctx context.Context, targetID int64) ([]*models.ReplyTemplate, error) {
	query := `SELECT` + templateColumns + `
		FROM reply_templates
		WHERE status = 'active'
		  AND (scope = 'global' OR (scope = 'target' AND target_id = $1))
		ORDER BY CASE scope WHEN 'target' THEN 0 ELSE 1 END, sort_order, id
	`

	rows, err := r.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (r *PostgresReplyTemplateRepository) RecordUsage(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reply_templates SET
			usage_count = usage_count + 1,
			last_used_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresReplyTemplateRepository) Reorder(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reply_templates SET sort_order = $2, updated_at = NOW() WHERE id = $1`,
			id, i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanTemplate(row *sql.Row) (*models.ReplyTemplate, error) {
	var t models.ReplyTemplate
	err := row.Scan(
		&t.ID, &t.Content, &t.Status, &t.Scope, &t.TargetID, &t.SortOrder,
		&t.UsageCount, &t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTemplates(rows *sql.Rows) ([]*models.ReplyTemplate, error) {
	templates := []*models.ReplyTemplate{}
	for rows.Next() {
		var t models.ReplyTemplate
		err := rows.Scan(
			&t.ID, &t.Content, &t.Status, &t.Scope, &t.TargetID, &t.SortOrder,
			&t.UsageCount, &t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}
