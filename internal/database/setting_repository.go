package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Past-Tang/x/internal/models"
)

// PostgresSettingRepository persists the flat key/value settings store.
type PostgresSettingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresSettingRepository(db *sql.DB, logger *slog.Logger) *PostgresSettingRepository {
	return &PostgresSettingRepository{db: db, logger: logger}
}

const settingColumns = `id, key, value, value_type, description, created_at, updated_at`

func (r *PostgresSettingRepository) List(ctx context.Context) ([]*models.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+settingColumns+` FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := []*models.Setting{}
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *PostgresSettingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+settingColumns+` FROM system_settings WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSetting(rows)
}

func (r *PostgresSettingRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	query := `
		INSERT INTO system_settings (key, value, value_type, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), system_settings.description),
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		setting.Key,
		setting.Value,
		setting.ValueType,
		setting.Description,
	).Scan(&setting.ID, &setting.CreatedAt, &setting.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
	}
	return nil
}

func (r *PostgresSettingRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE system_settings SET value = $2, updated_at = NOW() WHERE key = $1`,
		key, value)
	return err
}

func (r *PostgresSettingRepository) InitDefaults(ctx context.Context, defaults []models.SettingDefault) ([]string, error) {
	created := []string{}
	for _, d := range defaults {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO system_settings (key, value, value_type, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO NOTHING
		`, d.Key, d.Value, d.ValueType, d.Description)
		if err != nil {
			return created, fmt.Errorf("failed to seed setting %s: %w", d.Key, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created = append(created, d.Key)
		}
	}
	return created, nil
}

// Int resolves a setting as an integer, falling back when the key is
// missing or unparseable. Used by the rate limiter and pipelines for
// their runtime-tunable thresholds.
func (r *PostgresSettingRepository) Int(ctx context.Context, key string, fallback int) int {
	s, err := r.Get(ctx, key)
	if err != nil {
		r.logger.Warn("failed to read setting, using fallback", "key", key, "error", err)
		return fallback
	}
	if s == nil {
		return fallback
	}
	if n, err := strconv.Atoi(s.Value); err == nil {
		return n
	}
	return fallback
}

// String resolves a setting as a string with a fallback.
func (r *PostgresSettingRepository) String(ctx context.Context, key, fallback string) string {
	s, err := r.Get(ctx, key)
	if err != nil {
		r.logger.Warn("failed to read setting, using fallback", "key", key, "error", err)
		return fallback
	}
	if s == nil || s.Value == "" {
		return fallback
	}
	return s.Value
}

func scanSetting(rows *sql.Rows) (*models.Setting, error) {
	var s models.Setting
	var value, description sql.NullString

	err := rows.Scan(&s.ID, &s.Key, &value, &s.ValueType, &description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Value = value.String
	s.Description = description.String
	return &s, nil
}
