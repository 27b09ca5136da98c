package models

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Setting value types.
const (
	SettingTypeString = "string"
	SettingTypeInt    = "int"
	SettingTypeBool   = "bool"
	SettingTypeJSON   = "json"
)

// Setting is a flat key/value configuration row. Values are stored as
// text and converted according to ValueType.
type Setting struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"-"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TypedValue converts the stored text value according to ValueType.
// Unparseable values fall back to the raw string.
func (s *Setting) TypedValue() any {
	switch s.ValueType {
	case SettingTypeInt:
		if n, err := strconv.Atoi(s.Value); err == nil {
			return n
		}
	case SettingTypeBool:
		switch strings.ToLower(s.Value) {
		case "true", "1", "yes":
			return true
		default:
			return false
		}
	case SettingTypeJSON:
		var v any
		if err := json.Unmarshal([]byte(s.Value), &v); err == nil {
			return v
		}
	}
	return s.Value
}

// IntValue returns the setting as an int, or fallback when it does not
// parse.
func (s *Setting) IntValue(fallback int) int {
	if n, err := strconv.Atoi(s.Value); err == nil {
		return n
	}
	return fallback
}

// MarshalJSON renders the typed value under "value" so API clients see
// ints and bools rather than their string encodings.
func (s *Setting) MarshalJSON() ([]byte, error) {
	type alias Setting
	return json.Marshal(struct {
		*alias
		TypedValue any `json:"value"`
	}{alias: (*alias)(s), TypedValue: s.TypedValue()})
}

// SettingDefault describes one entry seeded by the init operation.
type SettingDefault struct {
	Key         string
	Value       string
	ValueType   string
	Description string
}

// SettingRepository defines persistence operations for settings.
type SettingRepository interface {
	List(ctx context.Context) ([]*Setting, error)
	Get(ctx context.Context, key string) (*Setting, error)

	// Upsert creates the key if missing, otherwise updates value (and
	// description when non-empty).
	Upsert(ctx context.Context, setting *Setting) error

	// SetValue updates an existing key's value, leaving type and
	// description untouched. Missing keys are ignored.
	SetValue(ctx context.Context, key, value string) error

	// InitDefaults inserts any defaults not yet present and returns the
	// keys it created.
	InitDefaults(ctx context.Context, defaults []SettingDefault) ([]string, error)
}
