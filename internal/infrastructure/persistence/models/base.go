package models

import (
	"time"

	"github.com/fieldsales/vendorsync/internal/domain/shared"
)

// formatTime renders a timestamp column; the zero time is stored empty
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return shared.FormatTimestamp(t)
}

// parseTime reads a timestamp column; empty or malformed values yield the
// zero time
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := shared.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ConfigModel is a row of the key-value config table
type ConfigModel struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value;not null"`
}

// TableName returns the table name for GORM
func (ConfigModel) TableName() string {
	return "config"
}
