package shared

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	ts := time.Date(2024, 3, 1, 7, 0, 0, 5_000_000, loc)
	assert.Equal(t, "2024-03-01T10:00:00.005Z", FormatTimestamp(ts))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-01T10:00:00.005Z", time.Date(2024, 3, 1, 10, 0, 0, 5_000_000, time.UTC)},
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T07:00:00-03:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("NOT_FOUND", "Product not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))
}
