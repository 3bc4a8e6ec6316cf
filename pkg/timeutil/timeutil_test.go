package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISODate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"plain date", "2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"rfc3339 with zone", "2024-03-15T10:00:00+05:00", time.Date(2024, 3, 15, 5, 0, 0, 0, time.UTC)},
		{"rfc3339 nano", "2024-03-15T10:00:00.123Z", time.Date(2024, 3, 15, 10, 0, 0, 123000000, time.UTC)},
		{"no zone", "2024-03-15T10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"space separated", "2024-03-15 10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"surrounding spaces", "  2024-03-15 ", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseISODate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseISODate_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "tomorrow", "15/03/2024", "2024-13-45"} {
		_, err := ParseISODate(input)
		assert.ErrorIs(t, err, ErrUnparseableDate, input)
	}
}

func TestDaysUntilAndOverdue(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysUntil(now, time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3, DaysUntil(now, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -2, DaysUntil(now, time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)))

	assert.False(t, IsOverdue(now, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsOverdue(now, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-15", FormatDateStr(now))
}
