package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule_Every(t *testing.T) {
	s, err := ParseSchedule("@every 5m")
	require.NoError(t, err)
	assert.Equal(t, "@every 5m0s", s.String())

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(5*time.Minute), s.Next(base))

	_, err = ParseSchedule("@every soon")
	assert.Error(t, err)
	_, err = ParseSchedule("@every -1s")
	assert.Error(t, err)
}

func TestParseSchedule_Cron(t *testing.T) {
	s, err := ParseSchedule("  */15 * * * *  ")
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", s.String())

	base := time.Date(2024, 3, 1, 10, 7, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), s.Next(base))
}

func TestCronExpression_Next(t *testing.T) {
	tests := []struct {
		expr string
		from time.Time
		want time.Time
	}{
		{
			expr: "0 3 * * *",
			from: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			// 2024-03-02 is a Saturday.
			expr: "30 9 * * 1-5",
			from: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		},
		{
			expr: "0 0 1 1,7 *",
			from: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			expr: "10-20/5 * * * *",
			from: time.Date(2024, 3, 1, 8, 16, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 8, 20, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(tt.from))
		})
	}
}

func TestCronExpression_NeverMatches(t *testing.T) {
	ce := MustParseCronExpression("0 0 31 2 *")
	assert.True(t, ce.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"20-10 * * * *",
		"a * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}

	assert.Panics(t, func() { MustParseCronExpression("bad") })
}
