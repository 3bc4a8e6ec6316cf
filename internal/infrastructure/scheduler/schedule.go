package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE PARSING
// ══════════════════════════════════════════════════════════════════════════════

// ParseSchedule accepts "@every <duration>" or a 5-field cron expression.
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("interval must be positive: %s", d)
		}
		return NewIntervalSchedule(d), nil
	}
	return ParseCronExpression(expr)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON EXPRESSION
// ══════════════════════════════════════════════════════════════════════════════

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//   - "*/5 * * * *"  every 5 minutes
//   - "0 3 * * *"    every day at 03:00
//   - "0 9 * * 1-5"  weekdays at 09:00
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCronExpression parses a cron expression.
// Each field supports *, */n, n, n-m, n-m/s and comma-separated lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	parsed := make([][]int, len(cronFields))
	for i, f := range cronFields {
		values, err := parseCronField(fields[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", f.name, fields[i], err)
		}
		parsed[i] = values
	}

	return &CronExpression{
		raw:      strings.Join(fields, " "),
		minutes:  parsed[0],
		hours:    parsed[1],
		days:     parsed[2],
		months:   parsed[3],
		weekdays: parsed[4],
	}, nil
}

// MustParseCronExpression parses a constant expression or panics.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseCronField(field string, min, max int) ([]int, error) {
	var result []int
	for _, part := range strings.Split(field, ",") {
		values, err := parseCronPart(part, min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

func parseCronPart(part string, min, max int) ([]int, error) {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step %q", s)
		}
		step, part = n, base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = cronValue(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = cronValue(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("range %q is reversed", part)
		}
	default:
		v, err := cronValue(part, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	values := make([]int, 0, (end-start)/step+1)
	for v := start; v <= end; v += step {
		values = append(values, v)
	}
	return values, nil
}

func cronValue(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range [%d-%d]", v, min, max)
	}
	return v, nil
}

// String returns the normalized expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, or the zero time
// when nothing matches within a year (for example "0 0 31 2 *").
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	const limit = 366 * 24 * 60
	for i := 0; i < limit; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return slices.Contains(ce.minutes, t.Minute()) &&
		slices.Contains(ce.hours, t.Hour()) &&
		slices.Contains(ce.days, t.Day()) &&
		slices.Contains(ce.months, int(t.Month())) &&
		slices.Contains(ce.weekdays, int(t.Weekday()))
}
