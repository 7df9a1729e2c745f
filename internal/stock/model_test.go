package stock

import (
	"testing"
	"time"
)

func at(weekday time.Weekday, day, hour, minute int) time.Time {
	// 2026-03-01 is a Sunday; walk forward to the requested weekday.
	t := time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
	for t.Weekday() != weekday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func intPtr(n int) *int { return &n }

func TestScheduleDue(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
		at       time.Time
		want     bool
	}{
		{
			name:     "daily fires at the configured minute",
			schedule: Schedule{Enabled: true, Interval: IntervalDaily, Hour: 2, Minute: 30},
			at:       time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "daily misses a different minute",
			schedule: Schedule{Enabled: true, Interval: IntervalDaily, Hour: 2, Minute: 30},
			at:       time.Date(2026, 3, 1, 2, 31, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "disabled never fires",
			schedule: Schedule{Enabled: false, Interval: IntervalDaily, Hour: 2, Minute: 30},
			at:       time.Date(2026, 3, 1, 2, 30, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "weekly fires on its weekday",
			schedule: Schedule{Enabled: true, Interval: IntervalWeekly, Hour: 3, Minute: 0, DayOfWeek: intPtr(int(time.Monday))},
			at:       at(time.Monday, 1, 3, 0),
			want:     true,
		},
		{
			name:     "weekly skips other weekdays",
			schedule: Schedule{Enabled: true, Interval: IntervalWeekly, Hour: 3, Minute: 0, DayOfWeek: intPtr(int(time.Monday))},
			at:       at(time.Tuesday, 1, 3, 0),
			want:     false,
		},
		{
			name:     "weekly without a weekday never fires",
			schedule: Schedule{Enabled: true, Interval: IntervalWeekly, Hour: 3, Minute: 0},
			at:       at(time.Monday, 1, 3, 0),
			want:     false,
		},
		{
			name:     "monthly fires on its day",
			schedule: Schedule{Enabled: true, Interval: IntervalMonthly, Hour: 4, Minute: 15, DayOfMonth: intPtr(15)},
			at:       time.Date(2026, 3, 15, 4, 15, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "monthly skips other days",
			schedule: Schedule{Enabled: true, Interval: IntervalMonthly, Hour: 4, Minute: 15, DayOfMonth: intPtr(15)},
			at:       time.Date(2026, 3, 16, 4, 15, 0, 0, time.UTC),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schedule.Due(tt.at); got != tt.want {
				t.Errorf("Due(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
