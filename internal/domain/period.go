package domain

import (
	"fmt"
	"time"
)

// Granularity selects which periodic payout engine handles a request.
type Granularity string

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// WeekPeriodID is the opaque key for one ISO week, e.g. "2026-W36".
func WeekPeriodID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthPeriodID is the opaque key for one calendar month, e.g. "2026-08".
func MonthPeriodID(t time.Time) string {
	return t.Format("2006-01")
}

// WeekGateOpen reports whether today is exactly the configured payout
// weekday. The weekly variant requires an exact match.
func WeekGateOpen(t time.Time, payoutWeekday int) bool {
	return int(t.Weekday()) == payoutWeekday
}

// MonthGateOpen reports whether today is on or after the configured
// day of month.
func MonthGateOpen(t time.Time, payoutDay int) bool {
	return t.Day() >= payoutDay
}

// NextWeekPayout returns the next date (inclusive of today) on which the
// weekly gate opens. With spent set the current period is consumed, so an
// open gate today rolls to the same weekday next week.
func NextWeekPayout(t time.Time, payoutWeekday int, spent bool) time.Time {
	days := (payoutWeekday - int(t.Weekday()) + 7) % 7
	if days == 0 && spent {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

// NextMonthPayout returns the next date on which the monthly gate opens:
// this month's payout day if still ahead, today while the gate is open,
// or next month's payout day once the current period is spent.
func NextMonthPayout(t time.Time, payoutDay int, spent bool) time.Time {
	if t.Day() >= payoutDay {
		if !spent {
			return t
		}
		return time.Date(t.Year(), t.Month(), payoutDay, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	}
	return time.Date(t.Year(), t.Month(), payoutDay, 0, 0, 0, 0, t.Location())
}
