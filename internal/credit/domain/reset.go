package domain

import "time"

// Rolling window lengths used by the lazy, read-path evaluator.
const (
	RollingDailyWindow   = 24 * time.Hour
	RollingMonthlyWindow = 30 * 24 * time.Hour
)

// Boundary selects how window elapse is judged. The request path uses
// rolling windows anchored on the last reset stamp; the sweeper fires on
// calendar boundaries in its configured timezone.
type Boundary int

const (
	BoundaryRolling Boundary = iota
	BoundaryCalendar
)

// WindowState reports which usage windows have elapsed at a point in time.
type WindowState struct {
	DailyElapsed   bool
	MonthlyElapsed bool
}

// EvaluateWindows decides whether the daily and monthly windows have
// elapsed at now. A nil last-reset stamp counts as elapsed so the first
// evaluation stamps the account.
func EvaluateWindows(now time.Time, lastDaily, lastMonthly *time.Time, boundary Boundary) WindowState {
	var st WindowState
	switch boundary {
	case BoundaryCalendar:
		st.DailyElapsed = lastDaily == nil || lastDaily.Before(DayStart(now))
		st.MonthlyElapsed = lastMonthly == nil || lastMonthly.Before(MonthStart(now))
	default:
		st.DailyElapsed = lastDaily == nil || now.Sub(*lastDaily) >= RollingDailyWindow
		st.MonthlyElapsed = lastMonthly == nil || now.Sub(*lastMonthly) >= RollingMonthlyWindow
	}
	return st
}

// ApplyWindowReset zeroes elapsed usage counters and stamps the reset
// times. It mutates only what elapsed, so applying it twice at the same
// instant is a no-op, and reports whether anything changed.
func ApplyWindowReset(a *CreditAccount, st WindowState, now time.Time) bool {
	changed := false
	if st.DailyElapsed {
		if a.DailyUsed != 0 {
			changed = true
		}
		a.DailyUsed = 0
		if a.LastDailyReset == nil || !a.LastDailyReset.Equal(now) {
			changed = true
		}
		t := now
		a.LastDailyReset = &t
	}
	if st.MonthlyElapsed {
		if a.MonthlyUsed != 0 {
			changed = true
		}
		a.MonthlyUsed = 0
		if a.LastMonthlyReset == nil || !a.LastMonthlyReset.Equal(now) {
			changed = true
		}
		t := now
		a.LastMonthlyReset = &t
	}
	return changed
}

// DayStart truncates t to midnight in its location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthStart truncates t to the first of its month in its location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
