package schedule

import "time"

// DateOf truncates t to its calendar day at midnight UTC, keeping t's own year/month/day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped advances d by n months and lands on anchorDay, clamped to the
// length of the target month. Clamping instead of overflowing keeps a 31st anchor
// from decaying to the 28th after passing through February.
func AddMonthsClamped(d time.Time, n int, anchorDay int) time.Time {
	y, m, _ := d.Date()
	// Normalize month arithmetic on the first of the month so time.Date never overflows
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// EndOfNextMonth returns the last day of the month following d.
func EndOfNextMonth(d time.Time) time.Time {
	y, m, _ := d.Date()
	return time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}
