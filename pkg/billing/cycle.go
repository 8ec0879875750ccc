package billing

import "time"

// nextBoundary computes the end of the cycle starting at t. A monthly cycle
// clamps the day-of-month to the target month's last valid day (spec §4.D.1,
// §8 property 7); a yearly cycle advances the year, clamping Feb 29 to Feb
// 28 in non-leap target years.
func nextBoundary(t time.Time, kind CycleKind) time.Time {
	switch kind {
	case CycleYearly:
		return addYearsClamped(t, 1)
	default:
		return addMonthsClamped(t, 1)
	}
}

// addMonthsClamped adds n months to t, clamping the day-of-month to the
// last valid day of the target month instead of overflowing into the month
// after (time.AddDate's default behavior).
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	targetMonth := int(month) - 1 + n
	targetYear := year + targetMonth/12
	targetMonthIdx := targetMonth % 12
	if targetMonthIdx < 0 {
		targetMonthIdx += 12
		targetYear--
	}
	lastDay := lastDayOfMonth(targetYear, time.Month(targetMonthIdx+1))
	if day > lastDay {
		day = lastDay
	}
	return time.Date(targetYear, time.Month(targetMonthIdx+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addYearsClamped adds n years to t, clamping Feb 29 to Feb 28 when the
// target year is not a leap year.
func addYearsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	targetYear := year + n
	if month == time.February && day == 29 && !isLeapYear(targetYear) {
		day = 28
	}
	return time.Date(targetYear, month, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// billingCycleTag returns the YYYY-MM tag for t (spec §3 invariant).
func billingCycleTag(t time.Time) string {
	return t.UTC().Format("2006-01")
}
