package user

import "time"

// BirthdayWindow computes the month-day window [today, today+daysBefore] as a
// pair of "MM-DD" strings. The caller compares them lexicographically: when
// startMD > endMD the window crosses the year boundary and must be treated as
// [startMD, "12-31"] ∪ ["01-01", endMD].
//
// daysBefore = 0 yields startMD == endMD, i.e. only today's birthdays.
func BirthdayWindow(today time.Time, daysBefore int) (startMD, endMD string) {
	target := today.AddDate(0, 0, daysBefore)
	return today.Format("01-02"), target.Format("01-02")
}
