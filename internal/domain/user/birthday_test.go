package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestBirthdayWindowSameYear(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.May, 2), 3)
	assert.Equal(t, "05-02", start)
	assert.Equal(t, "05-05", end)
	assert.LessOrEqual(t, start, end)
}

func TestBirthdayWindowZeroDaysIsToday(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.May, 2), 0)
	assert.Equal(t, "05-02", start)
	assert.Equal(t, "05-02", end)
}

func TestBirthdayWindowCrossesYearEnd(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.December, 30), 3)
	assert.Equal(t, "12-30", start)
	assert.Equal(t, "01-02", end)
	// start > end signals the wraparound branch to the repository
	assert.Greater(t, start, end)
}

func TestBirthdayWindowCrossesMonthBoundary(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.January, 30), 3)
	assert.Equal(t, "01-30", start)
	assert.Equal(t, "02-02", end)
	assert.LessOrEqual(t, start, end)
}

func TestBirthdayWindowDecemberThirtyFirstZeroDays(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.December, 31), 0)
	assert.Equal(t, "12-31", start)
	assert.Equal(t, "12-31", end)
}

// The wraparound semantics the repository applies on top of the window:
// Dec-30 + 3 days must include Jan-01 and exclude Dec-20.
func TestBirthdayWindowWraparoundMembership(t *testing.T) {
	start, end := BirthdayWindow(date(2025, time.December, 30), 3)

	inWrappedWindow := func(md string) bool {
		if start <= end {
			return md >= start && md <= end
		}
		return (md >= start && md <= "12-31") || (md >= "01-01" && md <= end)
	}

	assert.True(t, inWrappedWindow("12-30"))
	assert.True(t, inWrappedWindow("12-31"))
	assert.True(t, inWrappedWindow("01-01"))
	assert.True(t, inWrappedWindow("01-02"))
	assert.False(t, inWrappedWindow("01-03"))
	assert.False(t, inWrappedWindow("12-20"))
}
