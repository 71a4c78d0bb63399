package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// monthsGenitive maps month numbers to Russian month names in the genitive
// case, as used in "5 мая" ("on the 5th of May"). User-facing text: the table
// is fixed, not computed.
var monthsGenitive = [13]string{
	1:  "января",
	2:  "февраля",
	3:  "марта",
	4:  "апреля",
	5:  "мая",
	6:  "июня",
	7:  "июля",
	8:  "августа",
	9:  "сентября",
	10: "октября",
	11: "ноября",
	12: "декабря",
}

// FormatDayMonth renders a date as "DD <месяца>" with the genitive month name.
func FormatDayMonth(t time.Time) string {
	return fmt.Sprintf("%02d %s", t.Day(), monthsGenitive[int(t.Month())])
}

// RenderContext carries the values substituted into a template body for one
// celebrated person and one firing rule. PhonePay and NamePay come from
// configuration, not from this package.
type RenderContext struct {
	Name       string
	FirstName  string
	LastName   string
	Date       string // "DD <месяца>", the birthday this cycle
	DateBefore string // Date minus one calendar day, same format
	DaysUntil  string // The firing rule's DaysBefore, as a string
	PhonePay   string
	NamePay    string
}

// NewRenderContext derives the full substitution context for a celebrated
// person. birthDate is the stored "YYYY-MM-DD" string; the birthday is
// projected onto the current year before formatting (only day and month are
// ever printed). An unparseable birth date leaves Date and DateBefore empty
// rather than failing the render.
func NewRenderContext(firstName, lastName, birthDate string, daysBefore int, now time.Time, phonePay, namePay string) RenderContext {
	ctx := RenderContext{
		Name:      strings.TrimSpace(firstName + " " + lastName),
		FirstName: firstName,
		LastName:  lastName,
		DaysUntil: strconv.Itoa(daysBefore),
		PhonePay:  phonePay,
		NamePay:   namePay,
	}

	born, err := time.ParseInLocation("2006-01-02", birthDate, now.Location())
	if err != nil {
		return ctx
	}
	birthdayThisYear := time.Date(now.Year(), born.Month(), born.Day(), 0, 0, 0, 0, now.Location())
	ctx.Date = FormatDayMonth(birthdayThisYear)
	ctx.DateBefore = FormatDayMonth(birthdayThisYear.AddDate(0, 0, -1))
	return ctx
}

// Render substitutes every whitelisted {variable} occurrence in body with its
// context value. Unknown tokens are left verbatim: they are only reachable if
// validation was bypassed, and rendering must not fail because of them.
func Render(body string, ctx RenderContext) string {
	replacer := strings.NewReplacer(
		"{name}", ctx.Name,
		"{first_name}", ctx.FirstName,
		"{last_name}", ctx.LastName,
		"{date}", ctx.Date,
		"{date_before}", ctx.DateBefore,
		"{days_until}", ctx.DaysUntil,
		"{phone_pay}", ctx.PhonePay,
		"{name_pay}", ctx.NamePay,
	)
	return replacer.Replace(body)
}
