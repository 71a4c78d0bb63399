package telegram

import (
	"fmt"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/notification"
	"birthday_notification_bot/internal/domain/user"
)

// Month names in the nominative case for the /birthdays list headers. The
// dates themselves use the genitive table from the notification package.
var monthsNominative = [13]string{
	1: "Январь", 2: "Февраль", 3: "Март", 4: "Апрель",
	5: "Май", 6: "Июнь", 7: "Июль", 8: "Август",
	9: "Сентябрь", 10: "Октябрь", 11: "Ноябрь", 12: "Декабрь",
}

// formatBirthdayList renders the year's birthday list grouped by month.
// Users are expected to arrive ordered by month-day.
func formatBirthdayList(users []*user.User) string {
	if len(users) == 0 {
		return "В базе данных нет дней рождения."
	}

	var b strings.Builder
	b.WriteString("📅 Список дней рождения на текущий год:\n\n")

	currentMonth := 0
	for _, u := range users {
		born, err := time.Parse("2006-01-02", u.BirthDate)
		if err != nil {
			continue
		}
		if int(born.Month()) != currentMonth {
			if currentMonth != 0 {
				b.WriteString("\n")
			}
			currentMonth = int(born.Month())
			fmt.Fprintf(&b, "🗓 %s:\n", monthsNominative[currentMonth])
		}
		fmt.Fprintf(&b, "   🎂 %s - %s\n", u.FullName(), notification.FormatDayMonth(born))
	}
	return b.String()
}

// formatUserLine renders one user row for the admin /list_users output.
func formatUserLine(u *user.User) string {
	flags := make([]string, 0, 3)
	if u.IsAdmin {
		flags = append(flags, "админ")
	}
	if !u.IsSubscribed {
		flags = append(flags, "без рассылки")
	}
	if !u.IsNotificationsEnabled {
		flags = append(flags, "уведомления выключены")
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = " (" + strings.Join(flags, ", ") + ")"
	}
	return fmt.Sprintf("%s — %s, ID %d%s", u.FullName(), u.BirthDate, u.TelegramID, suffix)
}
