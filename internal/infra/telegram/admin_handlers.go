package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/notification"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminHandlerDeps bundles everything the admin command surface needs.
type AdminHandlerDeps struct {
	Config          *config.AppConfig
	AdminService    *app.AdminService
	TemplateService *app.TemplateService
	BackupService   *app.BackupService
	NotifService    app.NotificationService
	NotifRepo       notification.Repository
}

// RegisterAdminHandlers registers handlers for all admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, deps AdminHandlerDeps, baseLogger *logrus.Entry) {
	handler := func(command string, minArgs int, usage string, run func(c telebot.Context, args []string, logCtx *logrus.Entry) error) {
		b.Handle(command, func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			logCtx.Info("Command received")

			if !deps.Config.IsAdmin(c.Sender().ID) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("Ошибка: У вас нет прав для выполнения этой команды.")
			}

			args := c.Args()
			if len(args) < minArgs {
				logCtx.WithField("args_count", len(args)).Warn("Invalid command format")
				return c.Send("Неверный формат команды. Используйте: " + usage)
			}
			return run(c, args, logCtx)
		})
	}

	// --- User management ---

	handler("/add_user", 3, "/add_user <TelegramID> <Имя> [Фамилия] <ГГГГ-ММ-ДД>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: Telegram ID должен быть числом.")
		}
		firstName := args[1]
		var lastName, birthDate string
		if len(args) >= 4 {
			lastName, birthDate = args[2], args[3]
		} else {
			birthDate = args[2]
		}

		newUser, err := deps.AdminService.AddUser(ctx, c.Sender().ID, telegramID, "", firstName, lastName, birthDate)
		if err != nil {
			logWithError := logCtx.WithError(err)
			switch err {
			case app.ErrUserAlreadyExists:
				logWithError.Warn("User already exists")
				return c.Send(fmt.Sprintf("Ошибка: Пользователь с Telegram ID %d уже существует.", telegramID))
			case app.ErrInvalidBirthDate:
				logWithError.Warn("Invalid birth date")
				return c.Send("Ошибка: Дата рождения должна быть в формате ГГГГ-ММ-ДД.")
			default:
				logWithError.Error("Failed to add user")
				return c.Send(fmt.Sprintf("Произошла ошибка при добавлении пользователя: %s", err.Error()))
			}
		}

		logCtx.WithField("new_user_id", newUser.ID).Info("User added successfully")
		return c.Send(fmt.Sprintf("Пользователь %s (ID: %d, день рождения %s) успешно добавлен.", newUser.FullName(), newUser.TelegramID, newUser.BirthDate))
	})

	handler("/remove_user", 1, "/remove_user <TelegramID|@username>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		telegramID, err := deps.AdminService.ResolveTelegramID(ctx, args[0])
		if err != nil {
			return sendTargetError(c, args[0], err)
		}

		removed, err := deps.AdminService.RemoveUser(ctx, c.Sender().ID, telegramID)
		if err != nil {
			if err == idb.ErrUserNotFound {
				logCtx.WithError(err).Warn("User to remove not found")
				return c.Send(fmt.Sprintf("Пользователь с Telegram ID %d не найден.", telegramID))
			}
			logCtx.WithError(err).Error("Failed to remove user")
			return c.Send(fmt.Sprintf("Произошла ошибка при удалении пользователя: %s", err.Error()))
		}

		logCtx.WithField("removed_user_id", removed.ID).Info("User removed successfully")
		return c.Send(fmt.Sprintf("Пользователь %s (ID: %d) удалён из системы.", removed.FullName(), removed.TelegramID))
	})

	handler("/list_users", 0, "/list_users", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		users, err := deps.AdminService.ListUsers(ctx, c.Sender().ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list users")
			return c.Send("Не удалось получить список пользователей.")
		}
		if len(users) == 0 {
			return c.Send("Пользователи не найдены.")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("👥 Пользователи (%d):\n\n", len(users)))
		for _, u := range users {
			sb.WriteString("• " + formatUserLine(u) + "\n")
		}
		return c.Send(sb.String())
	})

	handler("/toggle_subscription", 1, "/toggle_subscription <TelegramID|@username>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		return toggleUserFlag(ctx, c, args, logCtx, deps.AdminService, deps.AdminService.ToggleSubscribed, "участие в рассылке")
	})

	handler("/toggle_notifications", 1, "/toggle_notifications <TelegramID|@username>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		return toggleUserFlag(ctx, c, args, logCtx, deps.AdminService, deps.AdminService.ToggleNotifications, "получение уведомлений")
	})

	handler("/promote_admin", 1, "/promote_admin <TelegramID|@username>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		return toggleUserFlag(ctx, c, args, logCtx, deps.AdminService, deps.AdminService.PromoteAdmin, "права администратора")
	})

	// --- Template management ---

	handler("/templates", 0, "/templates", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		templates, err := deps.TemplateService.ListTemplates(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list templates")
			return c.Send("Не удалось получить список шаблонов.")
		}
		if len(templates) == 0 {
			return c.Send("Шаблоны не найдены. Создайте первый: /new_template <название> | <текст>")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("📝 Шаблоны (%d):\n\n", len(templates)))
		for _, t := range templates {
			status := "активен"
			if !t.IsActive {
				status = "неактивен"
			}
			sb.WriteString(fmt.Sprintf("• #%d %s (%s, %s)\n", t.ID, t.Name, t.Category, status))
		}
		return c.Send(sb.String())
	})

	// Payload form: /new_template <название> | <текст шаблона>
	handler("/new_template", 0, "/new_template <название> | <текст>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		name, body, ok := strings.Cut(c.Message().Payload, "|")
		name, body = strings.TrimSpace(name), strings.TrimSpace(body)
		if !ok || name == "" || body == "" {
			return c.Send("Неверный формат команды. Используйте: /new_template <название> | <текст>")
		}

		t, err := deps.TemplateService.CreateTemplate(ctx, name, "birthday", body)
		if err != nil {
			if verr, isValidation := err.(*notification.ValidationError); isValidation {
				logCtx.WithError(verr).Warn("Template failed validation")
				return c.Send("Шаблон не прошёл проверку: " + verr.Error())
			}
			logCtx.WithError(err).Error("Failed to create template")
			return c.Send("Не удалось создать шаблон: " + err.Error())
		}

		logCtx.WithField("template_id", t.ID).Info("Template created")
		return c.Send(fmt.Sprintf("Шаблон #%d «%s» создан и активен.", t.ID, t.Name))
	})

	// Payload form: /set_template <ID> <новый текст>
	handler("/set_template", 2, "/set_template <ID> <текст>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID шаблона должен быть числом.")
		}
		body := strings.TrimSpace(strings.TrimPrefix(c.Message().Payload, args[0]))

		t, err := deps.TemplateService.UpdateTemplateBody(ctx, id, body)
		if err != nil {
			if verr, isValidation := err.(*notification.ValidationError); isValidation {
				logCtx.WithError(verr).Warn("Template failed validation")
				return c.Send("Шаблон не прошёл проверку: " + verr.Error())
			}
			if err == idb.ErrTemplateNotFound {
				return c.Send(fmt.Sprintf("Шаблон #%d не найден.", id))
			}
			logCtx.WithError(err).Error("Failed to update template")
			return c.Send("Не удалось обновить шаблон: " + err.Error())
		}

		logCtx.WithField("template_id", t.ID).Info("Template updated")
		return c.Send(fmt.Sprintf("Шаблон #%d обновлён.", t.ID))
	})

	handler("/preview_template", 1, "/preview_template <текст>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		body := strings.TrimSpace(c.Message().Payload)
		previews, err := deps.TemplateService.PreviewTemplate(ctx, body)
		if err != nil {
			if verr, isValidation := err.(*notification.ValidationError); isValidation {
				return c.Send("Шаблон не прошёл проверку: " + verr.Error())
			}
			logCtx.WithError(err).Error("Failed to preview template")
			return c.Send("Не удалось построить предпросмотр: " + err.Error())
		}

		labels := []string{"📅 Сегодня", "⏰ Завтра", "📆 Через 3 дня"}
		var sb strings.Builder
		sb.WriteString("📝 <b>Предварительный просмотр шаблона</b>\n\n")
		for i, p := range previews {
			sb.WriteString(fmt.Sprintf("%s:\n%s\n\n", labels[i], p))
		}
		return c.Send(sb.String(), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})

	handler("/toggle_template", 1, "/toggle_template <ID>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID шаблона должен быть числом.")
		}
		active, err := deps.TemplateService.ToggleTemplateActive(ctx, id)
		if err != nil {
			if err == idb.ErrTemplateNotFound {
				return c.Send(fmt.Sprintf("Шаблон #%d не найден.", id))
			}
			logCtx.WithError(err).Error("Failed to toggle template")
			return c.Send("Не удалось изменить статус шаблона: " + err.Error())
		}
		if active {
			return c.Send(fmt.Sprintf("Шаблон #%d снова активен.", id))
		}
		return c.Send(fmt.Sprintf("Шаблон #%d деактивирован. Правила с ним перестанут срабатывать после перезагрузки настроек (до 10 минут).", id))
	})

	// --- Rule management ---

	handler("/rules", 0, "/rules", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		rules, err := deps.TemplateService.ListRules(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list rules")
			return c.Send("Не удалось получить список правил.")
		}
		if len(rules) == 0 {
			return c.Send("Правила не найдены. Создайте первое: /add_rule <ID шаблона> <дней до> <ЧЧ:ММ>")
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("⏰ Правила (%d):\n\n", len(rules)))
		for _, r := range rules {
			status := "активно"
			if !r.IsActive {
				status = "неактивно"
			}
			sb.WriteString(fmt.Sprintf("• #%d: за %d дн. в %s, шаблон #%d (%s)\n", r.ID, r.DaysBefore, r.TimeOfDay, r.TemplateID, status))
		}
		return c.Send(sb.String())
	})

	handler("/add_rule", 3, "/add_rule <ID шаблона> <дней до> <ЧЧ:ММ>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		templateID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID шаблона должен быть числом.")
		}
		daysBefore, err := strconv.Atoi(args[1])
		if err != nil {
			return c.Send("Ошибка: количество дней должно быть числом.")
		}

		r, err := deps.TemplateService.CreateRule(ctx, templateID, daysBefore, args[2])
		if err != nil {
			switch err {
			case app.ErrInvalidDaysBefore:
				return c.Send("Ошибка: количество дней не может быть отрицательным.")
			case app.ErrInvalidTimeOfDay:
				return c.Send("Ошибка: время должно быть в формате ЧЧ:ММ (24 часа).")
			case idb.ErrTemplateNotFound:
				return c.Send(fmt.Sprintf("Шаблон #%d не найден.", templateID))
			default:
				logCtx.WithError(err).Error("Failed to create rule")
				return c.Send("Не удалось создать правило: " + err.Error())
			}
		}

		logCtx.WithField("rule_id", r.ID).Info("Rule created")
		return c.Send(fmt.Sprintf("Правило #%d создано: за %d дн. в %s. Вступит в силу после перезагрузки настроек (до 10 минут).", r.ID, r.DaysBefore, r.TimeOfDay))
	})

	handler("/toggle_rule", 1, "/toggle_rule <ID>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID правила должен быть числом.")
		}
		active, err := deps.TemplateService.ToggleRuleActive(ctx, id)
		if err != nil {
			if err == idb.ErrRuleNotFound {
				return c.Send(fmt.Sprintf("Правило #%d не найдено.", id))
			}
			logCtx.WithError(err).Error("Failed to toggle rule")
			return c.Send("Не удалось изменить статус правила: " + err.Error())
		}
		if active {
			return c.Send(fmt.Sprintf("Правило #%d снова активно.", id))
		}
		return c.Send(fmt.Sprintf("Правило #%d деактивировано.", id))
	})

	handler("/delete_rule", 1, "/delete_rule <ID>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID правила должен быть числом.")
		}
		if err := deps.TemplateService.DeleteRule(ctx, id); err != nil {
			if err == idb.ErrRuleNotFound {
				return c.Send(fmt.Sprintf("Правило #%d не найдено.", id))
			}
			logCtx.WithError(err).Error("Failed to delete rule")
			return c.Send("Не удалось удалить правило: " + err.Error())
		}
		logCtx.WithField("rule_id", id).Info("Rule deleted")
		return c.Send(fmt.Sprintf("Правило #%d удалено.", id))
	})

	// --- Operations ---

	handler("/logs", 0, "/logs [количество]", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		limit := 10
		if len(args) >= 1 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed <= 0 || parsed > 50 {
				return c.Send("Ошибка: количество должно быть числом от 1 до 50.")
			}
			limit = parsed
		}

		entries, err := deps.NotifRepo.ListRecentLogs(ctx, limit)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list notification logs")
			return c.Send("Не удалось получить журнал уведомлений.")
		}
		if len(entries) == 0 {
			return c.Send("Журнал уведомлений пуст.")
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("📋 Последние записи журнала (%d):\n\n", len(entries)))
		for _, e := range entries {
			icon := "✅"
			if e.Status == notification.StatusError {
				icon = "❌"
			} else if e.Status == notification.StatusWarning {
				icon = "⚠️"
			}
			sb.WriteString(fmt.Sprintf("%s %s пользователь %d", icon, e.CreatedAt.Format("02.01 15:04"), e.UserID))
			if e.ErrorMessage.Valid {
				sb.WriteString(" — " + e.ErrorMessage.String)
			}
			sb.WriteString("\n")
		}
		return c.Send(sb.String())
	})

	handler("/backup", 0, "/backup", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		path, err := deps.BackupService.CreateBackup(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Manual backup failed")
			return c.Send("Не удалось создать резервную копию: " + err.Error())
		}
		logCtx.WithField("path", path).Info("Manual backup created")
		return c.Send("Резервная копия создана: " + path)
	})

	handler("/notify", 2, "/notify <TelegramID|@username> <ID шаблона>", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		telegramID, err := deps.AdminService.ResolveTelegramID(ctx, args[0])
		if err != nil {
			return sendTargetError(c, args[0], err)
		}
		templateID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return c.Send("Ошибка: ID шаблона должен быть числом.")
		}

		tmpl, err := deps.NotifRepo.GetTemplateByID(ctx, templateID)
		if err != nil {
			if err == idb.ErrTemplateNotFound {
				return c.Send(fmt.Sprintf("Шаблон #%d не найден.", templateID))
			}
			logCtx.WithError(err).Error("Failed to load template for /notify")
			return c.Send("Не удалось загрузить шаблон: " + err.Error())
		}

		if err := deps.NotifService.ForceSend(ctx, telegramID, tmpl.Body); err != nil {
			if err == idb.ErrUserNotFound {
				return c.Send(fmt.Sprintf("Пользователь с Telegram ID %d не найден.", telegramID))
			}
			logCtx.WithError(err).Error("Force send failed")
			return c.Send("Не удалось отправить уведомление: " + err.Error())
		}

		logCtx.WithFields(logrus.Fields{"target": telegramID, "template_id": templateID}).Info("Force notification sent")
		return c.Send("Уведомление отправлено. Результат доставки смотрите в /logs.")
	})

	handler("/help", 0, "/help", func(c telebot.Context, args []string, logCtx *logrus.Entry) error {
		var sb strings.Builder
		sb.WriteString("Доступные команды Администратора:\n\n")
		sb.WriteString("`/add_user <TelegramID> <Имя> [Фамилия] <ГГГГ-ММ-ДД>` - Добавить участника\n")
		sb.WriteString("`/remove_user <TelegramID|@username>` - Удалить участника\n")
		sb.WriteString("`/list_users` - Список участников\n")
		sb.WriteString("`/toggle_subscription <TelegramID|@username>` - Вкл/выкл участие в рассылке\n")
		sb.WriteString("`/toggle_notifications <TelegramID|@username>` - Вкл/выкл уведомления\n")
		sb.WriteString("`/promote_admin <TelegramID|@username>` - Вкл/выкл права администратора\n\n")
		sb.WriteString("`/templates` - Список шаблонов\n")
		sb.WriteString("`/new_template <название> | <текст>` - Создать шаблон\n")
		sb.WriteString("`/set_template <ID> <текст>` - Изменить текст шаблона\n")
		sb.WriteString("`/preview_template <текст>` - Предпросмотр шаблона\n")
		sb.WriteString("`/toggle_template <ID>` - Вкл/выкл шаблон\n\n")
		sb.WriteString("`/rules` - Список правил\n")
		sb.WriteString("`/add_rule <ID шаблона> <дней до> <ЧЧ:ММ>` - Создать правило\n")
		sb.WriteString("`/toggle_rule <ID>` - Вкл/выкл правило\n")
		sb.WriteString("`/delete_rule <ID>` - Удалить правило\n\n")
		sb.WriteString("`/logs [количество]` - Журнал уведомлений\n")
		sb.WriteString("`/backup` - Резервная копия\n")
		sb.WriteString("`/notify <TelegramID|@username> <ID шаблона>` - Отправить уведомление вручную\n")
		return c.Send(sb.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

// sendTargetError reports a failed target resolution to the admin.
func sendTargetError(c telebot.Context, raw string, err error) error {
	if err == idb.ErrUserNotFound {
		return c.Send(fmt.Sprintf("Пользователь %s не найден.", raw))
	}
	return c.Send("Ошибка: укажите Telegram ID или @username.")
}

func toggleUserFlag(
	ctx context.Context,
	c telebot.Context,
	args []string,
	logCtx *logrus.Entry,
	svc *app.AdminService,
	toggle func(context.Context, int64, int64) (bool, error),
	what string,
) error {
	telegramID, err := svc.ResolveTelegramID(ctx, args[0])
	if err != nil {
		return sendTargetError(c, args[0], err)
	}

	enabled, err := toggle(ctx, c.Sender().ID, telegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return c.Send(fmt.Sprintf("Пользователь с Telegram ID %d не найден.", telegramID))
		}
		logCtx.WithError(err).Error("Failed to toggle user flag")
		return c.Send("Не удалось изменить настройку: " + err.Error())
	}

	state := "выключено"
	if enabled {
		state = "включено"
	}
	logCtx.WithFields(logrus.Fields{"target": telegramID, "enabled": enabled}).Info("User flag toggled")
	return c.Send(fmt.Sprintf("Для пользователя %d %s: %s.", telegramID, what, state))
}
