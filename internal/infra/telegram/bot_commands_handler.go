// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"

	"birthday_notification_bot/internal/domain/user"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	cfg *config.AppConfig,
	userRepo user.Repository,
	baseLogger *logrus.Entry,
) {
	commandsLogger := baseLogger.WithField("handler_group", "bot_commands")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		known, err := userRepo.GetByTelegramID(ctx, senderID)
		if err == nil {
			if cfg.IsAdmin(senderID) || known.IsAdmin {
				logCtx.Info("User identified as Admin")
				return c.Send("<b>Привет!</b> 👋\nЯ бот для напоминаний о днях рождения.\n\n🦸‍♂️✨ Ты являешься <b>администратором</b>.\nДля тебя доступен <b>полный функционал</b> бота. Используй /help для списка команд.",
					&telebot.SendOptions{ParseMode: telebot.ModeHTML})
			}
			logCtx.WithField("user_id", known.ID).Info("User identified as group member")
			return c.Send("<b>Привет!</b> 👋\nЯ бот для напоминаний о днях рождения.\n\nДоступные команды:\n• /start - Начать работу с ботом\n• /birthdays - Список дней рождений",
				&telebot.SendOptions{ParseMode: telebot.ModeHTML})
		} else if err != idb.ErrUserNotFound {
			logCtx.WithError(err).Error("Error checking user status for /start command")
			return c.Send("Произошла ошибка при проверке вашего статуса. Пожалуйста, попробуйте позже.")
		}

		// Unknown user: acknowledge and forward an access request to the admins.
		logCtx.Info("Unknown user, notifying admins")
		notifyAdminsAboutRequest(ctx, b, cfg, userRepo, c.Sender(), logCtx)
		return c.Send("Уже добавляем тебя в систему уведомлений. Подожди немного...🕒\n\nПожалуйста, установи @username, если у тебя его нет. Это нужно, чтобы все работало исправно🤖")
	})

	b.Handle("/birthdays", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := commandsLogger.WithField("command", "/birthdays").WithField("sender_id", senderID)
		logCtx.Info("Processing /birthdays command")

		if _, err := userRepo.GetByTelegramID(ctx, senderID); err != nil {
			if err == idb.ErrUserNotFound && !cfg.IsAdmin(senderID) {
				return c.Send("Эта команда доступна только участникам группы. Обратитесь к администратору для добавления.")
			}
			if err != idb.ErrUserNotFound {
				logCtx.WithError(err).Error("Error checking user status for /birthdays command")
				return c.Send("Произошла ошибка. Пожалуйста, попробуйте позже.")
			}
		}

		users, err := userRepo.ListAll(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list users for /birthdays")
			return c.Send("Не удалось получить список дней рождения. Попробуйте позже.")
		}
		return c.Send(formatBirthdayList(users), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})
}

// notifyAdminsAboutRequest sends the new-user access request to every admin:
// the configured IDs plus everyone flagged is_admin in the store, deduplicated.
// Delivery failures are logged per admin and do not reach the requesting user.
func notifyAdminsAboutRequest(ctx context.Context, b *telebot.Bot, cfg *config.AppConfig, userRepo user.Repository, sender *telebot.User, logCtx *logrus.Entry) {
	name := sender.FirstName
	if sender.LastName != "" {
		name += " " + sender.LastName
	}
	username := "❗️username отсутствует"
	if sender.Username != "" {
		username = "@" + sender.Username
	}
	text := fmt.Sprintf("🆕 <b>Новый запрос на доступ!</b>\n\n👤 <b>Пользователь:</b> %s\n🔍 <b>Username:</b> %s\n🆔 <b>Telegram ID:</b> %d\n\nДля добавления используй команду:\n<code>/add_user %d %s Фамилия YYYY-MM-DD</code>",
		name, username, sender.ID, sender.ID, sender.FirstName)

	adminIDs := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminIDs[id] = struct{}{}
	}
	if storeAdmins, err := userRepo.ListAdmins(ctx); err != nil {
		logCtx.WithError(err).Warn("Failed to load store-level admins, notifying configured admins only")
	} else {
		for _, a := range storeAdmins {
			adminIDs[a.TelegramID] = struct{}{}
		}
	}

	for adminID := range adminIDs {
		if _, err := b.Send(&telebot.User{ID: adminID}, text, &telebot.SendOptions{ParseMode: telebot.ModeHTML}); err != nil {
			logCtx.WithError(err).WithField("admin_id", adminID).Warn("Failed to notify admin about access request")
		}
	}
}
