package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
// Implementations must honor ctx: a cancelled or expired context aborts the
// attempt and returns the context error, so a stalled delivery cannot stall
// the caller indefinitely.
type Client interface {
	SendMessage(ctx context.Context, recipientChatID int64, text string, options *telebot.SendOptions) error
}
