package conversation

import (
	"context"

	"cashbot/internal/bot"
)

// Gateway is the outbound side of the chat transport.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, format bot.Format) error
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	SendKeyboard(ctx context.Context, chatID int64, prompt string, kb bot.Keyboard) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb bot.Keyboard) error
}
