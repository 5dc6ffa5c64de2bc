package telegram

import (
	"strings"

	"cashbot/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventFromUpdate translates u. It reports false for updates the bot
// does not react to, such as edits, stickers or inline queries.
func EventFromUpdate(u tgbotapi.Update) (conversation.Event, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		m := u.Message
		if m.IsCommand() {
			firstName := ""
			if m.From != nil {
				firstName = m.From.FirstName
			}
			ev := conversation.Command(m.Chat.ID, strings.ToLower(m.Command()), strings.TrimSpace(m.CommandArguments()), firstName)
			ev.MessageID = m.MessageID
			return ev, true
		}
		if m.Text == "" {
			return conversation.Event{}, false
		}
		ev := conversation.Text(m.Chat.ID, m.Text)
		ev.MessageID = m.MessageID
		return ev, true

	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		q := u.CallbackQuery
		return conversation.Callback(q.Message.Chat.ID, q.Message.MessageID, q.Data), true
	}
	return conversation.Event{}, false
}

// chatOf returns the chat an update belongs to, or 0.
func chatOf(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	}
	return 0
}
