// Package conversation runs the per-chat expense dialogue.
//
// A Machine receives inbound Events, advances the chat's Session through
// the State values below and talks back through a Gateway. A record is
// written to the ledger only after it has a category.
package conversation

import "fmt"

// EventKind discriminates inbound events.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventCallback:
		return "callback"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one inbound chat update.
type Event struct {
	Kind      EventKind
	ChatID    int64
	MessageID int

	// EventCommand
	Command   string
	Args      string
	FirstName string

	// EventText
	Text string

	// EventCallback
	Data string
}

// Command builds a command event. name has no leading slash.
func Command(chatID int64, name, args, firstName string) Event {
	return Event{Kind: EventCommand, ChatID: chatID, Command: name, Args: args, FirstName: firstName}
}

// Text builds a free-text event.
func Text(chatID int64, text string) Event {
	return Event{Kind: EventText, ChatID: chatID, Text: text}
}

// Callback builds an inline button press on messageID.
func Callback(chatID int64, messageID int, data string) Event {
	return Event{Kind: EventCallback, ChatID: chatID, MessageID: messageID, Data: data}
}
