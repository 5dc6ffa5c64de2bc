package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldChatID     = "chat_id"
	FieldMessageID  = "message_id"
	FieldUpdateID   = "update_id"
	FieldState      = "state"
	FieldEvent      = "event"
	FieldCommand    = "command"
	FieldMonthKey   = "month_key"
	FieldProduct    = "product"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldSpendType  = "spend_type"
	FieldRowRef     = "row_ref"
	FieldEventID    = "event_id"
	FieldAttempt    = "attempt"
	FieldDuration   = "duration_ms"
	FieldStatusCode = "status_code"
	FieldPath       = "path"
	FieldMethod     = "method"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentConversation = "conversation"
	ComponentTelegram     = "telegram"
	ComponentHTTP         = "http"
	ComponentSheets       = "sheets"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentCache        = "cache"
	ComponentBackend      = "backend"
	ComponentService      = "service"
)

// Operations defines standard operation names
const (
	OpAppend    = "append"
	OpRead      = "read"
	OpEnsureTab = "ensure_tab"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpArchive   = "archive"
	OpSend      = "send"
	OpEdit      = "edit"
	OpParse     = "parse"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithChat adds the chat id.
func (f LogFields) WithChat(chatID int64) LogFields {
	f[FieldChatID] = chatID
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(product, amount, category, spendType, monthKey string) LogFields {
	f[FieldProduct] = product
	f[FieldAmount] = amount
	f[FieldCategory] = category
	f[FieldSpendType] = spendType
	f[FieldMonthKey] = monthKey
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
