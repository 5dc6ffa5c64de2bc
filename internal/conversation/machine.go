package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"cashbot/internal/bot"
	"cashbot/internal/calendar"
	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/sheets"
)

// ErrMissingSession means a callback arrived for a chat with no dialogue
// in progress: a duplicate delivery, an expired session or a restart.
var ErrMissingSession = errors.New("no session for chat")

// Commands understood by the machine.
const (
	CmdStart    = "start"
	CmdOneOff   = "oneoff"
	CmdPast     = "past"
	CmdCancel   = "cancel"
	CmdInsights = "insights"
	CmdHelp     = "help"
)

type transitionKey struct {
	state State
	kind  EventKind
}

type transitionFunc func(ctx context.Context, ev Event, sess Session) error

// Machine is the dialogue controller. Turns of one chat run one at a
// time; different chats run concurrently.
type Machine struct {
	sessions    *SessionStore
	gateway     Gateway
	ledger      sheets.Ledger
	locks       *keyedMutex
	now         func() time.Time
	logger      *log.Logger
	events      *log.StructuredLogger
	transitions map[transitionKey]transitionFunc
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

func NewMachine(sessions *SessionStore, gateway Gateway, ledger sheets.Ledger, opts ...Option) *Machine {
	m := &Machine{
		sessions: sessions,
		gateway:  gateway,
		ledger:   ledger,
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent(log.ComponentConversation)
	m.events = log.NewStructuredLogger(m.logger)

	m.transitions = map[transitionKey]transitionFunc{
		{AwaitingDateSelection, EventCallback}:  m.onDatePick,
		{AwaitingDateSelection, EventText}:      m.onTextWhilePicking,
		{AwaitingExpenseInput, EventText}:       m.onExpenseText,
		{AwaitingExpenseInput, EventCallback}:   m.onStaleCallback,
		{AwaitingCategoryChoice, EventCallback}: m.onCategory,
		{AwaitingCategoryChoice, EventText}:     m.onTextWhileChoosing,
	}
	return m
}

// Handle runs one turn for ev.ChatID. User mistakes are answered in the
// chat and never returned; the error reports gateway or internal failures.
func (m *Machine) Handle(ctx context.Context, ev Event) (err error) {
	unlock := m.locks.Lock(ev.ChatID)
	defer unlock()

	logger := m.logger.WithChat(ev.ChatID)
	ctx = log.IntoContext(ctx, logger)
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Panic while handling event",
				log.FieldEvent, ev.Kind.String(),
				"panic", r,
				"stack", string(debug.Stack()))
			m.sessions.Delete(ev.ChatID)
			if sendErr := m.gateway.SendMessage(ctx, ev.ChatID, bot.MsgInternalError, bot.Plain); sendErr != nil {
				logger.LogError(ctx, log.OpSend, sendErr)
			}
			err = fmt.Errorf("handle %s: panic: %v", ev.Kind, r)
		}
	}()

	if ev.Kind == EventCommand {
		logger.DebugContext(ctx, "Command received", log.FieldCommand, ev.Command)
		return m.onCommand(ctx, ev)
	}

	sess, ok := m.sessions.Get(ev.ChatID)
	if !ok {
		return m.onIdle(ctx, ev)
	}
	logger.DebugContext(ctx, "Event received", log.FieldState, sess.State.String(), log.FieldEvent, ev.Kind.String())

	fn, ok := m.transitions[transitionKey{sess.State, ev.Kind}]
	if !ok {
		return fmt.Errorf("no transition from %s on %s", sess.State, ev.Kind)
	}
	return fn(ctx, ev, sess)
}

func (m *Machine) onCommand(ctx context.Context, ev Event) error {
	switch ev.Command {
	case CmdStart:
		return m.send(ctx, ev.ChatID, bot.Greeting(ev.FirstName))
	case CmdOneOff:
		m.sessions.Put(ev.ChatID, Session{State: AwaitingExpenseInput})
		return m.send(ctx, ev.ChatID, bot.MsgExpensePrompt)
	case CmdPast:
		m.sessions.Put(ev.ChatID, Session{State: AwaitingDateSelection})
		today := core.Today(m.now())
		return m.gateway.SendKeyboard(ctx, ev.ChatID, bot.MsgDatePrompt, calendar.Keyboard(today.Year(), today.Month()))
	case CmdCancel:
		m.sessions.Delete(ev.ChatID)
		return m.send(ctx, ev.ChatID, bot.MsgCancelled)
	case CmdInsights:
		return m.onInsights(ctx, ev)
	case CmdHelp:
		return m.send(ctx, ev.ChatID, bot.MsgHelp)
	default:
		return m.send(ctx, ev.ChatID, bot.MsgUnknownCommand)
	}
}

func (m *Machine) onIdle(ctx context.Context, ev Event) error {
	if ev.Kind == EventCallback {
		m.logger.WarnContext(ctx, "Callback without session",
			log.FieldChatID, ev.ChatID,
			log.FieldError, ErrMissingSession)
		return m.send(ctx, ev.ChatID, bot.MsgMissingSession)
	}
	return m.send(ctx, ev.ChatID, bot.MsgIdleHint)
}

func (m *Machine) onDatePick(ctx context.Context, ev Event, sess Session) error {
	// a button from some older keyboard; leave that message alone
	if !calendar.IsPayload(ev.Data) {
		return m.onStaleCallback(ctx, ev, sess)
	}
	p, err := calendar.Decode(ev.Data)
	if err != nil {
		today := core.Today(m.now())
		m.logger.DebugContext(ctx, "Unreadable calendar payload", log.FieldChatID, ev.ChatID, log.FieldError, err)
		return m.gateway.EditKeyboard(ctx, ev.ChatID, ev.MessageID, calendar.Keyboard(today.Year(), today.Month()))
	}

	switch p.Action {
	case calendar.ActionIgnore:
		return nil
	case calendar.ActionPrevMonth, calendar.ActionNextMonth:
		year, month := p.Target()
		return m.gateway.EditKeyboard(ctx, ev.ChatID, ev.MessageID, calendar.Keyboard(year, month))
	}

	d, err := p.Date()
	if err != nil {
		return fmt.Errorf("decoded day payload: %w", err)
	}
	sess.SelectedDate = &d
	sess.State = AwaitingExpenseInput
	m.sessions.Put(ev.ChatID, sess)

	if err := m.gateway.EditMessageText(ctx, ev.ChatID, ev.MessageID, bot.DateSelected(d)); err != nil {
		m.logger.LogError(ctx, log.OpEdit, err, log.FieldChatID, ev.ChatID)
	}
	return m.send(ctx, ev.ChatID, bot.MsgExpensePrompt)
}

func (m *Machine) onTextWhilePicking(ctx context.Context, ev Event, _ Session) error {
	today := core.Today(m.now())
	return m.gateway.SendKeyboard(ctx, ev.ChatID, bot.MsgDatePrompt, calendar.Keyboard(today.Year(), today.Month()))
}

func (m *Machine) onExpenseText(ctx context.Context, ev Event, sess Session) error {
	e, err := core.ParseExpense(ev.Text, m.now(), sess.SelectedDate)
	if err != nil {
		m.logger.DebugContext(ctx, "Rejected expense input",
			log.FieldChatID, ev.ChatID,
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
		return m.send(ctx, ev.ChatID, bot.MsgInvalidFormat)
	}
	if in, _ := core.SplitInput(ev.Text); in.Legacy {
		m.logger.DebugContext(ctx, "Legacy dated input accepted", log.FieldChatID, ev.ChatID)
	}

	sess.Pending = &e
	sess.State = AwaitingCategoryChoice
	m.sessions.Put(ev.ChatID, sess)
	return m.gateway.SendKeyboard(ctx, ev.ChatID, bot.MsgCategoryPrompt, bot.CategoryKeyboard())
}

func (m *Machine) onStaleCallback(ctx context.Context, ev Event, _ Session) error {
	return m.send(ctx, ev.ChatID, bot.MsgStaleSelection)
}

func (m *Machine) onTextWhileChoosing(ctx context.Context, ev Event, _ Session) error {
	return m.send(ctx, ev.ChatID, bot.MsgChooseCategory)
}

func (m *Machine) onCategory(ctx context.Context, ev Event, _ Session) error {
	category := strings.TrimSpace(ev.Data)
	if !core.IsCategory(category) {
		return m.gateway.SendKeyboard(ctx, ev.ChatID, bot.MsgCategoryPrompt, bot.CategoryKeyboard())
	}

	// the session leaves the store before any I/O so a duplicate callback finds nothing
	sess, ok := m.sessions.Take(ev.ChatID)
	if !ok || sess.Pending == nil {
		m.logger.WarnContext(ctx, "Category without pending record",
			log.FieldChatID, ev.ChatID,
			log.FieldError, ErrMissingSession)
		return m.send(ctx, ev.ChatID, bot.MsgMissingSession)
	}
	e, err := sess.Pending.WithCategory(category)
	if err != nil {
		m.logger.LogError(ctx, "assign category", err, log.FieldChatID, ev.ChatID)
		return m.send(ctx, ev.ChatID, bot.MsgMissingSession)
	}

	if err := m.gateway.EditMessageText(ctx, ev.ChatID, ev.MessageID, bot.CategoryChosen(category)); err != nil {
		m.logger.LogError(ctx, log.OpEdit, err, log.FieldChatID, ev.ChatID)
	}

	ref, err := m.ledger.Append(ctx, e)
	if err != nil {
		m.events.LogError(ctx, "Failed to save expense", err, log.OpAppend,
			log.NewFields().
				WithChat(ev.ChatID).
				WithExpense(e.Product, e.Amount.StringFixed(2), e.Category, e.SpendType, e.MonthKey()))
		return m.send(ctx, ev.ChatID, bot.MsgSaveFailed)
	}
	m.events.LogExpenseSaved(ctx, e.Product, e.Amount, e.Category, e.SpendType, e.MonthKey(), ref)
	return m.gateway.SendMessage(ctx, ev.ChatID, bot.FormatSaved(e), bot.MarkdownV2)
}

func (m *Machine) onInsights(ctx context.Context, ev Event) error {
	month := core.Today(m.now()).Month()
	if arg := strings.TrimSpace(ev.Args); arg != "" {
		parsed, err := core.ParseMonth(arg)
		if err != nil {
			return m.send(ctx, ev.ChatID, bot.MsgUnknownInsights)
		}
		month = parsed
	}

	in, err := m.ledger.ReadInsights(ctx, month)
	if err != nil {
		m.logger.LogError(ctx, log.OpRead, err, log.FieldChatID, ev.ChatID, log.FieldMonthKey, core.MonthKey(month))
		return m.send(ctx, ev.ChatID, bot.MsgInsightsFailed)
	}
	return m.gateway.SendMessage(ctx, ev.ChatID, bot.FormatInsights(in), bot.MarkdownV2)
}

func (m *Machine) send(ctx context.Context, chatID int64, text string) error {
	return m.gateway.SendMessage(ctx, chatID, text, bot.Plain)
}
