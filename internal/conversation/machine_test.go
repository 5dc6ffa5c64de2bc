package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cashbot/internal/bot"
	"cashbot/internal/cache"
	"cashbot/internal/core"
	"cashbot/internal/sheets/memory"
)

const chat int64 = 42

// 10:00 on 5 March 2025 in UTC+8.
var clock = time.Date(2025, time.March, 5, 2, 0, 0, 0, time.UTC)

type call struct {
	kind   string
	chatID int64
	msgID  int
	text   string
	format bot.Format
	kb     bot.Keyboard
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []call
}

func (g *fakeGateway) record(c call) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	return nil
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string, format bot.Format) error {
	return g.record(call{kind: "send", chatID: chatID, text: text, format: format})
}

func (g *fakeGateway) EditMessageText(_ context.Context, chatID int64, messageID int, text string) error {
	return g.record(call{kind: "edit", chatID: chatID, msgID: messageID, text: text})
}

func (g *fakeGateway) SendKeyboard(_ context.Context, chatID int64, prompt string, kb bot.Keyboard) error {
	return g.record(call{kind: "keyboard", chatID: chatID, text: prompt, kb: kb})
}

func (g *fakeGateway) EditKeyboard(_ context.Context, chatID int64, messageID int, kb bot.Keyboard) error {
	return g.record(call{kind: "edit-keyboard", chatID: chatID, msgID: messageID, kb: kb})
}

func (g *fakeGateway) last(t *testing.T) call {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		t.Fatal("no gateway calls")
	}
	return g.calls[len(g.calls)-1]
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) texts(kind string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		if c.kind == kind {
			out = append(out, c.text)
		}
	}
	return out
}

type fakeLedger struct {
	*memory.Store
	appendErr error
	readErr   error
	panicking bool
}

func (l *fakeLedger) Append(ctx context.Context, e core.Expense) (string, error) {
	if l.panicking {
		panic("ledger exploded")
	}
	if l.appendErr != nil {
		return "", l.appendErr
	}
	return l.Store.Append(ctx, e)
}

func (l *fakeLedger) ReadInsights(ctx context.Context, month time.Month) (core.Insights, error) {
	if l.readErr != nil {
		return core.Insights{}, l.readErr
	}
	return l.Store.ReadInsights(ctx, month)
}

type harness struct {
	m      *Machine
	gw     *fakeGateway
	ledger *fakeLedger
	store  *SessionStore
}

func newHarness(opts ...cache.Option) *harness {
	h := &harness{
		gw:     &fakeGateway{},
		ledger: &fakeLedger{Store: memory.New()},
		store:  NewSessionStore(0, DefaultSessionTTL, opts...),
	}
	h.m = NewMachine(h.store, h.gw, h.ledger, WithClock(func() time.Time { return clock }))
	return h
}

func (h *harness) do(t *testing.T, ev Event) {
	t.Helper()
	if err := h.m.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
}

func (h *harness) rows(t *testing.T, month time.Month) []core.Expense {
	t.Helper()
	rows, err := h.ledger.ListExpenses(context.Background(), month)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestOneOffFlow(t *testing.T) {
	h := newHarness()

	h.do(t, Command(chat, CmdOneOff, "", "Ana"))
	if got := h.gw.last(t).text; got != bot.MsgExpensePrompt {
		t.Fatalf("prompt = %q", got)
	}

	h.do(t, Text(chat, "Coffee-3.50"))
	kb := h.gw.last(t)
	if kb.kind != "keyboard" || kb.text != bot.MsgCategoryPrompt {
		t.Fatalf("expected category keyboard, got %+v", kb)
	}
	if len(kb.kb) != 3 || kb.kb[0][0].Label != "Income" || kb.kb[2][2].Label != "Subscriptions" {
		t.Fatalf("keyboard = %+v", kb.kb)
	}

	h.do(t, Callback(chat, 100, "Food"))
	edits := h.gw.texts("edit")
	if len(edits) != 1 || edits[0] != "Category 'Food' chosen." {
		t.Fatalf("edits = %v", edits)
	}
	saved := h.gw.last(t)
	want := `Successfully saved: 05/03/25 \- Coffee $3\.50 \(Food\)`
	if saved.text != want || saved.format != bot.MarkdownV2 {
		t.Fatalf("saved message = %q (%s)", saved.text, saved.format)
	}

	rows := h.rows(t, time.March)
	if len(rows) != 1 || rows[0].SpendType != "Essential" || rows[0].Date.ISO() != "2025-03-05" {
		t.Fatalf("rows = %+v", rows)
	}
	if h.store.cache.Size() != 0 {
		t.Fatal("session should be destroyed after saving")
	}
}

func TestPastFlow(t *testing.T) {
	h := newHarness()

	h.do(t, Command(chat, CmdPast, "", "Ana"))
	cal := h.gw.last(t)
	if cal.kind != "keyboard" || cal.text != bot.MsgDatePrompt || cal.kb[0][0].Label != "March 2025" {
		t.Fatalf("calendar = %+v", cal)
	}

	h.do(t, Callback(chat, 7, "CALENDAR;PREV-MONTH;2025;3;1"))
	nav := h.gw.last(t)
	if nav.kind != "edit-keyboard" || nav.msgID != 7 || nav.kb[0][0].Label != "February 2025" {
		t.Fatalf("navigation = %+v", nav)
	}

	before := h.gw.count()
	h.do(t, Callback(chat, 7, "CALENDAR;IGNORE;2025;2;0"))
	if h.gw.count() != before {
		t.Fatal("IGNORE should not talk to the chat")
	}

	h.do(t, Callback(chat, 7, "CALENDAR;DAY;2025;2;28"))
	edits := h.gw.texts("edit")
	if len(edits) != 1 || edits[0] != "Date selected: 28/02/25" {
		t.Fatalf("edits = %v", edits)
	}
	if got := h.gw.last(t).text; got != bot.MsgExpensePrompt {
		t.Fatalf("prompt = %q", got)
	}

	h.do(t, Text(chat, "Textbook-42"))
	h.do(t, Callback(chat, 8, "Education"))

	rows := h.rows(t, time.February)
	if len(rows) != 1 || rows[0].Date.ISO() != "2025-02-28" || rows[0].Amount.StringFixed(2) != "42.00" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestPastUnreadablePayloadRerendersCurrentMonth(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdPast, "", ""))
	h.do(t, Callback(chat, 7, "CALENDAR;DAY;2025;2;30"))

	c := h.gw.last(t)
	if c.kind != "edit-keyboard" || c.kb[0][0].Label != "March 2025" {
		t.Fatalf("got %+v", c)
	}
	sess, ok := h.store.Get(chat)
	if !ok || sess.State != AwaitingDateSelection {
		t.Fatalf("session = %+v, %v", sess, ok)
	}
}

func TestInvalidInputReprompts(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))

	for _, in := range []string{"Coffee", "Coffee-abc", "Coffee-3-4", "-3.50", "Coffee-NaN"} {
		h.do(t, Text(chat, in))
		if got := h.gw.last(t).text; got != bot.MsgInvalidFormat {
			t.Fatalf("%q: reply = %q", in, got)
		}
		sess, _ := h.store.Get(chat)
		if sess.State != AwaitingExpenseInput || sess.Pending != nil {
			t.Fatalf("%q: session = %+v", in, sess)
		}
	}

	h.do(t, Text(chat, "Refund--12"))
	sess, _ := h.store.Get(chat)
	if sess.State != AwaitingCategoryChoice || sess.Pending.Amount.StringFixed(2) != "-12.00" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestLegacyDatedInput(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "14/01/25-Train-8.20"))
	h.do(t, Callback(chat, 1, "Transport"))

	rows := h.rows(t, time.January)
	if len(rows) != 1 || rows[0].Product != "Train" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestDuplicateCategoryCallback(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	h.do(t, Callback(chat, 100, "Food"))
	h.do(t, Callback(chat, 100, "Food"))

	if got := h.gw.last(t).text; got != bot.MsgMissingSession {
		t.Fatalf("reply = %q", got)
	}
	if n := len(h.rows(t, time.March)); n != 1 {
		t.Fatalf("saved %d rows", n)
	}
}

func TestConcurrentDuplicateCallbacks(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.m.Handle(context.Background(), Callback(chat, 100, "Food"))
		}()
	}
	wg.Wait()

	if n := len(h.rows(t, time.March)); n != 1 {
		t.Fatalf("saved %d rows", n)
	}
	if n := len(h.gw.texts("edit")); n != 1 {
		t.Fatalf("edited %d times", n)
	}
}

func TestUnknownCategoryKeepsSession(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))

	h.do(t, Callback(chat, 100, "Rent"))
	if c := h.gw.last(t); c.kind != "keyboard" {
		t.Fatalf("expected keyboard again, got %+v", c)
	}
	h.do(t, Text(chat, "Food"))
	if got := h.gw.last(t).text; got != bot.MsgChooseCategory {
		t.Fatalf("reply = %q", got)
	}
	if len(h.rows(t, time.March)) != 0 {
		t.Fatal("nothing should be saved without a category")
	}

	h.do(t, Callback(chat, 100, "Food"))
	if len(h.rows(t, time.March)) != 1 {
		t.Fatal("expected one row")
	}
}

func TestCancel(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	h.do(t, Command(chat, CmdCancel, "", ""))
	if got := h.gw.last(t).text; got != bot.MsgCancelled {
		t.Fatalf("reply = %q", got)
	}

	h.do(t, Callback(chat, 100, "Food"))
	if got := h.gw.last(t).text; got != bot.MsgMissingSession {
		t.Fatalf("reply = %q", got)
	}
	h.do(t, Text(chat, "Coffee-3.50"))
	if got := h.gw.last(t).text; got != bot.MsgIdleHint {
		t.Fatalf("reply = %q", got)
	}
	if len(h.rows(t, time.March)) != 0 {
		t.Fatal("cancelled entry was saved")
	}
}

func TestForeignCallbackWhilePickingDate(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdPast, "", ""))
	h.do(t, Callback(chat, 99, "Food"))

	c := h.gw.last(t)
	if c.kind == "edit-keyboard" || c.text != bot.MsgStaleSelection {
		t.Fatalf("got %+v", c)
	}
	sess, ok := h.store.Get(chat)
	if !ok || sess.State != AwaitingDateSelection {
		t.Fatalf("session = %+v, %v", sess, ok)
	}
}

func TestOverlongProductReprompts(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, strings.Repeat("x", 201)+"-3.5"))

	if got := h.gw.last(t).text; got != bot.MsgInvalidFormat {
		t.Fatalf("reply = %q", got)
	}
	sess, ok := h.store.Get(chat)
	if !ok || sess.State != AwaitingExpenseInput || sess.Pending != nil {
		t.Fatalf("session = %+v, %v", sess, ok)
	}

	h.do(t, Text(chat, "Coffee-3.5"))
	h.do(t, Callback(chat, 4, "Food"))
	if rows := h.rows(t, time.March); len(rows) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestStaleCallbackWhileAwaitingInput(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Callback(chat, 3, "Food"))
	if got := h.gw.last(t).text; got != bot.MsgStaleSelection {
		t.Fatalf("reply = %q", got)
	}
}

func TestRestartReplacesAbandonedSession(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	h.do(t, Command(chat, CmdOneOff, "", ""))

	sess, _ := h.store.Get(chat)
	if sess.State != AwaitingExpenseInput || sess.Pending != nil {
		t.Fatalf("session = %+v", sess)
	}
}

func TestSaveFailure(t *testing.T) {
	h := newHarness()
	h.ledger.appendErr = errors.New("quota exceeded")

	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	h.do(t, Callback(chat, 100, "Food"))

	if got := h.gw.last(t).text; got != bot.MsgSaveFailed {
		t.Fatalf("reply = %q", got)
	}
	if h.store.cache.Size() != 0 {
		t.Fatal("session should end after a failed save")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness()
	h.ledger.panicking = true

	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	err := h.m.Handle(context.Background(), Callback(chat, 100, "Food"))
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err = %v", err)
	}
	if got := h.gw.last(t).text; got != bot.MsgInternalError {
		t.Fatalf("reply = %q", got)
	}

	// the chat lock was released
	h.do(t, Command(chat, CmdHelp, "", ""))
}

func TestSessionExpiry(t *testing.T) {
	now := clock
	h := newHarness(cache.WithClock(func() time.Time { return now }))
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))

	now = now.Add(DefaultSessionTTL + time.Second)
	h.do(t, Callback(chat, 100, "Food"))
	if got := h.gw.last(t).text; got != bot.MsgMissingSession {
		t.Fatalf("reply = %q", got)
	}
}

func TestChatsAreIsolated(t *testing.T) {
	h := newHarness()
	h.do(t, Command(1, CmdOneOff, "", ""))
	h.do(t, Command(2, CmdPast, "", ""))
	h.do(t, Text(1, "Coffee-3.50"))

	s1, _ := h.store.Get(1)
	s2, _ := h.store.Get(2)
	if s1.State != AwaitingCategoryChoice || s2.State != AwaitingDateSelection {
		t.Fatalf("sessions = %s, %s", s1.State, s2.State)
	}
}

func TestStatelessCommands(t *testing.T) {
	h := newHarness()

	h.do(t, Command(chat, CmdStart, "", "Ana"))
	if got := h.gw.last(t).text; got != "Hello Ana! Welcome to your expenditure tracker." {
		t.Fatalf("greeting = %q", got)
	}
	h.do(t, Command(chat, CmdHelp, "", ""))
	if got := h.gw.last(t).text; got != bot.MsgHelp {
		t.Fatalf("help = %q", got)
	}
	h.do(t, Command(chat, "dance", "", ""))
	if got := h.gw.last(t).text; got != bot.MsgUnknownCommand {
		t.Fatalf("unknown = %q", got)
	}
	if h.store.cache.Size() != 0 {
		t.Fatal("stateless commands created a session")
	}
}

func TestInsights(t *testing.T) {
	h := newHarness()
	h.do(t, Command(chat, CmdOneOff, "", ""))
	h.do(t, Text(chat, "Coffee-3.50"))
	h.do(t, Callback(chat, 100, "Food"))

	h.do(t, Command(chat, CmdInsights, "", ""))
	c := h.gw.last(t)
	if c.format != bot.MarkdownV2 || !strings.HasPrefix(c.text, "*Insights for March*") {
		t.Fatalf("insights = %q", c.text)
	}
	if !strings.Contains(c.text, `Total: 3\.50`) {
		t.Fatalf("insights = %q", c.text)
	}

	h.do(t, Command(chat, CmdInsights, "feb", ""))
	if c := h.gw.last(t); !strings.HasPrefix(c.text, "*Insights for February*") || !strings.Contains(c.text, "Total: 0") {
		t.Fatalf("insights = %q", c.text)
	}

	h.do(t, Command(chat, CmdInsights, "Smarch", ""))
	if got := h.gw.last(t).text; got != bot.MsgUnknownInsights {
		t.Fatalf("reply = %q", got)
	}

	h.ledger.readErr = errors.New("503")
	h.do(t, Command(chat, CmdInsights, "", ""))
	if got := h.gw.last(t).text; got != bot.MsgInsightsFailed {
		t.Fatalf("reply = %q", got)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	done := make(chan struct{})
	go func() {
		k.Lock(1)()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Fatalf("leaked %d locks", len(k.locks))
	}
}

func TestStateAndEventKindString(t *testing.T) {
	if AwaitingCategoryChoice.String() != "AwaitingCategoryChoice" || State(9).String() != "State(9)" {
		t.Fatal("state names")
	}
	if EventCallback.String() != "callback" || EventKind(0).String() != "EventKind(0)" {
		t.Fatal("event kind names")
	}
}
