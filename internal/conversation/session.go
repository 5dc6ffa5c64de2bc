package conversation

import (
	"strconv"
	"sync"
	"time"

	"cashbot/internal/cache"
	"cashbot/internal/core"
)

// State is where a chat's dialogue stands.
type State int

const (
	Idle State = iota
	AwaitingDateSelection
	AwaitingExpenseInput
	AwaitingCategoryChoice
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingDateSelection:
		return "AwaitingDateSelection"
	case AwaitingExpenseInput:
		return "AwaitingExpenseInput"
	case AwaitingCategoryChoice:
		return "AwaitingCategoryChoice"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is the in-progress dialogue of one chat.
type Session struct {
	State        State
	Pending      *core.Expense
	SelectedDate *core.Date
}

// Defaults for NewSessionStore.
const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultSessionCapacity = 10000
)

// SessionStore keeps sessions by chat id. Entries expire after the TTL
// and the least recently used are evicted past capacity.
type SessionStore struct {
	cache *cache.LRUCache[Session]
}

func NewSessionStore(capacity int, ttl time.Duration, opts ...cache.Option) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	return &SessionStore{cache: cache.NewLRUCache[Session](capacity, ttl, opts...)}
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (s *SessionStore) Get(chatID int64) (Session, bool) {
	return s.cache.Get(key(chatID))
}

// Put stores sess and restarts its TTL.
func (s *SessionStore) Put(chatID int64, sess Session) {
	s.cache.Set(key(chatID), sess)
}

// Take removes and returns the session. Only one caller gets it.
func (s *SessionStore) Take(chatID int64) (Session, bool) {
	return s.cache.Take(key(chatID))
}

func (s *SessionStore) Delete(chatID int64) {
	s.cache.Delete(key(chatID))
}

// Cleaner exposes the store to a cache.Manager sweep.
func (s *SessionStore) Cleaner() cache.Cleaner {
	return s.cache
}

// keyedMutex serialises work per chat id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) Lock(key int64) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
