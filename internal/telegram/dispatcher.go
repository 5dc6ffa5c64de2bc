package telegram

import (
	"context"
	"strconv"
	"time"

	"cashbot/internal/cache"
	"cashbot/internal/conversation"
	"cashbot/internal/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// Handler runs one conversation turn. *conversation.Machine satisfies it.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// CallbackAnswerer acknowledges button presses. *Client satisfies it.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID string) error
}

const (
	DefaultWorkers = 8
	shardBuffer    = 64
	seenUpdatesTTL = 10 * time.Minute
	seenUpdatesMax = 4096
)

// Dispatcher fans updates out to a fixed set of workers. All updates of
// a chat land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	handler Handler
	answer  CallbackAnswerer
	workers int
	seen    *cache.LRUCache[struct{}]
	logger  *log.Logger
}

func NewDispatcher(handler Handler, answer CallbackAnswerer, workers int, logger *log.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		handler: handler,
		answer:  answer,
		workers: workers,
		seen:    cache.NewLRUCache[struct{}](seenUpdatesMax, seenUpdatesTTL),
		logger:  logger.WithComponent(log.ComponentTelegram),
	}
}

// SeenUpdates exposes the redelivery filter to a cache.Manager sweep.
func (d *Dispatcher) SeenUpdates() cache.Cleaner {
	return d.seen
}

// Run consumes updates until the channel closes or ctx ends, then waits
// for in-flight turns to finish.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, ctx := errgroup.WithContext(ctx)

	shards := make([]chan tgbotapi.Update, d.workers)
	for i := range shards {
		ch := make(chan tgbotapi.Update, shardBuffer)
		shards[i] = ch
		g.Go(func() error {
			for u := range ch {
				d.process(ctx, u)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case u, ok := <-updates:
				if !ok {
					return nil
				}
				if d.duplicate(u) {
					d.logger.DebugContext(ctx, "Dropping redelivered update", log.FieldUpdateID, u.UpdateID)
					continue
				}
				shards[d.shard(chatOf(u))] <- u
			}
		}
	})

	return g.Wait()
}

func (d *Dispatcher) shard(chatID int64) int {
	return int(uint64(chatID) % uint64(d.workers))
}

func (d *Dispatcher) duplicate(u tgbotapi.Update) bool {
	if u.UpdateID == 0 {
		return false
	}
	k := strconv.Itoa(u.UpdateID)
	if _, ok := d.seen.Get(k); ok {
		return true
	}
	d.seen.Set(k, struct{}{})
	return false
}

func (d *Dispatcher) process(ctx context.Context, u tgbotapi.Update) {
	if u.CallbackQuery != nil && d.answer != nil {
		if err := d.answer.AnswerCallback(ctx, u.CallbackQuery.ID); err != nil {
			d.logger.WarnContext(ctx, "Failed to answer callback", log.FieldUpdateID, u.UpdateID, log.FieldError, err)
		}
	}

	ev, ok := EventFromUpdate(u)
	if !ok {
		d.logger.DebugContext(ctx, "Ignoring update", log.FieldUpdateID, u.UpdateID)
		return
	}

	start := time.Now()
	err := d.handler.Handle(ctx, ev)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to handle update",
			log.FieldUpdateID, u.UpdateID,
			log.FieldChatID, ev.ChatID,
			log.FieldEvent, ev.Kind.String(),
			log.FieldError, err)
		return
	}
	d.logger.DebugContext(ctx, "Update handled",
		log.FieldUpdateID, u.UpdateID,
		log.FieldChatID, ev.ChatID,
		log.FieldDuration, time.Since(start).Milliseconds())
}
