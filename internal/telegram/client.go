// Package telegram adapts the Telegram Bot API to the conversation
// machine: it renders gateway calls as Bot API requests and turns
// updates into conversation events.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashbot/internal/bot"
	"cashbot/internal/conversation"
	"cashbot/internal/log"

	"github.com/avast/retry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

var _ conversation.Gateway = (*Client)(nil)

// Sender is the part of *tgbotapi.BotAPI the client uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot API limits.
const (
	DefaultMessagesPerSecond = 30
	defaultRetryAttempts     = 3
	defaultRetryDelay        = time.Second
)

type Options struct {
	MessagesPerSecond int
	RetryAttempts     uint
	RetryDelay        time.Duration
	Logger            *log.Logger
}

// Client sends replies through the Bot API, throttled to the global
// per-bot limit and retried when Telegram answers 429.
type Client struct {
	api           Sender
	limiter       *rate.Limiter
	retryAttempts uint
	retryDelay    time.Duration
	logger        *log.Logger
}

func NewClient(api Sender, opts Options) *Client {
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = DefaultMessagesPerSecond
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Client{
		api:           api,
		limiter:       rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessagesPerSecond),
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		logger:        opts.Logger.WithComponent(log.ComponentTelegram),
	}
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, format bot.Format) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if format == bot.MarkdownV2 {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	return c.send(ctx, log.OpSend, chatID, msg)
}

// EditMessageText replaces the text of messageID, dropping its keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	return c.send(ctx, log.OpEdit, chatID, tgbotapi.NewEditMessageText(chatID, messageID, text))
}

func (c *Client) SendKeyboard(ctx context.Context, chatID int64, prompt string, kb bot.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = Markup(kb)
	return c.send(ctx, log.OpSend, chatID, msg)
}

func (c *Client) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb bot.Keyboard) error {
	return c.send(ctx, log.OpEdit, chatID, tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, Markup(kb)))
}

// AnswerCallback stops the loading spinner on the pressed button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.request(ctx, "answer_callback", tgbotapi.NewCallback(callbackID, ""))
}

// SetWebhook points Telegram at url.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	return c.request(ctx, "set_webhook", wh)
}

// DeleteWebhook switches the bot back to long polling.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.request(ctx, "delete_webhook", tgbotapi.DeleteWebhookConfig{})
}

func (c *Client) send(ctx context.Context, op string, chatID int64, msg tgbotapi.Chattable) error {
	err := c.do(ctx, op, func() error {
		_, err := c.api.Send(msg)
		return err
	})
	if isNotModified(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("telegram %s to chat %d: %w", op, chatID, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, op string, cfg tgbotapi.Chattable) error {
	err := c.do(ctx, op, func() error {
		_, err := c.api.Request(cfg)
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram %s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return fn()
		},
		retry.Context(ctx),
		retry.RetryIf(isTooManyRequests),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				return time.Duration(apiErr.RetryAfter) * time.Second
			}
			return retry.BackOffDelay(n, err, config)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Telegram rate limited, will retry",
				log.FieldOperation, op,
				log.FieldAttempt, n+1,
				log.FieldError, err)
		}),
		retry.LastErrorOnly(true),
	)
}

func isTooManyRequests(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.RetryAfter > 0)
}

// Telegram rejects edits that would leave a message unchanged, which
// happens when a calendar page is re-rendered as is.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// Markup renders kb as an inline keyboard.
func Markup(kb bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
