// Package http serves the Telegram webhook and the liveness endpoints.
package http

import (
	"context"
	"net/http"
	"time"

	"cashbot/internal/bot"
	"cashbot/internal/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// Defaults for Options fields left at zero.
const (
	DefaultWebhookPath   = "/webhook"
	DefaultWebhookPerSec = 50
	enqueueTimeout       = 5 * time.Second
)

type Options struct {
	// WebhookPath is the route Telegram posts updates to. Empty disables it.
	WebhookPath string
	// Updates receives every decoded webhook update.
	Updates chan<- tgbotapi.Update
	// Ready reports whether the bot can take traffic. Nil means always.
	Ready           func(context.Context) error
	WebhookRatePerS int
	Logger          *log.Logger
}

// New builds the echo router.
func New(opts Options) *echo.Echo {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.WebhookRatePerS <= 0 {
		opts.WebhookRatePerS = DefaultWebhookPerSec
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(requestLogger(logger))

	h := &handlers{updates: opts.Updates, ready: opts.Ready, logger: logger}
	e.GET("/", h.alive)
	e.GET("/healthz", h.healthz)
	e.GET("/readyz", h.readyz)

	if opts.WebhookPath != "" && opts.Updates != nil {
		e.POST(opts.WebhookPath, h.webhook, webhookRateLimiter(opts.WebhookRatePerS))
	}
	return e
}

// NewHTTPServer wraps handler with the server timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type handlers struct {
	updates chan<- tgbotapi.Update
	ready   func(context.Context) error
	logger  *log.Logger
}

func (h *handlers) alive(c echo.Context) error {
	return c.String(http.StatusOK, bot.MsgHealth)
}

func (h *handlers) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(c echo.Context) error {
	if h.ready != nil {
		if err := h.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// webhook queues the update and acknowledges it. Telegram redelivers
// anything that is not answered with 2xx.
func (h *handlers) webhook(c echo.Context) error {
	var u tgbotapi.Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), enqueueTimeout)
	defer cancel()
	select {
	case h.updates <- u:
		return c.NoContent(http.StatusOK)
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "Update queue full, asking Telegram to redeliver", log.FieldUpdateID, u.UpdateID)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "busy")
	}
}

func webhookRateLimiter(perSecond int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     perSecond * 2,
		ExpiresIn: time.Minute,
	})
	return middleware.RateLimiter(store)
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				log.FieldMethod, v.Method,
				log.FieldPath, v.URI,
				log.FieldStatusCode, v.Status,
				"remote_ip", v.RemoteIP,
				log.FieldDuration, v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				args = append(args, log.FieldError, v.Error.Error())
			}
			ctx := c.Request().Context()
			if v.Status >= http.StatusInternalServerError {
				logger.ErrorContext(ctx, "request completed", args...)
				return nil
			}
			logger.DebugContext(ctx, "request completed", args...)
			return nil
		},
	})
}
