// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Bot delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Ledger backends.
const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// WebhookPath is appended to WEBHOOK_URL when registering the webhook.
const WebhookPath = "/webhook"

type Config struct {
	// Telegram
	TelegramToken string `koanf:"TELEGRAM_TOKEN" validate:"required"`
	LegacyToken   string `koanf:"TOKEN"`
	BotMode       string `koanf:"BOT_MODE" validate:"oneof=polling webhook"`
	WebhookURL    string `koanf:"WEBHOOK_URL" validate:"required_if=BotMode webhook"`

	// HTTP Server
	Port string `koanf:"PORT"`

	// Backend selection
	DataBackend string `koanf:"DATA_BACKEND" validate:"oneof=memory sheets sqlite"`

	// Database
	SQLiteDBPath  string `koanf:"SQLITE_DB_PATH" validate:"required_if=DataBackend sqlite"`
	ArchiveDBPath string `koanf:"ARCHIVE_DB_PATH" validate:"required"`

	// AMQP
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE" validate:"required_with=AMQPURL"`
	AMQPQueue    string `koanf:"AMQP_QUEUE" validate:"required_with=AMQPURL"`

	// Google Sheets
	GoogleSpreadsheetID      string `koanf:"GOOGLE_SPREADSHEET_ID" validate:"required_if=DataBackend sheets"`
	LegacySpreadsheetID      string `koanf:"SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `koanf:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleOAuthClientFile    string `koanf:"GOOGLE_OAUTH_CLIENT_FILE"`
	GoogleOAuthClientJSON    string `koanf:"GOOGLE_OAUTH_CLIENT_JSON"`
	GoogleOAuthTokenFile     string `koanf:"GOOGLE_OAUTH_TOKEN_FILE"`
	GoogleOAuthTokenJSON     string `koanf:"GOOGLE_OAUTH_TOKEN_JSON"`
	SheetsWritesPerMinute    int    `koanf:"SHEETS_WRITES_PER_MINUTE" validate:"min=1,max=300"`

	// Conversation
	SessionTTL      time.Duration `koanf:"SESSION_TTL"`
	SessionCapacity int           `koanf:"SESSION_CAPACITY" validate:"min=1"`
	DispatchWorkers int           `koanf:"DISPATCH_WORKERS" validate:"min=1,max=256"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFormat string `koanf:"LOG_FORMAT" validate:"oneof=text json"`
}

// Default returns the configuration used for unset variables.
func Default() Config {
	return Config{
		Port:                  "8080",
		DataBackend:           BackendMemory,
		SQLiteDBPath:          "./data/cashbot.db",
		ArchiveDBPath:         "./data/archive.db",
		AMQPExchange:          "cashbot",
		AMQPQueue:             "expense_recorded",
		SheetsWritesPerMinute: 60,
		SessionTTL:            30 * time.Minute,
		SessionCapacity:       10000,
		DispatchWorkers:       8,
		LogLevel:              "INFO",
		LogFormat:             "text",
	}
}

// Load overlays the environment onto Default. Empty variables count as unset.
func Load() (*Config, error) {
	k := koanf.New(".")
	provider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyFallbacks()
	return &cfg, nil
}

// applyFallbacks honours the variable names of older deployments and
// derives the bot mode when it is not set.
func (c *Config) applyFallbacks() {
	if c.TelegramToken == "" {
		c.TelegramToken = c.LegacyToken
	}
	if c.GoogleSpreadsheetID == "" {
		c.GoogleSpreadsheetID = c.LegacySpreadsheetID
	}
	if c.BotMode == "" {
		c.BotMode = ModePolling
		if c.WebhookURL != "" {
			c.BotMode = ModeWebhook
		}
	}
	c.BotMode = strings.ToLower(c.BotMode)
	c.DataBackend = strings.ToLower(c.DataBackend)
	c.WebhookURL = strings.TrimRight(c.WebhookURL, "/")
}

// WebhookEndpoint is the URL Telegram posts updates to.
func (c *Config) WebhookEndpoint() string {
	return c.WebhookURL + WebhookPath
}

// EventsEnabled reports whether expense events are published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("koanf"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.BotMode == ModeWebhook && c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid WEBHOOK_URL '%s': must be an absolute URL", c.WebhookURL))
		} else if u.Scheme != "https" {
			errs = append(errs, fmt.Sprintf("invalid WEBHOOK_URL scheme '%s': Telegram requires https", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}

	if c.DataBackend == BackendSheets {
		errs = append(errs, c.validateSheetsCredentials()...)
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at most 24 hours", c.SessionTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateWorker checks only what the archive worker needs: a broker to
// consume from and an archive database.
func (c *Config) ValidateWorker() error {
	var errs []string
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required")
	}
	if err := validate.StructPartial(c, "AMQPURL", "AMQPExchange", "AMQPQueue", "ArchiveDBPath", "LogLevel", "LogFormat"); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': must be 'amqp' or 'amqps'", c.AMQPURL))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func (c *Config) validateSheetsCredentials() []string {
	var errs []string

	hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
	hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
	hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""

	switch {
	case hasServiceAccount:
	case !hasClient:
		errs = append(errs, "either a service account (GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE) or GOOGLE_OAUTH_CLIENT_FILE/GOOGLE_OAUTH_CLIENT_JSON must be provided for sheets backend")
	case !hasToken:
		errs = append(errs, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for sheets backend")
	}

	files := []struct{ name, path string }{
		{"Google service account file", c.GoogleServiceAccountFile},
		{"Google OAuth client file", c.GoogleOAuthClientFile},
		{"Google OAuth token file", c.GoogleOAuthTokenFile},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("%s does not exist: %s", f.name, f.path))
		}
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("invalid %s '%v': must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("invalid %s %v: %s is %s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s: failed %s", fe.Field(), fe.Tag())
	}
}
