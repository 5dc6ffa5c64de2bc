package backend

import (
	"context"
	"errors"
	"fmt"

	"cashbot/internal/amqp"
	"cashbot/internal/cache"
	"cashbot/internal/log"
	"cashbot/internal/services"
	"cashbot/internal/sheets"
	gsheet "cashbot/internal/sheets/google"
	"cashbot/internal/sheets/memory"
	"cashbot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// dialAMQP is replaced in tests.
	dialAMQP func(url, exchange, queue string, logger *log.Logger) (services.Publisher, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		dialAMQP: func(url, exchange, queue string, logger *log.Logger) (services.Publisher, error) {
			return amqp.NewClient(url, exchange, queue, logger)
		},
	}
}

// CreateBackend builds the configured ledger. When AMQP is configured
// the ledger is wrapped by services.ExpenseService; a broker that cannot
// be reached leaves events off rather than failing startup.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		result, err = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL == "" {
		return result, nil
	}
	publisher, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return result, nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	svc := services.NewExpenseService(result.Ledger, publisher, f.logger)
	inner := result.Cleanup
	result.Ledger = svc
	result.Cleanup = func() error {
		var errs []error
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
		if inner != nil {
			if err := inner(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Ledger:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := gsheet.LoadCredentials(config.GoogleCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}
	cli, err := gsheet.NewFromCredentials(ctx, creds, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		WritesPerMinute: config.SheetsWritesPerMinute,
		Logger:          f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Ledger: cli,
		Caches: map[string]cache.Cleaner{"sheets_tabs": cli.KnownTabs()},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	var ledger sheets.Ledger = memory.New()
	return &BackendResult{Ledger: ledger}, nil
}
