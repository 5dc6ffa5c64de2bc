// Package backend builds the ledger selected by DATA_BACKEND, optionally
// wrapped so every saved row is announced on AMQP.
package backend

import (
	"context"

	"cashbot/internal/cache"
	"cashbot/internal/sheets"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the ledger and what the caller must manage.
type BackendResult struct {
	Ledger  sheets.Ledger
	Cleanup CleanupFunc
	// Caches are registered with the process cache.Manager.
	Caches map[string]cache.Cleaner
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Expense events, any backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleCredentials     CredentialSources
	SheetsWritesPerMinute int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
