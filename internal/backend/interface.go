package backend

import (
	"context"
	"time"

	"cashrecon/internal/amqp"
	"cashrecon/internal/cache"
	"cashrecon/internal/lock"
	"cashrecon/internal/period"
	"cashrecon/internal/sources"
)

// CleanupFunc releases the resources of a backend
type CleanupFunc func() error

// Result bundles everything the services need from the outside world
type Result struct {
	Repository sources.Repository
	// Expenses is the general expense source: the repository, optionally
	// merged with a spreadsheet.
	Expenses sources.ExpenseLister
	Cache    cache.Cache[period.Result]
	Locker   lock.Locker
	// Publisher is nil when no broker is configured or reachable.
	Publisher *amqp.Client
	// Ready probes the backing services for readiness checks.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	SQLiteDBPath string
	DatabaseURL  string
	// Memory backend seed directory
	DataDirectory string

	ExpenseSource            string
	GoogleSpreadsheetID      string
	GoogleExpensesSheetName  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	CacheTTL  time.Duration
	CacheSize int
}

// Type represents the kind of data backend
type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

// Expense sources
const (
	ExpensesFromStore  = "store"
	ExpensesFromSheets = "sheets"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
