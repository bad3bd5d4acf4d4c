package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cashrecon/internal/amqp"
	"cashrecon/internal/cache"
	"cashrecon/internal/lock"
	"cashrecon/internal/log"
	"cashrecon/internal/period"
	"cashrecon/internal/sources/google"
	"cashrecon/internal/sources/memory"
	"cashrecon/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds the repository first, then the optional collaborators on
// top of it. Redis and AMQP are optional: when unreachable the backend runs
// with an in-process cache, no locking and no events.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	res := &Result{Ready: func(context.Context) error { return nil }}

	switch config.Type {
	case MemoryBackend:
		res.Repository = memory.NewFromFiles(config.DataDirectory)
		f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	case SQLiteBackend, PostgresBackend:
		repo, err := f.openRepository(config)
		if err != nil {
			return nil, err
		}
		res.Repository = repo
		res.Ready = repo.Ping
		cleanups = append(cleanups, repo.Close)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	res.Expenses = res.Repository
	if config.ExpenseSource == ExpensesFromSheets {
		sheet, err := google.New(ctx, google.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			ExpensesSheet:   config.GoogleExpensesSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
			Logger:          f.logger,
		})
		if err != nil {
			_ = cleanup()
			return nil, fmt.Errorf("failed to initialize Google Sheets expenses: %w", err)
		}
		res.Expenses = google.NewMergedExpenses(res.Repository, sheet)
	}

	rdb := f.connectRedis(ctx, config)
	if rdb != nil {
		res.Cache = cache.NewRedisCache[period.Result](rdb, "cashrecon", config.CacheTTL, f.logger)
		res.Locker = lock.NewRedisLocker(rdb, config.LockTTL, f.logger)
		cleanups = append(cleanups, rdb.Close)
	} else {
		lru := cache.NewLRUCache[period.Result](config.CacheSize, config.CacheTTL)
		manager := cache.NewManager(f.logger)
		manager.Register(lru)
		manager.StartCleanup(cleanupInterval(config.CacheTTL))
		cleanups = append(cleanups, func() error {
			manager.Stop()
			return nil
		})
		res.Cache = lru
		res.Locker = lock.Nop{}
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without report events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
			res.Publisher = client
			cleanups = append(cleanups, client.Close)
		}
	}

	res.Cleanup = cleanup
	return res, nil
}

func (f *DefaultFactory) openRepository(config Config) (*storage.Repository, error) {
	if config.Type == PostgresBackend {
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
		}
		f.logger.Info("Initialized postgres backend")
		return repo, nil
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) connectRedis(ctx context.Context, config Config) *redis.Client {
	if config.RedisAddress == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		f.logger.Warn("Redis unreachable, using in-process cache without day locks",
			"address", config.RedisAddress, log.FieldError, err)
		_ = rdb.Close()
		return nil
	}
	f.logger.Info("Connected to Redis", "address", config.RedisAddress, "db", config.RedisDB)
	return rdb
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return 10 * time.Minute
	}
	return ttl
}
