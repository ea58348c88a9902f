package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/db"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Config selects and locates the store.
type Config struct {
	Backend     Backend       `koanf:"backend"`
	SQLitePath  string        `koanf:"sqlite_path"`
	RedisURL    string        `koanf:"redis_url"`
	RedisTTL    time.Duration `koanf:"redis_ttl"`
	PostgresURL string        `koanf:"postgres_url"`
}

// DefaultConfig stores plans in a local SQLite file.
func DefaultConfig() Config {
	return Config{Backend: BackendSQLite, SQLitePath: "data/planner.db"}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want sqlite, redis, postgres or memory)", c.Backend)
	}
	return nil
}

// Store bundles the repositories of one backend.
type Store struct {
	Backend  Backend
	Plans    PlanRepo
	Feedback FeedbackRepo
	ping     func(context.Context) error
	close    func() error
}

// Ping checks the backend connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the configured backend. SQLite and PostgreSQL schemas are
// migrated on open.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendSQLite:
		database, err := db.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			Backend:  cfg.Backend,
			Plans:    NewSQLitePlanRepo(database),
			Feedback: NewSQLiteFeedbackRepo(database),
			ping:     database.PingContext,
			close:    database.Close,
		}, nil

	case BackendRedis:
		client, err := ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &Store{
			Backend:  cfg.Backend,
			Plans:    NewRedisPlanRepo(client, cfg.RedisTTL),
			Feedback: NewRedisFeedbackRepo(client),
			ping:     func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:    client.Close,
		}, nil

	case BackendPostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Backend:  cfg.Backend,
			Plans:    NewPostgresPlanRepo(pool),
			Feedback: NewPostgresFeedbackRepo(pool),
			ping:     pool.Ping,
			close:    func() error { pool.Close(); return nil },
		}, nil
	}

	mem := NewMemoryStore()
	return &Store{Backend: BackendMemory, Plans: mem.Plans(), Feedback: mem.Feedback()}, nil
}
