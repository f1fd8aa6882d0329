package repository

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store is the configured job store with its underlying connection.
type Store struct {
	Jobs JobRepository

	sql   *DB
	mongo *mongo.Client
	log   *slog.Logger
}

// OpenStore connects to the configured backend and brings its schema up to date.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver == "mongo" {
		return openMongoStore(ctx, cfg, logger)
	}

	db, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, logger); err != nil {
		Close(db, logger)
		return nil, err
	}
	return &Store{Jobs: NewSQLJobRepository(db.Driver, logger), sql: db, log: logger}, nil
}

func openMongoStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("connecting to database", "driver", "mongo", "database", cfg.MongoDatabase)
	opts := options.Client().ApplyURI(cfg.DSN).SetAppName("jobcopilot")
	if cfg.MaxConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.MinConns))
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}
	if cfg.DialTimeout > 0 {
		opts.SetConnectTimeout(cfg.DialTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	db := client.Database(cfg.MongoDatabase)
	if err := EnsureMongoIndexes(ctx, db, logger); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("successfully connected to database")
	return &Store{Jobs: NewMongoJobRepository(db, logger), mongo: client, log: logger}, nil
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if s.sql != nil {
		return HealthCheck(ctx, s.sql, timeout, s.log)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) {
	if s.sql != nil {
		Close(s.sql, s.log)
	}
	if s.mongo != nil {
		s.log.Info("closing database connections")
		if err := s.mongo.Disconnect(ctx); err != nil {
			s.log.Error("failed to disconnect mongo", "error", err)
		}
	}
}
