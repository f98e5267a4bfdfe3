package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/culturalbot/eventbot/internal/cache"
	"github.com/culturalbot/eventbot/internal/config"
	"github.com/culturalbot/eventbot/internal/repo"
)

type store struct {
	db    *sql.DB
	repo  *repo.SQLContactRepo
	media cache.MediaCache
	rdb   *redis.Client
}

// openStore connects to the database, applies the schema and picks the
// media cache backend: Redis when configured, the database otherwise.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, dialect, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &store{
		db:   db,
		repo: repo.NewSQLContactRepo(db, dialect, cfg.Database.HistoryMax),
	}
	s.media = s.repo

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, caching media ids in the database", "addr", cfg.Redis.Address, "error", err)
			_ = rdb.Close()
		} else {
			s.rdb = rdb
			s.media = cache.NewRedisMediaCache(rdb)
		}
	}

	slog.Info("store ready", "driver", dialect, "redis", s.rdb != nil)
	return s, nil
}

func (s *store) Close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	_ = s.db.Close()
}
