package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mo-sawah/sawah-register/internal/config"
	"github.com/mo-sawah/sawah-register/internal/db"
	"github.com/mo-sawah/sawah-register/internal/redis"
)

func openPostgres(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}

	conn, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.RunMigration(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}

	return &db.DB{DB: conn}, nil
}

func openRedis(cfg config.Config) (*redis.Client, error) {
	return redis.New(cfg.RedisAddr, cfg.RedisPassword)
}
