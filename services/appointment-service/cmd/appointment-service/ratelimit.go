package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/httpx"
)

// rateLimit prefers Redis so every replica shares one budget, and falls back
// to a per-process window when REDIS_ADDR is unset or unreachable at boot.
func rateLimit(ctx context.Context, logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limit <= 0 {
		return nil
	}

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(limit, time.Minute).Middleware(httpx.ClientIP)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable; using in-process rate limiter", "addr", addr, "err", err)
		_ = rdb.Close()
		return httpx.NewRateLimiter(limit, time.Minute).Middleware(httpx.ClientIP)
	}
	go func() {
		<-ctx.Done()
		_ = rdb.Close()
	}()
	rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "appointments:rl")
	return rl.Middleware(logger, httpx.ClientIP, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
}
