// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// reconnectDelay is how long WatchReload waits before re-acquiring a
// listening connection after the current one drops.
const reconnectDelay = 5 * time.Second

// WatchReload LISTENs on channel and rebuilds the schema cache on every
// NOTIFY, swapping it into cache atomically. It runs until ctx is
// cancelled, reconnecting after a delay if the listening connection drops
// (the pool it borrows from may itself be recycling connections).
//
// This mirrors the `PGRST_DB_CHANNEL`/`PGRST_DB_CHANNEL_ENABLED` reload
// protocol: any external migration or schema change emits a `NOTIFY` on
// this channel and every replica picks up the new shape without a restart.
func WatchReload(ctx context.Context, pool *pgxpool.Pool, channel string, schemas []string, cache *Cache, log *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := listenOnce(ctx, pool, channel, schemas, cache, log); err != nil {
			log.Error("schema_cache_listen_failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, channel string, schemas []string, cache *Cache, log *slog.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+quoteChannel(channel)); err != nil {
		return err
	}
	log.Info("schema_cache_listening", slog.String("channel", channel))

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			return err
		}
		next, err := Load(ctx, pool, schemas)
		if err != nil {
			log.Error("schema_cache_reload_failed", slog.Any("error", err))
			continue
		}
		cache.Swap(next)
		log.Info("schema_cache_reloaded", slog.Int("tables", len(next.tables)))
	}
}

func quoteChannel(channel string) string {
	return `"` + channel + `"`
}
