/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/HamedShams/test-pulse/internal/adapters/platform"
    "github.com/HamedShams/test-pulse/internal/cache"
    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/engine"
    apphttp "github.com/HamedShams/test-pulse/internal/http"
    "github.com/HamedShams/test-pulse/internal/jobs"
    "github.com/HamedShams/test-pulse/internal/logger"
    "github.com/HamedShams/test-pulse/internal/repo"
    "github.com/HamedShams/test-pulse/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    repository := repo.NewRepository(db, log)

    // Adapters
    plat := platform.NewClient(cfg, log)

    // The engine reads the mirror by default; SOURCE=platform points it at
    // the live services instead.
    var dir engine.Directory = repository
    if strings.EqualFold(cfg.Source, "platform") { dir = plat }

    // Trend cache
    var trendCache engine.Cache
    switch strings.ToLower(cfg.TrendCache) {
    case "redis":
        rc, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
        if err != nil {
            log.Error().Err(err).Msg("redis unavailable; falling back to in-memory cache")
            trendCache = cache.NewMemory()
        } else {
            trendCache = rc
            defer rc.Close()
        }
    case "off":
        trendCache = nil
    default:
        trendCache = cache.NewMemory()
    }

    eng := engine.New(log, dir, trendCache, cfg.Location(), cfg.WorkersTrend, cfg.TrendCacheTTL)

    // Services
    svc := services.New(cfg, log, repository, dir, plat, eng)

    // HTTP server (Gin)
    router := apphttp.NewRouter(cfg, log, svc)

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
