/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "database/sql"
    "flag"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/logger"
    _ "github.com/jackc/pgx/v5/stdlib"
    "github.com/pressly/goose/v3"
)

func main() {
    command := flag.String("command", "up", "migrate command (up|status|down)")
    dir := flag.String("dir", "", "migrations directory (default MIGRATIONS_DIR)")
    timeout := flag.Duration("timeout", time.Minute, "command timeout")
    flag.Parse()

    cfg := config.Load()
    log := logger.New(cfg)
    if *dir == "" { *dir = cfg.MigrationsDir }

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()

    db, err := sql.Open("pgx", cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db open failed") }
    defer db.Close()
    if err := db.PingContext(ctx); err != nil { log.Fatal().Err(err).Msg("db ping failed") }

    if err := goose.SetDialect("postgres"); err != nil { log.Fatal().Err(err).Msg("goose dialect") }

    switch *command {
    case "up":
        err = goose.UpContext(ctx, db, *dir)
    case "status":
        err = goose.StatusContext(ctx, db, *dir)
    case "down":
        err = goose.DownContext(ctx, db, *dir)
    default:
        log.Fatal().Str("command", *command).Msg("unsupported command")
    }
    if err != nil { log.Fatal().Err(err).Str("command", *command).Msg("migration failed") }
    log.Info().Str("command", *command).Msg("migration done")
}
