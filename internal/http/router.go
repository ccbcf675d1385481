/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "strconv"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/metrics"
    "github.com/gin-gonic/gin"
    "github.com/google/uuid"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        rid := c.GetHeader("X-Request-ID")
        if rid == "" { rid = uuid.NewString() }
        c.Writer.Header().Set("X-Request-ID", rid)
        c.Next()
        route := c.FullPath()
        if route == "" { route = "unmatched" }
        metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
        log.Info().Str("rid", rid).Str("m", c.Request.Method).Str("p", route).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)
    r.GET("/metrics", gin.WrapH(promhttp.Handler()))

    r.GET("/api/testcases/:id/status", h.TestCaseStatus)
    r.GET("/api/dashboard/snapshot", h.DashboardSnapshot)
    r.GET("/api/dashboard/trend", h.DashboardTrend)
    r.GET("/api/dashboard/coverage", h.DashboardCoverage)
    r.GET("/api/dashboard/history", h.DashboardHistory)

    r.POST("/admin/sync", h.SyncNow)
    r.GET("/admin/last-sync", h.LastSync)

    return r
}
