/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/domain"
    "github.com/HamedShams/test-pulse/internal/engine"
    "github.com/HamedShams/test-pulse/internal/repo"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type service interface {
    Status(ctx context.Context, testCaseID string, at time.Time) (domain.ResolvedStatus, error)
    Snapshot(ctx context.Context, releaseIDs []string, at time.Time) (domain.AggregateSnapshot, error)
    Trend(ctx context.Context, releaseIDs []string, windowDays int) ([]domain.AggregateSnapshot, error)
    Coverage(ctx context.Context, releaseIDs []string) (domain.CoverageSummary, error)
    History(ctx context.Context, scope string, days int) ([]repo.DailyMetrics, error)
    SyncNow(ctx context.Context) (repo.SyncCounts, error)
    LastSync(ctx context.Context) (*repo.LastSync, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func parseReleases(c *gin.Context) []string {
    raw := c.Query("releases")
    if raw == "" { return nil }
    parts := strings.Split(raw, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

func parseAt(c *gin.Context) (time.Time, bool) {
    raw := c.Query("at")
    if raw == "" { return time.Time{}, true }
    t, err := time.Parse(time.RFC3339, raw)
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "at must be RFC3339"})
        return time.Time{}, false
    }
    return t, true
}

func (h *Handlers) fail(c *gin.Context, err error) {
    if errors.Is(err, engine.ErrInvalidCutoff) || errors.Is(err, engine.ErrInvalidWindow) {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    h.log.Error().Err(err).Str("p", c.FullPath()).Msg("handler failed")
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handlers) TestCaseStatus(c *gin.Context) {
    at, ok := parseAt(c)
    if !ok { return }
    st, err := h.svc.Status(c.Request.Context(), c.Param("id"), at)
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, st)
}

func (h *Handlers) DashboardSnapshot(c *gin.Context) {
    at, ok := parseAt(c)
    if !ok { return }
    snap, err := h.svc.Snapshot(c.Request.Context(), parseReleases(c), at)
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, snap)
}

func (h *Handlers) DashboardTrend(c *gin.Context) {
    window := 7
    if raw := c.Query("window"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil {
            c.JSON(http.StatusBadRequest, gin.H{"error": "window must be an integer"})
            return
        }
        window = n
    }
    snaps, err := h.svc.Trend(c.Request.Context(), parseReleases(c), window)
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, gin.H{"window_days": window, "points": snaps})
}

func (h *Handlers) DashboardCoverage(c *gin.Context) {
    cov, err := h.svc.Coverage(c.Request.Context(), parseReleases(c))
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, cov)
}

func (h *Handlers) DashboardHistory(c *gin.Context) {
    days := 30
    if raw := c.Query("days"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n <= 0 {
            c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
            return
        }
        days = n
    }
    points, err := h.svc.History(c.Request.Context(), c.Query("scope"), days)
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, gin.H{"days": days, "points": points})
}

func (h *Handlers) SyncNow(c *gin.Context) {
    // Run detached from the HTTP request so a client timeout cannot cancel the pull
    go func() { _, _ = h.svc.SyncNow(context.Background()) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) LastSync(c *gin.Context) {
    ls, err := h.svc.LastSync(c.Request.Context())
    if errors.Is(err, repo.ErrNotFound) {
        c.JSON(http.StatusNotFound, gin.H{"error": "no sync has run yet"})
        return
    }
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, ls)
}
