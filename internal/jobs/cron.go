package jobs

import (
    "context"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/metrics"
    "github.com/HamedShams/test-pulse/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type service interface {
    SyncNow(ctx context.Context) (repo.SyncCounts, error)
    SnapshotDaily(ctx context.Context) error
}

// advisory lock keys; one per job so replicas never double-run either
const (
    syncLockKey     int64 = 424261
    snapshotLockKey int64 = 424262
)

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.SyncCron, cr.sync)
    _, _ = c.AddFunc(cfg.SnapshotCron, cr.snapshot)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute); defer cancel()
    ok, err := cr.repo.TryAdvisoryLock(ctx, syncLockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: sync lock error"); return }
    if !ok {
        cr.log.Info().Msg("cron: sync already running elsewhere")
        metrics.JobRuns.WithLabelValues("sync", "skipped").Inc()
        return
    }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), syncLockKey) }()
    cr.log.Info().Msg("cron: sync")
    if _, err := cr.svc.SyncNow(ctx); err != nil {
        cr.log.Error().Err(err).Msg("cron: sync failed")
        metrics.JobRuns.WithLabelValues("sync", "error").Inc()
        return
    }
    metrics.JobRuns.WithLabelValues("sync", "ok").Inc()
}

func (cr *Cron) snapshot() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute); defer cancel()
    ok, err := cr.repo.TryAdvisoryLock(ctx, snapshotLockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: snapshot lock error"); return }
    if !ok {
        cr.log.Info().Msg("cron: snapshot already running elsewhere")
        metrics.JobRuns.WithLabelValues("snapshot", "skipped").Inc()
        return
    }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), snapshotLockKey) }()
    cr.log.Info().Msg("cron: daily snapshot")
    if err := cr.svc.SnapshotDaily(ctx); err != nil {
        cr.log.Error().Err(err).Msg("cron: snapshot failed")
        metrics.JobRuns.WithLabelValues("snapshot", "error").Inc()
        return
    }
    metrics.JobRuns.WithLabelValues("snapshot", "ok").Inc()
}
