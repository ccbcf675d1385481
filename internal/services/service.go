/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/domain"
    "github.com/HamedShams/test-pulse/internal/engine"
    "github.com/HamedShams/test-pulse/internal/metrics"
    "github.com/HamedShams/test-pulse/internal/repo"
    "github.com/rs/zerolog"
)

// PlatformClient is the slice of the platform adapter the sync needs.
type PlatformClient interface {
    ListTestCases(ctx context.Context) ([]domain.TestCase, error)
    ListRequirements(ctx context.Context) ([]domain.Requirement, error)
    ListReleases(ctx context.Context) ([]domain.Release, error)
    ListExecutions(ctx context.Context) ([]domain.Execution, error)
    ListAutomations(ctx context.Context) ([]domain.Automation, error)
}

type Service struct {
    cfg    config.Config
    log    zerolog.Logger
    repo   *repo.Repository
    dir    engine.Directory
    plat   PlatformClient
    engine *engine.Engine
}

func New(cfg config.Config, log zerolog.Logger, r *repo.Repository, dir engine.Directory, plat PlatformClient, eng *engine.Engine) *Service {
    return &Service{cfg: cfg, log: log, repo: r, dir: dir, plat: plat, engine: eng}
}

// ---- dashboard queries ----

func (s *Service) Status(ctx context.Context, testCaseID string, at time.Time) (domain.ResolvedStatus, error) {
    return s.engine.GetCurrentStatus(ctx, testCaseID, at)
}

func (s *Service) Snapshot(ctx context.Context, releaseIDs []string, at time.Time) (domain.AggregateSnapshot, error) {
    return s.engine.GetAggregateSnapshot(ctx, releaseIDs, at)
}

func (s *Service) Trend(ctx context.Context, releaseIDs []string, windowDays int) ([]domain.AggregateSnapshot, error) {
    return s.engine.GetTrend(ctx, releaseIDs, windowDays)
}

func (s *Service) Coverage(ctx context.Context, releaseIDs []string) (domain.CoverageSummary, error) {
    return s.engine.GetCoverage(ctx, releaseIDs)
}

// History reads the persisted daily snapshots, oldest first. Unlike Trend
// this does not replay events; it returns what the snapshot job stored.
func (s *Service) History(ctx context.Context, scope string, days int) ([]repo.DailyMetrics, error) {
    if scope == "" { scope = "all" }
    if days <= 0 { days = 30 }
    loc := s.engine.Location()
    to := dayKey(time.Now(), loc)
    from := to.AddDate(0, 0, -(days - 1))
    return s.repo.ListDailyMetrics(ctx, scope, from, to)
}

func (s *Service) LastSync(ctx context.Context) (*repo.LastSync, error) {
    return s.repo.GetLastSync(ctx)
}

// ---- sync ----

// SyncNow pulls all five collections from the platform and upserts them into
// the mirror. Pulls run concurrently; the first failure is reported but the
// remaining collections still land.
func (s *Service) SyncNow(ctx context.Context) (repo.SyncCounts, error) {
    var counts repo.SyncCounts
    if s.plat == nil { return counts, errors.New("platform client not configured") }
    start := time.Now()
    runID, err := s.repo.StartSyncRun(ctx, "platform")
    if err != nil { s.log.Error().Err(err).Msg("sync: start run failed") }

    type pull struct {
        name string
        run  func(context.Context) (int, error)
    }
    pulls := []pull{
        {"testcases", func(ctx context.Context) (int, error) {
            items, err := s.plat.ListTestCases(ctx)
            if err != nil { return 0, err }
            return len(items), s.repo.UpsertTestCases(ctx, items)
        }},
        {"requirements", func(ctx context.Context) (int, error) {
            items, err := s.plat.ListRequirements(ctx)
            if err != nil { return 0, err }
            return len(items), s.repo.UpsertRequirements(ctx, items)
        }},
        {"releases", func(ctx context.Context) (int, error) {
            items, err := s.plat.ListReleases(ctx)
            if err != nil { return 0, err }
            return len(items), s.repo.UpsertReleases(ctx, items)
        }},
        {"executions", func(ctx context.Context) (int, error) {
            items, err := s.plat.ListExecutions(ctx)
            if err != nil { return 0, err }
            return len(items), s.repo.UpsertExecutions(ctx, items)
        }},
        {"automations", func(ctx context.Context) (int, error) {
            items, err := s.plat.ListAutomations(ctx)
            if err != nil { return 0, err }
            return len(items), s.repo.UpsertAutomations(ctx, items)
        }},
    }

    type res struct {
        name string
        n    int
        err  error
    }
    jobs := make(chan pull)
    results := make(chan res)
    workerCount := s.cfg.WorkersSync
    if workerCount <= 0 { workerCount = 6 }
    if workerCount > len(pulls) { workerCount = len(pulls) }
    for w := 0; w < workerCount; w++ {
        go func() {
            for p := range jobs {
                n, err := p.run(ctx)
                results <- res{name: p.name, n: n, err: err}
            }
        }()
    }
    go func() { for _, p := range pulls { jobs <- p }; close(jobs) }()

    var firstErr error
    for i := 0; i < len(pulls); i++ {
        r := <-results
        if r.err != nil {
            if firstErr == nil { firstErr = fmt.Errorf("%s: %w", r.name, r.err) }
            s.log.Error().Err(r.err).Str("collection", r.name).Msg("sync: pull failed")
            continue
        }
        metrics.SyncRecords.WithLabelValues(r.name).Add(float64(r.n))
        switch r.name {
        case "testcases":
            counts.TestCases = r.n
        case "requirements":
            counts.Requirements = r.n
        case "releases":
            counts.Releases = r.n
        case "executions":
            counts.Executions = r.n
        case "automations":
            counts.Automations = r.n
        }
    }

    success := firstErr == nil
    errStr := ""
    if firstErr != nil { errStr = firstErr.Error() }
    if runID > 0 {
        if err := s.repo.FinishSyncRun(ctx, runID, counts, success, errStr); err != nil {
            s.log.Error().Err(err).Msg("sync: finish run failed")
        }
    }
    // a bulk sync can touch any test case; drop every cached trend
    s.engine.NotifyNewEvents(ctx)
    s.log.Info().Dur("took", time.Since(start)).
        Int("testcases", counts.TestCases).Int("executions", counts.Executions).
        Bool("success", success).Msg("sync: done")
    return counts, firstErr
}

// ---- daily snapshot ----

// SnapshotDaily persists the end-of-day aggregate of the just-closed day,
// once for the whole directory and once per release. The history endpoint
// reads these rows back without replaying events.
func (s *Service) SnapshotDaily(ctx context.Context) error {
    loc := s.engine.Location()
    yesterday := time.Now().In(loc).AddDate(0, 0, -1)
    day := dayKey(yesterday, loc)
    y, m, d := yesterday.Date()
    cutoff := time.Date(y, m, d, 23, 59, 59, 999000000, loc)

    snap, err := s.engine.GetAggregateSnapshot(ctx, nil, cutoff)
    if err != nil { return err }
    if err := s.repo.UpsertDailyMetrics(ctx, day, "all", snapshotKPIs(snap)); err != nil { return err }

    rels, err := s.dir.ListReleases(ctx)
    if err != nil { return err }
    for _, rel := range rels {
        rsnap, err := s.engine.GetAggregateSnapshot(ctx, []string{rel.ID}, cutoff)
        if err != nil {
            s.log.Error().Err(err).Str("release", rel.ID).Msg("snapshot: aggregate failed")
            continue
        }
        if err := s.repo.UpsertDailyMetrics(ctx, day, rel.ID, snapshotKPIs(rsnap)); err != nil {
            s.log.Error().Err(err).Str("release", rel.ID).Msg("snapshot: persist failed")
        }
    }
    s.log.Info().Time("day", day).Int("releases", len(rels)).Msg("snapshot: done")
    return nil
}

// dayKey flattens a moment to its calendar day in the reference zone, stored
// as a bare date (UTC midnight) so the same day never splits across zones.
func dayKey(t time.Time, loc *time.Location) time.Time {
    y, m, d := t.In(loc).Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func snapshotKPIs(snap domain.AggregateSnapshot) map[string]float64 {
    kpis := map[string]float64{
        "passed":       float64(snap.Passed),
        "failed":       float64(snap.Failed),
        "blocked":      float64(snap.Blocked),
        "not_executed": float64(snap.NotExecuted),
        "total":        float64(snap.Total),
    }
    if snap.Coverage != nil {
        kpis["requirements_total"] = float64(snap.Coverage.RequirementsTotal)
        kpis["requirements_with_tests"] = float64(snap.Coverage.RequirementsWithTests)
        kpis["requirements_fully_tested"] = float64(snap.Coverage.RequirementsFullyTested)
        kpis["testcases_linked"] = float64(snap.Coverage.TestCasesLinked)
        kpis["testcases_executed"] = float64(snap.Coverage.TestCasesExecuted)
        kpis["coverage_percent"] = engine.Percent(snap.Coverage.RequirementsWithTests, snap.Coverage.RequirementsTotal)
    }
    return kpis
}
