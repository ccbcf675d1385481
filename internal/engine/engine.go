/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package engine

import (
    "context"
    "encoding/json"
    "errors"
    "strconv"
    "sync"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
    "github.com/HamedShams/test-pulse/internal/metrics"
    "github.com/rs/zerolog"
    "golang.org/x/sync/errgroup"
)

var (
    ErrInvalidCutoff = errors.New("cutoff precedes the unix epoch")
    ErrInvalidWindow = errors.New("window must be 7, 14 or 30 days")
)

var epoch = time.Unix(0, 0)

// Directory is the read-only view of the upstream platform the engine
// computes from. Both the Postgres mirror and the live REST services
// implement it.
type Directory interface {
    ListTestCases(ctx context.Context) ([]domain.TestCase, error)
    ListRequirements(ctx context.Context) ([]domain.Requirement, error)
    ListReleases(ctx context.Context) ([]domain.Release, error)
    ListExecutions(ctx context.Context) ([]domain.Execution, error)
    ListAutomations(ctx context.Context) ([]domain.Automation, error)
    ExecutionsByTestCase(ctx context.Context, testCaseID string) ([]domain.Execution, error)
    AutomationsByTestCase(ctx context.Context, testCaseID string) ([]domain.Automation, error)
}

// Cache stores computed trend payloads. Implementations must be safe for
// concurrent use; a nil cache on New means caching off.
type Cache interface {
    Get(ctx context.Context, key string) ([]byte, bool)
    Set(ctx context.Context, key string, val []byte, ttl time.Duration)
    Delete(ctx context.Context, keys ...string)
    Flush(ctx context.Context)
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string) ([]byte, bool)           { return nil, false }
func (nopCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {}
func (nopCache) Delete(ctx context.Context, keys ...string)                   {}
func (nopCache) Flush(ctx context.Context)                                    {}

// scopeEntry remembers which test cases a cached scope contained and which
// cache keys were written for it, so new events can drop exactly the
// affected entries.
type scopeEntry struct {
    all  bool
    ids  map[string]struct{}
    keys map[string]struct{}
}

// Engine reconstructs test-case status from execution and run events and
// aggregates coverage over release scopes. Stateless per request apart from
// the trend cache bookkeeping; safe for concurrent use.
type Engine struct {
    log     zerolog.Logger
    dir     Directory
    cache   Cache
    loc     *time.Location
    workers int
    ttl     time.Duration
    now     func() time.Time

    mu     sync.Mutex
    scopes map[string]*scopeEntry
}

func New(log zerolog.Logger, dir Directory, cache Cache, loc *time.Location, workers int, cacheTTL time.Duration) *Engine {
    if loc == nil { loc = time.UTC }
    if cache == nil { cache = nopCache{} }
    if cacheTTL <= 0 { cacheTTL = 15 * time.Minute }
    return &Engine{
        log:     log,
        dir:     dir,
        cache:   cache,
        loc:     loc,
        workers: workers,
        ttl:     cacheTTL,
        now:     time.Now,
        scopes:  map[string]*scopeEntry{},
    }
}

// Location is the reference zone all day cutoffs are computed in.
func (e *Engine) Location() *time.Location { return e.loc }

type inputs struct {
    tcs    []domain.TestCase
    reqs   []domain.Requirement
    rels   []domain.Release
    events map[string][]domain.StatusEvent
}

// fetch pulls all five collections concurrently, once per request, then
// normalizes. Nothing downstream of this touches the directory again.
func (e *Engine) fetch(ctx context.Context) (*inputs, error) {
    var in inputs
    var execs []domain.Execution
    var autos []domain.Automation
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { var err error; in.tcs, err = e.dir.ListTestCases(gctx); return err })
    g.Go(func() error { var err error; in.reqs, err = e.dir.ListRequirements(gctx); return err })
    g.Go(func() error { var err error; in.rels, err = e.dir.ListReleases(gctx); return err })
    g.Go(func() error { var err error; execs, err = e.dir.ListExecutions(gctx); return err })
    g.Go(func() error { var err error; autos, err = e.dir.ListAutomations(gctx); return err })
    if err := g.Wait(); err != nil { return nil, err }

    attachReleaseLinks(in.tcs, in.rels)
    ev, st := Normalize(execs, autos)
    e.recordStats(st)
    in.events = ev
    return &in, nil
}

// fetchCatalog pulls only the linkage entities, for queries that never look
// at events.
func (e *Engine) fetchCatalog(ctx context.Context) (*inputs, error) {
    var in inputs
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { var err error; in.tcs, err = e.dir.ListTestCases(gctx); return err })
    g.Go(func() error { var err error; in.reqs, err = e.dir.ListRequirements(gctx); return err })
    g.Go(func() error { var err error; in.rels, err = e.dir.ListReleases(gctx); return err })
    if err := g.Wait(); err != nil { return nil, err }
    attachReleaseLinks(in.tcs, in.rels)
    return &in, nil
}

// attachReleaseLinks folds the release-side test case links into each test
// case's ReleaseIDs, deduplicated. The upstream stores that link on the
// release only.
func attachReleaseLinks(tcs []domain.TestCase, rels []domain.Release) {
    byTC := map[string][]string{}
    for _, r := range rels {
        for _, id := range r.TestCaseIDs { byTC[id] = append(byTC[id], r.ID) }
    }
    for i := range tcs {
        extra := byTC[tcs[i].ID]
        if len(extra) == 0 { continue }
        seen := map[string]struct{}{}
        for _, id := range tcs[i].ReleaseIDs { seen[id] = struct{}{} }
        for _, id := range extra {
            if _, ok := seen[id]; ok { continue }
            seen[id] = struct{}{}
            tcs[i].ReleaseIDs = append(tcs[i].ReleaseIDs, id)
        }
    }
}

func (e *Engine) recordStats(st NormalizeStats) {
    if st.Malformed > 0 {
        metrics.MalformedEvents.Add(float64(st.Malformed))
        e.log.Warn().Int("count", st.Malformed).Msg("normalize: malformed records skipped")
    }
    if st.DateFallbacks > 0 {
        metrics.DateFallbacks.Add(float64(st.DateFallbacks))
        e.log.Debug().Int("count", st.DateFallbacks).Msg("normalize: execution_date missing, used created_at")
    }
}

// buildScope wraps BuildScope with the unknown-id diagnostics: a selection
// that matches nothing degrades to an empty scope, it does not fail, but it
// must be tellable apart from a legitimately empty dataset.
func (e *Engine) buildScope(selected []string, in *inputs) Scope {
    s := BuildScope(selected, in.tcs, in.reqs, in.rels)
    if len(s.UnknownReleaseIDs) > 0 {
        metrics.UnknownReleaseIDs.Add(float64(len(s.UnknownReleaseIDs)))
        e.log.Warn().Strs("release_ids", s.UnknownReleaseIDs).Msg("scope: selected release ids match no release")
    }
    return s
}

func (e *Engine) normalizeCutoff(at time.Time) (time.Time, error) {
    if at.IsZero() { return e.now(), nil }
    if at.Before(epoch) { return time.Time{}, ErrInvalidCutoff }
    return at, nil
}

// GetCurrentStatus resolves one test case, by default at now. An unknown id
// resolves to NotExecuted from source none rather than failing.
func (e *Engine) GetCurrentStatus(ctx context.Context, testCaseID string, at time.Time) (domain.ResolvedStatus, error) {
    cutoff, err := e.normalizeCutoff(at)
    if err != nil { return domain.ResolvedStatus{}, err }
    var execs []domain.Execution
    var autos []domain.Automation
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { var err error; execs, err = e.dir.ExecutionsByTestCase(gctx, testCaseID); return err })
    g.Go(func() error { var err error; autos, err = e.dir.AutomationsByTestCase(gctx, testCaseID); return err })
    if err := g.Wait(); err != nil { return domain.ResolvedStatus{}, err }
    ev, st := Normalize(execs, autos)
    e.recordStats(st)
    return Resolve(testCaseID, ev[testCaseID], cutoff), nil
}

// GetAggregateSnapshot computes the status distribution and coverage stats
// of the selected scope at cutoff (zero cutoff means now).
func (e *Engine) GetAggregateSnapshot(ctx context.Context, releaseIDs []string, cutoff time.Time) (domain.AggregateSnapshot, error) {
    cutoff, err := e.normalizeCutoff(cutoff)
    if err != nil { return domain.AggregateSnapshot{}, err }
    in, err := e.fetch(ctx)
    if err != nil { return domain.AggregateSnapshot{}, err }
    scope := e.buildScope(releaseIDs, in)
    return Aggregate(scope, cutoff, in.events, in.tcs, in.reqs, true), nil
}

// GetTrend replays the scope day by day, oldest first, windowDays entries.
// Results are cached per (scope signature, window, day bucket of now).
func (e *Engine) GetTrend(ctx context.Context, releaseIDs []string, windowDays int) ([]domain.AggregateSnapshot, error) {
    switch windowDays {
    case 7, 14, 30:
    default:
        return nil, ErrInvalidWindow
    }
    sig := Signature(releaseIDs)
    now := e.now()
    key := trendKey(sig, windowDays, now.In(e.loc))
    if b, ok := e.cache.Get(ctx, key); ok {
        var snaps []domain.AggregateSnapshot
        if err := json.Unmarshal(b, &snaps); err == nil {
            metrics.TrendCacheHits.Inc()
            return snaps, nil
        }
    }
    metrics.TrendCacheMisses.Inc()

    in, err := e.fetch(ctx)
    if err != nil { return nil, err }
    scope := e.buildScope(releaseIDs, in)
    snaps := BuildTrend(scope, windowDays, in.events, in.tcs, now, e.loc, e.workers)

    if b, err := json.Marshal(snaps); err == nil {
        e.cache.Set(ctx, key, b, e.ttl)
        e.remember(sig, key, scope)
    }
    return snaps, nil
}

// GetCoverage reports requirement coverage for the selected scope. Zero
// requirements in scope reads as zero percent, no error.
func (e *Engine) GetCoverage(ctx context.Context, releaseIDs []string) (domain.CoverageSummary, error) {
    in, err := e.fetchCatalog(ctx)
    if err != nil { return domain.CoverageSummary{}, err }
    scope := e.buildScope(releaseIDs, in)
    return Coverage(scope, in.tcs, in.reqs), nil
}

func trendKey(sig string, windowDays int, localNow time.Time) string {
    return "trend:" + sig + ":" + strconv.Itoa(windowDays) + ":" + localNow.Format("2006-01-02")
}

func (e *Engine) remember(sig, key string, scope Scope) {
    e.mu.Lock()
    defer e.mu.Unlock()
    ent := e.scopes[sig]
    if ent == nil {
        ent = &scopeEntry{all: scope.All, ids: map[string]struct{}{}, keys: map[string]struct{}{}}
        for id := range scope.TestCaseIDs { ent.ids[id] = struct{}{} }
        e.scopes[sig] = ent
    }
    ent.keys[key] = struct{}{}
}

// NotifyNewEvents drops cached trend entries for every scope containing one
// of the given test cases. Calling it with no ids (a bulk sync of unknown
// reach) flushes the whole cache.
func (e *Engine) NotifyNewEvents(ctx context.Context, testCaseIDs ...string) {
    if len(testCaseIDs) == 0 {
        e.mu.Lock()
        e.scopes = map[string]*scopeEntry{}
        e.mu.Unlock()
        e.cache.Flush(ctx)
        return
    }
    var drop []string
    e.mu.Lock()
    for sig, ent := range e.scopes {
        hit := ent.all
        if !hit {
            for _, id := range testCaseIDs {
                if _, ok := ent.ids[id]; ok { hit = true; break }
            }
        }
        if !hit { continue }
        for k := range ent.keys { drop = append(drop, k) }
        delete(e.scopes, sig)
    }
    e.mu.Unlock()
    if len(drop) > 0 { e.cache.Delete(ctx, drop...) }
}
