package engine

import (
    "sort"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

// DayCutoffs returns the window's end-of-day instants in loc, oldest first,
// ending with the day of now. Every cutoff is 23:59:59.999 in the one
// reference location; mixing zones across days would shift bucket edges mid
// chart.
func DayCutoffs(now time.Time, windowDays int, loc *time.Location) []time.Time {
    t := now.In(loc)
    y, m, d := t.Date()
    out := make([]time.Time, 0, windowDays)
    for i := windowDays - 1; i >= 0; i-- {
        out = append(out, time.Date(y, m, d-i, 23, 59, 59, 999000000, loc))
    }
    return out
}

// replayDays resolves one test case at each ascending cutoff. Events are
// sorted once under CompareEvents; the primary key is the effective time, so
// the events a cutoff admits always form a prefix and the winner is the last
// admitted one. Output matches per-day Resolve exactly.
func replayDays(events []domain.StatusEvent, cutoffs []time.Time) []domain.Result {
    sorted := make([]domain.StatusEvent, len(events))
    copy(sorted, events)
    sort.Slice(sorted, func(i, j int) bool { return CompareEvents(sorted[i], sorted[j]) < 0 })
    out := make([]domain.Result, len(cutoffs))
    idx, win := 0, -1
    for di, cut := range cutoffs {
        for idx < len(sorted) && !sorted[idx].EffectiveTime.After(cut) { win = idx; idx++ }
        if win < 0 {
            out[di] = domain.ResultNotExecuted
        } else {
            out[di] = sorted[win].Result
        }
    }
    return out
}

// BuildTrend produces one snapshot per calendar day over the window, oldest
// first, counts only (coverage belongs to the current snapshot). The per
// test-case replay fans out over a small worker pool; the merge is a
// commutative sum, so output does not depend on scheduling. An empty event
// set still yields exactly windowDays all-zero-count snapshots.
func BuildTrend(scope Scope, windowDays int, events map[string][]domain.StatusEvent, tcs []domain.TestCase, now time.Time, loc *time.Location, workers int) []domain.AggregateSnapshot {
    cutoffs := DayCutoffs(now, windowDays, loc)
    ids := make([]string, 0, len(tcs))
    for _, tc := range tcs {
        if scope.ContainsTestCase(tc.ID) { ids = append(ids, tc.ID) }
    }

    snaps := make([]domain.AggregateSnapshot, len(cutoffs))
    for i, cut := range cutoffs {
        snaps[i] = domain.AggregateSnapshot{Cutoff: cut, Total: len(ids)}
    }
    if len(ids) == 0 { return snaps }

    if workers <= 0 { workers = 4 }
    if workers > len(ids) { workers = len(ids) }
    jobs := make(chan string)
    results := make(chan []domain.Result)
    for w := 0; w < workers; w++ {
        go func() {
            for id := range jobs { results <- replayDays(events[id], cutoffs) }
        }()
    }
    go func() { for _, id := range ids { jobs <- id }; close(jobs) }()
    for i := 0; i < len(ids); i++ {
        perDay := <-results
        for di, res := range perDay {
            switch res {
            case domain.ResultPassed:
                snaps[di].Passed++
            case domain.ResultFailed:
                snaps[di].Failed++
            case domain.ResultBlocked:
                snaps[di].Blocked++
            default:
                snaps[di].NotExecuted++
            }
        }
    }
    return snaps
}
