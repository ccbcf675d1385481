package engine

import (
    "strings"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

// sourceRank orders sources when two events claim the exact same instant:
// machine-recorded beats hand-entered. An automated run timestamp comes from
// the runner clock while manual execution dates are typed in, often at day
// granularity, so the automated claim is the more precise one.
func sourceRank(s domain.Source) int {
    if s == domain.SourceAutomated { return 1 }
    return 0
}

// CompareEvents is the one total order over status events; every call site
// that picks a winner goes through it. Returns >0 when a outranks b.
// Keys, most significant first: effective time (later wins), source rank,
// tiebreak time (later wins), record id. The record id guard means equal
// inputs resolve identically regardless of input order.
func CompareEvents(a, b domain.StatusEvent) int {
    if !a.EffectiveTime.Equal(b.EffectiveTime) {
        if a.EffectiveTime.After(b.EffectiveTime) { return 1 }
        return -1
    }
    ra, rb := sourceRank(a.Source), sourceRank(b.Source)
    if ra != rb {
        if ra > rb { return 1 }
        return -1
    }
    if !a.TiebreakTime.Equal(b.TiebreakTime) {
        if a.TiebreakTime.After(b.TiebreakTime) { return 1 }
        return -1
    }
    return strings.Compare(a.RecordID, b.RecordID)
}

// Resolve reconstructs the status of one test case at cutoff. Events with a
// later effective time are invisible; no visible events means NotExecuted
// from source none. Skipped survives here as skipped, only the aggregate
// buckets fold it into not-executed. Never errors.
func Resolve(testCaseID string, events []domain.StatusEvent, cutoff time.Time) domain.ResolvedStatus {
    best := -1
    for i := range events {
        if events[i].EffectiveTime.After(cutoff) { continue }
        if best < 0 || CompareEvents(events[i], events[best]) > 0 { best = i }
    }
    rs := domain.ResolvedStatus{
        TestCaseID: testCaseID,
        Result:     domain.ResultNotExecuted,
        Source:     domain.SourceNone,
        AsOf:       cutoff,
    }
    if best >= 0 {
        rs.Result = events[best].Result
        rs.Source = events[best].Source
        t := events[best].EffectiveTime
        rs.LastExecutedAt = &t
    }
    return rs
}
