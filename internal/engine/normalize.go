package engine

import (
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

// NormalizeStats counts what the normalizer skipped or repaired, so callers
// can surface diagnostics without the normalizer doing any I/O itself.
type NormalizeStats struct {
    Events        int
    Malformed     int
    DateFallbacks int
    NeverRun      int
}

// Normalize flattens the execution log and the automation directory into one
// stream of status events per test case. Output order is unspecified; sorting
// belongs to resolution. Pure function.
//
// Execution rows typed automated are kept as automated-source events: the
// runner appends a log row alongside updating the automation's last-run
// fields, and a duplicate claim with the same result and instant cannot
// change a max-based resolution.
func Normalize(execs []domain.Execution, autos []domain.Automation) (map[string][]domain.StatusEvent, NormalizeStats) {
    out := map[string][]domain.StatusEvent{}
    var st NormalizeStats

    for _, e := range execs {
        if e.TestCaseID == "" { st.Malformed++; continue }
        res, ok := domain.ParseResult(e.Result)
        if !ok { st.Malformed++; continue }
        var eff time.Time
        if e.ExecutionDate != nil { eff = *e.ExecutionDate }
        if eff.IsZero() {
            // no execution date recorded: the row creation time still anchors
            // the claim; only a row with no usable timestamp at all is dropped
            if e.CreatedAt.IsZero() { st.Malformed++; continue }
            eff = e.CreatedAt
            st.DateFallbacks++
        }
        src := domain.SourceManual
        if e.Type == domain.SourceAutomated { src = domain.SourceAutomated }
        out[e.TestCaseID] = append(out[e.TestCaseID], domain.StatusEvent{
            TestCaseID:    e.TestCaseID,
            Source:        src,
            Result:        res,
            EffectiveTime: eff,
            TiebreakTime:  e.CreatedAt,
            RecordID:      e.ID,
        })
        st.Events++
    }

    for _, a := range autos {
        if a.TestCaseID == "" { st.Malformed++; continue }
        if a.LastRunAt == nil || a.LastRunAt.IsZero() || a.LastRunResult == "" {
            // automation exists but has never completed a run
            st.NeverRun++
            continue
        }
        res, ok := domain.ParseRunResult(a.LastRunResult)
        if !ok { st.Malformed++; continue }
        out[a.TestCaseID] = append(out[a.TestCaseID], domain.StatusEvent{
            TestCaseID:    a.TestCaseID,
            Source:        domain.SourceAutomated,
            Result:        res,
            EffectiveTime: *a.LastRunAt,
            TiebreakTime:  a.UpdatedAt,
            RecordID:      a.ID,
        })
        st.Events++
    }

    return out, st
}
