package engine

import (
    "math"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

// Percent is the dashboard rounding rule: round(100*num/den), with a zero
// denominator reading as zero percent, never NaN.
func Percent(num, den int) float64 {
    if den == 0 { return 0 }
    return math.Round(100 * float64(num) / float64(den))
}

// Aggregate resolves every in-scope test case at cutoff and buckets the
// results. Skipped is counted in the not-executed bucket. When withCoverage
// is set the snapshot also carries requirement linkage stats; trend entries
// skip that work and leave Coverage nil.
func Aggregate(scope Scope, cutoff time.Time, events map[string][]domain.StatusEvent, tcs []domain.TestCase, reqs []domain.Requirement, withCoverage bool) domain.AggregateSnapshot {
    snap := domain.AggregateSnapshot{Cutoff: cutoff}
    resolved := map[string]domain.Result{}
    for _, tc := range tcs {
        if !scope.ContainsTestCase(tc.ID) { continue }
        rs := Resolve(tc.ID, events[tc.ID], cutoff)
        resolved[tc.ID] = rs.Result
        snap.Total++
        switch rs.Result {
        case domain.ResultPassed:
            snap.Passed++
        case domain.ResultFailed:
            snap.Failed++
        case domain.ResultBlocked:
            snap.Blocked++
        default:
            snap.NotExecuted++
        }
    }
    if withCoverage {
        cov := coverageStats(scope, resolved, tcs, reqs)
        snap.Coverage = &cov
    }
    return snap
}

// coverageStats walks the requirement links of the already-resolved scope.
// Covered needs one linked in-scope test case. Fully tested needs at least
// one linked test case and every linked test case passing; one unexecuted
// test case among nine passing ones disqualifies the requirement.
func coverageStats(scope Scope, resolved map[string]domain.Result, tcs []domain.TestCase, reqs []domain.Requirement) domain.CoverageStats {
    var cs domain.CoverageStats
    scoped := map[string]struct{}{}
    for _, rq := range reqs {
        if !scope.ContainsRequirement(rq.ID) { continue }
        scoped[rq.ID] = struct{}{}
    }
    cs.RequirementsTotal = len(scoped)

    linked := map[string][]string{}
    for _, tc := range tcs {
        res, inScope := resolved[tc.ID]
        if !inScope { continue }
        hasLink := false
        for _, qid := range tc.RequirementIDs {
            if _, ok := scoped[qid]; !ok { continue }
            hasLink = true
            linked[qid] = append(linked[qid], tc.ID)
        }
        if hasLink { cs.TestCasesLinked++ }
        if res == domain.ResultPassed || res == domain.ResultFailed || res == domain.ResultBlocked { cs.TestCasesExecuted++ }
    }

    for qid := range scoped {
        ids := linked[qid]
        if len(ids) == 0 { continue }
        cs.RequirementsWithTests++
        all := true
        for _, id := range ids {
            if resolved[id] != domain.ResultPassed { all = false; break }
        }
        if all { cs.RequirementsFullyTested++ }
    }
    return cs
}

// Coverage summarizes requirement coverage for a scope: a requirement counts
// as covered when at least one in-scope test case lists it.
func Coverage(scope Scope, tcs []domain.TestCase, reqs []domain.Requirement) domain.CoverageSummary {
    scoped := map[string]struct{}{}
    for _, rq := range reqs {
        if !scope.ContainsRequirement(rq.ID) { continue }
        scoped[rq.ID] = struct{}{}
    }
    covered := map[string]struct{}{}
    for _, tc := range tcs {
        if !scope.ContainsTestCase(tc.ID) { continue }
        for _, qid := range tc.RequirementIDs {
            if _, ok := scoped[qid]; ok { covered[qid] = struct{}{} }
        }
    }
    total := len(scoped)
    n := len(covered)
    return domain.CoverageSummary{
        Covered:    n,
        NotCovered: total - n,
        Total:      total,
        Percentage: Percent(n, total),
    }
}
