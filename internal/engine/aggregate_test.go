package engine

import (
    "fmt"
    "testing"

    "github.com/HamedShams/test-pulse/internal/domain"
)

func TestPercent_RoundsAndSurvivesZeroDenominator(t *testing.T) {
    cases := []struct {
        num, den int
        want     float64
    }{
        {0, 0, 0},
        {1, 3, 33},
        {2, 3, 67},
        {1, 2, 50},
        {3, 3, 100},
    }
    for _, c := range cases {
        if got := Percent(c.num, c.den); got != c.want { t.Fatalf("Percent(%d,%d) = %v, want %v", c.num, c.den, got, c.want) }
    }
}

func TestAggregate_BucketsSkippedIntoNotExecuted(t *testing.T) {
    tcs := []domain.TestCase{{ID: "T1"}, {ID: "T2"}, {ID: "T3"}, {ID: "T4"}, {ID: "T5"}}
    events := map[string][]domain.StatusEvent{
        "T1": {manualEvent("e1", domain.ResultPassed, day(1), day(1))},
        "T2": {manualEvent("e2", domain.ResultFailed, day(1), day(1))},
        "T3": {manualEvent("e3", domain.ResultBlocked, day(1), day(1))},
        "T4": {manualEvent("e4", domain.ResultSkipped, day(1), day(1))},
        // T5 never executed
    }
    snap := Aggregate(Scope{All: true}, day(2), events, tcs, nil, false)
    if snap.Passed != 1 || snap.Failed != 1 || snap.Blocked != 1 { t.Fatalf("buckets = %+v", snap) }
    if snap.NotExecuted != 2 { t.Fatalf("not_executed = %d, want skipped plus never-executed = 2", snap.NotExecuted) }
    if snap.Total != 5 { t.Fatalf("total = %d, want 5", snap.Total) }
    if snap.Coverage != nil { t.Fatalf("coverage must stay nil when not requested") }
}

func TestAggregate_FullyTestedIsStrictAND(t *testing.T) {
    // N linked test cases, N-1 passing, one not executed: never fully tested
    for n := 1; n <= 4; n++ {
        var tcs []domain.TestCase
        events := map[string][]domain.StatusEvent{}
        for i := 0; i < n; i++ {
            id := fmt.Sprintf("T%d", i)
            tcs = append(tcs, domain.TestCase{ID: id, RequirementIDs: []string{"R1"}})
            if i < n-1 {
                events[id] = []domain.StatusEvent{manualEvent("e"+id, domain.ResultPassed, day(1), day(1))}
            }
        }
        reqs := []domain.Requirement{{ID: "R1"}}
        snap := Aggregate(Scope{All: true}, day(2), events, tcs, reqs, true)
        if snap.Coverage.RequirementsWithTests != 1 { t.Fatalf("n=%d: covered = %d, want 1", n, snap.Coverage.RequirementsWithTests) }
        if snap.Coverage.RequirementsFullyTested != 0 { t.Fatalf("n=%d: requirement with an unexecuted test case counted fully tested", n) }
    }
}

func TestAggregate_RequirementWithoutTestCasesIsNeitherCoveredNorFullyTested(t *testing.T) {
    reqs := []domain.Requirement{{ID: "R1"}}
    snap := Aggregate(Scope{All: true}, day(2), nil, nil, reqs, true)
    if snap.Coverage.RequirementsTotal != 1 { t.Fatalf("total = %d", snap.Coverage.RequirementsTotal) }
    if snap.Coverage.RequirementsWithTests != 0 || snap.Coverage.RequirementsFullyTested != 0 {
        t.Fatalf("zero-linked requirement leaked into coverage: %+v", snap.Coverage)
    }
}

func TestAggregate_FullyTestedDropsOutOnNewFailure(t *testing.T) {
    tcs := []domain.TestCase{
        {ID: "T1", RequirementIDs: []string{"R1"}},
        {ID: "T2", RequirementIDs: []string{"R1"}},
    }
    reqs := []domain.Requirement{{ID: "R1"}}
    events := map[string][]domain.StatusEvent{
        "T1": {manualEvent("e1", domain.ResultPassed, day(1), day(1))},
        "T2": {manualEvent("e2", domain.ResultPassed, day(1), day(1))},
    }
    before := Aggregate(Scope{All: true}, day(5), events, tcs, reqs, true)
    if before.Coverage.RequirementsFullyTested != 1 { t.Fatalf("both passing: fully tested = %d, want 1", before.Coverage.RequirementsFullyTested) }

    // one later failed execution on T2, nothing else changes
    events["T2"] = append(events["T2"], manualEvent("e3", domain.ResultFailed, day(3), day(3)))
    after := Aggregate(Scope{All: true}, day(5), events, tcs, reqs, true)
    if after.Coverage.RequirementsFullyTested != 0 { t.Fatalf("R1 must drop out after the failure") }
    if after.Coverage.RequirementsWithTests != 1 { t.Fatalf("coverage itself must not change: %+v", after.Coverage) }
}

func TestAggregate_LinkedAndExecutedCounts(t *testing.T) {
    tcs := []domain.TestCase{
        {ID: "T1", RequirementIDs: []string{"R1"}},
        {ID: "T2"}, // executed but linked to nothing
        {ID: "T3", RequirementIDs: []string{"R1"}},
    }
    reqs := []domain.Requirement{{ID: "R1"}}
    events := map[string][]domain.StatusEvent{
        "T1": {manualEvent("e1", domain.ResultPassed, day(1), day(1))},
        "T2": {manualEvent("e2", domain.ResultFailed, day(1), day(1))},
        "T3": {manualEvent("e3", domain.ResultSkipped, day(1), day(1))},
    }
    snap := Aggregate(Scope{All: true}, day(2), events, tcs, reqs, true)
    if snap.Coverage.TestCasesLinked != 2 { t.Fatalf("linked = %d, want 2", snap.Coverage.TestCasesLinked) }
    // skipped is not meaningfully executed
    if snap.Coverage.TestCasesExecuted != 2 { t.Fatalf("executed = %d, want passed+failed = 2", snap.Coverage.TestCasesExecuted) }
}

func TestCoverage_ZeroRequirementsAllZeroes(t *testing.T) {
    got := Coverage(Scope{All: true}, nil, nil)
    want := domain.CoverageSummary{}
    if got != want { t.Fatalf("coverage on empty data = %+v, want all zeroes", got) }
}

func TestCoverage_CountsRequirementsWithAnyInScopeLink(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    s := BuildScope([]string{"REL1"}, tcs, reqs, rels)
    got := Coverage(s, tcs, reqs)
    // scoped requirements: R1 only; T1 links it
    if got.Total != 1 || got.Covered != 1 || got.NotCovered != 0 { t.Fatalf("coverage = %+v", got) }
    if got.Percentage != 100 { t.Fatalf("percentage = %v, want 100", got.Percentage) }

    all := Coverage(Scope{All: true}, tcs, reqs)
    // R1 covered by T1, R2 by T2, R3 by T3
    if all.Total != 3 || all.Covered != 3 { t.Fatalf("unrestricted coverage = %+v", all) }
}
