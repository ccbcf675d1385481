package engine

import (
    "testing"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

func day(d int) time.Time { return time.Date(2026, 3, d, 12, 0, 0, 0, time.UTC) }

func endOfDay(d int) time.Time { return time.Date(2026, 3, d, 23, 59, 59, 999000000, time.UTC) }

func manualEvent(id string, res domain.Result, eff, created time.Time) domain.StatusEvent {
    return domain.StatusEvent{TestCaseID: "T1", Source: domain.SourceManual, Result: res, EffectiveTime: eff, TiebreakTime: created, RecordID: id}
}

func automatedEvent(id string, res domain.Result, eff, updated time.Time) domain.StatusEvent {
    return domain.StatusEvent{TestCaseID: "T1", Source: domain.SourceAutomated, Result: res, EffectiveTime: eff, TiebreakTime: updated, RecordID: id}
}

func TestResolve_NoEventsMeansNotExecuted(t *testing.T) {
    rs := Resolve("T1", nil, day(5))
    if rs.Result != domain.ResultNotExecuted { t.Fatalf("result = %s, want not_executed", rs.Result) }
    if rs.Source != domain.SourceNone { t.Fatalf("source = %s, want none", rs.Source) }
    if rs.LastExecutedAt != nil { t.Fatalf("last_executed_at should be nil, got %v", rs.LastExecutedAt) }
    if !rs.AsOf.Equal(day(5)) { t.Fatalf("as_of = %v, want %v", rs.AsOf, day(5)) }
}

func TestResolve_EventsAfterCutoffAreInvisible(t *testing.T) {
    events := []domain.StatusEvent{
        manualEvent("e1", domain.ResultFailed, day(1), day(1)),
        automatedEvent("a1", domain.ResultPassed, day(3), day(3)),
    }
    rs := Resolve("T1", events, endOfDay(2))
    if rs.Result != domain.ResultFailed { t.Fatalf("at day 2 result = %s, want failed", rs.Result) }
    if rs.Source != domain.SourceManual { t.Fatalf("at day 2 source = %s, want manual", rs.Source) }
}

func TestResolve_LatestEffectiveTimeWins(t *testing.T) {
    // day 1 manual failed, day 3 automated passed, asked at day 5
    events := []domain.StatusEvent{
        manualEvent("e1", domain.ResultFailed, day(1), day(1)),
        automatedEvent("a1", domain.ResultPassed, day(3), day(3)),
    }
    rs := Resolve("T1", events, day(5))
    if rs.Result != domain.ResultPassed { t.Fatalf("result = %s, want passed", rs.Result) }
    if rs.Source != domain.SourceAutomated { t.Fatalf("source = %s, want automated", rs.Source) }
    if rs.LastExecutedAt == nil || !rs.LastExecutedAt.Equal(day(3)) { t.Fatalf("last_executed_at = %v, want %v", rs.LastExecutedAt, day(3)) }
}

func TestResolve_Idempotent(t *testing.T) {
    events := []domain.StatusEvent{
        manualEvent("e1", domain.ResultBlocked, day(2), day(2)),
        manualEvent("e2", domain.ResultPassed, day(1), day(1)),
    }
    first := Resolve("T1", events, day(4))
    second := Resolve("T1", events, day(4))
    if first.Result != second.Result || first.Source != second.Source { t.Fatalf("two identical calls disagree: %#v vs %#v", first, second) }
}

func TestResolve_ManualTieBrokenByLaterCreatedAt(t *testing.T) {
    eff := day(2)
    older := manualEvent("e1", domain.ResultFailed, eff, day(2))
    newer := manualEvent("e2", domain.ResultPassed, eff, day(2).Add(2*time.Hour))
    for _, events := range [][]domain.StatusEvent{{older, newer}, {newer, older}} {
        rs := Resolve("T1", events, day(5))
        if rs.Result != domain.ResultPassed { t.Fatalf("tie resolved to %s, want passed from the later created_at, order %v", rs.Result, events[0].RecordID) }
    }
}

func TestResolve_AutomatedOutranksManualAtSameInstant(t *testing.T) {
    eff := day(2)
    manual := manualEvent("e1", domain.ResultPassed, eff, day(3))
    auto := automatedEvent("a1", domain.ResultFailed, eff, day(2))
    for _, events := range [][]domain.StatusEvent{{manual, auto}, {auto, manual}} {
        rs := Resolve("T1", events, day(5))
        if rs.Result != domain.ResultFailed || rs.Source != domain.SourceAutomated {
            t.Fatalf("same-instant tie resolved to %s/%s, want failed/automated", rs.Result, rs.Source)
        }
    }
}

func TestResolve_SkippedStaysSkippedPerTestCase(t *testing.T) {
    events := []domain.StatusEvent{manualEvent("e1", domain.ResultSkipped, day(2), day(2))}
    rs := Resolve("T1", events, day(5))
    if rs.Result != domain.ResultSkipped { t.Fatalf("result = %s, want skipped (distinct from not_executed)", rs.Result) }
    if rs.Source != domain.SourceManual { t.Fatalf("source = %s, want manual", rs.Source) }
}

func TestCompareEvents_RecordIDGuaranteesDeterminism(t *testing.T) {
    a := manualEvent("a", domain.ResultPassed, day(2), day(2))
    b := manualEvent("b", domain.ResultFailed, day(2), day(2))
    if CompareEvents(a, b) >= 0 { t.Fatalf("expected a < b on record id") }
    if CompareEvents(b, a) <= 0 { t.Fatalf("expected b > a on record id") }
    if CompareEvents(a, a) != 0 { t.Fatalf("expected a == a") }
}
