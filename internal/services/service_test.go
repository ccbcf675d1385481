package services

import (
    "testing"
    "time"

    "github.com/HamedShams/test-pulse/internal/domain"
)

func TestDayKey_FlattensToReferenceZoneDay(t *testing.T) {
    tehran, err := time.LoadLocation("Asia/Tehran")
    if err != nil { t.Skipf("tz database unavailable: %v", err) }

    // 21:30 UTC is already the next day in Tehran (+03:30)
    at := time.Date(2026, 3, 1, 21, 30, 0, 0, time.UTC)
    got := dayKey(at, tehran)
    want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
    if !got.Equal(want) { t.Fatalf("dayKey = %v, want %v", got, want) }

    if got := dayKey(at, time.UTC); !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("dayKey in UTC = %v", got)
    }
}

func TestDayKey_StableWithinOneDay(t *testing.T) {
    first := dayKey(time.Date(2026, 3, 1, 0, 0, 1, 0, time.UTC), time.UTC)
    last := dayKey(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC), time.UTC)
    if !first.Equal(last) { t.Fatalf("keys differ within one day: %v vs %v", first, last) }
}

func TestSnapshotKPIs_CopiesBucketsAndCoverage(t *testing.T) {
    snap := domain.AggregateSnapshot{
        Passed: 3, Failed: 1, Blocked: 1, NotExecuted: 5, Total: 10,
        Coverage: &domain.CoverageStats{
            RequirementsTotal:       4,
            RequirementsWithTests:   3,
            RequirementsFullyTested: 1,
            TestCasesLinked:         6,
            TestCasesExecuted:       5,
        },
    }
    kpis := snapshotKPIs(snap)
    if kpis["total"] != 10 || kpis["passed"] != 3 || kpis["not_executed"] != 5 {
        t.Fatalf("buckets wrong: %+v", kpis)
    }
    if kpis["coverage_percent"] != 75 { t.Fatalf("coverage_percent = %v, want 75", kpis["coverage_percent"]) }
}

func TestSnapshotKPIs_NoCoverageBlock(t *testing.T) {
    kpis := snapshotKPIs(domain.AggregateSnapshot{Total: 2, NotExecuted: 2})
    if _, ok := kpis["coverage_percent"]; ok { t.Fatalf("coverage keys must be absent without coverage stats") }
    if len(kpis) != 5 { t.Fatalf("kpis = %+v", kpis) }
}
