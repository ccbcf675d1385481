package domain

import (
    "strings"
    "time"
)

// Source says where a status claim came from.
type Source string

const (
    SourceManual    Source = "manual"
    SourceAutomated Source = "automated"
    SourceNone      Source = "none"
)

// Result is the outcome of a single execution or run.
// ResultNotExecuted only ever appears on a ResolvedStatus.
type Result string

const (
    ResultPassed      Result = "passed"
    ResultFailed      Result = "failed"
    ResultBlocked     Result = "blocked"
    ResultSkipped     Result = "skipped"
    ResultNotExecuted Result = "not_executed"
)

// ParseResult accepts the result strings the execution log records.
func ParseResult(s string) (Result, bool) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "passed":
        return ResultPassed, true
    case "failed":
        return ResultFailed, true
    case "blocked":
        return ResultBlocked, true
    case "skipped":
        return ResultSkipped, true
    }
    return "", false
}

// ParseRunResult maps an automation last-run outcome onto a Result.
// The runner writes "error" when the harness itself broke and flips the
// automation to failing, so error collapses to failed here as well.
func ParseRunResult(s string) (Result, bool) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "passed":
        return ResultPassed, true
    case "failed", "error":
        return ResultFailed, true
    }
    return "", false
}

type TestCase struct {
    ID             string     `json:"id"`
    Title          string     `json:"title"`
    Status         string     `json:"status"`
    RequirementIDs []string   `json:"requirement_ids"`
    // Direct release links. The upstream keeps these on the release side;
    // the engine fills them in from Release.TestCaseIDs during assembly.
    ReleaseIDs []string   `json:"release_ids"`
    CreatedAt  time.Time  `json:"created_at"`
    UpdatedAt  time.Time  `json:"updated_at"`
}

type Requirement struct {
    ID        string    `json:"id"`
    Title     string    `json:"title"`
    Source    string    `json:"source"`
    Tags      []string  `json:"tags"`
    ReleaseID string    `json:"release_id"` // empty when not assigned to a release
    CreatedAt time.Time `json:"created_at"`
    UpdatedAt time.Time `json:"updated_at"`
}

type Release struct {
    ID             string     `json:"id"`
    Name           string     `json:"name"`
    FromDate       *time.Time `json:"from_date"`
    ToDate         *time.Time `json:"to_date"`
    RequirementIDs []string   `json:"requirement_ids"`
    TestCaseIDs    []string   `json:"testcase_ids"`
    CreatedAt      time.Time  `json:"created_at"`
    UpdatedAt      time.Time  `json:"updated_at"`
}

// Execution is one row of the manual-execution log. The automation runner
// appends rows here too, typed automated.
type Execution struct {
    ID              string     `json:"id"`
    TestCaseID      string     `json:"test_case_id"`
    ReleaseID       string     `json:"release_id"`
    Type            Source     `json:"execution_type"`
    Result          string     `json:"result"`
    ExecutionDate   *time.Time `json:"execution_date"`
    ExecutedBy      string     `json:"executed_by"`
    Notes           string     `json:"notes,omitempty"`
    DurationSeconds *int       `json:"duration_seconds"`
    CreatedAt       time.Time  `json:"created_at"`
    UpdatedAt       time.Time  `json:"updated_at"`
}

// Automation mirrors an automation record; only the last run is retained
// upstream, so at most one event can be derived from it.
type Automation struct {
    ID            string     `json:"id"`
    TestCaseID    string     `json:"test_case_id"`
    Title         string     `json:"title"`
    Framework     string     `json:"framework"`
    Status        string     `json:"status"`
    LastRunResult string     `json:"last_run_result"`
    LastRunAt     *time.Time `json:"last_run_at"`
    CreatedAt     time.Time  `json:"created_at"`
    UpdatedAt     time.Time  `json:"updated_at"`
}

// StatusEvent is the normalized claim "this test case had this result at
// this time". EffectiveTime orders claims; TiebreakTime breaks same-instant
// ties inside a source (created_at for manual rows, updated_at for
// automation rows).
type StatusEvent struct {
    TestCaseID    string    `json:"test_case_id"`
    Source        Source    `json:"source"`
    Result        Result    `json:"result"`
    EffectiveTime time.Time `json:"effective_time"`
    TiebreakTime  time.Time `json:"tiebreak_time"`
    RecordID      string    `json:"record_id"`
}

// ResolvedStatus is the reconstructed state of one test case at AsOf.
type ResolvedStatus struct {
    TestCaseID     string     `json:"test_case_id"`
    Result         Result     `json:"result"`
    Source         Source     `json:"source"`
    AsOf           time.Time  `json:"as_of"`
    LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
}

// CoverageStats extends a point-in-time snapshot with requirement linkage.
type CoverageStats struct {
    RequirementsTotal       int `json:"requirements_total"`
    RequirementsWithTests   int `json:"requirements_with_tests"`
    RequirementsFullyTested int `json:"requirements_fully_tested"`
    TestCasesLinked         int `json:"testcases_linked"`
    TestCasesExecuted       int `json:"testcases_executed"`
}

// AggregateSnapshot is the status distribution of a scope at a cutoff.
// Coverage is filled for point-in-time snapshots and left nil on trend
// entries, where only the counts are wanted.
type AggregateSnapshot struct {
    Cutoff      time.Time      `json:"cutoff"`
    Passed      int            `json:"passed"`
    Failed      int            `json:"failed"`
    Blocked     int            `json:"blocked"`
    NotExecuted int            `json:"not_executed"`
    Total       int            `json:"total"`
    Coverage    *CoverageStats `json:"coverage,omitempty"`
}

type CoverageSummary struct {
    Covered    int     `json:"covered"`
    NotCovered int     `json:"not_covered"`
    Total      int     `json:"total"`
    Percentage float64 `json:"percentage"`
}
