package repo

import (
    "context"
    "errors"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("not found")

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

// Repository is the Postgres mirror of the platform entities. It backs the
// engine's Directory when SOURCE=db and receives the sync job's upserts.
type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// ---- Directory reads ----

func (r *Repository) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, COALESCE(title,''), COALESCE(status,''),
        COALESCE(requirement_ids,'{}'), created_at, updated_at FROM testcases`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.TestCase
    for rows.Next() {
        var t domain.TestCase
        if err := rows.Scan(&t.ID, &t.Title, &t.Status, &t.RequirementIDs, &t.CreatedAt, &t.UpdatedAt); err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (r *Repository) ListRequirements(ctx context.Context) ([]domain.Requirement, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, COALESCE(title,''), COALESCE(source,''),
        COALESCE(tags,'{}'), COALESCE(release_id,''), created_at, updated_at FROM requirements`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Requirement
    for rows.Next() {
        var q domain.Requirement
        if err := rows.Scan(&q.ID, &q.Title, &q.Source, &q.Tags, &q.ReleaseID, &q.CreatedAt, &q.UpdatedAt); err != nil { return nil, err }
        out = append(out, q)
    }
    return out, rows.Err()
}

func (r *Repository) ListReleases(ctx context.Context) ([]domain.Release, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, COALESCE(name,''), from_date, to_date,
        COALESCE(requirement_ids,'{}'), COALESCE(testcase_ids,'{}'), created_at, updated_at FROM releases`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Release
    for rows.Next() {
        var rel domain.Release
        if err := rows.Scan(&rel.ID, &rel.Name, &rel.FromDate, &rel.ToDate,
            &rel.RequirementIDs, &rel.TestCaseIDs, &rel.CreatedAt, &rel.UpdatedAt); err != nil { return nil, err }
        out = append(out, rel)
    }
    return out, rows.Err()
}

const executionCols = `id, testcase_id, COALESCE(release_id,''), COALESCE(exec_type,''),
    COALESCE(result,''), execution_date, COALESCE(executed_by,''), COALESCE(notes,''),
    duration_seconds, created_at, updated_at`

func scanExecutions(rows pgx.Rows) ([]domain.Execution, error) {
    defer rows.Close()
    var out []domain.Execution
    for rows.Next() {
        var e domain.Execution
        if err := rows.Scan(&e.ID, &e.TestCaseID, &e.ReleaseID, &e.Type, &e.Result,
            &e.ExecutionDate, &e.ExecutedBy, &e.Notes, &e.DurationSeconds, &e.CreatedAt, &e.UpdatedAt); err != nil { return nil, err }
        out = append(out, e)
    }
    return out, rows.Err()
}

func (r *Repository) ListExecutions(ctx context.Context) ([]domain.Execution, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT `+executionCols+` FROM executions`)
    if err != nil { return nil, err }
    return scanExecutions(rows)
}

func (r *Repository) ExecutionsByTestCase(ctx context.Context, testCaseID string) ([]domain.Execution, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT `+executionCols+` FROM executions WHERE testcase_id=$1`, testCaseID)
    if err != nil { return nil, err }
    return scanExecutions(rows)
}

const automationCols = `id, testcase_id, COALESCE(title,''), COALESCE(framework,''),
    COALESCE(status,''), COALESCE(last_run_result,''), last_run_at, created_at, updated_at`

func scanAutomations(rows pgx.Rows) ([]domain.Automation, error) {
    defer rows.Close()
    var out []domain.Automation
    for rows.Next() {
        var a domain.Automation
        if err := rows.Scan(&a.ID, &a.TestCaseID, &a.Title, &a.Framework, &a.Status,
            &a.LastRunResult, &a.LastRunAt, &a.CreatedAt, &a.UpdatedAt); err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

func (r *Repository) ListAutomations(ctx context.Context) ([]domain.Automation, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT `+automationCols+` FROM automations`)
    if err != nil { return nil, err }
    return scanAutomations(rows)
}

func (r *Repository) AutomationsByTestCase(ctx context.Context, testCaseID string) ([]domain.Automation, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT `+automationCols+` FROM automations WHERE testcase_id=$1`, testCaseID)
    if err != nil { return nil, err }
    return scanAutomations(rows)
}

// ---- Sync upserts ----

func (r *Repository) UpsertTestCases(ctx context.Context, tcs []domain.TestCase) error {
    if len(tcs) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO testcases(id, title, status, requirement_ids, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6)
        ON CONFLICT(id) DO UPDATE SET
            title=EXCLUDED.title,
            status=EXCLUDED.status,
            requirement_ids=EXCLUDED.requirement_ids,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at`
    for _, t := range tcs { batch.Queue(q, t.ID, t.Title, t.Status, t.RequirementIDs, t.CreatedAt, t.UpdatedAt) }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range tcs { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) UpsertRequirements(ctx context.Context, reqs []domain.Requirement) error {
    if len(reqs) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO requirements(id, title, source, tags, release_id, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT(id) DO UPDATE SET
            title=EXCLUDED.title,
            source=EXCLUDED.source,
            tags=EXCLUDED.tags,
            release_id=EXCLUDED.release_id,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at`
    for _, rq := range reqs {
        var rel any
        if rq.ReleaseID != "" { rel = rq.ReleaseID }
        batch.Queue(q, rq.ID, rq.Title, rq.Source, rq.Tags, rel, rq.CreatedAt, rq.UpdatedAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range reqs { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) UpsertReleases(ctx context.Context, rels []domain.Release) error {
    if len(rels) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO releases(id, name, from_date, to_date, requirement_ids, testcase_ids, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT(id) DO UPDATE SET
            name=EXCLUDED.name,
            from_date=EXCLUDED.from_date,
            to_date=EXCLUDED.to_date,
            requirement_ids=EXCLUDED.requirement_ids,
            testcase_ids=EXCLUDED.testcase_ids,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at`
    for _, rel := range rels {
        batch.Queue(q, rel.ID, rel.Name, rel.FromDate, rel.ToDate, rel.RequirementIDs, rel.TestCaseIDs, rel.CreatedAt, rel.UpdatedAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range rels { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) UpsertExecutions(ctx context.Context, execs []domain.Execution) error {
    if len(execs) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO executions(id, testcase_id, release_id, exec_type, result,
            execution_date, executed_by, notes, duration_seconds, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT(id) DO UPDATE SET
            testcase_id=EXCLUDED.testcase_id,
            release_id=EXCLUDED.release_id,
            exec_type=EXCLUDED.exec_type,
            result=EXCLUDED.result,
            execution_date=EXCLUDED.execution_date,
            executed_by=EXCLUDED.executed_by,
            notes=EXCLUDED.notes,
            duration_seconds=EXCLUDED.duration_seconds,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at`
    for _, e := range execs {
        var rel any
        if e.ReleaseID != "" { rel = e.ReleaseID }
        batch.Queue(q, e.ID, e.TestCaseID, rel, string(e.Type), e.Result,
            e.ExecutionDate, e.ExecutedBy, e.Notes, e.DurationSeconds, e.CreatedAt, e.UpdatedAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range execs { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) UpsertAutomations(ctx context.Context, autos []domain.Automation) error {
    if len(autos) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO automations(id, testcase_id, title, framework, status,
            last_run_result, last_run_at, created_at, updated_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT(id) DO UPDATE SET
            testcase_id=EXCLUDED.testcase_id,
            title=EXCLUDED.title,
            framework=EXCLUDED.framework,
            status=EXCLUDED.status,
            last_run_result=EXCLUDED.last_run_result,
            last_run_at=EXCLUDED.last_run_at,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at`
    for _, a := range autos {
        batch.Queue(q, a.ID, a.TestCaseID, a.Title, a.Framework, a.Status,
            a.LastRunResult, a.LastRunAt, a.CreatedAt, a.UpdatedAt)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range autos { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

// ---- Daily metrics ----

// UpsertDailyMetrics persists a snapshot's KPI map for one day and scope
// ("all" or a release id).
func (r *Repository) UpsertDailyMetrics(ctx context.Context, day time.Time, scope string, kpis map[string]float64) error {
    if len(kpis) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO metrics_daily(day, scope, kpi, value) VALUES($1,$2,$3,$4)
        ON CONFLICT (day, scope, kpi) DO UPDATE SET value=EXCLUDED.value`
    for k, v := range kpis { batch.Queue(q, day, scope, k, v) }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range kpis { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

func (r *Repository) GetDailyMetrics(ctx context.Context, day time.Time, scope string) (map[string]float64, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT kpi, value FROM metrics_daily WHERE day=$1 AND scope=$2`, day, scope)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[string]float64{}
    for rows.Next() { var k string; var v float64; if err := rows.Scan(&k, &v); err != nil { return nil, err }; out[k] = v }
    return out, rows.Err()
}

type DailyMetrics struct {
    Day    time.Time          `json:"day"`
    Values map[string]float64 `json:"values"`
}

// ListDailyMetrics returns the persisted snapshot series for a scope, oldest
// first, between from and to inclusive.
func (r *Repository) ListDailyMetrics(ctx context.Context, scope string, from, to time.Time) ([]DailyMetrics, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT day, kpi, value FROM metrics_daily
        WHERE scope=$1 AND day >= $2 AND day <= $3 ORDER BY day`, scope, from, to)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []DailyMetrics
    for rows.Next() {
        var day time.Time
        var k string
        var v float64
        if err := rows.Scan(&day, &k, &v); err != nil { return nil, err }
        if len(out) == 0 || !out[len(out)-1].Day.Equal(day) {
            out = append(out, DailyMetrics{Day: day, Values: map[string]float64{}})
        }
        out[len(out)-1].Values[k] = v
    }
    return out, rows.Err()
}

// ---- Sync runs ----

type SyncCounts struct {
    TestCases    int `json:"testcases"`
    Requirements int `json:"requirements"`
    Releases     int `json:"releases"`
    Executions   int `json:"executions"`
    Automations  int `json:"automations"`
}

func (r *Repository) StartSyncRun(ctx context.Context, source string) (int64, error) {
    const q = `INSERT INTO job_runs(started_at, source, success) VALUES(now(), $1, false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, source).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, c SyncCounts, success bool, errStr string) error {
    const q = `UPDATE job_runs SET finished_at=now(), testcases=$2, requirements=$3,
        releases=$4, executions=$5, automations=$6, success=$7, error=$8 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, c.TestCases, c.Requirements, c.Releases, c.Executions, c.Automations, success, errStr)
    return err
}

type LastSync struct {
    StartedAt    time.Time  `json:"started_at"`
    FinishedAt   *time.Time `json:"finished_at"`
    Source       string     `json:"source"`
    TestCases    int        `json:"testcases"`
    Requirements int        `json:"requirements"`
    Releases     int        `json:"releases"`
    Executions   int        `json:"executions"`
    Automations  int        `json:"automations"`
    Success      bool       `json:"success"`
    Error        string     `json:"error"`
}

func (r *Repository) GetLastSync(ctx context.Context) (*LastSync, error) {
    const q = `SELECT started_at, finished_at, coalesce(source,''),
        coalesce(testcases,0), coalesce(requirements,0), coalesce(releases,0),
        coalesce(executions,0), coalesce(automations,0),
        coalesce(success,false), coalesce(error,'')
        FROM job_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    ls := &LastSync{}
    if err := row.Scan(&ls.StartedAt, &ls.FinishedAt, &ls.Source, &ls.TestCases, &ls.Requirements,
        &ls.Releases, &ls.Executions, &ls.Automations, &ls.Success, &ls.Error); err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
        return nil, err
    }
    return ls, nil
}
