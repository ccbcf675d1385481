/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package platform

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/HamedShams/test-pulse/internal/domain"
    "github.com/rs/zerolog"
)

// the services cap list pages at 200 rows
const pageSize = 200

// Client reads the platform REST services. It satisfies the engine's
// Directory, so the engine can run against the live platform without the
// Postgres mirror in between.
type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.PlatformBaseURL,
        token:   cfg.PlatformToken,
        http:    &http.Client{Timeout: cfg.HTTPTimeout},
        log:     log,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
    if c.baseURL == "" { return errors.New("platform: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return err }
        req.Header.Set("Accept", "application/json")
        if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
        } else {
            b, rerr := io.ReadAll(resp.Body)
            resp.Body.Close()
            if rerr != nil { return rerr }
            if resp.StatusCode >= 300 {
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("platform api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return fmt.Errorf("platform api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                return json.Unmarshal(b, out)
            }
        }
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return lastErr
}

func pageQuery(skip int, extra url.Values) url.Values {
    q := url.Values{}
    for k, vs := range extra {
        for _, v := range vs { q.Add(k, v) }
    }
    q.Set("limit", strconv.Itoa(pageSize))
    if skip > 0 { q.Set("skip", strconv.Itoa(skip)) }
    return q
}

func (c *Client) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
    var out []domain.TestCase
    for skip := 0; ; skip += pageSize {
        var page []testCaseDTO
        if err := c.getJSON(ctx, c.apiURL("/api/testcases", pageQuery(skip, nil)), &page); err != nil { return nil, err }
        for _, d := range page { out = append(out, d.toDomain()) }
        if len(page) < pageSize { break }
    }
    return out, nil
}

func (c *Client) ListRequirements(ctx context.Context) ([]domain.Requirement, error) {
    var out []domain.Requirement
    for skip := 0; ; skip += pageSize {
        var page []requirementDTO
        if err := c.getJSON(ctx, c.apiURL("/api/requirements", pageQuery(skip, nil)), &page); err != nil { return nil, err }
        for _, d := range page { out = append(out, d.toDomain()) }
        if len(page) < pageSize { break }
    }
    return out, nil
}

func (c *Client) ListReleases(ctx context.Context) ([]domain.Release, error) {
    var out []domain.Release
    for skip := 0; ; skip += pageSize {
        var page []releaseDTO
        if err := c.getJSON(ctx, c.apiURL("/api/releases", pageQuery(skip, nil)), &page); err != nil { return nil, err }
        for _, d := range page { out = append(out, d.toDomain()) }
        if len(page) < pageSize { break }
    }
    return out, nil
}

func (c *Client) ListExecutions(ctx context.Context) ([]domain.Execution, error) {
    return c.pagedExecutions(ctx, nil)
}

func (c *Client) ExecutionsByTestCase(ctx context.Context, testCaseID string) ([]domain.Execution, error) {
    if testCaseID == "" { return nil, errors.New("platform: empty test case id") }
    q := url.Values{}
    q.Set("test_case_id", testCaseID)
    return c.pagedExecutions(ctx, q)
}

func (c *Client) pagedExecutions(ctx context.Context, extra url.Values) ([]domain.Execution, error) {
    var out []domain.Execution
    for skip := 0; ; skip += pageSize {
        var page []executionDTO
        if err := c.getJSON(ctx, c.apiURL("/api/executions", pageQuery(skip, extra)), &page); err != nil { return nil, err }
        for _, d := range page { out = append(out, d.toDomain()) }
        if len(page) < pageSize { break }
    }
    return out, nil
}

func (c *Client) ListAutomations(ctx context.Context) ([]domain.Automation, error) {
    return c.pagedAutomations(ctx, nil)
}

func (c *Client) AutomationsByTestCase(ctx context.Context, testCaseID string) ([]domain.Automation, error) {
    if testCaseID == "" { return nil, errors.New("platform: empty test case id") }
    q := url.Values{}
    q.Set("test_case_id", testCaseID)
    return c.pagedAutomations(ctx, q)
}

func (c *Client) pagedAutomations(ctx context.Context, extra url.Values) ([]domain.Automation, error) {
    var out []domain.Automation
    for skip := 0; ; skip += pageSize {
        var page []automationDTO
        if err := c.getJSON(ctx, c.apiURL("/api/automations", pageQuery(skip, extra)), &page); err != nil { return nil, err }
        for _, d := range page { out = append(out, d.toDomain()) }
        if len(page) < pageSize { break }
    }
    return out, nil
}

// ---- wire types ----

// The services serialize Mongo documents, so ids may arrive as "_id".
// Timestamps may arrive zoneless; parseTime tries the layouts seen in the
// wild and gives up to the zero time, which the normalizer treats as absent.

type testCaseDTO struct {
    ID             string   `json:"id"`
    MongoID        string   `json:"_id"`
    Title          string   `json:"title"`
    Status         string   `json:"status"`
    RequirementID  string   `json:"requirement_id"`
    RequirementIDs []string `json:"requirement_ids"`
    CreatedAt      string   `json:"created_at"`
    UpdatedAt      string   `json:"updated_at"`
}

func (d testCaseDTO) toDomain() domain.TestCase {
    reqs := append([]string(nil), d.RequirementIDs...)
    if d.RequirementID != "" { reqs = appendUnique(reqs, d.RequirementID) }
    return domain.TestCase{
        ID:             pickID(d.ID, d.MongoID),
        Title:          d.Title,
        Status:         d.Status,
        RequirementIDs: reqs,
        CreatedAt:      parseTime(d.CreatedAt),
        UpdatedAt:      parseTime(d.UpdatedAt),
    }
}

type requirementDTO struct {
    ID        string   `json:"id"`
    MongoID   string   `json:"_id"`
    Title     string   `json:"title"`
    Source    string   `json:"source"`
    Tags      []string `json:"tags"`
    ReleaseID string   `json:"release_id"`
    CreatedAt string   `json:"created_at"`
    UpdatedAt string   `json:"updated_at"`
}

func (d requirementDTO) toDomain() domain.Requirement {
    return domain.Requirement{
        ID:        pickID(d.ID, d.MongoID),
        Title:     d.Title,
        Source:    d.Source,
        Tags:      d.Tags,
        ReleaseID: d.ReleaseID,
        CreatedAt: parseTime(d.CreatedAt),
        UpdatedAt: parseTime(d.UpdatedAt),
    }
}

type releaseDTO struct {
    ID             string   `json:"id"`
    MongoID        string   `json:"_id"`
    Name           string   `json:"name"`
    FromDate       string   `json:"from_date"`
    ToDate         string   `json:"to_date"`
    RequirementIDs []string `json:"requirement_ids"`
    TestCaseIDs    []string `json:"testcase_ids"`
    CreatedAt      string   `json:"created_at"`
    UpdatedAt      string   `json:"updated_at"`
}

func (d releaseDTO) toDomain() domain.Release {
    return domain.Release{
        ID:             pickID(d.ID, d.MongoID),
        Name:           d.Name,
        FromDate:       parseTimePtr(d.FromDate),
        ToDate:         parseTimePtr(d.ToDate),
        RequirementIDs: d.RequirementIDs,
        TestCaseIDs:    d.TestCaseIDs,
        CreatedAt:      parseTime(d.CreatedAt),
        UpdatedAt:      parseTime(d.UpdatedAt),
    }
}

type executionDTO struct {
    ID              string `json:"id"`
    MongoID         string `json:"_id"`
    TestCaseID      string `json:"test_case_id"`
    ReleaseID       string `json:"release_id"`
    ExecutionType   string `json:"execution_type"`
    Result          string `json:"result"`
    ExecutionDate   string `json:"execution_date"`
    ExecutedBy      string `json:"executed_by"`
    Notes           string `json:"notes"`
    DurationSeconds *int   `json:"duration_seconds"`
    CreatedAt       string `json:"created_at"`
    UpdatedAt       string `json:"updated_at"`
}

func (d executionDTO) toDomain() domain.Execution {
    return domain.Execution{
        ID:              pickID(d.ID, d.MongoID),
        TestCaseID:      d.TestCaseID,
        ReleaseID:       d.ReleaseID,
        Type:            domain.Source(strings.ToLower(strings.TrimSpace(d.ExecutionType))),
        Result:          d.Result,
        ExecutionDate:   parseTimePtr(d.ExecutionDate),
        ExecutedBy:      d.ExecutedBy,
        Notes:           d.Notes,
        DurationSeconds: d.DurationSeconds,
        CreatedAt:       parseTime(d.CreatedAt),
        UpdatedAt:       parseTime(d.UpdatedAt),
    }
}

type automationDTO struct {
    ID            string `json:"id"`
    MongoID       string `json:"_id"`
    TestCaseID    string `json:"test_case_id"`
    Title         string `json:"title"`
    Framework     string `json:"framework"`
    Status        string `json:"status"`
    LastRunResult string `json:"last_run_result"`
    LastRunAt     string `json:"last_run_at"`
    CreatedAt     string `json:"created_at"`
    UpdatedAt     string `json:"updated_at"`
}

func (d automationDTO) toDomain() domain.Automation {
    return domain.Automation{
        ID:            pickID(d.ID, d.MongoID),
        TestCaseID:    d.TestCaseID,
        Title:         d.Title,
        Framework:     d.Framework,
        Status:        d.Status,
        LastRunResult: d.LastRunResult,
        LastRunAt:     parseTimePtr(d.LastRunAt),
        CreatedAt:     parseTime(d.CreatedAt),
        UpdatedAt:     parseTime(d.UpdatedAt),
    }
}

func pickID(id, alt string) string {
    if id != "" { return id }
    return alt
}

func appendUnique(list []string, v string) []string {
    for _, x := range list {
        if x == v { return list }
    }
    return append(list, v)
}

var timeLayouts = []string{
    time.RFC3339Nano,
    "2006-01-02T15:04:05.999999",
    "2006-01-02T15:04:05",
    "2006-01-02",
}

func parseTime(s string) time.Time {
    s = strings.TrimSpace(s)
    if s == "" { return time.Time{} }
    for _, layout := range timeLayouts {
        if t, err := time.Parse(layout, s); err == nil { return t.UTC() }
    }
    return time.Time{}
}

func parseTimePtr(s string) *time.Time {
    t := parseTime(s)
    if t.IsZero() { return nil }
    return &t
}
