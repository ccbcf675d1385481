package platform

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/HamedShams/test-pulse/internal/config"
    "github.com/rs/zerolog"
)

func newTestClient(baseURL string) *Client {
    cfg := config.Config{PlatformBaseURL: baseURL, PlatformToken: "secret", HTTPTimeout: 5 * time.Second}
    return NewClient(cfg, zerolog.Nop())
}

func TestClient_ListTestCasesPaginates(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/api/testcases", func(w http.ResponseWriter, r *http.Request) {
        if got := r.URL.Query().Get("limit"); got != "200" { t.Errorf("limit = %q, want 200", got) }
        w.Header().Set("Content-Type", "application/json")
        if r.URL.Query().Get("skip") == "" {
            var page []map[string]any
            for i := 0; i < pageSize; i++ {
                page = append(page, map[string]any{"_id": fmt.Sprintf("T%03d", i), "title": "t", "requirement_id": "R1"})
            }
            json.NewEncoder(w).Encode(page)
            return
        }
        if got := r.URL.Query().Get("skip"); got != "200" { t.Errorf("skip = %q, want 200", got) }
        json.NewEncoder(w).Encode([]map[string]any{
            {"_id": "T200", "requirement_id": "R1", "requirement_ids": []string{"R1", "R2"}},
        })
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    out, err := newTestClient(srv.URL).ListTestCases(context.Background())
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(out) != pageSize+1 { t.Fatalf("len = %d, want %d", len(out), pageSize+1) }
    if out[0].ID != "T000" { t.Fatalf("id = %q, want the _id fallback", out[0].ID) }
    last := out[len(out)-1]
    if len(last.RequirementIDs) != 2 { t.Fatalf("requirement ids = %v, want deduplicated merge", last.RequirementIDs) }
}

func TestClient_ExecutionsByTestCaseSendsFilter(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/api/executions", func(w http.ResponseWriter, r *http.Request) {
        if got := r.URL.Query().Get("test_case_id"); got != "T1" { t.Errorf("test_case_id = %q", got) }
        if got := r.Header.Get("Authorization"); got != "Bearer secret" { t.Errorf("auth = %q", got) }
        w.Header().Set("Content-Type", "application/json")
        json.NewEncoder(w).Encode([]map[string]any{{
            "id":             "e1",
            "test_case_id":   "T1",
            "execution_type": "AUTOMATED",
            "result":         "passed",
            "execution_date": "2026-03-01T10:00:00",
        }})
    })
    srv := httptest.NewServer(mux)
    defer srv.Close()

    out, err := newTestClient(srv.URL).ExecutionsByTestCase(context.Background(), "T1")
    if err != nil { t.Fatalf("unexpected error: %v", err) }
    if len(out) != 1 { t.Fatalf("len = %d", len(out)) }
    if out[0].Type != "automated" { t.Fatalf("type = %q, want lowercased", out[0].Type) }
    if out[0].ExecutionDate == nil { t.Fatalf("zoneless execution_date must still parse") }
}

func TestClient_RetriesServerErrors(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        if calls == 1 {
            http.Error(w, "boom", http.StatusInternalServerError)
            return
        }
        w.Header().Set("Content-Type", "application/json")
        json.NewEncoder(w).Encode([]map[string]any{{"id": "REL1", "name": "v1"}})
    }))
    defer srv.Close()

    out, err := newTestClient(srv.URL).ListReleases(context.Background())
    if err != nil { t.Fatalf("unexpected error after retry: %v", err) }
    if calls != 2 { t.Fatalf("calls = %d, want one retry", calls) }
    if len(out) != 1 || out[0].ID != "REL1" { t.Fatalf("out = %+v", out) }
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        http.Error(w, "nope", http.StatusForbidden)
    }))
    defer srv.Close()

    if _, err := newTestClient(srv.URL).ListRequirements(context.Background()); err == nil {
        t.Fatalf("want error on 403")
    }
    if calls != 1 { t.Fatalf("calls = %d, 4xx must not retry", calls) }
}

func TestParseTime_Layouts(t *testing.T) {
    cases := []struct {
        in   string
        zero bool
    }{
        {"2026-03-01T10:00:00Z", false},
        {"2026-03-01T10:00:00.123456", false},
        {"2026-03-01T10:00:00", false},
        {"2026-03-01", false},
        {"", true},
        {"yesterday", true},
    }
    for _, c := range cases {
        if got := parseTime(c.in); got.IsZero() != c.zero {
            t.Fatalf("parseTime(%q) zero = %v, want %v", c.in, got.IsZero(), c.zero)
        }
    }
}
