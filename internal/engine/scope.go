package engine

import (
    "sort"
    "strings"

    "github.com/HamedShams/test-pulse/internal/domain"
)

// Scope is the effective filter derived from a release selection. All set
// means no filter at all: an empty selection is the documented "everything"
// sentinel, not an empty match.
type Scope struct {
    All               bool
    RequirementIDs    map[string]struct{}
    TestCaseIDs       map[string]struct{}
    UnknownReleaseIDs []string
}

// BuildScope computes the reachable requirement and test-case sets for the
// selected releases. A requirement is in scope when its release is selected,
// from either side of that link (its own release_id or the release's
// requirement list). A test case is in scope when it carries a direct link
// to a selected release OR lists an in-scope requirement; the second path is
// what keeps a test case without release tags visible through its
// requirement. Selected ids matching no release land in UnknownReleaseIDs so
// the caller can log and count them; they are not an error. Pure set
// computation.
func BuildScope(selected []string, tcs []domain.TestCase, reqs []domain.Requirement, rels []domain.Release) Scope {
    sel := map[string]struct{}{}
    for _, id := range selected {
        id = strings.TrimSpace(id)
        if id != "" { sel[id] = struct{}{} }
    }
    if len(sel) == 0 { return Scope{All: true} }

    known := map[string]struct{}{}
    for _, r := range rels { known[r.ID] = struct{}{} }
    var unknown []string
    for id := range sel {
        if _, ok := known[id]; !ok { unknown = append(unknown, id) }
    }
    sort.Strings(unknown)

    s := Scope{
        RequirementIDs:    map[string]struct{}{},
        TestCaseIDs:       map[string]struct{}{},
        UnknownReleaseIDs: unknown,
    }
    for _, rq := range reqs {
        if rq.ReleaseID == "" { continue }
        if _, ok := sel[rq.ReleaseID]; ok { s.RequirementIDs[rq.ID] = struct{}{} }
    }
    for _, r := range rels {
        if _, ok := sel[r.ID]; !ok { continue }
        for _, qid := range r.RequirementIDs { s.RequirementIDs[qid] = struct{}{} }
    }
    for _, tc := range tcs {
        in := false
        for _, rid := range tc.ReleaseIDs {
            if _, ok := sel[rid]; ok { in = true; break }
        }
        if !in {
            for _, qid := range tc.RequirementIDs {
                if _, ok := s.RequirementIDs[qid]; ok { in = true; break }
            }
        }
        if in { s.TestCaseIDs[tc.ID] = struct{}{} }
    }
    return s
}

func (s Scope) ContainsTestCase(id string) bool {
    if s.All { return true }
    _, ok := s.TestCaseIDs[id]
    return ok
}

func (s Scope) ContainsRequirement(id string) bool {
    if s.All { return true }
    _, ok := s.RequirementIDs[id]
    return ok
}

// Signature is the stable cache-key form of a release selection: "all" for
// the empty selection, otherwise the sorted distinct ids joined with commas.
func Signature(selected []string) string {
    seen := map[string]struct{}{}
    ids := make([]string, 0, len(selected))
    for _, id := range selected {
        id = strings.TrimSpace(id)
        if id == "" { continue }
        if _, ok := seen[id]; ok { continue }
        seen[id] = struct{}{}
        ids = append(ids, id)
    }
    if len(ids) == 0 { return "all" }
    sort.Strings(ids)
    return strings.Join(ids, ",")
}
