package engine

import (
    "testing"

    "github.com/HamedShams/test-pulse/internal/domain"
)

func fixtureCatalog() ([]domain.TestCase, []domain.Requirement, []domain.Release) {
    tcs := []domain.TestCase{
        {ID: "T1", RequirementIDs: []string{"R1"}},                          // reachable through R1 only
        {ID: "T2", RequirementIDs: []string{"R2"}, ReleaseIDs: []string{"REL1"}}, // direct link
        {ID: "T3", RequirementIDs: []string{"R3"}},                          // requirement without release
        {ID: "T4"},                                                          // floats free
    }
    reqs := []domain.Requirement{
        {ID: "R1", ReleaseID: "REL1"},
        {ID: "R2", ReleaseID: "REL2"},
        {ID: "R3"},
    }
    rels := []domain.Release{
        {ID: "REL1"},
        {ID: "REL2"},
        {ID: "REL3", RequirementIDs: []string{"R3"}}, // link kept on the release side
    }
    return tcs, reqs, rels
}

func TestBuildScope_EmptySelectionIsEverything(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    s := BuildScope(nil, tcs, reqs, rels)
    if !s.All { t.Fatalf("empty selection must be the no-filter sentinel") }
    for _, id := range []string{"T1", "T2", "T3", "T4"} {
        if !s.ContainsTestCase(id) { t.Fatalf("test case %s missing from unrestricted scope", id) }
    }
    if !s.ContainsRequirement("R3") { t.Fatalf("requirement without release must be in unrestricted scope") }
}

func TestBuildScope_RequirementPathPullsInUntaggedTestCase(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    s := BuildScope([]string{"REL1"}, tcs, reqs, rels)
    // T1 has no direct release link but R1 belongs to REL1
    if !s.ContainsTestCase("T1") { t.Fatalf("T1 must be in scope through its requirement") }
    // T2 is in through its direct release tag even though R2 is out
    if !s.ContainsTestCase("T2") { t.Fatalf("T2 must be in scope through its direct release link") }
    if s.ContainsTestCase("T3") { t.Fatalf("T3 reachable only via a release-less requirement must be out") }
    if s.ContainsTestCase("T4") { t.Fatalf("unlinked T4 must be out of a restricted scope") }
    if !s.ContainsRequirement("R1") || s.ContainsRequirement("R2") { t.Fatalf("requirement scoping wrong: want R1 in, R2 out") }
}

func TestBuildScope_ReleaseSideRequirementLink(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    // R3 carries no release_id of its own; REL3 names it in requirement_ids
    s := BuildScope([]string{"REL3"}, tcs, reqs, rels)
    if !s.ContainsRequirement("R3") { t.Fatalf("R3 must enter scope through the release's requirement list") }
    if !s.ContainsTestCase("T3") { t.Fatalf("T3 must follow R3 into scope") }
    if s.ContainsTestCase("T1") || s.ContainsTestCase("T2") { t.Fatalf("other releases' test cases must stay out") }
}

func TestBuildScope_UnknownReleaseIDsCollectedNotFatal(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    s := BuildScope([]string{"REL9", "REL8"}, tcs, reqs, rels)
    if len(s.UnknownReleaseIDs) != 2 { t.Fatalf("unknown ids = %v, want both", s.UnknownReleaseIDs) }
    if s.UnknownReleaseIDs[0] != "REL8" || s.UnknownReleaseIDs[1] != "REL9" { t.Fatalf("unknown ids not sorted: %v", s.UnknownReleaseIDs) }
    if len(s.TestCaseIDs) != 0 || len(s.RequirementIDs) != 0 { t.Fatalf("unknown selection must degrade to an empty scope") }
    if s.All { t.Fatalf("unknown selection is not the everything sentinel") }
}

func TestBuildScope_DuplicateAndBlankSelectionEntries(t *testing.T) {
    tcs, reqs, rels := fixtureCatalog()
    s := BuildScope([]string{" REL1 ", "REL1", ""}, tcs, reqs, rels)
    if s.All { t.Fatalf("non-empty selection must restrict") }
    if !s.ContainsTestCase("T1") { t.Fatalf("dedup/trim broke membership") }
}

func TestSignature_StableAcrossOrderAndDuplicates(t *testing.T) {
    a := Signature([]string{"b", "a", "b", " "})
    b := Signature([]string{"a", "b"})
    if a != b || a != "a,b" { t.Fatalf("signatures differ: %q vs %q", a, b) }
    if Signature(nil) != "all" { t.Fatalf("empty selection signature = %q, want all", Signature(nil)) }
}
