package testutil

import (
	"testing"

	"solvetrack/pkg/model"
	"solvetrack/pkg/source"
)

// AssertIssueCount verifies the expected number of parse/fetch issues.
func AssertIssueCount(t *testing.T, issues []source.Issue, expected int) {
	t.Helper()
	if len(issues) != expected {
		t.Errorf("expected %d issues, got %d", expected, len(issues))
	}
}

// AssertNoDuplicateIdentities verifies all row identities are unique.
func AssertNoDuplicateIdentities(t *testing.T, rows []source.Row) {
	t.Helper()
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.Identity] {
			t.Errorf("duplicate identity: %s", row.Identity)
		}
		seen[row.Identity] = true
	}
}

// AssertCount verifies a solved/total pair.
func AssertCount(t *testing.T, label string, got, want model.Count) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %d/%d, want %d/%d", label, got.Solved, got.Total, want.Solved, want.Total)
	}
}

// AssertAggregate verifies every difficulty bucket and the overall count of
// an aggregate. want maps difficulty to its expected count; the overall
// expectation is passed separately because unknown-difficulty items count
// there only.
func AssertAggregate(t *testing.T, agg *model.ScopeAggregate, want map[model.Difficulty]model.Count, overall model.Count) {
	t.Helper()
	if agg == nil {
		t.Fatal("expected an aggregate, got nil")
	}
	for _, d := range model.Difficulties {
		AssertCount(t, string(d), agg.Bucket(d), want[d])
	}
	AssertCount(t, "overall", agg.Overall, overall)
}

// FindRow returns the row with the given identity, or nil.
func FindRow(rows []source.Row, identity string) *source.Row {
	for i := range rows {
		if rows[i].Identity == identity {
			return &rows[i]
		}
	}
	return nil
}
