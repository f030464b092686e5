package evidence

import (
	"sort"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/decision"
	"github.com/entrhq/packetgate/pkg/pathmatch"
)

// evaluateConstraints checks the observed change set against the contract's
// allowed paths, forbidden outputs, and budgets. All violations are
// collected; none short-circuits the others.
func evaluateConstraints(c *contract.Contract, changedPaths, statusPathsAfter []string, changedFiles, totalLines int) []Violation {
	var violations []Violation

	if m, err := pathmatch.New(c.AllowedPaths); err == nil && !m.Empty() {
		if bad := m.Outside(changedPaths); len(bad) > 0 {
			violations = append(violations, Violation{
				Code:    string(decision.CodeOutsideAllowedPaths),
				Details: map[string]any{"bad_paths": bad},
			})
		}
	}

	if m, err := pathmatch.New(c.ForbiddenOutputs); err == nil && !m.Empty() {
		if hit := m.Hits(statusPathsAfter); len(hit) > 0 {
			sort.Strings(hit)
			violations = append(violations, Violation{
				Code:    string(decision.CodeForbiddenOutput),
				Details: map[string]any{"paths": dedup(hit)},
			})
		}
	}

	var budgetViolations []any
	if limit := c.Budgets.MaxChangedFiles; limit != nil && changedFiles > *limit {
		budgetViolations = append(budgetViolations, []any{"max_changed_files", changedFiles, *limit})
	}
	if limit := c.Budgets.MaxChangedLines; limit != nil && totalLines > *limit {
		budgetViolations = append(budgetViolations, []any{"max_changed_lines", totalLines, *limit})
	}
	if len(budgetViolations) > 0 {
		violations = append(violations, Violation{
			Code:    string(decision.CodeBudgetExceeded),
			Details: map[string]any{"violations": budgetViolations},
		})
	}

	return violations
}

// dedup removes adjacent duplicates from a sorted slice.
func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
