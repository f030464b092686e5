// Package decision provides the monotonic allow/deny accumulator shared by
// the admission gate and the evidence harness. A decision starts allowing and
// latches on the first denial; every later denial is a no-op, so the recorded
// code and message always name the first cause.
package decision

// Code identifies why admission or evidence evaluation failed.
type Code string

const (
	CodeWorktreeMismatch  Code = "WORKTREE_MISMATCH"
	CodeWorktreeCollision Code = "WORKTREE_COLLISION"
	CodeGitOpInProgress   Code = "GIT_OP_IN_PROGRESS"
	CodePushDenied        Code = "GH_PUSH_DENIED"

	CodeOutsideAllowedPaths Code = "DIFF_OUTSIDE_ALLOWED_PATHS"
	CodeForbiddenOutput     Code = "FORBIDDEN_OUTPUT_PRESENT"
	CodeBudgetExceeded      Code = "DIFF_BUDGET_EXCEEDED"
)

// Decision accumulates a single allow/deny outcome. The zero value is not
// ready to use; create one with New.
type Decision struct {
	allow   bool
	code    Code
	message string
}

// New returns an allowing decision.
func New() *Decision {
	return &Decision{allow: true}
}

// Deny flips the decision to denied with the given code and message.
// Once denied, subsequent calls are ignored so the first cause wins.
func (d *Decision) Deny(code Code, message string) {
	if !d.allow {
		return
	}
	d.allow = false
	d.code = code
	d.message = message
}

// Allow reports whether the decision is still allowing.
func (d *Decision) Allow() bool {
	return d.allow
}

// Code returns the deny code, or the empty string while allowing.
func (d *Decision) Code() Code {
	if d.allow {
		return ""
	}
	return d.code
}

// Message returns the deny message, or the empty string while allowing.
func (d *Decision) Message() string {
	if d.allow {
		return ""
	}
	return d.message
}

// Merge folds another decision into this one. If this decision is still
// allowing and the other is denied, this one adopts the other's denial.
// The receiver's own denial always takes precedence.
func (d *Decision) Merge(other *Decision) {
	if other == nil || other.allow {
		return
	}
	d.Deny(other.code, other.message)
}

// Verdict returns "ALLOW" or "DENY" for serialization into evidence records.
func (d *Decision) Verdict() string {
	if d.allow {
		return "ALLOW"
	}
	return "DENY"
}
