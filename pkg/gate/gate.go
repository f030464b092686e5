// Package gate implements the G0 admission gate: the decision of whether
// work may begin on a packet. It reconciles the packet's isolated worktree,
// verifies ancestry against the contract's base ref, probes push capability,
// and always persists an evidence record of what it saw, allow or deny.
package gate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/decision"
	"github.com/entrhq/packetgate/pkg/gitx"
	"github.com/entrhq/packetgate/pkg/logging"
)

// EvidenceFile is the gate's evidence record name under the packet out dir.
const EvidenceFile = "g0_enter_work.json"

// Request carries the gate's inputs. Contract loading happens outside the
// gate; a load failure is passed in via ContractErr so the gate can deny and
// still write evidence.
type Request struct {
	Contract    *contract.Contract
	ContractErr error
	// EvidenceOut overrides the evidence record path when non-empty.
	EvidenceOut string
}

// Gate runs the G0 admission sequence.
type Gate struct {
	git gitx.Git
	log *logging.Logger
}

// New creates a gate backed by the given git adapter. A nil logger falls
// back to a fresh component logger.
func New(git gitx.Git, log *logging.Logger) *Gate {
	if log == nil {
		log, _ = logging.New("gate")
	}
	return &Gate{git: git, log: log}
}

// Result is the gate's outcome. ExitCode is 0 on allow and 2 on deny,
// matching the process exit contract.
type Result struct {
	Decision     *decision.Decision
	Evidence     *Evidence
	EvidencePath string
	ExitCode     int
	// WriteErr is set when the evidence record could not be persisted.
	// The decision still stands; the exit code is the remaining signal.
	WriteErr error
}

// Evidence is the persisted record of one gate invocation. Every
// intermediate value survives, including values gathered before a denial.
type Evidence struct {
	Stage                string    `json:"stage"`
	RunID                string    `json:"run_id"`
	TimestampUTC         string    `json:"timestamp_utc"`
	RepoRoot             string    `json:"repo_root,omitempty"`
	PacketID             string    `json:"packet_id"`
	Branch               string    `json:"branch"`
	BaseRef              string    `json:"base_ref"`
	BaseSHA              string    `json:"base_sha,omitempty"`
	HeadRef              string    `json:"head_ref,omitempty"`
	HeadSHA              string    `json:"head_sha,omitempty"`
	GitHubOpsRequired    bool      `json:"github_ops_required"`
	WorktreeRoot         string    `json:"worktree_root"`
	DenyIfWorktreeExists bool      `json:"deny_if_worktree_exists"`
	WorktreePath         string    `json:"worktree_path,omitempty"`
	WorktreeCreated      bool      `json:"worktree_created"`
	WorktreeReused       bool      `json:"worktree_reused"`
	Collision            bool      `json:"collision"`
	MismatchDetail       string    `json:"mismatch_detail,omitempty"`
	BaseRefIsAncestor    *bool     `json:"base_ref_is_ancestor"`
	PushProbe            PushProbe `json:"push_probe"`
	Decision             string    `json:"decision"`
	DenyCode             string    `json:"deny_code,omitempty"`
	Message              string    `json:"message,omitempty"`
}

// PushProbe is the serialized dry-run push result. Every field is set when
// the probe ran; a skipped probe serializes as an empty object.
type PushProbe struct {
	RC     *int    `json:"rc,omitempty"`
	Stdout *string `json:"stdout,omitempty"`
	Stderr *string `json:"stderr,omitempty"`
}

func utcNow() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// Run executes the admission sequence. Checks only run while the decision is
// still allowing; once denied, the remaining steps are skipped but evidence
// for completed steps is preserved. The evidence record is written no matter
// which branch executes.
func (g *Gate) Run(ctx context.Context, req Request) *Result {
	dec := decision.New()
	ev := &Evidence{
		Stage:        "G0",
		RunID:        uuid.New().String(),
		TimestampUTC: utcNow(),
	}

	c := req.Contract
	denyIfExists := true
	worktreeRoot := contract.DefaultWorktreeRoot

	// Contract completeness.
	if req.ContractErr != nil || c == nil {
		msg := "contract parse failed"
		if req.ContractErr != nil {
			msg = req.ContractErr.Error()
		}
		dec.Deny(decision.CodeWorktreeMismatch, msg)
	} else {
		ev.PacketID = c.PacketID
		ev.Branch = c.Branch
		ev.BaseRef = c.BaseRef
		ev.GitHubOpsRequired = c.GitHubOpsRequired
		worktreeRoot = c.WorktreeRoot()
		denyIfExists = c.DenyIfWorktreeExists()
		if err := c.Validate(); err != nil {
			dec.Deny(decision.CodeWorktreeMismatch, err.Error())
		}
	}
	ev.WorktreeRoot = worktreeRoot
	ev.DenyIfWorktreeExists = denyIfExists

	// Repository presence.
	repoRoot, err := g.git.TopLevel(ctx)
	if err != nil {
		dec.Deny(decision.CodeWorktreeMismatch, "not a git repository")
	} else {
		ev.RepoRoot = repoRoot
	}

	var wtPath string
	if repoRoot != "" && ev.PacketID != "" {
		wtPath = filepath.Join(repoRoot, worktreeRoot, ev.PacketID)
		ev.WorktreePath = wtPath
	}

	var registry map[string]gitx.WorktreeEntry
	if dec.Allow() && repoRoot != "" {
		registry = g.git.ListWorktrees(ctx, repoRoot)
	}

	exists := false
	if wtPath != "" {
		if _, statErr := os.Stat(wtPath); statErr == nil {
			exists = true
		}
	}

	// Collision: path exists and policy forbids reuse.
	if dec.Allow() && exists && denyIfExists {
		g.log.Warnf("worktree collision at %s (deny_if_worktree_exists)", wtPath)
		dec.Deny(decision.CodeWorktreeCollision, "worktree exists and deny_if_worktree_exists=true")
	}

	// Collision: path exists but the registry does not know it.
	if dec.Allow() && exists && !isRegistered(registry, wtPath) {
		ev.Collision = true
		g.log.Warnf("worktree path %s exists but is not registered", wtPath)
		dec.Deny(decision.CodeWorktreeCollision, "worktree path exists but is not registered")
	}

	// Reuse: registered worktree must be bound to the contract branch.
	if dec.Allow() && exists {
		entry := lookupEntry(registry, wtPath)
		if entry.Branch == "" || entry.Branch != ev.Branch {
			ev.MismatchDetail = fmt.Sprintf("branch mismatch: expected %s, found %s", ev.Branch, entry.Branch)
			dec.Deny(decision.CodeWorktreeMismatch, ev.MismatchDetail)
		} else {
			ev.WorktreeReused = true
			g.log.Infof("reusing worktree %s on branch %s", wtPath, entry.Branch)
		}
	}

	// Creation: attach to an existing local branch, or create it from base.
	if dec.Allow() && wtPath != "" && !exists {
		if mkErr := os.MkdirAll(filepath.Join(repoRoot, worktreeRoot), 0o755); mkErr != nil {
			dec.Deny(decision.CodeWorktreeMismatch, fmt.Sprintf("git worktree add failed: %v", mkErr))
		} else {
			var addErr error
			if g.git.LocalBranchExists(ctx, repoRoot, ev.Branch) {
				addErr = g.git.AddWorktree(ctx, repoRoot, wtPath, ev.Branch)
			} else {
				addErr = g.git.AddWorktreeNewBranch(ctx, repoRoot, wtPath, ev.Branch, ev.BaseRef)
			}
			if addErr != nil {
				dec.Deny(decision.CodeWorktreeMismatch, addErr.Error())
			} else {
				ev.WorktreeCreated = true
				g.log.Infof("created worktree %s on branch %s from %s", wtPath, ev.Branch, ev.BaseRef)
			}
		}
	}

	// In-progress operation guard.
	if dec.Allow() && wtPath != "" {
		if gitDir, gdErr := g.git.GitDir(ctx, wtPath); gdErr == nil && gitx.OpInProgress(gitDir) {
			dec.Deny(decision.CodeGitOpInProgress, "git operation in progress in worktree")
		}
	}

	// Ancestry: the resolved base must be the merge base with worktree HEAD.
	if dec.Allow() && wtPath != "" && repoRoot != "" && ev.BaseRef != "" {
		if baseSHA, rvErr := g.git.ResolveRef(ctx, repoRoot, ev.BaseRef); rvErr == nil {
			ev.BaseSHA = baseSHA
		}
		if headSHA, hErr := g.git.Head(ctx, wtPath); hErr == nil {
			ev.HeadSHA = headSHA
		}
		if headRef, hrErr := g.git.HeadRef(ctx, wtPath); hrErr == nil {
			ev.HeadRef = headRef
		}
		if ev.BaseSHA != "" {
			ancestor := false
			if mb, mbErr := g.git.MergeBase(ctx, wtPath, ev.HeadSHA, ev.BaseSHA); mbErr == nil {
				ancestor = mb == ev.BaseSHA
			}
			ev.BaseRefIsAncestor = &ancestor
			if !ancestor {
				dec.Deny(decision.CodeWorktreeMismatch, "base_ref is not an ancestor of worktree HEAD")
			}
		}
	}

	// Push probe: audit-only unless github ops are required.
	if dec.Allow() && wtPath != "" {
		probe := g.git.DryRunPush(ctx, wtPath, "origin", "HEAD:"+ev.Branch)
		ev.PushProbe = PushProbe{RC: &probe.RC, Stdout: &probe.Stdout, Stderr: &probe.Stderr}
		if ev.GitHubOpsRequired && probe.RC != 0 {
			dec.Deny(decision.CodePushDenied, "git push --dry-run failed")
		}
	}

	ev.Decision = dec.Verdict()
	ev.DenyCode = string(dec.Code())
	ev.Message = dec.Message()

	evidencePath := g.evidencePath(req, repoRoot)
	writeErr := writeEvidence(evidencePath, ev)
	if writeErr != nil {
		g.log.Errorf("failed to write gate evidence to %s: %v", evidencePath, writeErr)
	}

	exitCode := 0
	if !dec.Allow() {
		exitCode = 2
		g.log.Warnf("G0 denied packet %q: %s %s", ev.PacketID, ev.DenyCode, ev.Message)
	} else {
		g.log.Infof("G0 allowed packet %q (created=%v reused=%v)", ev.PacketID, ev.WorktreeCreated, ev.WorktreeReused)
	}

	return &Result{
		Decision:     dec,
		Evidence:     ev,
		EvidencePath: evidencePath,
		ExitCode:     exitCode,
		WriteErr:     writeErr,
	}
}

// evidencePath resolves where the record lands: the explicit override, or
// <out_dir>/<packet_id>/g0_enter_work.json with "unknown" filling in for an
// unparseable contract.
func (g *Gate) evidencePath(req Request, repoRoot string) string {
	if req.EvidenceOut != "" {
		return req.EvidenceOut
	}
	outDir := contract.DefaultOutDir
	packetID := "unknown"
	if req.Contract != nil {
		outDir = req.Contract.OutDir()
		if req.Contract.PacketID != "" {
			packetID = req.Contract.PacketID
		}
	}
	base := outDir
	if repoRoot != "" && !filepath.IsAbs(outDir) {
		base = filepath.Join(repoRoot, outDir)
	}
	return filepath.Join(base, packetID, EvidenceFile)
}

func isRegistered(registry map[string]gitx.WorktreeEntry, wtPath string) bool {
	resolved := resolvePath(wtPath)
	for path := range registry {
		if resolvePath(path) == resolved {
			return true
		}
	}
	return false
}

func lookupEntry(registry map[string]gitx.WorktreeEntry, wtPath string) gitx.WorktreeEntry {
	if entry, ok := registry[wtPath]; ok {
		return entry
	}
	resolved := resolvePath(wtPath)
	for path, entry := range registry {
		if resolvePath(path) == resolved {
			return entry
		}
	}
	return gitx.WorktreeEntry{}
}

// resolvePath normalizes a path for registry comparison, following symlinks
// when the path exists.
func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
