// Package gitx wraps the git operations the admission gate and evidence
// harness rely on behind a narrow capability interface. The Exec adapter
// shells out to the git binary; the Fake adapter backs deterministic tests.
package gitx

import "context"

// WorktreeEntry is one row of the live worktree registry, with the bound
// branch resolved from its full ref name to a short branch name.
type WorktreeEntry struct {
	Path   string
	Branch string
}

// PushProbe captures the outcome of a dry-run push. A non-zero RC means the
// probe failed; Stdout/Stderr carry the raw command output for evidence.
type PushProbe struct {
	RC     int    `json:"rc"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Git is the capability surface over the version-control system. Every
// method is a blocking call; cancellation only happens through ctx.
type Git interface {
	// TopLevel returns the absolute path of the repository root containing
	// the current working directory.
	TopLevel(ctx context.Context) (string, error)

	// GitDir returns the resolved control metadata directory for the
	// worktree at dir.
	GitDir(ctx context.Context, dir string) (string, error)

	// ResolveRef resolves a ref to a full commit id within dir.
	ResolveRef(ctx context.Context, dir, ref string) (string, error)

	// Head returns the commit id of HEAD in dir.
	Head(ctx context.Context, dir string) (string, error)

	// HeadRef returns the abbreviated ref name of HEAD in dir.
	HeadRef(ctx context.Context, dir string) (string, error)

	// LocalBranchExists reports whether refs/heads/<branch> exists in dir.
	LocalBranchExists(ctx context.Context, dir, branch string) bool

	// ListWorktrees parses the live worktree registry rooted at dir.
	// An empty or failing registry yields an empty map, never an error.
	ListWorktrees(ctx context.Context, dir string) map[string]WorktreeEntry

	// AddWorktree attaches a new worktree at path to an existing local branch.
	AddWorktree(ctx context.Context, dir, path, branch string) error

	// AddWorktreeNewBranch creates branch from base and attaches a new
	// worktree at path to it.
	AddWorktreeNewBranch(ctx context.Context, dir, path, branch, base string) error

	// MergeBase returns the merge base of two commits within dir.
	MergeBase(ctx context.Context, dir, a, b string) (string, error)

	// DryRunPush probes push capability for refspec against remote without
	// mutating the remote.
	DryRunPush(ctx context.Context, dir, remote, refspec string) PushProbe

	// DiffNameOnly lists paths changed relative to base.
	DiffNameOnly(ctx context.Context, dir, base string) (string, error)

	// DiffStat returns the human diff summary relative to base.
	DiffStat(ctx context.Context, dir, base string) (string, error)

	// DiffNumstat returns the numeric per-file added/deleted summary
	// relative to base.
	DiffNumstat(ctx context.Context, dir, base string) (string, error)

	// DiffPatch returns the full patch relative to base.
	DiffPatch(ctx context.Context, dir, base string) (string, error)

	// StatusPorcelain returns the machine-readable working tree status.
	StatusPorcelain(ctx context.Context, dir string) (string, error)

	// ShowNameOnly lists the files of the commit at ref.
	ShowNameOnly(ctx context.Context, dir, ref string) (string, error)
}
