package gitx

import (
	"os"
	"path/filepath"
	"strings"
)

// ParseWorktreeList parses `git worktree list --porcelain` output into a
// mapping from absolute worktree path to its registry entry. Full ref names
// normalize to short branch names; detached worktrees carry an empty branch.
func ParseWorktreeList(out string) map[string]WorktreeEntry {
	entries := map[string]WorktreeEntry{}
	var current WorktreeEntry
	flush := func() {
		if current.Path != "" {
			entries[current.Path] = current
		}
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = WorktreeEntry{Path: strings.TrimSpace(strings.TrimPrefix(line, "worktree "))}
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimSpace(strings.TrimPrefix(line, "branch "))
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	flush()
	return entries
}

// opMarkers are the control-directory entries left behind by an unfinished
// git operation.
var opMarkers = []string{
	"rebase-apply",
	"rebase-merge",
	"MERGE_HEAD",
	"CHERRY_PICK_HEAD",
	"REVERT_HEAD",
	"BISECT_LOG",
	"BISECT_NAMES",
}

// OpInProgress reports whether the git dir carries a marker of an unfinished
// rebase, merge, cherry-pick, revert, or bisect.
func OpInProgress(gitDir string) bool {
	for _, name := range opMarkers {
		if _, err := os.Stat(filepath.Join(gitDir, name)); err == nil {
			return true
		}
	}
	return false
}
