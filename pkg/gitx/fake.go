package gitx

import (
	"context"
	"fmt"
	"path/filepath"
)

// AddCall records one worktree creation issued against the Fake.
type AddCall struct {
	Path   string
	Branch string
	Base   string
}

// Fake is an in-memory Git adapter for deterministic tests. Zero-value maps
// are treated as empty; unset lookups fail the way a missing ref would.
type Fake struct {
	// Root is the repository top level. Empty means "not a git repository".
	Root string

	GitDirs     map[string]string        // worktree dir -> git dir
	Refs        map[string]string        // ref -> commit id
	Heads       map[string]string        // worktree dir -> HEAD commit id
	HeadRefs    map[string]string        // worktree dir -> abbreviated ref
	Branches    map[string]bool          // local branch names
	BranchHeads map[string]string        // branch -> commit id, used on attach
	Worktrees   map[string]WorktreeEntry // registry
	MergeBases  map[string]string        // "<a> <b>" -> commit id
	Push        PushProbe
	AddErr      error
	Added       []AddCall

	NameOnly map[string]string // worktree dir -> diff --name-only output
	Stat     map[string]string
	Numstat  map[string]string
	Patch    map[string]string
	Status   map[string]string
	ShowOut  map[string]string
}

var _ Git = (*Fake)(nil)

func (f *Fake) TopLevel(ctx context.Context) (string, error) {
	if f.Root == "" {
		return "", fmt.Errorf("not a git repository")
	}
	return f.Root, nil
}

func (f *Fake) GitDir(ctx context.Context, dir string) (string, error) {
	if gd, ok := f.GitDirs[dir]; ok {
		return gd, nil
	}
	return filepath.Join(dir, ".git"), nil
}

func (f *Fake) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	if sha, ok := f.Refs[ref]; ok {
		return sha, nil
	}
	return "", fmt.Errorf("unknown ref: %s", ref)
}

func (f *Fake) Head(ctx context.Context, dir string) (string, error) {
	if sha, ok := f.Heads[dir]; ok {
		return sha, nil
	}
	return "", fmt.Errorf("no HEAD for %s", dir)
}

func (f *Fake) HeadRef(ctx context.Context, dir string) (string, error) {
	if ref, ok := f.HeadRefs[dir]; ok {
		return ref, nil
	}
	return "", fmt.Errorf("no HEAD ref for %s", dir)
}

func (f *Fake) LocalBranchExists(ctx context.Context, dir, branch string) bool {
	return f.Branches[branch]
}

func (f *Fake) ListWorktrees(ctx context.Context, dir string) map[string]WorktreeEntry {
	out := make(map[string]WorktreeEntry, len(f.Worktrees))
	for k, v := range f.Worktrees {
		out[k] = v
	}
	return out
}

// register wires a freshly added worktree into the fake's registry and HEAD
// maps so post-creation checks see a consistent repository.
func (f *Fake) register(path, branch, head string) {
	if f.Worktrees == nil {
		f.Worktrees = map[string]WorktreeEntry{}
	}
	if f.Heads == nil {
		f.Heads = map[string]string{}
	}
	if f.HeadRefs == nil {
		f.HeadRefs = map[string]string{}
	}
	if f.Branches == nil {
		f.Branches = map[string]bool{}
	}
	f.Worktrees[path] = WorktreeEntry{Path: path, Branch: branch}
	f.Heads[path] = head
	f.HeadRefs[path] = branch
	f.Branches[branch] = true
}

func (f *Fake) AddWorktree(ctx context.Context, dir, path, branch string) error {
	f.Added = append(f.Added, AddCall{Path: path, Branch: branch})
	if f.AddErr != nil {
		return f.AddErr
	}
	f.register(path, branch, f.BranchHeads[branch])
	return nil
}

func (f *Fake) AddWorktreeNewBranch(ctx context.Context, dir, path, branch, base string) error {
	f.Added = append(f.Added, AddCall{Path: path, Branch: branch, Base: base})
	if f.AddErr != nil {
		return f.AddErr
	}
	f.register(path, branch, f.Refs[base])
	return nil
}

func (f *Fake) MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	if a == b {
		return a, nil
	}
	if sha, ok := f.MergeBases[a+" "+b]; ok {
		return sha, nil
	}
	if sha, ok := f.MergeBases[b+" "+a]; ok {
		return sha, nil
	}
	return "", fmt.Errorf("no merge base for %s and %s", a, b)
}

func (f *Fake) DryRunPush(ctx context.Context, dir, remote, refspec string) PushProbe {
	return f.Push
}

func (f *Fake) DiffNameOnly(ctx context.Context, dir, base string) (string, error) {
	return f.NameOnly[dir], nil
}

func (f *Fake) DiffStat(ctx context.Context, dir, base string) (string, error) {
	return f.Stat[dir], nil
}

func (f *Fake) DiffNumstat(ctx context.Context, dir, base string) (string, error) {
	return f.Numstat[dir], nil
}

func (f *Fake) DiffPatch(ctx context.Context, dir, base string) (string, error) {
	return f.Patch[dir], nil
}

func (f *Fake) StatusPorcelain(ctx context.Context, dir string) (string, error) {
	return f.Status[dir], nil
}

func (f *Fake) ShowNameOnly(ctx context.Context, dir, ref string) (string, error) {
	return f.ShowOut[dir], nil
}
