package gitx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Exec runs git as a subprocess. Commands block until the underlying
// process exits; there is no internal timeout.
type Exec struct{}

var _ Git = (*Exec)(nil)

// NewExec returns a subprocess-backed Git adapter.
func NewExec() *Exec {
	return &Exec{}
}

// run executes git with the given arguments, capturing stdout and stderr
// separately. The exit code is returned even on failure so probes can record
// it without treating the failure as an error.
func (e *Exec) run(ctx context.Context, dir string, args ...string) (stdout, stderr string, rc int, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			rc = exitErr.ExitCode()
		} else {
			rc = -1
		}
		return stdout, stderr, rc, fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return stdout, stderr, 0, nil
}

func (e *Exec) TopLevel(ctx context.Context) (string, error) {
	out, stderr, _, err := e.run(ctx, "", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %s", strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(out), nil
}

func (e *Exec) GitDir(ctx context.Context, dir string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	gd := strings.TrimSpace(out)
	if !filepath.IsAbs(gd) {
		gd = filepath.Join(dir, gd)
	}
	return filepath.Clean(gd), nil
}

func (e *Exec) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "rev-parse", "--verify", ref)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Exec) Head(ctx context.Context, dir string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Exec) HeadRef(ctx context.Context, dir string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Exec) LocalBranchExists(ctx context.Context, dir, branch string) bool {
	_, _, _, err := e.run(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func (e *Exec) ListWorktrees(ctx context.Context, dir string) map[string]WorktreeEntry {
	out, _, _, err := e.run(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return map[string]WorktreeEntry{}
	}
	return ParseWorktreeList(out)
}

func (e *Exec) AddWorktree(ctx context.Context, dir, path, branch string) error {
	_, stderr, _, err := e.run(ctx, dir, "worktree", "add", path, branch)
	if err != nil {
		return fmt.Errorf("git worktree add failed: %s", firstNonEmpty(strings.TrimSpace(stderr), err.Error()))
	}
	return nil
}

func (e *Exec) AddWorktreeNewBranch(ctx context.Context, dir, path, branch, base string) error {
	_, stderr, _, err := e.run(ctx, dir, "worktree", "add", "-b", branch, path, base)
	if err != nil {
		return fmt.Errorf("git worktree add failed: %s", firstNonEmpty(strings.TrimSpace(stderr), err.Error()))
	}
	return nil
}

func (e *Exec) MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "merge-base", a, b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (e *Exec) DryRunPush(ctx context.Context, dir, remote, refspec string) PushProbe {
	stdout, stderr, rc, _ := e.run(ctx, dir, "push", "--dry-run", "-u", remote, refspec)
	return PushProbe{RC: rc, Stdout: stdout, Stderr: stderr}
}

func (e *Exec) DiffNameOnly(ctx context.Context, dir, base string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "diff", "--name-only", base)
	return out, err
}

func (e *Exec) DiffStat(ctx context.Context, dir, base string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "diff", "--stat", base)
	return out, err
}

func (e *Exec) DiffNumstat(ctx context.Context, dir, base string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "diff", "--numstat", base)
	return out, err
}

func (e *Exec) DiffPatch(ctx context.Context, dir, base string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "diff", base)
	return out, err
}

func (e *Exec) StatusPorcelain(ctx context.Context, dir string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "status", "--porcelain")
	return out, err
}

func (e *Exec) ShowNameOnly(ctx context.Context, dir, ref string) (string, error) {
	out, _, _, err := e.run(ctx, dir, "show", "--name-only", "--pretty=format:", ref)
	return out, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
