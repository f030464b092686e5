// Package contract defines the packet contract document: the declarative
// input governing a packet's worktree policy, path and budget constraints,
// and evidence output location. Contracts are immutable inputs supplied per
// invocation; this package only loads and validates them.
package contract

import "fmt"

// Contract is a packet contract document.
type Contract struct {
	PacketID          string         `json:"packet_id" yaml:"packet_id"`
	Branch            string         `json:"branch" yaml:"branch"`
	BaseRef           string         `json:"base_ref" yaml:"base_ref"`
	GitHubOpsRequired bool           `json:"github_ops_required" yaml:"github_ops_required"`
	WorktreePolicy    WorktreePolicy `json:"worktree_policy" yaml:"worktree_policy"`
	AllowedPaths      []string       `json:"allowed_paths" yaml:"allowed_paths"`
	ForbiddenOutputs  []string       `json:"forbidden_outputs" yaml:"forbidden_outputs"`
	Budgets           Budgets        `json:"budgets" yaml:"budgets"`
	Run               RunConfig      `json:"run" yaml:"run"`
	Evidence          EvidenceConfig `json:"evidence" yaml:"evidence"`
}

// WorktreePolicy controls where the packet's worktree lives and whether an
// existing worktree path is a hard collision.
type WorktreePolicy struct {
	WorktreeRoot string `json:"worktree_root" yaml:"worktree_root"`
	// DenyIfWorktreeExists defaults to true when absent.
	DenyIfWorktreeExists *bool `json:"deny_if_worktree_exists" yaml:"deny_if_worktree_exists"`
}

// Budgets caps the observable change set. A nil limit means unlimited.
type Budgets struct {
	MaxChangedFiles *int `json:"max_changed_files" yaml:"max_changed_files"`
	MaxChangedLines *int `json:"max_changed_lines" yaml:"max_changed_lines"`
}

// RunConfig describes how the external runner exercises the packet.
type RunConfig struct {
	TestCmd string `json:"test_cmd" yaml:"test_cmd"`
}

// EvidenceConfig controls where and how the evidence bundle is written.
type EvidenceConfig struct {
	OutDir              string `json:"out_dir" yaml:"out_dir"`
	IncludeGitDiffPatch bool   `json:"include_git_diff_patch" yaml:"include_git_diff_patch"`
}

const (
	// DefaultWorktreeRoot is used when the policy leaves worktree_root empty.
	DefaultWorktreeRoot = ".packetgate/worktrees"
	// DefaultOutDir is used when evidence.out_dir is empty.
	DefaultOutDir = ".packetgate/out"
)

// Validate checks contract completeness: packet_id, branch, and base_ref
// must all be non-empty.
func (c *Contract) Validate() error {
	if c.PacketID == "" || c.Branch == "" || c.BaseRef == "" {
		return fmt.Errorf("contract missing packet_id/branch/base_ref")
	}
	return nil
}

// WorktreeRoot returns the configured worktree root, or the default.
func (c *Contract) WorktreeRoot() string {
	if c.WorktreePolicy.WorktreeRoot != "" {
		return c.WorktreePolicy.WorktreeRoot
	}
	return DefaultWorktreeRoot
}

// DenyIfWorktreeExists returns the collision policy, defaulting to true.
func (c *Contract) DenyIfWorktreeExists() bool {
	if c.WorktreePolicy.DenyIfWorktreeExists == nil {
		return true
	}
	return *c.WorktreePolicy.DenyIfWorktreeExists
}

// OutDir returns the evidence output root, or the default.
func (c *Contract) OutDir() string {
	if c.Evidence.OutDir != "" {
		return c.Evidence.OutDir
	}
	return DefaultOutDir
}
