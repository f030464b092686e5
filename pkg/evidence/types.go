// Package evidence implements the post-run evidence harness: it reconciles
// before/after repository state against the packet contract's constraints and
// emits a hashed, reproducible bundle as the single source of truth for
// pass/fail. The harness is authoritative; a runner-declared ALLOW cannot
// override observed violations.
package evidence

// Bundle is the structured evidence record persisted as evidence.json.
type Bundle struct {
	PacketID       string          `json:"packet_id"`
	GeneratedAtUTC string          `json:"generated_at_utc"`
	Repo           RepoInfo        `json:"repo"`
	Worktree       WorktreeInfo    `json:"worktree"`
	Status         StatusInfo      `json:"status"`
	Diff           DiffInfo        `json:"diff"`
	Constraints    ConstraintsInfo `json:"constraints"`
	Tests          TestsInfo       `json:"tests"`
	Runner         RunnerInfo      `json:"runner"`
	Decision       string          `json:"decision"`
	Reasons        []string        `json:"reasons"`
	Artifacts      ArtifactsIndex  `json:"artifacts"`
}

// RepoInfo locates the repository and the before/after head commits.
type RepoInfo struct {
	Root    string `json:"root"`
	BaseRef string `json:"base_ref"`
	Heads   Heads  `json:"heads"`
}

// Heads holds the head commit ids captured before and after the run.
type Heads struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// WorktreeInfo names the worktree the evidence was captured from.
type WorktreeInfo struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

// StatusInfo holds the porcelain status listings before and after the run.
type StatusInfo struct {
	Before StatusListing `json:"before"`
	After  StatusListing `json:"after"`
}

// StatusListing is one captured `git status --porcelain` listing.
type StatusListing struct {
	Porcelain []string `json:"porcelain"`
}

// DiffInfo aggregates the observed change set relative to the before head.
type DiffInfo struct {
	NameOnly            []string    `json:"name_only"`
	Stat                string      `json:"stat"`
	ChangedFiles        int         `json:"changed_files"`
	TrackedFilesChanged int         `json:"tracked_files_changed"`
	LinesAdded          int         `json:"lines_added"`
	LinesDeleted        int         `json:"lines_deleted"`
	// Files carries per-file patch stats, populated only when the contract
	// requests the full diff patch.
	Files []FilePatch `json:"files,omitempty"`
}

// FilePatch is the per-file change summary parsed from the diff patch.
type FilePatch struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Deleted int    `json:"deleted"`
}

// ConstraintsInfo echoes the contract's constraint inputs and the observed
// violations.
type ConstraintsInfo struct {
	AllowedPaths     []string    `json:"allowed_paths"`
	ForbiddenOutputs []string    `json:"forbidden_outputs"`
	Violations       []Violation `json:"violations"`
}

// Violation is one observed constraint violation. Multiple violations may
// coexist; all are reported.
type Violation struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

// TestsInfo reports the declared test command's outcome.
type TestsInfo struct {
	Command  string  `json:"command"`
	ExitCode *int    `json:"exit_code"`
	Result   string  `json:"result"`
	RawPath  *string `json:"raw_path"`
}

// Test outcome values.
const (
	TestPass    = "PASS"
	TestFail    = "FAIL"
	TestSkip    = "SKIP"
	TestUnknown = "UNKNOWN"
)

// RunnerInfo passes the external runner's self-report through verbatim.
type RunnerInfo struct {
	Version string         `json:"version,omitempty"`
	Meta    map[string]any `json:"meta"`
}

// ArtifactsIndex references the raw snapshot files and the manifest.
type ArtifactsIndex struct {
	Raw            []string `json:"raw"`
	Manifest       string   `json:"manifest"`
	ManifestSHA256 string   `json:"manifest_sha256"`
}

// Result is the harness outcome: the bundle, where it landed, and the
// process exit code (0 on ALLOW, 2 otherwise).
type Result struct {
	Bundle   *Bundle
	OutDir   string
	ExitCode int
}

// snapshot names under raw/.
const (
	rawHeadBefore        = "head_before.txt"
	rawStatusBefore      = "status_before.txt"
	rawHeadAfter         = "head_after.txt"
	rawStatusAfter       = "status_after.txt"
	rawDiffNameOnly      = "diff_name_only.txt"
	rawDiffStat          = "diffstat.txt"
	rawShowNameOnlyAfter = "show_name_only_after.txt"
	rawChangedPaths      = "changed_paths.txt"
	rawDiffPatch         = "diff_patch.txt"
	rawTests             = "tests.txt"
)
