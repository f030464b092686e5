package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/decision"
	"github.com/entrhq/packetgate/pkg/gitx"
	"github.com/entrhq/packetgate/pkg/logging"
)

// Request carries the harness inputs. Contract and meta loading happen
// outside; a contract load failure arrives via ContractErr so the harness
// can fall back to a minimal bundle instead of aborting.
type Request struct {
	Contract    *contract.Contract
	ContractErr error
	Meta        *Meta
}

// Harness captures repository state and reconciles it against the contract.
type Harness struct {
	git gitx.Git
	log *logging.Logger
}

// New creates a harness backed by the given git adapter. A nil logger falls
// back to a fresh component logger.
func New(git gitx.Git, log *logging.Logger) *Harness {
	if log == nil {
		log, _ = logging.New("evidence")
	}
	return &Harness{git: git, log: log}
}

func utcNow() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// Collect produces the evidence bundle. It always writes something: a full
// bundle under <out_dir>/<packet_id>, or a minimal record under a synthetic
// "unknown" packet when the repository or contract is unavailable.
func (h *Harness) Collect(ctx context.Context, req Request) *Result {
	generatedAt := utcNow()

	root, err := h.git.TopLevel(ctx)
	if err != nil {
		h.log.Errorf("repository not found: %v", err)
		return h.minimalBundle("", generatedAt, err)
	}

	if req.ContractErr != nil || req.Contract == nil {
		loadErr := req.ContractErr
		if loadErr == nil {
			loadErr = fmt.Errorf("no contract supplied")
		}
		h.log.Errorf("contract unavailable: %v", loadErr)
		return h.minimalBundle(root, generatedAt, loadErr)
	}

	c := req.Contract
	meta := req.Meta
	if meta == nil {
		meta = &Meta{}
	}

	packetID := c.PacketID
	if packetID == "" {
		packetID = "unknown"
	}

	outDir := c.OutDir()
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	outDir = filepath.Join(outDir, packetID)
	rawDir := filepath.Join(outDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		h.log.Errorf("failed to create bundle directory: %v", err)
		return h.minimalBundle(root, generatedAt, err)
	}

	wt := h.resolveWorktree(root, c, meta)
	h.log.Infof("collecting evidence for packet %q from %s", packetID, wt)

	// Before/after snapshots: existing raw files win, making re-invocation
	// idempotent even after the repository has moved on.
	headBefore := trimmed(reuseOrCaptureLogged(h, filepath.Join(rawDir, rawHeadBefore), func() string {
		out, err := h.git.Head(ctx, wt)
		return captureString(out, err)
	}))
	statusBefore := statusLines(reuseOrCaptureLogged(h, filepath.Join(rawDir, rawStatusBefore), func() string {
		out, err := h.git.StatusPorcelain(ctx, wt)
		return captureString(out, err)
	}))
	headAfter := trimmed(reuseOrCaptureLogged(h, filepath.Join(rawDir, rawHeadAfter), func() string {
		out, err := h.git.Head(ctx, wt)
		return captureString(out, err)
	}))
	statusAfter := statusLines(reuseOrCaptureLogged(h, filepath.Join(rawDir, rawStatusAfter), func() string {
		out, err := h.git.StatusPorcelain(ctx, wt)
		return captureString(out, err)
	}))

	// Diffs relative to the before head cover committed and uncommitted work.
	diffNameOnly := nonEmptyLines(captureString(h.git.DiffNameOnly(ctx, wt, headBefore)))
	h.persistRaw(rawDir, rawDiffNameOnly, joinLines(diffNameOnly))

	diffStat := captureString(h.git.DiffStat(ctx, wt, headBefore))
	h.persistRaw(rawDir, rawDiffStat, diffStat)

	showRef := headAfter
	if showRef == "" {
		showRef = "HEAD"
	}
	showNameOnly := nonEmptyLines(captureString(h.git.ShowNameOnly(ctx, wt, showRef)))
	h.persistRaw(rawDir, rawShowNameOnlyAfter, joinLines(showNameOnly))

	var patchFiles []FilePatch
	if c.Evidence.IncludeGitDiffPatch {
		patch := captureString(h.git.DiffPatch(ctx, wt, headBefore))
		h.persistRaw(rawDir, rawDiffPatch, patch)
		patchFiles = parsePatchStats(patch)
	}

	// Union of diff and status paths catches untracked files the numeric
	// diff would miss.
	statusPathsAfter := pathsFromPorcelain(statusAfter)
	changedPaths := unionSorted(diffNameOnly, statusPathsAfter)
	h.persistRaw(rawDir, rawChangedPaths, joinLines(changedPaths))

	added, deleted, trackedFiles := parseNumstat(captureString(h.git.DiffNumstat(ctx, wt, headBefore)))
	changedFiles := len(changedPaths)
	totalLines := added + deleted

	violations := evaluateConstraints(c, changedPaths, statusPathsAfter, changedFiles, totalLines)
	for _, v := range violations {
		h.log.Warnf("constraint violation %s: %v", v.Code, v.Details)
	}

	tests := h.testOutcome(c, meta, rawDir)
	dec, reasons := finalDecision(meta, violations)

	bundle := &Bundle{
		PacketID:       packetID,
		GeneratedAtUTC: generatedAt,
		Repo: RepoInfo{
			Root:    root,
			BaseRef: c.BaseRef,
			Heads:   Heads{Before: headBefore, After: headAfter},
		},
		Worktree: WorktreeInfo{Path: wt, Branch: c.Branch},
		Status: StatusInfo{
			Before: StatusListing{Porcelain: nonNil(statusBefore)},
			After:  StatusListing{Porcelain: nonNil(statusAfter)},
		},
		Diff: DiffInfo{
			NameOnly:            nonNil(diffNameOnly),
			Stat:                trimmed(diffStat),
			ChangedFiles:        changedFiles,
			TrackedFilesChanged: trackedFiles,
			LinesAdded:          added,
			LinesDeleted:        deleted,
			Files:               patchFiles,
		},
		Constraints: ConstraintsInfo{
			AllowedPaths:     nonNil(c.AllowedPaths),
			ForbiddenOutputs: nonNil(c.ForbiddenOutputs),
			Violations:       violations,
		},
		Tests: tests,
		Runner: RunnerInfo{
			Version: meta.RunnerVersion,
			Meta:    meta.Raw,
		},
		Decision: dec.Verdict(),
		Reasons:  reasons,
	}
	if bundle.Constraints.Violations == nil {
		bundle.Constraints.Violations = []Violation{}
	}

	if err := h.writeBundle(outDir, bundle); err != nil {
		h.log.Errorf("failed to write bundle: %v", err)
	}

	if _, err := writeManifest(outDir, generatedAt); err != nil {
		h.log.Errorf("failed to write manifest: %v", err)
	}

	// Re-serialize once more with the finalized artifact index. The manifest
	// deliberately covers the pre-index evidence.json bytes.
	bundle.Artifacts = ArtifactsIndex{
		Raw:            listRawFiles(outDir),
		Manifest:       manifestFile,
		ManifestSHA256: manifestSumFile,
	}
	if err := h.writeBundle(outDir, bundle); err != nil {
		h.log.Errorf("failed to rewrite bundle with artifacts: %v", err)
	}

	exitCode := 0
	if bundle.Decision != "ALLOW" {
		exitCode = 2
	}
	h.log.Infof("evidence bundle for %q complete: %s (%d violations)", packetID, bundle.Decision, len(violations))

	return &Result{Bundle: bundle, OutDir: outDir, ExitCode: exitCode}
}

// resolveWorktree prefers the runner-reported path, then the deterministic
// worktree location, then the repository root.
func (h *Harness) resolveWorktree(root string, c *contract.Contract, meta *Meta) string {
	if meta.WorktreePath != "" {
		return meta.WorktreePath
	}
	if c.PacketID != "" {
		candidate := filepath.Join(root, c.WorktreeRoot(), c.PacketID)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return root
}

func (h *Harness) testOutcome(c *contract.Contract, meta *Meta, rawDir string) TestsInfo {
	tests := TestsInfo{Command: c.Run.TestCmd, ExitCode: meta.TestRC}
	switch {
	case c.Run.TestCmd == "":
		tests.Result = TestSkip
	case meta.TestRC == nil:
		tests.Result = TestUnknown
	case *meta.TestRC == 0:
		tests.Result = TestPass
	default:
		tests.Result = TestFail
	}
	if _, err := os.Stat(filepath.Join(rawDir, rawTests)); err == nil {
		p := relRawPath(rawTests)
		tests.RawPath = &p
	}
	return tests
}

// finalDecision applies the harness's authority: observed violations deny
// regardless of the runner's declared decision, and an overridden ALLOW
// gains a constraint_violations reason.
func finalDecision(meta *Meta, violations []Violation) (*decision.Decision, []string) {
	dec := decision.New()
	if len(violations) > 0 {
		dec.Deny(decision.Code(violations[0].Code), "constraint violations present")
	}
	if meta.Decision == "DENY" {
		dec.Deny(decision.CodeWorktreeMismatch, "runner declared DENY")
	}

	reasons := append([]string{}, meta.Reasons...)
	if len(violations) > 0 && meta.Decision == "ALLOW" {
		reasons = append(reasons, "constraint_violations")
	}
	return dec, reasons
}

func (h *Harness) writeBundle(outDir string, bundle *Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "evidence.json"), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write evidence.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "evidence.md"), []byte(renderMarkdown(bundle)), 0o600); err != nil {
		return fmt.Errorf("failed to write evidence.md: %w", err)
	}
	return nil
}

// minimalBundle is the degradation path: a bare record under a synthetic
// "unknown" packet id, so that even unrecoverable setups leave evidence.
func (h *Harness) minimalBundle(root, generatedAt string, cause error) *Result {
	outDir := contract.DefaultOutDir
	if root != "" {
		outDir = filepath.Join(root, outDir)
	}
	outDir = filepath.Join(outDir, "unknown")
	_ = os.MkdirAll(filepath.Join(outDir, "raw"), 0o755)

	record := map[string]any{
		"generated_at_utc": generatedAt,
		"error":            cause.Error(),
	}
	if data, err := json.MarshalIndent(record, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(outDir, "evidence.json"), append(data, '\n'), 0o600)
	}
	return &Result{OutDir: outDir, ExitCode: 2}
}

func (h *Harness) persistRaw(rawDir, name, content string) {
	if err := writeText(filepath.Join(rawDir, name), content); err != nil {
		h.log.Errorf("failed to persist raw/%s: %v", name, err)
	}
}

func reuseOrCaptureLogged(h *Harness, path string, capture func() string) string {
	value, err := reuseOrCapture(path, capture)
	if err != nil {
		h.log.Errorf("failed to persist snapshot %s: %v", filepath.Base(path), err)
	}
	return value
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func unionSorted(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
