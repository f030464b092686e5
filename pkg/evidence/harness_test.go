package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/packetgate/pkg/contract"
	"github.com/entrhq/packetgate/pkg/gitx"
)

const (
	shaBefore = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func intPtr(n int) *int { return &n }

func harnessFixture(t *testing.T) (*gitx.Fake, *contract.Contract, string) {
	t.Helper()
	root := t.TempDir()
	f := &gitx.Fake{
		Root:  root,
		Heads: map[string]string{root: shaBefore},
	}
	c := &contract.Contract{
		PacketID: "PKT-001",
		Branch:   "work/pkt-001",
		BaseRef:  "main",
		Evidence: contract.EvidenceConfig{OutDir: "out"},
	}
	return f, c, root
}

func collect(t *testing.T, f *gitx.Fake, c *contract.Contract, meta *Meta) *Result {
	t.Helper()
	res := New(f, nil).Collect(context.Background(), Request{Contract: c, Meta: meta})
	require.NotNil(t, res)
	return res
}

func readBundle(t *testing.T, outDir string) *Bundle {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outDir, "evidence.json"))
	require.NoError(t, err)
	var b Bundle
	require.NoError(t, json.Unmarshal(data, &b))
	return &b
}

func TestCleanRunAllows(t *testing.T) {
	f, c, root := harnessFixture(t)

	res := collect(t, f, c, nil)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ALLOW", res.Bundle.Decision)
	assert.Equal(t, filepath.Join(root, "out", "PKT-001"), res.OutDir)
	assert.Equal(t, shaBefore, res.Bundle.Repo.Heads.Before)
	assert.Empty(t, res.Bundle.Constraints.Violations)

	// The full persisted layout.
	for _, name := range []string{"evidence.json", "evidence.md", "manifest.json", "manifest.sha256"} {
		assert.FileExists(t, filepath.Join(res.OutDir, name))
	}
	for _, name := range []string{rawHeadBefore, rawStatusBefore, rawHeadAfter, rawStatusAfter, rawDiffNameOnly, rawDiffStat, rawShowNameOnlyAfter, rawChangedPaths} {
		assert.FileExists(t, filepath.Join(res.OutDir, "raw", name))
	}
}

func TestAllowedPathsViolation(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.AllowedPaths = []string{"src/"}
	f.NameOnly = map[string]string{root: "docs/readme.md\n"}
	f.Status = map[string]string{root: " M docs/readme.md\n"}
	f.Numstat = map[string]string{root: "1\t1\tdocs/readme.md\n"}

	res := collect(t, f, c, nil)

	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "DENY", res.Bundle.Decision)
	require.Len(t, res.Bundle.Constraints.Violations, 1)

	v := res.Bundle.Constraints.Violations[0]
	assert.Equal(t, "DIFF_OUTSIDE_ALLOWED_PATHS", v.Code)
	assert.Equal(t, []any{"docs/readme.md"}, toAnySlice(v.Details["bad_paths"]))
}

func TestForbiddenOutputViolation(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.ForbiddenOutputs = []string{"*.bin", "dist/"}
	f.Status = map[string]string{root: "?? build/debug.bin\n?? dist/out.js\n"}

	res := collect(t, f, c, nil)

	assert.Equal(t, 2, res.ExitCode)
	require.Len(t, res.Bundle.Constraints.Violations, 1)

	v := res.Bundle.Constraints.Violations[0]
	assert.Equal(t, "FORBIDDEN_OUTPUT_PRESENT", v.Code)
	assert.Equal(t, []any{"build/debug.bin", "dist/out.js"}, toAnySlice(v.Details["paths"]))
}

func TestBudgetExceeded(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.Budgets.MaxChangedLines = intPtr(10)
	f.NameOnly = map[string]string{root: "src/a.go\n"}
	f.Numstat = map[string]string{root: "4\t8\tsrc/a.go\n"}

	res := collect(t, f, c, nil)

	assert.Equal(t, 2, res.ExitCode)
	require.Len(t, res.Bundle.Constraints.Violations, 1)

	v := res.Bundle.Constraints.Violations[0]
	assert.Equal(t, "DIFF_BUDGET_EXCEEDED", v.Code)
	entries := toAnySlice(v.Details["violations"])
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"max_changed_lines", 12, 10}, toAnySlice(entries[0]))
	assert.Equal(t, 4, res.Bundle.Diff.LinesAdded)
	assert.Equal(t, 8, res.Bundle.Diff.LinesDeleted)
}

func TestChangedFilesBudget(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.Budgets.MaxChangedFiles = intPtr(1)
	f.NameOnly = map[string]string{root: "a.go\nb.go\n"}
	f.Numstat = map[string]string{root: "1\t0\ta.go\n1\t0\tb.go\n"}

	res := collect(t, f, c, nil)

	require.Len(t, res.Bundle.Constraints.Violations, 1)
	assert.Equal(t, "DIFF_BUDGET_EXCEEDED", res.Bundle.Constraints.Violations[0].Code)
	assert.Equal(t, 2, res.Bundle.Diff.ChangedFiles)
}

func TestUntrackedFilesInChangedPaths(t *testing.T) {
	f, c, root := harnessFixture(t)
	f.NameOnly = map[string]string{root: "src/a.go\n"}
	f.Status = map[string]string{root: "?? generated/new.txt\n"}

	res := collect(t, f, c, nil)

	assert.Equal(t, []string{"generated/new.txt", "src/a.go"},
		readLines(t, filepath.Join(res.OutDir, "raw", rawChangedPaths)))
	assert.Equal(t, 2, res.Bundle.Diff.ChangedFiles)
}

func TestMetaAllowOverriddenByViolations(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.AllowedPaths = []string{"src/"}
	f.NameOnly = map[string]string{root: "docs/readme.md\n"}

	meta := &Meta{Decision: "ALLOW", Reasons: []string{"runner says fine"}}
	res := collect(t, f, c, meta)

	assert.Equal(t, "DENY", res.Bundle.Decision)
	assert.Contains(t, res.Bundle.Reasons, "runner says fine")
	assert.Contains(t, res.Bundle.Reasons, "constraint_violations")
}

func TestMetaDenyHonored(t *testing.T) {
	f, c, _ := harnessFixture(t)

	res := collect(t, f, c, &Meta{Decision: "DENY", Reasons: []string{"runner abort"}})

	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "DENY", res.Bundle.Decision)
	assert.Contains(t, res.Bundle.Reasons, "runner abort")
}

func TestTestOutcome(t *testing.T) {
	cases := []struct {
		name    string
		testCmd string
		rc      *int
		want    string
	}{
		{"no command is SKIP", "", nil, TestSkip},
		{"command without rc is UNKNOWN", "go test ./...", nil, TestUnknown},
		{"rc 0 is PASS", "go test ./...", intPtr(0), TestPass},
		{"rc 1 is FAIL", "go test ./...", intPtr(1), TestFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, c, _ := harnessFixture(t)
			c.Run.TestCmd = tc.testCmd

			res := collect(t, f, c, &Meta{TestRC: tc.rc})

			assert.Equal(t, tc.want, res.Bundle.Tests.Result)
		})
	}
}

func TestBeforeSnapshotsImmutable(t *testing.T) {
	f, c, root := harnessFixture(t)

	first := collect(t, f, c, nil)
	headBeforePath := filepath.Join(first.OutDir, "raw", rawHeadBefore)
	original, err := os.ReadFile(headBeforePath)
	require.NoError(t, err)

	// Repository moves on; re-invocation must not recapture the snapshots.
	f.Heads[root] = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	second := collect(t, f, c, nil)

	after, err := os.ReadFile(headBeforePath)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(after), "head_before.txt must not be rewritten")
	assert.Equal(t, shaBefore, second.Bundle.Repo.Heads.Before)
	assert.Equal(t, shaBefore, second.Bundle.Repo.Heads.After, "existing head_after.txt wins over the live repository")
}

func TestManifestHashMatchesFile(t *testing.T) {
	f, c, _ := harnessFixture(t)

	res := collect(t, f, c, nil)

	manifestBytes, err := os.ReadFile(filepath.Join(res.OutDir, "manifest.json"))
	require.NoError(t, err)
	sum := sha256.Sum256(manifestBytes)

	sumFile, err := os.ReadFile(filepath.Join(res.OutDir, "manifest.sha256"))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:])+"  manifest.json\n", string(sumFile))

	var m Manifest
	require.NoError(t, json.Unmarshal(manifestBytes, &m))
	require.NotEmpty(t, m.Files)
	for i, entry := range m.Files {
		assert.NotContains(t, entry.Path, "manifest", "manifest must exclude its own files")
		if i > 0 {
			assert.Less(t, m.Files[i-1].Path, entry.Path, "entries must be sorted by path")
		}
	}
}

func TestPatchStatsIncluded(t *testing.T) {
	f, c, root := harnessFixture(t)
	c.Evidence.IncludeGitDiffPatch = true
	f.Patch = map[string]string{root: `diff --git a/src/a.go b/src/a.go
index 0000000..1111111 100644
--- a/src/a.go
+++ b/src/a.go
@@ -1,2 +1,3 @@
 package a
+func added() {}

`}

	res := collect(t, f, c, nil)

	assert.FileExists(t, filepath.Join(res.OutDir, "raw", rawDiffPatch))
	require.Len(t, res.Bundle.Diff.Files, 1)
	assert.Equal(t, "src/a.go", res.Bundle.Diff.Files[0].Path)
	assert.Equal(t, 1, res.Bundle.Diff.Files[0].Added)
}

func TestArtifactsIndex(t *testing.T) {
	f, c, _ := harnessFixture(t)

	res := collect(t, f, c, nil)
	b := readBundle(t, res.OutDir)

	assert.Equal(t, "manifest.json", b.Artifacts.Manifest)
	assert.Equal(t, "manifest.sha256", b.Artifacts.ManifestSHA256)
	assert.Contains(t, b.Artifacts.Raw, "raw/head_before.txt")
	assert.Contains(t, b.Artifacts.Raw, "raw/changed_paths.txt")
}

func TestMinimalBundleOutsideRepository(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	f := &gitx.Fake{} // not a repository

	res := New(f, nil).Collect(context.Background(), Request{Contract: &contract.Contract{PacketID: "p"}})

	assert.Equal(t, 2, res.ExitCode)
	assert.FileExists(t, filepath.Join(res.OutDir, "evidence.json"))
	assert.Contains(t, res.OutDir, "unknown")
}

func TestMinimalBundleOnContractError(t *testing.T) {
	f, _, _ := harnessFixture(t)

	res := New(f, nil).Collect(context.Background(), Request{ContractErr: os.ErrNotExist})

	assert.Equal(t, 2, res.ExitCode)
	assert.FileExists(t, filepath.Join(res.OutDir, "evidence.json"))
	assert.Contains(t, res.OutDir, "unknown")
}

func TestMalformedMetaDoesNotBlockEvidence(t *testing.T) {
	f, c, _ := harnessFixture(t)
	metaPath := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(metaPath, []byte("{not json"), 0o644))

	meta, err := LoadMeta(metaPath)
	require.Error(t, err)
	assert.Nil(t, meta)

	// A malformed meta degrades to no meta; the bundle is still written.
	res := collect(t, f, c, meta)
	assert.Equal(t, 0, res.ExitCode)
	assert.FileExists(t, filepath.Join(res.OutDir, "evidence.json"))
}

func TestRunnerMetaPassthrough(t *testing.T) {
	f, c, _ := harnessFixture(t)
	meta := metaFromRaw(map[string]any{
		"runner_version": "1.4.0",
		"custom_field":   "kept",
		"test_rc":        float64(0),
	})

	res := collect(t, f, c, meta)

	assert.Equal(t, "1.4.0", res.Bundle.Runner.Version)
	assert.Equal(t, "kept", res.Bundle.Runner.Meta["custom_field"])
}

func toAnySlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	if s, ok := v.([]string); ok {
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}
	return nil
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return nonEmptyLines(string(data))
}
