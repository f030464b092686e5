package evidence

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// parsePatchStats extracts per-file added/deleted counts from a unified
// diff. Parse failures degrade to nil; the numstat aggregates remain the
// authoritative numbers either way.
func parsePatchStats(patch string) []FilePatch {
	if strings.TrimSpace(patch) == "" {
		return nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return nil
	}

	out := make([]FilePatch, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		stat := fd.Stat()
		out = append(out, FilePatch{
			Path:    patchPath(fd),
			Added:   int(stat.Added + stat.Changed),
			Deleted: int(stat.Deleted + stat.Changed),
		})
	}
	return out
}

// patchPath picks the post-image path, falling back to the pre-image for
// deletions, with the a/ b/ prefixes stripped.
func patchPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "b/")
	name = strings.TrimPrefix(name, "a/")
	return name
}
