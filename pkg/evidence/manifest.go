package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gowebpki/jcs"
)

// Manifest indexes every file in the bundle directory except itself. Its
// serialized bytes are canonicalized so the top-level hash is stable across
// re-runs with unchanged inputs.
type Manifest struct {
	GeneratedAtUTC string          `json:"generated_at_utc"`
	Files          []ManifestEntry `json:"files"`
}

// ManifestEntry records one bundle file.
type ManifestEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

const (
	manifestFile    = "manifest.json"
	manifestSumFile = "manifest.sha256"
)

// writeManifest enumerates the bundle, writes manifest.json in canonical
// JSON form, and writes manifest.sha256 over manifest.json's exact bytes.
// It returns the top-level hash.
func writeManifest(outDir, generatedAt string) (string, error) {
	entries, err := manifestEntries(outDir)
	if err != nil {
		return "", err
	}

	m := Manifest{GeneratedAtUTC: generatedAt, Files: entries}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, manifestFile), canonical, 0o600); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	sum := sha256.Sum256(canonical)
	topHash := hex.EncodeToString(sum[:])
	sumLine := fmt.Sprintf("%s  %s\n", topHash, manifestFile)
	if err := os.WriteFile(filepath.Join(outDir, manifestSumFile), []byte(sumLine), 0o600); err != nil {
		return "", fmt.Errorf("failed to write manifest hash: %w", err)
	}
	return topHash, nil
}

// manifestEntries lists every file under outDir except the manifest's own
// files, sorted by relative path.
func manifestEntries(outDir string) ([]ManifestEntry, error) {
	entries := []ManifestEntry{}
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == manifestFile || rel == manifestSumFile {
			return nil
		}
		hash, size, err := hashFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, ManifestEntry{Path: rel, SHA256: hash, Size: size})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate bundle: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// listRawFiles returns bundle-relative paths of everything under raw/.
func listRawFiles(outDir string) []string {
	var out []string
	rawDir := filepath.Join(outDir, "raw")
	_ = filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(outDir, path); relErr == nil {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(out)
	return out
}

// relRawPath joins raw file names for artifact references.
func relRawPath(name string) string {
	return "raw/" + name
}
