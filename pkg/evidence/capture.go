package evidence

import (
	"os"
	"path/filepath"
	"strings"
)

// captureString folds a git capture into evidence text. Failures degrade to
// an error marker rather than raising, so a single failed probe never blocks
// evidence capture.
func captureString(out string, err error) string {
	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			return ""
		}
		return "!! " + msg
	}
	return out
}

// reuseOrCapture returns the snapshot at path if it already exists, making
// the captured state immutable for the life of the packet. Otherwise it runs
// capture and persists the value.
func reuseOrCapture(path string, capture func() string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		return string(data), nil
	}
	value := capture()
	return value, writeText(path, value)
}

// writeText persists a snapshot with a single trailing newline when the
// content is non-empty, creating parent directories as needed.
func writeText(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// nonEmptyLines splits text into trimmed, non-empty lines.
func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// statusLines drops blank lines while preserving the porcelain columns,
// which carry meaning in their leading characters.
func statusLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// pathsFromPorcelain extracts best-effort paths from porcelain status lines.
// Rename and copy lines ("R  old -> new") report the destination path.
func pathsFromPorcelain(lines []string) []string {
	var out []string
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = strings.TrimSpace(path[idx+len(" -> "):])
		}
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

// parseNumstat folds `git diff --numstat` output into aggregate counts.
// Binary files report "-" for both columns and still count as a changed file.
func parseNumstat(text string) (added, deleted, files int) {
	for _, line := range nonEmptyLines(text) {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			continue
		}
		if n, ok := atoi(parts[0]); ok {
			added += n
		}
		if n, ok := atoi(parts[1]); ok {
			deleted += n
		}
		files++
	}
	return added, deleted, files
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
