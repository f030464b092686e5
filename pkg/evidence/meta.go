package evidence

import (
	"encoding/json"
	"fmt"
	"os"
)

// Meta is the run-metadata record an external runner may leave behind.
// Typed fields are extracted for decision logic; the full document is kept
// in Raw and passed through verbatim into the bundle's runner.meta.
type Meta struct {
	WorktreePath  string
	TestRC        *int
	Decision      string
	Reasons       []string
	RunnerVersion string
	Raw           map[string]any
}

// LoadMeta reads a run-metadata document. A missing file is not an error;
// it returns nil so the harness degrades to its own observations. A
// malformed document returns nil with the parse error; the error is
// advisory and callers collect without meta rather than aborting.
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse meta json: %w", err)
	}
	return metaFromRaw(raw), nil
}

func metaFromRaw(raw map[string]any) *Meta {
	m := &Meta{Raw: raw}

	if v, ok := raw["worktree_path"].(string); ok {
		m.WorktreePath = v
	}
	if v, ok := raw["test_rc"].(float64); ok && v == float64(int(v)) {
		rc := int(v)
		m.TestRC = &rc
	}
	if v, ok := raw["decision"].(string); ok {
		m.Decision = v
	}
	if v, ok := raw["runner_version"].(string); ok {
		m.RunnerVersion = v
	}
	switch v := raw["reasons"].(type) {
	case []any:
		for _, r := range v {
			m.Reasons = append(m.Reasons, fmt.Sprint(r))
		}
	case string:
		m.Reasons = []string{v}
	}
	return m
}
