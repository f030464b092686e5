package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeEvidence persists the record as indented JSON, creating parent
// directories as needed.
func writeEvidence(path string, ev *Evidence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create evidence directory: %w", err)
	}
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal gate evidence: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write gate evidence: %w", err)
	}
	return nil
}
