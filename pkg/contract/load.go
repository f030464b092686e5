package contract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// schemaText is the structural schema for contract documents. Only the
// identity fields are required; field-level completeness is re-checked by
// Validate so the gate can report missing fields with its own deny code.
const schemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["packet_id", "branch", "base_ref"],
  "properties": {
    "packet_id": {"type": "string"},
    "branch": {"type": "string"},
    "base_ref": {"type": "string"},
    "github_ops_required": {"type": "boolean"},
    "worktree_policy": {
      "type": "object",
      "properties": {
        "worktree_root": {"type": "string"},
        "deny_if_worktree_exists": {"type": "boolean"}
      }
    },
    "allowed_paths": {"type": "array", "items": {"type": "string"}},
    "forbidden_outputs": {"type": "array", "items": {"type": "string"}},
    "budgets": {
      "type": "object",
      "properties": {
        "max_changed_files": {"type": "integer"},
        "max_changed_lines": {"type": "integer"}
      }
    },
    "run": {
      "type": "object",
      "properties": {"test_cmd": {"type": "string"}}
    },
    "evidence": {
      "type": "object",
      "properties": {
        "out_dir": {"type": "string"},
        "include_git_diff_patch": {"type": "boolean"}
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("contract.schema.json", schemaText)

// Load reads, schema-validates, and decodes a contract document. Files with a
// .yaml or .yml extension parse as YAML; everything else parses as JSON.
// Schema validation runs before decoding so malformed documents fail with a
// precise structural error.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract not found: %w", err)
	}

	jsonBytes := data
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse contract yaml: %w", err)
		}
		// Round-trip through JSON so schema validation and struct decoding
		// see the same value types for both input formats.
		jsonBytes, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert contract yaml: %w", err)
		}
	}

	var generic any
	if err := json.Unmarshal(jsonBytes, &generic); err != nil {
		return nil, fmt.Errorf("failed to parse contract json: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("contract schema validation failed: %w", err)
	}

	var c Contract
	if err := json.Unmarshal(jsonBytes, &c); err != nil {
		return nil, fmt.Errorf("failed to decode contract: %w", err)
	}
	return &c, nil
}
