package evidence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// renderMarkdown produces the human-readable companion to evidence.json.
func renderMarkdown(b *Bundle) string {
	var md strings.Builder

	md.WriteString(fmt.Sprintf("# Evidence — %s\n\n", b.PacketID))
	md.WriteString(fmt.Sprintf("- Generated (UTC): `%s`\n", b.GeneratedAtUTC))
	md.WriteString(fmt.Sprintf("- Decision: **%s**\n", b.Decision))
	md.WriteString(fmt.Sprintf("- Base ref: `%s`\n", b.Repo.BaseRef))
	md.WriteString(fmt.Sprintf("- Worktree: `%s`\n\n", b.Worktree.Path))

	md.WriteString("## Heads\n\n")
	md.WriteString(fmt.Sprintf("- Before: `%s`\n", b.Repo.Heads.Before))
	md.WriteString(fmt.Sprintf("- After: `%s`\n\n", b.Repo.Heads.After))

	md.WriteString("## Diff\n\n")
	md.WriteString(fmt.Sprintf("- Changed files: %d\n", b.Diff.ChangedFiles))
	md.WriteString(fmt.Sprintf("- Lines added/deleted: %d/%d\n\n", b.Diff.LinesAdded, b.Diff.LinesDeleted))

	md.WriteString("## Tests\n\n")
	if b.Tests.Command != "" {
		md.WriteString(fmt.Sprintf("- Command: `%s`\n", b.Tests.Command))
	} else {
		md.WriteString("- Command: *(none)*\n")
	}
	md.WriteString(fmt.Sprintf("- Result: **%s**\n", b.Tests.Result))
	if b.Tests.ExitCode != nil {
		md.WriteString(fmt.Sprintf("- Exit code: `%d`\n", *b.Tests.ExitCode))
	}
	md.WriteString("\n")

	md.WriteString("## Constraint violations\n\n")
	if len(b.Constraints.Violations) > 0 {
		data, err := json.MarshalIndent(b.Constraints.Violations, "", "  ")
		if err == nil {
			md.WriteString("```json\n")
			md.Write(data)
			md.WriteString("\n```\n")
		}
	} else {
		md.WriteString("- None\n")
	}

	return md.String()
}
