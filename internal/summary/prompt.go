package summary

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/domain"
)

// Prompt renders the review request sent to the engine: change metadata,
// the derived summary, and each file's diff text. cleanMarker is the exact
// reply the engine should give when it finds nothing worth flagging.
func (b *Builder) Prompt(c *domain.Change, s *Summary, cleanMarker string) string {
	var sb strings.Builder

	sb.WriteString("Please review the following code change.\n\n")
	fmt.Fprintf(&sb, "Project: %s\n", s.Project)
	fmt.Fprintf(&sb, "Commit: %s\n", s.CommitMessage)
	fmt.Fprintf(&sb, "Files touched: %d\n", s.FilesTouched)
	fmt.Fprintf(&sb, "Lines changed: %s (%s change)\n", humanize.Comma(int64(s.LinesChanged)), s.Scale)

	if len(s.Breakdown) > 0 {
		sb.WriteString("\nChange footprint:\n")
		for _, cc := range s.Breakdown {
			fmt.Fprintf(&sb, "- %s: %d file(s), %s line(s)\n", cc.Category, cc.Files, humanize.Comma(int64(cc.Lines)))
		}
	}

	for _, f := range c.Files {
		fmt.Fprintf(&sb, "\n### %s (%s, +%d/-%d)\n", f.Path, f.Status, f.LinesAdded, f.LinesRemoved)
		if f.Diff != "" {
			sb.WriteString("```diff\n")
			sb.WriteString(f.Diff)
			if !strings.HasSuffix(f.Diff, "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		}
	}

	sb.WriteString("\nReview focus:\n")
	for i, r := range s.Recommendations {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	fmt.Fprintf(&sb, "%d. Possible bugs or logic errors\n", len(s.Recommendations)+1)
	fmt.Fprintf(&sb, "%d. Performance issues and security vulnerabilities\n", len(s.Recommendations)+2)
	fmt.Fprintf(&sb, "%d. Whether tests are needed\n", len(s.Recommendations)+3)

	fmt.Fprintf(&sb, "\nGive specific, actionable feedback in markdown. If there is nothing to flag, reply with exactly %q.\n", cleanMarker)

	return sb.String()
}
