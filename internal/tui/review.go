package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"autodev/internal/orchestrator"
)

// RenderChangeSummary renders one PendingChange as Markdown through
// glamour, for `self-dev review` non-interactive output. Falls back to
// the plain Markdown source if glamour can't construct a terminal
// renderer (e.g. no TTY), rather than failing the command.
func RenderChangeSummary(pc orchestrator.PendingChange) string {
	md := buildMarkdown(pc)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

func buildMarkdown(pc orchestrator.PendingChange) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Change %s\n\n", pc.ID)
	fmt.Fprintf(&b, "- created: %s\n", pc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- specification: `%s`\n", pc.Spec.SourcePath)
	fmt.Fprintf(&b, "- increments: %d (succeeded %d)\n\n", len(pc.Results), pc.SuccessCount())

	b.WriteString("## Increments\n\n")
	for _, r := range pc.Results {
		status := "✅"
		if r.Outcome != "Success" {
			status = "❌"
		}
		fmt.Fprintf(&b, "- %s **%s** (%s) — %s, %d attempt(s)\n",
			status, r.Increment.ID, r.Increment.TargetPath, r.Outcome, r.Attempts)
		if r.Err != nil {
			fmt.Fprintf(&b, "  - error: `%s`\n", r.Err.Error())
		}
	}

	return b.String()
}
