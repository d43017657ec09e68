package executor

import (
	"fmt"
	"strconv"
	"strings"

	"autodev/internal/gatekeeper"
)

// buildGenerationPrompt assembles the LLM-facing prompt for one increment:
// description, requirements, examples, approach, tests-to-pass, and an
// output-format instruction for the tagged code-block format parseResponse
// understands, per spec.md §4.D step 3.
func buildGenerationPrompt(inc Increment) string {
	var b strings.Builder

	b.WriteString("You are implementing a specific increment of functionality.\n\n")

	b.WriteString("## Specification\n")
	fmt.Fprintf(&b, "Description: %s\n", inc.Description)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- %s\n", inc.Description)

	if len(inc.Requirement.AcceptanceCriteria) > 0 {
		b.WriteString("\n## Examples\n")
		for _, ex := range inc.Requirement.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ex)
		}
	}

	fmt.Fprintf(&b, "\n## Approach\n%s\n", inc.Implementation.Approach)

	if len(inc.Tests) > 0 {
		b.WriteString("\n## Tests to Pass\n")
		for _, tc := range inc.Tests {
			fmt.Fprintf(&b, "- %s (%s)\n", tc.Name, tc.Command)
		}
		b.WriteString("\nGenerate the minimal implementation that makes these tests pass.\n")
	}

	b.WriteString("\n## Output Format\n")
	b.WriteString("Provide the implementation as file changes in the following format:\n")
	b.WriteString("```create:path/to/file.ext\n")
	b.WriteString("file content here\n")
	b.WriteString("```\n")
	b.WriteString("\nFor modifications, use:\n")
	b.WriteString("```modify:path/to/file.ext:start_line:end_line\n")
	b.WriteString("new content for the given line range\n")
	b.WriteString("```\n")

	return b.String()
}

// parseResponse turns an LLM response into the FileChanges it describes,
// grounded on the original executor's parse_llm_response: a `create:PATH`
// fence starts a new file, a `modify:PATH:START:END` fence starts a line
// splice, and a bare ``` closes whichever is open. A response with no
// recognized fence falls through to a single Create at defaultPath, so
// unrecognized or conversational LLM output never silently loses the
// increment's work.
func parseResponse(response, defaultPath string) []gatekeeper.FileChange {
	var changes []gatekeeper.FileChange
	var current *gatekeeper.FileChange
	var lines []string
	inBlock := false

	flush := func() {
		if current == nil {
			return
		}
		current.Content = []byte(strings.Join(lines, "\n"))
		changes = append(changes, *current)
		current = nil
		lines = nil
	}

	for _, line := range strings.Split(response, "\n") {
		switch {
		case strings.HasPrefix(line, "```create:"):
			flush()
			path := strings.TrimSpace(strings.TrimPrefix(line, "```create:"))
			current = &gatekeeper.FileChange{Path: path, Type: gatekeeper.Create}
			inBlock = true
		case strings.HasPrefix(line, "```modify:"):
			flush()
			rest := strings.TrimPrefix(line, "```modify:")
			parts := strings.SplitN(rest, ":", 3)
			if len(parts) == 3 {
				start := atoiOr(parts[1], 1)
				end := atoiOr(parts[2], start)
				current = &gatekeeper.FileChange{Path: parts[0], Type: gatekeeper.Modify, StartLine: start, EndLine: end}
				inBlock = true
			}
		case line == "```" && inBlock:
			inBlock = false
		case inBlock:
			lines = append(lines, line)
		}
	}
	flush()

	if len(changes) == 0 {
		changes = append(changes, gatekeeper.FileChange{
			Path:    defaultPath,
			Type:    gatekeeper.Create,
			Content: []byte(response),
		})
	}
	return changes
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

// formatChanges is parseResponse's inverse for Create and Modify changes,
// the two types the block format can express. It exists so the round-trip
// property parse_response(format_changes(cs)) == cs is directly testable,
// and doubles as the attempt-log rendering of "what was generated".
func formatChanges(changes []gatekeeper.FileChange) string {
	var b strings.Builder
	for _, c := range changes {
		switch c.Type {
		case gatekeeper.Modify:
			fmt.Fprintf(&b, "```modify:%s:%d:%d\n", c.Path, c.StartLine, c.EndLine)
		default:
			fmt.Fprintf(&b, "```create:%s\n", c.Path)
		}
		for _, line := range strings.Split(string(c.Content), "\n") {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return b.String()
}
