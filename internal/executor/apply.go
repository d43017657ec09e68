package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autodev/internal/gatekeeper"
)

// applyChange writes a single approved FileChange to disk. Modify uses a
// 1-indexed inclusive line splice with end-of-file clamping, the exact
// semantics of the teacher's tactile.FileEditor.EditLines: lines before
// StartLine and after EndLine are preserved, the spliced range is replaced
// wholesale by Content, and an EndLine past the file's length is clamped to
// the last line rather than erroring.
func applyChange(change gatekeeper.FileChange) error {
	switch change.Type {
	case gatekeeper.Create, gatekeeper.Replace:
		return writeWholeFile(change.Path, change.Content)
	case gatekeeper.Append:
		return appendToFile(change.Path, change.Content)
	case gatekeeper.Modify:
		return spliceLines(change.Path, change.StartLine, change.EndLine, change.Content)
	case gatekeeper.Delete:
		err := os.Remove(change.Path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("executor: delete %s: %w", change.Path, err)
		}
		return nil
	default:
		return fmt.Errorf("executor: unknown change type %q", change.Type)
	}
}

func writeWholeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("executor: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("executor: write %s: %w", path, err)
	}
	return nil
}

func appendToFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("executor: mkdir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("executor: open %s for append: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("executor: append %s: %w", path, err)
	}
	return nil
}

// spliceLines replaces the inclusive 1-indexed range [start, end] of path's
// lines with newContent's lines. start < 1 clamps to 1; end beyond the
// file's length clamps to the last line; a non-existent file is treated as
// empty, so a Modify against a fresh path degrades to a Create.
func spliceLines(path string, start, end int, newContent []byte) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("executor: read %s: %w", path, err)
	}

	var lines []string
	if len(existing) > 0 {
		lines = strings.Split(strings.TrimRight(string(existing), "\n"), "\n")
	}

	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if end < start-1 {
		end = start - 1
	}

	newLines := strings.Split(strings.TrimRight(string(newContent), "\n"), "\n")
	if len(newContent) == 0 {
		newLines = nil
	}

	var spliced []string
	if start-1 <= len(lines) {
		spliced = append(spliced, lines[:start-1]...)
	} else {
		spliced = append(spliced, lines...)
	}
	spliced = append(spliced, newLines...)
	if end < len(lines) {
		spliced = append(spliced, lines[end:]...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("executor: mkdir for %s: %w", path, err)
	}
	out := strings.Join(spliced, "\n")
	if len(spliced) > 0 {
		out += "\n"
	}
	return os.WriteFile(path, []byte(out), 0o644)
}

// pathsTouched returns the distinct file paths a batch of changes mutates,
// used to scope a rollback checkpoint to exactly what's about to change.
func pathsTouched(changes []gatekeeper.FileChange) []string {
	seen := make(map[string]bool, len(changes))
	var out []string
	for _, c := range changes {
		if !seen[c.Path] {
			seen[c.Path] = true
			out = append(out, c.Path)
		}
	}
	return out
}
