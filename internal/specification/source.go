package specification

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FileSource is a minimal TaskSource leaf: it scans a directory tree for
// TODO/FIXME markers and turns each into a single-Requirement
// Specification. The real natural-language specification parser is an
// out-of-scope external collaborator (SPEC_FULL.md §1); FileSource exists
// only so the CLI has something concrete to drive end-to-end without that
// collaborator present.
type FileSource struct {
	Root     string
	Patterns []string
	cursor   int
	cache    []*Specification
	loaded   bool
}

var todoLine = regexp.MustCompile(`(?i)(TODO|FIXME|HACK|XXX|BUG|NOTE)[:\s]+(.+)`)

// markerPriority maps a marker word to the Requirement Priority it produces.
// FIXME and BUG read as more urgent than a plain TODO; HACK and NOTE read as
// lower-urgency annotations.
var markerPriority = map[string]Priority{
	"FIXME": PriorityHigh,
	"BUG":   PriorityHigh,
	"TODO":  PriorityMedium,
	"XXX":   PriorityMedium,
	"HACK":  PriorityLow,
	"NOTE":  PriorityLow,
}

// NewFileSource constructs a FileSource rooted at dir, matching the given
// marker patterns (e.g. "TODO", "FIXME"); an empty Patterns list matches
// all six default markers.
func NewFileSource(dir string, patterns []string) *FileSource {
	if len(patterns) == 0 {
		patterns = []string{"TODO", "FIXME", "HACK", "XXX", "BUG", "NOTE"}
	}
	return &FileSource{Root: dir, Patterns: patterns}
}

// Next returns the next unconsumed marker as a Specification, or nil when
// the scan is exhausted. Matches orchestrator.TaskSource's signature
// without this package importing orchestrator.
func (f *FileSource) Next(_ context.Context) (*Specification, error) {
	if !f.loaded {
		if err := f.scan(); err != nil {
			return nil, err
		}
		f.loaded = true
	}
	if f.cursor >= len(f.cache) {
		return nil, nil
	}
	spec := f.cache[f.cursor]
	f.cursor++
	return spec, nil
}

func (f *FileSource) scan() error {
	return filepath.Walk(f.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best-effort scan: unreadable entries are skipped, not fatal
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if base == ".git" || base == ".autodev" || base == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isScannable(path) {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !f.matchesPattern(line) {
				continue
			}
			m := todoLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			desc := strings.TrimSpace(m[2])
			marker := strings.ToUpper(m[1])
			if !f.matchesPattern(marker) {
				continue
			}
			priority, ok := markerPriority[marker]
			if !ok {
				priority = PriorityMedium
			}
			req := Requirement{
				ID:             fmt.Sprintf("TODO-%s-%d", slugPath(path), lineNo),
				Description:    desc,
				Priority:       priority,
				Category:       CategoryFunctional,
				SourceLocation: fmt.Sprintf("%s:%d", path, lineNo),
			}
			f.cache = append(f.cache, New(path, []Requirement{req}))
		}
		return nil
	})
}

func (f *FileSource) matchesPattern(line string) bool {
	for _, p := range f.Patterns {
		if strings.Contains(strings.ToUpper(line), strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func isScannable(path string) bool {
	switch filepath.Ext(path) {
	case ".go", ".md", ".ts", ".py", ".js", ".txt":
		return true
	default:
		return false
	}
}

func slugPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(base, " ", "-")
}
