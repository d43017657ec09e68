// Package gatekeeper implements the Safety Gatekeeper (spec.md §4.A): the
// single chokepoint every proposed FileChange must clear before it reaches
// the filesystem. Decisions are pure functions of (config, counters,
// change) — the Gatekeeper itself never fails; Rejected is a normal
// outcome callers must respect.
package gatekeeper

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"autodev/internal/logging"
	"autodev/internal/metrics"
)

// ChangeType mirrors the FileChange variants from the data model.
type ChangeType string

const (
	Create  ChangeType = "Create"
	Modify  ChangeType = "Modify"
	Replace ChangeType = "Replace"
	Append  ChangeType = "Append"
	Delete  ChangeType = "Delete"
)

// FileChange is a pending mutation awaiting a Decision.
type FileChange struct {
	Path       string
	Type       ChangeType
	Content    []byte
	StartLine  int // only meaningful for Modify
	EndLine    int
}

// Decision is the Gatekeeper's verdict on a FileChange.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Outcome is one of the three terminal verdicts.
type Outcome string

const (
	Approved      Outcome = "Approved"
	NeedsApproval Outcome = "NeedsApproval"
	Rejected      Outcome = "Rejected"
)

func approved() Decision                  { return Decision{Outcome: Approved} }
func needsApproval(reason string) Decision { return Decision{Outcome: NeedsApproval, Reason: reason} }
func rejected(reason string) Decision      { return Decision{Outcome: Rejected, Reason: reason} }

// Config enumerates every knob the Gatekeeper algorithm consults, per
// spec.md §4.A.
type Config struct {
	ProjectRoot             string
	AllowPaths              []string
	DenyPaths               []string
	ForbiddenPaths          []string
	MaxFileSizeBytes        int64
	MaxFilesPerOperation    int
	MaxOperationsPerSession int
	RequireConfirmation     bool
}

// DefaultForbiddenPaths is the hard-coded infrastructure deny list that
// always applies regardless of configuration, matching the teacher's
// treatment of VCS metadata and lockfiles as untouchable.
func DefaultForbiddenPaths() []string {
	return []string{".git/", ".autodev/", "go.sum"}
}

// Gatekeeper evaluates FileChanges against a Config, tracking the
// per-operation and per-session counters the algorithm's step 5 needs.
type Gatekeeper struct {
	cfg Config

	sessionOps int64 // atomic

	resetOpCounter func() // test hook
}

// New constructs a Gatekeeper. ForbiddenPaths is merged with
// DefaultForbiddenPaths so callers never have to remember to add them.
func New(cfg Config) *Gatekeeper {
	merged := make([]string, 0, len(cfg.ForbiddenPaths)+len(DefaultForbiddenPaths()))
	merged = append(merged, DefaultForbiddenPaths()...)
	merged = append(merged, cfg.ForbiddenPaths...)
	cfg.ForbiddenPaths = merged
	return &Gatekeeper{cfg: cfg}
}

// SessionOperationCount returns the number of changes approved so far in
// this process lifetime.
func (g *Gatekeeper) SessionOperationCount() int64 {
	return atomic.LoadInt64(&g.sessionOps)
}

// Validate runs the seven-step algorithm from spec.md §4.A against a
// single change. filesInOperation is the size of the FileChange batch
// this change belongs to, needed for step 5's per-operation bound.
func (g *Gatekeeper) Validate(change FileChange, filesInOperation int) Decision {
	log := logging.Get(logging.CategoryGatekeeper)
	decision := g.validate(change, filesInOperation)

	log.Infow("gatekeeper decision",
		"path", change.Path, "type", change.Type,
		"outcome", decision.Outcome, "reason", decision.Reason)
	metrics.GatekeeperDecisions.WithLabelValues(string(decision.Outcome), decision.Reason).Inc()

	if decision.Outcome == Approved {
		atomic.AddInt64(&g.sessionOps, 1)
	}
	return decision
}

func (g *Gatekeeper) validate(change FileChange, filesInOperation int) Decision {
	// Step 1: forbidden_paths / deny_paths override everything.
	if matchesAny(change.Path, g.cfg.ForbiddenPaths) {
		return rejected("path matches a forbidden infrastructure path")
	}
	if matchesAny(change.Path, g.cfg.DenyPaths) {
		return rejected("path matches a deny_paths rule")
	}

	// Step 2: must match some allow_paths entry.
	if !matchesAny(change.Path, g.cfg.AllowPaths) {
		return rejected("path does not match any allow_paths rule")
	}

	// Step 3: Delete under require_confirmation needs an operator.
	if change.Type == Delete && g.cfg.RequireConfirmation {
		return needsApproval("delete requires operator confirmation")
	}

	// Step 4: size cap.
	if g.cfg.MaxFileSizeBytes > 0 && int64(len(change.Content)) > g.cfg.MaxFileSizeBytes {
		return rejected("content exceeds max_file_size_bytes")
	}

	// Step 5: per-operation and per-session counters.
	if g.cfg.MaxFilesPerOperation >= 0 && filesInOperation > g.cfg.MaxFilesPerOperation {
		return rejected("operation exceeds max_files_per_operation")
	}
	if g.cfg.MaxOperationsPerSession >= 0 && g.SessionOperationCount() >= int64(g.cfg.MaxOperationsPerSession) {
		return rejected("session exceeds max_operations_per_session")
	}

	// Step 6: resolved path must stay inside the project root.
	if g.cfg.ProjectRoot != "" {
		resolved, err := resolveWithinRoot(g.cfg.ProjectRoot, change.Path)
		if err != nil || !resolved {
			return rejected("path resolves outside the project root")
		}
	}

	// Step 7: approved.
	return approved()
}

// matchesAny reports whether path matches any of the given prefix/glob
// patterns. A trailing "/" in a pattern is treated as a directory prefix;
// otherwise the pattern is matched with filepath.Match against the
// cleaned path, falling back to a plain prefix match.
func matchesAny(path string, patterns []string) bool {
	clean := filepath.ToSlash(filepath.Clean(path))
	for _, p := range patterns {
		p = filepath.ToSlash(p)
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(p)), "/")
			if dir == "." || clean == dir || strings.HasPrefix(clean, dir+"/") {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(p, clean); err == nil && ok {
			return true
		}
		if strings.HasPrefix(clean, p) {
			return true
		}
	}
	return false
}

// resolveWithinRoot resolves path (absolute or relative to root) against
// root, following symlinks, and reports whether the result stays within
// root's tree.
func resolveWithinRoot(root, path string) (bool, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}
	var target string
	if filepath.IsAbs(path) {
		target = path
	} else {
		target = filepath.Join(absRoot, path)
	}
	target = filepath.Clean(target)

	// Resolve symlinks component-wise where possible; a non-existent
	// target (the common case for Create) can't be evaluated with
	// filepath.EvalSymlinks, so fall back to the cleaned lexical path.
	resolvedRoot, err := evalSymlinksBestEffort(absRoot)
	if err != nil {
		return false, err
	}
	resolvedTarget, err := evalSymlinksBestEffort(target)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil {
		return false, err
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
