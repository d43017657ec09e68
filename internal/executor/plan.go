// Package executor implements the Incremental Executor (spec.md §4.D): it
// turns a Specification into a dependency-ordered plan of small Increments
// and drives each one through generate -> gatekeeper-check -> checkpoint ->
// write -> validate -> rollback-or-complete.
package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"autodev/internal/specification"
)

// IncrementStatus is the lifecycle state of one planned unit of work.
type IncrementStatus string

const (
	StatusPending   IncrementStatus = "Pending"
	StatusReady     IncrementStatus = "Ready"
	StatusRunning   IncrementStatus = "Running"
	StatusSucceeded IncrementStatus = "Succeeded"
	StatusFailed    IncrementStatus = "Failed"
	StatusSkipped   IncrementStatus = "Skipped"
)

// Complexity is the planner's coarse estimate of how large an increment's
// generated diff is likely to be, driving both whether a requirement gets
// split and how its wall-clock contribution is estimated.
type Complexity string

const (
	ComplexityTrivial    Complexity = "Trivial"
	ComplexitySimple     Complexity = "Simple"
	ComplexityModerate   Complexity = "Moderate"
	ComplexityComplex    Complexity = "Complex"
	ComplexityVeryComplex Complexity = "VeryComplex"
)

// complexityRank gives Complexity a total order so callers can compare with
// <= the way spec.md's "Trivial/Simple become single-increment fragments"
// rule requires.
var complexityRank = map[Complexity]int{
	ComplexityTrivial:     0,
	ComplexitySimple:      1,
	ComplexityModerate:    2,
	ComplexityComplex:     3,
	ComplexityVeryComplex: 4,
}

func (c Complexity) atMost(other Complexity) bool { return complexityRank[c] <= complexityRank[other] }

// ImplementationPlan is an increment's approach plus the complexity that
// drove planning decisions about it.
type ImplementationPlan struct {
	Approach            string
	EstimatedComplexity Complexity
}

// ExpectedOutcome is the result a TestCase must produce to count as passing.
type ExpectedOutcome string

const ExpectedSuccess ExpectedOutcome = "Success"

// TestCase is one check an increment's implementation must satisfy before
// its attempt can be marked Completed.
type TestCase struct {
	ID              string
	Name            string
	Command         string
	ExpectedOutcome ExpectedOutcome
}

// ValidationCriteria is what an attempt must clear to succeed, synthesized
// alongside an increment's test list during planning.
type ValidationCriteria struct {
	MustCompile           bool
	TestIDs               []string
	PerformanceThresholds map[string]string
	SecurityChecks        []string
}

// AttemptRecord is the persisted log of one execution attempt against an
// increment, appended to by the Executor as it runs.
type AttemptRecord struct {
	StartedAt time.Time
	EndedAt   time.Time
	Result    Outcome
	Logs      []string
}

// Increment is one atomic slice of work derived from a Requirement, small
// enough that the Gatekeeper and the validators can evaluate it as a unit.
type Increment struct {
	ID             string
	Requirement    specification.Requirement
	Description    string
	DependsOn      []string
	TargetPath     string
	Status         IncrementStatus
	Implementation ImplementationPlan
	Tests          []TestCase
	Validation     ValidationCriteria
	Attempts       []AttemptRecord
}

// Fingerprint is a stable content-addressed id for the increment, used as
// the checkpoint id and as a cache key for repeat runs of an unchanged plan.
func (inc Increment) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(inc.Requirement.ID))
	h.Write([]byte{0})
	h.Write([]byte(inc.Description))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(inc.DependsOn, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Plan is a DAG of Increments in topological order, plus the critical path
// (the longest dependency chain, used to estimate wall-clock and to decide
// what to prioritize under a daily change budget).
type Plan struct {
	Increments   []Increment
	Order        []string // topological order, by ID
	CriticalPath []string // longest chain, by ID
}

// IsEmpty reports the boundary case of a Specification with no
// requirements, which must produce an empty plan rather than an error.
func (p *Plan) IsEmpty() bool { return p == nil || len(p.Increments) == 0 }

// subtaskConnectors are the conjunction-like words spec.md §4.D step 1 names
// for splitting a compound requirement, extended with "including" to match
// the original planner's identify_subtasks.
var subtaskConnectors = map[string]bool{
	"and":       true,
	"then":      true,
	"also":      true,
	"with":      true,
	"including": true,
}

// Plan builds an Increment DAG from a Specification. Each Requirement's
// complexity is assessed first: Trivial/Simple requirements become a single
// increment; Moderate+ requirements are split on conjunction-like
// connectors, falling back to a signature/body/tests structural breakdown
// when the description doesn't split naturally. Dependencies are inferred
// from AcceptanceCriteria that reference another requirement's ID, and
// otherwise ordered by declared Priority so Critical work sorts before Low.
func Plan(spec *specification.Specification, lang string) (*Plan, error) {
	if spec.IsEmpty() {
		return &Plan{}, nil
	}

	var increments []Increment
	for _, req := range spec.Requirements {
		complexity := assessComplexity(req.Description)
		fragments := breakDownRequirement(req.Description, complexity)

		for i, fragment := range fragments {
			id := req.ID
			if len(fragments) > 1 {
				id = fmt.Sprintf("%s.%d", req.ID, i+1)
			}
			increments = append(increments, buildIncrement(id, req, fragment, complexity, lang))
		}
	}

	inferDependencies(increments)

	order, err := topologicalSort(increments)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Increments: increments,
		Order:      order,
	}
	plan.CriticalPath = criticalPath(plan)
	return plan, nil
}

// buildIncrement assembles an Increment from a planned fragment, synthesizing
// its default test list and validation criteria per spec.md §4.D step 2.
func buildIncrement(id string, req specification.Requirement, description string, complexity Complexity, lang string) Increment {
	tests := synthesizeTestList(id, description, req.AcceptanceCriteria, lang)

	testIDs := make([]string, 0, len(tests))
	for _, tc := range tests {
		testIDs = append(testIDs, tc.ID)
	}

	return Increment{
		ID:          id,
		Requirement: req,
		Description: description,
		TargetPath:  defaultTargetPath(id, lang),
		Status:      StatusPending,
		Implementation: ImplementationPlan{
			Approach:            "generate the minimal implementation that makes the synthesized test list pass",
			EstimatedComplexity: complexity,
		},
		Tests: tests,
		Validation: ValidationCriteria{
			MustCompile: true,
			TestIDs:     testIDs,
		},
	}
}

// synthesizeTestList produces a unit test per fragment id, one per example,
// plus a compilation check, per spec.md §4.D step 2, grounded on the
// original planner's generate_test_cases.
func synthesizeTestList(fragmentID, description string, examples []string, lang string) []TestCase {
	tests := []TestCase{{
		ID:              fmt.Sprintf("test_%s", slug(fragmentID)),
		Name:            fmt.Sprintf("Test %s", description),
		Command:         testCommandFor(lang, slug(fragmentID)),
		ExpectedOutcome: ExpectedSuccess,
	}}

	for i, example := range examples {
		id := fmt.Sprintf("test_%s_%d", slug(fragmentID), i)
		tests = append(tests, TestCase{
			ID:              id,
			Name:            fmt.Sprintf("Test example: %s", example),
			Command:         testCommandFor(lang, id),
			ExpectedOutcome: ExpectedSuccess,
		})
	}

	tests = append(tests, TestCase{
		ID:              fmt.Sprintf("compile_%s", slug(fragmentID)),
		Name:            "Compilation check",
		Command:         compileCommandFor(lang),
		ExpectedOutcome: ExpectedSuccess,
	})
	return tests
}

func testCommandFor(lang, testID string) string {
	switch strings.ToLower(lang) {
	case "python", "py":
		return fmt.Sprintf("pytest -k %s", testID)
	case "typescript", "ts", "javascript", "js":
		return fmt.Sprintf("npm test -- -t %s", testID)
	default:
		return fmt.Sprintf("go test -run %s ./...", testID)
	}
}

func compileCommandFor(lang string) string {
	switch strings.ToLower(lang) {
	case "python", "py":
		return "python -m py_compile"
	case "typescript", "ts":
		return "tsc --noEmit"
	case "javascript", "js":
		return "node --check"
	default:
		return "go build ./..."
	}
}

// assessComplexity scores a requirement's prose the way the original
// planner's assess_complexity does: a word-count term plus bonuses for
// keywords that tend to mean a wider-reaching change.
func assessComplexity(description string) Complexity {
	words := len(strings.Fields(description))
	lower := strings.ToLower(description)

	score := words / 10
	if strings.Contains(lower, "api") {
		score += 2
	}
	if strings.Contains(lower, "database") || strings.Contains(lower, "persist") {
		score += 3
	}
	if strings.Contains(lower, "integrate") {
		score += 2
	}

	switch {
	case score <= 2:
		return ComplexityTrivial
	case score <= 5:
		return ComplexitySimple
	case score <= 10:
		return ComplexityModerate
	case score <= 20:
		return ComplexityComplex
	default:
		return ComplexityVeryComplex
	}
}

// breakDownRequirement implements spec.md §4.D step 1: Trivial/Simple
// requirements become a single fragment; Moderate+ requirements are split
// into subtasks.
func breakDownRequirement(description string, complexity Complexity) []string {
	if complexity.atMost(ComplexitySimple) {
		return []string{description}
	}
	return identifySubtasks(description)
}

// identifySubtasks splits a compound description on conjunction-like
// connectors, the same word-scan the original planner's identify_subtasks
// uses. If no connector splits the description and it's long enough to
// plausibly bundle a whole function, it falls back to a structural
// breakdown: signature, body, tests (or, for non-function work, structure,
// logic, validation).
func identifySubtasks(description string) []string {
	var tasks []string
	var current []string

	for _, word := range strings.Fields(description) {
		if subtaskConnectors[strings.ToLower(word)] && len(current) > 0 {
			tasks = append(tasks, strings.Join(current, " "))
			current = nil
			continue
		}
		current = append(current, word)
	}
	if len(current) > 0 {
		tasks = append(tasks, strings.Join(current, " "))
	}

	if len(tasks) == 1 && len(tasks[0]) > 100 {
		single := tasks[0]
		lower := strings.ToLower(single)
		if strings.Contains(lower, "function") || strings.Contains(lower, "method") {
			return []string{
				fmt.Sprintf("Create function signature for %s", single),
				fmt.Sprintf("Implement function body for %s", single),
				fmt.Sprintf("Add tests for %s", single),
			}
		}
		return []string{
			fmt.Sprintf("Create structure for %s", single),
			fmt.Sprintf("Implement logic for %s", single),
			fmt.Sprintf("Validate %s", single),
		}
	}

	return tasks
}

// defaultTargetPath derives an increment's target path from its id, per
// the path policy src/<slug(increment_id)>.<lang-ext>. Every planned
// increment gets this path; the requirement's SourceLocation is not
// consulted.
func defaultTargetPath(id, lang string) string {
	ext := extensionFor(lang)
	return filepath.ToSlash(filepath.Join("src", slug(id)+ext))
}

func extensionFor(lang string) string {
	switch strings.ToLower(lang) {
	case "python", "py":
		return ".py"
	case "typescript", "ts":
		return ".ts"
	case "javascript", "js":
		return ".js"
	default:
		return ".go"
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

func slug(id string) string {
	lower := strings.ToLower(id)
	lower = strings.ReplaceAll(lower, ".", "-")
	lower = slugInvalid.ReplaceAllString(lower, "-")
	return strings.Trim(lower, "-")
}

// inferDependencies fills DependsOn by scanning each increment's acceptance
// criteria for references to another increment's requirement id.
func inferDependencies(increments []Increment) {
	byReqID := make(map[string][]string) // requirement id -> increment ids
	for _, inc := range increments {
		byReqID[inc.Requirement.ID] = append(byReqID[inc.Requirement.ID], inc.ID)
	}

	for i := range increments {
		seen := make(map[string]bool)
		for _, criterion := range increments[i].Requirement.AcceptanceCriteria {
			for reqID, incIDs := range byReqID {
				if reqID == increments[i].Requirement.ID {
					continue
				}
				if strings.Contains(criterion, reqID) {
					for _, depID := range incIDs {
						if !seen[depID] {
							seen[depID] = true
							increments[i].DependsOn = append(increments[i].DependsOn, depID)
						}
					}
				}
			}
		}
		sort.Strings(increments[i].DependsOn)
	}
}

// topologicalSort returns increment IDs in dependency order (Kahn's
// algorithm), breaking ties by Priority then by original order so the
// result is deterministic given the same Specification.
func topologicalSort(increments []Increment) ([]string, error) {
	indexOf := make(map[string]int, len(increments))
	for i, inc := range increments {
		indexOf[inc.ID] = i
	}

	indegree := make(map[string]int, len(increments))
	dependents := make(map[string][]string)
	for _, inc := range increments {
		if _, ok := indegree[inc.ID]; !ok {
			indegree[inc.ID] = 0
		}
		for _, dep := range inc.DependsOn {
			if _, ok := indexOf[dep]; !ok {
				continue // dependency on an id outside this plan: ignore
			}
			indegree[inc.ID]++
			dependents[dep] = append(dependents[dep], inc.ID)
		}
	}

	var ready []string
	for _, inc := range increments {
		if indegree[inc.ID] == 0 {
			ready = append(ready, inc.ID)
		}
	}
	sortByPriorityThenOrder(ready, increments, indexOf)

	var order []string
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var freed []string
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sortByPriorityThenOrder(freed, increments, indexOf)
		ready = append(ready, freed...)
		sortByPriorityThenOrder(ready, increments, indexOf)
	}

	if len(order) != len(increments) {
		return nil, fmt.Errorf("executor: dependency cycle detected among increments")
	}
	return order, nil
}

func sortByPriorityThenOrder(ids []string, increments []Increment, indexOf map[string]int) {
	rank := map[specification.Priority]int{
		specification.PriorityCritical: 0,
		specification.PriorityHigh:     1,
		specification.PriorityMedium:   2,
		specification.PriorityLow:      3,
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a := increments[indexOf[ids[i]]]
		b := increments[indexOf[ids[j]]]
		pa, pb := rank[a.Requirement.Priority], rank[b.Requirement.Priority]
		if pa != pb {
			return pa < pb
		}
		return indexOf[ids[i]] < indexOf[ids[j]]
	})
}

// criticalPath returns the longest chain of dependent increments, by ID,
// used to estimate the plan's minimum achievable wall-clock.
func criticalPath(plan *Plan) []string {
	indexOf := make(map[string]int, len(plan.Increments))
	for i, inc := range plan.Increments {
		indexOf[inc.ID] = i
	}

	longest := make(map[string][]string)
	var best []string
	for _, id := range plan.Order {
		inc := plan.Increments[indexOf[id]]
		var bestDep []string
		for _, dep := range inc.DependsOn {
			if chain, ok := longest[dep]; ok && len(chain) > len(bestDep) {
				bestDep = chain
			}
		}
		chain := append(append([]string(nil), bestDep...), id)
		longest[id] = chain
		if len(chain) > len(best) {
			best = chain
		}
	}
	return best
}
