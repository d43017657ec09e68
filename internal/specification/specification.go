// Package specification defines the Specification/Requirement contract
// produced by the external natural-language parser (out of scope for this
// repository — see SPEC_FULL.md §1). These types have no identity other
// than their source path plus a content hash, per the data model invariant.
package specification

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Priority ranks how urgently a Requirement must be satisfied.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Category classifies what kind of concern a Requirement addresses.
type Category string

const (
	CategoryFunctional  Category = "Functional"
	CategoryAPI         Category = "Api"
	CategoryDataModel   Category = "DataModel"
	CategorySecurity    Category = "Security"
	CategoryPerformance Category = "Performance"
	CategoryUsability   Category = "Usability"
	CategoryReliability Category = "Reliability"
	CategoryBehavior    Category = "Behavior"
)

// Requirement is one atomic piece of a Specification.
type Requirement struct {
	ID                 string
	Description        string
	Priority           Priority
	Category           Category
	AcceptanceCriteria []string
	SourceLocation     string
	Tags               []string
}

// APISignature sketches a single API surface point the spec calls out.
type APISignature struct {
	Name       string
	Signature  string
	ReturnType string
}

// DataModelSketch sketches a data type the spec calls out.
type DataModelSketch struct {
	Name   string
	Fields map[string]string
}

// BehaviorScenario is a prose given/when/then style scenario.
type BehaviorScenario struct {
	Name  string
	Given string
	When  string
	Then  string
}

// UsageExample pairs a short description with example input/output text.
type UsageExample struct {
	Description string
	Input       string
	Output      string
}

// Specification is the immutable bundle handed to the Incremental Executor.
// It has no identity beyond SourcePath + ContentHash (invariant: two
// Specifications parsed from identical source content are interchangeable).
type Specification struct {
	SourcePath   string
	ContentHash  string
	Requirements []Requirement

	APISignatures []APISignature
	DataModels    []DataModelSketch
	Scenarios     []BehaviorScenario
	Examples      []UsageExample
}

// New builds a Specification and computes its content hash from the
// canonicalized requirement list, per the data model invariant that a
// Specification's only identity is SourcePath + content hash.
func New(sourcePath string, requirements []Requirement, opts ...Option) *Specification {
	spec := &Specification{
		SourcePath:   sourcePath,
		Requirements: requirements,
	}
	for _, opt := range opts {
		opt(spec)
	}
	spec.ContentHash = hashRequirements(sourcePath, requirements)
	return spec
}

// Option configures optional Specification fields.
type Option func(*Specification)

func WithAPISignatures(sigs []APISignature) Option {
	return func(s *Specification) { s.APISignatures = sigs }
}

func WithDataModels(models []DataModelSketch) Option {
	return func(s *Specification) { s.DataModels = models }
}

func WithScenarios(scenarios []BehaviorScenario) Option {
	return func(s *Specification) { s.Scenarios = scenarios }
}

func WithExamples(examples []UsageExample) Option {
	return func(s *Specification) { s.Examples = examples }
}

func hashRequirements(sourcePath string, reqs []Requirement) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	for _, r := range reqs {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
		h.Write([]byte(r.Description))
		h.Write([]byte{0})
		h.Write([]byte(r.Priority))
		h.Write([]byte{0})
		h.Write([]byte(r.Category))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(r.AcceptanceCriteria, "\x1f")))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsEmpty reports whether the specification carries no requirements, the
// boundary case the planner must turn into an empty IncrementPlan.
func (s *Specification) IsEmpty() bool {
	return s == nil || len(s.Requirements) == 0
}
