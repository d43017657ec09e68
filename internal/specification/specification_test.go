package specification

import "testing"

func TestNew_ComputesStableContentHash(t *testing.T) {
	reqs := []Requirement{{ID: "R1", Description: "do a thing", Priority: PriorityHigh}}
	a := New("spec.md", reqs)
	b := New("spec.md", reqs)
	if a.ContentHash != b.ContentHash {
		t.Fatalf("expected identical content hash for identical input, got %q and %q", a.ContentHash, b.ContentHash)
	}
	if a.ContentHash == "" {
		t.Fatal("expected non-empty content hash")
	}
}

func TestNew_ContentHashChangesWithRequirementText(t *testing.T) {
	a := New("spec.md", []Requirement{{ID: "R1", Description: "do a thing"}})
	b := New("spec.md", []Requirement{{ID: "R1", Description: "do a different thing"}})
	if a.ContentHash == b.ContentHash {
		t.Fatal("expected content hash to change when requirement description changes")
	}
}

func TestNew_ContentHashChangesWithSourcePath(t *testing.T) {
	reqs := []Requirement{{ID: "R1", Description: "do a thing"}}
	a := New("spec-a.md", reqs)
	b := New("spec-b.md", reqs)
	if a.ContentHash == b.ContentHash {
		t.Fatal("expected content hash to change when source path changes")
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	sigs := []APISignature{{Name: "Foo", Signature: "func Foo()"}}
	models := []DataModelSketch{{Name: "Bar", Fields: map[string]string{"X": "int"}}}
	scenarios := []BehaviorScenario{{Name: "happy path"}}
	examples := []UsageExample{{Description: "example"}}

	spec := New("spec.md", nil,
		WithAPISignatures(sigs),
		WithDataModels(models),
		WithScenarios(scenarios),
		WithExamples(examples),
	)

	if len(spec.APISignatures) != 1 || spec.APISignatures[0].Name != "Foo" {
		t.Errorf("expected APISignatures option applied, got %+v", spec.APISignatures)
	}
	if len(spec.DataModels) != 1 || spec.DataModels[0].Name != "Bar" {
		t.Errorf("expected DataModels option applied, got %+v", spec.DataModels)
	}
	if len(spec.Scenarios) != 1 || spec.Scenarios[0].Name != "happy path" {
		t.Errorf("expected Scenarios option applied, got %+v", spec.Scenarios)
	}
	if len(spec.Examples) != 1 || spec.Examples[0].Description != "example" {
		t.Errorf("expected Examples option applied, got %+v", spec.Examples)
	}
}

func TestIsEmpty_NilReceiverIsEmpty(t *testing.T) {
	var spec *Specification
	if !spec.IsEmpty() {
		t.Error("expected nil Specification to be empty")
	}
}

func TestIsEmpty_NoRequirementsIsEmpty(t *testing.T) {
	spec := New("spec.md", nil)
	if !spec.IsEmpty() {
		t.Error("expected Specification with no requirements to be empty")
	}
}

func TestIsEmpty_WithRequirementsIsNotEmpty(t *testing.T) {
	spec := New("spec.md", []Requirement{{ID: "R1"}})
	if spec.IsEmpty() {
		t.Error("expected Specification with requirements to be non-empty")
	}
}
