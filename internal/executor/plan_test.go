package executor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodev/internal/specification"
)

func TestPlan_EmptySpecificationYieldsEmptyPlan(t *testing.T) {
	spec := specification.New("empty.md", nil)
	plan, err := Plan(spec, "go")
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestPlan_SplitsCompoundDescriptionOnConjunctions(t *testing.T) {
	// Score = words/10 (0) + api(2) + database(3) + integrate(2) = 7, which
	// lands in the Moderate band, so this requirement is eligible to split.
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "R1", Description: "integrate the database api and log every request", Priority: specification.PriorityMedium},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)
	require.Len(t, plan.Increments, 2)
	assert.Equal(t, "R1.1", plan.Increments[0].ID)
	assert.Equal(t, "R1.2", plan.Increments[1].ID)
	assert.Equal(t, ComplexityModerate, plan.Increments[0].Implementation.EstimatedComplexity)
}

func TestPlan_TrivialRequirementIsNotSplitDespiteConnectorWord(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "R1", Description: "Add a function add(a,b) and return a+b", Priority: specification.PriorityMedium},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)
	require.Len(t, plan.Increments, 1)
	assert.Equal(t, "R1", plan.Increments[0].ID)
	assert.Equal(t, ComplexityTrivial, plan.Increments[0].Implementation.EstimatedComplexity)
}

func TestIdentifySubtasks_FallsBackToStructuralBreakdownWhenNoConnectorSplits(t *testing.T) {
	long := strings.Repeat("word ", 30) + "function"
	tasks := identifySubtasks(long)
	require.Len(t, tasks, 3)
	assert.Contains(t, tasks[0], "Create function signature for")
	assert.Contains(t, tasks[1], "Implement function body for")
	assert.Contains(t, tasks[2], "Add tests for")
}

func TestSynthesizeTestList_IncludesUnitPerExamplePlusCompile(t *testing.T) {
	tests := synthesizeTestList("R1", "add a thing", []string{"calling add(2,3) returns 5"}, "go")
	require.Len(t, tests, 3)
	assert.Equal(t, "test_r1", tests[0].ID)
	assert.Equal(t, "test_r1_0", tests[1].ID)
	assert.Equal(t, "compile_r1", tests[2].ID)
	for _, tc := range tests {
		assert.Equal(t, ExpectedSuccess, tc.ExpectedOutcome)
	}
}

func TestPlan_InfersDependencyFromAcceptanceCriteriaReference(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "R1", Description: "define the User struct", Priority: specification.PriorityHigh},
		{
			ID:                 "R2",
			Description:        "add a CreateUser handler",
			Priority:           specification.PriorityHigh,
			AcceptanceCriteria: []string{"relies on R1's User struct existing"},
		},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)

	byID := make(map[string]Increment)
	for _, inc := range plan.Increments {
		byID[inc.ID] = inc
	}
	assert.Equal(t, []string{"R1"}, byID["R2"].DependsOn)

	orderIndex := make(map[string]int)
	for i, id := range plan.Order {
		orderIndex[id] = i
	}
	assert.Less(t, orderIndex["R1"], orderIndex["R2"])
}

func TestPlan_OrdersByPriorityWhenNoDependency(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "LOW", Description: "nice to have", Priority: specification.PriorityLow},
		{ID: "CRIT", Description: "must fix now", Priority: specification.PriorityCritical},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)
	require.Equal(t, []string{"CRIT", "LOW"}, plan.Order)
}

func TestPlan_CriticalPathFollowsLongestChain(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "A", Description: "base layer", Priority: specification.PriorityHigh},
		{ID: "B", Description: "middle layer", Priority: specification.PriorityHigh, AcceptanceCriteria: []string{"builds on A"}},
		{ID: "C", Description: "top layer", Priority: specification.PriorityHigh, AcceptanceCriteria: []string{"builds on B"}},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, plan.CriticalPath)
}

func TestPlan_DefaultTargetPathUsesLanguageExtension(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "R1", Description: "add a parser", Priority: specification.PriorityMedium},
	})

	plan, err := Plan(spec, "python")
	require.NoError(t, err)
	require.Len(t, plan.Increments, 1)
	assert.Equal(t, "src/r1.py", plan.Increments[0].TargetPath)
}

func TestPlan_DiamondDependencyOrdersBothBranchesBeforeJoin(t *testing.T) {
	spec := specification.New("spec.md", []specification.Requirement{
		{ID: "BASE", Description: "shared base type", Priority: specification.PriorityHigh},
		{ID: "LEFT", Description: "left branch", Priority: specification.PriorityHigh, AcceptanceCriteria: []string{"builds on BASE"}},
		{ID: "RIGHT", Description: "right branch", Priority: specification.PriorityHigh, AcceptanceCriteria: []string{"builds on BASE"}},
		{ID: "JOIN", Description: "join point", Priority: specification.PriorityHigh, AcceptanceCriteria: []string{"builds on LEFT", "builds on RIGHT"}},
	})

	plan, err := Plan(spec, "go")
	require.NoError(t, err)

	byID := make(map[string]Increment)
	for _, inc := range plan.Increments {
		byID[inc.ID] = inc
	}
	// DependsOn order is insignificant; ignore it with cmpopts.SortSlices so
	// the diff only flags genuine set differences rather than ordering noise.
	wantDeps := []string{"LEFT", "RIGHT"}
	if diff := cmp.Diff(wantDeps, byID["JOIN"].DependsOn, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("JOIN.DependsOn mismatch (-want +got):\n%s", diff)
	}

	orderIndex := make(map[string]int)
	for i, id := range plan.Order {
		orderIndex[id] = i
	}
	assert.Less(t, orderIndex["BASE"], orderIndex["LEFT"])
	assert.Less(t, orderIndex["BASE"], orderIndex["RIGHT"])
	assert.Less(t, orderIndex["LEFT"], orderIndex["JOIN"])
	assert.Less(t, orderIndex["RIGHT"], orderIndex["JOIN"])
}

func TestIncrementFingerprint_StableForSameInputs(t *testing.T) {
	a := Increment{ID: "R1", Requirement: specification.Requirement{ID: "R1"}, Description: "x", DependsOn: []string{"A", "B"}}
	b := Increment{ID: "R1", Requirement: specification.Requirement{ID: "R1"}, Description: "x", DependsOn: []string{"A", "B"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}
