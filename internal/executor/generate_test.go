package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodev/internal/gatekeeper"
)

func TestParseResponse_RoundTripsThroughFormatChanges(t *testing.T) {
	cases := []gatekeeper.FileChange{
		{Path: "src/foo.go", Type: gatekeeper.Create, Content: []byte("package foo\n")},
		{Path: "src/bar.go", Type: gatekeeper.Modify, StartLine: 3, EndLine: 5, Content: []byte("func Bar() {}\n")},
		{Path: "src/baz.go", Type: gatekeeper.Create, Content: []byte("line one\nline two")},
	}

	got := parseResponse(formatChanges(cases), "src/default.go")
	require.Len(t, got, len(cases))
	for i, want := range cases {
		assert.Equal(t, want.Path, got[i].Path)
		assert.Equal(t, want.Type, got[i].Type)
		assert.Equal(t, string(want.Content), string(got[i].Content))
		if want.Type == gatekeeper.Modify {
			assert.Equal(t, want.StartLine, got[i].StartLine)
			assert.Equal(t, want.EndLine, got[i].EndLine)
		}
	}
}

func TestParseResponse_NoRecognizedFenceFallsBackToDefaultPath(t *testing.T) {
	changes := parseResponse("package foo\n", "src/default.go")
	require.Len(t, changes, 1)
	assert.Equal(t, "src/default.go", changes[0].Path)
	assert.Equal(t, gatekeeper.Create, changes[0].Type)
	assert.Equal(t, "package foo\n", string(changes[0].Content))
}

func TestParseResponse_ModifyFenceParsesLineRange(t *testing.T) {
	response := "```modify:src/foo.go:10:12\nreplacement\n```\n"
	changes := parseResponse(response, "src/default.go")
	require.Len(t, changes, 1)
	assert.Equal(t, gatekeeper.Modify, changes[0].Type)
	assert.Equal(t, "src/foo.go", changes[0].Path)
	assert.Equal(t, 10, changes[0].StartLine)
	assert.Equal(t, 12, changes[0].EndLine)
	assert.Equal(t, "replacement", string(changes[0].Content))
}

func TestBuildGenerationPrompt_IncludesTestsAndApproach(t *testing.T) {
	inc := Increment{
		Description: "add a greeter",
		Implementation: ImplementationPlan{
			Approach:            "generate the minimal implementation that makes the synthesized test list pass",
			EstimatedComplexity: ComplexityTrivial,
		},
		Tests: []TestCase{
			{ID: "test_r1", Name: "Test add a greeter", Command: "go test -run test_r1 ./...", ExpectedOutcome: ExpectedSuccess},
		},
	}

	prompt := buildGenerationPrompt(inc)
	assert.Contains(t, prompt, "add a greeter")
	assert.Contains(t, prompt, "Test add a greeter")
	assert.Contains(t, prompt, "```create:path/to/file.ext")
	assert.Contains(t, prompt, "```modify:path/to/file.ext:start_line:end_line")
}
