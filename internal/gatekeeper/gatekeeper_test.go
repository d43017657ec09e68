package gatekeeper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(root string) Config {
	return Config{
		ProjectRoot:             root,
		AllowPaths:              []string{"src/"},
		MaxFileSizeBytes:        1024,
		MaxFilesPerOperation:    5,
		MaxOperationsPerSession: 10,
	}
}

func TestValidate_ApprovesAllowedPath(t *testing.T) {
	root := t.TempDir()
	g := New(baseConfig(root))

	decision := g.Validate(FileChange{Path: "src/foo.go", Type: Create, Content: []byte("package foo")}, 1)

	assert.Equal(t, Approved, decision.Outcome)
}

func TestValidate_RejectsForbiddenPath(t *testing.T) {
	root := t.TempDir()
	g := New(baseConfig(root))

	decision := g.Validate(FileChange{Path: ".git/config", Type: Modify}, 1)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestValidate_RejectsPathOutsideAllowList(t *testing.T) {
	root := t.TempDir()
	g := New(baseConfig(root))

	decision := g.Validate(FileChange{Path: "other/foo.go", Type: Create}, 1)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestValidate_DeleteNeedsApprovalWhenConfirmationRequired(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(root)
	cfg.RequireConfirmation = true
	g := New(cfg)

	decision := g.Validate(FileChange{Path: "src/old.go", Type: Delete}, 1)

	assert.Equal(t, NeedsApproval, decision.Outcome)
}

func TestValidate_RejectsOversizedContent(t *testing.T) {
	root := t.TempDir()
	g := New(baseConfig(root))

	decision := g.Validate(FileChange{Path: "src/big.go", Type: Create, Content: make([]byte, 2048)}, 1)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestValidate_RejectsWhenOperationExceedsFileCount(t *testing.T) {
	root := t.TempDir()
	g := New(baseConfig(root))

	decision := g.Validate(FileChange{Path: "src/a.go", Type: Create}, 100)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestValidate_RejectsWhenSessionBudgetExhausted(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(root)
	cfg.MaxOperationsPerSession = 1
	g := New(cfg)

	first := g.Validate(FileChange{Path: "src/a.go", Type: Create}, 1)
	require.Equal(t, Approved, first.Outcome)

	second := g.Validate(FileChange{Path: "src/b.go", Type: Create}, 1)
	assert.Equal(t, Rejected, second.Outcome)
}

func TestValidate_RejectsEscapeViaTraversal(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		ProjectRoot:             root,
		AllowPaths:              []string{"./"},
		MaxFilesPerOperation:    5,
		MaxOperationsPerSession: 10,
	}
	g := New(cfg)

	decision := g.Validate(FileChange{Path: "../../etc/passwd", Type: Create}, 1)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestValidate_ResolvesSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	cfg := Config{ProjectRoot: root, AllowPaths: []string{"./"}, MaxFilesPerOperation: 5, MaxOperationsPerSession: 10}
	g := New(cfg)

	decision := g.Validate(FileChange{Path: filepath.Join("escape", "evil.go"), Type: Create}, 1)

	assert.Equal(t, Rejected, decision.Outcome)
}

func TestDefaultForbiddenPathsAlwaysMerged(t *testing.T) {
	g := New(Config{AllowPaths: []string{"./"}})
	decision := g.Validate(FileChange{Path: "go.sum", Type: Modify}, 1)
	assert.Equal(t, Rejected, decision.Outcome)
}
