package specification

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_Next_YieldsOneSpecPerMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\n// TODO: handle the error case\nfunc f() {}\n")

	src := NewFileSource(dir, nil)
	ctx := context.Background()

	spec, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if spec == nil {
		t.Fatal("expected a Specification for the TODO marker")
	}
	if len(spec.Requirements) != 1 {
		t.Fatalf("expected exactly one requirement, got %d", len(spec.Requirements))
	}
	if spec.Requirements[0].Description != "handle the error case" {
		t.Errorf("unexpected description: %q", spec.Requirements[0].Description)
	}

	next, err := src.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Error("expected nil once the scan is exhausted")
	}
}

func TestFileSource_Next_FindsMultipleMarkersAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "// TODO: first thing\n")
	writeFile(t, dir, "sub/b.go", "// FIXME: second thing\n")

	src := NewFileSource(dir, nil)
	ctx := context.Background()

	var descs []string
	for {
		spec, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if spec == nil {
			break
		}
		descs = append(descs, spec.Requirements[0].Description)
	}

	if len(descs) != 2 {
		t.Fatalf("expected 2 markers found, got %d: %v", len(descs), descs)
	}
}

func TestFileSource_Scan_SkipsGitAndAutodevDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".git/COMMIT_EDITMSG", "// TODO: should not be scanned\n")
	writeFile(t, dir, ".autodev/state.txt", "// TODO: should also not be scanned\n")
	writeFile(t, dir, "real.go", "// TODO: should be scanned\n")

	src := NewFileSource(dir, nil)
	spec, err := src.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if spec == nil {
		t.Fatal("expected to find the marker in real.go")
	}
	if spec.Requirements[0].Description != "should be scanned" {
		t.Errorf("expected only the non-excluded file to be scanned, got %q", spec.Requirements[0].Description)
	}

	next, _ := src.Next(context.Background())
	if next != nil {
		t.Error("expected no further markers once excluded directories are skipped")
	}
}

func TestFileSource_Scan_IgnoresUnscannableExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "binary.exe", "TODO: fake binary content\n")

	src := NewFileSource(dir, nil)
	spec, err := src.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if spec != nil {
		t.Error("expected .exe files to be skipped regardless of marker content")
	}
}

func TestFileSource_MatchesPattern_RestrictsToConfiguredMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "// FIXME: should be ignored when only TODO is configured\n")

	src := NewFileSource(dir, []string{"TODO"})
	spec, err := src.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if spec != nil {
		t.Error("expected FIXME marker to be ignored when Patterns is restricted to TODO")
	}
}

func TestFileSource_Next_EmptyDirectoryYieldsNoSpecs(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource(dir, nil)
	spec, err := src.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if spec != nil {
		t.Error("expected no Specification from an empty directory")
	}
}

func TestFileSource_Next_PriorityVariesByMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "// FIXME: urgent thing\n")
	writeFile(t, dir, "b.go", "// HACK: sloppy workaround\n")
	writeFile(t, dir, "c.go", "// NOTE: minor observation\n")

	src := NewFileSource(dir, nil)
	ctx := context.Background()

	byDesc := make(map[string]Priority)
	for {
		spec, err := src.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if spec == nil {
			break
		}
		byDesc[spec.Requirements[0].Description] = spec.Requirements[0].Priority
	}

	if byDesc["urgent thing"] != PriorityHigh {
		t.Errorf("FIXME priority = %v, want %v", byDesc["urgent thing"], PriorityHigh)
	}
	if byDesc["sloppy workaround"] != PriorityLow {
		t.Errorf("HACK priority = %v, want %v", byDesc["sloppy workaround"], PriorityLow)
	}
	if byDesc["minor observation"] != PriorityLow {
		t.Errorf("NOTE priority = %v, want %v", byDesc["minor observation"], PriorityLow)
	}
}

func TestSlugPath_StripsExtensionAndReplacesSpaces(t *testing.T) {
	got := slugPath(filepath.Join("some", "dir", "my file.go"))
	if got != "my-file" {
		t.Errorf("slugPath() = %q, want %q", got, "my-file")
	}
}
