package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsStrictSafetyByDefault(t *testing.T) {
	cfg := Default()
	if cfg.Synthesis.SafetyMode != string(SafetyStrict) {
		t.Errorf("expected default safety mode %q, got %q", SafetyStrict, cfg.Synthesis.SafetyMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project.Name != "autodev" {
		t.Errorf("expected defaults when config file is absent, got %+v", cfg.Project)
	}
}

func TestLoad_ParsesAndLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autodev.toml")
	content := `
[project]
name = "myproject"

[safety]
max_changes_per_day = 5

[llm]
cache_ttl = "10m"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project.Name != "myproject" {
		t.Errorf("expected overridden project name, got %q", cfg.Project.Name)
	}
	if cfg.Safety.MaxChangesPerDay != 5 {
		t.Errorf("expected overridden max_changes_per_day, got %d", cfg.Safety.MaxChangesPerDay)
	}
	if cfg.LLM.CacheTTL.Duration != 10*time.Minute {
		t.Errorf("expected cache_ttl 10m, got %v", cfg.LLM.CacheTTL.Duration)
	}
	// untouched sections still carry their default values
	if cfg.Rollback.MaxBackups != 5 {
		t.Errorf("expected default rollback.max_backups to survive layering, got %d", cfg.Rollback.MaxBackups)
	}
}

func TestLoad_MalformedTOMLIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autodev.toml")
	if err := os.WriteFile(path, []byte("this is not valid = = toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected malformed TOML to return an error")
	}
}

func TestLoad_InvalidSafetyModeFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autodev.toml")
	content := `
[synthesis]
safety_mode = "reckless"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected invalid safety_mode to fail validation")
	}
}

func TestValidate_RejectsNegativeMaxChangesPerDay(t *testing.T) {
	cfg := Default()
	cfg.Safety.MaxChangesPerDay = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative max_changes_per_day to fail validation")
	}
}

func TestValidate_RejectsNegativeMaxBackups(t *testing.T) {
	cfg := Default()
	cfg.Rollback.MaxBackups = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative rollback.max_backups to fail validation")
	}
}

func TestApplyPreset_PermissiveRelaxesLimitsAndDisablesConfirmation(t *testing.T) {
	cfg := Default()
	cfg.ApplyPreset(SafetyPermissive)
	if cfg.Safety.RequireConfirmation {
		t.Error("expected permissive preset to disable confirmation requirement")
	}
	if cfg.Safety.MaxChangesPerDay != 200 {
		t.Errorf("expected permissive max_changes_per_day 200, got %d", cfg.Safety.MaxChangesPerDay)
	}
	if cfg.Synthesis.SafetyMode != string(SafetyPermissive) {
		t.Errorf("expected synthesis.safety_mode updated to permissive, got %q", cfg.Synthesis.SafetyMode)
	}
}

func TestApplyPreset_StrictIsMoreRestrictiveThanStandard(t *testing.T) {
	cfg := Default()
	cfg.ApplyPreset(SafetyStandard)
	standardMax := cfg.Safety.MaxFilesPerOperation

	cfg.ApplyPreset(SafetyStrict)
	if cfg.Safety.MaxFilesPerOperation >= standardMax {
		t.Errorf("expected strict max_files_per_operation (%d) < standard (%d)", cfg.Safety.MaxFilesPerOperation, standardMax)
	}
}

func TestAutodevDir_CreatesStateDirectoryUnderProjectPath(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Project.Path = dir

	stateDir, err := cfg.AutodevDir()
	if err != nil {
		t.Fatal(err)
	}
	if stateDir != filepath.Join(dir, ".autodev") {
		t.Errorf("unexpected state dir: %q", stateDir)
	}
	info, err := os.Stat(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Error("expected .autodev to be a directory")
	}
}

func TestDuration_UnmarshalTextRejectsInvalidDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected invalid duration text to return an error")
	}
}

func TestDuration_RoundTripsThroughTextMarshaling(t *testing.T) {
	d := Duration{5 * time.Minute}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var roundTripped Duration
	if err := roundTripped.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if roundTripped.Duration != d.Duration {
		t.Errorf("round trip mismatch: got %v, want %v", roundTripped.Duration, d.Duration)
	}
}
