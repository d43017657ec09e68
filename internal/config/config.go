// Package config loads and validates autodev's TOML configuration file.
// The schema mirrors the teacher's internal/config package structure
// (one struct per concern, a Default constructor, a Load that
// layers file content over defaults) but the serialization format is
// TOML via github.com/BurntSushi/toml rather than YAML, per the explicit
// external-interface requirement in SPEC_FULL.md §6.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	aerrors "autodev/internal/errors"
)

// Config is the root of the TOML document.
type Config struct {
	Project    ProjectConfig    `toml:"project"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Synthesis  SynthesisConfig  `toml:"synthesis"`
	Parser     ParserConfig     `toml:"parser"`
	Validation ValidationConfig `toml:"validation"`
	Rollback   RollbackConfig   `toml:"rollback"`
	Safety     SafetyConfig     `toml:"safety"`
	LLM        LLMConfig        `toml:"llm"`
	Logging    LoggingConfig    `toml:"logging"`
}

type ProjectConfig struct {
	Name    string `toml:"name"`
	Path    string `toml:"path"`
	Version string `toml:"version"`
}

type MonitorConfig struct {
	Watch       []string `toml:"watch"`
	Exclude     []string `toml:"exclude"`
	DebounceMS  int      `toml:"debounce_ms"`
}

type SynthesisConfig struct {
	TargetDir      string   `toml:"target_dir"`
	SafetyMode     string   `toml:"safety_mode"` // permissive | standard | strict
	AllowPaths     []string `toml:"allow_paths"`
	DenyPaths      []string `toml:"deny_paths"`
	DryRunDefault  bool     `toml:"dry_run_default"`
	MaxFileSize    int64    `toml:"max_file_size"`
}

type ParserConfig struct {
	IncludeTODOs  bool     `toml:"include_todos"`
	TODOPatterns  []string `toml:"todo_patterns"`
	TODOFileTypes []string `toml:"todo_file_types"`
}

type ValidationConfig struct {
	RunTests          bool     `toml:"run_tests"`
	RunLinting        bool     `toml:"run_linting"`
	SecurityScanning  bool     `toml:"security_scanning"`
	MinCoverage       float64  `toml:"min_coverage"`
	PreValidation     []string `toml:"pre_validation"`
	PostValidation    []string `toml:"post_validation"`
}

type RollbackConfig struct {
	Enabled            bool   `toml:"enabled"`
	BackupDir          string `toml:"backup_dir"`
	MaxBackups         int    `toml:"max_backups"`
	RollbackOnCompile  bool   `toml:"rollback_on_compile_fail"`
	RollbackOnTest     bool   `toml:"rollback_on_test_fail"`
	RollbackOnValidate bool   `toml:"rollback_on_validation_fail"`
}

type SafetyConfig struct {
	RequireConfirmation    bool     `toml:"require_confirmation"`
	ForbiddenPaths         []string `toml:"forbidden_paths"`
	MaxFileSize            int64    `toml:"max_file_size"`
	MaxFilesPerOperation   int      `toml:"max_files_per_operation"`
	MaxOperationsPerSession int     `toml:"max_operations_per_session"`
	MaxChangesPerDay       int      `toml:"max_changes_per_day"`
}

type LLMConfig struct {
	CacheTTL        Duration `toml:"cache_ttl"`
	MaxRetries      int      `toml:"max_retries"`
	RequestTimeout  Duration `toml:"request_timeout"`
	RateLimitPerMin int      `toml:"rate_limit_per_minute"`
	GeminiAPIKeyEnv string   `toml:"gemini_api_key_env"`
	ClaudeCLIPath   string   `toml:"claude_cli_path"`
}

type LoggingConfig struct {
	DebugMode bool `toml:"debug_mode"`
}

// Duration wraps time.Duration so BurntSushi/toml can decode plain
// strings like "5m" via UnmarshalText, matching how the teacher's own
// YAML config stores human-readable durations.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// SafetyPreset is one of the three named Gatekeeper configuration
// presets an operator selects via `self-dev start --safety=...`.
type SafetyPreset string

const (
	SafetyPermissive SafetyPreset = "permissive"
	SafetyStandard   SafetyPreset = "standard"
	SafetyStrict     SafetyPreset = "strict"
)

// Default returns the baseline configuration. Strict safety is the
// default when no config file is present, matching "Strict is the
// default when targeting self" (spec.md §4.E).
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Name:    "autodev",
			Version: "0.1.0",
			Path:    ".",
		},
		Monitor: MonitorConfig{
			Watch:      []string{"specs/", "TODO.md"},
			Exclude:    []string{".git/", ".autodev/"},
			DebounceMS: 500,
		},
		Synthesis: SynthesisConfig{
			TargetDir:     ".",
			SafetyMode:    string(SafetyStrict),
			AllowPaths:    []string{"./"},
			DenyPaths:     []string{".git/", ".autodev/"},
			DryRunDefault: false,
			MaxFileSize:   1 << 20,
		},
		Parser: ParserConfig{
			IncludeTODOs:  true,
			TODOPatterns:  []string{"TODO", "FIXME", "XXX"},
			TODOFileTypes: []string{".go", ".md", ".ts", ".py"},
		},
		Validation: ValidationConfig{
			RunTests:         true,
			RunLinting:       true,
			SecurityScanning: true,
			MinCoverage:      0,
		},
		Rollback: RollbackConfig{
			Enabled:            true,
			BackupDir:          ".autodev/backups",
			MaxBackups:         5,
			RollbackOnCompile:  true,
			RollbackOnTest:     true,
			RollbackOnValidate: true,
		},
		Safety: SafetyConfig{
			RequireConfirmation:    true,
			ForbiddenPaths:         []string{".git/", ".autodev/", "go.sum"},
			MaxFileSize:            1 << 20,
			MaxFilesPerOperation:   5,
			MaxOperationsPerSession: 10000,
			MaxChangesPerDay:       10,
		},
		LLM: LLMConfig{
			CacheTTL:        Duration{5 * time.Minute},
			MaxRetries:      3,
			RequestTimeout:  Duration{60 * time.Second},
			RateLimitPerMin: 50,
			GeminiAPIKeyEnv: "GEMINI_API_KEY",
			ClaudeCLIPath:   "claude",
		},
		Logging: LoggingConfig{DebugMode: false},
	}
}

// Load reads a TOML file at path and layers it over Default(). A missing
// file is not an error — autodev runs with defaults (Strict safety) —
// but a malformed file is a Configuration error that must abort start.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, aerrors.Wrapf(aerrors.Configuration, err, "config: read %s", path)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, aerrors.Wrapf(aerrors.Configuration, err, "config: parse %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, aerrors.Wrapf(aerrors.Configuration, err, "config: validate %s", path)
	}

	return cfg, nil
}

// Validate checks cross-field invariants that TOML decoding alone can't.
func (c *Config) Validate() error {
	switch SafetyPreset(c.Synthesis.SafetyMode) {
	case SafetyPermissive, SafetyStandard, SafetyStrict:
	default:
		return fmt.Errorf("synthesis.safety_mode must be one of permissive|standard|strict, got %q", c.Synthesis.SafetyMode)
	}
	if c.Safety.MaxChangesPerDay < 0 {
		return fmt.Errorf("safety.max_changes_per_day must be >= 0")
	}
	if c.Rollback.MaxBackups < 0 {
		return fmt.Errorf("rollback.max_backups must be >= 0")
	}
	return nil
}

// ApplyPreset overrides the Safety/Synthesis sections with one of the
// three named presets, matching the `--safety=` CLI flag and spec.md
// §4.E's Permissive/Standard/Strict preset semantics.
func (c *Config) ApplyPreset(preset SafetyPreset) {
	switch preset {
	case SafetyPermissive:
		c.Safety.RequireConfirmation = false
		c.Safety.MaxFilesPerOperation = 100
		c.Safety.MaxChangesPerDay = 200
	case SafetyStandard:
		c.Safety.RequireConfirmation = true
		c.Safety.MaxFilesPerOperation = 20
		c.Safety.MaxChangesPerDay = 50
	case SafetyStrict:
		c.Safety.RequireConfirmation = true
		c.Safety.MaxFilesPerOperation = 5
		c.Safety.MaxChangesPerDay = 10
	}
	c.Synthesis.SafetyMode = string(preset)
}

// AutodevDir returns the `.autodev/` state directory rooted at the
// project path, creating it if necessary.
func (c *Config) AutodevDir() (string, error) {
	dir := filepath.Join(c.Project.Path, ".autodev")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create state dir: %w", err)
	}
	return dir, nil
}
