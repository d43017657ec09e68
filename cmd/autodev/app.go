package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autodev/internal/config"
	"autodev/internal/eventlog"
	"autodev/internal/execshell"
	"autodev/internal/executor"
	"autodev/internal/gatekeeper"
	"autodev/internal/logging"
	"autodev/internal/orchestrator"
	"autodev/internal/rollback"
	"autodev/internal/router"
	"autodev/internal/providers"
	"autodev/internal/specification"
)

// app bundles every wired collaborator a command needs. Built fresh per
// invocation from the resolved config file, mirroring the teacher's
// main.go pattern of building long-lived dependencies in one place rather
// than scattering global state across cmd_*.go files.
type app struct {
	cfg    *config.Config
	gate   *gatekeeper.Gatekeeper
	rb     *rollback.Manager
	rt     *router.Router
	exec   *executor.Executor
	orch   *orchestrator.Orchestrator
	events *eventlog.Log
	watch  *specification.WatchSource
}

func newApp(cfgPath string, safetyPreset string) (*app, error) {
	return newAppWithOptions(cfgPath, safetyPreset, false)
}

func newAppWithOptions(cfgPath string, safetyPreset string, skipValidation bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("autodev: load config: %w", err)
	}
	if safetyPreset != "" {
		cfg.ApplyPreset(config.SafetyPreset(safetyPreset))
	}

	if err := logging.Init(cfg.Logging.DebugMode); err != nil {
		return nil, fmt.Errorf("autodev: init logging: %w", err)
	}

	stateDir, err := cfg.AutodevDir()
	if err != nil {
		return nil, err
	}

	gate := gatekeeper.New(gatekeeper.Config{
		ProjectRoot:             cfg.Project.Path,
		AllowPaths:              cfg.Synthesis.AllowPaths,
		DenyPaths:               cfg.Synthesis.DenyPaths,
		ForbiddenPaths:          cfg.Safety.ForbiddenPaths,
		MaxFileSizeBytes:        cfg.Safety.MaxFileSize,
		MaxFilesPerOperation:    cfg.Safety.MaxFilesPerOperation,
		MaxOperationsPerSession: cfg.Safety.MaxOperationsPerSession,
		RequireConfirmation:     cfg.Safety.RequireConfirmation,
	})

	rb := rollback.New(cfg.Rollback.BackupDir)

	cache, err := router.OpenCache(filepath.Join(stateDir, "router-cache.db"), cfg.LLM.CacheTTL.Duration, 1000)
	if err != nil {
		return nil, fmt.Errorf("autodev: open router cache: %w", err)
	}

	rt := router.New(cache, router.Config{
		CacheTTL:        cfg.LLM.CacheTTL.Duration,
		MaxRetries:      cfg.LLM.MaxRetries,
		RateLimitPerMin: cfg.LLM.RateLimitPerMin,
		StatsWindow:     100,
	})
	registerProviders(rt, cfg)

	shell := execshell.New().WithTimeout(2 * time.Minute)

	exec := executor.New(executor.Config{
		Language:                "go",
		Validators:              executor.DefaultGoValidators(),
		MaxAttemptsPerIncrement: 3,
		KeepCheckpoints:         cfg.Rollback.MaxBackups,
		SkipValidation:          skipValidation,
	}, rt, gate, rb, shell)

	events, err := eventlog.Open(filepath.Join(stateDir, "events.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("autodev: open event log: %w", err)
	}

	watch, err := specification.NewWatchSource(cfg.Project.Path, cfg.Parser.TODOPatterns,
		time.Duration(cfg.Monitor.DebounceMS)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("autodev: start file watcher: %w", err)
	}

	orch := orchestrator.New(orchestrator.Config{
		Mode:             orchestrator.Mode(modeFromPreset(config.SafetyPreset(cfg.Synthesis.SafetyMode))),
		CycleInterval:    5 * time.Minute,
		MaxChangesPerDay: cfg.Safety.MaxChangesPerDay,
		Language:         "go",
	}, watch, exec, rb, events)

	return &app{cfg: cfg, gate: gate, rb: rb, rt: rt, exec: exec, orch: orch, events: events, watch: watch}, nil
}

// modeFromPreset maps a safety preset onto a starting orchestrator Mode
// when the operator hasn't explicitly passed --mode; strict safety starts
// conservatively in Assisted rather than FullyAutonomous.
func modeFromPreset(preset config.SafetyPreset) string {
	switch preset {
	case config.SafetyPermissive:
		return string(orchestrator.ModeFullyAutonomous)
	case config.SafetyStandard:
		return string(orchestrator.ModeSemiAutonomous)
	default:
		return string(orchestrator.ModeAssisted)
	}
}

func registerProviders(rt *router.Router, cfg *config.Config) {
	rt.Register(providers.NewHeuristic())
	rt.Register(providers.NewCLIProvider("claude-cli", cfg.LLM.ClaudeCLIPath, router.Medium, 0.0,
		providers.ClaudeCLIArgs("")))
	rt.Register(providers.NewGeminiProvider(os.Getenv(cfg.LLM.GeminiAPIKeyEnv), ""))
}

func (a *app) close() {
	if a.watch != nil {
		a.watch.Stop()
	}
	if a.events != nil {
		_ = a.events.Close()
	}
}
