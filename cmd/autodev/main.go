// Package main implements the autodev CLI entry point and command
// registration hub. Command implementations are split across cmd_*.go
// files by concern, mirroring the teacher's cmd/nerd main.go convention.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, init()
//   - app.go        - newApp(): wires Gatekeeper/Rollback/Router/Executor/Orchestrator
//   - cmd_control.go - start, stop, pause, resume, emergency-stop, status
//   - cmd_review.go  - review, approve, reject, set-limit
//   - cmd_run.go     - run, monitor, validate
//   - cmd_init.go    - init, check-safety
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	safetyPreset string
	modeFlag     string
	dryRun       bool
	skipValidate bool
	noConfirm    bool
	forceFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "autodev",
	Short: "autodev - autonomous, self-modifying code-development agent",
	Long: `autodev reads natural-language specifications and, through a pipeline
of LLM calls, validation tools, and filesystem writes, produces and
incrementally evolves an implementation under strict safety boundaries.

Every write passes through the Safety Gatekeeper; every increment is
checkpointed before it's attempted so a failed change rolls back cleanly.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "autodev.toml", "path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&safetyPreset, "safety", "", "override safety preset: permissive|standard|strict")

	startCmd.Flags().StringVar(&modeFlag, "mode", "", "orchestrator mode: observation|assisted|semi-autonomous|fully-autonomous")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan and report without writing any files")
	runCmd.Flags().BoolVar(&skipValidate, "skip-validation", false, "skip compile/test/lint validators (not recommended)")
	reviewCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "approve all pending changes without prompting")
	emergencyStopCmd.Flags().BoolVar(&forceFlag, "force", false, "skip the confirmation prompt")
	monitorCmd.Flags().Bool("watch", false, "keep the dashboard open and polling instead of printing once")

	rootCmd.AddCommand(
		startCmd, stopCmd, pauseCmd, resumeCmd, emergencyStopCmd, statusCmd,
		reviewCmd, approveCmd, rejectCmd, setLimitCmd,
		runCmd, monitorCmd, validateCmd,
		initCmd, checkSafetyCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
