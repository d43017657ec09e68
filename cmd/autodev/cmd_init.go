package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autodev/internal/config"
	"autodev/internal/gatekeeper"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "write a default autodev.toml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil && !forceFlag {
			return fmt.Errorf("autodev: %s already exists (use --force to overwrite)", cfgPath)
		}

		cfg := config.Default()
		if safetyPreset != "" {
			cfg.ApplyPreset(config.SafetyPreset(safetyPreset))
		}

		f, err := os.Create(cfgPath)
		if err != nil {
			return fmt.Errorf("autodev: create %s: %w", cfgPath, err)
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return fmt.Errorf("autodev: encode %s: %w", cfgPath, err)
		}

		color.Green("wrote %s (safety=%s)", cfgPath, cfg.Synthesis.SafetyMode)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "overwrite an existing config file")
}

var checkSafetyCmd = &cobra.Command{
	Use:   "check-safety <path> [change-type]",
	Short: "run a single path through the Gatekeeper and print the decision",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()

		changeType := gatekeeper.Modify
		if len(args) == 2 {
			changeType = gatekeeper.ChangeType(args[1])
		}

		decision := a.gate.Validate(gatekeeper.FileChange{
			Path: args[0],
			Type: changeType,
		}, 1)

		switch decision.Outcome {
		case gatekeeper.Approved:
			color.Green("APPROVED: %s", args[0])
		case gatekeeper.NeedsApproval:
			color.Yellow("NEEDS APPROVAL: %s (%s)", args[0], decision.Reason)
		case gatekeeper.Rejected:
			color.Red("REJECTED: %s (%s)", args[0], decision.Reason)
		}
		return nil
	},
}
