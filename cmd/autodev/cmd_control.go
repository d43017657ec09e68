package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autodev/internal/orchestrator"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the self-development cycle loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()

		if modeFlag != "" {
			if err := applyModeFlag(a, modeFlag); err != nil {
				return err
			}
		}

		a.watch.Start(cmd.Context())
		a.orch.Start(cmd.Context())
		color.Green("autodev started (mode=%s, safety=%s)", a.orch.GetStatus().Mode, a.cfg.Synthesis.SafetyMode)
		<-cmd.Context().Done()
		return nil
	},
}

func applyModeFlag(a *app, mode string) error {
	switch mode {
	case "observation":
		a.orch.SetMode(orchestrator.ModeObservation)
	case "assisted":
		a.orch.SetMode(orchestrator.ModeAssisted)
	case "semi-autonomous":
		a.orch.SetMode(orchestrator.ModeSemiAutonomous)
	case "fully-autonomous":
		a.orch.SetMode(orchestrator.ModeFullyAutonomous)
	default:
		return fmt.Errorf("autodev: unknown --mode %q", mode)
	}
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop the cycle loop and return to Idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		a.orch.Stop()
		color.Yellow("autodev stopped")
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "pause the cycle loop at the next tick boundary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		a.orch.Pause()
		color.Yellow("autodev paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "resume a paused cycle loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		a.orch.Resume()
		color.Green("autodev resumed")
		return nil
	},
}

var emergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop",
	Short: "immediately roll back every outstanding checkpoint and force Idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !forceFlag {
			fmt.Print("this rolls back every outstanding checkpoint. continue? [y/N]: ")
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				color.Yellow("aborted")
				return nil
			}
		}

		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.orch.EmergencyStop(); err != nil {
			color.Red("emergency stop completed with errors: %v", err)
			return err
		}
		color.Green("emergency stop complete: all checkpoints rolled back")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the current orchestrator state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		printStatus(a.orch.GetStatus())
		return nil
	},
}

func printStatus(s orchestrator.Status) {
	fmt.Printf("state:            %s\n", s.State)
	fmt.Printf("mode:             %s\n", s.Mode)
	fmt.Printf("paused:           %v\n", s.Paused)
	fmt.Printf("changes today:    %d\n", s.ChangesToday)
	fmt.Printf("max per day:      %d\n", s.MaxChangesPerDay)
	fmt.Printf("pending changes:  %d\n", s.PendingChanges)
	if s.LastError != "" {
		color.Red("last error:       %s", s.LastError)
	}
}
