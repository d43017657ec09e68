package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autodev/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "show pending changes awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()

		pending := a.orch.ReviewChanges()
		if len(pending) == 0 {
			fmt.Println("no pending changes")
			return nil
		}

		for _, pc := range pending {
			fmt.Println(tui.RenderChangeSummary(pc))
			if noConfirm {
				if err := a.orch.Approve(pc.ID); err != nil {
					return err
				}
				color.Green("approved %s", pc.ID)
				continue
			}
			if !confirmPrompt(fmt.Sprintf("approve %s?", pc.ID)) {
				if err := a.orch.Reject(pc.ID); err != nil {
					return err
				}
				color.Yellow("rejected %s", pc.ID)
				continue
			}
			if err := a.orch.Approve(pc.ID); err != nil {
				return err
			}
			color.Green("approved %s", pc.ID)
		}
		return nil
	},
}

func confirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return line == "y\n" || line == "Y\n"
}

var approveCmd = &cobra.Command{
	Use:   "approve <change-id>",
	Short: "approve a specific pending change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.orch.Approve(args[0]); err != nil {
			return err
		}
		color.Green("approved %s", args[0])
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <change-id>",
	Short: "reject a specific pending change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.orch.Reject(args[0]); err != nil {
			return err
		}
		color.Yellow("rejected %s", args[0])
		return nil
	},
}

var setLimitCmd = &cobra.Command{
	Use:   "set-limit <n>",
	Short: "set the maximum number of approved changes per day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("autodev: invalid limit %q: %w", args[0], err)
		}
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()
		a.orch.SetMaxChangesPerDay(n)
		color.Green("max_changes_per_day set to %d", n)
		return nil
	},
}
