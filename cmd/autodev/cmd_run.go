package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	tea "github.com/charmbracelet/bubbletea"

	"autodev/internal/executor"
	"autodev/internal/execshell"
	"autodev/internal/specification"
	"autodev/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <spec-file>",
	Short: "run one synchronous development cycle against a specification file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppWithOptions(cfgPath, safetyPreset, skipValidate)
		if err != nil {
			return err
		}
		defer a.close()

		spec, err := loadSpecFile(args[0])
		if err != nil {
			return err
		}

		plan, err := executor.Plan(spec, "go")
		if err != nil {
			return err
		}
		if plan.IsEmpty() {
			color.Yellow("specification produced no increments")
			return nil
		}

		if dryRun {
			printPlan(plan)
			return nil
		}

		barOut := io.Writer(os.Stderr)
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			barOut = io.Discard
		}
		bar := progressbar.NewOptions64(int64(len(plan.Increments)),
			progressbar.OptionSetDescription("executing increments"),
			progressbar.OptionSetWriter(barOut),
		)
		_ = bar.Add(0)

		pc, err := a.orch.ExecuteTask(cmd.Context(), spec)
		if err != nil {
			return err
		}
		_ = bar.Add(len(plan.Increments))

		fmt.Println(tui.RenderChangeSummary(*pc))
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "show the orchestrator dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgPath, safetyPreset)
		if err != nil {
			return err
		}
		defer a.close()

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			printStatus(a.orch.GetStatus())
			return nil
		}

		model := tui.NewMonitorModel(a.orch, 2*time.Second)
		p := tea.NewProgram(model)
		_, err = p.Run()
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "run the default Go validator pipeline against the working tree without generating anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := execshell.New()
		for _, v := range executor.DefaultGoValidators() {
			res, err := shell.Run(cmd.Context(), v.Command, v.Args(".")...)
			if err != nil {
				return err
			}
			if !res.Passed() {
				color.Red("%s: FAILED (exit %d)", v.Command, res.ExitCode)
				fmt.Println(res.Stderr)
				return fmt.Errorf("autodev: validation failed")
			}
			color.Green("%s: passed", v.Command)
		}
		return nil
	},
}

func loadSpecFile(path string) (*specification.Specification, error) {
	req := specification.Requirement{
		ID:          "CLI-1",
		Description: "implement the contents of " + path,
		Priority:    specification.PriorityMedium,
		Category:    specification.CategoryFunctional,
	}
	return specification.New(path, []specification.Requirement{req}), nil
}

func printPlan(plan *executor.Plan) {
	fmt.Printf("plan: %d increment(s), critical path length %d\n", len(plan.Increments), len(plan.CriticalPath))
	for _, id := range plan.Order {
		for _, inc := range plan.Increments {
			if inc.ID == id {
				fmt.Printf("  - %s -> %s (depends on %v)\n", inc.ID, inc.TargetPath, inc.DependsOn)
			}
		}
	}
}
