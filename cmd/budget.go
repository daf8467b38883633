package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retrieval-cli/internal/budget"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show today's external API call budget",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tracker, err := budget.NewTracker(cfg.Budget.StateFile, cfg.Budget.MaxCallsPerDay)
		if err != nil {
			return eris.Wrap(err, "load budget state")
		}

		used, ceiling := tracker.Used()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]int{
			"used":      used,
			"ceiling":   ceiling,
			"remaining": tracker.Remaining(),
		})
	},
}

var budgetResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero today's budget counter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tracker, err := budget.NewTracker(cfg.Budget.StateFile, cfg.Budget.MaxCallsPerDay)
		if err != nil {
			return eris.Wrap(err, "load budget state")
		}
		if err := tracker.Reset(); err != nil {
			return eris.Wrap(err, "reset budget state")
		}
		cmd.Println("Budget counter reset.")
		return nil
	},
}

func init() {
	budgetCmd.AddCommand(budgetResetCmd)
	rootCmd.AddCommand(budgetCmd)
}
