package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retrieval-cli/internal/dataset"
	"github.com/sells-group/retrieval-cli/internal/telemetry"
)

var (
	reportLogPath     string
	reportGroundTruth string
	reportJSON        bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Recompute a benchmark report from an existing execution log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logPath := reportLogPath
		if logPath == "" {
			logPath = filepath.Join(cfg.Telemetry.LogDir, "execution_log.jsonl")
		}

		groundTruth, err := dataset.LoadGroundTruth(reportGroundTruth)
		if err != nil {
			return eris.Wrap(err, "load ground truth")
		}

		report, err := telemetry.ReplayLog(logPath, groundTruth)
		if err != nil {
			return err
		}

		if reportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		report.PrintSummary(os.Stdout)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportLogPath, "log", "", "execution log path (default: <log dir>/execution_log.jsonl)")
	reportCmd.Flags().StringVar(&reportGroundTruth, "ground-truth", "", "ground truth JSON path")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the full report as JSON")
	reportCmd.MarkFlagRequired("ground-truth") //nolint:errcheck

	rootCmd.AddCommand(reportCmd)
}
