package main

import (
	"fmt"
	"time"

	"github.com/franz/trophy-janitor/internal/prices"
	"github.com/franz/trophy-janitor/internal/report"
	"github.com/franz/trophy-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Write the dated price diff report",
	Long: `Compare reports/prices_current.json with prices_previous.json, write a
dated Markdown report (top discounts plus a table of changed prices) and
roll the current snapshot to previous for the next run.`,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	reportsDir := viper.GetString("reports-dir")

	cur, err := prices.ReadSnapshot(prices.CurrentPath(reportsDir))
	if err != nil {
		return err
	}
	prev, err := prices.ReadSnapshot(prices.PreviousPath(reportsDir))
	if err != nil {
		return err
	}
	if len(cur.Items) == 0 {
		util.WarnLog("Current snapshot is empty, run 'pts prices' first")
	}

	diff := prices.BuildDiff(prev, cur)

	path, err := prices.WriteReport(reportsDir, cur, diff, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := prices.Rotate(reportsDir); err != nil {
		return fmt.Errorf("failed to roll snapshots: %w", err)
	}

	summary := report.DiffSummary{
		Changes:      len(diff.Changes),
		TopDiscounts: len(diff.TopDiscounts),
		ReportPath:   path,
	}
	util.SuccessLog("%s", summary.Line())
	return nil
}
