package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var growthElapsed time.Duration

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduling pass",
	Long: `Advance every time-triggered transition that is due: start scheduled
drying sessions, complete finished ones, and expire unaccepted orders.
Safe to run from cron; overlapping runs never double-apply a transition.

Subcommands:
  growth  Accrue mite-risk growth from current weather`,
	RunE: runTick,
}

var tickGrowthCmd = &cobra.Command{
	Use:   "growth",
	Short: "Accrue mite-risk growth on all items",
	RunE:  runTickGrowth,
}

func init() {
	tickGrowthCmd.Flags().DurationVar(&growthElapsed, "elapsed", time.Hour, "time since the last growth pass")

	tickCmd.AddCommand(tickGrowthCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	report, err := coord.Tick(context.Background())
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	fmt.Printf("Started: %d, Completed: %d, Expired orders: %d, Skipped: %d\n",
		report.Started, report.Completed, report.ExpiredOrders, report.Skipped)
	return nil
}

func runTickGrowth(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	report, err := coord.GrowthTick(context.Background(), growthElapsed)
	if err != nil {
		return fmt.Errorf("growth tick: %w", err)
	}

	fmt.Printf("Processed: %d, Skipped: %d\n", report.Processed, report.Skipped)
	return nil
}
