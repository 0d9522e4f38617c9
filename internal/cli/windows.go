package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/futonlab/miteguard/internal/models"
)

var (
	confirmInitiator string
	confirmStart     string
	confirmEnd       string
)

var windowsCmd = &cobra.Command{
	Use:   "windows <item-id>",
	Short: "Find optimal drying windows for an item",
	Long: `Fetch the forecast for an item's location and show the drying
windows ranked by suitability.

Examples:
  miteguard windows <item-id>
  miteguard windows confirm <item-id> --initiator alice --start 2025-06-10T09:00:00Z --end 2025-06-10T13:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runWindows,
}

var windowsConfirmCmd = &cobra.Command{
	Use:   "confirm <item-id>",
	Short: "Commit to drying the item in a window",
	Args:  cobra.ExactArgs(1),
	RunE:  runWindowsConfirm,
}

func init() {
	windowsConfirmCmd.Flags().StringVarP(&confirmInitiator, "initiator", "i", "", "user confirming the window (required)")
	windowsConfirmCmd.Flags().StringVar(&confirmStart, "start", "", "window start, RFC3339 (required)")
	windowsConfirmCmd.Flags().StringVar(&confirmEnd, "end", "", "window end, RFC3339 (required)")
	_ = windowsConfirmCmd.MarkFlagRequired("initiator")
	_ = windowsConfirmCmd.MarkFlagRequired("start")
	_ = windowsConfirmCmd.MarkFlagRequired("end")

	windowsCmd.AddCommand(windowsConfirmCmd)
}

func runWindows(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	best, assessment, err := coord.SelectWindow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("select window: %w", err)
	}

	if best == nil {
		fmt.Println("No suitable drying window in the forecast horizon.")
		if assessment.Reason != "" {
			fmt.Printf("Reason: %s\n", assessment.Reason)
		}
		return nil
	}

	fmt.Printf("Windows (%d):\n\n", len(assessment.Windows))
	for i, w := range assessment.Windows {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("%s %s to %s  score %5.1f  (%.1f C, %.0f%% humidity, %.0f%% rain)\n",
			marker,
			w.StartTime.Format("15:04"), w.EndTime.Format("15:04"),
			w.SuitabilityScore, w.AvgTemperature, w.AvgHumidity, w.AvgPrecipitationProbability)
	}
	fmt.Printf("\nBest window: %s to %s\n", best.StartTime.Format(time.RFC3339), best.EndTime.Format(time.RFC3339))
	return nil
}

func runWindowsConfirm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, err := time.Parse(time.RFC3339, confirmStart)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, confirmEnd)
	if err != nil {
		return fmt.Errorf("parse end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("end must be after start")
	}

	coord, err := getCoordinator(true)
	if err != nil {
		return err
	}
	session, err := coord.ConfirmIntervention(ctx, args[0], confirmInitiator, models.OptimalWindow{
		StartTime: start,
		EndTime:   end,
	}, nil)
	if err != nil {
		return fmt.Errorf("confirm intervention: %w", err)
	}

	fmt.Printf("Scheduled session %s\n", models.MustRecordIDString(session.ID))
	if session.PredictedAfter != nil {
		fmt.Printf("Predicted score after drying: %.2f (from %.2f)\n", *session.PredictedAfter, session.BeforeScore)
	}
	return nil
}
