package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/futonlab/miteguard/internal/models"
)

var (
	itemOwner     string
	itemMaterial  string
	itemThickness string
	itemLocation  string
	itemStatus    string
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage tracked items",
	Long: `Manage the futons and bedding whose mite-risk is tracked.

Examples:
  miteguard items add "winter futon" --owner alice --material cotton --thickness thick
  miteguard items list --status normal
  miteguard items show <id>
  miteguard items history <id>
  miteguard items cancel <id>`,
	RunE: runItemsList,
}

var itemsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsAdd,
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	RunE:  runItemsList,
}

var itemsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsShow,
}

var itemsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show an item's drying history",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsHistory,
}

var itemsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel the item's current drying intervention",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsCancel,
}

func init() {
	itemsAddCmd.Flags().StringVarP(&itemOwner, "owner", "o", "", "owner user ID (required)")
	itemsAddCmd.Flags().StringVarP(&itemMaterial, "material", "m", "cotton", "material: cotton, wool, polyester, silk, feather")
	itemsAddCmd.Flags().StringVarP(&itemThickness, "thickness", "t", "medium", "thickness: thin, medium, thick, extraThick")
	itemsAddCmd.Flags().StringVarP(&itemLocation, "location", "l", "", "location record ID")
	_ = itemsAddCmd.MarkFlagRequired("owner")

	itemsListCmd.Flags().StringVarP(&itemStatus, "status", "s", "", "filter by status")
	itemsCmd.Flags().StringVarP(&itemStatus, "status", "s", "", "filter by status")

	itemsCmd.AddCommand(itemsAddCmd)
	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsShowCmd)
	itemsCmd.AddCommand(itemsHistoryCmd)
	itemsCmd.AddCommand(itemsCancelCmd)
}

func runItemsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	item := &models.Item{
		OwnerID:   itemOwner,
		Name:      args[0],
		Material:  models.Material(itemMaterial),
		Thickness: models.Thickness(itemThickness),
		Status:    models.ItemStatusNormal,
	}
	if itemLocation != "" {
		if _, err := dbClient.GetLocation(ctx, itemLocation); err != nil {
			return fmt.Errorf("location %s: %w", itemLocation, err)
		}
		rid := surrealmodels.RecordID{Table: "location", ID: itemLocation}
		item.LocationID = &rid
	}

	created, err := dbClient.CreateItem(ctx, item)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	fmt.Printf("Created item %s (%s, %s/%s)\n",
		models.MustRecordIDString(created.ID), created.Name, created.Material, created.Thickness)
	return nil
}

func runItemsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var items []models.Item
	var err error
	if itemStatus != "" {
		items, err = dbClient.ListItemsByStatus(ctx, models.ItemStatus(itemStatus))
	} else {
		items, err = dbClient.ListItems(ctx)
	}
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("No items found.")
		return nil
	}

	fmt.Printf("Items (%d):\n\n", len(items))
	for _, item := range items {
		fmt.Printf("- %s  %-24s risk %6.2f  [%s]\n",
			models.MustRecordIDString(item.ID), item.Name, item.RiskScore, item.Status)
		if verbose {
			fmt.Printf("  owner: %s, material: %s, thickness: %s\n", item.OwnerID, item.Material, item.Thickness)
		}
	}
	return nil
}

func runItemsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	item, err := dbClient.GetItem(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	fmt.Printf("Item %s\n", models.MustRecordIDString(item.ID))
	fmt.Printf("  Name:      %s\n", item.Name)
	fmt.Printf("  Owner:     %s\n", item.OwnerID)
	fmt.Printf("  Material:  %s\n", item.Material)
	fmt.Printf("  Thickness: %s\n", item.Thickness)
	fmt.Printf("  Risk:      %.2f\n", item.RiskScore)
	fmt.Printf("  Status:    %s\n", item.Status)
	if item.LocationID != nil {
		fmt.Printf("  Location:  %s\n", models.MustRecordIDString(*item.LocationID))
	}
	return nil
}

func runItemsHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	sessions, err := coord.ItemHistory(ctx, args[0])
	if err != nil {
		return fmt.Errorf("item history: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No drying sessions recorded.")
		return nil
	}

	fmt.Printf("Sessions (%d):\n\n", len(sessions))
	for _, s := range sessions {
		kind := "helper"
		if s.IsSelfService {
			kind = "self"
		}
		state := "open"
		if !s.Open() {
			state = "closed"
		}
		fmt.Printf("- %s  %s  %s  before %.2f", models.MustRecordIDString(s.ID), kind, state, s.BeforeScore)
		if s.AfterScore != nil {
			fmt.Printf("  after %.2f", *s.AfterScore)
		}
		fmt.Println()
		if verbose && s.StartTime != nil && s.EndTime != nil {
			fmt.Printf("  window: %s to %s\n", s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
		}
	}
	return nil
}

func runItemsCancel(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	if err := coord.CancelIntervention(context.Background(), args[0]); err != nil {
		return fmt.Errorf("cancel intervention: %w", err)
	}
	fmt.Println("Intervention cancelled.")
	return nil
}
