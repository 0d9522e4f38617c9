package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/futonlab/miteguard/internal/models"
)

var (
	orderRequester string
	orderActor     string
	orderStart     string
	orderEnd       string
	nearbyHelper   string
	nearbyLat      float64
	nearbyLon      float64
	nearbyRadius   float64
	orderStatus    string
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Manage helper drying orders",
	Long: `Create and work helper-assisted drying orders.

Examples:
  miteguard orders create <item-id> --requester alice --start 2025-06-10T09:00:00Z --end 2025-06-10T13:00:00Z
  miteguard orders list --status pending
  miteguard orders nearby --helper bob --lat 35.68 --lon 139.76
  miteguard orders accept <order-id> --actor bob
  miteguard orders start <order-id> --actor bob
  miteguard orders complete <order-id> --actor bob
  miteguard orders cancel <order-id> --actor alice`,
}

var ordersCreateCmd = &cobra.Command{
	Use:   "create <item-id>",
	Short: "Create a helper order for an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersCreate,
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders by status",
	RunE:  runOrdersList,
}

var ordersNearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "List open orders near a helper",
	RunE:  runOrdersNearby,
}

var ordersAcceptCmd = &cobra.Command{
	Use:   "accept <order-id>",
	Short: "Accept a pending order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersAccept,
}

var ordersStartCmd = &cobra.Command{
	Use:   "start <order-id>",
	Short: "Begin work on an accepted order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersStart,
}

var ordersCompleteCmd = &cobra.Command{
	Use:   "complete <order-id>",
	Short: "Complete an in-progress order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersComplete,
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel a non-terminal order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrdersCancel,
}

func init() {
	ordersCreateCmd.Flags().StringVarP(&orderRequester, "requester", "r", "", "requesting user (required)")
	ordersCreateCmd.Flags().StringVar(&orderStart, "start", "", "window start, RFC3339 (required)")
	ordersCreateCmd.Flags().StringVar(&orderEnd, "end", "", "window end, RFC3339 (required)")
	_ = ordersCreateCmd.MarkFlagRequired("requester")
	_ = ordersCreateCmd.MarkFlagRequired("start")
	_ = ordersCreateCmd.MarkFlagRequired("end")

	ordersListCmd.Flags().StringVarP(&orderStatus, "status", "s", "pending", "status: pending, accepted, inProgress, completed, cancelled")

	ordersNearbyCmd.Flags().StringVar(&nearbyHelper, "helper", "", "helper user ID (required)")
	ordersNearbyCmd.Flags().Float64Var(&nearbyLat, "lat", 0, "helper latitude")
	ordersNearbyCmd.Flags().Float64Var(&nearbyLon, "lon", 0, "helper longitude")
	ordersNearbyCmd.Flags().Float64Var(&nearbyRadius, "radius", 0, "radius in km (default from config)")
	_ = ordersNearbyCmd.MarkFlagRequired("helper")

	for _, c := range []*cobra.Command{ordersAcceptCmd, ordersStartCmd, ordersCompleteCmd, ordersCancelCmd} {
		c.Flags().StringVarP(&orderActor, "actor", "a", "", "acting user (required)")
		_ = c.MarkFlagRequired("actor")
	}

	ordersCmd.AddCommand(ordersCreateCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersNearbyCmd)
	ordersCmd.AddCommand(ordersAcceptCmd)
	ordersCmd.AddCommand(ordersStartCmd)
	ordersCmd.AddCommand(ordersCompleteCmd)
	ordersCmd.AddCommand(ordersCancelCmd)
}

func runOrdersCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, err := time.Parse(time.RFC3339, orderStart)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, orderEnd)
	if err != nil {
		return fmt.Errorf("parse end: %w", err)
	}

	coord, err := getCoordinator(true)
	if err != nil {
		return err
	}
	result, err := coord.CreateServiceOrder(ctx, args[0], orderRequester, models.OptimalWindow{
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	fmt.Printf("Created order %s\n", models.MustRecordIDString(result.Order.ID))
	if result.Order.Cost != nil {
		fmt.Printf("Estimated cost: %d JPY\n", *result.Order.Cost)
	}
	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orders, err := dbClient.ListOrdersByStatus(ctx, models.OrderStatus(orderStatus))
	if err != nil {
		return fmt.Errorf("list orders: %w", err)
	}

	if len(orders) == 0 {
		fmt.Printf("No %s orders.\n", orderStatus)
		return nil
	}

	fmt.Printf("Orders (%d):\n\n", len(orders))
	for _, o := range orders {
		assignee := "-"
		if o.AssigneeID != nil {
			assignee = *o.AssigneeID
		}
		cost := "-"
		if o.Cost != nil {
			cost = fmt.Sprintf("%d JPY", *o.Cost)
		}
		fmt.Printf("- %s  item %s  requester %s  assignee %s  %s  [%s]\n",
			models.MustRecordIDString(o.ID), models.MustRecordIDString(o.ItemID),
			o.RequesterID, assignee, cost, o.Status)
	}
	return nil
}

func runOrdersNearby(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}

	var at *models.Coord
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		at = &models.Coord{Latitude: nearbyLat, Longitude: nearbyLon}
	}

	orders, err := coord.ListNearbyOrders(ctx, nearbyHelper, at, nearbyRadius)
	if err != nil {
		return fmt.Errorf("list nearby orders: %w", err)
	}

	if len(orders) == 0 {
		fmt.Println("No open orders nearby.")
		return nil
	}

	fmt.Printf("Orders (%d):\n\n", len(orders))
	for _, o := range orders {
		cost := "-"
		if o.Cost != nil {
			cost = fmt.Sprintf("%d JPY", *o.Cost)
		}
		fmt.Printf("- %s  item %s  requester %s  %s\n",
			models.MustRecordIDString(o.ID), models.MustRecordIDString(o.ItemID), o.RequesterID, cost)
	}
	return nil
}

func runOrdersAccept(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	order, err := coord.AcceptOrder(context.Background(), args[0], orderActor)
	if err != nil {
		return fmt.Errorf("accept order: %w", err)
	}
	fmt.Printf("Order %s accepted by %s.\n", models.MustRecordIDString(order.ID), orderActor)
	return nil
}

func runOrdersStart(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	order, err := coord.BeginExecution(context.Background(), args[0], orderActor)
	if err != nil {
		return fmt.Errorf("start order: %w", err)
	}
	fmt.Printf("Order %s in progress.\n", models.MustRecordIDString(order.ID))
	return nil
}

func runOrdersComplete(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	order, err := coord.CompleteOrder(context.Background(), args[0], orderActor)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	fmt.Printf("Order %s completed.\n", models.MustRecordIDString(order.ID))
	return nil
}

func runOrdersCancel(cmd *cobra.Command, args []string) error {
	coord, err := getCoordinator(false)
	if err != nil {
		return err
	}
	if err := coord.CancelOrder(context.Background(), args[0], orderActor); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	fmt.Println("Order cancelled.")
	return nil
}
