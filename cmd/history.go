package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/pkg/operations"
)

var historyCmd = &cobra.Command{
	Use:   "history [stack-name] [type]",
	Short: "View operation history for a stack",
	Long: `Display the history of CLI operations (deploys, destroys, health checks,
preflight runs) recorded in the Pulumi stack state.

The history keeps the last 50 records of each operation type.`,
	Example: `  # View all operation history
  mcserver history survival

  # View deploys only
  mcserver history survival deploys

  # Output as JSON
  mcserver history survival --json`,
	RunE: runHistory,
}

var (
	historyJSON  bool
	historyLimit int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of records to show per type")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	operationType := ""
	if len(args) > 1 {
		operationType = args[1]
	}

	store, err := operations.ForStack(ctx, targetStack)
	if err != nil {
		return err
	}
	history, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to get operations history: %w", err)
	}

	if historyJSON {
		return printHistoryJSON(os.Stdout, history, operationType)
	}

	printHeader(fmt.Sprintf("📜 Operations History: %s", targetStack))
	fmt.Println()

	if history.TotalOperations() == 0 {
		color.Yellow("No operations recorded yet")
		fmt.Println()
		color.Cyan("Operations are recorded when you run:")
		fmt.Println("  • mcserver up / preview")
		fmt.Println("  • mcserver destroy (failed runs)")
		fmt.Println("  • mcserver health")
		fmt.Println("  • mcserver preflight <stack>")
		return nil
	}

	fmt.Printf("Last updated: %s\n", history.LastUpdated.Format(time.RFC3339))
	fmt.Printf("Total operations: %d\n\n", history.TotalOperations())

	return printHistory(os.Stdout, history, operationType, historyLimit)
}

func historySection(history *operations.OperationsHistory, operationType string) (interface{}, error) {
	switch operationType {
	case "deploys", "deploy":
		return history.DeployHistory, nil
	case "destroys", "destroy":
		return history.DestroyHistory, nil
	case "health":
		return history.HealthHistory, nil
	case "preflight":
		return history.PreflightHistory, nil
	case "":
		return history, nil
	default:
		return nil, fmt.Errorf("unknown operation type: %s (valid: deploys, destroys, health, preflight)", operationType)
	}
}

func printHistoryJSON(w io.Writer, history *operations.OperationsHistory, operationType string) error {
	output, err := historySection(history, operationType)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printHistory(w io.Writer, history *operations.OperationsHistory, operationType string, limit int) error {
	if _, err := historySection(history, operationType); err != nil {
		return err
	}

	all := operationType == ""
	if all {
		color.New(color.Bold).Fprintln(w, "Summary:")
		fmt.Fprintf(w, "  Deploys:    %d records\n", len(history.DeployHistory))
		fmt.Fprintf(w, "  Destroys:   %d records\n", len(history.DestroyHistory))
		fmt.Fprintf(w, "  Health:     %d records\n", len(history.HealthHistory))
		fmt.Fprintf(w, "  Preflight:  %d records\n", len(history.PreflightHistory))
		fmt.Fprintln(w)
	}

	if all || operationType == "deploys" || operationType == "deploy" {
		printDeployHistory(w, limitSlice(history.DeployHistory, limit))
	}
	if all || operationType == "destroys" || operationType == "destroy" {
		printDestroyHistory(w, limitSlice(history.DestroyHistory, limit))
	}
	if all || operationType == "health" {
		printHealthHistory(w, limitSlice(history.HealthHistory, limit))
	}
	if all || operationType == "preflight" {
		printPreflightHistory(w, limitSlice(history.PreflightHistory, limit))
	}
	return nil
}

func printDeployHistory(w io.Writer, entries []operations.DeployEntry) {
	if len(entries) == 0 {
		return
	}

	color.New(color.Bold).Fprintf(w, "Deploy Operations (%d):\n", len(entries))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tOPERATION\tSIZE\tHEAP\tPUBLIC IP\tSTATUS\tDURATION")
	fmt.Fprintln(tw, "---------\t---------\t----\t----\t---------\t------\t--------")

	// most recent first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\t%s\t%s\n",
			formatTimestamp(e.Timestamp),
			e.Operation,
			e.InstanceSize,
			e.XMS, e.XMX,
			orDash(e.PublicIP),
			formatStatus(e.Status),
			e.Duration,
		)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printDestroyHistory(w io.Writer, entries []operations.DestroyEntry) {
	if len(entries) == 0 {
		return
	}

	color.New(color.Bold).Fprintf(w, "Failed Destroys (%d):\n", len(entries))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tSTATUS\tDURATION\tERROR")
	fmt.Fprintln(tw, "---------\t------\t--------\t-----")

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatTimestamp(e.Timestamp),
			formatStatus(e.Status),
			e.Duration,
			truncateString(e.Error, 60),
		)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printHealthHistory(w io.Writer, entries []operations.HealthEntry) {
	if len(entries) == 0 {
		return
	}

	color.New(color.Bold).Fprintf(w, "Health Check History (%d):\n", len(entries))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tHOST\tSTATUS\tPASSED\tWARN\tFAIL\tDURATION")
	fmt.Fprintln(tw, "---------\t----\t------\t------\t----\t----\t--------")

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			formatTimestamp(e.Timestamp),
			e.Host,
			formatHealthStatus(e.OverallStatus),
			e.ChecksPassed,
			e.ChecksWarning,
			e.ChecksFailed,
			e.Duration,
		)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printPreflightHistory(w io.Writer, entries []operations.PreflightEntry) {
	if len(entries) == 0 {
		return
	}

	color.New(color.Bold).Fprintf(w, "Preflight History (%d):\n", len(entries))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tREGION\tACCOUNT\tIMAGE\tSTATUS")
	fmt.Fprintln(tw, "---------\t------\t-------\t-----\t------")

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			formatTimestamp(e.Timestamp),
			orDash(e.Region),
			orDash(e.Account),
			orDash(e.ImageID),
			formatStatus(e.OverallStatus),
		)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func formatStatus(status string) string {
	switch status {
	case "success", "passed":
		return color.GreenString("[OK]")
	case "failed":
		return color.RedString("[FAIL]")
	default:
		return status
	}
}

func formatHealthStatus(status string) string {
	switch status {
	case "healthy":
		return color.GreenString("HEALTHY")
	case "warning":
		return color.YellowString("WARNING")
	case "critical":
		return color.RedString("CRITICAL")
	default:
		return status
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func limitSlice[T any](slice []T, limit int) []T {
	if limit <= 0 || len(slice) <= limit {
		return slice
	}
	return slice[len(slice)-limit:]
}
