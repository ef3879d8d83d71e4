package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/common/apitype"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/pkg/operations"
)

var previewFlags deployFlags

var previewCmd = &cobra.Command{
	Use:   "preview [stack-name]",
	Short: "Preview changes to the Minecraft server",
	Long: `Show the changes 'mcserver up' would make without applying them.

The deploy file and flags are validated and written to the stack configuration
the same way as for 'up'.`,
	Example: `  # Preview the survival stack
  mcserver preview survival

  # Preview a resize
  mcserver preview survival --instance-size t3.large`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewFlags.register(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("🔍 Previewing stack: %s", targetStack))

	stack, df, err := prepareStack(ctx, targetStack, &previewFlags)
	if err != nil {
		return err
	}

	store := operations.NewStore(&stack)
	history := loadHistory(ctx, store)

	started := time.Now()
	result, previewErr := stack.Preview(ctx, optpreview.ProgressStreams(os.Stdout))

	entry := deployEntry("preview", df, started, previewErr)
	if previewErr == nil {
		entry.ResourceChanges = changeCounts(result.ChangeSummary)
	}
	saveFailed(store.AddDeploy(ctx, history, entry))

	if previewErr != nil {
		return fmt.Errorf("preview failed: %w", previewErr)
	}

	fmt.Println()
	printSuccess("Preview complete")
	for _, op := range sortedKeys(entry.ResourceChanges) {
		printInfo(fmt.Sprintf("%-8s %d", op, entry.ResourceChanges[op]))
	}
	return nil
}

func changeCounts(summary map[apitype.OpType]int) map[string]int {
	if len(summary) == 0 {
		return nil
	}
	counts := make(map[string]int, len(summary))
	for op, n := range summary {
		counts[string(op)] = n
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
