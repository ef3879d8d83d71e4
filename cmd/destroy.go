package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/pkg/operations"
)

var removeStack bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [stack-name]",
	Short: "Destroy the Minecraft server",
	Long: `Destroy all resources of a stack: the instance, its security group and
the registered key pair.

WARNING: This deletes the server and its world data. It cannot be undone.`,
	Example: `  # Destroy with confirmation
  mcserver destroy survival

  # Destroy without prompting and remove the stack afterwards
  mcserver destroy survival --yes --remove`,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().BoolVar(&removeStack, "remove", false, "Remove the stack after its resources are destroyed")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("💥 Destroying stack: %s", targetStack))
	color.Yellow("This will delete the server and all of its world data.")

	if !confirmStdin(fmt.Sprintf("Destroy stack '%s'?", targetStack)) {
		color.Yellow("Destroy cancelled")
		return nil
	}

	stack, err := common.SelectStack(ctx, targetStack)
	if err != nil {
		return err
	}

	store := operations.NewStore(&stack)
	history := loadHistory(ctx, store)

	started := time.Now()
	_, destroyErr := stack.Destroy(ctx, optdestroy.ProgressStreams(os.Stdout))
	if destroyErr != nil {
		saveFailed(store.AddDestroy(ctx, history, operations.DestroyEntry{
			Status:   operations.StatusFailed,
			Duration: time.Since(started).Round(time.Second).String(),
			Error:    destroyErr.Error(),
		}))
		return fmt.Errorf("destroy failed: %w", destroyErr)
	}
	log.Debug().Str("stack", targetStack).Msg("resources destroyed; history is not kept for an empty stack")

	fmt.Println()
	printSuccess(fmt.Sprintf("Stack '%s' destroyed", targetStack))

	if removeStack {
		if err := stack.Workspace().RemoveStack(ctx, stack.Name()); err != nil {
			return fmt.Errorf("failed to remove stack: %w", err)
		}
		printSuccess(fmt.Sprintf("Stack '%s' removed", targetStack))
	}
	return nil
}
