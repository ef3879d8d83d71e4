package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/orchestrator"
	"github.com/chalkan3/mcserver/pkg/operations"
)

var upFlags deployFlags

var upCmd = &cobra.Command{
	Use:   "up [stack-name]",
	Short: "Deploy or update the Minecraft server",
	Long: `Deploy the Minecraft server stack.

Registers the SSH public key as an EC2 key pair, resolves the newest Debian 12
image, opens ports 22 and 25565, launches the instance and runs the Ansible
playbook in the current directory against it. Running it again with unchanged
configuration makes no changes.`,
	Example: `  # Deploy using ./mcserver.yaml
  mcserver up survival

  # Override the instance size and heap
  mcserver up survival --instance-size t3.large --xmx 6144 --xms 4096

  # Use explicit key files
  mcserver up survival --public-key ~/.ssh/mc.pub --private-key ~/.ssh/mc`,
	RunE: runUp,
}

func init() {
	rootCmd.AddCommand(upCmd)
	upFlags.register(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("🚀 Deploying Minecraft server: %s", targetStack))

	stack, df, err := prepareStack(ctx, targetStack, &upFlags)
	if err != nil {
		return err
	}

	store := operations.NewStore(&stack)
	history := loadHistory(ctx, store)

	started := time.Now()
	result, upErr := stack.Up(ctx, optup.ProgressStreams(os.Stdout))

	entry := deployEntry("up", df, started, upErr)
	if upErr == nil {
		entry.PublicIP = outputString(result.Outputs, orchestrator.OutputPublicIP)
		if result.Summary.ResourceChanges != nil {
			entry.ResourceChanges = *result.Summary.ResourceChanges
		}
	}
	saveFailed(store.AddDeploy(ctx, history, entry))

	if upErr != nil {
		log.Error().Err(upErr).Str("stack", targetStack).Msg("deployment failed")
		return fmt.Errorf("deployment failed: %w", upErr)
	}

	fmt.Println()
	printSuccess(fmt.Sprintf("Stack '%s' deployed in %s", targetStack, entry.Duration))
	printServerEndpoint(result.Outputs)
	return nil
}

func printServerEndpoint(outputs auto.OutputMap) {
	ip := outputString(outputs, orchestrator.OutputPublicIP)
	if ip == "" {
		color.Yellow("No server address in stack outputs")
		return
	}

	fmt.Println()
	printInfo(fmt.Sprintf("Public IP:  %s", ip))
	if dns := outputString(outputs, orchestrator.OutputPublicDNS); dns != "" {
		printInfo(fmt.Sprintf("Public DNS: %s", dns))
	}
	printInfo(fmt.Sprintf("Connect:    %s:25565", ip))
}
