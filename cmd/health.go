package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/health"
	"github.com/chalkan3/mcserver/pkg/keys"
	"github.com/chalkan3/mcserver/pkg/operations"
)

var (
	healthPrivateKey string
	healthTimeout    time.Duration
)

var healthCmd = &cobra.Command{
	Use:   "health [stack-name]",
	Short: "Check the Minecraft server health",
	Long: `Check a deployed server.

Runs two probes against the public IP of the stack:
  - SSH login as 'admin' on port 22, running 'true'
  - TCP connect to the Minecraft port 25565

The private key is taken from --private-key or from the deploy file.`,
	Example: `  # Check the survival server
  mcserver health survival

  # Use an explicit key and a longer timeout
  mcserver health survival --private-key ~/.ssh/mc --timeout 30s`,
	RunE: runHealthCheck,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthPrivateKey, "private-key", "", "Path to the SSH private key")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", health.DefaultTimeout, "Timeout per check")
}

// healthKeyPath picks the private key path from the flag, then the deploy file.
func healthKeyPath(flagValue, deployFile string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	df, err := config.LoadDeployFile(deployFile)
	if err != nil {
		return "", err
	}
	if df.Server.PrivateKeyPath == "" {
		return "", fmt.Errorf("%w: private key path (use --private-key or set privateKeyPath in the deploy file)", config.ErrMissingValue)
	}
	return df.Server.PrivateKeyPath, nil
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	keyPath, err := healthKeyPath(healthPrivateKey, cfgFile)
	if err != nil {
		return err
	}
	privateKey, _, err := keys.LoadPrivateKey(keyPath)
	if err != nil {
		return err
	}

	stack, err := common.SelectStack(ctx, targetStack)
	if err != nil {
		return err
	}
	outputs, err := stack.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stack outputs: %w", err)
	}
	endpoint, err := endpointFromOutputs(targetStack, outputs)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Checking %s...", endpoint.PublicIP)
	s.Start()

	checker := health.NewChecker(endpoint.PublicIP, privateKey)
	checker.SetTimeout(healthTimeout)
	report := checker.RunAllChecks(ctx, targetStack)

	s.Stop()

	report.PrintReport(os.Stdout)

	store := operations.NewStore(&stack)
	history := loadHistory(ctx, store)
	saveFailed(store.AddHealth(ctx, history, report.HistoryEntry()))

	log.Debug().Str("stack", targetStack).Str("status", string(report.OverallStatus)).Msg("health check finished")

	if report.OverallStatus == health.StatusCritical {
		return fmt.Errorf("server is unhealthy")
	}
	return nil
}
