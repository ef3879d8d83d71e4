package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/operations"
	"github.com/chalkan3/mcserver/pkg/preflight"
)

var preflightRegion string

var preflightCmd = &cobra.Command{
	Use:   "preflight [stack-name]",
	Short: "Check AWS access before deploying",
	Long: `Check that a deployment can start:
  - the AWS credentials resolve to an identity
  - a Debian 12 image from the official owner exists in the region
  - the state bucket is reachable when PULUMI_BACKEND_URL is s3://

When a stack is given the result is recorded in its history.`,
	Example: `  # Check the default region
  mcserver preflight

  # Check another region and record the result on a stack
  mcserver preflight survival --region eu-central-1`,
	RunE: runPreflight,
}

func init() {
	rootCmd.AddCommand(preflightCmd)
	preflightCmd.Flags().StringVar(&preflightRegion, "region", "", "AWS region (default: deploy file, then the AWS environment)")
}

// preflightRegionFor picks the region from the flag, then the deploy file.
func preflightRegionFor(flagValue, deployFile string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	df, err := config.LoadDeployFile(deployFile)
	if err != nil {
		return "", err
	}
	return df.Region, nil
}

func runPreflight(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	region, err := preflightRegionFor(preflightRegion, cfgFile)
	if err != nil {
		return err
	}

	printHeader("✈️  Preflight")

	runner, err := preflight.New(ctx, region)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Checking AWS access..."
	s.Start()
	report := runner.Run(ctx, os.Getenv(common.EnvBackendURL))
	s.Stop()

	fmt.Printf("Region: %s\n\n", report.Region)
	report.PrintReport(os.Stdout)
	fmt.Println()

	targetStack := stackName
	if len(args) > 0 {
		targetStack = args[0]
	}
	if targetStack != "" {
		if stack, err := common.SelectStack(ctx, targetStack); err != nil {
			saveFailed(err)
		} else {
			store := operations.NewStore(&stack)
			history := loadHistory(ctx, store)
			saveFailed(store.AddPreflight(ctx, history, report.HistoryEntry()))
		}
	}

	if !report.Passed() {
		color.Red("Preflight failed")
		return fmt.Errorf("preflight checks failed")
	}
	printSuccess("Ready to deploy")
	return nil
}
