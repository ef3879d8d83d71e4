package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/internal/orchestrator"
	"github.com/chalkan3/mcserver/internal/validation"
	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/operations"
)

const awsRegionKey = "aws:region"

// deployFlags are the per-run overrides of the deploy file.
type deployFlags struct {
	publicKey    string
	privateKey   string
	instanceSize string
	xmx          string
	xms          string
	region       string
}

func (f *deployFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.publicKey, "public-key", "", "Path to the SSH public key")
	cmd.Flags().StringVar(&f.privateKey, "private-key", "", "Path to the SSH private key")
	cmd.Flags().StringVar(&f.instanceSize, "instance-size", "", "EC2 instance type (default: t3.medium)")
	cmd.Flags().StringVar(&f.xmx, "xmx", "", "JVM maximum heap in MiB (default: 3072)")
	cmd.Flags().StringVar(&f.xms, "xms", "", "JVM minimum heap in MiB (default: 3072)")
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region (default: from the AWS environment)")
}

func (f *deployFlags) overrides() config.DeployFile {
	return config.DeployFile{
		Region: f.region,
		Server: config.ServerConfig{
			PublicKeyPath:  f.publicKey,
			PrivateKeyPath: f.privateKey,
			InstanceSize:   f.instanceSize,
			XMX:            f.xmx,
			XMS:            f.xms,
		},
	}
}

// resolveDeployFile loads the deploy file and overlays the flags.
func resolveDeployFile(path string, flags *deployFlags) (*config.DeployFile, error) {
	df, err := config.LoadDeployFile(path)
	if err != nil {
		return nil, err
	}
	df.Merge(flags.overrides())
	return df, nil
}

// stackConfigMap returns the stack configuration written before a run.
func stackConfigMap(df *config.DeployFile) auto.ConfigMap {
	m := auto.ConfigMap{}
	for k, v := range df.Server.StackConfig() {
		m[k] = auto.ConfigValue{Value: v}
	}
	if df.Region != "" {
		m[awsRegionKey] = auto.ConfigValue{Value: df.Region}
	}
	return m
}

// prepareStack validates the deploy description, then selects or creates the
// stack and writes its configuration. The playbook is read from the working
// directory, which is also where the bootstrap commands run.
func prepareStack(ctx context.Context, targetStack string, flags *deployFlags) (auto.Stack, *config.DeployFile, error) {
	df, err := resolveDeployFile(cfgFile, flags)
	if err != nil {
		return auto.Stack{}, nil, err
	}
	if err := validation.ValidateDeployConfig(df); err != nil {
		return auto.Stack{}, nil, fmt.Errorf("invalid deploy configuration: %w", err)
	}
	workDir, err := os.Getwd()
	if err != nil {
		return auto.Stack{}, nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := validation.ValidatePlaybook(workDir); err != nil {
		return auto.Stack{}, nil, err
	}

	stack, err := common.UpsertStack(ctx, targetStack, orchestrator.Program(workDir))
	if err != nil {
		return auto.Stack{}, nil, err
	}

	if err := stack.SetAllConfig(ctx, stackConfigMap(df)); err != nil {
		return auto.Stack{}, nil, fmt.Errorf("failed to set stack configuration: %w", err)
	}
	log.Debug().Str("stack", targetStack).Str("instanceSize", df.Server.InstanceSize).Msg("stack configuration written")

	return stack, df, nil
}

// loadHistory reads the operations history before a run replaces the outputs.
// A stack that cannot be read yields an empty history.
func loadHistory(ctx context.Context, store *operations.Store) *operations.OperationsHistory {
	history, err := store.Load(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("operations history not loaded")
		return operations.NewOperationsHistory()
	}
	return history
}

// saveFailed logs a history write failure. A stack without resources has no
// place to hold the history.
func saveFailed(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, operations.ErrNoStackResource) {
		log.Debug().Err(err).Msg("operations history not recorded")
		return
	}
	log.Warn().Err(err).Msg("failed to record operation history")
}

func deployEntry(operation string, df *config.DeployFile, started time.Time, runErr error) operations.DeployEntry {
	sc := df.Server
	config.ApplyDefaults(&sc)

	entry := operations.DeployEntry{
		Operation:    operation,
		InstanceSize: sc.InstanceSize,
		XMX:          sc.XMX,
		XMS:          sc.XMS,
		Status:       operations.StatusSuccess,
		Duration:     time.Since(started).Round(time.Second).String(),
	}
	if runErr != nil {
		entry.Status = operations.StatusFailed
		entry.Error = runErr.Error()
	}
	return entry
}
