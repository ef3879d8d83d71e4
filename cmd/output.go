package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/pkg/operations"
)

const redacted = "***REDACTED***"

var outputFormat string

// ServerOutputs is the printable form of a stack's outputs.
type ServerOutputs struct {
	StackName string            `json:"stackName" yaml:"stackName"`
	Outputs   map[string]string `json:"outputs" yaml:"outputs"`
}

var outputCmd = &cobra.Command{
	Use:   "output [stack-name]",
	Short: "Show stack outputs",
	Long:  `Display the outputs of a stack: the public IP and DNS name of the server.`,
	Example: `  # Show outputs as a table
  mcserver output survival

  # Show outputs as JSON
  mcserver output survival --format json`,
	RunE: runOutput,
}

func init() {
	rootCmd.AddCommand(outputCmd)
	outputCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table|json|yaml")
}

func validateFormat(format string) error {
	if format != "table" && format != "json" && format != "yaml" {
		return fmt.Errorf("invalid output format: %s (must be table, json, or yaml)", format)
	}
	return nil
}

func runOutput(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := validateFormat(outputFormat); err != nil {
		return err
	}

	targetStack, err := RequireStack(ctx, args)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Fetching outputs for %s...", targetStack)
	if outputFormat == "table" {
		s.Start()
	}

	stack, err := common.SelectStack(ctx, targetStack)
	if err != nil {
		s.Stop()
		return err
	}

	outputs, err := stack.Outputs(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("failed to get outputs: %w", err)
	}

	return renderOutputs(os.Stdout, buildServerOutputs(targetStack, outputs), outputFormat)
}

// buildServerOutputs flattens outputs to strings. Secret values are redacted
// and the operations history is left out.
func buildServerOutputs(targetStack string, outputs auto.OutputMap) ServerOutputs {
	result := ServerOutputs{StackName: targetStack, Outputs: map[string]string{}}
	for key, out := range outputs {
		if key == operations.HistoryOutput {
			continue
		}
		if out.Secret {
			result.Outputs[key] = redacted
			continue
		}
		result.Outputs[key] = fmt.Sprintf("%v", out.Value)
	}
	return result
}

func renderOutputs(w io.Writer, so ServerOutputs, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(so)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(so)
	default:
		return renderOutputsTable(w, so)
	}
}

func renderOutputsTable(w io.Writer, so ServerOutputs) error {
	if len(so.Outputs) == 0 {
		fmt.Fprintf(w, "No outputs for stack '%s'\n", so.StackName)
		return nil
	}

	keys := make([]string, 0, len(so.Outputs))
	for k := range so.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	color.New(color.Bold).Fprintln(tw, "KEY\tVALUE")
	fmt.Fprintln(tw, "---\t-----")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, so.Outputs[k])
	}
	return tw.Flush()
}
