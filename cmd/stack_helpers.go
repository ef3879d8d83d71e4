package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"

	"github.com/chalkan3/mcserver/internal/common"
	"github.com/chalkan3/mcserver/internal/orchestrator"
)

// StackEndpoint is the address of a deployed server, read from stack outputs.
type StackEndpoint struct {
	StackName string
	PublicIP  string
	PublicDNS string
}

// GetStackEndpoint reads the server address from the outputs of targetStack.
func GetStackEndpoint(ctx context.Context, targetStack string) (*StackEndpoint, error) {
	stack, err := common.SelectStack(ctx, targetStack)
	if err != nil {
		return nil, err
	}

	outputs, err := stack.Outputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stack outputs: %w", err)
	}

	return endpointFromOutputs(targetStack, outputs)
}

func endpointFromOutputs(targetStack string, outputs auto.OutputMap) (*StackEndpoint, error) {
	ip := outputString(outputs, orchestrator.OutputPublicIP)
	if ip == "" {
		return nil, fmt.Errorf("stack '%s' has no %s output; run 'mcserver up %s' first",
			targetStack, orchestrator.OutputPublicIP, targetStack)
	}
	return &StackEndpoint{
		StackName: targetStack,
		PublicIP:  ip,
		PublicDNS: outputString(outputs, orchestrator.OutputPublicDNS),
	}, nil
}

func outputString(outputs auto.OutputMap, key string) string {
	out, ok := outputs[key]
	if !ok || out.Value == nil {
		return ""
	}
	return fmt.Sprintf("%v", out.Value)
}

// RequireStack resolves the target stack from the first argument or the --stack flag.
// When neither is given and exactly one stack exists, that stack is used.
func RequireStack(ctx context.Context, args []string) (string, error) {
	targetStack := stackName
	if len(args) > 0 {
		targetStack = args[0]
	}
	if targetStack != "" {
		return targetStack, nil
	}

	ws, err := common.NewWorkspace(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("stack name is required. Use: command <stack-name> or --stack <name>")
	}
	stacks, err := ws.ListStacks(ctx)
	if err != nil || len(stacks) == 0 {
		return "", fmt.Errorf(`no stack specified

Create a stack first:
  mcserver stacks init <name>`)
	}
	if len(stacks) == 1 {
		fmt.Printf("Using stack: %s\n", stacks[0].Name)
		return stacks[0].Name, nil
	}

	return "", fmt.Errorf(`stack name required

Available stacks: %v

Specify a stack:
  command <stack-name>
  command --stack <name>`, getStackNames(stacks))
}

func getStackNames(stacks []auto.StackSummary) []string {
	names := make([]string, len(stacks))
	for i, s := range stacks {
		names[i] = s.Name
	}
	return names
}

// confirm asks a yes/no question on in. Only "y" and "yes" confirm.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func confirmStdin(question string) bool {
	if autoApprove {
		return true
	}
	return confirm(os.Stdin, os.Stdout, question)
}
