package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optremove"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chalkan3/mcserver/internal/common"
)

var stacksCmd = &cobra.Command{
	Use:   "stacks",
	Short: "Manage deployment stacks",
	Long:  `List, create and remove the Pulumi stacks holding Minecraft servers`,
}

var listStacksCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stacks",
	Example: `  # List all stacks
  mcserver stacks list`,
	RunE: runListStacks,
}

var initStackCmd = &cobra.Command{
	Use:   "init [stack-name]",
	Short: "Create a new stack",
	Long: `Create a new stack.

With a self-managed backend (PULUMI_BACKEND_URL set to s3:// or file://) the
stack secrets are encrypted with a passphrase, read from:
  1. --password-stdin
  2. PULUMI_CONFIG_PASSPHRASE
  3. an interactive prompt`,
	Example: `  # Create a stack interactively
  mcserver stacks init survival

  # Create a stack with the passphrase from stdin
  echo "my-secure-password" | mcserver stacks init survival --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runInitStack,
}

var removeStackCmd = &cobra.Command{
	Use:   "rm [stack-name]",
	Short: "Remove a stack",
	Long: `Remove a stack and its configuration. The stack must have no resources
unless --force is given; run 'mcserver destroy' first.`,
	Example: `  # Remove an empty stack
  mcserver stacks rm old-world

  # Remove a stack that still tracks resources
  mcserver stacks rm old-world --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRemoveStack,
}

var (
	forceRemove    bool
	passwordStdin  bool
	savePassphrase bool
)

func init() {
	rootCmd.AddCommand(stacksCmd)

	stacksCmd.AddCommand(listStacksCmd)
	stacksCmd.AddCommand(initStackCmd)
	stacksCmd.AddCommand(removeStackCmd)

	removeStackCmd.Flags().BoolVar(&forceRemove, "force", false, "Remove the stack even if it has resources")

	initStackCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read passphrase from stdin")
	initStackCmd.Flags().BoolVar(&savePassphrase, "save-passphrase", false, "Save the passphrase to ~/.mcserver/config")
}

func runListStacks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	printHeader("📦 Stacks")

	ws, err := common.NewWorkspace(ctx, nil)
	if err != nil {
		return err
	}

	stacks, err := ws.ListStacks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stacks: %w", err)
	}

	if len(stacks) == 0 {
		color.Yellow("No stacks found")
		fmt.Println()
		color.Cyan("Create one with: mcserver stacks init <name>")
		return nil
	}

	return printStacksTable(os.Stdout, stacks, os.Getenv(common.EnvBackendURL))
}

func printStacksTable(w io.Writer, stacks []auto.StackSummary, backendURL string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)

	color.New(color.Bold).Fprintln(tw, "NAME\tLAST UPDATE\tRESOURCES\tURL")
	fmt.Fprintln(tw, "----\t-----------\t---------\t---")

	for _, stack := range stacks {
		lastUpdate := "Never"
		if stack.LastUpdate != "" {
			lastUpdate = stack.LastUpdate
		}

		resourceCount := "?"
		if stack.ResourceCount != nil {
			resourceCount = fmt.Sprintf("%d", *stack.ResourceCount)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", stack.Name, lastUpdate, resourceCount, displayURL(stack.URL, backendURL))
	}
	return tw.Flush()
}

// displayURL shows where a stack lives, trimming query parameters from s3 URLs.
func displayURL(stackURL, backendURL string) string {
	if stackURL != "" && stackURL != "local://" {
		return stackURL
	}
	if backendURL == "" {
		return "local://"
	}
	if strings.HasPrefix(backendURL, "s3://") {
		bucket, _, _ := strings.Cut(strings.TrimPrefix(backendURL, "s3://"), "?")
		return "s3://" + bucket
	}
	return backendURL
}

func runInitStack(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	targetStack := args[0]

	printHeader(fmt.Sprintf("📦 Creating stack: %s", targetStack))

	if common.SelfManagedBackend(os.Getenv(common.EnvBackendURL)) {
		passphrase, err := getPassphrase()
		if err != nil {
			return err
		}
		if err := os.Setenv(common.EnvPassphrase, passphrase); err != nil {
			return fmt.Errorf("failed to set passphrase: %w", err)
		}
		if savePassphrase {
			if err := common.SaveConfigValue(common.EnvPassphrase, passphrase); err != nil {
				return err
			}
			printInfo("Passphrase saved to ~/.mcserver/config")
		}
	}

	ws, err := common.NewWorkspace(ctx, nil)
	if err != nil {
		return err
	}

	ref := common.StackRef(targetStack, os.Getenv(common.EnvBackendURL))
	if _, err := auto.NewStack(ctx, ref, ws); err != nil {
		return fmt.Errorf("failed to create stack '%s': %w", targetStack, err)
	}

	fmt.Println()
	printSuccess(fmt.Sprintf("Stack '%s' created", targetStack))
	printInfo(fmt.Sprintf("Deploy with: mcserver up %s", targetStack))
	return nil
}

// getPassphrase reads the passphrase from stdin, the environment or an interactive prompt.
func getPassphrase() (string, error) {
	if passwordStdin {
		return readPassphrase(os.Stdin)
	}

	if envPass := os.Getenv(common.EnvPassphrase); envPass != "" {
		color.Cyan("Using passphrase from %s", common.EnvPassphrase)
		return envPass, nil
	}

	fmt.Print("Enter encryption passphrase: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm passphrase: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(passBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(passBytes) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(passBytes), nil
}

func readPassphrase(r io.Reader) (string, error) {
	passphrase, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read passphrase from stdin: %w", err)
	}
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return passphrase, nil
}

func runRemoveStack(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	targetStack := args[0]

	if !confirmStdin(fmt.Sprintf("Remove stack '%s'?", targetStack)) {
		color.Yellow("Remove cancelled")
		return nil
	}

	ws, err := common.NewWorkspace(ctx, nil)
	if err != nil {
		return err
	}

	ref := common.StackRef(targetStack, os.Getenv(common.EnvBackendURL))
	if forceRemove {
		color.Yellow("Using --force: stack will be removed even if it has resources")
		err = ws.RemoveStack(ctx, ref, optremove.Force())
	} else {
		err = ws.RemoveStack(ctx, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to remove stack: %w", err)
	}

	printSuccess(fmt.Sprintf("Stack '%s' removed", targetStack))
	return nil
}
