package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chalkan3/mcserver/internal/common"
)

var (
	cfgFile     string
	stackName   string
	verbose     bool
	autoApprove bool
	logLevel    string

	// Version information - set by main.go
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// SetVersionInfo sets the version information from main.go
func SetVersionInfo(version, commit, date, builtBy string) {
	Version = version
	Commit = commit
	Date = date
	BuiltBy = builtBy
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mcserver",
	Short: "Deploy a Minecraft server on AWS EC2",
	Long: `mcserver provisions a single EC2 instance running a Minecraft server.

It registers your SSH public key, opens ports 22 and 25565, launches a Debian
12 instance and configures it with an Ansible playbook from the current
directory. The Pulumi engine is driven through the Automation API, so no
Pulumi CLI project is required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(logLevel, verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Deploy file (default: ./mcserver.yaml)")
	rootCmd.PersistentFlags().StringVarP(&stackName, "stack", "s", "", "Pulumi stack name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false, "Auto-approve without prompting")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log", "l", "info", "Set log level. Available: debug, info, warn, error")

	rootCmd.SetVersionTemplate(versionTemplate())
	rootCmd.Version = Version
}

func versionTemplate() string {
	return fmt.Sprintf(`mcserver %s
  Commit:    %s
  Built:     %s
  Built by:  %s
`, Version, Commit, Date, BuiltBy)
}

func initConfig() {
	if err := common.LoadSavedConfig(); err != nil {
		log.Debug().Err(err).Msg("saved config not loaded")
	}
	if err := common.LoadSavedCredentials(); err != nil {
		log.Debug().Err(err).Msg("saved credentials not loaded")
	}
}

// parseLevel maps the --log value to a zerolog level. --verbose forces debug.
func parseLevel(level string, verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func setupLogger(level string, verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(parseLevel(level, verbose))
}

func printHeader(title string) {
	fmt.Println()
	color.New(color.Bold, color.FgCyan).Println(title)
	fmt.Println(strings.Repeat("=", len([]rune(title))))
}

func printSuccess(msg string) {
	color.Green("✓ %s", msg)
}

func printInfo(msg string) {
	color.Cyan("  %s", msg)
}
