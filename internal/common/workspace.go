package common

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
	"github.com/pulumi/pulumi/sdk/v3/go/common/workspace"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/rs/zerolog/log"
)

// ProjectName is the Pulumi project every stack belongs to.
const ProjectName = "mcserver"

// Environment variables read by the workspace.
const (
	EnvBackendURL = "PULUMI_BACKEND_URL"
	EnvPassphrase = "PULUMI_CONFIG_PASSPHRASE"
)

// forwardedEnv lists the variables handed to the Pulumi subprocess.
var forwardedEnv = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_PROFILE",
	"AWS_REGION",
	"AWS_S3_ENDPOINT",
	"AWS_S3_USE_PATH_STYLE",
	"AWS_S3_FORCE_PATH_STYLE",
	EnvBackendURL,
	EnvPassphrase,
}

// Project returns the project settings, with the backend set when backendURL is not empty.
func Project(backendURL string) workspace.Project {
	project := workspace.Project{
		Name:    tokens.PackageName(ProjectName),
		Runtime: workspace.NewProjectRuntimeInfo("go", nil),
	}
	if backendURL != "" {
		project.Backend = &workspace.ProjectBackend{URL: backendURL}
	}
	return project
}

// ForwardedEnv collects the non-empty forwarded variables from getenv.
func ForwardedEnv(getenv func(string) string) map[string]string {
	env := make(map[string]string)
	for _, key := range forwardedEnv {
		if v := getenv(key); v != "" {
			env[key] = v
		}
	}
	return env
}

// SelfManagedBackend reports whether backendURL points to a non-cloud backend.
func SelfManagedBackend(backendURL string) bool {
	return backendURL != "" && !strings.HasPrefix(backendURL, "https://api.pulumi.com")
}

// QualifiedStackName returns the fully qualified name used by self-managed backends.
func QualifiedStackName(stack string) string {
	if strings.Contains(stack, "/") {
		return stack
	}
	return fmt.Sprintf("organization/%s/%s", ProjectName, stack)
}

// StackRef returns the name to select stack by on the backend at backendURL.
// Pulumi Cloud resolves short names against the current user.
func StackRef(stack, backendURL string) string {
	if SelfManagedBackend(backendURL) {
		return QualifiedStackName(stack)
	}
	return stack
}

// loadSavedSettings applies ~/.mcserver/config and ~/.mcserver/credentials.
// An unreadable file is logged and skipped.
func loadSavedSettings() {
	if err := LoadSavedConfig(); err != nil {
		log.Debug().Err(err).Str("file", ConfigFileName).Msg("saved configuration not loaded")
	}
	if err := LoadSavedCredentials(); err != nil {
		log.Debug().Err(err).Str("file", CredentialsFileName).Msg("saved credentials not loaded")
	}
}

// NewWorkspace creates a local workspace for the project running program.
// Saved settings are loaded first so their backend and credentials apply.
func NewWorkspace(ctx context.Context, program pulumi.RunFunc) (auto.Workspace, error) {
	loadSavedSettings()

	backendURL := os.Getenv(EnvBackendURL)
	opts := []auto.LocalWorkspaceOption{
		auto.Project(Project(backendURL)),
	}
	if program != nil {
		opts = append(opts, auto.Program(program))
	}

	env := ForwardedEnv(os.Getenv)
	if SelfManagedBackend(backendURL) {
		opts = append(opts, auto.SecretsProvider("passphrase"))
		if _, ok := env[EnvPassphrase]; !ok {
			env[EnvPassphrase] = ""
		}
	}
	if len(env) > 0 {
		opts = append(opts, auto.EnvVars(env))
	}

	ws, err := auto.NewLocalWorkspace(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// UpsertStack selects stack, creating it if needed, in a workspace running program.
func UpsertStack(ctx context.Context, stack string, program pulumi.RunFunc) (auto.Stack, error) {
	ws, err := NewWorkspace(ctx, program)
	if err != nil {
		return auto.Stack{}, err
	}
	s, err := auto.UpsertStack(ctx, StackRef(stack, os.Getenv(EnvBackendURL)), ws)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to select stack '%s': %w", stack, err)
	}
	return s, nil
}

// SelectStack selects an existing stack.
func SelectStack(ctx context.Context, stack string) (auto.Stack, error) {
	ws, err := NewWorkspace(ctx, nil)
	if err != nil {
		return auto.Stack{}, err
	}
	s, err := auto.SelectStack(ctx, StackRef(stack, os.Getenv(EnvBackendURL)), ws)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("failed to select stack '%s': %w", stack, err)
	}
	return s, nil
}
