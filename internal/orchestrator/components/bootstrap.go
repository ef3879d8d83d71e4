package components

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chalkan3/mcserver/pkg/secrets"
	"github.com/pulumi/pulumi-command/sdk/go/command/local"
	"github.com/pulumi/pulumi-command/sdk/go/command/remote"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// BootstrapType is the component type token.
const BootstrapType = "mcserver:bootstrap:Sequence"

// Logical names of the bootstrap commands.
const (
	UpdateCommandName   = "updatePythonCmd"
	RenderCommandName   = "renderPlaybookCmd"
	PlaybookCommandName = "playAnsiblePlaybookCmd"
)

// Remote access on the Debian image.
const (
	SSHUser = "admin"
	SSHPort = 22
)

// Playbook files, relative to BootstrapArgs.Dir.
const (
	PlaybookTemplate = "playbook.yml"
	RenderedPlaybook = "playbook_rendered.yml"
)

const updateScript = "sudo apt update"

// FailurePolicy decides what a failing step does to the run.
type FailurePolicy int

const (
	// FailRun aborts the deployment when the step exits non-zero.
	FailRun FailurePolicy = iota
	// TolerateFailure discards the step's exit status; the step always completes.
	TolerateFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case FailRun:
		return "fail-run"
	case TolerateFailure:
		return "tolerate-failure"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// Apply returns script with the policy enforced in the shell.
func (p FailurePolicy) Apply(script string) string {
	if p == TolerateFailure {
		return fmt.Sprintf("(%s || true)", script)
	}
	return script
}

// Step is one bootstrap action and the policy for its failure.
type Step struct {
	Name   string
	Policy FailurePolicy
}

// Steps in dependency order. The playbook step depends on the other two,
// which are independent of each other.
var (
	// TODO: decide whether a failed package index refresh on first boot
	// should abort the run instead of being discarded.
	UpdateStep   = Step{Name: UpdateCommandName, Policy: TolerateFailure}
	RenderStep   = Step{Name: RenderCommandName, Policy: FailRun}
	PlaybookStep = Step{Name: PlaybookCommandName, Policy: FailRun}
)

// UpdateScript is the remote package index refresh.
func UpdateScript() string {
	return UpdateStep.Policy.Apply(updateScript)
}

// RenderScript substitutes environment variables into the playbook template.
func RenderScript() string {
	return RenderStep.Policy.Apply(fmt.Sprintf("cat %s | envsubst > %s", PlaybookTemplate, RenderedPlaybook))
}

// PlaybookScript runs the rendered playbook against host.
func PlaybookScript(host, privateKeyPath, xmx, xms string) string {
	script := fmt.Sprintf(`ansible-playbook -u %s -i '%s,' --private-key %s %s --extra-vars "xmx=%s xms=%s"`,
		SSHUser, host, shellQuote(privateKeyPath), RenderedPlaybook, xmx, xms)
	return PlaybookStep.Policy.Apply(script)
}

// PlaybookEnvironment disables host key checking for the freshly created host.
func PlaybookEnvironment() map[string]string {
	return map[string]string{"ANSIBLE_HOST_KEY_CHECKING": "False"}
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BootstrapArgs are the inputs of the bootstrap sequence.
type BootstrapArgs struct {
	// Host is the instance public IP. Nothing runs until it resolves.
	Host       pulumi.StringOutput
	PrivateKey secrets.Secret

	// PrivateKeyPath must be absolute; ansible runs in Dir.
	PrivateKeyPath string

	// Dir is the absolute directory holding the playbook. The local commands
	// run there instead of in the engine's working directory.
	Dir string

	XMX string
	XMS string
}

// BootstrapComponent runs the update, render and playbook steps against a new instance
type BootstrapComponent struct {
	pulumi.ResourceState

	Update   *remote.Command
	Render   *local.Command
	Playbook *local.Command

	Status pulumi.StringOutput `pulumi:"status"`
}

// NewBootstrapComponent declares the three bootstrap commands. The playbook
// command is declared to depend on both the update and render commands.
func NewBootstrapComponent(ctx *pulumi.Context, name string, args *BootstrapArgs, opts ...pulumi.ResourceOption) (*BootstrapComponent, error) {
	if args == nil {
		return nil, fmt.Errorf("bootstrap args are required")
	}
	if args.PrivateKey.IsZero() {
		return nil, fmt.Errorf("private key is required for %s", UpdateCommandName)
	}
	if args.PrivateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required for %s", PlaybookCommandName)
	}
	if !filepath.IsAbs(args.PrivateKeyPath) {
		return nil, fmt.Errorf("private key path %q must be absolute", args.PrivateKeyPath)
	}
	if !filepath.IsAbs(args.Dir) {
		return nil, fmt.Errorf("playbook directory %q must be absolute", args.Dir)
	}

	component := &BootstrapComponent{}
	err := ctx.RegisterComponentResource(BootstrapType, name, component, opts...)
	if err != nil {
		return nil, err
	}

	update, err := remote.NewCommand(ctx, UpdateCommandName, &remote.CommandArgs{
		Connection: remote.ConnectionArgs{
			Host:       args.Host,
			Port:       pulumi.Float64(SSHPort),
			User:       pulumi.String(SSHUser),
			PrivateKey: args.PrivateKey.Output(),
		},
		Create: pulumi.String(UpdateScript()),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", UpdateCommandName, err)
	}
	component.Update = update

	render, err := local.NewCommand(ctx, RenderCommandName, &local.CommandArgs{
		Create: pulumi.String(RenderScript()),
		Dir:    pulumi.String(args.Dir),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", RenderCommandName, err)
	}
	component.Render = render

	playbookScript := args.Host.ApplyT(func(host string) string {
		return PlaybookScript(host, args.PrivateKeyPath, args.XMX, args.XMS)
	}).(pulumi.StringOutput)

	playbook, err := local.NewCommand(ctx, PlaybookCommandName, &local.CommandArgs{
		Create:      playbookScript,
		Dir:         pulumi.String(args.Dir),
		Environment: pulumi.ToStringMap(PlaybookEnvironment()),
	}, pulumi.Parent(component), pulumi.DependsOn([]pulumi.Resource{render, update}))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", PlaybookCommandName, err)
	}
	component.Playbook = playbook

	component.Status = playbook.Stdout.ApplyT(func(string) string {
		return "bootstrapped"
	}).(pulumi.StringOutput)

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"status": component.Status,
	}); err != nil {
		return nil, err
	}

	return component, nil
}
