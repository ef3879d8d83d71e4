package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chalkan3/mcserver/internal/orchestrator/components"
	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/keys"
	"github.com/chalkan3/mcserver/pkg/providers"
	"github.com/chalkan3/mcserver/pkg/secrets"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Stack output names.
const (
	OutputPublicIP  = "publicIp"
	OutputPublicDNS = "publicDns"
)

// BootstrapName is the logical name of the bootstrap component.
const BootstrapName = "mcserver-bootstrap"

// Phase is a step of a deployment run. Phases are reached in declaration
// order except UpdateRan and PlaybookRendered, which may be reached in
// either order.
type Phase int

const (
	PhaseKeysLoaded Phase = iota
	PhaseKeyPairRegistered
	PhaseImageResolved
	PhaseInstanceReady
	PhaseUpdateRan
	PhasePlaybookRendered
	PhasePlaybookExecuted
)

var phaseNames = map[Phase]string{
	PhaseKeysLoaded:        "KeysLoaded",
	PhaseKeyPairRegistered: "KeyPairRegistered",
	PhaseImageResolved:     "ImageResolved",
	PhaseInstanceReady:     "InstanceReady",
	PhaseUpdateRan:         "UpdateRan",
	PhasePlaybookRendered:  "PlaybookRendered",
	PhasePlaybookExecuted:  "PlaybookExecuted",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// PhaseLog records the phases reached during a run and logs each one.
type PhaseLog struct {
	ctx     *pulumi.Context
	mu      sync.Mutex
	reached []Phase
}

func newPhaseLog(ctx *pulumi.Context) *PhaseLog {
	return &PhaseLog{ctx: ctx}
}

func (l *PhaseLog) enter(p Phase, detail string) {
	l.mu.Lock()
	l.reached = append(l.reached, p)
	l.mu.Unlock()

	msg := fmt.Sprintf("phase %s", p)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	_ = l.ctx.Log.Info(msg, nil)
}

// on enters p once out resolves.
func (l *PhaseLog) on(p Phase, out pulumi.StringOutput, detail func(string) string) {
	out.ApplyT(func(v string) string {
		d := ""
		if detail != nil {
			d = detail(v)
		}
		l.enter(p, d)
		return v
	})
}

// Reached returns the phases entered so far, in the order they were entered.
func (l *PhaseLog) Reached() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Phase(nil), l.reached...)
}

// Deployment holds what one run declared.
type Deployment struct {
	Instance  *providers.InstanceOutput
	Image     *providers.ImageReference
	Bootstrap *components.BootstrapComponent
	Phases    *PhaseLog
	Exported  []string
}

// Deploy declares the Minecraft server stack: key pair, image lookup,
// security group, instance and the bootstrap sequence. dir holds the playbook
// and anchors relative key paths. Key files are read before any resource is
// declared, so a missing key declares nothing.
func Deploy(ctx *pulumi.Context, cfg *config.ServerConfig, dir string) (*Deployment, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playbook directory: %w", err)
	}
	resolved, err := resolveKeyPaths(cfg, dir)
	if err != nil {
		return nil, err
	}

	material, err := keys.Load(resolved)
	if err != nil {
		return nil, err
	}

	phases := newPhaseLog(ctx)
	phases.enter(PhaseKeysLoaded, "")

	aws := providers.NewAWSProvider(ctx)

	keyPair, err := aws.RegisterKeyPair(material.PublicKey)
	if err != nil {
		return nil, err
	}
	phases.on(PhaseKeyPairRegistered, keyPair.KeyName, nil)

	image := aws.ResolveImage()
	phases.on(PhaseImageResolved, image.ID, func(id string) string { return id })

	if _, err := aws.CreateFirewall(); err != nil {
		return nil, err
	}

	instance, err := aws.CreateInstance(providers.InstanceSpec{InstanceType: cfg.InstanceSize})
	if err != nil {
		return nil, err
	}
	phases.on(PhaseInstanceReady, instance.PublicIP, func(ip string) string {
		return fmt.Sprintf("%s (%s)", ip, cfg.InstanceSize)
	})

	bootstrap, err := components.NewBootstrapComponent(ctx, BootstrapName, &components.BootstrapArgs{
		Host:           instance.PublicIP,
		PrivateKey:     material.PrivateKey,
		PrivateKeyPath: material.PrivateKeyPath,
		Dir:            dir,
		XMX:            cfg.XMX,
		XMS:            cfg.XMS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap sequence: %w", err)
	}
	phases.on(PhaseUpdateRan, bootstrap.Update.Stdout, nil)
	phases.on(PhasePlaybookRendered, bootstrap.Render.Stdout, nil)
	phases.on(PhasePlaybookExecuted, bootstrap.Status, nil)

	exporter := secrets.NewExporter(ctx)
	if err := exporter.Export(OutputPublicIP, instance.PublicIP); err != nil {
		return nil, err
	}
	if err := exporter.Export(OutputPublicDNS, instance.PublicDNS); err != nil {
		return nil, err
	}

	return &Deployment{
		Instance:  instance,
		Image:     image,
		Bootstrap: bootstrap,
		Phases:    phases,
		Exported:  exporter.Names(),
	}, nil
}

// resolveKeyPaths returns a copy of cfg with absolute key paths.
func resolveKeyPaths(cfg *config.ServerConfig, dir string) (*config.ServerConfig, error) {
	resolved := *cfg
	var err error
	if resolved.PublicKeyPath, err = keys.ResolvePath(cfg.PublicKeyPath, dir); err != nil {
		return nil, err
	}
	if resolved.PrivateKeyPath, err = keys.ResolvePath(cfg.PrivateKeyPath, dir); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// Program returns the Pulumi program that loads the stack configuration and
// deploys with the playbook in dir. An empty dir means the directory the
// program runs in.
func Program(dir string) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		cfg, err := config.LoadFromPulumiConfig(ctx)
		if err != nil {
			return err
		}

		workDir := dir
		if workDir == "" {
			if workDir, err = os.Getwd(); err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		_, err = Deploy(ctx, cfg, workDir)
		return err
	}
}
