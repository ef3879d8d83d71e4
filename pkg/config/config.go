// Package config defines the deployment configuration of the Minecraft server
// stack and loads it from Pulumi stack configuration.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// Stack configuration keys (project namespace).
const (
	KeyPublicKeyPath  = "publicKeyPath"
	KeyPrivateKeyPath = "privateKeyPath"
	KeyInstanceSize   = "mcserverEC2size"
	KeyXMX            = "mcserverXMX"
	KeyXMS            = "mcserverXMS"
)

// Defaults for optional keys.
const (
	DefaultInstanceSize = "t3.medium"
	// JVM maximum and minimum heap in MiB.
	DefaultXMX = "3072"
	DefaultXMS = "3072"
)

var (
	// ErrMissingValue is returned when a required configuration value is absent.
	ErrMissingValue = errors.New("missing required configuration value")
	// ErrInvalidValue is returned when a configuration value cannot be used.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// ServerConfig is the resolved configuration for one deployment run.
type ServerConfig struct {
	PublicKeyPath  string `json:"publicKeyPath" yaml:"publicKeyPath"`
	PrivateKeyPath string `json:"privateKeyPath" yaml:"privateKeyPath"`
	InstanceSize   string `json:"instanceSize" yaml:"instanceSize"`
	XMX            string `json:"xmx" yaml:"xmx"`
	XMS            string `json:"xms" yaml:"xms"`
}

// Getter is the subset of the Pulumi config API the loader needs.
type Getter interface {
	Get(key string) string
	Try(key string) (string, error)
}

// LoadFromPulumiConfig reads the server configuration from the stack config of ctx.
func LoadFromPulumiConfig(ctx *pulumi.Context) (*ServerConfig, error) {
	return Load(pulumiconfig.New(ctx, ""))
}

// Load reads the server configuration from cfg, applies defaults and validates it.
func Load(cfg Getter) (*ServerConfig, error) {
	publicKeyPath, err := requireValue(cfg, KeyPublicKeyPath)
	if err != nil {
		return nil, err
	}
	privateKeyPath, err := requireValue(cfg, KeyPrivateKeyPath)
	if err != nil {
		return nil, err
	}

	sc := &ServerConfig{
		PublicKeyPath:  publicKeyPath,
		PrivateKeyPath: privateKeyPath,
		InstanceSize:   cfg.Get(KeyInstanceSize),
		XMX:            cfg.Get(KeyXMX),
		XMS:            cfg.Get(KeyXMS),
	}
	ApplyDefaults(sc)

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func requireValue(cfg Getter, key string) (string, error) {
	v, err := cfg.Try(key)
	if err != nil || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingValue, key)
	}
	return v, nil
}

// ApplyDefaults fills unset optional values.
func ApplyDefaults(sc *ServerConfig) {
	if sc.InstanceSize == "" {
		sc.InstanceSize = DefaultInstanceSize
	}
	if sc.XMX == "" {
		sc.XMX = DefaultXMX
	}
	if sc.XMS == "" {
		sc.XMS = DefaultXMS
	}
}

// Validate checks required values and that the memory values are positive integers.
func (sc *ServerConfig) Validate() error {
	if sc.PublicKeyPath == "" {
		return fmt.Errorf("%w: %s", ErrMissingValue, KeyPublicKeyPath)
	}
	if sc.PrivateKeyPath == "" {
		return fmt.Errorf("%w: %s", ErrMissingValue, KeyPrivateKeyPath)
	}

	memory := map[string]string{KeyXMX: sc.XMX, KeyXMS: sc.XMS}
	keys := make([]string, 0, len(memory))
	for k := range memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := memory[key]
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s=%q must be a positive integer (MiB)", ErrInvalidValue, key, v)
		}
	}
	return nil
}

// StackConfig returns the values keyed the way the program reads them.
// Unset optional values are omitted so the program defaults apply.
func (sc *ServerConfig) StackConfig() map[string]string {
	m := map[string]string{
		KeyPublicKeyPath:  sc.PublicKeyPath,
		KeyPrivateKeyPath: sc.PrivateKeyPath,
	}
	if sc.InstanceSize != "" {
		m[KeyInstanceSize] = sc.InstanceSize
	}
	if sc.XMX != "" {
		m[KeyXMX] = sc.XMX
	}
	if sc.XMS != "" {
		m[KeyXMS] = sc.XMS
	}
	return m
}
