package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDeployFile is read by the CLI when no --config flag is given.
const DefaultDeployFile = "mcserver.yaml"

// DeployFile is the CLI-side deploy description. Its values are written into
// the stack configuration before the program runs.
type DeployFile struct {
	Region string       `yaml:"region,omitempty"`
	Server ServerConfig `yaml:",inline"`
}

// LoadDeployFile parses a deploy file. A missing file at the default path is
// not an error; a missing explicit path is.
func LoadDeployFile(path string) (*DeployFile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultDeployFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &DeployFile{}, nil
		}
		return nil, fmt.Errorf("failed to read deploy file %s: %w", path, err)
	}

	var df DeployFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("failed to parse deploy file %s: %w", path, err)
	}
	return &df, nil
}

// Merge overlays non-empty values from o onto df.
func (df *DeployFile) Merge(o DeployFile) {
	mergeString(&df.Region, o.Region)
	mergeString(&df.Server.PublicKeyPath, o.Server.PublicKeyPath)
	mergeString(&df.Server.PrivateKeyPath, o.Server.PrivateKeyPath)
	mergeString(&df.Server.InstanceSize, o.Server.InstanceSize)
	mergeString(&df.Server.XMX, o.Server.XMX)
	mergeString(&df.Server.XMS, o.Server.XMS)
}

func mergeString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
