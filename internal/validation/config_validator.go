package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/chalkan3/mcserver/internal/orchestrator/components"
	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/keys"
)

var (
	instanceTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*\.[a-z0-9]+$`)
	regionPattern       = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-\d$`)
)

// ValidateDeployConfig performs the checks the CLI runs before starting an
// update. Unset optional values are checked with their defaults applied.
func ValidateDeployConfig(df *config.DeployFile) error {
	if df == nil {
		return fmt.Errorf("deploy configuration is required")
	}

	sc := df.Server
	config.ApplyDefaults(&sc)

	if err := sc.Validate(); err != nil {
		return err
	}

	if err := ValidateInstanceSize(sc.InstanceSize); err != nil {
		return fmt.Errorf("instance validation failed: %w", err)
	}

	if err := ValidateMemory(sc.XMX, sc.XMS); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}

	if err := ValidateRegion(df.Region); err != nil {
		return fmt.Errorf("region validation failed: %w", err)
	}

	if err := ValidateKeyFiles(&sc); err != nil {
		return fmt.Errorf("key validation failed: %w", err)
	}

	return nil
}

// ValidateInstanceSize checks the EC2 instance type looks like family.size
func ValidateInstanceSize(size string) error {
	if !instanceTypePattern.MatchString(size) {
		return fmt.Errorf("%w: instance size %q", config.ErrInvalidValue, size)
	}
	return nil
}

// ValidateMemory checks the initial heap does not exceed the maximum heap
func ValidateMemory(xmx, xms string) error {
	maxHeap, err := strconv.Atoi(xmx)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", config.ErrInvalidValue, config.KeyXMX, xmx)
	}
	initialHeap, err := strconv.Atoi(xms)
	if err != nil {
		return fmt.Errorf("%w: %s=%q", config.ErrInvalidValue, config.KeyXMS, xms)
	}

	if initialHeap > maxHeap {
		return fmt.Errorf("%w: initial heap %d MiB exceeds maximum heap %d MiB", config.ErrInvalidValue, initialHeap, maxHeap)
	}
	return nil
}

// ValidateRegion checks the region name. An empty region defers to the AWS environment.
func ValidateRegion(region string) error {
	if region == "" {
		return nil
	}
	if !regionPattern.MatchString(region) {
		return fmt.Errorf("%w: region %q", config.ErrInvalidValue, region)
	}
	return nil
}

// ValidateKeyFiles checks both key files exist and are regular files
func ValidateKeyFiles(sc *config.ServerConfig) error {
	for _, path := range []string{sc.PublicKeyPath, sc.PrivateKeyPath} {
		if err := checkRegularFile(path); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePlaybook checks the playbook template is present in dir
func ValidatePlaybook(dir string) error {
	return checkRegularFile(filepath.Join(dir, components.PlaybookTemplate))
}

func checkRegularFile(path string) error {
	expanded, err := keys.ExpandPath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(expanded)
	if err != nil {
		return fmt.Errorf("%s: %w", expanded, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", expanded)
	}
	return nil
}
