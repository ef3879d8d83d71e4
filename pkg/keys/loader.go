// Package keys loads the SSH key pair used to register the EC2 key pair and
// to authenticate the bootstrap commands.
package keys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chalkan3/mcserver/pkg/config"
	"github.com/chalkan3/mcserver/pkg/secrets"
)

// KeyMaterial is read once per run and not modified afterwards.
type KeyMaterial struct {
	PublicKey string
	// PrivateKey is held as a secret; use PrivateKey.Output() for Pulumi inputs.
	PrivateKey secrets.Secret
	// PrivateKeyPath is the expanded path handed to external tools.
	PrivateKeyPath string
}

// Load reads both key files named by cfg. The content is neither validated
// nor trimmed, so the registered public key matches the file byte for byte.
func Load(cfg *config.ServerConfig) (*KeyMaterial, error) {
	publicKeyPath, err := ExpandPath(cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}

	publicKey, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %s: %w", publicKeyPath, err)
	}

	privateKey, privateKeyPath, err := LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	return &KeyMaterial{
		PublicKey:      string(publicKey),
		PrivateKey:     privateKey,
		PrivateKeyPath: privateKeyPath,
	}, nil
}

// LoadPrivateKey reads the private key at path and returns it with the expanded path.
func LoadPrivateKey(path string) (secrets.Secret, string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return secrets.Secret{}, "", err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return secrets.Secret{}, "", fmt.Errorf("failed to read private key %s: %w", expanded, err)
	}
	return secrets.New(string(data)), expanded, nil
}

// ResolvePath expands path and makes it absolute, relative paths being taken
// from dir.
func ResolvePath(path, dir string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if expanded == "" || filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Join(dir, expanded), nil
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
