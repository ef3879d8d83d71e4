// Package common holds helpers shared by the CLI commands: the saved
// environment files under ~/.mcserver and the Automation API workspace.
package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ConfigDirName is the directory under the user's home holding saved settings.
const ConfigDirName = ".mcserver"

// Saved settings files, both KEY=VALUE.
const (
	ConfigFileName      = "config"
	CredentialsFileName = "credentials"
)

// ConfigDir returns ~/.mcserver.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName), nil
}

// LoadSavedConfig exports the values of ~/.mcserver/config into the process
// environment. Variables already set are left alone. A missing file is not an error.
func LoadSavedConfig() error {
	return loadIntoEnv(ConfigFileName)
}

// LoadSavedCredentials does the same for ~/.mcserver/credentials.
func LoadSavedCredentials() error {
	return loadIntoEnv(CredentialsFileName)
}

// GetCredentialsStatus reports whether the credentials file exists and its path.
func GetCredentialsStatus() (bool, string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return false, "", err
	}
	path := filepath.Join(dir, CredentialsFileName)

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, path, nil
	}
	if err != nil {
		return false, path, err
	}
	return true, path, nil
}

// SaveConfigValue sets key in ~/.mcserver/config, keeping the other values.
// The file is written with mode 0600.
func SaveConfigValue(key, value string) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, ConfigFileName)
	values, err := loadConfigFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# mcserver configuration\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, values[k])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func loadIntoEnv(name string) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	values, err := loadConfigFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for key, value := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// loadConfigFile parses KEY=VALUE lines. Blank lines, comments and lines
// without '=' are skipped; surrounding quotes are removed from values.
func loadConfigFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
