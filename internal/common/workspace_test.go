package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	p := Project("")
	assert.Equal(t, "mcserver", string(p.Name))
	assert.Equal(t, "go", p.Runtime.Name())
	assert.Nil(t, p.Backend)

	p = Project("s3://mcserver-state")
	if assert.NotNil(t, p.Backend) {
		assert.Equal(t, "s3://mcserver-state", p.Backend.URL)
	}
}

func TestForwardedEnv(t *testing.T) {
	env := map[string]string{
		"AWS_ACCESS_KEY_ID":  "AKIATEST",
		"AWS_REGION":         "eu-west-1",
		"PULUMI_BACKEND_URL": "s3://mcserver-state",
		"HOME":               "/home/ops",
		"AWS_SESSION_TOKEN":  "",
	}

	got := ForwardedEnv(func(k string) string { return env[k] })

	assert.Equal(t, map[string]string{
		"AWS_ACCESS_KEY_ID":  "AKIATEST",
		"AWS_REGION":         "eu-west-1",
		"PULUMI_BACKEND_URL": "s3://mcserver-state",
	}, got)
}

func TestSelfManagedBackend(t *testing.T) {
	assert.False(t, SelfManagedBackend(""))
	assert.False(t, SelfManagedBackend("https://api.pulumi.com"))
	assert.True(t, SelfManagedBackend("s3://mcserver-state"))
	assert.True(t, SelfManagedBackend("file://~"))
}

func TestQualifiedStackName(t *testing.T) {
	assert.Equal(t, "organization/mcserver/prod", QualifiedStackName("prod"))
	assert.Equal(t, "acme/mcserver/dev", QualifiedStackName("acme/mcserver/dev"))
}

func TestStackRef(t *testing.T) {
	assert.Equal(t, "prod", StackRef("prod", ""))
	assert.Equal(t, "organization/mcserver/prod", StackRef("prod", "s3://mcserver-state"))
}

func TestLoadSavedSettings_LogsUnreadableFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	// a directory where a file is expected opens but cannot be read
	require.NoError(t, os.MkdirAll(filepath.Join(home, ConfigDirName, ConfigFileName), 0700))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ConfigDirName, CredentialsFileName), 0700))

	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	loadSavedSettings()

	out := buf.String()
	assert.Contains(t, out, "saved configuration not loaded")
	assert.Contains(t, out, "saved credentials not loaded")
	assert.Contains(t, out, `"level":"debug"`)
}

func TestLoadSavedSettings_MissingFilesAreQuiet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	loadSavedSettings()
	assert.Empty(t, buf.String())
}
