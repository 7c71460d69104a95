package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
}

func TestInitRootRegistersFlagsAndCommands(t *testing.T) {
	InitRoot()

	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("json"))

	names := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, expected := range []string{"serve", "providers", "status", "sync", "version"} {
		assert.True(t, names[expected], "missing command %s", expected)
	}
}

func TestEnvDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, envDuration("LINKHUB_TEST_UNSET", 30*time.Second))

	t.Setenv("LINKHUB_TEST_DURATION", "45s")
	assert.Equal(t, 45*time.Second, envDuration("LINKHUB_TEST_DURATION", time.Second))

	t.Setenv("LINKHUB_TEST_DURATION", "not-a-duration")
	assert.Equal(t, time.Second, envDuration("LINKHUB_TEST_DURATION", time.Second))
}

func TestBuildAppFailsOnMissingConfig(t *testing.T) {
	original := globalFlags.Config
	defer func() { globalFlags.Config = original }()
	globalFlags.Config = "/nonexistent/config.yaml"

	_, err := buildApp()
	require.Error(t, err)
}
