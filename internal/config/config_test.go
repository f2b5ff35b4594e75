package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDocumentedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 9222, cfg.Server.Port)
	require.Equal(t, 9223, cfg.Server.CDPPort)
	require.True(t, cfg.Chrome.Headless)
	require.Equal(t, 50, cfg.Perception.MaxCycles)
	require.Equal(t, 5.00, cfg.Perception.MaxCostUSD)
	require.Equal(t, "claude-sonnet-4-5", cfg.Vision.Model)
	require.False(t, cfg.Auth.Enabled)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("DBS_SERVER_PORT", "8080")
	t.Setenv("DBS_PERCEPTION_MAX_CYCLES", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 10, cfg.Perception.MaxCycles)
}

func TestLoad_BindsAnthropicAPIKeyEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.Vision.APIKey)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n  cdp_port: 7001\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 7001, cfg.Server.CDPPort)
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 0, CDPPort: 9223}}
	require.Error(t, cfg.Validate())
}

func TestValidate_RejectsIdenticalPorts(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 9222, CDPPort: 9222}}
	require.Error(t, cfg.Validate())
}

func TestValidate_AcceptsDistinctValidPorts(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 9222, CDPPort: 9223}}
	require.NoError(t, cfg.Validate())
}
