package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultPortalURL, cfg.Portal.URL)
	assert.Equal(t, 9222, cfg.Browser.ControlPort)
	assert.Equal(t, time.Second, cfg.Browser.ProbeTimeout.Std())
	assert.Equal(t, 300*time.Second, cfg.Login.Timeout.Std())
	assert.Equal(t, 2, cfg.Workflow.RecoveryBudget)
	assert.Equal(t, 3, cfg.Workflow.MaxConsecutiveErrors)
	assert.Equal(t, 2*time.Second, cfg.Workflow.SuccessPause.Std())
	assert.Equal(t, 5*time.Second, cfg.Workflow.ErrorPause.Std())
	assert.Equal(t, time.Hour, cfg.Session.Freshness.Std())
	assert.Equal(t, 3, cfg.Portal.NavigationRetries)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{"missing url", func(c *Config) { c.Portal.URL = "" }, "portal url is required"},
		{"bad port", func(c *Config) { c.Browser.ControlPort = 70000 }, "invalid control_port"},
		{"slow probe", func(c *Config) { c.Browser.ProbeTimeout = Duration(3 * time.Second) }, "probe_timeout"},
		{"zero login timeout", func(c *Config) { c.Login.Timeout = 0 }, "login timeout"},
		{"negative budget", func(c *Config) { c.Workflow.RecoveryBudget = -1 }, "recovery_budget"},
		{"no error limit", func(c *Config) { c.Workflow.MaxConsecutiveErrors = 0 }, "max_consecutive_errors"},
		{"zero scale", func(c *Config) { c.Workflow.TimingScale = 0 }, "timing_scale"},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = "chatty" }, "invalid logging verbosity"},
		{"no record path", func(c *Config) { c.Session.RecordPath = "" }, "record_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfig_ValidateDefaultsVerbosity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Verbosity = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taskify.yaml")
		content := `
portal:
  url: https://example.test/login.xhtml
browser:
  control_port: 9333
  headless: true
login:
  timeout: 2m
  poll_interval: 1
workflow:
  recovery_budget: 4
  timing_scale: 0.5
logging:
  verbosity: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://example.test/login.xhtml", cfg.Portal.URL)
		assert.Equal(t, 9333, cfg.Browser.ControlPort)
		assert.True(t, cfg.Browser.Headless)
		assert.Equal(t, 2*time.Minute, cfg.Login.Timeout.Std())
		assert.Equal(t, time.Second, cfg.Login.PollInterval.Std())
		assert.Equal(t, 4, cfg.Workflow.RecoveryBudget)
		assert.Equal(t, 0.5, cfg.Workflow.TimingScale)
		assert.Equal(t, "debug", cfg.Logging.Verbosity)

		// Untouched sections keep their defaults
		assert.Equal(t, 3, cfg.Workflow.MaxConsecutiveErrors)
		assert.Equal(t, "*login*", cfg.Portal.LoginPattern)
		require.NoError(t, cfg.Validate())
	})

	t.Run("home paths are expanded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taskify.yaml")
		require.NoError(t, os.WriteFile(path, []byte("session:\n  record_path: ~/custom/session.json\n"), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		homeDir, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(homeDir, "custom", "session.json"), cfg.Session.RecordPath)
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taskify.yaml")
		require.NoError(t, os.WriteFile(path, []byte("login:\n  timeout: soon\n"), 0600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)
}
