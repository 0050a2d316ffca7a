package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPortalURL is the login page of the registration portal
	DefaultPortalURL = "https://vahan.parivahan.gov.in/vahan/vahan/ui/login/login.xhtml"

	// DefaultControlPort is the well-known remote debugging port a created
	// browser listens on, so a later process can find and reuse it.
	DefaultControlPort = 9222

	// DefaultUserAgent is sent by browsers created by taskify
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.7339.210 Safari/537.36"
)

// Config is the complete taskify configuration
type Config struct {
	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Login    LoginConfig    `yaml:"login" json:"login"`
	Workflow WorkflowConfig `yaml:"workflow" json:"workflow"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// PortalConfig describes the remote application being driven
type PortalConfig struct {
	URL string `yaml:"url" json:"url"`

	// HostPattern is a glob matched against the lowercased location to decide
	// whether the browser is on the portal at all
	HostPattern string `yaml:"host_pattern" json:"host_pattern"`

	// LoginPattern is a glob matched against the lowercased location to
	// recognise the login page
	LoginPattern string `yaml:"login_pattern" json:"login_pattern"`

	// Markers are XPath expressions of elements that only exist after login
	Markers []string `yaml:"markers" json:"markers"`

	NavigationRetries int      `yaml:"navigation_retries" json:"navigation_retries"`
	PageLoadTimeout   Duration `yaml:"page_load_timeout" json:"page_load_timeout"`
	RetryDelay        Duration `yaml:"retry_delay" json:"retry_delay"`
	NetworkRetryDelay Duration `yaml:"network_retry_delay" json:"network_retry_delay"`
}

// BrowserConfig controls discovery and creation of the browser endpoint
type BrowserConfig struct {
	ControlPort  int      `yaml:"control_port" json:"control_port"`
	ProbeTimeout Duration `yaml:"probe_timeout" json:"probe_timeout"`
	Headless     bool     `yaml:"headless" json:"headless"`

	// Executable pins a browser binary; used by the explicit-version strategy
	Executable string `yaml:"executable" json:"executable"`

	// KnownGoodRevision is a Chromium revision known to work with the portal
	KnownGoodRevision int `yaml:"known_good_revision" json:"known_good_revision"`

	// FallbackRevisions are tried in order when every other strategy failed
	FallbackRevisions []int `yaml:"fallback_revisions" json:"fallback_revisions"`

	// ManagedDownload enables downloading a browser through the automation driver
	ManagedDownload bool `yaml:"managed_download" json:"managed_download"`

	ProfileDir string `yaml:"profile_dir" json:"profile_dir"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// LoginConfig controls the wait for a human to authenticate
type LoginConfig struct {
	Timeout      Duration `yaml:"timeout" json:"timeout"`
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`
}

// WorkflowConfig controls the approval loop
type WorkflowConfig struct {
	RecoveryBudget       int      `yaml:"recovery_budget" json:"recovery_budget"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
	SuccessPause         Duration `yaml:"success_pause" json:"success_pause"`
	ErrorPause           Duration `yaml:"error_pause" json:"error_pause"`

	// TimingScale multiplies every step wait and settle delay (1.0 = defaults)
	TimingScale float64 `yaml:"timing_scale" json:"timing_scale"`
}

// SessionConfig controls the persisted session record
type SessionConfig struct {
	RecordPath string   `yaml:"record_path" json:"record_path"`
	Freshness  Duration `yaml:"freshness" json:"freshness"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// DefaultConfig returns a configuration suitable for most use cases
func DefaultConfig() *Config {
	base := baseDir()
	return &Config{
		Portal: PortalConfig{
			URL:          DefaultPortalURL,
			HostPattern:  "*vahan.parivahan.gov.in*",
			LoginPattern: "*login*",
			Markers: []string{
				"//a[contains(@href, 'logout')]",
				"//button[contains(text(), 'Logout')]",
				"//div[contains(@class, 'user')]",
			},
			NavigationRetries: 3,
			PageLoadTimeout:   Duration(60 * time.Second),
			RetryDelay:        Duration(3 * time.Second),
			NetworkRetryDelay: Duration(5 * time.Second),
		},
		Browser: BrowserConfig{
			ControlPort:       DefaultControlPort,
			ProbeTimeout:      Duration(time.Second),
			KnownGoodRevision: 1321438,
			FallbackRevisions: []int{1300313, 1283906, 1262504},
			ManagedDownload:   true,
			ProfileDir:        filepath.Join(base, "profile"),
			UserAgent:         DefaultUserAgent,
		},
		Login: LoginConfig{
			Timeout:      Duration(300 * time.Second),
			PollInterval: Duration(2 * time.Second),
		},
		Workflow: WorkflowConfig{
			RecoveryBudget:       2,
			MaxConsecutiveErrors: 3,
			SuccessPause:         Duration(2 * time.Second),
			ErrorPause:           Duration(5 * time.Second),
			TimingScale:          1.0,
		},
		Session: SessionConfig{
			RecordPath: filepath.Join(base, "session.json"),
			Freshness:  Duration(time.Hour),
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// baseDir returns ~/.taskify, or a relative .taskify when the home directory is unknown
func baseDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".taskify"
	}
	return filepath.Join(homeDir, ".taskify")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Portal.URL == "" {
		return fmt.Errorf("portal url is required")
	}
	if c.Portal.LoginPattern == "" {
		return fmt.Errorf("portal login_pattern is required")
	}
	if c.Portal.NavigationRetries < 1 {
		return fmt.Errorf("navigation_retries must be at least 1")
	}
	if c.Browser.ControlPort <= 0 || c.Browser.ControlPort > 65535 {
		return fmt.Errorf("invalid control_port: %d", c.Browser.ControlPort)
	}
	if c.Browser.ProbeTimeout <= 0 || c.Browser.ProbeTimeout.Std() > time.Second {
		return fmt.Errorf("probe_timeout must be between 0 and 1s")
	}
	if c.Login.Timeout <= 0 {
		return fmt.Errorf("login timeout must be positive")
	}
	if c.Login.PollInterval <= 0 {
		return fmt.Errorf("login poll_interval must be positive")
	}
	if c.Workflow.RecoveryBudget < 0 {
		return fmt.Errorf("recovery_budget cannot be negative")
	}
	if c.Workflow.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("max_consecutive_errors must be at least 1")
	}
	if c.Workflow.SuccessPause < 0 || c.Workflow.ErrorPause < 0 {
		return fmt.Errorf("workflow pauses cannot be negative")
	}
	if c.Workflow.TimingScale <= 0 {
		return fmt.Errorf("timing_scale must be positive")
	}
	if c.Session.RecordPath == "" {
		return fmt.Errorf("session record_path is required")
	}
	if c.Session.Freshness <= 0 {
		return fmt.Errorf("session freshness must be positive")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[strings.ToLower(c.Logging.Verbosity)] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// Load reads a YAML configuration file on top of DefaultConfig. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Browser.ProfileDir = expandHome(cfg.Browser.ProfileDir)
	cfg.Session.RecordPath = expandHome(cfg.Session.RecordPath)

	return cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}
