package session

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Strategy creates a browser endpoint listening on the control port.
type Strategy interface {
	// Name identifies the strategy in logs and creation errors
	Name() string

	// Launch starts a browser and returns its control address
	Launch(ctx context.Context) (string, error)
}

// BinaryLauncher starts a browser executable with the creation profile.
type BinaryLauncher interface {
	LaunchBinary(ctx context.Context, bin string) (string, error)
}

// LaunchProfile is the command-line profile of every created browser.
type LaunchProfile struct {
	Port       int
	ProfileDir string
	UserAgent  string
	Headless   bool
}

// RodLauncher launches detached browsers with go-rod's launcher. Browsers
// outlive the process that created them so a later process can attach to the
// control port.
type RodLauncher struct {
	Profile LaunchProfile
}

// NewRodLauncher creates a launcher for profile.
func NewRodLauncher(profile LaunchProfile) *RodLauncher {
	return &RodLauncher{Profile: profile}
}

// Command returns the configured launcher for bin without starting it.
func (r *RodLauncher) Command(ctx context.Context, bin string) *launcher.Launcher {
	p := r.Profile
	l := launcher.New().
		Context(ctx).
		Bin(bin).
		Leakless(false).
		Headless(p.Headless).
		RemoteDebuggingPort(p.Port).
		Delete("enable-automation").
		Delete("no-startup-window").
		Set("start-maximized").
		Set("disable-blink-features", "AutomationControlled").
		Set("ignore-certificate-errors").
		Set("allow-running-insecure-content").
		Set("dns-prefetch-disable").
		Preferences(`{"profile":{"default_content_setting_values":{"notifications":2},"default_content_settings":{"popups":0}}}`)

	if p.ProfileDir != "" {
		l = l.UserDataDir(p.ProfileDir)
	}
	if p.UserAgent != "" {
		l = l.Set(flags.Flag("user-agent"), p.UserAgent)
	}
	return l
}

// LaunchBinary implements BinaryLauncher. If a browser already listens on
// the port, its address is returned instead of starting a second one.
func (r *RodLauncher) LaunchBinary(ctx context.Context, bin string) (string, error) {
	if bin == "" {
		return "", errors.New("no browser executable")
	}
	debugLog.Infof("Launching %s on port %d", bin, r.Profile.Port)
	u, err := r.Command(ctx, bin).Launch()
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", bin, err)
	}
	return u, nil
}

// AutoStrategy uses the browser installed on the system.
type AutoStrategy struct {
	Launcher BinaryLauncher
	lookPath func() (string, bool)
}

// NewAutoStrategy creates the system-browser strategy.
func NewAutoStrategy(l BinaryLauncher) *AutoStrategy {
	return &AutoStrategy{Launcher: l, lookPath: launcher.LookPath}
}

// Name implements Strategy.
func (s *AutoStrategy) Name() string { return "auto" }

// Launch implements Strategy.
func (s *AutoStrategy) Launch(ctx context.Context) (string, error) {
	bin, ok := s.lookPath()
	if !ok {
		return "", errors.New("no installed browser found")
	}
	return s.Launcher.LaunchBinary(ctx, bin)
}

// revisionFetcher resolves a browser revision to a local executable,
// downloading it when needed.
type revisionFetcher func(ctx context.Context, revision int) (string, error)

func fetchRevision(ctx context.Context, revision int) (string, error) {
	b := launcher.NewBrowser()
	b.Context = ctx
	b.Revision = revision
	b.Logger = log.New(debugLog.Writer(), "[launcher] ", log.LstdFlags)
	bin, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("revision %d: %w", revision, err)
	}
	return bin, nil
}

// PinnedStrategy uses an explicitly configured executable, or else the
// known-good browser revision.
type PinnedStrategy struct {
	Launcher   BinaryLauncher
	Executable string
	Revision   int
	fetch      revisionFetcher
}

// NewPinnedStrategy creates the explicit-version strategy.
func NewPinnedStrategy(l BinaryLauncher, executable string, revision int) *PinnedStrategy {
	if revision <= 0 {
		revision = launcher.RevisionDefault
	}
	return &PinnedStrategy{Launcher: l, Executable: executable, Revision: revision, fetch: fetchRevision}
}

// Name implements Strategy.
func (s *PinnedStrategy) Name() string { return "pinned" }

// Launch implements Strategy.
func (s *PinnedStrategy) Launch(ctx context.Context) (string, error) {
	bin := s.Executable
	if bin == "" {
		var err error
		bin, err = s.fetch(ctx, s.Revision)
		if err != nil {
			return "", err
		}
	}
	return s.Launcher.LaunchBinary(ctx, bin)
}

// ChromiumInstaller downloads a driver-managed browser build.
type ChromiumInstaller interface {
	InstallChromium(ctx context.Context) (string, error)
}

// ManagedDownloadStrategy installs the browser build that ships with the
// automation driver.
type ManagedDownloadStrategy struct {
	Launcher  BinaryLauncher
	Installer ChromiumInstaller
}

// NewManagedDownloadStrategy creates the managed-download strategy.
func NewManagedDownloadStrategy(l BinaryLauncher, installer ChromiumInstaller) *ManagedDownloadStrategy {
	return &ManagedDownloadStrategy{Launcher: l, Installer: installer}
}

// Name implements Strategy.
func (s *ManagedDownloadStrategy) Name() string { return "managed-download" }

// Launch implements Strategy.
func (s *ManagedDownloadStrategy) Launch(ctx context.Context) (string, error) {
	bin, err := s.Installer.InstallChromium(ctx)
	if err != nil {
		return "", err
	}
	return s.Launcher.LaunchBinary(ctx, bin)
}

// FallbackStrategy tries a list of browser revisions in order.
type FallbackStrategy struct {
	Launcher  BinaryLauncher
	Revisions []int
	fetch     revisionFetcher
}

// NewFallbackStrategy creates the fallback-list strategy.
func NewFallbackStrategy(l BinaryLauncher, revisions []int) *FallbackStrategy {
	return &FallbackStrategy{Launcher: l, Revisions: revisions, fetch: fetchRevision}
}

// Name implements Strategy.
func (s *FallbackStrategy) Name() string { return "fallback" }

// Launch implements Strategy.
func (s *FallbackStrategy) Launch(ctx context.Context) (string, error) {
	if len(s.Revisions) == 0 {
		return "", errors.New("no fallback revisions configured")
	}
	var errs []error
	for _, rev := range s.Revisions {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		debugLog.Infof("Trying browser revision %d", rev)
		bin, err := s.fetch(ctx, rev)
		if err == nil {
			var addr string
			addr, err = s.Launcher.LaunchBinary(ctx, bin)
			if err == nil {
				return addr, nil
			}
			err = fmt.Errorf("revision %d: %w", rev, err)
		}
		debugLog.Warnf("Browser revision %d failed: %v", rev, err)
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}
