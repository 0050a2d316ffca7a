// Package main provides the taskify command line front end. Each subcommand
// runs one engine operation: start opens the portal and waits for the
// operator to log in, status reports the session, run processes pending
// approvals, and close shuts the browser down.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/taskify/pkg/browser"
	"github.com/entrhq/taskify/pkg/config"
	"github.com/entrhq/taskify/pkg/engine"
	"github.com/entrhq/taskify/pkg/logging"
	"github.com/entrhq/taskify/pkg/session"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Command     string
	Verbosity   string
	JSON        bool
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("taskify v%s\n", version)
		return
	}
	if cliConfig.Command == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nStopping... (the browser stays open)")
		cancel()
	}()

	res, err := run(ctx, cliConfig)
	cancel()
	if err != nil {
		log.Printf("taskify failed: %v", err)
		os.Exit(1)
	}

	if cliConfig.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Printf("failed to encode result: %v", err)
			os.Exit(1)
		}
	} else {
		fmt.Println(render(res))
	}
	if !res.Success {
		os.Exit(1)
	}
}

// parseFlags parses command line flags and the subcommand
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.ConfigFile, "config", os.Getenv("TASKIFY_CONFIG"), "Path to configuration file (YAML)")
	flag.StringVar(&cliConfig.Verbosity, "verbosity", "", "Logging verbosity: quiet, normal, verbose or debug (overrides the config file)")
	flag.BoolVar(&cliConfig.JSON, "json", false, "Print the result as JSON")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 0, "Abort the operation after this long (0 = no limit)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "taskify - Vahan approval automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: taskify [options] <start|status|run|close>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  start   open the portal in a browser and wait for login\n")
		fmt.Fprintf(os.Stderr, "  status  report whether a browser is open and logged in\n")
		fmt.Fprintf(os.Stderr, "  run     approve pending applications until none remain\n")
		fmt.Fprintf(os.Stderr, "  close   close the browser and forget the session\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	cliConfig.Command = flag.Arg(0)
	return cliConfig
}

// run loads the configuration, wires the engine and executes the command
func run(ctx context.Context, cliConfig *CLIConfig) (engine.Result, error) {
	cfg, err := config.Load(cliConfig.ConfigFile)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cliConfig.Verbosity != "" {
		cfg.Logging.Verbosity = cliConfig.Verbosity
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return engine.Result{}, fmt.Errorf("invalid configuration: %w", validationErr)
	}

	level, err := logging.ParseLevel(cfg.Logging.Verbosity)
	if err != nil {
		return engine.Result{}, err
	}
	logging.SetVerbosity(level)
	if level >= logging.LevelVerbose {
		logging.SetMirror(os.Stderr)
	}

	connector := browser.NewPlaywrightConnector()
	defer func() {
		if stopErr := connector.Stop(); stopErr != nil {
			log.Printf("failed to stop browser driver: %v", stopErr)
		}
	}()
	if level >= logging.LevelVerbose {
		connector.SetOutput(os.Stderr)
	}

	eng, err := engine.New(cfg, newManager(cfg, connector))
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to create engine: %w", err)
	}

	if cliConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliConfig.Timeout)
		defer cancel()
	}

	switch cliConfig.Command {
	case "start":
		return eng.StartSession(ctx), nil
	case "status":
		return eng.CheckStatus(ctx), nil
	case "run":
		return eng.RunWorkflow(ctx), nil
	case "close":
		return eng.CloseSession(ctx), nil
	default:
		return engine.Result{}, fmt.Errorf("unknown command: %s (must be 'start', 'status', 'run' or 'close')", cliConfig.Command)
	}
}

// newManager wires the session manager with the creation strategies in
// order: system browser, pinned browser, driver-managed download, fallback
// revisions.
func newManager(cfg *config.Config, connector *browser.PlaywrightConnector) *session.Manager {
	launcher := session.NewRodLauncher(session.LaunchProfile{
		Port:       cfg.Browser.ControlPort,
		ProfileDir: cfg.Browser.ProfileDir,
		UserAgent:  cfg.Browser.UserAgent,
		Headless:   cfg.Browser.Headless,
	})

	strategies := []session.Strategy{
		session.NewAutoStrategy(launcher),
		session.NewPinnedStrategy(launcher, cfg.Browser.Executable, cfg.Browser.KnownGoodRevision),
	}
	if cfg.Browser.ManagedDownload {
		strategies = append(strategies, session.NewManagedDownloadStrategy(launcher, connector))
	}
	if len(cfg.Browser.FallbackRevisions) > 0 {
		strategies = append(strategies, session.NewFallbackStrategy(launcher, cfg.Browser.FallbackRevisions))
	}

	probe := session.NewPortProbe(cfg.Browser.ControlPort, cfg.Browser.ProbeTimeout.Std())
	return session.NewManager(session.ControlAddress(cfg.Browser.ControlPort), probe, connector, strategies...)
}
