// Package main implements the DeliHood terminal client entry point. It parses
// flags, loads the profile, wires the services and runs the terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/delihood/client/internal/app"
	"github.com/delihood/client/internal/config"
	"github.com/delihood/client/internal/interfaces"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/protocol"
)

// Application metadata
const (
	Version     = "1.0.0"
	ProgramName = "DeliHood"
	logFileName = "delihood.log"
)

// CommandLineArgs represents parsed command-line arguments
type CommandLineArgs struct {
	Profile     string
	BaseURL     string
	Email       string
	ShowHelp    bool
	ShowVersion bool
}

func main() {
	args := parseCommandLineArgs()

	if handleEarlyExitConditions(args) {
		return
	}

	if err := validateArguments(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	configManager, err := config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initializeLogging(configManager)

	profile, err := determineProfile(configManager, args)
	if err != nil {
		logger.Error("Failed to load profile", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(profile, args); err != nil {
		logger.Error("Application terminated with error", "error", err)
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Application shutdown completed")
}

// parseCommandLineArgs processes command-line arguments
func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.Profile, "profile", config.DefaultProfileName, "Profile name from the configuration file")
	flag.StringVar(&args.BaseURL, "base-url", "", "Backend base URL, overriding the profile (e.g., http://localhost:8080)")
	flag.StringVar(&args.Email, "login", "", "Email address to prefill on the sign-in screen")
	flag.BoolVar(&args.ShowHelp, "help", false, "Display usage information and exit")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", ProgramName, Version)
		fmt.Fprintf(os.Stderr, "Follow your current DeliHood order live from the terminal.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # Use the default profile\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --profile staging                 # Use the 'staging' profile\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --base-url http://localhost:8080  # Talk to a local backend\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  %s  overrides the profile base URL\n", config.EnvBaseURL)
		fmt.Fprintf(os.Stderr, "  %s=true  enables debug logging\n", config.EnvDebug)
	}

	flag.Parse()
	return args
}

// handleEarlyExitConditions processes help and version flags that cause immediate exit
func handleEarlyExitConditions(args CommandLineArgs) bool {
	if args.ShowHelp {
		flag.Usage()
		return true
	}

	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, Version)
		fmt.Printf("Client Version: %s\n", protocol.ClientVersion)
		return true
	}

	return false
}

// validateArguments ensures command-line arguments are valid
func validateArguments(args CommandLineArgs) error {
	if args.BaseURL != "" {
		u, err := url.Parse(args.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("base URL must be an absolute http(s) URL")
		}
	}
	if args.Email != "" && !strings.Contains(args.Email, "@") {
		return fmt.Errorf("login must be an email address")
	}
	return nil
}

// initializeLogging configures the global logger from the config file. The
// TUI owns the terminal, so output defaults to a file in the data directory.
func initializeLogging(configManager *config.Manager) *logging.Logger {
	logConfig := logging.DefaultConfig()

	settings, err := configManager.LogSettings()
	if err == nil {
		if settings.Level != "" {
			logConfig.Level = logging.ParseLevel(settings.Level)
		}
		if settings.Format != "" {
			logConfig.Format = settings.Format
		}
		logConfig.Output = settings.Output
	}

	if logConfig.Output == "" || logConfig.Output == "stderr" || logConfig.Output == "stdout" {
		logConfig.Output = "discard"
		if dataDir, err := config.DataDir(); err == nil && os.MkdirAll(dataDir, 0700) == nil {
			logConfig.Output = filepath.Join(dataDir, logFileName)
		}
	}

	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logger := logging.GetGlobalLogger()
	logger.Info("DeliHood starting", "version", Version)
	logger.LogConfigLoad(configManager.GetConfigPath(), "")
	return logger
}

// determineProfile loads the named profile and applies the base URL override
func determineProfile(configManager *config.Manager, args CommandLineArgs) (*interfaces.Profile, error) {
	profile, err := configManager.LoadProfile(args.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile '%s': %w", args.Profile, err)
	}

	if args.BaseURL != "" {
		profile.BaseURL = strings.TrimRight(args.BaseURL, "/")
		profile.RealtimeURL = config.RealtimeURLFor(profile.BaseURL)
	}

	if err := configManager.ValidateProfile(profile); err != nil {
		return nil, fmt.Errorf("invalid profile '%s': %w", profile.Name, err)
	}
	return profile, nil
}

// run wires the services and blocks until the terminal UI exits
func run(profile *interfaces.Profile, args CommandLineArgs) error {
	services, err := app.Build(profile, app.BuildOptions{})
	if err != nil {
		return fmt.Errorf("failed to initialize application components: %w", err)
	}
	defer services.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := app.NewConsoleController(ctx, services, args.Email)
	defer controller.Close()

	program := tea.NewProgram(controller,
		tea.WithAltScreen(),
		tea.WithContext(ctx))
	services.Bridge.Attach(program)
	defer services.Bridge.Detach()

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
