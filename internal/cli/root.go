package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthost/chatlog/internal/config"
	"github.com/agenthost/chatlog/internal/logger"
)

const version = "0.1.0"

// ErrPartialFailure marks a reconciliation pass that landed some but
// not all events. main maps it to exit code 2.
var ErrPartialFailure = errors.New("partial failure")

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlog",
	Short: "Chatlog - terminal session capture and conversation pipeline",
	Long: `Chatlog records interactive terminal sessions with byte and timing
fidelity, classifies the captured output into typed conversation events
and delivers them to a QuestDB time-series table, live or after the
session, with an idempotent verify/repair pass.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chatlog/chatlog.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads and validates the configuration, applying the
// global log-level flag on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging initializes the global logger from the config. Console
// output may be forced on for non-interactive commands.
func setupLogging(cfg *config.Config, console bool) (*logger.Logger, error) {
	l, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console || console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return l, nil
}
