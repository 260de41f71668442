package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apoxy-dev/shorty/config"
	"github.com/apoxy-dev/shorty/pkg/log"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shorty",
	Short: "shorty is a tiny self-hosted URL shortener.",
	Long: `shorty stores long URLs under short keys and redirects /<key> to them.

Start the server with 'shorty serve' and open http://localhost:8080 in a browser.
`,
	DisableAutoGenTag: true,
}

// ExecuteContext executes root command with context.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.ConfigFile, "config", "", "Config file (default is $HOME/.shorty/config.yaml).")
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Enable verbose output.")
	rootCmd.PersistentFlags().BoolVar(&config.JSONLogs, "json-logs", false, "Log in JSON format.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error). Overrides --verbose.")
}

var logLevel string

// loadConfig reads the configuration and sets up logging according to it.
// Logs go to stderr so command output on stdout stays parseable.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	if logLevel != "" {
		if level, err = log.ParseLevel(logLevel); err != nil {
			return nil, err
		}
	}
	if err := log.Init(log.WithLevel(level), log.WithJSON(cfg.JSONLogs), log.WithOutput(os.Stderr)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log.Debugf("Loaded config from %s", config.ConfigFile)

	return cfg, nil
}
