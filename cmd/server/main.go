package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/evolve/internal/config"
	"github.com/copyleftdev/evolve/internal/logging"
)

var (
	logLevel string
	cfg      *config.Config
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Population-based evolution engine",
	Long: `evolve runs a generational evolutionary search over event-to-timeslot
assignment problems, either once from the command line or as a service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		base, err := logging.NewLogger(&logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = base.WithFields(map[string]interface{}{
			"service": "evolve",
			"command": cmd.Name(),
		})
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.AddCommand(serveCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
