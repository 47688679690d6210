package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jvaguiar05/smart-park-system/pkg/config"
	"github.com/jvaguiar05/smart-park-system/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

const programName = "smartpark"

var (
	globalFlags = struct {
		configFile string
		debug      bool
	}{}

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "SmartPark access-control and slot status engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadFile(globalFlags.configFile, Version)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err = logging.NewLogger(cfg.IsProduction(), globalFlags.debug)
			if err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", config.DefaultConfigFile, "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		seedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
