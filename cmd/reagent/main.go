package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded config, shared by subcommands
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "reagent",
	Short:   "Autonomous reverse engineering agent",
	Version: version,
	Long: `reagent drives an LLM through a reverse/check/fix loop against a
decompiler backend, and statically triages reversed functions for
parity against the original binary.

Start with "reagent init" to generate a config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init writes the config; nothing to load yet.
		if cmd.Name() == "init" {
			return initLogger()
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := initLogger(); err != nil {
			return err
		}
		debug := verbose || cfg.Logging.DebugMode
		if err := logging.Initialize(".", debug, cfg.Logging.Level); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func initLogger() error {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(reverseCmd)
	rootCmd.AddCommand(parityCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
