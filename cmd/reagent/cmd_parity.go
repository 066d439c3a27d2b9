package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/parity"
	"github.com/Dryxio/auto-re-agent/internal/report"
)

var (
	parityAddresses  []string
	parityFilter     string
	parityLimit      int
	paritySkipGhidra bool
	parityStrictExit bool
	parityOutput     string
	parityWatch      bool
)

var parityCmd = &cobra.Command{
	Use:   "parity",
	Short: "Run parity checks on hooked functions",
	Long: `Statically triages reversed functions against decompiler evidence
and flags likely-unfaithful reversals as yellow or red. Hooks come
from the profile's hooks CSV, or pass --address directly.`,
	RunE: runParity,
}

func init() {
	parityCmd.Flags().StringArrayVar(&parityAddresses, "address", nil, "Specific address (repeatable)")
	parityCmd.Flags().StringVar(&parityFilter, "filter", "", "Regex filter on symbol/class")
	parityCmd.Flags().IntVar(&parityLimit, "limit", 0, "Max functions to check")
	parityCmd.Flags().BoolVar(&paritySkipGhidra, "skip-ghidra", false, "Source-only checks")
	parityCmd.Flags().BoolVar(&parityStrictExit, "strict-exit", false, "Exit non-zero on red")
	parityCmd.Flags().StringVar(&parityOutput, "output", "", "Output JSON report path")
	parityCmd.Flags().BoolVar(&parityWatch, "watch", false, "Re-run on source tree changes")
}

func runParity(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfg.Profile.SourceRoot); err != nil {
		return fmt.Errorf("source root not found: %s", cfg.Profile.SourceRoot)
	}

	hooks, err := selectHooks(cfg.Profile)
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		fmt.Println("No hooks selected.")
		return nil
	}

	var be backend.Backend
	if !paritySkipGhidra {
		be, err = backend.New(cfg.Backend)
		if err != nil {
			logger.Warn("could not initialize backend, running source-only checks", zap.Error(err))
			be = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func() error {
		indexer, err := parity.NewSourceIndexer(cfg.Profile.SourceRoot, cfg.Profile)
		if err != nil {
			return fmt.Errorf("index sources: %w", err)
		}
		engine, err := parity.NewEngine(indexer, cfg.Parity)
		if err != nil {
			return err
		}
		results, err := engine.Run(ctx, hooks, be, nil)
		if err != nil {
			return err
		}

		for _, r := range results {
			fmt.Println(report.FormatParityResult(r))
		}
		fmt.Println()
		fmt.Println(report.ParitySummary(results))

		if parityOutput != "" {
			doc, err := report.ParityResultsToJSON(results)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(parityOutput), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(parityOutput, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Printf("Report written to %s\n", parityOutput)
		}

		if parityStrictExit {
			for _, r := range results {
				if r.Status == core.ParityRed {
					return fmt.Errorf("red parity findings present")
				}
			}
		}
		return nil
	}

	if !parityWatch {
		return runOnce()
	}

	debounce, err := time.ParseDuration(cfg.Parity.WatchDebounce)
	if err != nil {
		debounce = 500 * time.Millisecond
	}
	// Watch mode keeps going across failing runs; strict-exit only
	// applies to one-shot runs.
	if err := runOnce(); err != nil {
		logger.Warn("parity run failed", zap.Error(err))
	}
	fmt.Printf("Watching %s for changes...\n", cfg.Profile.SourceRoot)
	return parity.Watch(ctx, cfg.Profile.SourceRoot, debounce, func() error {
		if err := runOnce(); err != nil {
			logger.Warn("parity run failed", zap.Error(err))
		}
		return nil
	})
}

// selectHooks loads the hooks CSV and applies --address, --filter and
// --limit. Addresses missing from the CSV get synthesized entries so
// they can still be triaged.
func selectHooks(profile config.ProfileConfig) ([]core.HookEntry, error) {
	var hooks []core.HookEntry
	if profile.HooksCSV != "" {
		if _, err := os.Stat(profile.HooksCSV); err == nil {
			var rerr error
			hooks, rerr = parity.ReadHooks(profile.HooksCSV, false)
			if rerr != nil {
				return nil, fmt.Errorf("read hooks: %w", rerr)
			}
		} else {
			logger.Warn("hooks CSV not found", zap.String("path", profile.HooksCSV))
		}
	}

	if len(parityAddresses) > 0 {
		wanted := make(map[string]bool, len(parityAddresses))
		for _, a := range parityAddresses {
			wanted[core.NormalizeAddress(a)] = true
		}
		var matched []core.HookEntry
		found := make(map[string]bool)
		for _, h := range hooks {
			key := core.NormalizeAddress(h.Address)
			if wanted[key] {
				matched = append(matched, h)
				found[key] = true
			}
		}
		for _, a := range parityAddresses {
			key := core.NormalizeAddress(a)
			if !found[key] {
				matched = append(matched, core.HookEntry{Address: a, Reversed: true})
				found[key] = true
			}
		}
		hooks = matched
	} else if len(hooks) == 0 {
		return nil, fmt.Errorf("no hooks loaded; provide --address or configure hooks_csv in the profile")
	}

	if parityFilter != "" {
		rx, err := regexp.Compile(parityFilter)
		if err != nil {
			return nil, fmt.Errorf("bad --filter: %w", err)
		}
		var filtered []core.HookEntry
		for _, h := range hooks {
			if rx.MatchString(h.Symbol()) || rx.MatchString(h.ClassPath) {
				filtered = append(filtered, h)
			}
		}
		hooks = filtered
	}

	if parityLimit > 0 && len(hooks) > parityLimit {
		hooks = hooks[:parityLimit]
	}
	return hooks, nil
}
