package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/logging"
	"github.com/Dryxio/auto-re-agent/internal/parity"
)

// ReverseClass works through a class's unreversed functions one at a time
// until the limit is hit or no candidates remain. Already-attempted
// functions are skipped via the store. maxFunctions of zero uses the
// configured per-class limit.
func ReverseClass(ctx context.Context, className string, maxFunctions int, opts Options) ([]*core.ReversalResult, error) {
	cfg := opts.Config

	limit := maxFunctions
	if limit <= 0 {
		limit = cfg.Orchestrator.MaxFunctionsPerClass
	}

	// Build the indexer once for the whole class run.
	if opts.Indexer == nil && cfg.Parity.Enabled {
		if _, err := os.Stat(cfg.Profile.SourceRoot); err == nil {
			indexer, ierr := parity.NewSourceIndexer(cfg.Profile.SourceRoot, cfg.Profile)
			if ierr != nil {
				return nil, ierr
			}
			opts.Indexer = indexer
		} else {
			logging.Get(logging.CategoryOrchestrator).Warn("source root %s not found, skipping index", cfg.Profile.SourceRoot)
		}
	}

	var results []*core.ReversalResult
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		target, err := PickNext(ctx, className, opts.Backend, opts.Store)
		if err != nil {
			return results, fmt.Errorf("pick next: %w", err)
		}
		if target == nil {
			fmt.Fprintf(os.Stderr, "No more candidates in %s.\n", className)
			break
		}

		fmt.Fprintf(os.Stderr, "[%d/%d] Reversing %s (%s)...\n", i, limit, target.Symbol(), target.Address)

		result, err := ReverseSingle(ctx, *target, opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		status := "FAIL"
		if result.Success {
			status = "PASS"
		}
		fmt.Fprintf(os.Stderr, "  -> %s (rounds: %d)\n", status, result.RoundsUsed)
	}

	return results, nil
}
