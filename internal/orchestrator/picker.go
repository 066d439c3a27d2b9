// Package orchestrator drives end-to-end reversal runs: candidate picking,
// the agent fix loop, parity triage, and progress recording.
package orchestrator

import (
	"context"
	"sort"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/logging"
	"github.com/Dryxio/auto-re-agent/internal/store"
)

// PickNext selects the next function to reverse in a class: the remaining
// list first, the unimplemented list as fallback, minus anything already
// attempted, ranked by caller count descending. Returns nil when nothing
// is left.
func PickNext(ctx context.Context, className string, be backend.Backend, st *store.Store) (*core.FunctionTarget, error) {
	remaining, err := be.Remaining(ctx, className)
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Debug("remaining query failed: %v", err)
		remaining = nil
	}
	if len(remaining) == 0 {
		remaining, err = be.Unimplemented(ctx, className)
		if err != nil {
			return nil, err
		}
	}

	candidates := remaining[:0]
	for _, f := range remaining {
		if st != nil {
			attempted, err := st.IsAttempted(f.Address)
			if err != nil {
				return nil, err
			}
			if attempted {
				continue
			}
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CallerCount > candidates[j].CallerCount
	})
	best := candidates[0]

	cls := best.ClassName
	if cls == "" {
		cls = className
	}
	return &core.FunctionTarget{
		Address:      best.Address,
		ClassName:    cls,
		FunctionName: best.Name,
		CallerCount:  best.CallerCount,
	}, nil
}
