package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/llm"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

// LoopOptions configures the fix loop.
type LoopOptions struct {
	// MaxRounds bounds reverse+fix iterations. Zero means one round.
	MaxRounds int
	// CheckerLLM lets the checker run on a different provider. Falls back
	// to the reverser's client when nil.
	CheckerLLM llm.Client
	// LogDir receives per-round prompt/response JSON logs when set.
	LogDir string
}

// RunFixLoop drives reverser -> checker -> fix until the checker passes or
// rounds run out. The returned result has Success=false when rounds are
// exhausted; the last attempt's code is still included.
func RunFixLoop(ctx context.Context, target core.FunctionTarget, be backend.Backend, client llm.Client, opts LoopOptions) (*core.ReversalResult, error) {
	maxRounds := opts.MaxRounds
	if maxRounds < 1 {
		maxRounds = 1
	}
	checkerLLM := opts.CheckerLLM
	if checkerLLM == nil {
		checkerLLM = client
	}

	reverser := NewReverser(client, be)
	checker := NewChecker(checkerLLM, be)

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	var (
		code        string
		lastVerdict *core.CheckerVerdict
	)

	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		timestamp := time.Now().Format("20060102-150405")

		var tag string
		var err error
		phase := "reverse"
		if round == 1 {
			code, tag, err = reverser.Reverse(ctx, target)
		} else {
			phase = "fix"
			code, tag, err = reverser.Fix(ctx, target, lastVerdict)
		}
		if err != nil {
			return nil, fmt.Errorf("round %d %s: %w", round, phase, err)
		}
		_ = tag

		writeRoundLog(opts.LogDir, fmt.Sprintf("round%d-%s-reverser.json", round, timestamp), map[string]any{
			"round":       round,
			"timestamp":   timestamp,
			"phase":       phase,
			"target":      target.Symbol(),
			"address":     target.Address,
			"prompt":      reverser.LastPrompt,
			"response":    reverser.LastResponse,
			"code_length": len(code),
		})

		verdict, err := checker.Check(ctx, code, target)
		if err != nil {
			return nil, fmt.Errorf("round %d check: %w", round, err)
		}
		lastVerdict = verdict

		writeRoundLog(opts.LogDir, fmt.Sprintf("round%d-%s-checker.json", round, timestamp), map[string]any{
			"round":            round,
			"timestamp":        timestamp,
			"phase":            "check",
			"prompt":           checker.LastPrompt,
			"response":         checker.LastResponse,
			"verdict":          string(verdict.Verdict),
			"summary":          verdict.Summary,
			"issues":           verdict.Issues,
			"fix_instructions": verdict.FixInstructions,
		})

		if verdict.Verdict == core.VerdictPass {
			logging.Agent("[loop] %s passed in round %d", target.Symbol(), round)
			return &core.ReversalResult{
				Target:         target,
				Code:           code,
				CheckerVerdict: verdict,
				RoundsUsed:     round,
				Success:        true,
			}, nil
		}
	}

	logging.Agent("[loop] %s exhausted %d rounds without a pass", target.Symbol(), maxRounds)
	return &core.ReversalResult{
		Target:         target,
		Code:           code,
		CheckerVerdict: lastVerdict,
		RoundsUsed:     maxRounds,
		Success:        false,
	}, nil
}

func writeRoundLog(dir, name string, entry map[string]any) {
	if dir == "" {
		return
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		logging.Agent("[loop] failed to write round log %s: %v", name, err)
	}
}
