package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/llm"
	"github.com/Dryxio/auto-re-agent/internal/orchestrator"
	"github.com/Dryxio/auto-re-agent/internal/report"
	"github.com/Dryxio/auto-re-agent/internal/store"
)

var (
	reverseAddress    string
	reverseClass      string
	reverseMaxFuncs   int
	reverseMaxRounds  int
	reverseDryRun     bool
	reverseSkipParity bool
)

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Reverse engineer functions",
	Long: `Runs the reverse/check/fix loop for a single function (--address)
or walks a class's unimplemented functions in caller-count order
(--class). Passing results are parity-checked and recorded in the
progress database.`,
	RunE: runReverse,
}

func init() {
	reverseCmd.Flags().StringVar(&reverseAddress, "address", "", "Single function address to reverse")
	reverseCmd.Flags().StringVar(&reverseClass, "class", "", "Class name for class-level reversal")
	reverseCmd.Flags().IntVar(&reverseMaxFuncs, "max-functions", 0, "Max functions per class")
	reverseCmd.Flags().IntVar(&reverseMaxRounds, "max-rounds", 0, "Max review rounds per function")
	reverseCmd.Flags().BoolVar(&reverseDryRun, "dry-run", false, "Show plan without executing")
	reverseCmd.Flags().BoolVar(&reverseSkipParity, "skip-parity", false, "Skip parity check after PASS")
}

func runReverse(cmd *cobra.Command, args []string) error {
	if reverseMaxRounds > 0 {
		cfg.Orchestrator.MaxReviewRounds = reverseMaxRounds
	}

	if reverseDryRun {
		return reverseDryRunPlan()
	}
	if reverseAddress == "" && reverseClass == "" {
		return fmt.Errorf("specify --address or --class")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	be, err := backend.New(cfg.Backend)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	st, err := store.Open(cfg.Output.ProgressDB)
	if err != nil {
		return fmt.Errorf("open progress db: %w", err)
	}
	defer st.Close()

	opts := orchestrator.Options{
		Config:     cfg,
		Backend:    be,
		LLM:        client,
		Store:      st,
		SkipParity: reverseSkipParity,
	}

	if reverseAddress != "" {
		target := resolveTarget(ctx, be, reverseAddress, reverseClass)
		result, err := orchestrator.ReverseSingle(ctx, target, opts)
		if err != nil {
			return err
		}
		fmt.Println(report.FormatResult(result, verbose))
		if !result.Success {
			return fmt.Errorf("reversal did not pass review")
		}
		return nil
	}

	results, err := orchestrator.ReverseClass(ctx, reverseClass, reverseMaxFuncs, opts)
	if err != nil {
		return err
	}
	passed := 0
	for _, r := range results {
		fmt.Println(report.FormatResult(r, false))
		fmt.Println()
		if r.Success {
			passed++
		}
	}
	fmt.Printf("Results: %d/%d passed\n", passed, len(results))
	if passed != len(results) {
		return fmt.Errorf("%d reversal(s) did not pass review", len(results)-passed)
	}
	return nil
}

// resolveTarget fills class and function names from the backend's symbol
// for the address, best effort.
func resolveTarget(ctx context.Context, be backend.Backend, address, className string) core.FunctionTarget {
	target := core.FunctionTarget{Address: address, ClassName: className}
	if className != "" {
		return target
	}
	dec, err := be.Decompile(ctx, address)
	if err != nil {
		logger.Debug("could not resolve symbol for address",
			zap.String("address", address), zap.Error(err))
		return target
	}
	if idx := strings.LastIndex(dec.Name, "::"); idx >= 0 {
		target.ClassName = dec.Name[:idx]
		target.FunctionName = dec.Name[idx+2:]
	} else {
		target.FunctionName = dec.Name
	}
	return target
}

func reverseDryRunPlan() error {
	fmt.Println("Dry run mode, no LLM calls will be made.")
	fmt.Println()
	switch {
	case reverseAddress != "":
		fmt.Printf("Would reverse: %s\n", reverseAddress)
		if reverseClass != "" {
			fmt.Printf("  Class: %s\n", reverseClass)
		}
	case reverseClass != "":
		maxFn := reverseMaxFuncs
		if maxFn <= 0 {
			maxFn = cfg.Orchestrator.MaxFunctionsPerClass
		}
		fmt.Printf("Would reverse functions in class: %s\n", reverseClass)
		fmt.Printf("  Max functions: %d\n", maxFn)
		fmt.Printf("  Max rounds per function: %d\n", cfg.Orchestrator.MaxReviewRounds)
	default:
		return fmt.Errorf("specify --address or --class")
	}
	return nil
}
