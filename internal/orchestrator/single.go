package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/agent"
	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/llm"
	"github.com/Dryxio/auto-re-agent/internal/logging"
	"github.com/Dryxio/auto-re-agent/internal/parity"
	"github.com/Dryxio/auto-re-agent/internal/store"
)

// Options bundles the shared dependencies of a reversal run.
type Options struct {
	Config  *config.Config
	Backend backend.Backend
	LLM     llm.Client
	// Store is optional; when set, results are recorded.
	Store *store.Store
	// Indexer is optional; class runs build it once and share it so each
	// function does not re-scan the source tree.
	Indexer *parity.SourceIndexer
	// OutputDir overrides the code output directory.
	OutputDir string
	// SkipParity disables the post-loop parity check.
	SkipParity bool
}

// ReverseSingle runs the full pipeline for one function: agent fix loop,
// code file output, optional parity triage, and progress recording.
func ReverseSingle(ctx context.Context, target core.FunctionTarget, opts Options) (*core.ReversalResult, error) {
	cfg := opts.Config

	result, err := agent.RunFixLoop(ctx, target, opts.Backend, opts.LLM, agent.LoopOptions{
		MaxRounds: cfg.Orchestrator.MaxReviewRounds,
		LogDir:    cfg.Output.LogDir,
	})
	if err != nil {
		return nil, err
	}

	if result.Code != "" {
		if path, werr := writeCodeFile(target, result.Code, opts.OutputDir, cfg.Output.ReportDir); werr != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("failed to write code file: %v", werr)
		} else {
			logging.Get(logging.CategoryOrchestrator).Info("code written to %s", path)
		}
	}

	if cfg.Parity.Enabled && !opts.SkipParity && result.Code != "" {
		if err := runParityCheck(ctx, target, result, opts); err != nil {
			logging.Get(logging.CategoryOrchestrator).Warn("parity check failed for %s: %v", target.Address, err)
		}
	}

	if opts.Store != nil {
		if err := opts.Store.RecordResult(result); err != nil {
			return nil, fmt.Errorf("record result: %w", err)
		}
	}

	return result, nil
}

func runParityCheck(ctx context.Context, target core.FunctionTarget, result *core.ReversalResult, opts Options) error {
	cfg := opts.Config

	indexer := opts.Indexer
	if indexer == nil {
		var err error
		indexer, err = parity.NewSourceIndexer(cfg.Profile.SourceRoot, cfg.Profile)
		if err != nil {
			return err
		}
	}
	engine, err := parity.NewEngine(indexer, cfg.Parity)
	if err != nil {
		return err
	}

	source := indexer.Find(target.ClassName, target.FunctionName)

	var ghidra *core.GhidraData
	if opts.Backend.Capabilities(ctx).HasDecompile {
		ghidra = parity.FetchGhidraData(ctx, opts.Backend, target.Address)
	}

	status, findings := engine.ScoreSingle(targetToHook(target), source, ghidra)
	result.ParityStatus = status
	result.ParityFindings = findings
	return nil
}

// writeCodeFile saves the generated code as <address>_<class>_<func>.cpp so
// users do not have to dig through round logs.
func writeCodeFile(target core.FunctionTarget, code, outputDir, reportDir string) (string, error) {
	dir := outputDir
	if dir == "" {
		dir = filepath.Join(reportDir, "code")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.cpp", target.Address, target.ClassName, target.FunctionName)
	name = strings.NewReplacer("::", "_", "/", "_").Replace(name)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func targetToHook(target core.FunctionTarget) core.HookEntry {
	return core.HookEntry{
		ClassPath: target.ClassName,
		FnName:    target.FunctionName,
		Address:   target.Address,
		Reversed:  true,
	}
}
