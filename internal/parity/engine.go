package parity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/cpptext"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

// Result is the parity outcome for one hook.
type Result struct {
	Hook     core.HookEntry
	Status   core.ParityStatus
	Findings []core.Finding
	Source   *core.SourceMatch
	Ghidra   *core.GhidraData
}

// Engine runs the parity signals over a hook list. Construct once per run;
// the indexer and rule files are loaded up front.
type Engine struct {
	indexer       *SourceIndexer
	cfg           config.ParityConfig
	stubMarkers   []string
	manualChecks  map[string]core.ManualCheckEntry
	semanticRules []core.SemanticRule
	cache         *Cache
}

// NewEngine loads semantic rules and manual checks per the config and wraps
// the given indexer.
func NewEngine(indexer *SourceIndexer, cfg config.ParityConfig) (*Engine, error) {
	e := &Engine{
		indexer:      indexer,
		cfg:          cfg,
		stubMarkers:  indexer.stubMarkers,
		manualChecks: map[string]core.ManualCheckEntry{},
	}

	if cfg.ManualChecksFile != "" {
		mc, err := ReadManualChecks(cfg.ManualChecksFile)
		if err != nil {
			return nil, fmt.Errorf("read manual checks: %w", err)
		}
		e.manualChecks = mc
	}
	if cfg.SemanticRulesFile != "" {
		rules, err := ReadSemanticRules(cfg.SemanticRulesFile)
		if err != nil {
			return nil, fmt.Errorf("read semantic rules: %w", err)
		}
		e.semanticRules = rules
	}
	if cfg.CacheDir != "" {
		cache, err := NewCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	return e, nil
}

// ScoreSingle runs every signal plus semantic rules on one function.
func (e *Engine) ScoreSingle(entry core.HookEntry, source *core.SourceMatch, ghidra *core.GhidraData) (core.ParityStatus, []core.Finding) {
	inlineSkip := e.cfg.InlineWrapperAutoskip && source != nil && source.IsInlineInternalForwarder

	in := signalInput{
		source:            source,
		ghidra:            ghidra,
		inlineSkip:        inlineSkip,
		stubMarkers:       e.stubMarkers,
		callCountWarnDiff: e.cfg.CallCountWarnDiff,
	}

	var findings []core.Finding
	for _, sig := range allSignals {
		if f := sig(in); f != nil {
			findings = append(findings, *f)
		}
	}

	if source != nil && len(e.semanticRules) > 0 {
		findings = append(findings, ApplySemanticRules(entry, source.BodyNoComments, e.semanticRules)...)
	}

	if entry.Reversed && source == nil {
		hasRed := false
		for _, f := range findings {
			if f.Level == core.LevelRed {
				hasRed = true
				break
			}
		}
		if !hasRed {
			findings = append(findings, core.Finding{Level: core.LevelRed, Reason: "Reversed hook has no source body"})
		}
	}

	return Score(findings), findings
}

// FetchGhidraData aggregates decompile and ASM evidence for one address,
// skipping queries the backend does not support. Individual query failures
// are recorded in the result rather than aborting.
func FetchGhidraData(ctx context.Context, be backend.Backend, address string) *core.GhidraData {
	data := &core.GhidraData{
		ResolvedAddress: address,
		Callers:         -1,
		Callees:         -1,
	}
	caps := be.Capabilities(ctx)

	dec, err := be.Decompile(ctx, address)
	if err != nil {
		data.DecompileError = err.Error()
	} else {
		data.DecompileOK = true
		data.Callers = dec.Callers
		data.Callees = dec.Callees
		data.DecompileHasNaN = strings.Contains(strings.ToUpper(dec.Decompiled), "NAN")
	}

	if caps.HasAsm {
		asm, err := be.GetAsm(ctx, address)
		if err != nil {
			data.AsmError = err.Error()
		} else if asm != nil {
			data.AsmOK = true
			data.AsmInstructionCount = asm.InstructionCount
			data.AsmCallCount = asm.CallCount
			data.AsmHasFPSensitive = cpptext.HasFPAsm(asm.Instructions)
		}
	}

	return data
}

// fetchGhidraCached consults the disk cache before the backend. Only
// successful decompiles are cached; failures are retried next run.
func (e *Engine) fetchGhidraCached(ctx context.Context, be backend.Backend, address string) *core.GhidraData {
	if e.cache != nil {
		if raw, ok := e.cache.Get("ghidra", address); ok {
			var data core.GhidraData
			if err := json.Unmarshal([]byte(raw), &data); err == nil {
				return &data
			}
		}
	}
	data := FetchGhidraData(ctx, be, address)
	if e.cache != nil && data.DecompileOK {
		if raw, err := json.Marshal(data); err == nil {
			if err := e.cache.Put("ghidra", address, string(raw)); err != nil {
				logging.Parity("[engine] cache write failed for %s: %v", address, err)
			}
		}
	}
	return data
}

// Run scores every hook. When a backend is given, Ghidra data is fetched
// concurrently first, bounded by FetchConcurrency; entries in prefetched
// (keyed by normalized address) take priority over live fetching. Results
// come back in hook order.
func (e *Engine) Run(ctx context.Context, hooks []core.HookEntry, be backend.Backend, prefetched map[string]*core.GhidraData) ([]Result, error) {
	ghidraByAddr := make(map[string]*core.GhidraData, len(hooks))
	for k, v := range prefetched {
		ghidraByAddr[core.NormalizeAddress(k)] = v
	}

	if be != nil {
		limit := e.cfg.FetchConcurrency
		if limit < 1 {
			limit = 1
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		var mu sync.Mutex
		for _, entry := range hooks {
			addrKey := core.NormalizeAddress(entry.Address)
			mu.Lock()
			_, have := ghidraByAddr[addrKey]
			mu.Unlock()
			if have {
				continue
			}
			address := entry.Address
			g.Go(func() error {
				data := e.fetchGhidraCached(gctx, be, address)
				mu.Lock()
				ghidraByAddr[core.NormalizeAddress(address)] = data
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(hooks))
	for _, entry := range hooks {
		addrKey := core.NormalizeAddress(entry.Address)

		if mc, ok := e.manualChecks[addrKey]; ok {
			results = append(results, Result{
				Hook:   entry,
				Status: core.ParityGreen,
				Findings: []core.Finding{{
					Level:  core.LevelInfo,
					Reason: "Manual check override: " + mc.Note,
				}},
			})
			continue
		}

		// Name lookup first, then the hook-address index.
		var source *core.SourceMatch
		if entry.FnName != "" {
			source = e.indexer.Find(entry.ClassName(), entry.FnName)
		}
		if source == nil {
			source = e.indexer.FindByAddress(entry.Address)
		}

		ghidra := ghidraByAddr[addrKey]

		status, findings := e.ScoreSingle(entry, source, ghidra)
		results = append(results, Result{
			Hook:     entry,
			Status:   status,
			Findings: findings,
			Source:   source,
			Ghidra:   ghidra,
		})
	}

	logging.Parity("[engine] scored %d hooks", len(results))
	return results, nil
}
