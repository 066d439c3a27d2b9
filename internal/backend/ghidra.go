package backend

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/cpptext"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

var (
	callersCalleesRe = regexp.MustCompile(`Callers:\s*(\d+)\s*\|\s*Callees:\s*(\d+)`)
	structSizeRe     = regexp.MustCompile(`Size:\s*(?:0x)?([0-9a-fA-F]+)`)
	structFieldRe    = regexp.MustCompile(`^\s*\+?\s*0x([0-9a-fA-F]+)\s+(\S+)\s+(\S+)`)
	enumValueRe      = regexp.MustCompile(`^\s*(\w+)\s*=\s*(-?\d+)`)
	callerCountRe    = regexp.MustCompile(`\((\d+)\s+callers?\)`)
)

// Patterns in stderr that indicate a sub-command itself is unrecognised,
// as opposed to a valid sub-command failing on bad input.
var unknownCmdPatterns = []string{
	"unknown command",
	"unrecognized command",
	"invalid choice",
	"no such sub-command",
	"not a command",
}

// GhidraBridge shells out to a decompiler CLI exposing sub-commands such
// as decompile, xrefs-to, xrefs-from, source-struct, source-enum, asm,
// search, unimplemented, and remaining.
type GhidraBridge struct {
	runner commandRunner

	mu   sync.Mutex
	caps *Capabilities
}

// NewGhidraBridge creates a bridge for the given CLI path and per-call
// timeout in seconds.
func NewGhidraBridge(cliPath string, timeoutS int) *GhidraBridge {
	if timeoutS <= 0 {
		timeoutS = 45
	}
	return &GhidraBridge{
		runner: &execRunner{binary: cliPath, timeout: time.Duration(timeoutS) * time.Second},
	}
}

func (g *GhidraBridge) run(ctx context.Context, args ...string) (string, error) {
	logging.BackendDebug("ghidra %s", strings.Join(args, " "))
	out, ok := g.runner.Run(ctx, args...)
	if !ok {
		return "", fmt.Errorf("ghidra CLI failed: %s: %s", strings.Join(args, " "), strings.TrimSpace(out))
	}
	return out, nil
}

func (g *GhidraBridge) tryRun(ctx context.Context, args ...string) (string, bool) {
	out, ok := g.runner.Run(ctx, args...)
	return out, ok
}

// Capabilities probes the CLI lazily to detect which sub-commands exist.
func (g *GhidraBridge) Capabilities(ctx context.Context) Capabilities {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.caps == nil {
		caps := g.probeCapabilities(ctx)
		g.caps = &caps
	}
	return *g.caps
}

// subcmdExists reports whether the CLI recognises subcmd. A sub-command is
// considered available when it exits 0, or when it exits non-zero without
// an "unknown command"-style stderr message. That covers CLIs that return
// non-zero for --help while still recognising the sub-command.
func (g *GhidraBridge) subcmdExists(ctx context.Context, subcmd string) bool {
	rc, _, stderr := g.runner.RunSplit(ctx, subcmd, "--help")
	if rc == 0 {
		return true
	}
	if containsUnknownCmd(stderr) {
		return false
	}
	// Non-zero but no "unknown command". Double-check with a dummy call.
	rc2, _, stderr2 := g.runner.RunSplit(ctx, subcmd, "__probe__")
	if rc2 == 0 {
		return true
	}
	return !containsUnknownCmd(stderr2)
}

func containsUnknownCmd(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, pat := range unknownCmdPatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

func (g *GhidraBridge) probeCapabilities(ctx context.Context) Capabilities {
	caps := Capabilities{HasDecompile: true}
	caps.HasAsm = g.subcmdExists(ctx, "asm")
	caps.HasStructs = g.subcmdExists(ctx, "source-struct")
	caps.HasXrefs = g.subcmdExists(ctx, "xrefs-from")
	caps.HasSearch = g.subcmdExists(ctx, "search")
	caps.HasEnums = g.subcmdExists(ctx, "source-enum")
	return caps
}

// Decompile decompiles a function by address or symbol name.
func (g *GhidraBridge) Decompile(ctx context.Context, target string) (*core.DecompileResult, error) {
	raw, err := g.run(ctx, "decompile", target)
	if err != nil {
		return nil, err
	}
	return parseDecompile(target, raw), nil
}

func parseDecompile(target, raw string) *core.DecompileResult {
	callers, callees := -1, -1
	if m := callersCalleesRe.FindStringSubmatch(raw); m != nil {
		callers, _ = strconv.Atoi(m[1])
		callees, _ = strconv.Atoi(m[2])
	}

	// Take the name from the first line that looks like a signature.
	name := target
	for _, line := range strings.Split(raw, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "//") || strings.HasPrefix(stripped, "Callers") {
			continue
		}
		if i := strings.Index(stripped, "("); i >= 0 {
			head := stripped[:i]
			if fields := strings.Fields(head); len(fields) > 0 {
				name = fields[len(fields)-1]
			}
		}
		break
	}

	return &core.DecompileResult{
		Address:    target,
		Name:       name,
		Decompiled: raw,
		RawOutput:  raw,
		Callers:    callers,
		Callees:    callees,
	}
}

// XrefsTo parses cross-references to a function.
func (g *GhidraBridge) XrefsTo(ctx context.Context, target string) ([]core.XRef, error) {
	raw, err := g.run(ctx, "xrefs-to", target)
	if err != nil {
		return nil, err
	}
	return parseXrefs(raw, "CALL"), nil
}

// XrefsFrom parses cross-references from a function.
func (g *GhidraBridge) XrefsFrom(ctx context.Context, target string) ([]core.XRef, error) {
	raw, err := g.run(ctx, "xrefs-from", target)
	if err != nil {
		return nil, err
	}
	return parseXrefs(raw, "CALL"), nil
}

func parseXrefs(raw, refType string) []core.XRef {
	var results []core.XRef
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "=") || strings.HasPrefix(line, "//") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		x := core.XRef{Address: parts[0], RefType: refType}
		if len(parts) > 1 {
			x.Name = strings.TrimSpace(parts[1])
		}
		results = append(results, x)
	}
	return results
}

// GetStruct retrieves a struct definition by name.
func (g *GhidraBridge) GetStruct(ctx context.Context, name string) (*core.StructDef, error) {
	raw, ok := g.tryRun(ctx, "source-struct", name)
	if !ok {
		return nil, nil
	}
	return parseStruct(name, raw), nil
}

func parseStruct(name, raw string) *core.StructDef {
	def := &core.StructDef{Name: name}
	if m := structSizeRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.ParseInt(m[1], 16, 64); err == nil {
			def.Size = int(n)
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		if m := structFieldRe.FindStringSubmatch(line); m != nil {
			offset, _ := strconv.ParseInt(m[1], 16, 64)
			def.Fields = append(def.Fields, core.StructField{
				Name:    m[3],
				Offset:  int(offset),
				TypeStr: m[2],
			})
		}
	}
	return def
}

// GetEnum retrieves an enum definition by name.
func (g *GhidraBridge) GetEnum(ctx context.Context, name string) (*core.EnumDef, error) {
	raw, ok := g.tryRun(ctx, "source-enum", name)
	if !ok {
		return nil, nil
	}
	def := &core.EnumDef{Name: name}
	for _, line := range strings.Split(raw, "\n") {
		if m := enumValueRe.FindStringSubmatch(line); m != nil {
			v, _ := strconv.Atoi(m[2])
			def.Values = append(def.Values, core.EnumValue{Name: m[1], Value: v})
		}
	}
	return def, nil
}

// GetAsm retrieves disassembly for a function.
func (g *GhidraBridge) GetAsm(ctx context.Context, target string) (*core.AsmResult, error) {
	raw, ok := g.tryRun(ctx, "asm", target)
	if !ok {
		return nil, nil
	}
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	callCount := 0
	for _, ln := range lines {
		if strings.Contains(strings.ToUpper(ln), "CALL") {
			callCount++
		}
	}
	return &core.AsmResult{
		Address:          target,
		Instructions:     raw,
		InstructionCount: len(lines),
		CallCount:        callCount,
		HasFPSensitive:   cpptext.HasFPAsm(raw),
	}, nil
}

// Search finds functions matching a pattern.
func (g *GhidraBridge) Search(ctx context.Context, pattern string) ([]core.FunctionEntry, error) {
	raw, err := g.run(ctx, "search", pattern)
	if err != nil {
		return nil, err
	}
	return parseFunctionList(raw), nil
}

// Unimplemented lists unimplemented functions, optionally filtered.
func (g *GhidraBridge) Unimplemented(ctx context.Context, filterPattern string) ([]core.FunctionEntry, error) {
	args := []string{"unimplemented"}
	if filterPattern != "" {
		args = append(args, filterPattern)
	}
	raw, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseFunctionList(raw), nil
}

// Remaining lists remaining stub functions, optionally filtered by class.
func (g *GhidraBridge) Remaining(ctx context.Context, className string) ([]core.FunctionEntry, error) {
	args := []string{"remaining"}
	if className != "" {
		args = append(args, className)
	}
	raw, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseFunctionList(raw), nil
}

// parseFunctionList parses function list output. Handles:
//
//	0xADDRESS  ClassName::FunctionName
//	0xADDRESS  FunctionName  (N callers)
//
// and free-form lines with at least an address token.
func parseFunctionList(raw string) []core.FunctionEntry {
	var results []core.FunctionEntry
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "=") ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, "//") {
			continue
		}

		parts := strings.Fields(line)
		entry := core.FunctionEntry{Address: parts[0]}
		if len(parts) > 1 {
			entry.Name = parts[1]
		}
		if i := strings.LastIndex(entry.Name, "::"); i >= 0 {
			entry.ClassName = entry.Name[:i]
			entry.Name = entry.Name[i+2:]
		}
		if m := callerCountRe.FindStringSubmatch(line); m != nil {
			entry.CallerCount, _ = strconv.Atoi(m[1])
		}
		results = append(results, entry)
	}
	return results
}
