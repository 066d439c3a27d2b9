package parity

import (
	"fmt"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

// signalInput carries everything a signal may inspect.
type signalInput struct {
	source            *core.SourceMatch
	ghidra            *core.GhidraData
	inlineSkip        bool
	stubMarkers       []string
	callCountWarnDiff int
}

// signalFn inspects one function and returns a finding or nil.
type signalFn func(in signalInput) *core.Finding

var allSignals = []signalFn{
	checkMissingSource,
	checkStubMarkers,
	checkTrivialStub,
	checkLargeAsmTinySource,
	checkPluginCallHeavy,
	checkShortBody,
	checkLowCallCount,
	checkFPSensitivity,
	checkCallCountMismatch,
	checkNaNLogic,
	checkInlineWrapper,
}

func checkMissingSource(in signalInput) *core.Finding {
	if in.source == nil {
		return &core.Finding{Level: core.LevelRed, Reason: "Source function body not found"}
	}
	return nil
}

func checkStubMarkers(in signalInput) *core.Finding {
	if in.source != nil && in.source.HasStubMarker {
		return &core.Finding{
			Level:  core.LevelRed,
			Reason: fmt.Sprintf("Source contains stub marker (%s)", strings.Join(in.stubMarkers, ", ")),
		}
	}
	return nil
}

// likelyTrivial: short, no control flow, at most one real call.
func likelyTrivial(s *core.SourceMatch) bool {
	return s.BodyLines <= 14 && s.NonPluginCallCount <= 1 && s.ControlFlowCount == 0
}

func checkTrivialStub(in signalInput) *core.Finding {
	if in.source == nil || in.source.PluginCallCount == 0 {
		return nil
	}
	if likelyTrivial(in.source) {
		return &core.Finding{Level: core.LevelRed, Reason: "Source appears to be a trivial plugin::Call* stub"}
	}
	return nil
}

func checkLargeAsmTinySource(in signalInput) *core.Finding {
	if in.source == nil || in.ghidra == nil || !in.ghidra.AsmOK || in.inlineSkip {
		return nil
	}
	if in.ghidra.AsmInstructionCount >= 80 && in.source.BodyLines <= 12 {
		return &core.Finding{Level: core.LevelRed, Reason: "Large ASM body but tiny source body, likely mismatch/stub"}
	}
	return nil
}

func checkPluginCallHeavy(in signalInput) *core.Finding {
	if in.source == nil || in.source.PluginCallCount == 0 {
		return nil
	}
	threshold := in.source.NonPluginCallCount
	if threshold < 2 {
		threshold = 2
	}
	if in.source.PluginCallCount >= threshold && !likelyTrivial(in.source) {
		return &core.Finding{
			Level: core.LevelYellow,
			Reason: fmt.Sprintf("Source relies heavily on plugin::Call* (%d plugin vs %d non-plugin calls)",
				in.source.PluginCallCount, in.source.NonPluginCallCount),
		}
	}
	return nil
}

func checkShortBody(in signalInput) *core.Finding {
	if in.source == nil || in.inlineSkip {
		return nil
	}
	if in.source.BodyLines < 6 {
		return &core.Finding{
			Level:  core.LevelYellow,
			Reason: fmt.Sprintf("Very short body (%d lines), inspect manually", in.source.BodyLines),
		}
	}
	return nil
}

func checkLowCallCount(in signalInput) *core.Finding {
	if in.source == nil || in.ghidra == nil || !in.ghidra.DecompileOK || in.inlineSkip {
		return nil
	}
	if in.ghidra.Callees >= 6 && in.source.CallCount <= 1 {
		return &core.Finding{
			Level: core.LevelYellow,
			Reason: fmt.Sprintf("Source call count is very low (%d) vs Ghidra callees (%d)",
				in.source.CallCount, in.ghidra.Callees),
		}
	}
	return nil
}

func checkFPSensitivity(in signalInput) *core.Finding {
	if in.source == nil || in.ghidra == nil || !in.ghidra.AsmOK || in.inlineSkip {
		return nil
	}
	if in.ghidra.AsmHasFPSensitive && !in.source.HasFPToken {
		return &core.Finding{
			Level:  core.LevelYellow,
			Reason: "ASM contains floating-point sensitive ops but source has no obvious math tokens",
		}
	}
	return nil
}

func checkCallCountMismatch(in signalInput) *core.Finding {
	if in.source == nil || in.ghidra == nil || !in.ghidra.AsmOK || in.inlineSkip {
		return nil
	}
	diff := in.ghidra.AsmCallCount - in.source.CallCount
	if diff < 0 {
		diff = -diff
	}
	if diff > in.callCountWarnDiff {
		return &core.Finding{
			Level: core.LevelYellow,
			Reason: fmt.Sprintf("Call count mismatch: vanilla has %d calls, source has %d calls (diff: %d)",
				in.ghidra.AsmCallCount, in.source.CallCount, diff),
		}
	}
	return nil
}

func checkNaNLogic(in signalInput) *core.Finding {
	if in.source == nil || in.ghidra == nil || !in.ghidra.DecompileOK {
		return nil
	}
	if in.ghidra.DecompileHasNaN &&
		!strings.Contains(in.source.BodyNoComments, "isnan") &&
		!strings.Contains(in.source.BodyNoComments, "NAN(") {
		return &core.Finding{
			Level:  core.LevelYellow,
			Reason: "Decompile includes NAN-sensitive logic; verify NaN behavior manually",
		}
	}
	return nil
}

func checkInlineWrapper(in signalInput) *core.Finding {
	if in.source != nil && in.source.IsInlineInternalForwarder {
		return &core.Finding{
			Level:  core.LevelInfo,
			Reason: "Source is an inline forwarding wrapper to internal I_* implementation",
		}
	}
	return nil
}
