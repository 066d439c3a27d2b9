package parity

import (
	"testing"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

func makeSource(mod func(*core.SourceMatch)) *core.SourceMatch {
	s := &core.SourceMatch{
		Path:               "test.cpp",
		Line:               1,
		Body:               "{ code; }",
		BodyNoComments:     "{ code; }",
		BodyLines:          10,
		CallCount:          5,
		PluginCallCount:    0,
		NonPluginCallCount: 5,
		ControlFlowCount:   3,
	}
	if mod != nil {
		mod(s)
	}
	return s
}

func makeGhidra(mod func(*core.GhidraData)) *core.GhidraData {
	g := &core.GhidraData{
		DecompileOK:         true,
		AsmOK:               true,
		AsmInstructionCount: 50,
		AsmCallCount:        5,
		Callers:             -1,
		Callees:             5,
	}
	if mod != nil {
		mod(g)
	}
	return g
}

func input(mod func(*signalInput)) signalInput {
	in := signalInput{
		source:            makeSource(nil),
		ghidra:            makeGhidra(nil),
		stubMarkers:       []string{"NOTSA_UNREACHABLE"},
		callCountWarnDiff: 3,
	}
	if mod != nil {
		mod(&in)
	}
	return in
}

func TestMissingSourceSignal(t *testing.T) {
	f := checkMissingSource(input(func(in *signalInput) { in.source = nil }))
	if f == nil || f.Level != core.LevelRed {
		t.Errorf("finding = %+v", f)
	}
	if f := checkMissingSource(input(nil)); f != nil {
		t.Errorf("unexpected finding for present source: %+v", f)
	}
}

func TestStubMarkerSignal(t *testing.T) {
	f := checkStubMarkers(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.HasStubMarker = true })
	}))
	if f == nil || f.Level != core.LevelRed {
		t.Errorf("finding = %+v", f)
	}
	if f := checkStubMarkers(input(nil)); f != nil {
		t.Errorf("unexpected finding: %+v", f)
	}
}

func TestTrivialStubSignal(t *testing.T) {
	f := checkTrivialStub(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) {
			s.PluginCallCount = 2
			s.NonPluginCallCount = 0
			s.BodyLines = 5
			s.ControlFlowCount = 0
		})
	}))
	if f == nil || f.Level != core.LevelRed {
		t.Errorf("finding = %+v", f)
	}
}

func TestShortBodySignal(t *testing.T) {
	short := func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.BodyLines = 3 })
	}
	f := checkShortBody(input(short))
	if f == nil || f.Level != core.LevelYellow {
		t.Errorf("finding = %+v", f)
	}
	f = checkShortBody(input(func(in *signalInput) {
		short(in)
		in.inlineSkip = true
	}))
	if f != nil {
		t.Errorf("inline skip ignored: %+v", f)
	}
}

func TestLargeAsmTinySourceSignal(t *testing.T) {
	f := checkLargeAsmTinySource(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.BodyLines = 5 })
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.AsmInstructionCount = 100 })
	}))
	if f == nil || f.Level != core.LevelRed {
		t.Errorf("finding = %+v", f)
	}
}

func TestFPSensitivitySignal(t *testing.T) {
	f := checkFPSensitivity(input(func(in *signalInput) {
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.AsmHasFPSensitive = true })
	}))
	if f == nil || f.Level != core.LevelYellow {
		t.Errorf("finding = %+v", f)
	}
}

func TestCallCountMismatchSignal(t *testing.T) {
	f := checkCallCountMismatch(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.CallCount = 2 })
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.AsmCallCount = 8 })
	}))
	if f == nil || f.Level != core.LevelYellow {
		t.Errorf("finding = %+v", f)
	}

	f = checkCallCountMismatch(input(func(in *signalInput) {
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.AsmCallCount = 7 })
	}))
	if f != nil {
		t.Errorf("diff within threshold flagged: %+v", f)
	}
}

func TestLowCallCountSignal(t *testing.T) {
	f := checkLowCallCount(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.CallCount = 1 })
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.Callees = 8 })
	}))
	if f == nil || f.Level != core.LevelYellow {
		t.Errorf("finding = %+v", f)
	}
	// Unknown callee count must not trip the signal.
	f = checkLowCallCount(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.CallCount = 0 })
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.Callees = -1 })
	}))
	if f != nil {
		t.Errorf("unknown callees flagged: %+v", f)
	}
}

func TestNaNLogicSignal(t *testing.T) {
	f := checkNaNLogic(input(func(in *signalInput) {
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.DecompileHasNaN = true })
	}))
	if f == nil || f.Level != core.LevelYellow {
		t.Errorf("finding = %+v", f)
	}
	f = checkNaNLogic(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.BodyNoComments = "{ if (isnan(x)) return; }" })
		in.ghidra = makeGhidra(func(g *core.GhidraData) { g.DecompileHasNaN = true })
	}))
	if f != nil {
		t.Errorf("isnan handling flagged: %+v", f)
	}
}

func TestInlineWrapperSignal(t *testing.T) {
	f := checkInlineWrapper(input(func(in *signalInput) {
		in.source = makeSource(func(s *core.SourceMatch) { s.IsInlineInternalForwarder = true })
	}))
	if f == nil || f.Level != core.LevelInfo {
		t.Errorf("finding = %+v", f)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		findings []core.Finding
		want     core.ParityStatus
	}{
		{"empty", nil, core.ParityGreen},
		{"info only", []core.Finding{{Level: core.LevelInfo}}, core.ParityGreen},
		{"yellow", []core.Finding{{Level: core.LevelInfo}, {Level: core.LevelYellow}}, core.ParityYellow},
		{"red wins", []core.Finding{{Level: core.LevelYellow}, {Level: core.LevelRed}}, core.ParityRed},
	}
	for _, tt := range tests {
		if got := Score(tt.findings); got != tt.want {
			t.Errorf("%s: Score = %s, want %s", tt.name, got, tt.want)
		}
	}
}
