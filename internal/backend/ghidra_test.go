package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/Dryxio/auto-re-agent/internal/config"
)

func cfgFor(backendType string) config.BackendConfig {
	return config.BackendConfig{Type: backendType, CLIPath: "ghidra", TimeoutS: 5}
}

// fakeRunner serves canned outputs keyed by the first argument (sub-command).
type fakeRunner struct {
	outputs map[string]string
	fail    map[string]bool
	// stderr responses for RunSplit probes, keyed by sub-command.
	probeStderr map[string]string
	probeRC     map[string]int
	calls       []string
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, bool) {
	f.calls = append(f.calls, strings.Join(args, " "))
	sub := args[0]
	if f.fail[sub] {
		return "boom", false
	}
	return f.outputs[sub], true
}

func (f *fakeRunner) RunSplit(_ context.Context, args ...string) (int, string, string) {
	sub := args[0]
	rc := 0
	if f.probeRC != nil {
		if v, ok := f.probeRC[sub]; ok {
			rc = v
		}
	}
	return rc, "", f.probeStderr[sub]
}

func newTestBridge(r commandRunner) *GhidraBridge {
	return &GhidraBridge{runner: r}
}

func TestDecompileParsesCallersCallees(t *testing.T) {
	raw := `// Decompiled output
void __fastcall CTrain::ProcessControl(CTrain *this) {
    return;
}
// Callers: 5 | Callees: 3
`
	bridge := newTestBridge(&fakeRunner{outputs: map[string]string{"decompile": raw}})

	dec, err := bridge.Decompile(context.Background(), "0x6F86A0")
	if err != nil {
		t.Fatalf("Decompile failed: %v", err)
	}
	if dec.Callers != 5 || dec.Callees != 3 {
		t.Errorf("expected callers=5 callees=3, got %d/%d", dec.Callers, dec.Callees)
	}
	if dec.Name != "CTrain::ProcessControl" {
		t.Errorf("expected name CTrain::ProcessControl, got %q", dec.Name)
	}
	if dec.RawOutput != raw {
		t.Error("raw output should be preserved verbatim")
	}
}

func TestDecompileWithoutCounts(t *testing.T) {
	bridge := newTestBridge(&fakeRunner{outputs: map[string]string{"decompile": "junk"}})
	dec, err := bridge.Decompile(context.Background(), "0x1234")
	if err != nil {
		t.Fatalf("Decompile failed: %v", err)
	}
	if dec.Callers != -1 || dec.Callees != -1 {
		t.Errorf("expected unknown counts (-1), got %d/%d", dec.Callers, dec.Callees)
	}
}

func TestDecompileError(t *testing.T) {
	bridge := newTestBridge(&fakeRunner{fail: map[string]bool{"decompile": true}})
	if _, err := bridge.Decompile(context.Background(), "0x1234"); err == nil {
		t.Fatal("expected error from failing CLI")
	}
}

func TestParseXrefs(t *testing.T) {
	raw := `# Cross references
0x53BC80  CWorld::Process
0x6F8C70  CTrain::UpdateTrains
= separator noise =
0x401000
`
	refs := parseXrefs(raw, "CALL")
	if len(refs) != 3 {
		t.Fatalf("expected 3 xrefs, got %d", len(refs))
	}
	if refs[0].Name != "CWorld::Process" {
		t.Errorf("expected CWorld::Process, got %q", refs[0].Name)
	}
	if refs[2].Name != "" {
		t.Errorf("address-only line should have empty name, got %q", refs[2].Name)
	}
}

func TestParseStruct(t *testing.T) {
	raw := `Struct: CTrain
Size: 0x6AC (1708)
+0x0040  int32_t  m_nPhysicalFlags
+0x0590  float  m_fSpeed
+0x05A8  float  m_fDistanceTravelled
`
	def := parseStruct("CTrain", raw)
	if def.Size != 0x6AC {
		t.Errorf("expected size 0x6AC, got %#x", def.Size)
	}
	if len(def.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(def.Fields))
	}
	if def.Fields[1].Name != "m_fSpeed" || def.Fields[1].Offset != 0x590 {
		t.Errorf("unexpected field parse: %+v", def.Fields[1])
	}
}

func TestGetEnum(t *testing.T) {
	raw := `Enum: eTrainStatus
STATUS_TRAIN_MOVING = 5
STATUS_TRAIN_NOT_MOVING = 6
`
	bridge := newTestBridge(&fakeRunner{outputs: map[string]string{"source-enum": raw}})
	def, err := bridge.GetEnum(context.Background(), "eTrainStatus")
	if err != nil {
		t.Fatalf("GetEnum failed: %v", err)
	}
	if len(def.Values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(def.Values))
	}
	if def.Values[0].Name != "STATUS_TRAIN_MOVING" || def.Values[0].Value != 5 {
		t.Errorf("unexpected enum value: %+v", def.Values[0])
	}
}

func TestGetAsm(t *testing.T) {
	raw := "006f8b20  MOV EAX, ECX\n006f8b22  CALL 0x401000\n006f8b27  FMUL dword ptr [EAX]\n006f8b29  RET"
	bridge := newTestBridge(&fakeRunner{outputs: map[string]string{"asm": raw}})
	asm, err := bridge.GetAsm(context.Background(), "0x6F8B20")
	if err != nil {
		t.Fatalf("GetAsm failed: %v", err)
	}
	if asm.InstructionCount != 4 {
		t.Errorf("expected 4 instructions, got %d", asm.InstructionCount)
	}
	if asm.CallCount != 1 {
		t.Errorf("expected 1 call, got %d", asm.CallCount)
	}
	if !asm.HasFPSensitive {
		t.Error("expected FP-sensitive flag for FMUL")
	}
}

func TestGetAsmUnavailable(t *testing.T) {
	bridge := newTestBridge(&fakeRunner{fail: map[string]bool{"asm": true}})
	asm, err := bridge.GetAsm(context.Background(), "0x1234")
	if err != nil {
		t.Fatalf("GetAsm should not error on CLI failure: %v", err)
	}
	if asm != nil {
		t.Error("expected nil result when asm is unavailable")
	}
}

func TestParseFunctionList(t *testing.T) {
	raw := `# remaining stubs
0x6F86A0  CTrain::ProcessControl  (12 callers)
0x6F5900  CTrain::Shutdown
0x401000  FreeFunction  (3 callers)
`
	entries := parseFunctionList(raw)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ClassName != "CTrain" || entries[0].Name != "ProcessControl" {
		t.Errorf("unexpected split: %+v", entries[0])
	}
	if entries[0].CallerCount != 12 {
		t.Errorf("expected 12 callers, got %d", entries[0].CallerCount)
	}
	if entries[2].ClassName != "" || entries[2].Name != "FreeFunction" {
		t.Errorf("unexpected free function parse: %+v", entries[2])
	}
}

func TestCapabilityProbing(t *testing.T) {
	runner := &fakeRunner{
		probeRC: map[string]int{
			"asm":           2,
			"source-struct": 2,
			"source-enum":   0,
			"xrefs-from":    0,
			"search":        2,
		},
		probeStderr: map[string]string{
			"asm":           "error: unknown command 'asm'",
			"source-struct": "bad arguments for source-struct",
			"search":        "invalid choice: 'search'",
		},
	}
	bridge := newTestBridge(runner)
	caps := bridge.Capabilities(context.Background())

	if caps.HasAsm {
		t.Error("asm should be unsupported (unknown command stderr)")
	}
	if !caps.HasStructs {
		t.Error("source-struct should count as supported (non-zero without unknown-command stderr)")
	}
	if !caps.HasXrefs || !caps.HasEnums {
		t.Error("zero-exit probes should be supported")
	}
	if caps.HasSearch {
		t.Error("search should be unsupported (invalid choice stderr)")
	}
	if !caps.HasDecompile {
		t.Error("decompile is always assumed supported")
	}
}

func TestNewFromConfig(t *testing.T) {
	b, err := New(cfgFor("stub"))
	if err != nil {
		t.Fatalf("New(stub) failed: %v", err)
	}
	if _, ok := b.(*Stub); !ok {
		t.Errorf("expected *Stub, got %T", b)
	}

	b, err = New(cfgFor("ghidra_bridge"))
	if err != nil {
		t.Fatalf("New(ghidra_bridge) failed: %v", err)
	}
	if _, ok := b.(*GhidraBridge); !ok {
		t.Errorf("expected *GhidraBridge, got %T", b)
	}

	if _, err := New(cfgFor("radare-telepathy")); err == nil {
		t.Error("expected error for unknown backend type")
	}
}
