// Package core defines the shared data model for the reverse-engineering
// agent: targets, verdicts, decompiler results, source analysis metrics,
// and the hook registry entries that drive parity checks.
package core

import "strings"

// FunctionTarget identifies a single function to reverse.
type FunctionTarget struct {
	Address      string
	ClassName    string
	FunctionName string
	CallerCount  int
}

// Symbol returns the fully-qualified Class::Function form.
func (t FunctionTarget) Symbol() string {
	if t.ClassName == "" {
		return t.FunctionName
	}
	return t.ClassName + "::" + t.FunctionName
}

// Verdict is the checker's judgement of a reversal attempt.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictUnknown Verdict = "UNKNOWN"
)

// ParityStatus is the static parity triage status.
type ParityStatus string

const (
	ParityGreen  ParityStatus = "green"
	ParityYellow ParityStatus = "yellow"
	ParityRed    ParityStatus = "red"
)

// Finding levels.
const (
	LevelRed    = "red"
	LevelYellow = "yellow"
	LevelInfo   = "info"
)

// Finding is a single parity finding.
type Finding struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// CheckerVerdict is the structured result from the checker agent.
type CheckerVerdict struct {
	Verdict         Verdict
	Summary         string
	Issues          []string
	FixInstructions []string
}

// ReversalResult is the complete result of reversing one function.
type ReversalResult struct {
	Target         FunctionTarget
	Code           string
	CheckerVerdict *CheckerVerdict
	ParityStatus   ParityStatus
	ParityFindings []Finding
	RoundsUsed     int
	Success        bool
}

// DecompileResult is parsed output from a decompiler invocation.
type DecompileResult struct {
	Address    string
	Name       string
	Signature  string
	Decompiled string
	RawOutput  string
	Callers    int // -1 when unknown
	Callees    int // -1 when unknown
}

// XRef is a single cross-reference entry.
type XRef struct {
	Address string
	Name    string
	RefType string
}

// FunctionEntry is a function row from the decompiler's function lists.
type FunctionEntry struct {
	Address     string
	Name        string
	ClassName   string
	CallerCount int
}

// StructField is a single field within a struct definition.
type StructField struct {
	Name    string
	Offset  int
	TypeStr string
	Size    int
}

// StructDef is a struct/class definition from the decompiler.
type StructDef struct {
	Name   string
	Size   int
	Fields []StructField
}

// EnumValue is a single value within an enum definition.
type EnumValue struct {
	Name  string
	Value int
}

// EnumDef is an enum definition from the decompiler.
type EnumDef struct {
	Name   string
	Values []EnumValue
}

// AsmResult is a parsed assembly listing for a function.
type AsmResult struct {
	Address          string
	Instructions     string
	InstructionCount int
	CallCount        int
	HasFPSensitive   bool
}

// SourceMatch is a parsed source function body with analysis metrics.
type SourceMatch struct {
	Path                      string
	Line                      int
	Body                      string
	BodyNoComments            string
	BodyLines                 int
	CallCount                 int
	PluginCallCount           int
	NonPluginCallCount        int
	ControlFlowCount          int
	HasStubMarker             bool
	HasFPToken                bool
	IsInlineInternalForwarder bool
}

// GhidraData aggregates decompiler analysis data for one function.
type GhidraData struct {
	DecompileOK         bool
	DecompileError      string
	Callers             int // -1 when unknown
	Callees             int // -1 when unknown
	DecompileHasNaN     bool
	AsmOK               bool
	AsmError            string
	AsmInstructionCount int
	AsmCallCount        int
	AsmHasFPSensitive   bool
	ResolvedAddress     string
}

// HookEntry is a single hook from the hooks CSV registry.
type HookEntry struct {
	ClassPath string
	FnName    string
	Address   string
	Reversed  bool
	Locked    bool
	IsVirtual bool
}

// ClassName extracts the class name from the class path.
func (h HookEntry) ClassName() string {
	if i := strings.LastIndex(h.ClassPath, "/"); i >= 0 {
		return h.ClassPath[i+1:]
	}
	return h.ClassPath
}

// Symbol returns the fully-qualified symbol name.
func (h HookEntry) Symbol() string {
	return h.ClassName() + "::" + h.FnName
}

// SemanticRule is a semantic parity rule loaded from a JSON rules file.
type SemanticRule struct {
	ID           string   `json:"id"`
	Reason       string   `json:"reason"`
	Severity     string   `json:"severity"`
	Addresses    []string `json:"addresses"`
	Symbols      []string `json:"symbols"`
	SourceAllOf  []string `json:"source_all_of"`
	SourceAnyOf  []string `json:"source_any_of"`
	SourceNoneOf []string `json:"source_none_of"`
}

// ManualCheckEntry is a manually-verified parity check entry.
type ManualCheckEntry struct {
	Line int
	Note string
}
