package backend

import (
	"context"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

const cannedDecompile = `// Decompiled by stub backend
void __fastcall CStub::StubFunction(CStub *this) {
    // stub body
    return;
}
// Callers: 2 | Callees: 0
`

// Stub is an in-memory backend that returns canned data. Useful for
// exercising the agent loop, prompt construction, and orchestration
// without a live decompiler.
type Stub struct {
	// RemainingFunctions seeds the Remaining/Unimplemented lists.
	RemainingFunctions []core.FunctionEntry
	// DecompileOutput overrides the canned decompile text when set.
	DecompileOutput string
}

// NewStub creates an empty stub backend.
func NewStub() *Stub {
	return &Stub{}
}

// Capabilities reports every operation as available.
func (s *Stub) Capabilities(context.Context) Capabilities {
	return Capabilities{
		HasDecompile: true,
		HasAsm:       true,
		HasStructs:   true,
		HasXrefs:     true,
		HasSearch:    true,
		HasEnums:     true,
	}
}

func (s *Stub) Decompile(_ context.Context, target string) (*core.DecompileResult, error) {
	raw := s.DecompileOutput
	if raw == "" {
		raw = cannedDecompile
	}
	return &core.DecompileResult{
		Address:    target,
		Name:       "CStub::StubFunction",
		Signature:  "void __fastcall CStub::StubFunction(CStub *this)",
		Decompiled: raw,
		RawOutput:  raw,
		Callers:    2,
		Callees:    0,
	}, nil
}

func (s *Stub) XrefsTo(context.Context, string) ([]core.XRef, error)   { return nil, nil }
func (s *Stub) XrefsFrom(context.Context, string) ([]core.XRef, error) { return nil, nil }

func (s *Stub) GetStruct(context.Context, string) (*core.StructDef, error) { return nil, nil }
func (s *Stub) GetEnum(context.Context, string) (*core.EnumDef, error)     { return nil, nil }
func (s *Stub) GetAsm(context.Context, string) (*core.AsmResult, error)    { return nil, nil }

func (s *Stub) Search(context.Context, string) ([]core.FunctionEntry, error) { return nil, nil }

func (s *Stub) Unimplemented(_ context.Context, filterPattern string) ([]core.FunctionEntry, error) {
	if filterPattern == "" {
		return append([]core.FunctionEntry(nil), s.RemainingFunctions...), nil
	}
	return s.Remaining(context.Background(), filterPattern)
}

func (s *Stub) Remaining(_ context.Context, className string) ([]core.FunctionEntry, error) {
	if className == "" {
		return append([]core.FunctionEntry(nil), s.RemainingFunctions...), nil
	}
	var out []core.FunctionEntry
	for _, f := range s.RemainingFunctions {
		if f.ClassName == className {
			out = append(out, f)
		}
	}
	return out, nil
}
