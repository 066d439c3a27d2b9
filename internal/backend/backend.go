// Package backend abstracts the reverse-engineering tool that supplies
// decompilation, disassembly, and cross-reference data.
package backend

import (
	"context"
	"errors"

	"github.com/Dryxio/auto-re-agent/internal/core"
)

// ErrUnsupported is returned for operations the backend does not provide.
var ErrUnsupported = errors.New("operation not supported by backend")

// Capabilities declares which operations a backend supports. Agents can
// inspect this before issuing commands to avoid unsupported calls.
type Capabilities struct {
	HasDecompile bool
	HasAsm       bool
	HasStructs   bool
	HasXrefs     bool
	HasSearch    bool
	HasEnums     bool
}

// Backend is the interface all decompiler backends satisfy. Operations a
// backend does not support return ErrUnsupported.
type Backend interface {
	// Capabilities returns the supported operation set.
	Capabilities(ctx context.Context) Capabilities

	// Decompile decompiles a function by hex address or symbol name.
	Decompile(ctx context.Context, target string) (*core.DecompileResult, error)

	// XrefsTo returns cross-references to the given target.
	XrefsTo(ctx context.Context, target string) ([]core.XRef, error)

	// XrefsFrom returns cross-references from the given target.
	XrefsFrom(ctx context.Context, target string) ([]core.XRef, error)

	// GetStruct retrieves a struct definition by name, or nil if not found.
	GetStruct(ctx context.Context, name string) (*core.StructDef, error)

	// GetEnum retrieves an enum definition by name, or nil if not found.
	GetEnum(ctx context.Context, name string) (*core.EnumDef, error)

	// GetAsm retrieves disassembly for a function, or nil if unavailable.
	GetAsm(ctx context.Context, target string) (*core.AsmResult, error)

	// Search finds functions matching a pattern.
	Search(ctx context.Context, pattern string) ([]core.FunctionEntry, error)

	// Unimplemented lists functions that are not yet implemented,
	// optionally narrowed by a filter pattern.
	Unimplemented(ctx context.Context, filterPattern string) ([]core.FunctionEntry, error)

	// Remaining lists remaining stub functions, optionally filtered by class.
	Remaining(ctx context.Context, className string) ([]core.FunctionEntry, error)
}
