package backend

import (
	"fmt"
	"strings"

	"github.com/Dryxio/auto-re-agent/internal/config"
)

// New creates a backend from configuration.
//
// Supported types:
//   - "ghidra-bridge" (default): shells out to a decompiler CLI tool.
//   - "stub": in-memory stub returning canned data (for testing).
func New(cfg config.BackendConfig) (Backend, error) {
	backendType := strings.ReplaceAll(strings.ToLower(cfg.Type), "_", "-")

	switch backendType {
	case "ghidra-bridge", "ghidra", "":
		return NewGhidraBridge(cfg.CLIPath, cfg.TimeoutS), nil
	case "stub":
		return NewStub(), nil
	}
	return nil, fmt.Errorf("unknown backend type: %q (supported: ghidra-bridge, stub)", cfg.Type)
}
