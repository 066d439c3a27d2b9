package config

// ProfileTemplates are built-in project profiles selectable via
// `reagent init --profile <name>`.
var ProfileTemplates = map[string]ProfileConfig{
	"gta-reversed": {
		HookPatterns: []string{
			`RH_ScopedInstall\s*\(\s*(\w+)\s*,\s*(0x[0-9A-Fa-f]+)`,
			`RH_ScopedVirtualInstall\s*\(\s*(\w+)\s*,\s*(0x[0-9A-Fa-f]+)`,
		},
		StubPatterns:     []string{`plugin::Call`},
		StubMarkers:      []string{"NOTSA_UNREACHABLE"},
		StubCallPrefix:   "plugin::Call",
		ClassMacro:       "RH_ScopedClass",
		SourceRoot:       "source/game_sa",
		SourceExtensions: []string{".cpp", ".h", ".hpp"},
		HooksCSV:         "docs/hooks.csv",
	},
	"openrct2": {
		HookPatterns: []string{
			`HOOK_FUNCTION\s*\(\s*(\w+)\s*,\s*(0x[0-9A-Fa-f]+)`,
		},
		StubPatterns:     []string{`original_function(`},
		StubMarkers:      []string{"NOT_IMPLEMENTED"},
		StubCallPrefix:   "original_function",
		SourceRoot:       "src",
		SourceExtensions: []string{".cpp", ".h", ".hpp"},
	},
}
