package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dryxio/auto-re-agent/internal/backend"
	"github.com/Dryxio/auto-re-agent/internal/config"
	"github.com/Dryxio/auto-re-agent/internal/core"
)

func TestMain(m *testing.M) {
	logger = zap.NewNop()
	os.Exit(m.Run())
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "reagent.yaml")
	initProfile = ""
	defer func() { cfgPath = config.DefaultPath }()

	require.NoError(t, runInit(initCmd, nil))
	require.FileExists(t, cfgPath)

	loaded, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.LLM.Provider)
	assert.NotEmpty(t, loaded.Profile.HookPatterns)

	// Second run must refuse to overwrite.
	assert.Error(t, runInit(initCmd, nil))
}

func TestInitRejectsUnknownProfile(t *testing.T) {
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "reagent.yaml")
	initProfile = "no-such-profile"
	defer func() {
		cfgPath = config.DefaultPath
		initProfile = ""
	}()

	assert.Error(t, runInit(initCmd, nil))
	assert.NoFileExists(t, cfgPath)
}

func writeHooksCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.csv")
	data := `class,fn_name,address,reversed
CTrain,ProcessControl,0x6F86A0,1
CTrain,Shutdown,0x6F5900,1
CPed,Attack,0x5E4400,1
CPed,Duck,0x5E5300,0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestSelectHooksFilterAndLimit(t *testing.T) {
	profile := config.ProfileConfig{HooksCSV: writeHooksCSV(t)}
	parityAddresses = nil
	parityFilter = `^CTrain::`
	parityLimit = 1
	defer func() {
		parityFilter = ""
		parityLimit = 0
	}()

	hooks, err := selectHooks(profile)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "CTrain::ProcessControl", hooks[0].Symbol())
}

func TestSelectHooksSynthesizesMissingAddress(t *testing.T) {
	profile := config.ProfileConfig{HooksCSV: writeHooksCSV(t)}
	parityAddresses = []string{"0x6F86A0", "0xDEADBEEF"}
	parityFilter = ""
	parityLimit = 0
	defer func() { parityAddresses = nil }()

	hooks, err := selectHooks(profile)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	assert.Equal(t, "ProcessControl", hooks[0].FnName)
	assert.Equal(t, "0xDEADBEEF", hooks[1].Address)
	assert.True(t, hooks[1].Reversed)
	assert.Empty(t, hooks[1].FnName)
}

func TestSelectHooksNoInputIsError(t *testing.T) {
	parityAddresses = nil
	_, err := selectHooks(config.ProfileConfig{})
	assert.Error(t, err)
}

func TestResolveTargetSplitsSymbol(t *testing.T) {
	be := backend.NewStub()
	target := resolveTarget(context.Background(), be, "0x6F86A0", "")
	assert.Equal(t, "CStub", target.ClassName)
	assert.Equal(t, "StubFunction", target.FunctionName)

	// Explicit class wins over backend resolution.
	target = resolveTarget(context.Background(), be, "0x6F86A0", "CTrain")
	assert.Equal(t, core.FunctionTarget{Address: "0x6F86A0", ClassName: "CTrain"}, target)
}
