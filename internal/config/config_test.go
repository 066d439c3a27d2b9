package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected Provider=anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.Backend.Type != "ghidra-bridge" {
		t.Errorf("expected Backend.Type=ghidra-bridge, got %s", cfg.Backend.Type)
	}
	if cfg.Orchestrator.MaxReviewRounds != 4 {
		t.Errorf("expected MaxReviewRounds=4, got %d", cfg.Orchestrator.MaxReviewRounds)
	}
	if cfg.Profile.StubCallPrefix != "plugin::Call" {
		t.Errorf("expected StubCallPrefix=plugin::Call, got %s", cfg.Profile.StubCallPrefix)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("REAGENT_LLM_PROVIDER", "")
	t.Setenv("REAGENT_LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	path := filepath.Join(t.TempDir(), "reagent.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o"
	cfg.Backend.TimeoutS = 90

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.Model != "gpt-4o" {
		t.Errorf("expected Model=gpt-4o, got %s", loaded.LLM.Model)
	}
	if loaded.Backend.TimeoutS != 90 {
		t.Errorf("expected TimeoutS=90, got %d", loaded.Backend.TimeoutS)
	}
}

func TestConfig_LoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should return defaults: %v", err)
	}
	if cfg.Backend.CLIPath != "ghidra" {
		t.Errorf("expected default CLIPath=ghidra, got %s", cfg.Backend.CLIPath)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("REAGENT_LLM_MODEL", "claude-opus-4")
	t.Setenv("REAGENT_BACKEND_TIMEOUT", "99")
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Model != "claude-opus-4" {
		t.Errorf("expected model from env, got %s", cfg.LLM.Model)
	}
	if cfg.Backend.TimeoutS != 99 {
		t.Errorf("expected timeout from env, got %d", cfg.Backend.TimeoutS)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("expected api key fallback from ANTHROPIC_API_KEY, got %q", cfg.LLM.APIKey)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.LLM.Provider = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider")
	}

	cfg = DefaultConfig()
	cfg.Orchestrator.MaxReviewRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero review rounds")
	}
}

func TestProfileTemplates(t *testing.T) {
	tpl, ok := ProfileTemplates["gta-reversed"]
	if !ok {
		t.Fatal("expected gta-reversed profile template")
	}
	if tpl.ClassMacro != "RH_ScopedClass" {
		t.Errorf("expected RH_ScopedClass, got %s", tpl.ClassMacro)
	}
	if _, ok := ProfileTemplates["openrct2"]; !ok {
		t.Error("expected openrct2 profile template")
	}
}
