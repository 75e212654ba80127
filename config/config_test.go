package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`version: "1"`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.Binary != "claude" {
		t.Errorf("Expected default agent binary 'claude', got '%s'", cfg.Agent.Binary)
	}
	if cfg.Watcher.DebounceMS != 500 {
		t.Errorf("Expected default debounce 500ms, got %d", cfg.Watcher.DebounceMS)
	}
	if cfg.Summarizer.MinTranscriptChars != 200 {
		t.Errorf("Expected default min transcript chars 200, got %d", cfg.Summarizer.MinTranscriptChars)
	}
	if cfg.Sessions.Root == "" {
		t.Error("Expected default sessions root to be set")
	}
}

func TestEnvVarExpansion(t *testing.T) {
	os.Setenv("AGENTD_TEST_MODEL", "test-model")
	defer os.Unsetenv("AGENTD_TEST_MODEL")

	yamlContent := []byte(`
agent:
  model: "${AGENTD_TEST_MODEL}"
summarizer:
  model: "${AGENTD_TEST_UNSET:-fallback-model}"
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.Model != "test-model" {
		t.Errorf("Expected agent model 'test-model', got '%s'", cfg.Agent.Model)
	}
	if cfg.Summarizer.Model != "fallback-model" {
		t.Errorf("Expected default value 'fallback-model', got '%s'", cfg.Summarizer.Model)
	}
}

// TestExtensions verifies that custom extensions in agentd.yml are properly loaded
func TestExtensions(t *testing.T) {
	yamlContent := []byte(`
version: "1"

logging:
  level: debug
  format:
    preset: json

monitoring:
  enabled: true
  interval: 30
`)

	cfg, err := LoadFromBytes(yamlContent)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Extensions == nil {
		t.Fatal("Extensions map should not be nil")
	}

	if _, ok := cfg.Extensions["logging"]; !ok {
		t.Fatal("Expected 'logging' extension to be present")
	}

	type loggingExt struct {
		Level  string `yaml:"level"`
		Format struct {
			Preset string `yaml:"preset"`
		} `yaml:"format"`
	}

	var logCfg loggingExt
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		t.Fatalf("Failed to unmarshal logging extension: %v", err)
	}

	if logCfg.Level != "debug" {
		t.Errorf("Expected level 'debug', got '%s'", logCfg.Level)
	}
	if logCfg.Format.Preset != "json" {
		t.Errorf("Expected preset 'json', got '%s'", logCfg.Format.Preset)
	}

	// Missing keys are not an error and leave the target zero-valued
	var missing loggingExt
	if err := cfg.UnmarshalExtension("nonexistent", &missing); err != nil {
		t.Fatalf("Unexpected error for missing extension: %v", err)
	}
	if missing.Level != "" {
		t.Error("Missing extension should leave target zero-valued")
	}
}

func TestMergeAndOverride(t *testing.T) {
	dir := t.TempDir()

	project := []byte(`
agent:
  binary: claude
  model: base-model
watcher:
  debounce_ms: 250
`)
	override := []byte(`
agent:
  model: override-model
`)

	if err := os.WriteFile(filepath.Join(dir, "agentd.yml"), project, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agentd.override.yml"), override, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.Model != "override-model" {
		t.Errorf("Expected override model, got '%s'", cfg.Agent.Model)
	}
	if cfg.Agent.Binary != "claude" {
		t.Errorf("Expected base binary preserved, got '%s'", cfg.Agent.Binary)
	}
	if cfg.Watcher.DebounceMS != 250 {
		t.Errorf("Expected project debounce 250, got %d", cfg.Watcher.DebounceMS)
	}
}

func TestValidation(t *testing.T) {
	yamlContent := []byte(`
watcher:
  debounce_ms: -5
`)

	if _, err := LoadFromBytes(yamlContent); err == nil {
		t.Fatal("Expected validation error for negative debounce")
	}
}

func TestSetDefaultsExpandsSessionsRoot(t *testing.T) {
	cfg := &Config{}
	cfg.Sessions.Root = "~/agent-sessions"
	cfg.SetDefaults()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("no home directory: %v", err)
	}
	want := filepath.Join(home, "agent-sessions")
	if cfg.Sessions.Root != want {
		t.Errorf("sessions root = %q, want %q", cfg.Sessions.Root, want)
	}
}
