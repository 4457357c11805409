package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %s", cfg.DefaultProvider)
	}

	if len(cfg.Providers) != 4 {
		t.Errorf("expected 4 providers, got %d", len(cfg.Providers))
	}

	openai, ok := cfg.Providers["openai"]
	if !ok {
		t.Error("expected 'openai' provider in config")
	}
	if openai.Model != "gpt-4o-mini" {
		t.Errorf("expected OpenAI model 'gpt-4o-mini', got %s", openai.Model)
	}

	if cfg.Output.SplitLevel != 1 {
		t.Errorf("expected split level 1, got %d", cfg.Output.SplitLevel)
	}
	if cfg.Output.AssetsDir != "assets" || cfg.Output.ChaptersDir != "chapters" {
		t.Errorf("unexpected output dirs: %+v", cfg.Output)
	}
	if !cfg.Output.FrontMatter {
		t.Error("expected front matter enabled by default")
	}
	if cfg.Render.UseLLM || cfg.Render.DryRun {
		t.Error("expected deterministic rendering by default")
	}
	if cfg.Render.Fallback != FallbackDeterministic {
		t.Errorf("expected fallback %q, got %q", FallbackDeterministic, cfg.Render.Fallback)
	}
	if cfg.Parser.Engine != EngineNative {
		t.Errorf("expected native parser engine, got %q", cfg.Parser.Engine)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_GetProvider(t *testing.T) {
	cfg := DefaultConfig()

	p, ok := cfg.GetProvider("openai")
	if !ok {
		t.Fatal("expected to find 'openai' provider")
	}
	if p.Model != "gpt-4o-mini" {
		t.Errorf("expected model 'gpt-4o-mini', got %s", p.Model)
	}

	_, ok = cfg.GetProvider("nonexistent")
	if ok {
		t.Error("expected not to find 'nonexistent' provider")
	}
}

func TestConfig_GetDefaultProvider(t *testing.T) {
	cfg := DefaultConfig()

	p, ok := cfg.GetDefaultProvider()
	if !ok {
		t.Fatal("expected to find default provider")
	}
	if p.Model != "claude-sonnet-4-5" {
		t.Errorf("expected default provider model 'claude-sonnet-4-5', got %s", p.Model)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"split level too low", func(c *Config) { c.Output.SplitLevel = 0 }, "Output"},
		{"split level too high", func(c *Config) { c.Output.SplitLevel = 7 }, "Output"},
		{"empty assets dir", func(c *Config) { c.Output.AssetsDir = "" }, "Output"},
		{"absolute assets dir", func(c *Config) { c.Output.AssetsDir = "/tmp/assets" }, "Output"},
		{"escaping chapters dir", func(c *Config) { c.Output.ChaptersDir = "../chapters" }, "Output"},
		{"pattern without placeholders", func(c *Config) { c.Output.ChapterPattern = "chapter.md" }, "Output"},
		{"pattern with separator", func(c *Config) { c.Output.ChapterPattern = "x/{slug}.md" }, "Output"},
		{"zero concurrency", func(c *Config) { c.Render.Concurrency = 0 }, "Render"},
		{"unknown fallback", func(c *Config) { c.Render.Fallback = "retry" }, "Render"},
		{"unknown engine", func(c *Config) { c.Parser.Engine = "ocr" }, "Parser"},
		{"unknown default provider", func(c *Config) { c.DefaultProvider = "missing" }, "DefaultProvider"},
		{"temperature out of range", func(c *Config) { c.Format.Temperature = 3 }, "Format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var errs validation.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("expected validation.Errors, got %T", err)
			}
			if _, ok := errs[tt.field]; !ok {
				t.Errorf("expected error on %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestConfig_ValidateEmptyChaptersDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.ChaptersDir = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected flat layout to be valid, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLLM, "true")
	t.Setenv(EnvDryRun, "1")
	t.Setenv(EnvProvider, "openai")
	t.Setenv(EnvModel, "gpt-4.1")
	t.Setenv(EnvSplitLevel, "2")

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Render.UseLLM || !cfg.Render.DryRun {
		t.Errorf("expected LLM and dry run enabled, got %+v", cfg.Render)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("expected provider 'openai', got %s", cfg.DefaultProvider)
	}
	if cfg.Providers["openai"].Model != "gpt-4.1" {
		t.Errorf("expected model override, got %s", cfg.Providers["openai"].Model)
	}
	if cfg.Providers["openai"].MaxTokens != 4096 {
		t.Errorf("expected other provider settings kept, got %+v", cfg.Providers["openai"])
	}
	if cfg.Output.SplitLevel != 2 {
		t.Errorf("expected split level 2, got %d", cfg.Output.SplitLevel)
	}
}

func TestApplyEnv_InvalidSplitLevel(t *testing.T) {
	t.Setenv(EnvSplitLevel, "two")

	if err := ApplyEnv(DefaultConfig()); err == nil {
		t.Error("expected error for non-numeric split level")
	}
}

func TestLoader_SaveAndLoad(t *testing.T) {
	// Create temp directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	loader := NewLoaderWithPath(configPath)

	// Save default config
	cfg := DefaultConfig()
	cfg.DefaultProvider = "openai"

	err := loader.Save(cfg)
	if err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	// Verify file exists
	if !loader.Exists() {
		t.Error("expected config file to exist after save")
	}

	// Load config back
	loaded, err := loader.LoadRaw()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded.DefaultProvider != "openai" {
		t.Errorf("expected default provider 'openai', got %s", loaded.DefaultProvider)
	}
}

func TestLoader_LoadNonExistent(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nonexistent", "config.yaml")

	loader := NewLoaderWithPath(configPath)

	// Should return default config when file doesn't exist
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("expected no error for non-existent file, got: %v", err)
	}

	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %s", cfg.DefaultProvider)
	}
}

func TestLoader_ExpandEnvVars(t *testing.T) {
	// Set test env var
	os.Setenv("TEST_API_KEY", "test-key-12345")
	defer os.Unsetenv("TEST_API_KEY")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write config with env var reference
	content := `default_provider: test
providers:
  test:
    api_key: ${TEST_API_KEY}
    model: test-model
    max_tokens: 1000
format:
  temperature: 0.5
  language: en
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoaderWithPath(configPath)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	testProvider, ok := cfg.GetProvider("test")
	if !ok {
		t.Fatal("expected to find 'test' provider")
	}

	if testProvider.APIKey != "test-key-12345" {
		t.Errorf("expected API key 'test-key-12345', got %s", testProvider.APIKey)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	if v := GetEnvOrDefault("TEST_VAR", "default"); v != "test-value" {
		t.Errorf("expected 'test-value', got %s", v)
	}

	if v := GetEnvOrDefault("NONEXISTENT_VAR", "default"); v != "default" {
		t.Errorf("expected 'default', got %s", v)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"false", false},
		{"FALSE", false},
		{"0", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		os.Setenv("TEST_BOOL", tc.value)
		got := GetEnvBool("TEST_BOOL")
		if got != tc.expected {
			t.Errorf("GetEnvBool(%q): expected %v, got %v", tc.value, tc.expected, got)
		}
	}
	os.Unsetenv("TEST_BOOL")
}

func TestNewLoader(t *testing.T) {
	t.Setenv(EnvConfig, "")

	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}

	path := loader.ConfigPath()
	if path == "" {
		t.Error("expected non-empty config path")
	}

	// Should contain config.yaml
	if filepath.Base(path) != ConfigFileName {
		t.Errorf("expected config file name %s, got %s", ConfigFileName, filepath.Base(path))
	}
}

func TestLoader_Init(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	loader := NewLoaderWithPath(configPath)

	// Init should create file
	err := loader.Init()
	if err != nil {
		t.Fatalf("failed to init config: %v", err)
	}

	if !loader.Exists() {
		t.Error("expected config file to exist after init")
	}

	// Init again should fail
	err = loader.Init()
	if err == nil {
		t.Error("expected error when initializing existing config")
	}
}

func TestLoader_LoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write invalid YAML
	invalidYAML := "{{{{invalid yaml"
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoaderWithPath(configPath)
	_, err := loader.Load()
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestExpandEnvVars_UnsetVar(t *testing.T) {
	// Make sure the env var is unset
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `default_provider: test
providers:
  test:
    api_key: ${UNSET_VAR_FOR_TEST}
    model: test-model
    max_tokens: 1000
format:
  temperature: 0.5
  language: en
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	loader := NewLoaderWithPath(configPath)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	testProvider, ok := cfg.GetProvider("test")
	if !ok {
		t.Fatal("expected to find 'test' provider")
	}

	// Unset env var should result in empty string
	if testProvider.APIKey != "" {
		t.Errorf("expected empty API key for unset env var, got %s", testProvider.APIKey)
	}
}

func TestNewLoader_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfig, path)

	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}
	if loader.ConfigPath() != path {
		t.Errorf("expected config path %s, got %s", path, loader.ConfigPath())
	}
}

func TestLoader_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `output:
  split_level: 2
render:
  use_llm: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := NewLoaderWithPath(configPath).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Output.SplitLevel != 2 || !cfg.Render.UseLLM {
		t.Errorf("expected file values applied, got %+v %+v", cfg.Output, cfg.Render)
	}
	if cfg.Output.AssetsDir != "assets" || cfg.Render.Concurrency != 4 {
		t.Errorf("expected defaults for unset keys, got %+v %+v", cfg.Output, cfg.Render)
	}
	if cfg.DefaultProvider != "anthropic" {
		t.Errorf("expected default provider kept, got %s", cfg.DefaultProvider)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}
