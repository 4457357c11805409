package llm

import (
	"context"
	"errors"
	"testing"
)

// mockProvider is a test implementation of Provider.
type mockProvider struct {
	name        string
	validateErr error
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Format(ctx context.Context, req FormatRequest) (*FormatResult, error) {
	return &FormatResult{
		Markdown: "# " + req.Title,
		Model:    "mock-model",
	}, nil
}

func (m *mockProvider) Validate() error {
	return m.validateErr
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	if r == nil {
		t.Fatal("expected non-nil registry")
	}
	if r.Count() != 0 {
		t.Errorf("expected 0 providers, got %d", r.Count())
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&mockProvider{name: "test"}); err != nil {
		t.Fatalf("failed to register first: %v", err)
	}

	err := r.Register(&mockProvider{name: "test"})
	if !errors.Is(err, ErrDuplicateProvider) {
		t.Errorf("expected ErrDuplicateProvider, got %v", err)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(nil); err == nil {
		t.Error("expected error for nil provider")
	}
	if err := r.Register(&mockProvider{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockProvider{name: "test"})

	got, err := r.Get("test")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Name() != "test" {
		t.Errorf("expected 'test', got %s", got.Name())
	}

	if _, err := r.Get("nonexistent"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockProvider{name: "ok"})
	_ = r.Register(&mockProvider{name: "broken", validateErr: errors.New("API key is required")})

	if _, err := r.Resolve("ok"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Resolve("broken"); err == nil {
		t.Error("expected validation error")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockProvider{name: "gamma"})
	_ = r.Register(&mockProvider{name: "alpha"})
	_ = r.Register(&mockProvider{name: "beta"})

	names := r.List()

	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d", len(names))
	}
	if names[0] != "alpha" || names[1] != "beta" || names[2] != "gamma" {
		t.Errorf("expected sorted list, got %v", names)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&mockProvider{name: "test"})

	if err := r.Unregister("test"); err != nil {
		t.Fatalf("failed to unregister: %v", err)
	}
	if r.Has("test") {
		t.Error("expected provider to be gone")
	}
	if err := r.Unregister("test"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestFormatOptions_WithDefaults(t *testing.T) {
	opts := FormatOptions{Temperature: 0.1}.WithDefaults()

	if opts.Language != "en" {
		t.Errorf("expected language 'en', got %s", opts.Language)
	}
	if opts.MaxTokens != 4096 {
		t.Errorf("expected max_tokens 4096, got %d", opts.MaxTokens)
	}
	if opts.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %f", opts.Temperature)
	}
	if opts.Prompt != DefaultPrompt {
		t.Error("expected default prompt")
	}
}
