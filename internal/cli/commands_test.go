package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roboco-io/chaptermd/internal/config"
	"github.com/roboco-io/chaptermd/internal/output"
	"github.com/roboco-io/chaptermd/internal/testutil"
)

// resetFlags restores every flag of cmd and its children to its default so
// one Execute does not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args against the config file at
// cfgPath and returns everything written to stdout and stderr.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "OLLAMA_HOST", "UPSTAGE_API_KEY",
		config.EnvConfig, config.EnvLLM, config.EnvProvider, config.EnvModel, config.EnvDryRun, config.EnvSplitLevel,
	} {
		t.Setenv(key, "")
	}

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", cfgPath))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func tempConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	sample := testutil.GuideDOCX(t, dir)
	unsupported := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unsupported, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		wantErr    bool
		wantOutput []string
	}{
		{
			name:       "basic convert",
			args:       []string{"convert", sample, "-o", filepath.Join(dir, "basic")},
			wantOutput: []string{"Wrote 3 chapters"},
		},
		{
			name:       "convert with verbose",
			args:       []string{"convert", sample, "-o", filepath.Join(dir, "verbose"), "-v"},
			wantOutput: []string{"Wrote 3 chapters"},
		},
		{
			name:       "convert at level 2",
			args:       []string{"convert", sample, "-o", filepath.Join(dir, "level2"), "--split-level", "2"},
			wantOutput: []string{"Wrote 4 chapters"},
		},
		{
			name:    "convert with invalid split level",
			args:    []string{"convert", sample, "-o", filepath.Join(dir, "invalid"), "--split-level", "7"},
			wantErr: true,
		},
		{
			name:    "convert non-existent file",
			args:    []string{"convert", filepath.Join(dir, "nonexistent.docx")},
			wantErr: true,
		},
		{
			name:    "convert unsupported format",
			args:    []string{"convert", unsupported, "-o", filepath.Join(dir, "txt")},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tempConfig(t), tc.args...)

			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v\noutput: %s", err, out)
			}

			for _, want := range tc.wantOutput {
				if !strings.Contains(out, want) {
					t.Errorf("output should contain %q, got: %s", want, out)
				}
			}
		})
	}
}

func TestConvertCommand_Output(t *testing.T) {
	dir := t.TempDir()
	sample := testutil.GuideDOCX(t, dir)
	root := filepath.Join(dir, "book")

	out, err := execute(t, tempConfig(t), "convert", sample, "-o", root, "--json")
	if err != nil {
		t.Fatalf("convert failed: %v\noutput: %s", err, out)
	}

	var m output.Manifest
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("stdout is not a manifest: %v\n%s", err, out)
	}
	if m.ChapterCount != 3 {
		t.Errorf("chapter_count = %d, want 3", m.ChapterCount)
	}

	for _, name := range []string{output.IndexFile, output.ManifestFile} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	for _, ch := range m.Chapters {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(ch.File))); err != nil {
			t.Errorf("expected chapter %s: %v", ch.File, err)
		}
	}

	out, err = execute(t, tempConfig(t), "validate", filepath.Join(root, "chapters"))
	if err != nil {
		t.Fatalf("validate failed on converted chapters: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "3 files checked") {
		t.Errorf("unexpected validate output: %s", out)
	}
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	sample := testutil.GuideDOCX(t, dir)

	tests := []struct {
		name       string
		args       []string
		wantErr    bool
		wantOutput string
	}{
		{
			name:       "extract as json",
			args:       []string{"extract", sample},
			wantOutput: `"content"`,
		},
		{
			name:       "extract as text",
			args:       []string{"extract", sample, "--format", "text"},
			wantOutput: "# Introduction",
		},
		{
			name:       "extract normalized",
			args:       []string{"extract", sample, "--format", "text", "--normalize"},
			wantOutput: "## Scope",
		},
		{
			name:    "extract with unknown format",
			args:    []string{"extract", sample, "--format", "yaml"},
			wantErr: true,
		},
		{
			name:    "extract non-existent file",
			args:    []string{"extract", filepath.Join(dir, "nonexistent.docx")},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tempConfig(t), tc.args...)

			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v\noutput: %s", err, out)
			}
			if !strings.Contains(out, tc.wantOutput) {
				t.Errorf("output should contain %q, got: %s", tc.wantOutput, out)
			}
		})
	}
}

func TestInspectCommand(t *testing.T) {
	sample := testutil.GuideDOCX(t, t.TempDir())

	out, err := execute(t, tempConfig(t), "inspect", sample, "--json")
	if err != nil {
		t.Fatalf("inspect failed: %v\noutput: %s", err, out)
	}

	var report inspectReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(report.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(report.Chapters))
	}
	if report.Chapters[2].Title != "Usage" {
		t.Errorf("third chapter = %q, want Usage", report.Chapters[2].Title)
	}

	out, err = execute(t, tempConfig(t), "inspect", sample, "--split-level", "2")
	if err != nil {
		t.Fatalf("inspect failed: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "4 chapters at heading level 2") || !strings.Contains(out, "Scope") {
		t.Errorf("unexpected table output: %s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.md")
	bad := filepath.Join(dir, "nested", "bad.md")
	if err := os.MkdirAll(filepath.Dir(bad), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, []byte("# Title\n\nBody text.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("# Title\n\n```go\nfmt.Println()\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, tempConfig(t), "validate", good)
	if err != nil {
		t.Errorf("unexpected error: %v\noutput: %s", err, out)
	}

	out, err = execute(t, tempConfig(t), "validate", dir)
	if err == nil {
		t.Fatalf("expected findings, got none\noutput: %s", out)
	}
	if !strings.Contains(out, "bad.md") || !strings.Contains(out, "code-fence") {
		t.Errorf("output should name the file and rule, got: %s", out)
	}

	out, err = execute(t, tempConfig(t), "validate", dir, "--skip", "code-fence")
	if err != nil {
		t.Errorf("skipped rule still reported: %v\noutput: %s", err, out)
	}
}

func TestProvidersCommand_Output(t *testing.T) {
	out, err := execute(t, tempConfig(t), "providers")
	if err != nil {
		t.Fatalf("unexpected error: %v\noutput: %s", err, out)
	}

	for _, p := range []string{"anthropic", "openai", "gemini", "ollama"} {
		if !strings.Contains(out, p) {
			t.Errorf("output should contain provider %q, got: %s", p, out)
		}
	}
	if !strings.Contains(out, "missing key") || !strings.Contains(out, "ready") {
		t.Errorf("output should report provider status, got: %s", out)
	}
}

func TestVersionCommand_Output(t *testing.T) {
	out, err := execute(t, tempConfig(t), "version")
	if err != nil {
		t.Errorf("unexpected error: %v\noutput: %s", err, out)
	}

	if !strings.Contains(out, "chaptermd") {
		t.Errorf("output should contain 'chaptermd', got: %s", out)
	}
}

func TestConfigCommand_Lifecycle(t *testing.T) {
	cfgPath := tempConfig(t)

	t.Run("config path", func(t *testing.T) {
		out, err := execute(t, cfgPath, "config", "path")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(out) != cfgPath {
			t.Errorf("path = %q, want %q", strings.TrimSpace(out), cfgPath)
		}
	})

	t.Run("config show without file", func(t *testing.T) {
		out, err := execute(t, cfgPath, "config", "show")
		if err != nil {
			t.Fatalf("unexpected error: %v\noutput: %s", err, out)
		}
		for _, want := range []string{"(defaults)", "default_provider", "split_level: 1", "CHAPTERMD_LLM"} {
			if !strings.Contains(out, want) {
				t.Errorf("output should contain %q, got: %s", want, out)
			}
		}
	})

	t.Run("config init", func(t *testing.T) {
		if _, err := execute(t, cfgPath, "config", "init"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(cfgPath); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if _, err := execute(t, cfgPath, "config", "init"); err == nil {
			t.Error("expected error when the file exists")
		}
		if _, err := execute(t, cfgPath, "config", "init", "--force"); err != nil {
			t.Errorf("unexpected error with --force: %v", err)
		}
	})

	t.Run("config set", func(t *testing.T) {
		if _, err := execute(t, cfgPath, "config", "set", "output.split_level", "2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := execute(t, cfgPath, "config", "set", "output.split_level", "9"); err == nil {
			t.Error("expected error for out of range split level")
		}
		if _, err := execute(t, cfgPath, "config", "set", "output.nope", "1"); err == nil {
			t.Error("expected error for unknown key")
		}

		cfg, err := config.NewLoaderWithPath(cfgPath).Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Output.SplitLevel != 2 {
			t.Errorf("split_level = %d, want 2", cfg.Output.SplitLevel)
		}
	})

	t.Run("config drives convert", func(t *testing.T) {
		dir := t.TempDir()
		sample := testutil.GuideDOCX(t, dir)
		out, err := execute(t, cfgPath, "convert", sample, "-o", filepath.Join(dir, "out"))
		if err != nil {
			t.Fatalf("convert failed: %v\noutput: %s", err, out)
		}
		if !strings.Contains(out, "Wrote 4 chapters") {
			t.Errorf("split level from config not applied: %s", out)
		}
	})
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, tempConfig(t), "--help")
	if err != nil {
		t.Errorf("unexpected error: %v\noutput: %s", err, out)
	}

	expectedStrings := []string{"chaptermd", "convert", "extract", "inspect", "validate", "providers", "config", "serve"}
	for _, s := range expectedStrings {
		if !strings.Contains(out, s) {
			t.Errorf("output should contain %q, got: %s", s, out)
		}
	}
}
