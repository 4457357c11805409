// Package cli implements the chaptermd command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/config"
	"github.com/roboco-io/chaptermd/internal/service"
)

var version = "dev"

var (
	configPath string
	verbose    bool
	quiet      bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "chaptermd",
	Short: "Convert DOCX and PDF documents into chaptered Markdown",
	Long: `chaptermd converts a large DOCX or PDF document into a directory of
chapter-sized Markdown files with extracted assets, an index.md table of
contents and a manifest.json describing the run.

Rendering is deterministic by default. With --llm each chapter is formatted
by an LLM provider and falls back to the deterministic renderer on failure.

Configuration is read from ~/.chaptermd/config.yaml (see "chaptermd config").`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chaptermd %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.chaptermd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newConfigLoader() (*config.Loader, error) {
	if configPath != "" {
		return config.NewLoaderWithPath(configPath), nil
	}
	return config.NewLoader()
}

// loadConfig reads the config file with environment overrides applied.
func loadConfig() (*config.Config, error) {
	loader, err := newConfigLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if model := os.Getenv(config.EnvModel); model != "" && os.Getenv(config.EnvProvider) == "" {
		cfg.DefaultProvider = service.DetectProvider(model)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// selectModel points cfg at model. An empty provider is derived from the
// model name.
func selectModel(cfg *config.Config, provider, model string) {
	if provider == "" && model != "" {
		provider = service.DetectProvider(model)
	}
	if provider != "" {
		cfg.DefaultProvider = provider
	}
	if model == "" {
		return
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.Provider)
	}
	p := cfg.Providers[cfg.DefaultProvider]
	p.Model = model
	cfg.Providers[cfg.DefaultProvider] = p
}
