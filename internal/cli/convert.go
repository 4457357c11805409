package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/config"
	"github.com/roboco-io/chaptermd/internal/service"
)

var (
	convertOutput      string
	convertSplitLevel  int
	convertAssetsDir   string
	convertChaptersDir string
	convertPattern     string
	convertNoFront     bool
	convertNoNav       bool
	convertNoValidate  bool
	convertKeepTOC     bool
	convertLocale      string
	convertDryRun      bool
	convertUseLLM      bool
	convertProvider    string
	convertModel       string
	convertFallback    string
	convertConcurrency int
	convertParser      string
	convertNoImages    bool
	convertJSON        bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a document into chaptered Markdown",
	Long: `Convert a DOCX or PDF document into a directory of chapter files.

The document is split at headings of --split-level. Each chapter is written
to chapters/<NN>-<slug>.md, images to assets/<content-id>.<ext>, followed by
index.md and manifest.json.

Without --llm chapters are rendered deterministically. With --llm each
chapter is formatted by the configured provider; failed chapters fall back
according to --fallback (deterministic, dryrun, abort) and are marked as
degraded in the manifest.

Environment variables:
  CHAPTERMD_LLM=true         enable LLM formatting
  CHAPTERMD_PROVIDER=name    LLM provider (anthropic, openai, gemini, ollama)
  CHAPTERMD_MODEL=name       model name
  CHAPTERMD_DRY_RUN=true     write the intermediate HTML without calling a model
  CHAPTERMD_SPLIT_LEVEL=n    heading level that starts a chapter

Examples:
  chaptermd convert book.docx
  chaptermd convert book.pdf -o out/book --split-level 2
  chaptermd convert book.docx --llm --provider anthropic
  chaptermd convert scan.pdf --parser upstage`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOutput, "output", "o", "", "output directory (default: input name without extension)")
	f.IntVar(&convertSplitLevel, "split-level", 0, "heading level that starts a chapter (1-6)")
	f.StringVar(&convertAssetsDir, "assets-dir", "", "assets directory below the output root")
	f.StringVar(&convertChaptersDir, "chapters-dir", "", "chapters directory below the output root")
	f.StringVar(&convertPattern, "pattern", "", "chapter file name pattern ({ordinal}, {slug})")
	f.BoolVar(&convertNoFront, "no-frontmatter", false, "omit YAML front matter")
	f.BoolVar(&convertNoNav, "no-nav", false, "omit previous/next links")
	f.BoolVar(&convertNoValidate, "no-validate", false, "skip Markdown validation")
	f.BoolVar(&convertKeepTOC, "keep-toc", false, "keep a leading table of contents")
	f.StringVar(&convertLocale, "locale", "", "document locale when the source declares none")
	f.BoolVar(&convertDryRun, "dry-run", false, "write the intermediate HTML without calling a model")
	f.BoolVar(&convertUseLLM, "llm", false, "format chapters with an LLM provider")
	f.StringVar(&convertProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	f.StringVar(&convertModel, "model", "", "LLM model name")
	f.StringVar(&convertFallback, "fallback", "", "fallback when the LLM fails (deterministic, dryrun, abort)")
	f.IntVar(&convertConcurrency, "concurrency", 0, "chapters rendered in parallel")
	f.StringVar(&convertParser, "parser", "", "parser engine (native, upstage)")
	f.BoolVar(&convertNoImages, "no-images", false, "do not extract embedded images")
	f.BoolVar(&convertJSON, "json", false, "print the manifest to stdout")

	rootCmd.AddCommand(convertCmd)
}

// applyConvertFlags overrides cfg with the flags set on cmd.
func applyConvertFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("split-level") {
		cfg.Output.SplitLevel = convertSplitLevel
	}
	if changed("assets-dir") {
		cfg.Output.AssetsDir = convertAssetsDir
	}
	if changed("chapters-dir") {
		cfg.Output.ChaptersDir = convertChaptersDir
	}
	if changed("pattern") {
		cfg.Output.ChapterPattern = convertPattern
	}
	if changed("no-frontmatter") {
		cfg.Output.FrontMatter = !convertNoFront
	}
	if changed("no-nav") {
		cfg.Output.Navigation = !convertNoNav
	}
	if changed("no-validate") {
		cfg.Output.RunValidators = !convertNoValidate
	}
	if changed("keep-toc") {
		cfg.Output.StripTOC = !convertKeepTOC
	}
	if changed("locale") {
		cfg.Output.Locale = convertLocale
	}
	if changed("dry-run") {
		cfg.Render.DryRun = convertDryRun
	}
	if changed("llm") {
		cfg.Render.UseLLM = convertUseLLM
	}
	if changed("provider") || changed("model") {
		selectModel(cfg, convertProvider, convertModel)
	}
	if changed("fallback") {
		cfg.Render.Fallback = convertFallback
	}
	if changed("concurrency") {
		cfg.Render.Concurrency = convertConcurrency
	}
	if changed("parser") {
		cfg.Parser.Engine = convertParser
	}
	if changed("no-images") {
		cfg.Parser.ExtractImages = !convertNoImages
	}
}

// defaultOutputDir names the output directory after the input file.
func defaultOutputDir(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyConvertFlags(cmd, cfg)

	log := newLogger(cmd.ErrOrStderr())
	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}

	root := convertOutput
	if root == "" {
		root = defaultOutputDir(inputPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("converting", "input", inputPath, "output", root,
		"split_level", cfg.Output.SplitLevel, "llm", cfg.Render.UseLLM, "dry_run", cfg.Render.DryRun)

	report, err := svc.Convert(ctx, inputPath, root)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if convertJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report.Manifest)
	}
	if quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d chapters and %d assets to %s (%s)\n",
		report.Manifest.ChapterCount, report.Manifest.AssetCount, report.Root,
		report.Elapsed.Round(time.Millisecond))
	if report.Usage.TotalTokens > 0 {
		fmt.Fprintf(out, "LLM tokens: %d in, %d out\n", report.Usage.InputTokens, report.Usage.OutputTokens)
	}
	for _, ch := range report.Manifest.Chapters {
		if ch.Degraded {
			fmt.Fprintf(out, "  degraded: %s\n", ch.File)
		}
	}
	if verbose {
		for _, d := range report.Diagnostics {
			fmt.Fprintf(out, "  %s\n", d)
		}
	} else if n := len(report.Diagnostics); n > 0 {
		fmt.Fprintf(out, "%d diagnostics recorded in manifest.json (use -v to list)\n", n)
	}
	return nil
}
