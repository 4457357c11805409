package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/diag"
	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/pipeline"
	"github.com/roboco-io/chaptermd/internal/service"
)

var (
	inspectSplitLevel int
	inspectParser     string
	inspectKeepTOC    bool
	inspectJSON       bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the chapter plan of a document without writing files",
	Long: `Parse, normalize and split a document, then print the chapters a
conversion would write: ordinal, file name, title and block count.

Nothing is written. Diagnostics found while normalizing are listed too.

Examples:
  chaptermd inspect book.docx
  chaptermd inspect book.pdf --split-level 2 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectSplitLevel, "split-level", 0, "heading level that starts a chapter (1-6)")
	inspectCmd.Flags().StringVar(&inspectParser, "parser", "", "parser engine (native, upstage)")
	inspectCmd.Flags().BoolVar(&inspectKeepTOC, "keep-toc", false, "keep a leading table of contents")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the plan as JSON")

	rootCmd.AddCommand(inspectCmd)
}

type inspectReport struct {
	Document    ir.Metadata               `json:"document"`
	Chapters    []pipeline.PlannedChapter `json:"chapters"`
	Diagnostics []diag.Entry              `json:"diagnostics"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("split-level") {
		cfg.Output.SplitLevel = inspectSplitLevel
	}
	if cmd.Flags().Changed("parser") {
		cfg.Parser.Engine = inspectParser
	}
	if cmd.Flags().Changed("keep-toc") {
		cfg.Output.StripTOC = !inspectKeepTOC
	}

	svc, err := service.New(cfg, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	doc, planned, diags, err := svc.Plan(cmd.Context(), inputPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if diags == nil {
			diags = []diag.Entry{}
		}
		return enc.Encode(inspectReport{Document: doc.Metadata, Chapters: planned, Diagnostics: diags})
	}

	title := doc.Metadata.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(out, "%s [%s, %s]\n", title, doc.Metadata.Source, doc.Metadata.Format)
	fmt.Fprintf(out, "%d chapters at heading level %d\n\n", len(planned), cfg.Output.SplitLevel)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tTITLE\tBLOCKS\tIMAGES")
	for _, ch := range planned {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", ch.Ordinal, ch.File, ch.Title, ch.Blocks, ch.Images)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(diags) > 0 {
		fmt.Fprintln(out)
		for _, d := range diags {
			fmt.Fprintf(out, "%s\n", d)
		}
	}
	return nil
}
