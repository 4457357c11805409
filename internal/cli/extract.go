package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/ir"
	"github.com/roboco-io/chaptermd/internal/normalize"
	"github.com/roboco-io/chaptermd/internal/service"
)

var (
	extractOutput      string
	extractFormat      string
	extractNormalize   bool
	extractParser      string
	extractPrettyPrint bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract the intermediate representation of a document",
	Long: `Parse a document and print its intermediate representation (IR)
without splitting or rendering it.

The output is JSON or a plain text outline. With --normalize the IR is
printed after the normalizer has run.

Examples:
  chaptermd extract book.docx
  chaptermd extract book.docx -o book.json
  chaptermd extract book.pdf --format text --normalize`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "output format (json, text)")
	extractCmd.Flags().BoolVar(&extractNormalize, "normalize", false, "print the normalized IR")
	extractCmd.Flags().StringVar(&extractParser, "parser", "", "parser engine (native, upstage)")
	extractCmd.Flags().BoolVar(&extractPrettyPrint, "pretty", true, "indent JSON output")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parser") {
		cfg.Parser.Engine = extractParser
	}
	log := newLogger(cmd.ErrOrStderr())
	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}

	doc, err := svc.Parse(cmd.Context(), inputPath)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	if extractNormalize {
		normalized, diags := normalize.New(normalize.Options{StripTOC: cfg.Output.StripTOC}).Run(doc)
		for _, d := range diags {
			log.Info("normalize", "diagnostic", d.String())
		}
		doc = normalized
	}

	output, err := formatOutput(doc, extractFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if extractOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	}
	if err := os.WriteFile(extractOutput, []byte(output), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "IR written to %s\n", extractOutput)
	}
	return nil
}

func formatOutput(doc *ir.Document, format string) (string, error) {
	switch format {
	case "json":
		var data []byte
		var err error
		if extractPrettyPrint {
			data, err = json.MarshalIndent(doc, "", "  ")
		} else {
			data, err = json.Marshal(doc)
		}
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "text":
		return formatAsText(doc), nil

	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatAsText prints a plain outline: metadata, then one entry per block.
func formatAsText(doc *ir.Document) string {
	var sb strings.Builder

	if doc.Metadata.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", doc.Metadata.Title)
	}
	if doc.Metadata.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n", doc.Metadata.Author)
	}
	if sb.Len() > 0 {
		sb.WriteString("\n---\n\n")
	}

	for i := range doc.Content {
		writeTextBlock(&sb, &doc.Content[i], "")
	}
	return sb.String()
}

func writeTextBlock(sb *strings.Builder, b *ir.Block, indent string) {
	switch b.Type {
	case ir.BlockTypeHeading:
		fmt.Fprintf(sb, "%s%s %s\n\n", indent, strings.Repeat("#", b.Heading.Level), b.PlainText())
	case ir.BlockTypeTable:
		sb.WriteString(formatTableAsText(b.Table, indent) + "\n")
	case ir.BlockTypeImage:
		alt := b.Image.Alt
		if alt == "" && b.Image.Ref != nil {
			alt = b.Image.Ref.ID
		}
		fmt.Fprintf(sb, "%s[image: %s]\n\n", indent, alt)
	case ir.BlockTypeList:
		sb.WriteString(formatListAsText(b.List, indent) + "\n")
	case ir.BlockTypeThematicBreak:
		sb.WriteString(indent + "---\n\n")
	default:
		if text := b.PlainText(); text != "" {
			sb.WriteString(indent + text + "\n\n")
		}
	}
}

func formatTableAsText(table *ir.TableBlock, indent string) string {
	var sb strings.Builder
	for i, row := range table.Cells {
		cells := make([]string, len(row))
		for j := range row {
			cells[j] = row[j].Text()
		}
		sb.WriteString(indent + strings.Join(cells, " | ") + "\n")
		if i == 0 && table.HasHeader {
			sb.WriteString(indent + strings.TrimSuffix(strings.Repeat("--- | ", len(row)), " | ") + "\n")
		}
	}
	return sb.String()
}

func formatListAsText(list *ir.ListBlock, indent string) string {
	var sb strings.Builder
	n := max(list.Start, 1)
	for i, item := range list.Items {
		prefix := "- "
		if list.Ordered {
			prefix = fmt.Sprintf("%d. ", n+i)
		}
		for j := range item.Blocks {
			b := &item.Blocks[j]
			if b.Type == ir.BlockTypeList {
				sb.WriteString(formatListAsText(b.List, indent+"  "))
				continue
			}
			if j == 0 {
				sb.WriteString(indent + prefix + b.PlainText() + "\n")
				continue
			}
			sb.WriteString(indent + "  " + b.PlainText() + "\n")
		}
	}
	return sb.String()
}
