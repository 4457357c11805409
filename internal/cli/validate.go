package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/validate"
)

var validateSkip []string

var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Check Markdown chapter files",
	Long: `Run the chapter validation rules over Markdown files.

Each path may be a file or a directory; directories are searched for .md
files recursively. The command fails when any rule reports a finding.

Rules:
  single-h1        one H1 that matches the front matter title
  heading-jump     heading levels increase one step at a time
  heading-spacing  a blank line follows every heading
  code-fence       code fences are closed
  table-caption    table captions are numbered ("Table 3: Prices")
  image-target     images have a target that was exported

Examples:
  chaptermd validate out/book/chapters
  chaptermd validate out/book --skip heading-jump`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateSkip, "skip", nil, "rules to skip")

	rootCmd.AddCommand(validateCmd)
}

// markdownFiles expands paths into the Markdown files they name.
func markdownFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := markdownFiles(args)
	if err != nil {
		return err
	}

	rules := validate.Default().Without(validateSkip...)
	out := cmd.OutOrStdout()
	total := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		findings := rules.Validate(data)
		total += len(findings)
		for _, f := range findings {
			fmt.Fprintf(out, "%s: %s\n", file, f)
		}
	}

	if total > 0 {
		return fmt.Errorf("%d findings in %d files", total, len(files))
	}
	if !quiet {
		fmt.Fprintf(out, "%d files checked, no findings\n", len(files))
	}
	return nil
}
