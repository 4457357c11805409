package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roboco-io/chaptermd/internal/llm"
	"github.com/roboco-io/chaptermd/internal/service"
)

type providerInfo struct {
	Name        string
	Description string
}

var providers = []providerInfo{
	{Name: "anthropic", Description: "Anthropic Claude API"},
	{Name: "openai", Description: "OpenAI API"},
	{Name: "gemini", Description: "Google Gemini API"},
	{Name: "ollama", Description: "Local Ollama server"},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List LLM providers",
	Long: `List the LLM providers available for chapter formatting.

A provider is ready when its API key is set in the config file or in its
environment variable. Ollama runs locally and needs no key.

Examples:
  chaptermd convert book.docx --llm --provider anthropic
  chaptermd convert book.docx --llm --model gpt-4o`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry := service.NewRegistry(cfg)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tENV\tSTATUS\tDESCRIPTION")
	for _, p := range providers {
		model := ""
		if pc, ok := cfg.GetProvider(p.Name); ok {
			model = pc.Model
		}
		name := p.Name
		if name == cfg.DefaultProvider {
			name += " *"
		}
		env := service.EnvKey(p.Name)
		if env == "" {
			env = "OLLAMA_HOST"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, model, env, checkProviderStatus(registry, p.Name), p.Description)
	}
	return w.Flush()
}

// checkProviderStatus reports whether the named provider resolves.
func checkProviderStatus(registry *llm.Registry, name string) string {
	if _, err := registry.Resolve(name); err != nil {
		return "missing key"
	}
	return "ready"
}

