package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roboco-io/chaptermd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage chaptermd configuration.

Config file location: ~/.chaptermd/config.yaml
(override with --config or CHAPTERMD_CONFIG)

Subcommands:
  show    show the current configuration
  init    create a default config file
  set     change a setting
  path    print the config file path`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	Long: `Show the configuration in effect.

Values from environment variables are listed separately. Defaults are shown
when no config file exists.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Create a default config file at ~/.chaptermd/config.yaml.

Fails when the file already exists unless --force is given.`,
	RunE: runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting and save the config file.

Supported keys:
` + settingKeys() + `

Examples:
  chaptermd config set default_provider openai
  chaptermd config set output.split_level 2
  chaptermd config set render.fallback dryrun`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		loader, err := newConfigLoader()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), loader.ConfigPath())
	},
}

var configForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("failed to initialize config loader: %w", err)
	}

	cfg, err := loader.LoadRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if loader.Exists() {
		fmt.Fprintf(out, "Config file: %s\n\n", loader.ConfigPath())
	} else {
		fmt.Fprintf(out, "Config file: (defaults)\n\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintln(out, string(data))

	fmt.Fprintln(out, "Environment:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	envVars := []struct {
		key   string
		desc  string
		value string
	}{
		{config.EnvLLM, "enable LLM formatting", os.Getenv(config.EnvLLM)},
		{config.EnvProvider, "LLM provider", os.Getenv(config.EnvProvider)},
		{config.EnvModel, "model (selects its provider)", os.Getenv(config.EnvModel)},
		{config.EnvDryRun, "dry run", os.Getenv(config.EnvDryRun)},
		{config.EnvSplitLevel, "split level", os.Getenv(config.EnvSplitLevel)},
		{"ANTHROPIC_API_KEY", "Anthropic API key", maskAPIKey(os.Getenv("ANTHROPIC_API_KEY"))},
		{"OPENAI_API_KEY", "OpenAI API key", maskAPIKey(os.Getenv("OPENAI_API_KEY"))},
		{"GOOGLE_API_KEY", "Google API key", maskAPIKey(os.Getenv("GOOGLE_API_KEY"))},
		{"UPSTAGE_API_KEY", "Upstage API key", maskAPIKey(os.Getenv("UPSTAGE_API_KEY"))},
		{"OLLAMA_HOST", "Ollama host", os.Getenv("OLLAMA_HOST")},
	}
	for _, ev := range envVars {
		status := "(not set)"
		if ev.value != "" {
			status = ev.value
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", ev.key, ev.desc, status)
	}
	return w.Flush()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("failed to initialize config loader: %w", err)
	}

	if loader.Exists() && !configForce {
		return fmt.Errorf("config file already exists: %s\nuse --force to overwrite it", loader.ConfigPath())
	}

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file created: %s\n", loader.ConfigPath())
	return nil
}

type setting func(cfg *config.Config, value string) error

func boolSetting(field func(*config.Config) *bool) setting {
	return func(cfg *config.Config, value string) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		*field(cfg) = v
		return nil
	}
}

func intSetting(field func(*config.Config) *int) setting {
	return func(cfg *config.Config, value string) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		*field(cfg) = v
		return nil
	}
}

func stringSetting(field func(*config.Config) *string, allowed ...string) setting {
	return func(cfg *config.Config, value string) error {
		if len(allowed) > 0 && !contains(allowed, value) {
			return fmt.Errorf("invalid value: %s (supported: %s)", value, strings.Join(allowed, ", "))
		}
		*field(cfg) = value
		return nil
	}
}

var settings = map[string]setting{
	"default_provider": stringSetting(func(c *config.Config) *string { return &c.DefaultProvider },
		"anthropic", "openai", "gemini", "ollama"),
	"format.temperature": func(cfg *config.Config, value string) error {
		temp, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature: %s", value)
		}
		if temp < 0 || temp > 2 {
			return fmt.Errorf("temperature must be within 0.0-2.0: %f", temp)
		}
		cfg.Format.Temperature = temp
		return nil
	},
	"format.language":        stringSetting(func(c *config.Config) *string { return &c.Format.Language }),
	"format.max_tokens":      intSetting(func(c *config.Config) *int { return &c.Format.MaxTokens }),
	"output.split_level":     intSetting(func(c *config.Config) *int { return &c.Output.SplitLevel }),
	"output.assets_dir":      stringSetting(func(c *config.Config) *string { return &c.Output.AssetsDir }),
	"output.chapters_dir":    stringSetting(func(c *config.Config) *string { return &c.Output.ChaptersDir }),
	"output.chapter_pattern": stringSetting(func(c *config.Config) *string { return &c.Output.ChapterPattern }),
	"output.frontmatter":     boolSetting(func(c *config.Config) *bool { return &c.Output.FrontMatter }),
	"output.nav":             boolSetting(func(c *config.Config) *bool { return &c.Output.Navigation }),
	"output.validate":        boolSetting(func(c *config.Config) *bool { return &c.Output.RunValidators }),
	"output.strip_toc":       boolSetting(func(c *config.Config) *bool { return &c.Output.StripTOC }),
	"output.locale":          stringSetting(func(c *config.Config) *string { return &c.Output.Locale }),
	"render.use_llm":         boolSetting(func(c *config.Config) *bool { return &c.Render.UseLLM }),
	"render.dry_run":         boolSetting(func(c *config.Config) *bool { return &c.Render.DryRun }),
	"render.concurrency":     intSetting(func(c *config.Config) *int { return &c.Render.Concurrency }),
	"render.fallback": stringSetting(func(c *config.Config) *string { return &c.Render.Fallback },
		config.FallbackDeterministic, config.FallbackDryRun, config.FallbackAbort),
	"parser.engine": stringSetting(func(c *config.Config) *string { return &c.Parser.Engine },
		config.EngineNative, config.EngineUpstage),
	"parser.extract_images": boolSetting(func(c *config.Config) *bool { return &c.Parser.ExtractImages }),
	"server.addr":           stringSetting(func(c *config.Config) *string { return &c.Server.Addr }),
}

func settingKeys() string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, "  "+k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "\n")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	set, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s\nsupported keys:\n%s", key, settingKeys())
	}

	loader, err := newConfigLoader()
	if err != nil {
		return fmt.Errorf("failed to initialize config loader: %w", err)
	}

	cfg, err := loader.LoadRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s = %s\n", key, value)
	return nil
}

func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
