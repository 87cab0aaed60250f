package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/ghwatch/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = config.Dir

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage ghwatch configuration.

Running bare 'ghwatch config' is the same as 'ghwatch config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configuration is complete and valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configValidateRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# ghwatch configuration
# See: ghwatch config show (for effective values and sources)

# Repositories to watch. monitor_types: issue, issue_comment, pull_request,
# pull_request_review_comment, discussion, discussion_comment
repos:
  - name: owner/repo
    monitor_types: [issue, pull_request]

# Maximum notifications per run, applied per cap_scope group (default: 5)
max_items_per_run: {{ .MaxItemsPerRun }}

# Cap group: "repo" or "repo_type" (default: "repo")
cap_scope: {{ .CapScope }}

# Watermark storage
state:
  # "json" or "sqlite" (default: "json")
  backend: {{ .StateBackend }}
  path: {{ .StatePath }}

# Run history (SQLite)
history:
  enabled: {{ .HistoryEnabled }}
  db_path: {{ .HistoryDBPath }}

fetch:
  # Parallel fetch jobs, 0 = one per job (default: 0)
  concurrency: {{ .FetchConcurrency }}
  # Request timeout (default: 30s)
  http_timeout: {{ .FetchHTTPTimeout }}

# GitHub token: set github.token here or GHWATCH_GITHUB_TOKEN, GITHUB_TOKEN
# or MONITOR_GITHUB_PAT in the environment.
github:
  token: ""

# Webhooks: at least one is required. Also DISCORD_WEBHOOK_URL and
# SLACK_WEBHOOK_URL.
notifier:
  discord_webhook_url: ""
  slack_webhook_url: ""

summarization:
  enabled: {{ .SummarizationEnabled }}
  # "none", "anthropic", "gemini" or "openai" (default: "none")
  provider: {{ .SummarizationProvider }}
  # Empty uses the provider default
  model: "{{ .SummarizationModel }}"
  language: {{ .SummarizationLanguage }}

# LLM keys, also ANTHROPIC_API_KEY, GOOGLE_API_KEY and OPENAI_API_KEY
# anthropic:
#   api_key: ""
# gemini:
#   api_key: ""
# openai:
#   api_key: ""
`

type configTemplateData struct {
	MaxItemsPerRun        int
	CapScope              string
	StateBackend          string
	StatePath             string
	HistoryEnabled        bool
	HistoryDBPath         string
	FetchConcurrency      int
	FetchHTTPTimeout      string
	SummarizationEnabled  bool
	SummarizationProvider string
	SummarizationModel    string
	SummarizationLanguage string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		MaxItemsPerRun:        viper.GetInt("max_items_per_run"),
		CapScope:              viper.GetString("cap_scope"),
		StateBackend:          viper.GetString("state.backend"),
		StatePath:             viper.GetString("state.path"),
		HistoryEnabled:        viper.GetBool("history.enabled"),
		HistoryDBPath:         viper.GetString("history.db_path"),
		FetchConcurrency:      viper.GetInt("fetch.concurrency"),
		FetchHTTPTimeout:      viper.GetDuration("fetch.http_timeout").String(),
		SummarizationEnabled:  viper.GetBool("summarization.enabled"),
		SummarizationProvider: viper.GetString("summarization.provider"),
		SummarizationModel:    viper.GetString("summarization.model"),
		SummarizationLanguage: viper.GetString("summarization.language"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may come to hold secrets.
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "max_items_per_run"},
	{Key: "cap_scope"},
	{Key: "state.backend"},
	{Key: "state.path"},
	{Key: "history.enabled"},
	{Key: "history.db_path"},
	{Key: "fetch.concurrency"},
	{Key: "fetch.page_size"},
	{Key: "fetch.http_timeout"},
	{Key: "summarization.enabled"},
	{Key: "summarization.provider"},
	{Key: "summarization.model"},
	{Key: "summarization.language"},
	{Key: "summarization.max_body_chars"},
	{Key: "github.token", Secret: true},
	{Key: "github.api_url"},
	{Key: "notifier.discord_webhook_url", Secret: true},
	{Key: "notifier.slack_webhook_url", Secret: true},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "gemini.api_key", Secret: true},
	{Key: "openai.api_key", Secret: true},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		cfgPath = used
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	var repos []map[string]any
	_ = viper.UnmarshalKey("repos", &repos)
	fmt.Fprintf(ui.Out, "  %-30s %d  %s\n", "repos", len(repos), detectSource("repos", fileValues))
	for _, k := range configKeys {
		val := fmt.Sprint(viper.Get(k.Key))
		if k.Secret {
			val = maskSecret(val)
		}
		source := detectSource(k.Key, fileValues)
		fmt.Fprintf(ui.Out, "  %-30s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// maskSecret keeps only enough of a secret to recognise it.
func maskSecret(s string) string {
	switch {
	case s == "" || s == "<nil>":
		return "(unset)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from. The first
// set environment variable that can carry key wins.
func detectSource(key string, fileValues map[string]bool) string {
	for _, env := range config.EnvNames(key) {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			return fmt.Sprintf("(env: %s)", env)
		}
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configValidateRun() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names := make([]string, len(cfg.Repos))
	for i, r := range cfg.Repos {
		names[i] = r.Name
	}
	ui.Success("Configuration is valid")
	ui.Info("Repositories: %s", strings.Join(names, ", "))
	if cfg.Summarization.Enabled {
		ui.Info("Summarization: %s", cfg.Summarization.Provider)
	}
	return nil
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set: set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'ghwatch config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
