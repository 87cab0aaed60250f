// Package config loads and validates ghwatch settings from viper.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/joescharf/ghwatch/internal/models"
	"github.com/joescharf/ghwatch/internal/summarize"
)

// EnvPrefix is prepended to every config key when read from the environment.
const EnvPrefix = "GHWATCH"

const (
	DefaultMaxItemsPerRun = 5
	DefaultCapScope       = "repo"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultMaxBodyChars   = 2000
)

// Config is the full set of ghwatch settings.
type Config struct {
	Repos          []models.RepoConfig `mapstructure:"repos" validate:"required,min=1,unique=Name,dive"`
	State          StateConfig         `mapstructure:"state"`
	History        HistoryConfig       `mapstructure:"history"`
	MaxItemsPerRun int                 `mapstructure:"max_items_per_run" validate:"gte=1"`
	CapScope       string              `mapstructure:"cap_scope" validate:"oneof=repo repo_type"`
	Fetch          FetchConfig         `mapstructure:"fetch"`
	Summarization  SummarizationConfig `mapstructure:"summarization"`
	Notifier       NotifierConfig      `mapstructure:"notifier"`
	GitHub         GitHubConfig        `mapstructure:"github"`
	Anthropic      APIKeyConfig        `mapstructure:"anthropic"`
	Gemini         APIKeyConfig        `mapstructure:"gemini"`
	OpenAI         APIKeyConfig        `mapstructure:"openai"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=json sqlite"`
	Path    string `mapstructure:"path" validate:"required"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path" validate:"required_if=Enabled true"`
}

type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"gte=0"`
	PageSize    int           `mapstructure:"page_size" validate:"gte=0,lte=100"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gte=0"`
}

type SummarizationConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Provider     string `mapstructure:"provider" validate:"oneof=none anthropic gemini openai"`
	Model        string `mapstructure:"model"`
	Language     string `mapstructure:"language"`
	MaxBodyChars int    `mapstructure:"max_body_chars" validate:"gte=0"`
	Concurrency  int    `mapstructure:"concurrency" validate:"gte=0"`
}

type NotifierConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url" validate:"omitempty,url"`
	SlackWebhookURL   string `mapstructure:"slack_webhook_url" validate:"omitempty,url"`
}

type GitHubConfig struct {
	Token      string `mapstructure:"token"`
	APIURL     string `mapstructure:"api_url" validate:"omitempty,url"`
	GraphQLURL string `mapstructure:"graphql_url" validate:"omitempty,url"`
}

type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Dir returns the default config directory, ~/.config/ghwatch.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ghwatch"), nil
}

// envAliases are unprefixed variables accepted in addition to the
// GHWATCH_ form, in priority order.
var envAliases = map[string][]string{
	"github.token":                 {"GITHUB_TOKEN", "MONITOR_GITHUB_PAT"},
	"anthropic.api_key":            {"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
	"gemini.api_key":               {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai.api_key":               {"OPENAI_API_KEY"},
	"notifier.discord_webhook_url": {"DISCORD_WEBHOOK_URL"},
	"notifier.slack_webhook_url":   {"SLACK_WEBHOOK_URL"},
}

// SetDefaults configures env handling and registers the default value of
// every key on v. dir is the config directory used for file defaults.
func SetDefaults(v *viper.Viper, dir string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	v.SetDefault("repos", []any{})
	v.SetDefault("state.backend", "json")
	v.SetDefault("state.path", filepath.Join(dir, "state.json"))
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", filepath.Join(dir, "history.db"))
	v.SetDefault("max_items_per_run", DefaultMaxItemsPerRun)
	v.SetDefault("cap_scope", DefaultCapScope)
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.page_size", 0)
	v.SetDefault("fetch.http_timeout", DefaultHTTPTimeout)
	v.SetDefault("summarization.enabled", false)
	v.SetDefault("summarization.provider", string(summarize.ProviderNone))
	v.SetDefault("summarization.model", "")
	v.SetDefault("summarization.language", summarize.DefaultLanguage)
	v.SetDefault("summarization.max_body_chars", DefaultMaxBodyChars)
	v.SetDefault("summarization.concurrency", 0)
	v.SetDefault("github.api_url", "")
	v.SetDefault("github.graphql_url", "")
}

// envName returns the GHWATCH_ variable for key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// EnvNames returns every environment variable that can set key.
func EnvNames(key string) []string {
	return append([]string{envName(key)}, envAliases[key]...)
}

// Load decodes v into a Config, fills derived defaults and validates it.
// Warnings about adjusted settings are logged to logger.
func Load(v *viper.Viper, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		reposFromJSON,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	return &cfg, nil
}

var repoSliceType = reflect.TypeOf([]models.RepoConfig(nil))

// reposFromJSON lets GHWATCH_REPOS carry the repository list as a JSON
// array, e.g. [{"name":"o/r","monitor_types":["issue"]}].
func reposFromJSON(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != repoSliceType {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return []models.RepoConfig{}, nil
	}
	var raw []struct {
		Name         string              `json:"name"`
		MonitorTypes []models.SourceType `json:"monitor_types"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("repos must be a JSON array: %w", err)
	}
	repos := make([]models.RepoConfig, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, models.RepoConfig{Name: r.Name, MonitorTypes: r.MonitorTypes})
	}
	return repos, nil
}

// Validate normalizes cfg in place and reports the first invalid setting.
// The returned warnings describe settings that were adjusted.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	c.Summarization.Provider = strings.ToLower(strings.TrimSpace(c.Summarization.Provider))
	switch c.Summarization.Provider {
	case "":
		c.Summarization.Provider = string(summarize.ProviderNone)
	case "claude":
		c.Summarization.Provider = string(summarize.ProviderAnthropic)
	}
	if c.Fetch.PageSize == 0 {
		c.Fetch.PageSize = min(c.MaxItemsPerRun, 100)
	}

	if c.GitHub.Token == "" {
		return nil, fmt.Errorf("missing github token: set github.token, %s", strings.Join(EnvNames("github.token"), " or "))
	}
	if len(c.Repos) == 0 {
		return nil, errors.New("no repositories configured: add at least one entry under repos")
	}
	if c.Notifier.DiscordWebhookURL == "" && c.Notifier.SlackWebhookURL == "" {
		return nil, errors.New("at least one notifier webhook URL is required (notifier.discord_webhook_url or notifier.slack_webhook_url)")
	}

	if err := validate.Struct(c); err != nil {
		return nil, describe(err)
	}

	if c.Summarization.Enabled {
		p := summarize.Provider(c.Summarization.Provider)
		if p == summarize.ProviderNone {
			warnings = append(warnings, "summarization is enabled but provider is 'none'; disabling summarization")
			c.Summarization.Enabled = false
		} else if c.APIKey(p) == "" {
			key := string(p) + ".api_key"
			return nil, fmt.Errorf("%s summarization requires %s (or %s)", p, key, strings.Join(EnvNames(key), ", "))
		}
	}
	return warnings, nil
}

// APIKey returns the configured key for an LLM provider.
func (c *Config) APIKey(p summarize.Provider) string {
	switch p {
	case summarize.ProviderAnthropic:
		return c.Anthropic.APIKey
	case summarize.ProviderGemini:
		return c.Gemini.APIKey
	case summarize.ProviderOpenAI:
		return c.OpenAI.APIKey
	}
	return ""
}

// ProviderConfig returns the generator settings for the selected provider.
func (c *Config) ProviderConfig() summarize.ProviderConfig {
	p := summarize.Provider(c.Summarization.Provider)
	return summarize.ProviderConfig{
		Provider: p,
		Model:    c.Summarization.Model,
		APIKey:   c.APIKey(p),
	}
}

var (
	validate     = newValidator()
	repoNameExpr = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*/[A-Za-z0-9_.-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("repo_name", func(fl validator.FieldLevel) bool {
		return repoNameExpr.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("source_type", func(fl validator.FieldLevel) bool {
		return models.SourceType(fl.Field().String()).Valid()
	})
	return v
}

// describe turns the first validation failure into a config error that
// names the key by its config path.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("invalid config: %w", err)
	}
	fe := verrs[0]
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "repo_name":
		return fmt.Errorf("invalid config: %s: %q is not an owner/name repository", field, fe.Value())
	case "source_type":
		return fmt.Errorf("invalid config: %s: unknown source type %q", field, fe.Value())
	case "oneof":
		return fmt.Errorf("invalid config: %s: %v is not one of: %s", field, fe.Value(), fe.Param())
	case "unique":
		return fmt.Errorf("invalid config: %s: %s is listed more than once", field, duplicateRepo(fe.Value()))
	case "required", "min":
		return fmt.Errorf("invalid config: %s is required", field)
	}
	if fe.Param() != "" {
		return fmt.Errorf("invalid config: %s failed on '%s=%s' validation", field, fe.Tag(), fe.Param())
	}
	return fmt.Errorf("invalid config: %s failed on '%s' validation", field, fe.Tag())
}

func duplicateRepo(v any) string {
	repos, _ := v.([]models.RepoConfig)
	seen := make(map[string]bool, len(repos))
	for _, rc := range repos {
		if seen[rc.Name] {
			return rc.Name
		}
		seen[rc.Name] = true
	}
	return "a repository"
}
