package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Embed     EmbedConfig     `yaml:"embed" mapstructure:"embed"`
	Ask       AskConfig       `yaml:"ask" mapstructure:"ask"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RunGate mirrors the legacy RUN_* control variables. The gated job
// executes only when the variable is exactly "true" (case-insensitive);
// any other value, or unset, means a clean no-op.
type RunGate string

// IsSet reports whether the variable was set at all.
func (g RunGate) IsSet() bool { return g != "" }

// Enabled reports whether the gate allows the job to run.
func (g RunGate) Enabled() bool { return strings.EqualFold(string(g), "true") }

// StoreConfig configures the Postgres backend and the destination tables.
type StoreConfig struct {
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	Database     string `yaml:"database" mapstructure:"database"`
	User         string `yaml:"user" mapstructure:"user"`
	Password     string `yaml:"password" mapstructure:"password"`
	ArxivTable   string `yaml:"arxiv_table" mapstructure:"arxiv_table"`
	ScholarTable string `yaml:"gscholar_table" mapstructure:"gscholar_table"`
}

// DSN returns the connection string, preferring an explicit database_url
// over the discrete connection parts.
func (s StoreConfig) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.User, s.Password),
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:   s.Database,
	}
	return u.String()
}

// TableFor resolves the destination table for a paper source. A selected
// source without a configured table is a startup error, not a fallback.
func (s StoreConfig) TableFor(source string) (string, error) {
	switch source {
	case "arxiv":
		if s.ArxivTable == "" {
			return "", eris.New("config: arxiv table name not set (ARXIV_TABLE)")
		}
		return s.ArxivTable, nil
	case "gscholar":
		if s.ScholarTable == "" {
			return "", eris.New("config: gscholar table name not set (GSCHOLAR_TABLE)")
		}
		return s.ScholarTable, nil
	default:
		return "", eris.Errorf("config: unknown paper source %q", source)
	}
}

// OpenAIConfig holds OpenAI API settings for embeddings and completions.
type OpenAIConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	EmbedModel string `yaml:"embed_model" mapstructure:"embed_model"`
	ChatModel  string `yaml:"chat_model" mapstructure:"chat_model"`
}

// AnthropicConfig holds Anthropic API settings (alternative answer backend).
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ScrapeConfig configures the ingestion job.
type ScrapeConfig struct {
	Run           RunGate `yaml:"run" mapstructure:"run"`
	Source        string  `yaml:"source" mapstructure:"source"`
	Query         string  `yaml:"query" mapstructure:"query"`
	Pages         int     `yaml:"pages" mapstructure:"pages"`
	Workers       int     `yaml:"workers" mapstructure:"workers"` // 0 = NumCPU
	BatchSize     int     `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryWaitSecs int     `yaml:"retry_wait_secs" mapstructure:"retry_wait_secs"`
	SourcesFile   string  `yaml:"sources_file" mapstructure:"sources_file"`
}

// EmbedConfig configures the embedding backfill job.
type EmbedConfig struct {
	Run       RunGate `yaml:"run" mapstructure:"run"`
	Source    string  `yaml:"source" mapstructure:"source"`
	BatchSize int     `yaml:"batch_size" mapstructure:"batch_size"`
	PaceMs    int     `yaml:"pace_ms" mapstructure:"pace_ms"`
}

// AskConfig configures question answering.
type AskConfig struct {
	Source                  string `yaml:"source" mapstructure:"source"`
	Provider                string `yaml:"provider" mapstructure:"provider"` // "openai" or "anthropic"
	TopN                    int    `yaml:"top_n" mapstructure:"top_n"`
	MaxContextWords         int    `yaml:"max_context_words" mapstructure:"max_context_words"`
	BreakerFailureThreshold int    `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the question-form HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PAPERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names recognized alongside the prefixed forms.
	bindLegacyEnv(v)

	// Defaults
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5001)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("scrape.source", "arxiv")
	v.SetDefault("scrape.pages", 1)
	v.SetDefault("scrape.batch_size", 100)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.retry_wait_secs", 3)
	v.SetDefault("embed.source", "arxiv")
	v.SetDefault("embed.batch_size", 500)
	v.SetDefault("embed.pace_ms", 1000)
	v.SetDefault("ask.source", "arxiv")
	v.SetDefault("ask.provider", "openai")
	v.SetDefault("ask.top_n", 20)
	v.SetDefault("ask.max_context_words", 30000)
	v.SetDefault("ask.breaker_failure_threshold", 5)
	v.SetDefault("ask.breaker_reset_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// bindLegacyEnv maps the control variables the batch jobs have always
// recognized onto their config keys.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"scrape.run":           "RUN_SCRAPER",
		"embed.run":            "RUN_EMBED_GEN",
		"store.arxiv_table":    "ARXIV_TABLE",
		"store.gscholar_table": "GSCHOLAR_TABLE",
		"store.host":           "POSTGRES_HOST",
		"store.port":           "POSTGRES_PORT",
		"store.database":       "POSTGRES_DB",
		"store.user":           "POSTGRES_USER",
		"store.password":       "POSTGRES_PASSWORD",
		"openai.key":           "OPENAI_API_KEY",
		"anthropic.key":        "ANTHROPIC_API_KEY",
	}
	for key, env := range legacy {
		prefixed := "PAPERLINE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// Validate checks that the configuration required by the given mode is
// present. Modes: scrape, embed, ask, serve, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	needStore := func() {
		if c.Store.DatabaseURL == "" && (c.Store.Database == "" || c.Store.User == "") {
			problems = append(problems, "store connection is required (database_url or POSTGRES_* parts)")
		}
	}
	needTable := func(source string) {
		switch source {
		case "arxiv":
			if c.Store.ArxivTable == "" {
				problems = append(problems, "store.arxiv_table is required (ARXIV_TABLE)")
			}
		case "gscholar":
			if c.Store.ScholarTable == "" {
				problems = append(problems, "store.gscholar_table is required (GSCHOLAR_TABLE)")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown paper source %q", source))
		}
	}

	switch mode {
	case "scrape":
		needStore()
		needTable(c.Scrape.Source)
	case "embed":
		needStore()
		needTable(c.Embed.Source)
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required")
		}
	case "ask", "serve":
		needStore()
		needTable(c.Ask.Source)
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required")
		}
		if c.Ask.Provider == "anthropic" && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "migrate":
		needStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
