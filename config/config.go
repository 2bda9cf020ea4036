package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the stackpilot services.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Storage StorageConfig `mapstructure:"storage"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

// Normalize applies defaults for unset server values.
func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":10001"
	}
	if s.Address[0] != ':' && !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 90 * time.Second
	}
	if len(s.AllowOrigins) == 0 {
		s.AllowOrigins = []string{"*"}
	}
	return s
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret required")
	}
	return nil
}

// LLM provider identifiers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default models per provider.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// LLMConfig selects and configures the generative backend.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini or openai
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Grounding   bool          `mapstructure:"grounding"` // let the model consult web search before answering
}

// Normalize fills in per-provider model defaults.
func (l LLMConfig) Normalize() LLMConfig {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = ProviderGemini
	}
	if l.Model == "" {
		switch l.Provider {
		case ProviderOpenAI:
			l.Model = DefaultOpenAIModel
		default:
			l.Model = DefaultGeminiModel
		}
	}
	if l.VisionModel == "" {
		l.VisionModel = l.Model
	}
	if l.Temperature < 0 {
		l.Temperature = 0
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 4096
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	return l
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, l.Provider)
	}
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if l.Grounding && l.Provider == ProviderOpenAI {
		return fmt.Errorf("llm.grounding is only supported by the %s provider", ProviderGemini)
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

// Enabled reports whether a Redis endpoint was configured. Redis is optional:
// without it the catalog is read straight from Postgres and the feed
// scheduler runs without a distributed lock.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func (r RedisConfig) Normalize() RedisConfig {
	if r.Port == "" {
		r.Port = "6379"
	}
	if r.Timeout <= 0 {
		r.Timeout = 5 * time.Second
	}
	if r.CatalogTTL <= 0 {
		r.CatalogTTL = 5 * time.Minute
	}
	return r
}

func (r RedisConfig) Validate() error {
	if r.Enabled() && strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.DB < 0 {
		return fmt.Errorf("storage.redis.db cannot be negative")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, preferring the explicit url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// ScraperConfig controls the headless-browser page capture.
type ScraperConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
	Quality   int           `mapstructure:"screenshot_quality"`
	Hosts     HostPolicy    `mapstructure:"hosts"`
}

func (s ScraperConfig) Normalize() ScraperConfig {
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MaxChars <= 0 {
		s.MaxChars = 12000
	}
	if strings.TrimSpace(s.UserAgent) == "" {
		s.UserAgent = "StackpilotBot/1.0 (+https://stackpilot.dev/bot)"
	}
	if s.Quality <= 0 || s.Quality > 100 {
		s.Quality = 80
	}
	s.Hosts = s.Hosts.Normalize()
	return s
}

// LoadConfig reads configuration from path, or searches the usual locations
// for a config.json when path is empty. Environment variables prefixed with
// STACKPILOT_ override file values (storage.postgres.url ->
// STACKPILOT_STORAGE_POSTGRES_URL).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.grounding", false)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("feeds.schedule", "@hourly")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("STACKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v,
		"server.jwt_secret",
		"llm.api_key",
		"storage.postgres.url",
		"storage.redis.host",
		"storage.redis.password",
	)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a missing file is fine when everything comes from the environment
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults across all sections.
func (c *Config) Normalize() {
	c.General.LogLevel = strings.ToLower(strings.TrimSpace(c.General.LogLevel))
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	c.Server = c.Server.Normalize()
	c.LLM = c.LLM.Normalize()
	c.Storage.Redis = c.Storage.Redis.Normalize()
	c.Scraper = c.Scraper.Normalize()
	c.Feeds = c.Feeds.Normalize()
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.Server.Validate,
		c.LLM.Validate,
		c.Storage.Postgres.Validate,
		c.Storage.Redis.Validate,
		c.Scraper.Hosts.Validate,
		c.Feeds.Validate,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// AutomaticEnv only resolves keys viper already knows about, so secrets that
// usually never appear in the file are bound explicitly.
func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
