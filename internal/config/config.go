// Package config loads council settings from .env, an optional council.yaml
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LLM_COUNCIL_SERVER_PORT.
const EnvPrefix = "LLM_COUNCIL"

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

var (
	// ErrMissingAPIKey is returned when no OpenRouter API key is configured.
	ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY environment variable is required")

	// DefaultCouncilModels answer and review every question.
	DefaultCouncilModels = []string{
		"anthropic/claude-sonnet-4-5",
		"anthropic/claude-opus-4-1",
		"anthropic/claude-opus-4-1",
		"google/gemini-3-pro",
	}
)

// Config is the full application configuration.
type Config struct {
	APIKey        string   `mapstructure:"api_key"`
	CouncilModels []string `mapstructure:"council_models"`
	ChairmanModel string   `mapstructure:"chairman_model"`
	TitleModel    string   `mapstructure:"title_model"`

	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	Fetch      FetchConfig      `mapstructure:"fetch"`

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string `mapstructure:"-"`
	// ConfigFile is the council.yaml that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

type OpenRouterConfig struct {
	Referer string        `mapstructure:"referer"`
	Title   string        `mapstructure:"title"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	MaxRequestBody     int64    `mapstructure:"max_request_body"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	MaxChars  int           `mapstructure:"max_chars"`
}

// Load reads configuration. configFile may be empty, in which case
// council.yaml is looked up in ., ./configs and $HOME/.llm-council and is
// optional. The result is validated.
func Load(configFile string) (*Config, error) {
	envFile := loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// unprefixed names kept for existing deployments
	_ = v.BindEnv("api_key", "OPENROUTER_API_KEY", EnvPrefix+"_API_KEY")
	_ = v.BindEnv("server.cors_allowed_origins", EnvPrefix+"_SERVER_CORS_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("council")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".llm-council"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.EnvFile = envFile
	cfg.ConfigFile = v.ConfigFileUsed()
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("council_models", DefaultCouncilModels)
	v.SetDefault("chairman_model", "anthropic/claude-sonnet-4-5")
	v.SetDefault("title_model", "anthropic/claude-sonnet-4-5")

	v.SetDefault("openrouter.referer", "https://github.com/mapachekurt/llm-council")
	v.SetDefault("openrouter.title", "LLM Council")
	v.SetDefault("openrouter.timeout", 120*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8001)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.max_request_body", int64(1<<20))

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.cache_ttl", 5*time.Minute)
	v.SetDefault("fetch.cache_size", 256)
	v.SetDefault("fetch.max_chars", 20000)
}

func applyDefaults(cfg *Config) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.CouncilModels = cleanList(cfg.CouncilModels)
	cfg.Server.CORSAllowedOrigins = cleanList(cfg.Server.CORSAllowedOrigins)
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))

	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case DriverSQLite:
			cfg.Storage.Path = "data/council.db"
		default:
			cfg.Storage.Path = "data/conversations"
		}
	}
}

// Validate checks that the configuration can run a deliberation.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if len(c.CouncilModels) == 0 {
		return errors.New("council_models must not be empty")
	}
	if strings.TrimSpace(c.ChairmanModel) == "" {
		return errors.New("chairman_model must not be empty")
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.MaxRequestBody <= 0 {
		return errors.New("server.max_request_body must be positive")
	}
	return nil
}

// loadEnvFile loads the first .env found in . or .. without overriding
// variables that are already set. It returns the file loaded.
func loadEnvFile() string {
	for _, candidate := range []string{".env", "../.env"} {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err == nil {
			return abs
		}
	}
	return ""
}

// cleanList splits comma separated entries and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
