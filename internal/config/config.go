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

const envPrefix = "GEMINICHAT"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Databases   map[string]DatabaseConfig `mapstructure:"databases"`
	Redis       RedisConfig               `mapstructure:"redis"`
	Chat        ChatConfig                `mapstructure:"chat"`
	Auth        AuthConfig                `mapstructure:"auth"`
	Logging     LoggingConfig             `mapstructure:"logging"`
}

type ProviderConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	Database      string `mapstructure:"database"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChatConfig controls the message-exchange engine.
type ChatConfig struct {
	Provider string `mapstructure:"provider"`
	// ResponseTimeout bounds a single remote call. Zero means the call is
	// awaited until the transport gives up.
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
}

type AuthConfig struct {
	DemoEmail         string        `mapstructure:"demo_email"`
	DemoPassword      string        `mapstructure:"demo_password"`
	DemoName          string        `mapstructure:"demo_name"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	LoginRPS          float64       `mapstructure:"login_rps"`
	LoginBurst        int           `mapstructure:"login_burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: defaults and GEMINICHAT_* environment
// variables still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("providers.gemini.api_key", envPrefix+"_PROVIDERS_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind gemini key: %w", err)
	}

	if _, err := os.Stat(absPath); err == nil {
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", absPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if db, ok := cfg.Databases["sqlite3"]; ok && needsResolve(db.DSN) {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases["sqlite3"] = db
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.database", "sqlite3")
	v.SetDefault("databases.sqlite3.dsn", "geminichat.db")
	v.SetDefault("providers.gemini.model", "gemini-2.5-flash")
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("chat.provider", "gemini")
	v.SetDefault("chat.response_timeout", "0s")
	v.SetDefault("chat.idle_ttl", "30m")
	v.SetDefault("auth.demo_email", "demo@example.com")
	v.SetDefault("auth.demo_password", "password")
	v.SetDefault("auth.demo_name", "Demo User")
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.login_rps", 1.0)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if c.Chat.Provider == "" {
		return errors.New("chat.provider must be configured")
	}
	if _, ok := c.Providers[c.Chat.Provider]; !ok {
		return fmt.Errorf("provider %s not configured", c.Chat.Provider)
	}
	if c.Chat.ResponseTimeout < 0 {
		return errors.New("chat.response_timeout cannot be negative")
	}
	if c.BasicConfig.Database == "" {
		return errors.New("basic_config.database must be configured")
	}
	if _, ok := c.Databases[c.BasicConfig.Database]; !ok {
		return fmt.Errorf("database config for %s not found", c.BasicConfig.Database)
	}
	if c.Auth.MinPasswordLength <= 0 {
		return errors.New("auth.min_password_length must be positive")
	}
	return nil
}

// Provider returns the settings of the provider used for chat replies.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.Chat.Provider]
}

func needsResolve(dsn string) bool {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return false
	}
	return !filepath.IsAbs(dsn)
}
