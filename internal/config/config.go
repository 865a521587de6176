package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the deployment-level configuration surface. Cache TTL and size
// are configurable here rather than per-tool.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Engine EngineConfig `mapstructure:"engine"`
	Store  StoreConfig  `mapstructure:"store"`
}

// ServerConfig covers the HTTP protocol adapter.
type ServerConfig struct {
	Addr           string            `mapstructure:"addr"`
	AllowedOrigins []string          `mapstructure:"allowed_origins"`
	// APITokens maps bearer tokens to user ids. Production deployments
	// delegate to the external auth service instead.
	APITokens map[string]string `mapstructure:"api_tokens"`
}

// CacheConfig covers the engine's result cache.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// EngineConfig covers execution behaviour.
type EngineConfig struct {
	// DefaultTimeout bounds each handler invocation; zero disables the bound.
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// MaxParallel bounds the dispatcher fan-out; zero means one goroutine
	// per call.
	MaxParallel int `mapstructure:"max_parallel"`
}

// StoreConfig covers the sqlite persistence collaborator.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.sweep_interval", time.Minute)
	v.SetDefault("engine.default_timeout", 30*time.Second)
	v.SetDefault("engine.max_parallel", 8)
	v.SetDefault("store.dsn", "file:hyperfocus.db?_journal_mode=WAL&_busy_timeout=5000")
}

// Load reads configuration from an optional YAML file plus HYPERFOCUS_*
// environment overrides, falling back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HYPERFOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, used by tests.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err) // defaults always validate
	}
	return cfg
}

// Validate rejects values the engine cannot operate with.
func (c *Config) Validate() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive, got %v", c.Cache.SweepInterval)
	}
	if c.Engine.DefaultTimeout < 0 {
		return fmt.Errorf("engine.default_timeout must not be negative, got %v", c.Engine.DefaultTimeout)
	}
	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("engine.max_parallel must not be negative, got %d", c.Engine.MaxParallel)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}
