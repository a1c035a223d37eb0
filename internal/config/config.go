package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecgather/internal/domain"
)

// Config holds the vecgather configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Shards    []ShardConfig   `yaml:"shards" validate:"required,min=1,unique=ID,dive"`
	Gather    GatherConfig    `yaml:"gather"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // default: determined by env
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys" validate:"dive,required"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int     `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSec  int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec int     `yaml:"write_timeout_sec"`
	ShutdownSec     int     `yaml:"shutdown_timeout_sec"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps" validate:"min=0"` // 0 disables limiting
	RateLimitBurst  int     `yaml:"rate_limit_burst" validate:"min=0"`
}

// ShardConfig describes one Valkey shard holding part of the corpus.
type ShardConfig struct {
	ID               string   `yaml:"id" validate:"required"`
	Addrs            []string `yaml:"addrs" validate:"required,min=1,dive,hostname_port"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	Index            string   `yaml:"index" validate:"required"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// GatherConfig tunes the scatter-gather search.
type GatherConfig struct {
	Name           string `yaml:"name"`
	DefaultLimit   int    `yaml:"default_limit" validate:"min=0"`
	MaxLimit       int    `yaml:"max_limit" validate:"min=0"`
	TimeoutMs      int    `yaml:"timeout_ms" validate:"min=0"`
	Strategy       string `yaml:"strategy" validate:"omitempty,oneof=kway sort"`
	MaxConcurrency int    `yaml:"max_concurrency" validate:"min=0"` // 0 = one goroutine per shard
	TopK           int    `yaml:"top_k" validate:"min=0"`           // hits requested from each shard
}

// Timeout returns the gather deadline.
func (g GatherConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

// EmbeddingConfig holds the query embedder settings. Semantic mode is
// disabled when Model is empty.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key" validate:"required_with=Model"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions" validate:"min=0"`
}

// Enabled reports whether semantic search is configured.
func (e EmbeddingConfig) Enabled() bool { return e.Model != "" }

var validate = validator.New()

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates a YAML config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw YAML. ${VAR} and ${VAR:-default} are substituted first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = int(c.HTTP.RateLimitRPS) + 1
	}
	for i := range c.Shards {
		s := &c.Shards[i]
		if s.ReadinessTimeout <= 0 {
			s.ReadinessTimeout = 10
		}
		if s.KeyPrefix == "" {
			s.KeyPrefix = "doc:"
		}
	}
	if c.Gather.Name == "" {
		c.Gather.Name = "vecgather"
	}
	if c.Gather.DefaultLimit <= 0 {
		c.Gather.DefaultLimit = 20
	}
	if c.Gather.MaxLimit <= 0 {
		c.Gather.MaxLimit = 1000
	}
	if c.Gather.TimeoutMs <= 0 {
		c.Gather.TimeoutMs = 2000
	}
	if c.Gather.Strategy == "" {
		c.Gather.Strategy = "kway"
	}
	if c.Gather.TopK <= 0 {
		c.Gather.TopK = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
}

// Validate checks the configuration for correctness.
// Every error wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fieldPath(fe), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if c.Gather.DefaultLimit > c.Gather.MaxLimit {
		return fmt.Errorf("%w: gather.default_limit (%d) exceeds gather.max_limit (%d)",
			domain.ErrInvalidConfig, c.Gather.DefaultLimit, c.Gather.MaxLimit)
	}
	return nil
}

// fieldPath turns "Config.Shards[0].Index" into "Shards[0].Index".
func fieldPath(fe validator.FieldError) string {
	_, path, _ := strings.Cut(fe.Namespace(), ".")
	return path
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
