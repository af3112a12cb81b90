package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the contentdex configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Sync          SyncConfig          `yaml:"sync"`
	State         StateConfig         `yaml:"state"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Content       ContentConfig       `yaml:"content"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticsearchConfig holds cluster connection settings.
type ElasticsearchConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	IndexPrefix string `yaml:"index_prefix"`
}

// SyncConfig holds bulk indexing settings.
type SyncConfig struct {
	PageSize      int `yaml:"page_size"`
	MaxAttempts   int `yaml:"max_attempts"`    // bulk retry attempts per failed subset
	StaleAfterMin int `yaml:"stale_after_min"` // Running state older than this is abandonable
}

// StateConfig holds sync-state persistence settings.
type StateConfig struct {
	Driver   string   `yaml:"driver"` // file, redis (default: file)
	Path     string   `yaml:"path"`   // file driver: directory for the state record
	Addrs    []string `yaml:"addrs"`  // redis driver
	Password string   `yaml:"password"`
	Key      string   `yaml:"key"`
}

// KafkaConfig holds the content-change event consumer settings.
// Empty brokers disable the consumer.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
	Topics  []string `yaml:"topics"`
}

// ContentConfig points at the content source.
type ContentConfig struct {
	Path string `yaml:"path"` // JSON export loaded into the in-memory store
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := filepath.Join("config", fmt.Sprintf("%s.yaml", env))

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} / ${VAR:-default}
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
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = "http://localhost:9200"
	}
	if c.Elasticsearch.TimeoutSec <= 0 {
		c.Elasticsearch.TimeoutSec = 30
	}
	if c.Elasticsearch.IndexPrefix == "" {
		c.Elasticsearch.IndexPrefix = "contentdex"
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 350
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = 5
	}
	if c.Sync.StaleAfterMin <= 0 {
		c.Sync.StaleAfterMin = 15
	}
	if c.State.Driver == "" {
		c.State.Driver = "file"
	}
	if c.State.Path == "" {
		c.State.Path = "."
	}
	if c.State.Key == "" {
		c.State.Key = "contentdex:sync"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "contentdex"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if !strings.HasPrefix(c.Elasticsearch.URL, "http://") && !strings.HasPrefix(c.Elasticsearch.URL, "https://") {
		return fmt.Errorf("elasticsearch.url must be an http(s) URL, got %q", c.Elasticsearch.URL)
	}
	switch c.State.Driver {
	case "file":
		// path defaulted above
	case "redis":
		if len(c.State.Addrs) == 0 {
			return fmt.Errorf("state.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("state.driver must be \"file\" or \"redis\", got %q", c.State.Driver)
	}
	if len(c.Kafka.Brokers) > 0 && len(c.Kafka.Topics) == 0 {
		return fmt.Errorf("kafka.topics is required when kafka.brokers is set")
	}
	return nil
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
