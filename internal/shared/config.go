package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override, e.g. ZESTER_OAUTH_TOKEN.
const EnvPrefix = "ZESTER_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Archive     ArchiveConfig     `toml:"archive"`
	Database    DatabaseConfig    `toml:"database"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig holds the OAuth token and client id captured from a browser session.
type CredentialsConfig struct {
	OAuthToken string `toml:"oauth_token" env:"OAUTH_TOKEN"`
	ClientID   string `toml:"client_id" env:"CLIENT_ID"`
}

// APIConfig contains remote API settings.
type APIConfig struct {
	BaseURL           string        `toml:"base_url" env:"API_BASE_URL"`
	RequestsPerSecond float64       `toml:"requests_per_second" env:"API_RPS"`
	Timeout           time.Duration `toml:"timeout" env:"API_TIMEOUT"`
	PageSize          int           `toml:"page_size" env:"API_PAGE_SIZE"`
}

// ArchiveConfig controls where metadata and media go and how politely they are fetched.
type ArchiveConfig struct {
	OutputDir   string        `toml:"output_dir" env:"OUTPUT_DIR"`
	Limit       int           `toml:"limit" env:"LIMIT"`
	Workers     int           `toml:"workers" env:"WORKERS"`
	RetryDelay  time.Duration `toml:"retry_delay" env:"RETRY_DELAY"`
	MaxRetries  int           `toml:"max_retries" env:"MAX_RETRIES"`
	PacingDelay time.Duration `toml:"pacing_delay" env:"PACING_DELAY"`
}

// DatabaseConfig contains archive index settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
	File  string `toml:"file" env:"LOG_FILE"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their embedded defaults; environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays ZESTER_* environment variables onto config.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks the values that the archive engine depends on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is empty", ErrInvalidConfig)
	}
	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: api.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Archive.OutputDir == "" {
		return fmt.Errorf("%w: archive.output_dir is empty", ErrInvalidConfig)
	}
	if c.Archive.MaxRetries < 0 {
		return fmt.Errorf("%w: archive.max_retries must not be negative", ErrInvalidConfig)
	}
	if c.Archive.RetryDelay < 0 || c.Archive.PacingDelay < 0 {
		return fmt.Errorf("%w: archive delays must not be negative", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML. The file holds credentials, so it is created owner-only.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
