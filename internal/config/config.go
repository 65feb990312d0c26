package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// DatabaseConfig holds the connection information for the key-value store.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// APIConfig holds settings for the HTTP API surface.
type APIConfig struct {
	// Password, when set, requires a matching bearer token on every /api call.
	Password string `yaml:"password"`
	// AllowedOrigins limits browser CORS. Empty means allow all origins,
	// which is the sensible default for a locally hosted front-end.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// OptimizerConfig configures the prompt-optimization backend.
type OptimizerConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	BasePrompt string `yaml:"base_prompt"`
}

// ProvidersConfig overrides the backend endpoints, mainly for mirrors and
// tests. Empty fields keep the built-in defaults.
type ProvidersConfig struct {
	TurboEndpoint   string `yaml:"turbo_endpoint"`
	FluxEndpoint    string `yaml:"flux_endpoint"`
	QwenEndpoint    string `yaml:"qwen_endpoint"`
	HiDreamEndpoint string `yaml:"hidream_endpoint"`
	UpscaleEndpoint string `yaml:"upscale_endpoint"`
}

// Config is the root configuration for the service.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Providers ProvidersConfig `yaml:"providers"`
	// Credentials is an optional initial comma-separated token list. It only
	// seeds the store when no list has been persisted yet.
	Credentials string `yaml:"credentials"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
}

const (
	defaultPort           = 8788
	defaultOptimizerModel = "qwen-turbo"
	defaultBasePrompt     = "You are an expert prompt engineer for text-to-image models."
)

// Load reads and parses the configuration file. A missing file is not an
// error; environment variables can supply everything. It returns the config
// and a potential warning message about defaulted values.
var Load = func(path string) (*Config, string, error) {
	var config Config
	var warning string

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment overrides take precedence over the file.
	if dsn := os.Getenv("ZIMAGE_DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if dbType := os.Getenv("ZIMAGE_DATABASE_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if port := os.Getenv("ZIMAGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("ZIMAGE_API_PASSWORD"); password != "" {
		config.API.Password = password
	}
	if creds := os.Getenv("ZIMAGE_CREDENTIALS"); creds != "" {
		config.Credentials = creds
	}
	if debug := os.Getenv("ZIMAGE_DEBUG"); debug != "" {
		config.Debug = debug == "true"
	}

	// Defaults for anything left unset.
	if config.Port == 0 {
		config.Port = defaultPort
		warning = fmt.Sprintf("port not set, using default %d", defaultPort)
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
		config.Database.DSN = "zimage.db"
	}
	if config.Database.DSN == "" {
		return nil, "", fmt.Errorf("database dsn must be configured for type %q", config.Database.Type)
	}
	if config.Optimizer.Model == "" {
		config.Optimizer.Model = defaultOptimizerModel
	}
	if config.Optimizer.BasePrompt == "" {
		config.Optimizer.BasePrompt = defaultBasePrompt
	}

	return &config, warning, nil
}
