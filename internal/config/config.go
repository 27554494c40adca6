// Package config handles loading and persisting user configuration
// for the qx-cli tool. Configuration is stored in ~/.qx-cli/config.json,
// with environment variables (and an optional .env file) taking
// precedence over the file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	dirName      = ".qx-cli"
	fileName     = "config.json"
	defaultModel = "gpt-4o-mini"
	envKeyAPIKey = "OPENAI_API_KEY"
	envKeyModel  = "QX_MODEL"
)

// Generation and retry defaults. The model can stall and return empty
// chunks; MaxEmptyChunks bounds how many we tolerate before retrying.
const (
	defaultMaxTokens      = 4096
	defaultTemperature    = 0.3
	defaultMaxRetries     = 3
	defaultTimeoutSecs    = 60
	defaultRetryDelaySecs = 5
	defaultMaxEmptyChunks = 100
)

// Config holds the user's configuration.
type Config struct {
	APIKey         string  `json:"api_key,omitempty"`
	Model          string  `json:"model"`
	BaseURL        string  `json:"base_url,omitempty"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	MaxRetries     int     `json:"max_retries"`
	TimeoutSecs    int     `json:"timeout_seconds"`
	RetryDelaySecs int     `json:"retry_delay_seconds"`
	MaxEmptyChunks int     `json:"max_empty_chunks"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

func defaults() *Config {
	return &Config{
		Model:          defaultModel,
		MaxTokens:      defaultMaxTokens,
		Temperature:    defaultTemperature,
		MaxRetries:     defaultMaxRetries,
		TimeoutSecs:    defaultTimeoutSecs,
		RetryDelaySecs: defaultRetryDelaySecs,
		MaxEmptyChunks: defaultMaxEmptyChunks,
	}
}

// Load reads the configuration from disk and the environment.
func Load() (*Config, error) {
	// A .env in the working directory is a convenience for development;
	// missing files are fine.
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	if key := os.Getenv(envKeyAPIKey); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv(envKeyModel); model != "" {
		cfg.Model = model
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return cfg, nil
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

func loadForUpdate() *Config {
	cfg := defaults()
	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}
	return cfg
}

// SetAPIKey saves the API key to the config file.
func SetAPIKey(key string) error {
	cfg := loadForUpdate()
	cfg.APIKey = key
	return save(cfg)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	cfg := loadForUpdate()
	cfg.Model = model
	return save(cfg)
}
