package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from human-readable YAML
// values like "90s" or "2m", or a bare number of seconds
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds float64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value")
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config represents the application configuration
type Config struct {
	// Backend settings
	Backend struct {
		// BaseURL is normally resolved from the environment, see ResolveBaseURL
		BaseURL string   `yaml:"base_url"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"backend"`

	// Recording settings
	Recording struct {
		Mode   string `yaml:"mode"`   // "push-to-talk" or "continuous"
		Hotkey string `yaml:"hotkey"` // push-to-talk toggle, e.g. "ctrl+shift+space"
	} `yaml:"recording"`

	// Audio settings
	Audio struct {
		Device string `yaml:"device"`
	} `yaml:"audio"`

	// Output settings
	Output struct {
		Format string `yaml:"format"` // console, json, text
		File   string `yaml:"file"`
	} `yaml:"output"`

	// Log settings
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Backend.Timeout = Duration(120 * time.Second)

	cfg.Recording.Mode = "push-to-talk"
	cfg.Recording.Hotkey = "ctrl+shift+space"

	cfg.Audio.Device = ""

	cfg.Output.Format = "console"
	cfg.Output.File = ""

	cfg.Log.Level = "info"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.consultrc > /etc/consult/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.consultrc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".consultrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/consult/config.yaml)
	systemConfigPath := "/etc/consult/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// ResolveBaseURL resolves the backend base address once at process start.
// Priority: CONSULT_API_BASE_URL (environment or .env file) > config file value.
// There is no runtime reconfiguration; callers hold the resolved value for the
// life of the process.
func (c *Config) ResolveBaseURL() (string, error) {
	// A missing .env file is not an error; the variable may come from the
	// process environment directly.
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv("CONSULT_API_BASE_URL")); v != "" {
		c.Backend.BaseURL = v
	}

	if c.Backend.BaseURL == "" {
		return "", fmt.Errorf("backend base URL not configured: set CONSULT_API_BASE_URL or backend.base_url")
	}

	return strings.TrimRight(c.Backend.BaseURL, "/"), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
