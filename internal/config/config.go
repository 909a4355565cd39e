// Package config loads the annotator configuration: built-in defaults, then
// an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"coco-annotator/internal/backend"
	"coco-annotator/internal/tools"
	"coco-annotator/internal/undo"
	"coco-annotator/internal/viewport"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvBackendURL = "ANNOTATOR_BACKEND_URL"
	EnvLogLevel   = "ANNOTATOR_LOG_LEVEL"
)

var validate = validator.New()

// Config is the full annotator configuration.
type Config struct {
	Backend     BackendConfig     `yaml:"backend"`
	LogLevel    string            `yaml:"logLevel" validate:"oneof=debug info warn error"`
	Development bool              `yaml:"development"`
	MetricsAddr string            `yaml:"metricsAddr" validate:"omitempty,hostname_port"`
	Viewport    ViewportConfig    `yaml:"viewport"`
	Undo        UndoConfig        `yaml:"undo"`
	Tools       tools.Preferences `yaml:"tools"`
	// Shortcuts maps action names to key names and overrides the defaults.
	Shortcuts map[string]string `yaml:"shortcuts"`
}

type BackendConfig struct {
	URL     string                `yaml:"url" validate:"required,url"`
	Timeout time.Duration         `yaml:"timeout" validate:"gt=0"`
	Breaker backend.BreakerConfig `yaml:"breaker"`
}

type ViewportConfig struct {
	MarginX float64 `yaml:"marginX" validate:"gt=0,lte=1"`
	MarginY float64 `yaml:"marginY" validate:"gt=0,lte=1"`
}

type UndoConfig struct {
	MaxItems int `yaml:"maxItems" validate:"gte=1,lte=10000"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:5000/api",
			Timeout: 30 * time.Second,
			Breaker: backend.DefaultBreakerConfig(),
		},
		LogLevel: "info",
		Viewport: ViewportConfig{MarginX: viewport.FitMarginX, MarginY: viewport.FitMarginY},
		Undo:     UndoConfig{MaxItems: undo.DefaultMaxItems},
		Tools:    tools.DefaultPreferences(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}
