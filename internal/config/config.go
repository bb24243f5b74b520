package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendGroq  = "groq"
	BackendDummy = "dummy"
)

// APIKeyEnv holds the backend credential. It is read on every call through
// APIKey and is not part of Config.
const APIKeyEnv = "GROQ_API_KEY"

// Config holds process configuration read from environment variables.
type Config struct {
	Addr                  string `env:"MEDITALK_ADDR" envDefault:":8080"`
	Backend               string `env:"MEDITALK_BACKEND" envDefault:"groq"`
	BaseURL               string `env:"MEDITALK_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	BackendTimeoutSeconds int    `env:"MEDITALK_BACKEND_TIMEOUT_SECONDS" envDefault:"60"`
	MaxUploadBytes        int64  `env:"MEDITALK_MAX_UPLOAD_BYTES" envDefault:"20971520"`
	DBPath                string `env:"MEDITALK_DB_PATH" envDefault:"./meditalk.db"`
	Journal               bool   `env:"MEDITALK_JOURNAL" envDefault:"true"`
	DummyScript           string `env:"MEDITALK_DUMMY_SCRIPT" envDefault:"ok"`
	LogLevel              string `env:"MEDITALK_LOG_LEVEL" envDefault:"info"`
	LogFormat             string `env:"MEDITALK_LOG_FORMAT" envDefault:"console"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendGroq, BackendDummy:
	default:
		return fmt.Errorf("MEDITALK_BACKEND must be %q or %q, got %q", BackendGroq, BackendDummy, c.Backend)
	}
	if c.BackendTimeoutSeconds <= 0 {
		return fmt.Errorf("MEDITALK_BACKEND_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MEDITALK_MAX_UPLOAD_BYTES must be > 0")
	}
	if c.Journal && strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("MEDITALK_DB_PATH is required when MEDITALK_JOURNAL=true")
	}
	return nil
}

// BackendTimeout bounds a single backend round-trip.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// APIKey returns the backend credential from the current environment.
func APIKey() string {
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}
