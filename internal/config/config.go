// Package config loads and persists the CLI configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manthysbr/freeroute/internal/core/domain"
	"gopkg.in/yaml.v3"
)

const (
	AppDir     = "freeroute"
	ConfigFile = "config.yaml"
	HistoryDB  = "history.db"

	DefaultAPIURL          = "https://api.freerouting.app"
	DefaultEnvironmentHost = "freeroute/0.1.0"

	// DefaultProfileID identifies callers that never set their own profile.
	// Engines reject authenticated calls without one.
	DefaultProfileID = "e9866fac-e7ae-4f9f-a616-24ec577aa461"
)

// Environment overrides. They win over the file and are never written back.
const (
	EnvProfileID    = "FREEROUTE_PROFILE_ID"
	EnvHost         = "FREEROUTE_HOST"
	EnvAPIURL       = "FREEROUTE_API_URL"
	EnvDockerHost   = "FREEROUTE_DOCKER_HOST"
	EnvHistoryDB    = "FREEROUTE_HISTORY_DB"
	EnvOTLPEndpoint = "FREEROUTE_OTLP_ENDPOINT"
)

type Config struct {
	ProfileID       string `yaml:"profile_id"`
	EnvironmentHost string `yaml:"environment_host"`
	APIURL          string `yaml:"api_url"`

	Docker    DockerConfig    `yaml:"docker"`
	Engine    EngineConfig    `yaml:"engine"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Poll      PollConfig      `yaml:"poll"`
	Job       JobConfig       `yaml:"job"`

	// HistoryDB is the DuckDB file runs are recorded in. Empty disables history.
	HistoryDB    string `yaml:"history_db"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// Remembered for manual job:* commands against the remote API
	LastSessionID string `yaml:"last_session_id,omitempty"`
	LastJobID     string `yaml:"last_job_id,omitempty"`
}

type DockerConfig struct {
	// Host is the management endpoint. Empty means DOCKER_HOST or the local socket.
	Host        string        `yaml:"host"`
	Image       string        `yaml:"image"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

type EngineConfig struct {
	// Host is where published container ports are reachable from this process.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ReadinessConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

type PollConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	RunningInterval time.Duration `yaml:"running_interval"`
	PendingInterval time.Duration `yaml:"pending_interval"`
}

type JobConfig struct {
	Name     string `yaml:"name"`
	Priority string `yaml:"priority"`
}

// DefaultConfig returns sane defaults. dockerHost is platform dependent and
// supplied by the caller.
func DefaultConfig(dockerHost string) *Config {
	return &Config{
		ProfileID:       DefaultProfileID,
		EnvironmentHost: DefaultEnvironmentHost,
		APIURL:          DefaultAPIURL,
		Docker: DockerConfig{
			Host:        dockerHost,
			Image:       domain.DefaultImage,
			StopTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			Host: "localhost",
			Port: domain.DefaultPort,
		},
		Readiness: ReadinessConfig{MaxAttempts: 10, Interval: time.Second},
		Poll: PollConfig{
			MaxAttempts:     20,
			RunningInterval: 3 * time.Second,
			PendingInterval: time.Second,
		},
		Job: JobConfig{
			Name:     domain.DefaultJobName,
			Priority: domain.DefaultJobPriority,
		},
		HistoryDB: filepath.Join(configHome(), AppDir, HistoryDB),
	}
}

// DefaultPath is $XDG_CONFIG_HOME/freeroute/config.yaml, falling back to ~/.config.
func DefaultPath() string {
	return filepath.Join(configHome(), AppDir, ConfigFile)
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config")
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return os.TempDir()
}

// Load reads the YAML file at path on top of defaults. A missing file is not an error.
func Load(path string, defaults *Config) (*Config, error) {
	cfg := *defaults
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// WithEnv returns a copy of cfg with environment overrides applied.
func (c Config) WithEnv() *Config {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvProfileID, &c.ProfileID},
		{EnvHost, &c.EnvironmentHost},
		{EnvAPIURL, &c.APIURL},
		{EnvDockerHost, &c.Docker.Host},
		{EnvHistoryDB, &c.HistoryDB},
		{EnvOTLPEndpoint, &c.OTLPEndpoint},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok {
			*o.dst = v
		}
	}
	return &c
}

func (c *Config) Validate() error {
	var errs []error

	if c.ProfileID != "" {
		if err := ValidateProfileID(c.ProfileID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateURL(c.APIURL); err != nil {
		errs = append(errs, fmt.Errorf("api_url: %w", err))
	}
	if c.Engine.Port <= 0 || c.Engine.Port > 65535 {
		errs = append(errs, fmt.Errorf("engine.port must be between 1 and 65535, got %d", c.Engine.Port))
	}
	if c.Engine.Host == "" {
		errs = append(errs, errors.New("engine.host is required"))
	}
	if c.Docker.Host != "" && !strings.Contains(c.Docker.Host, "://") {
		errs = append(errs, fmt.Errorf("docker.host must be a URL such as unix:///var/run/docker.sock or tcp://localhost:2375, got %q", c.Docker.Host))
	}
	if c.Readiness.MaxAttempts < 1 {
		errs = append(errs, errors.New("readiness.max_attempts must be >= 1"))
	}
	if c.Poll.MaxAttempts < 1 {
		errs = append(errs, errors.New("poll.max_attempts must be >= 1"))
	}
	if c.Readiness.Interval < 0 || c.Poll.RunningInterval < 0 || c.Poll.PendingInterval < 0 {
		errs = append(errs, errors.New("intervals must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateProfileID requires the canonical UUID form the routing API issues.
func ValidateProfileID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("profile id %q is not a UUID: %w", id, err)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host is missing in %q", raw)
	}
	return nil
}
