package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// OnChangeFunc is called after the stored configuration changed.
type OnChangeFunc func(cfg *Config)

// Store manages the persisted configuration file. Reads return the effective
// configuration (file plus environment overrides); writes only touch the file.
type Store struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	path     string
	defaults *Config
	config   *Config
	onChange []OnChangeFunc
}

// NewStore loads the file at path, falling back to defaults when it does not exist yet.
func NewStore(logger *slog.Logger, path string, defaults *Config) (*Store, error) {
	cfg, err := Load(path, defaults)
	if err != nil {
		return nil, err
	}
	return &Store{
		logger:   logger,
		path:     path,
		defaults: defaults,
		config:   cfg,
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) OnChange(fn OnChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Get returns the effective configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.WithEnv()
}

// GetMasked returns the effective configuration safe for display.
func (s *Store) GetMasked() *Config {
	cfg := s.Get()
	cfg.ProfileID = MaskSecret(cfg.ProfileID)
	return cfg
}

// Update applies fn to a copy of the file configuration, validates and persists it.
func (s *Store) Update(fn func(cfg *Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.config
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return s.commit(&next)
}

// Reset replaces the file with defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := *s.defaults
	return s.commit(&cfg)
}

func (s *Store) commit(cfg *Config) error {
	if err := Save(s.path, cfg); err != nil {
		return err
	}
	s.config = cfg
	s.logger.Debug("config saved", "path", s.path)

	for _, fn := range s.onChange {
		fn(cfg)
	}
	return nil
}

// MaskSecret keeps only the last four characters: "****abcd"
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
