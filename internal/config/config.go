package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.convosync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
}

// Profile represents a per-profile profile.toml: one tenant, one
// operator, one backend.
type Profile struct {
	ClientID            string `toml:"client_id"`
	UserID              string `toml:"user_id"`
	APIBaseURL          string `toml:"api_base_url"`
	APIToken            string `toml:"api_token"`
	PushURL             string `toml:"push_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

const defaultPollIntervalSeconds = 60

// Validate checks the fields the agent cannot run without.
func (p *Profile) Validate() error {
	if p.ClientID == "" {
		return fmt.Errorf("profile is missing client_id")
	}
	if p.APIBaseURL == "" {
		return fmt.Errorf("profile is missing api_base_url")
	}
	return nil
}

// PollInterval returns the configured stats poll interval in seconds,
// falling back to the default when unset.
func (p *Profile) PollInterval() int {
	if p.PollIntervalSeconds <= 0 {
		return defaultPollIntervalSeconds
	}
	return p.PollIntervalSeconds
}

// Load reads the global config from the given path. Returns an error if
// the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the global config to the given path, creating parent dirs
// as needed.
func Save(path string, cfg *Config) error {
	return write(path, cfg)
}

// LoadProfile reads a profile config from the given path.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	_, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile writes a profile config to the given path.
func SaveProfile(path string, p *Profile) error {
	return write(path, p)
}

func write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
