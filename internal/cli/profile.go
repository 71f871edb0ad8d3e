package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProfileFileName is looked up in the home directory when --config is not given.
const ProfileFileName = ".automationctl.yaml"

// Profile holds per-user connection settings. Values here override the
// environment; command-line flags override both.
type Profile struct {
	BackendURL string        `yaml:"backend_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	LogLevel   string        `yaml:"log_level"`
}

// DefaultProfilePath returns ~/.automationctl.yaml, or the bare file name
// when the home directory cannot be determined.
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProfileFileName
	}
	return filepath.Join(home, ProfileFileName)
}

// LoadProfile reads a profile file. A missing file yields an empty profile.
func LoadProfile(path string) (Profile, error) {
	var p Profile

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// SaveProfile writes p to path with owner-only permissions since it may
// carry a token.
func SaveProfile(path string, p Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
