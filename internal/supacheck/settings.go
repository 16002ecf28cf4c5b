package supacheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Settings are saved defaults, used when neither a flag nor the environment
// provides a value.
type Settings struct {
	SupabaseURL string `json:"supabase_url,omitempty"`
	SupabaseKey string `json:"supabase_key,omitempty"`
	Backend     string `json:"backend,omitempty"`
	DBURL       string `json:"db_url,omitempty"`
}

func runSet(cfg Config, stdout io.Writer) error {
	settings, err := loadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}

	switch cfg.SetTarget {
	case "url":
		settings.SupabaseURL = cfg.SetValue
		if err := saveSettings(cfg.SettingsFile, settings); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved default Supabase URL to %s\n", cfg.SettingsFile)
		return nil
	case "key":
		settings.SupabaseKey = cfg.SetValue
		if err := saveSettings(cfg.SettingsFile, settings); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved default Supabase key to %s\n", cfg.SettingsFile)
		return nil
	case "db":
		settings.Backend = cfg.SetBackend
		settings.DBURL = cfg.SetValue
		if err := saveSettings(cfg.SettingsFile, settings); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved default database (%s) to %s\n", cfg.SetBackend, cfg.SettingsFile)
		return nil
	default:
		return fmt.Errorf("unsupported set target %q", cfg.SetTarget)
	}
}

func loadSettings(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	if strings.TrimSpace(string(raw)) == "" {
		return Settings{}, nil
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}

	if strings.TrimSpace(s.Backend) != "" {
		normalized, err := normalizeBackendInput(s.Backend)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid backend in settings file: %w", err)
		}
		s.Backend = normalized
	}

	s.SupabaseURL = strings.TrimSpace(s.SupabaseURL)
	s.SupabaseKey = strings.TrimSpace(s.SupabaseKey)
	s.DBURL = strings.TrimSpace(s.DBURL)

	return s, nil
}

func saveSettings(path string, s Settings) error {
	if strings.TrimSpace(s.Backend) != "" {
		normalized, err := normalizeBackendInput(s.Backend)
		if err != nil {
			return err
		}
		s.Backend = normalized
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

func applySettingsDefaults(cfg *Config, s Settings) {
	if strings.TrimSpace(cfg.URL) == "" && s.SupabaseURL != "" {
		cfg.URL = s.SupabaseURL
	}
	// A saved backend only applies when no project URL is configured from any
	// source, the settings file included.
	urlGiven := strings.TrimSpace(cfg.URL) != ""

	if strings.TrimSpace(cfg.Key) == "" && s.SupabaseKey != "" {
		cfg.Key = s.SupabaseKey
	}
	if strings.TrimSpace(cfg.Backend) == "" && s.Backend != "" && !urlGiven {
		cfg.Backend = s.Backend
	}
	if strings.TrimSpace(cfg.DBURL) == "" && s.DBURL != "" {
		cfg.DBURL = s.DBURL
	}
}
