// Package config reads and writes the loom client configuration file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config stores connection defaults for the loom client.
type Config struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token,omitempty"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "loom", "config.json"), nil
}

func ensureConfigDir() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads the config file if present. A missing file returns nil, nil.
func Read() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write saves the config file, creating the directory as needed.
func Write(cfg Config) error {
	path, err := ensureConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
