package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors config.yaml. Empty fields fall through to defaults.
type fileConfig struct {
	ServerURL     string `yaml:"server_url"`
	ClientTimeout string `yaml:"client_timeout"`
	Store         string `yaml:"store"`
	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
	StubAddr      string `yaml:"stub_addr"`

	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
}

// readFile parses path. A missing file is not an error.
func readFile(path string) (fileConfig, error) {
	var fc fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}
