package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	s.valid = true
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "ring")
	s := &sample{Port: 8000}
	if err := Load(writeConfig(t, "name: ${SAMPLE_NAME}\n"), s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "ring" || s.Port != 8000 || !s.valid {
		t.Errorf("unexpected result: %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &sample{Port: 1}); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeConfig(t, "port: [1, 2"), &sample{}); err == nil {
		t.Error("broken yaml should fail")
	}
	err := Load(writeConfig(t, "port: 0\n"), &sample{})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	s := &sample{Port: 8000}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), s); err != nil {
		t.Fatal(err)
	}
	if !s.valid {
		t.Error("defaults were not validated")
	}
	if err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &sample{}); err == nil {
		t.Error("invalid defaults should fail")
	}
}
