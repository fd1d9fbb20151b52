package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_TOKEN", "s3cret")
	path := writeFile(t, "port: 9090\ntoken: ${SAMPLE_TOKEN}\n")

	cfg := &sample{Name: "default", Port: 1}
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Token)
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeFile(t, "port: 0\n")
	err := Load(path, &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoad_ParseError(t *testing.T) {
	path := writeFile(t, "port: [\n")
	err := Load(path, &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg := &sample{Port: 8080}
	require.NoError(t, LoadOptional(missing, cfg))
	assert.Equal(t, 8080, cfg.Port)

	require.Error(t, LoadOptional(missing, &sample{}), "defaults are still validated")

	path := writeFile(t, "port: 7000\n")
	require.NoError(t, LoadOptional(path, cfg))
	assert.Equal(t, 7000, cfg.Port)
}
