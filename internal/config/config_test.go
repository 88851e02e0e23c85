package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, int64(12*1024*1024), c.Validator.MaxBytes)
	assert.Equal(t, 256, c.Validator.MinDimension)
	assert.Equal(t, 1000, c.Session.ResetDelayMillis)
	assert.Equal(t, 768, c.Session.Breakpoint)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			c := Default()
			c.Upload.Backend = "minio"
			c.Upload.Bucket = "avatars"
			c.Hint.Provider = "saliency"
			require.NoError(t, c.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, c, loaded)
		})
	}
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yml")
	require.NoError(t, os.WriteFile(path, []byte("upload:\n  backend: s3\n  bucket: pics\nlog:\n  level: debug\n"), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", c.Upload.Backend)
	assert.Equal(t, "pics", c.Upload.Bucket)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 256, c.Validator.MinDimension)
	require.NoError(t, c.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"seed", func(c *Config) { c.Crop.SeedPercent = 0 }},
		{"backend", func(c *Config) { c.Upload.Backend = "ftp" }},
		{"bucket", func(c *Config) { c.Upload.Backend = "s3" }},
		{"provider", func(c *Config) { c.Hint.Provider = "magic" }},
		{"model", func(c *Config) { c.Hint.Provider = "ollama" }},
		{"cascade", func(c *Config) { c.Hint.Provider = "face" }},
		{"level", func(c *Config) { c.Log.Level = "trace" }},
		{"timeout", func(c *Config) { c.Session.DecodeTimeoutMillis = 0 }},
		{"types", func(c *Config) { c.Validator.AllowedTypes = nil }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSettings(t *testing.T) {
	c := Default()
	s := c.SessionSettings()
	assert.Equal(t, time.Second, s.ResetDelay)
	assert.Equal(t, 10*time.Second, s.DecodeTimeout)
	assert.Equal(t, c.Validator.AllowedTypes, c.ValidatorSettings().AllowedTypes)
}

func TestGetConfigPath(t *testing.T) {
	assert.Contains(t, GetConfigPath(), "config.json")
}
