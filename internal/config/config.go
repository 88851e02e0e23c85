package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/processing"
	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/validator"
)

// Config holds the application configuration
type Config struct {
	Validator ValidatorConfig `json:"validator" yaml:"validator"`
	Crop      CropConfig      `json:"crop" yaml:"crop"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Upload    UploadConfig    `json:"upload" yaml:"upload"`
	Hint      HintConfig      `json:"hint" yaml:"hint"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// ValidatorConfig holds the acceptance rules for selected files
type ValidatorConfig struct {
	MaxBytes     int64    `json:"max_bytes" yaml:"max_bytes"`
	MinDimension int      `json:"min_dimension" yaml:"min_dimension"`
	AllowedTypes []string `json:"allowed_types" yaml:"allowed_types"`
}

// CropConfig holds configuration for the crop engine
type CropConfig struct {
	SeedPercent float64 `json:"seed_percent" yaml:"seed_percent"`
}

// SessionConfig holds session timing and layout
type SessionConfig struct {
	ResetDelayMillis    int `json:"reset_delay_ms" yaml:"reset_delay_ms"`
	DecodeTimeoutMillis int `json:"decode_timeout_ms" yaml:"decode_timeout_ms"`
	Breakpoint          int `json:"breakpoint" yaml:"breakpoint"`
	ViewportWidth       int `json:"viewport_width" yaml:"viewport_width"`
}

// OutputConfig holds configuration for rasterized output
type OutputConfig struct {
	MaxSurfacePixels int64 `json:"max_surface_pixels" yaml:"max_surface_pixels"`
	PNGCompression   int   `json:"png_compression" yaml:"png_compression"`
}

// UploadConfig selects and configures the upload backend
type UploadConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // dir, s3 or minio
	Dir       string `json:"dir" yaml:"dir"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// HintConfig selects the subject hinter used to center the initial crop
type HintConfig struct {
	Provider string `json:"provider" yaml:"provider"` // none, saliency, face, ollama or llamacpp
	URL      string `json:"url" yaml:"url"`
	Model    string `json:"model" yaml:"model"`
	Cascade  string `json:"cascade" yaml:"cascade"` // pigo facefinder file for the face provider
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

var (
	uploadBackends = []string{"dir", "s3", "minio"}
	hintProviders  = []string{"none", "saliency", "face", "ollama", "llamacpp"}
	logLevels      = []string{"error", "info", "debug"}
)

// Default returns a configuration with default values
func Default() *Config {
	v := validator.DefaultConfig()
	s := session.DefaultConfig()
	return &Config{
		Validator: ValidatorConfig{
			MaxBytes:     v.MaxBytes,
			MinDimension: v.MinDimension,
			AllowedTypes: append([]string(nil), v.AllowedTypes...),
		},
		Crop: CropConfig{SeedPercent: cropper.DefaultSeedPercent},
		Session: SessionConfig{
			ResetDelayMillis:    int(s.ResetDelay / time.Millisecond),
			DecodeTimeoutMillis: int(s.DecodeTimeout / time.Millisecond),
			Breakpoint:          s.Breakpoint,
			ViewportWidth:       s.ViewportWidth,
		},
		Output: OutputConfig{
			MaxSurfacePixels: processing.MaxSurfacePixels,
		},
		Upload: UploadConfig{
			Backend: "dir",
			Dir:     "./avatars",
			Region:  "us-east-1",
		},
		Hint: HintConfig{
			Provider: "none",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{Port: 8080},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension. Missing fields keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Validator.MaxBytes < 1 {
		return fmt.Errorf("validator.max_bytes must be positive")
	}
	if c.Validator.MinDimension < 1 {
		return fmt.Errorf("validator.min_dimension must be positive")
	}
	if len(c.Validator.AllowedTypes) == 0 {
		return fmt.Errorf("validator.allowed_types cannot be empty")
	}
	if c.Crop.SeedPercent <= 0 || c.Crop.SeedPercent > 100 {
		return fmt.Errorf("crop.seed_percent must be in (0, 100]")
	}
	if c.Session.ResetDelayMillis < 0 {
		return fmt.Errorf("session.reset_delay_ms cannot be negative")
	}
	if c.Session.DecodeTimeoutMillis < 1 {
		return fmt.Errorf("session.decode_timeout_ms must be positive")
	}
	if c.Output.MaxSurfacePixels < 1 {
		return fmt.Errorf("output.max_surface_pixels must be positive")
	}
	if c.Output.PNGCompression < -3 || c.Output.PNGCompression > 0 {
		return fmt.Errorf("output.png_compression must be between -3 and 0")
	}
	if !oneOf(c.Upload.Backend, uploadBackends) {
		return fmt.Errorf("upload.backend must be one of %s", strings.Join(uploadBackends, ", "))
	}
	if c.Upload.Backend != "dir" && strings.TrimSpace(c.Upload.Bucket) == "" {
		return fmt.Errorf("upload.bucket is required for the %s backend", c.Upload.Backend)
	}
	if !oneOf(c.Hint.Provider, hintProviders) {
		return fmt.Errorf("hint.provider must be one of %s", strings.Join(hintProviders, ", "))
	}
	if (c.Hint.Provider == "ollama" || c.Hint.Provider == "llamacpp") && strings.TrimSpace(c.Hint.Model) == "" {
		return fmt.Errorf("hint.model is required for the %s provider", c.Hint.Provider)
	}
	if c.Hint.Provider == "face" && strings.TrimSpace(c.Hint.Cascade) == "" {
		return fmt.Errorf("hint.cascade is required for the face provider")
	}
	if !oneOf(c.Log.Level, logLevels) {
		return fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", "))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	return nil
}

// ValidatorSettings converts to the validator's configuration
func (c *Config) ValidatorSettings() validator.Config {
	return validator.Config{
		MaxBytes:     c.Validator.MaxBytes,
		MinDimension: c.Validator.MinDimension,
		AllowedTypes: c.Validator.AllowedTypes,
	}
}

// SessionSettings converts to the session's configuration
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		ResetDelay:    time.Duration(c.Session.ResetDelayMillis) * time.Millisecond,
		DecodeTimeout: time.Duration(c.Session.DecodeTimeoutMillis) * time.Millisecond,
		Breakpoint:    c.Session.Breakpoint,
		ViewportWidth: c.Session.ViewportWidth,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "avatar-crop", "config.json")
}
