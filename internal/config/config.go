package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the classifier section
const (
	EnvClassifierEndpoint = "EMOTION_CLASSIFIER_ENDPOINT"
	EnvClassifierAPIKey   = "EMOTION_CLASSIFIER_API_KEY"
)

// Config represents the complete service configuration
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Audio      AudioConfig      `yaml:"audio"`
	Framing    FramingConfig    `yaml:"framing"`
	VAD        VADConfig        `yaml:"vad"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port           int    `yaml:"port"`
	Address        string `yaml:"address"`
	Enabled        bool   `yaml:"enabled"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
	RequestTimeout int    `yaml:"request_timeout"` // seconds
}

// AudioConfig contains waveform loading parameters
type AudioConfig struct {
	TargetSampleRate int     `yaml:"target_sample_rate"`
	TrimTopDB        float64 `yaml:"trim_top_db"` // negative disables trimming
}

// FramingConfig contains windowing parameters
type FramingConfig struct {
	FrameSeconds    float64 `yaml:"frame_seconds"`
	OverlapSeconds  float64 `yaml:"overlap_seconds"`
	MinTailFraction float64 `yaml:"min_tail_fraction"`
}

// VADConfig contains voice activity detection thresholds
type VADConfig struct {
	MinRMS float64 `yaml:"min_rms"`
	MaxZCR float64 `yaml:"max_zcr"`
}

// ClassifierConfig contains emotion classifier API configuration
type ClassifierConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxConcurrent int    `yaml:"max_concurrent"`
	Workers       int    `yaml:"workers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Address:        "0.0.0.0",
			Enabled:        true,
			MaxUploadMB:    50,
			RequestTimeout: 300,
		},
		Audio: AudioConfig{
			TargetSampleRate: 16000,
			TrimTopDB:        20,
		},
		Framing: FramingConfig{
			FrameSeconds:    1.0,
			OverlapSeconds:  0.5,
			MinTailFraction: 1.0 / 3.0,
		},
		VAD: VADConfig{
			MinRMS: 0.005,
			MaxZCR: 0.4,
		},
		Classifier: ClassifierConfig{
			Timeout:       30,
			MaxConcurrent: 4,
			Workers:       1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file. Values absent from the
// file keep their defaults and environment overrides are applied before
// validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides classifier credentials from the environment
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvClassifierEndpoint)); v != "" {
		c.Classifier.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClassifierAPIKey)); v != "" {
		c.Classifier.APIKey = v
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Framing.Validate(); err != nil {
		return fmt.Errorf("framing config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}

	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty when HTTP is enabled")
	}

	if h.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be at least 1, got %d", h.MaxUploadMB)
	}

	if h.RequestTimeout < 1 {
		return fmt.Errorf("request_timeout must be at least 1 second, got %d", h.RequestTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.TargetSampleRate < 1000 || a.TargetSampleRate > 192000 {
		return fmt.Errorf("target_sample_rate must be between 1000 and 192000 Hz, got %d", a.TargetSampleRate)
	}

	if a.TrimTopDB == 0 {
		return fmt.Errorf("trim_top_db must be positive, or negative to disable trimming")
	}

	return nil
}

// Validate validates framing configuration
func (f *FramingConfig) Validate() error {
	if f.FrameSeconds <= 0 {
		return fmt.Errorf("frame_seconds must be positive, got %f", f.FrameSeconds)
	}

	if f.OverlapSeconds < 0 || f.OverlapSeconds >= f.FrameSeconds {
		return fmt.Errorf("overlap_seconds (%f) must be in [0, frame_seconds (%f))",
			f.OverlapSeconds, f.FrameSeconds)
	}

	if f.MinTailFraction < 0 || f.MinTailFraction > 1 {
		return fmt.Errorf("min_tail_fraction must be between 0 and 1, got %f", f.MinTailFraction)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.MinRMS < 0 {
		return fmt.Errorf("min_rms cannot be negative, got %f", v.MinRMS)
	}

	if v.MaxZCR <= 0 || v.MaxZCR > 1 {
		return fmt.Errorf("max_zcr must be in (0, 1], got %f", v.MaxZCR)
	}

	return nil
}

// Validate validates classifier configuration
func (c *ClassifierConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty (set %s to override)", EnvClassifierEndpoint)
	}

	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http or https URL, got '%s'", c.Endpoint)
	}

	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.Timeout)
	}

	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// any other output is treated as a file path
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}

	return nil
}

// GetTimeoutDuration returns the classifier timeout as a time.Duration
func (c *ClassifierConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetRequestTimeoutDuration returns the HTTP analysis timeout as a time.Duration
func (h *HTTPConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(h.RequestTimeout) * time.Second
}

// GetMaxUploadBytes returns the upload limit in bytes
func (h *HTTPConfig) GetMaxUploadBytes() int64 {
	return int64(h.MaxUploadMB) << 20
}

// GetFrameDuration returns the frame length as a time.Duration
func (f *FramingConfig) GetFrameDuration() time.Duration {
	return time.Duration(f.FrameSeconds * float64(time.Second))
}

// GetOverlapDuration returns the frame overlap as a time.Duration
func (f *FramingConfig) GetOverlapDuration() time.Duration {
	return time.Duration(f.OverlapSeconds * float64(time.Second))
}
