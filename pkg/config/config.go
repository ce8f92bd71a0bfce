// Package config provides configuration management for facegate.
// It loads configuration from YAML files with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all facegate configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Session     SessionConfig     `yaml:"session"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// DetectorConfig holds face detection settings.
type DetectorConfig struct {
	CascadeFile      string  `yaml:"cascade_file"`
	MinSize          int     `yaml:"min_size"`
	MaxSize          int     `yaml:"max_size"`
	ShiftFactor      float64 `yaml:"shift_factor"`
	ScaleFactor      float64 `yaml:"scale_factor"`
	IoUThreshold     float64 `yaml:"iou_threshold"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

// RecognitionConfig holds recognition and training settings.
type RecognitionConfig struct {
	// ConfidenceThreshold is the maximum dissimilarity score still
	// accepted as a match. Lower score = more similar.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	TrainerDir          string  `yaml:"trainer_dir"`
	GridX               int     `yaml:"grid_x"`
	GridY               int     `yaml:"grid_y"`
	SampleSize          int     `yaml:"sample_size"`
}

// SessionConfig holds capture session settings. Intervals are in
// milliseconds.
type SessionConfig struct {
	RequiredEnrollSamples int    `yaml:"required_enroll_samples"`
	PollIntervalMs        int    `yaml:"poll_interval_ms"`
	WarmupDelayMs         int    `yaml:"warmup_delay_ms"`
	SettleDelayMs         int    `yaml:"settle_delay_ms"`
	AdminIdentity         string `yaml:"admin_identity"`
}

// PollInterval returns the frame polling cadence.
func (s SessionConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// WarmupDelay returns the camera warm-up delay.
func (s SessionConfig) WarmupDelay() time.Duration {
	return time.Duration(s.WarmupDelayMs) * time.Millisecond
}

// SettleDelay returns how long a terminal result stays visible.
func (s SessionConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleDelayMs) * time.Millisecond
}

// StorageConfig holds face sample storage settings.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".local/share/facegate")
	return &Config{
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
		},
		Detector: DetectorConfig{
			CascadeFile:      filepath.Join(base, "cascade/facefinder"),
			MinSize:          80,
			MaxSize:          1000,
			ShiftFactor:      0.1,
			ScaleFactor:      1.1,
			IoUThreshold:     0.2,
			QualityThreshold: 5.0,
		},
		Recognition: RecognitionConfig{
			ConfidenceThreshold: 65,
			TrainerDir:          filepath.Join(base, "trainer"),
			GridX:               8,
			GridY:               8,
			SampleSize:          100,
		},
		Session: SessionConfig{
			RequiredEnrollSamples: 5,
			PollIntervalMs:        50,
			WarmupDelayMs:         1000,
			SettleDelayMs:         2000,
			AdminIdentity:         "admin",
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(base, "face_data"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(base, "facegate.log"),
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facegate/facegate.yaml"); err == nil {
		return Load("/etc/facegate/facegate.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facegate/facegate.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}

	if c.Detector.MinSize <= 0 {
		return fmt.Errorf("detector min_size must be positive, got %d", c.Detector.MinSize)
	}
	if c.Detector.MaxSize < c.Detector.MinSize {
		return fmt.Errorf("detector max_size (%d) must be >= min_size (%d)", c.Detector.MaxSize, c.Detector.MinSize)
	}
	if c.Detector.ScaleFactor <= 1.0 {
		return fmt.Errorf("detector scale_factor must be > 1.0, got %f", c.Detector.ScaleFactor)
	}
	if c.Detector.ShiftFactor <= 0 || c.Detector.ShiftFactor > 1 {
		return fmt.Errorf("detector shift_factor must be in (0, 1], got %f", c.Detector.ShiftFactor)
	}

	if c.Recognition.ConfidenceThreshold <= 0 {
		return fmt.Errorf("confidence_threshold must be positive, got %f", c.Recognition.ConfidenceThreshold)
	}
	if c.Recognition.GridX <= 0 || c.Recognition.GridY <= 0 {
		return fmt.Errorf("invalid histogram grid: %dx%d", c.Recognition.GridX, c.Recognition.GridY)
	}
	if c.Recognition.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", c.Recognition.SampleSize)
	}

	if c.Session.RequiredEnrollSamples <= 0 {
		return fmt.Errorf("required_enroll_samples must be positive, got %d", c.Session.RequiredEnrollSamples)
	}
	if c.Session.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.Session.PollIntervalMs)
	}
	if c.Session.AdminIdentity == "" {
		return fmt.Errorf("admin_identity must not be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Device = ExpandPath(c.Camera.Device)
	c.Detector.CascadeFile = ExpandPath(c.Detector.CascadeFile)
	c.Recognition.TrainerDir = ExpandPath(c.Recognition.TrainerDir)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.MkdirAll(c.Recognition.TrainerDir, 0700); err != nil {
		return fmt.Errorf("failed to create trainer directory: %w", err)
	}

	logDir := filepath.Dir(c.Logging.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	return nil
}

// ModelFile returns the path of the persisted recognition model.
func (c *Config) ModelFile() string {
	return filepath.Join(c.Recognition.TrainerDir, "model.json")
}

// LabelsFile returns the path of the persisted identity table.
func (c *Config) LabelsFile() string {
	return filepath.Join(c.Recognition.TrainerDir, "labels.json")
}
