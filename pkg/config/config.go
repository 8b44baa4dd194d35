// Package config provides configuration management for FacePunch.
// It loads configuration from YAML files with sensible defaults and lets
// FACEPUNCH_* environment variables override individual settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all FacePunch configuration.
type Config struct {
	Camera       CameraConfig       `yaml:"camera"`
	Detection    DetectionConfig    `yaml:"detection"`
	Recognition  RecognitionConfig  `yaml:"recognition"`
	Liveness     LivenessConfig     `yaml:"liveness"`
	Verification VerificationConfig `yaml:"verification"`
	Attendance   AttendanceConfig   `yaml:"attendance"`
	Enrollment   EnrollmentConfig   `yaml:"enrollment"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device   string `yaml:"device"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	FPS      int    `yaml:"fps"`
	Mirrored bool   `yaml:"mirrored"`
}

// DetectionConfig holds the Haar cascade settings used for face location
// and the blink/smile cues.
type DetectionConfig struct {
	CascadeDir   string  `yaml:"cascade_dir"`
	FaceCascade  string  `yaml:"face_cascade"`
	EyeCascade   string  `yaml:"eye_cascade"`
	SmileCascade string  `yaml:"smile_cascade"`
	MinFaceSize  int     `yaml:"min_face_size"`
	FacePadding  float64 `yaml:"face_padding"`
}

// RecognitionConfig holds face recognition settings.
type RecognitionConfig struct {
	ModelPath string `yaml:"model_path"`
	// Tolerance is the dlib descriptor distance that maps onto
	// AcceptanceThreshold on the score scale.
	Tolerance           float64 `yaml:"tolerance"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	FaceSize            int     `yaml:"face_size"`
}

// LivenessConfig holds challenge-response settings.
type LivenessConfig struct {
	ChallengeSteps   int           `yaml:"challenge_steps"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout"`
	YawLeftRatio     float64       `yaml:"yaw_left_ratio"`
	YawRightRatio    float64       `yaml:"yaw_right_ratio"`
}

// VerificationConfig holds the verified-state hysteresis settings.
type VerificationConfig struct {
	HysteresisFrames int `yaml:"hysteresis_frames"`
}

// AttendanceConfig holds punch settings.
type AttendanceConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// EnrollmentConfig holds sample collection settings.
type EnrollmentConfig struct {
	TargetSamples int `yaml:"target_samples"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	DatabasePath      string `yaml:"database_path"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facepunch")
	return &Config{
		Camera: CameraConfig{
			Device: "0",
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Detection: DetectionConfig{
			CascadeDir:   "/usr/share/opencv4/haarcascades",
			FaceCascade:  "haarcascade_frontalface_default.xml",
			EyeCascade:   "haarcascade_eye.xml",
			SmileCascade: "haarcascade_smile.xml",
			MinFaceSize:  80,
			FacePadding:  0.2,
		},
		Recognition: RecognitionConfig{
			Tolerance:           0.4,
			AcceptanceThreshold: 100,
			FaceSize:            150,
		},
		Liveness: LivenessConfig{
			ChallengeSteps: 2,
			YawLeftRatio:   2.0,
			YawRightRatio:  0.5,
		},
		Verification: VerificationConfig{
			HysteresisFrames: 30,
		},
		Attendance: AttendanceConfig{
			Cooldown: 30 * time.Second,
		},
		Enrollment: EnrollmentConfig{
			TargetSamples: 50,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			EncryptionEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facepunch/facepunch.yaml"); err == nil {
		return Load("/etc/facepunch/facepunch.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facepunch/facepunch.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overrides settings from FACEPUNCH_* environment variables.
// The first value that fails to parse is returned as an error.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("FACEPUNCH_CAMERA_DEVICE"); v != "" {
		c.Camera.Device = v
	}
	if v := os.Getenv("FACEPUNCH_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FACEPUNCH_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("FACEPUNCH_MODEL_PATH"); v != "" {
		c.Recognition.ModelPath = v
	}
	if v := os.Getenv("FACEPUNCH_CASCADE_DIR"); v != "" {
		c.Detection.CascadeDir = v
	}
	if v := os.Getenv("FACEPUNCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FACEPUNCH_ACCEPTANCE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FACEPUNCH_ACCEPTANCE_THRESHOLD: %w", err)
		}
		c.Recognition.AcceptanceThreshold = f
	}
	if v := os.Getenv("FACEPUNCH_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FACEPUNCH_COOLDOWN: %w", err)
		}
		c.Attendance.Cooldown = d
	}
	return nil
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
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Camera.FPS)
	}

	if c.Detection.MinFaceSize < 0 {
		return fmt.Errorf("min_face_size must not be negative, got %d", c.Detection.MinFaceSize)
	}
	if c.Detection.FacePadding < 0 || c.Detection.FacePadding > 1 {
		return fmt.Errorf("face_padding must be between 0 and 1, got %f", c.Detection.FacePadding)
	}

	if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1], got %f", c.Recognition.Tolerance)
	}
	if c.Recognition.AcceptanceThreshold <= 0 {
		return fmt.Errorf("acceptance_threshold must be positive, got %f", c.Recognition.AcceptanceThreshold)
	}
	if c.Recognition.FaceSize < 32 {
		return fmt.Errorf("face_size must be at least 32, got %d", c.Recognition.FaceSize)
	}

	if c.Liveness.ChallengeSteps < 1 || c.Liveness.ChallengeSteps > 4 {
		return fmt.Errorf("challenge_steps must be between 1 and 4, got %d", c.Liveness.ChallengeSteps)
	}
	if c.Liveness.ChallengeTimeout < 0 {
		return fmt.Errorf("challenge_timeout must not be negative, got %s", c.Liveness.ChallengeTimeout)
	}
	if c.Liveness.YawRightRatio <= 0 || c.Liveness.YawLeftRatio <= c.Liveness.YawRightRatio {
		return fmt.Errorf("yaw ratios must satisfy 0 < right (%f) < left (%f)", c.Liveness.YawRightRatio, c.Liveness.YawLeftRatio)
	}

	if c.Verification.HysteresisFrames <= 0 {
		return fmt.Errorf("hysteresis_frames must be positive, got %d", c.Verification.HysteresisFrames)
	}
	if c.Attendance.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Attendance.Cooldown)
	}
	if c.Enrollment.TargetSamples <= 0 {
		return fmt.Errorf("target_samples must be positive, got %d", c.Enrollment.TargetSamples)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration. The database, the
// model directory and the log file default to locations under the data
// directory unless set explicitly. A log file of "none" disables file
// logging.
func (c *Config) ExpandPaths() {
	c.Detection.CascadeDir = ExpandPath(c.Detection.CascadeDir)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)

	c.Storage.DatabasePath = c.underDataDir(c.Storage.DatabasePath, "attendance.db")
	c.Recognition.ModelPath = c.underDataDir(c.Recognition.ModelPath, "models")

	switch c.Logging.File {
	case "none":
		c.Logging.File = ""
	default:
		c.Logging.File = c.underDataDir(c.Logging.File, "facepunch.log")
	}
}

func (c *Config) underDataDir(path, name string) string {
	if path == "" {
		return filepath.Join(c.Storage.DataDir, name)
	}
	return ExpandPath(path)
}

// EnsureDirectories creates necessary directories for storage and logging.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.MkdirAll(c.DatasetDir(), 0700); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.Storage.DatabasePath), 0700); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// DatasetDir returns the directory holding enrolled face samples.
func (c *Config) DatasetDir() string {
	return filepath.Join(c.Storage.DataDir, "dataset")
}

// GalleryPath returns the path of the persisted recognition gallery.
func (c *Config) GalleryPath() string {
	return filepath.Join(c.Storage.DataDir, "gallery.bin")
}

// CascadePath resolves a cascade file name against the cascade directory.
// Absolute names are returned unchanged.
func (c *Config) CascadePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Detection.CascadeDir, name)
}
