// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every tunable named in the external-interfaces table.
// Unlike the teacher's YAML-file-backed Config, there is no config file
// here: every field comes from an environment variable, bound through
// viper.AutomaticEnv.
type Config struct {
	CameraDevice        string  `mapstructure:"camera_device"`
	ModelDir            string  `mapstructure:"model_dir"`
	DBPath              string  `mapstructure:"db_path"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	VerifyTimeoutSecs   int     `mapstructure:"verify_timeout_secs"`
	WarmupFrames        int     `mapstructure:"warmup_frames"`
	FramesPerVerify     int     `mapstructure:"frames_per_verify"`
	FramesPerEnroll     int     `mapstructure:"frames_per_enroll"`
	EmitterEnabled      bool    `mapstructure:"emitter_enabled"`
	SessionBus          bool    `mapstructure:"session_bus"`
}

// DetectorPath returns the expected location of the face detector model.
func (c *Config) DetectorPath() string {
	return filepath.Join(c.ModelDir, "det_10g.onnx")
}

// RecognizerPath returns the expected location of the face recognizer model.
func (c *Config) RecognizerPath() string {
	return filepath.Join(c.ModelDir, "w600k_r50.onnx")
}

// KeyPath returns the path of the per-installation AES key file, which
// lives beside the database file.
func (c *Config) KeyPath() string {
	return c.DBPath + ".key"
}

var envNames = map[string]string{
	"camera_device":        "CAMERA_DEVICE",
	"model_dir":            "MODEL_DIR",
	"db_path":              "DB_PATH",
	"similarity_threshold": "SIMILARITY_THRESHOLD",
	"verify_timeout_secs":  "VERIFY_TIMEOUT_SECS",
	"warmup_frames":        "WARMUP_FRAMES",
	"frames_per_verify":    "FRAMES_PER_VERIFY",
	"frames_per_enroll":    "FRAMES_PER_ENROLL",
	"emitter_enabled":      "EMITTER_ENABLED",
	"session_bus":          "SESSION_BUS",
}

// Load reads configuration from the environment, applying the spec's
// defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("camera_device", "/dev/video2")
	v.SetDefault("model_dir", "/var/lib/visage/models")
	v.SetDefault("db_path", "/var/lib/visage/faces.db")
	v.SetDefault("similarity_threshold", 0.40)
	v.SetDefault("verify_timeout_secs", 10)
	v.SetDefault("warmup_frames", 4)
	v.SetDefault("frames_per_verify", 3)
	v.SetDefault("frames_per_enroll", 5)
	v.SetDefault("emitter_enabled", true)
	v.SetDefault("session_bus", false)

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{
		CameraDevice:        v.GetString("camera_device"),
		ModelDir:            v.GetString("model_dir"),
		DBPath:              v.GetString("db_path"),
		SimilarityThreshold: v.GetFloat64("similarity_threshold"),
		VerifyTimeoutSecs:   v.GetInt("verify_timeout_secs"),
		WarmupFrames:        v.GetInt("warmup_frames"),
		FramesPerVerify:     v.GetInt("frames_per_verify"),
		FramesPerEnroll:     v.GetInt("frames_per_enroll"),
		EmitterEnabled:      v.GetBool("emitter_enabled"),
		SessionBus:          v.GetBool("session_bus"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values that would let the daemon start
// into a nonsensical state.
func (c *Config) Validate() error {
	if c.CameraDevice == "" {
		return fmt.Errorf("camera_device must not be empty")
	}
	if c.ModelDir == "" {
		return fmt.Errorf("model_dir must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %f", c.SimilarityThreshold)
	}
	if c.VerifyTimeoutSecs <= 0 {
		return fmt.Errorf("verify_timeout_secs must be positive, got %d", c.VerifyTimeoutSecs)
	}
	if c.WarmupFrames < 0 {
		return fmt.Errorf("warmup_frames must not be negative, got %d", c.WarmupFrames)
	}
	if c.FramesPerVerify <= 0 {
		return fmt.Errorf("frames_per_verify must be positive, got %d", c.FramesPerVerify)
	}
	if c.FramesPerEnroll <= 0 {
		return fmt.Errorf("frames_per_enroll must be positive, got %d", c.FramesPerEnroll)
	}
	return nil
}
