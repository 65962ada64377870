// Package config loads the daemon's static startup configuration.
//
// The schema uses pointer fields so a partial JSON file only overrides the
// values it names; the Get* accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/visiond/internal/monitoring"
)

// DaemonConfig is the root configuration consumed once at startup. There is
// no hot reload: the daemon snapshots these values during initialization.
type DaemonConfig struct {
	// Camera params
	CameraURL     *string `json:"camera_url,omitempty"`
	CameraWidth   *int    `json:"camera_width,omitempty"`
	CameraHeight  *int    `json:"camera_height,omitempty"`
	CameraFPS     *float64 `json:"camera_fps,omitempty"`
	AllowVirtual  *bool   `json:"allow_virtual,omitempty"`
	ReplayDir     *string `json:"replay_dir,omitempty"`

	// Detection params
	MinBlobArea     *int     `json:"min_blob_area,omitempty"`
	LearningRate    *float64 `json:"learning_rate,omitempty"`
	VarThreshold    *float64 `json:"var_threshold,omitempty"`
	ShadowDetection *bool    `json:"shadow_detection,omitempty"`
	StabilityFrames *int     `json:"stability_frames,omitempty"`
	History         *int     `json:"history,omitempty"`
	ProcessingWidth *int     `json:"processing_width,omitempty"`

	// Performance params
	IdleFPS          *float64 `json:"idle_fps,omitempty"`
	ActiveFPS        *float64 `json:"active_fps,omitempty"`
	MaxFPS           *float64 `json:"max_fps,omitempty"`
	ActiveHold       *string  `json:"active_hold,omitempty"` // duration string like "30s"
	StatsInterval    *string  `json:"stats_interval,omitempty"`

	// Memory params
	MaxRSSMB        *int `json:"max_rss_mb,omitempty"`
	CleanupInterval *int `json:"cleanup_interval,omitempty"` // detections between GC passes
}

// Default returns the hard-coded configuration used when no file is
// available. These values match an unattended 24/7 deployment: slow idle
// polling, bounded memory, virtual camera fallback enabled.
func Default() *DaemonConfig {
	return &DaemonConfig{}
}

// Load reads a DaemonConfig from a JSON file. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func Load(path string) (*DaemonConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DaemonConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads a config file, degrading to the built-in defaults on
// any error. A missing or malformed file must not stop the daemon.
func LoadOrDefault(path string) *DaemonConfig {
	if path == "" {
		return Default()
	}
	cfg, err := Load(path)
	if err != nil {
		monitoring.Logf("config %s unusable, using built-in defaults: %v", path, err)
		return Default()
	}
	return cfg
}

// Validate checks that the configuration values are valid.
func (c *DaemonConfig) Validate() error {
	if c.MinBlobArea != nil && *c.MinBlobArea < 0 {
		return fmt.Errorf("min_blob_area must be non-negative, got %d", *c.MinBlobArea)
	}
	if c.LearningRate != nil {
		if *c.LearningRate <= 0 || *c.LearningRate > 1 {
			return fmt.Errorf("learning_rate must be in (0, 1], got %f", *c.LearningRate)
		}
	}
	if c.VarThreshold != nil && *c.VarThreshold <= 0 {
		return fmt.Errorf("var_threshold must be positive, got %f", *c.VarThreshold)
	}
	if c.IdleFPS != nil && *c.IdleFPS <= 0 {
		return fmt.Errorf("idle_fps must be positive, got %f", *c.IdleFPS)
	}
	if c.ActiveFPS != nil && *c.ActiveFPS <= 0 {
		return fmt.Errorf("active_fps must be positive, got %f", *c.ActiveFPS)
	}
	if c.MaxFPS != nil && c.ActiveFPS != nil && *c.ActiveFPS > *c.MaxFPS {
		return fmt.Errorf("active_fps %f exceeds max_fps %f", *c.ActiveFPS, *c.MaxFPS)
	}
	if c.ActiveHold != nil && *c.ActiveHold != "" {
		if _, err := time.ParseDuration(*c.ActiveHold); err != nil {
			return fmt.Errorf("invalid active_hold '%s': %w", *c.ActiveHold, err)
		}
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
	}
	if c.MaxRSSMB != nil && *c.MaxRSSMB < 0 {
		return fmt.Errorf("max_rss_mb must be non-negative, got %d", *c.MaxRSSMB)
	}
	if c.CleanupInterval != nil && *c.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1, got %d", *c.CleanupInterval)
	}
	return nil
}

// GetCameraURL returns the camera source URL, or "" meaning no real camera
// is configured.
func (c *DaemonConfig) GetCameraURL() string {
	if c.CameraURL == nil {
		return ""
	}
	return *c.CameraURL
}

// GetCameraWidth returns the requested frame width.
func (c *DaemonConfig) GetCameraWidth() int {
	if c.CameraWidth == nil {
		return 1280
	}
	return *c.CameraWidth
}

// GetCameraHeight returns the requested frame height.
func (c *DaemonConfig) GetCameraHeight() int {
	if c.CameraHeight == nil {
		return 720
	}
	return *c.CameraHeight
}

// GetAllowVirtual returns whether the synthetic camera fallback is allowed.
func (c *DaemonConfig) GetAllowVirtual() bool {
	if c.AllowVirtual == nil {
		return true
	}
	return *c.AllowVirtual
}

// GetReplayDir returns the frame-replay directory, or "" when unset.
func (c *DaemonConfig) GetReplayDir() string {
	if c.ReplayDir == nil {
		return ""
	}
	return *c.ReplayDir
}

// GetMinBlobArea returns the minimum blob area in pixels squared.
func (c *DaemonConfig) GetMinBlobArea() int {
	if c.MinBlobArea == nil {
		return 500
	}
	return *c.MinBlobArea
}

// GetLearningRate returns the background model update fraction.
func (c *DaemonConfig) GetLearningRate() float64 {
	if c.LearningRate == nil {
		return 0.005
	}
	return *c.LearningRate
}

// GetVarThreshold returns the squared-deviation multiplier separating
// foreground from background.
func (c *DaemonConfig) GetVarThreshold() float64 {
	if c.VarThreshold == nil {
		return 16.0
	}
	return *c.VarThreshold
}

// GetShadowDetection returns whether shadow suppression is enabled.
func (c *DaemonConfig) GetShadowDetection() bool {
	if c.ShadowDetection == nil {
		return false // off by default for speed
	}
	return *c.ShadowDetection
}

// GetStabilityFrames returns the window length for the stability check.
func (c *DaemonConfig) GetStabilityFrames() int {
	if c.StabilityFrames == nil {
		return 5
	}
	return *c.StabilityFrames
}

// GetHistory returns the background model history window in frames.
func (c *DaemonConfig) GetHistory() int {
	if c.History == nil {
		return 200
	}
	return *c.History
}

// GetProcessingWidth returns the width frames are downscaled to before
// background subtraction. Zero disables downscaling.
func (c *DaemonConfig) GetProcessingWidth() int {
	if c.ProcessingWidth == nil {
		return 640
	}
	return *c.ProcessingWidth
}

// GetIdleFPS returns the polling rate while nothing has fired recently.
func (c *DaemonConfig) GetIdleFPS() float64 {
	if c.IdleFPS == nil {
		return 0.5
	}
	return *c.IdleFPS
}

// GetActiveFPS returns the polling rate immediately after a detection.
func (c *DaemonConfig) GetActiveFPS() float64 {
	if c.ActiveFPS == nil {
		return 5.0
	}
	return *c.ActiveFPS
}

// GetMaxFPS returns the hard ceiling on the polling rate.
func (c *DaemonConfig) GetMaxFPS() float64 {
	if c.MaxFPS == nil {
		return 10.0
	}
	return *c.MaxFPS
}

// GetActiveHold returns how long the loop stays at active FPS after the
// last detection before decaying back to idle.
func (c *DaemonConfig) GetActiveHold() time.Duration {
	if c.ActiveHold == nil || *c.ActiveHold == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ActiveHold)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetStatsInterval returns the period between stats log lines.
func (c *DaemonConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetMaxRSSMB returns the resident-memory ceiling in MB. Zero disables the
// memory circuit breaker.
func (c *DaemonConfig) GetMaxRSSMB() int {
	if c.MaxRSSMB == nil {
		return 512
	}
	return *c.MaxRSSMB
}

// GetCleanupInterval returns how many detections pass between forced GC and
// memory checks.
func (c *DaemonConfig) GetCleanupInterval() int {
	if c.CleanupInterval == nil {
		return 50
	}
	return *c.CleanupInterval
}
