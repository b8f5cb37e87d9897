package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for capture, detection and aiming.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug  bool `json:"debug" yaml:"debug"`
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Detector geometry
	DetectionSize  int    `json:"detection_size" yaml:"detection_size"`
	DetectionSlots int    `json:"detection_slots" yaml:"detection_slots"`
	ModelPath      string `json:"model_path" yaml:"model_path"`

	// Capture
	CaptureMethod          CaptureMethod `json:"capture_method" yaml:"capture_method"`
	CacheTimeout           Duration      `json:"cache_timeout" yaml:"cache_timeout"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures" yaml:"max_consecutive_failures"`
	Area                   AreaMode      `json:"area" yaml:"area"`

	// Feature toggles
	AimAssist        bool     `json:"aim_assist" yaml:"aim_assist"`
	ConstantTracking bool     `json:"constant_tracking" yaml:"constant_tracking"`
	ShowDetected     bool     `json:"show_detected" yaml:"show_detected"`
	ShowConfidence   bool     `json:"show_confidence" yaml:"show_confidence"`
	AutoTrigger      bool     `json:"auto_trigger" yaml:"auto_trigger"`
	TriggerDelay     Duration `json:"trigger_delay" yaml:"trigger_delay"`

	// Key bindings
	AimKey       string `json:"aim_key" yaml:"aim_key"`
	SecondAimKey string `json:"second_aim_key" yaml:"second_aim_key"`

	// Selection
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	FOVEnabled    bool    `json:"fov_enabled" yaml:"fov_enabled"`
	FOVSize       float64 `json:"fov_size" yaml:"fov_size"`

	// Prediction
	Predictions      bool          `json:"predictions" yaml:"predictions"`
	PredictionMethod PredictorKind `json:"prediction_method" yaml:"prediction_method"`
	PredictionAxes   AxisMode      `json:"prediction_axes" yaml:"prediction_axes"`
	EMAAlpha         float64       `json:"ema_alpha" yaml:"ema_alpha"`

	// Motion
	Sensitivity           float64 `json:"sensitivity" yaml:"sensitivity"`
	Jitter                int     `json:"jitter" yaml:"jitter"`
	MotionSmoothing       bool    `json:"motion_smoothing" yaml:"motion_smoothing"`
	MotionSmoothingFactor float64 `json:"motion_smoothing_factor" yaml:"motion_smoothing_factor"`
	MotionBound           int     `json:"motion_bound" yaml:"motion_bound"`

	// Aim point offsets
	XOffset        float64   `json:"x_offset" yaml:"x_offset"`
	YOffset        float64   `json:"y_offset" yaml:"y_offset"`
	XOffsetPercent float64   `json:"x_offset_percent" yaml:"x_offset_percent"`
	YOffsetPercent float64   `json:"y_offset_percent" yaml:"y_offset_percent"`
	XPercentAdjust bool      `json:"x_percent_adjust" yaml:"x_percent_adjust"`
	YPercentAdjust bool      `json:"y_percent_adjust" yaml:"y_percent_adjust"`
	Alignment      Alignment `json:"alignment" yaml:"alignment"`

	// Data collection
	CollectData bool   `json:"collect_data" yaml:"collect_data"`
	AutoLabel   bool   `json:"auto_label" yaml:"auto_label"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                  false,
		DetectionSize:          640,
		DetectionSlots:         8400,
		ModelPath:              filepath.Join("bin", "models", "model.onnx"),
		CaptureMethod:          CaptureDuplication,
		CacheTimeout:           Duration(15 * time.Millisecond),
		MaxConsecutiveFailures: 5,
		Area:                   AreaCenter,
		AimAssist:              false,
		TriggerDelay:           Duration(100 * time.Millisecond),
		AimKey:                 "RMB",
		SecondAimKey:           "LMB",
		MinConfidence:          0.45,
		FOVEnabled:             false,
		FOVSize:                640,
		Predictions:            false,
		PredictionMethod:       PredictKalman,
		PredictionAxes:         AxesX,
		EMAAlpha:               0.5,
		Sensitivity:            0.8,
		Jitter:                 0,
		MotionSmoothingFactor:  0.5,
		MotionBound:            150,
		YOffsetPercent:         50,
		XOffsetPercent:         50,
		Alignment:              AlignCenter,
		DataDir:                "bin",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.DetectionSize <= 0 {
		c.DetectionSize = 640
	}
	if c.DetectionSlots <= 0 {
		c.DetectionSlots = 8400
	}
	if !c.CaptureMethod.Valid() {
		c.CaptureMethod = CaptureDuplication
	}
	if c.CacheTimeout <= 0 {
		c.CacheTimeout = Duration(15 * time.Millisecond)
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 5
	}
	if !c.Area.Valid() {
		c.Area = AreaCenter
	}
	if c.TriggerDelay < 0 {
		c.TriggerDelay = Duration(100 * time.Millisecond)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		c.MinConfidence = 0.45
	}
	if c.FOVSize <= 0 || c.FOVSize > float64(c.DetectionSize) {
		c.FOVSize = float64(c.DetectionSize)
	}
	if !c.PredictionMethod.Valid() {
		c.PredictionMethod = PredictKalman
	}
	if !c.PredictionAxes.Valid() {
		c.PredictionAxes = AxesX
	}
	if c.EMAAlpha <= 0 || c.EMAAlpha > 1 {
		c.EMAAlpha = 0.5
	}
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		c.Sensitivity = 0.8
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.MotionSmoothingFactor <= 0 || c.MotionSmoothingFactor > 1 {
		c.MotionSmoothingFactor = 0.5
	}
	if c.MotionBound <= 0 {
		c.MotionBound = 150
	}
	if !c.Alignment.Valid() {
		c.Alignment = AlignCenter
	}
	if c.DataDir == "" {
		c.DataDir = "bin"
	}
	return nil
}

// FOVWindow returns the effective field-of-view side length. With the FOV toggle
// off the whole detection input is eligible.
func (c *Config) FOVWindow() float64 {
	if !c.FOVEnabled {
		return float64(c.DetectionSize)
	}
	return c.FOVSize
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load attempts to read configuration from the given JSON or YAML file path. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path, YAML for .yaml/.yml and JSON otherwise.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
