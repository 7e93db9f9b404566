package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Face detector settings
	Detector DetectorConfig `yaml:"detector"`

	// Crop planner tuning
	Tuning TuningConfig `yaml:"tuning"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf"`
	Threads    int    `yaml:"threads"`
}

type DetectorConfig struct {
	// Backend selects the face detection backend: auto, pigo or yunet.
	Backend string `yaml:"backend"`
	// CascadePath points at a pigo binary cascade file.
	CascadePath string `yaml:"cascade_path"`
	// ModelPath points at a YuNet ONNX model; empty disables the backend.
	ModelPath string `yaml:"model_path"`
	// OrtLibraryPath locates the onnxruntime shared library.
	OrtLibraryPath string `yaml:"ort_library_path"`
	// MaxDetectWidth bounds the frame width used for detection; wider
	// frames are downscaled before detection and the resulting boxes
	// scaled back to source coordinates.
	MaxDetectWidth int `yaml:"max_detect_width"`
}

// TuningConfig holds the crop-path planning constants. The defaults are
// empirically tuned for visually smooth output; they are exposed here
// rather than hardcoded so deployments can override them.
type TuningConfig struct {
	MinFaceScore           float64 `yaml:"min_face_score"`
	MinFaceAreaRatio       float64 `yaml:"min_face_area_ratio"`
	GroupFaceAreaRatio     float64 `yaml:"group_face_area_ratio"`
	GroupMaxSpanRatio      float64 `yaml:"group_max_span_ratio"`
	MissingFaceSeconds     float64 `yaml:"missing_face_seconds"`
	ModeSampleCount        int     `yaml:"mode_sample_count"`
	MotionThreshold        float64 `yaml:"motion_threshold"`
	MotionDecay            float64 `yaml:"motion_decay"`
	DominantRegionFraction float64 `yaml:"dominant_region_fraction"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Preset:     "veryfast",
			CRF:        18,
			Threads:    resolveThreads(),
		},
		Detector: DetectorConfig{
			Backend:        "auto",
			CascadePath:    "models/facefinder",
			ModelPath:      "",
			OrtLibraryPath: "libonnxruntime.so",
			MaxDetectWidth: 640,
		},
		Tuning: TuningConfig{
			MinFaceScore:           0.5,
			MinFaceAreaRatio:       0.001,
			GroupFaceAreaRatio:     0.6,
			GroupMaxSpanRatio:      0.9,
			MissingFaceSeconds:     2.0,
			ModeSampleCount:        12,
			MotionThreshold:        2.0,
			MotionDecay:            0.9,
			DominantRegionFraction: 0.67,
		},
	}
}

// resolveThreads reads the encoder thread count from the environment,
// defaulting to 1. Non-numeric or non-positive values use the default.
func resolveThreads() int {
	value, ok := os.LookupEnv("REFRAME_FFMPEG_THREADS")
	if !ok {
		return 1
	}
	threads, err := strconv.Atoi(value)
	if err != nil || threads < 1 {
		return 1
	}
	return threads
}

func findConfigFile() string {
	candidates := []string{
		"./reframe.yaml",
		"./reframe.yml",
		filepath.Join(os.Getenv("HOME"), ".reframe", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
