package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should return defaults: %v", err)
	}

	if cfg.FFmpeg.Preset != "veryfast" {
		t.Errorf("default preset = %q, want veryfast", cfg.FFmpeg.Preset)
	}
	if cfg.FFmpeg.CRF != 18 {
		t.Errorf("default crf = %d, want 18", cfg.FFmpeg.CRF)
	}
	if cfg.Tuning.MinFaceScore != 0.5 {
		t.Errorf("default min_face_score = %v, want 0.5", cfg.Tuning.MinFaceScore)
	}
	if cfg.Tuning.ModeSampleCount != 12 {
		t.Errorf("default mode_sample_count = %d, want 12", cfg.Tuning.ModeSampleCount)
	}
	if cfg.Detector.MaxDetectWidth != 640 {
		t.Errorf("default max_detect_width = %d, want 640", cfg.Detector.MaxDetectWidth)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reframe.yaml")
	data := []byte("ffmpeg:\n  preset: slow\ntuning:\n  dominant_region_fraction: 0.5\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.FFmpeg.Preset != "slow" {
		t.Errorf("preset = %q, want slow", cfg.FFmpeg.Preset)
	}
	if cfg.Tuning.DominantRegionFraction != 0.5 {
		t.Errorf("dominant_region_fraction = %v, want 0.5", cfg.Tuning.DominantRegionFraction)
	}
	// Untouched fields keep defaults
	if cfg.Tuning.GroupFaceAreaRatio != 0.6 {
		t.Errorf("group_face_area_ratio = %v, want default 0.6", cfg.Tuning.GroupFaceAreaRatio)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")

	cfg, _ := Load("")
	cfg.FFmpeg.CRF = 23
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.FFmpeg.CRF != 23 {
		t.Errorf("crf after round trip = %d, want 23", loaded.FFmpeg.CRF)
	}
}

func TestResolveThreads(t *testing.T) {
	t.Setenv("REFRAME_FFMPEG_THREADS", "4")
	if got := resolveThreads(); got != 4 {
		t.Errorf("resolveThreads = %d, want 4", got)
	}

	t.Setenv("REFRAME_FFMPEG_THREADS", "not-a-number")
	if got := resolveThreads(); got != 1 {
		t.Errorf("resolveThreads with garbage = %d, want 1", got)
	}

	t.Setenv("REFRAME_FFMPEG_THREADS", "0")
	if got := resolveThreads(); got != 1 {
		t.Errorf("resolveThreads with zero = %d, want 1", got)
	}
}
