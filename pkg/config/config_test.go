package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Run.Padding != 0 {
		t.Errorf("Expected default padding 0, got %d", cfg.Run.Padding)
	}
	if cfg.Run.Size != 1 {
		t.Errorf("Expected default size 1, got %d", cfg.Run.Size)
	}
	if cfg.Run.SamplingRate != 5 {
		t.Errorf("Expected default sampling rate 5, got %d", cfg.Run.SamplingRate)
	}
	if cfg.Run.Workers < 1 {
		t.Errorf("Expected at least one worker, got %d", cfg.Run.Workers)
	}
	if cfg.Paths.Output == "" {
		t.Error("Expected a default output path")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Run.SamplingRate != 5 {
		t.Errorf("Expected default sampling rate 5, got %d", cfg.Run.SamplingRate)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `run:
  samplingRate: 7
  workers: 2
  deadlineSeconds: 30
paths:
  modelDir: /data/models
  featureOffsets: /data/feature_offsets.npz
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Run.SamplingRate != 7 {
		t.Errorf("Expected sampling rate 7, got %d", cfg.Run.SamplingRate)
	}
	if cfg.Run.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Run.Workers)
	}
	if cfg.Run.DeadlineSeconds != 30 {
		t.Errorf("Expected deadline 30s, got %d", cfg.Run.DeadlineSeconds)
	}
	if cfg.Paths.ModelDir != "/data/models" {
		t.Errorf("Unexpected model dir: %q", cfg.Paths.ModelDir)
	}

	// Values absent from the file keep their defaults
	if cfg.Run.Size != 1 {
		t.Errorf("Expected default size 1, got %d", cfg.Run.Size)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run.yaml")

	cfg := DefaultConfig()
	cfg.Run.SamplingRate = 9
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Run.SamplingRate != 9 {
		t.Errorf("Expected sampling rate 9, got %d", loaded.Run.SamplingRate)
	}
}
