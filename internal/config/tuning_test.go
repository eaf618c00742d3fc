package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyTrackerConfigGetterDefaults(t *testing.T) {
	cfg := EmptyTrackerConfig()

	if cfg.GetTrackingMode() != "TWS" {
		t.Errorf("GetTrackingMode() = %q, want TWS", cfg.GetTrackingMode())
	}
	if cfg.GetMaxTracks() != 200 {
		t.Errorf("GetMaxTracks() = %d, want 200", cfg.GetMaxTracks())
	}
	if cfg.GetClusterEpsilon() != 0.6 {
		t.Errorf("GetClusterEpsilon() = %f, want 0.6", cfg.GetClusterEpsilon())
	}
	if cfg.GetGatingThreshold() != 11.345 {
		t.Errorf("GetGatingThreshold() = %f, want 11.345", cfg.GetGatingThreshold())
	}
	if cfg.GetConfirmationThreshold() != 3 {
		t.Errorf("GetConfirmationThreshold() = %d, want 3", cfg.GetConfirmationThreshold())
	}
	if cfg.GetAssignmentAlgorithm() != "hungarian" {
		t.Errorf("GetAssignmentAlgorithm() = %q, want hungarian", cfg.GetAssignmentAlgorithm())
	}
	mu := cfg.GetIMMInitialMu()
	if len(mu) != 3 || mu[0] != 0.6 || mu[1] != 0.3 || mu[2] != 0.1 {
		t.Errorf("GetIMMInitialMu() = %v, want [0.6 0.3 0.1]", mu)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "max_tracks": 50,
  "association_gating_threshold": 9.21
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load partial config: %v", err)
	}

	if cfg.GetMaxTracks() != 50 {
		t.Errorf("GetMaxTracks() = %d, want 50", cfg.GetMaxTracks())
	}
	if cfg.GetGatingThreshold() != 9.21 {
		t.Errorf("GetGatingThreshold() = %f, want 9.21", cfg.GetGatingThreshold())
	}
	// Everything else keeps its default.
	if cfg.GetTrackingMode() != "TWS" {
		t.Errorf("GetTrackingMode() = %q, want default TWS", cfg.GetTrackingMode())
	}
	if cfg.GetClusterMinPoints() != 1 {
		t.Errorf("GetClusterMinPoints() = %d, want default 1", cfg.GetClusterMinPoints())
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("expected error when loading missing file, got nil")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.json")

	invalidJSON := `{
  "max_tracks": "not-a-number"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected error when loading invalid JSON, got nil")
	}
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-.json extension, got nil")
	}
}

func TestLoadConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("failed to write large file: %v", err)
	}

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TrackerConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &TrackerConfig{}, wantErr: false},
		{
			name:    "valid tracking mode",
			cfg:     &TrackerConfig{TrackingMode: ptrString("BEAM_REQUEST")},
			wantErr: false,
		},
		{
			name:    "invalid tracking mode",
			cfg:     &TrackerConfig{TrackingMode: ptrString("SCAN")},
			wantErr: true,
		},
		{
			name:    "invalid assignment algorithm",
			cfg:     &TrackerConfig{AssignmentAlgorithm: ptrString("auction")},
			wantErr: true,
		},
		{
			name:    "invalid gating confidence",
			cfg:     &TrackerConfig{GatingConfidence: ptrFloat64(1.5)},
			wantErr: true,
		},
		{
			name:    "non-positive max tracks",
			cfg:     &TrackerConfig{MaxTracks: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "invalid shutdown drain timeout",
			cfg:     &TrackerConfig{ShutdownDrainTimeout: ptrString("soon")},
			wantErr: true,
		},
		{
			name:    "imm mu does not sum to one",
			cfg:     &TrackerConfig{IMMInitialMu: []float64{0.5, 0.5, 0.5}},
			wantErr: true,
		},
		{
			name:    "imm mu sums to one",
			cfg:     &TrackerConfig{IMMInitialMu: []float64{0.5, 0.3, 0.2}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetShutdownTimeouts(t *testing.T) {
	cfg := &TrackerConfig{}
	if cfg.GetShutdownDrainTimeout() != 100*time.Millisecond {
		t.Errorf("GetShutdownDrainTimeout() = %v, want 100ms", cfg.GetShutdownDrainTimeout())
	}
	if cfg.GetShutdownHardDeadline() != 30*time.Second {
		t.Errorf("GetShutdownHardDeadline() = %v, want 30s", cfg.GetShutdownHardDeadline())
	}

	cfg2 := &TrackerConfig{
		ShutdownDrainTimeout: ptrString("250ms"),
		ShutdownHardDeadline: ptrString("45s"),
	}
	if cfg2.GetShutdownDrainTimeout() != 250*time.Millisecond {
		t.Errorf("GetShutdownDrainTimeout() = %v, want 250ms", cfg2.GetShutdownDrainTimeout())
	}
	if cfg2.GetShutdownHardDeadline() != 45*time.Second {
		t.Errorf("GetShutdownHardDeadline() = %v, want 45s", cfg2.GetShutdownHardDeadline())
	}
}

func TestGetIMMTransitionDefault(t *testing.T) {
	cfg := &TrackerConfig{}
	tm := cfg.GetIMMTransition()
	if len(tm) != 3 || len(tm[0]) != 3 {
		t.Fatalf("GetIMMTransition() shape = %v, want 3x3", tm)
	}
	for i, row := range tm {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("row %d does not sum to 1: %v", i, row)
		}
	}
}
