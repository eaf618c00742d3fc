package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is where MustLoadDefaultConfig looks for a committed
// tuning defaults file, if a deployment chooses to ship one. It is not
// itself the source of truth: every tunable also has a hardcoded
// default on its Get* accessor below, and those hardcoded values are
// what the tracker actually runs with when no file is present.
const DefaultConfigPath = "config/tracker.defaults.json"

// Tracking modes for the system.tracking_mode field. TWS runs
// ASSOCIATE+UPDATE+MANAGE as a closed scan-to-scan loop; BEAM_REQUEST
// additionally has MANAGE emit dedicated-dwell cues for CONFIRMED
// tracks via the beam cuer.
const (
	TrackingModeTWS         = "TWS"
	TrackingModeBeamRequest = "BEAM_REQUEST"
)

// TrackerConfig represents the root configuration for the tracking core.
// Sections mirror the configuration surface: system, communication,
// algorithms.{clustering,association,tracking}, track_management,
// processing, output, logging, performance. Fields are pointers so a
// partial JSON document never clobbers a default with a zero value.
type TrackerConfig struct {
	// system
	TrackingMode *string `json:"tracking_mode,omitempty"` // "TWS" or "BEAM_REQUEST"
	MaxTracks    *int    `json:"max_tracks,omitempty"`

	// algorithms.clustering
	ClusterEpsilon        *float64 `json:"clustering_epsilon,omitempty"`
	ClusterMinPoints      *int     `json:"clustering_min_points,omitempty"`
	ClusterMaxSize        *int     `json:"clustering_max_cluster_size,omitempty"`
	ClusterWeightPos      *float64 `json:"clustering_weight_pos,omitempty"`
	ClusterWeightVel      *float64 `json:"clustering_weight_vel,omitempty"`
	ClusterWeightRange    *float64 `json:"clustering_weight_range,omitempty"`
	ClusterWeightAzimuth  *float64 `json:"clustering_weight_azimuth,omitempty"`
	ClusterUseAdaptiveEps *bool    `json:"clustering_use_adaptive_epsilon,omitempty"`
	ClusterAdaptiveK      *float64 `json:"clustering_adaptive_epsilon_k,omitempty"`
	ClusterSNRThreshold   *float64 `json:"clustering_snr_threshold,omitempty"`
	ClusterMaxClusters    *int     `json:"clustering_max_clusters,omitempty"`
	ClusterMinDensity     *float64 `json:"clustering_min_cluster_density,omitempty"`

	// algorithms.association
	GatingThreshold          *float64 `json:"association_gating_threshold,omitempty"`
	GatingConfidence         *float64 `json:"association_gating_confidence,omitempty"`
	GatingDegreesOfFreedom   *int     `json:"association_gating_dof,omitempty"`
	AssignmentAlgorithm      *string  `json:"association_assignment_algorithm,omitempty"` // "hungarian" or "greedy"
	MaxTracksForParallel     *int     `json:"association_max_tracks_for_parallel,omitempty"`
	GateOnVelocityIfPresent  *bool    `json:"association_gate_velocity,omitempty"`
	SingularCovRepairEpsilon *float64 `json:"association_singular_cov_repair_epsilon,omitempty"`

	// algorithms.tracking (IMM)
	IMMProcessNoisePos *float64  `json:"tracking_imm_process_noise_pos,omitempty"`
	IMMProcessNoiseVel *float64  `json:"tracking_imm_process_noise_vel,omitempty"`
	IMMProcessNoiseAcc *float64  `json:"tracking_imm_process_noise_acc,omitempty"`
	IMMProcessNoiseOmg *float64  `json:"tracking_imm_process_noise_omega,omitempty"`
	IMMMeasurementNoise *float64 `json:"tracking_imm_measurement_noise,omitempty"`
	IMMInitialMu       []float64 `json:"tracking_imm_initial_mu,omitempty"`
	IMMTransition      [][]float64 `json:"tracking_imm_transition_matrix,omitempty"`

	// track_management
	ConfirmationThreshold       *int     `json:"track_management_confirmation_threshold,omitempty"`
	DeletionThresholdTentative  *int     `json:"track_management_deletion_threshold_tentative,omitempty"`
	MaxCoastTimeSec             *float64 `json:"track_management_max_coast_time_sec,omitempty"`
	QualityThreshold            *float64 `json:"track_management_quality_threshold,omitempty"`
	CoastingDecayTauSec          *float64 `json:"track_management_coasting_decay_tau_sec,omitempty"`
	HistoryDepth                 *int     `json:"track_management_history_depth,omitempty"`

	// processing
	ThreadPoolSize        *int    `json:"processing_thread_pool_size,omitempty"`
	QueueSizeLimit        *int    `json:"processing_queue_size_limit,omitempty"`
	ProcessingTimeoutMs   *int    `json:"processing_timeout_ms,omitempty"`
	ShutdownDrainTimeout  *string `json:"processing_shutdown_drain_timeout,omitempty"` // duration string, default "100ms"
	ShutdownHardDeadline  *string `json:"processing_shutdown_hard_deadline,omitempty"` // duration string, default "30s"

	// output
	PublishRateHMIHz    *float64 `json:"output_publish_rate_hmi_hz,omitempty"`
	PublishRateFusionHz *float64 `json:"output_publish_rate_fusion_hz,omitempty"`

	// communication (beam request cueing)
	MaxCueRateHz *float64 `json:"communication_max_cue_rate_hz,omitempty"`

	// logging
	LogLevel *string `json:"logging_level,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackerConfig returns a TrackerConfig with all fields set to nil.
// Use LoadConfig to load actual values from a defaults file.
func EmptyTrackerConfig() *TrackerConfig {
	return &TrackerConfig{}
}

// LoadConfig loads a TrackerConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadConfig(path string) (*TrackerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tracker defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TrackerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
		"../../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are internally consistent.
func (c *TrackerConfig) Validate() error {
	if c.TrackingMode != nil {
		switch *c.TrackingMode {
		case TrackingModeTWS, TrackingModeBeamRequest:
		default:
			return fmt.Errorf("tracking_mode must be TWS or BEAM_REQUEST, got %q", *c.TrackingMode)
		}
	}
	if c.AssignmentAlgorithm != nil {
		switch *c.AssignmentAlgorithm {
		case "hungarian", "greedy":
		default:
			return fmt.Errorf("association_assignment_algorithm must be hungarian or greedy, got %q", *c.AssignmentAlgorithm)
		}
	}
	if c.GatingConfidence != nil && (*c.GatingConfidence <= 0 || *c.GatingConfidence >= 1) {
		return fmt.Errorf("association_gating_confidence must be in (0,1), got %f", *c.GatingConfidence)
	}
	if c.MaxTracks != nil && *c.MaxTracks <= 0 {
		return fmt.Errorf("max_tracks must be positive, got %d", *c.MaxTracks)
	}
	if c.ShutdownDrainTimeout != nil && *c.ShutdownDrainTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownDrainTimeout); err != nil {
			return fmt.Errorf("invalid processing_shutdown_drain_timeout %q: %w", *c.ShutdownDrainTimeout, err)
		}
	}
	if c.ShutdownHardDeadline != nil && *c.ShutdownHardDeadline != "" {
		if _, err := time.ParseDuration(*c.ShutdownHardDeadline); err != nil {
			return fmt.Errorf("invalid processing_shutdown_hard_deadline %q: %w", *c.ShutdownHardDeadline, err)
		}
	}
	if len(c.IMMInitialMu) > 0 {
		sum := 0.0
		for _, mu := range c.IMMInitialMu {
			if mu < 0 {
				return fmt.Errorf("tracking_imm_initial_mu entries must be non-negative")
			}
			sum += mu
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("tracking_imm_initial_mu must sum to 1, got %f", sum)
		}
	}
	return nil
}

// --- system ---

func (c *TrackerConfig) GetTrackingMode() string {
	if c.TrackingMode == nil {
		return TrackingModeTWS
	}
	return *c.TrackingMode
}

func (c *TrackerConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 200
	}
	return *c.MaxTracks
}

// --- clustering ---

func (c *TrackerConfig) GetClusterEpsilon() float64 {
	if c.ClusterEpsilon == nil {
		return 0.6
	}
	return *c.ClusterEpsilon
}

func (c *TrackerConfig) GetClusterMinPoints() int {
	if c.ClusterMinPoints == nil {
		return 1
	}
	return *c.ClusterMinPoints
}

func (c *TrackerConfig) GetClusterMaxSize() int {
	if c.ClusterMaxSize == nil {
		return 500
	}
	return *c.ClusterMaxSize
}

func (c *TrackerConfig) GetClusterWeightPos() float64 {
	if c.ClusterWeightPos == nil {
		return 1.0
	}
	return *c.ClusterWeightPos
}

func (c *TrackerConfig) GetClusterWeightVel() float64 {
	if c.ClusterWeightVel == nil {
		return 0.1
	}
	return *c.ClusterWeightVel
}

func (c *TrackerConfig) GetClusterWeightRange() float64 {
	if c.ClusterWeightRange == nil {
		return 0.5
	}
	return *c.ClusterWeightRange
}

func (c *TrackerConfig) GetClusterWeightAzimuth() float64 {
	if c.ClusterWeightAzimuth == nil {
		return 0.3
	}
	return *c.ClusterWeightAzimuth
}

func (c *TrackerConfig) GetClusterUseAdaptiveEpsilon() bool {
	if c.ClusterUseAdaptiveEps == nil {
		return false
	}
	return *c.ClusterUseAdaptiveEps
}

func (c *TrackerConfig) GetClusterAdaptiveK() float64 {
	if c.ClusterAdaptiveK == nil {
		return 0.01
	}
	return *c.ClusterAdaptiveK
}

func (c *TrackerConfig) GetClusterSNRThreshold() float64 {
	if c.ClusterSNRThreshold == nil {
		return 10.0
	}
	return *c.ClusterSNRThreshold
}

func (c *TrackerConfig) GetClusterMaxClusters() int {
	if c.ClusterMaxClusters == nil {
		return 100
	}
	return *c.ClusterMaxClusters
}

func (c *TrackerConfig) GetClusterMinDensity() float64 {
	if c.ClusterMinDensity == nil {
		return 0.0
	}
	return *c.ClusterMinDensity
}

// --- association ---

func (c *TrackerConfig) GetGatingThreshold() float64 {
	if c.GatingThreshold == nil {
		return 11.345 // chi2(0.99, 3 dof)
	}
	return *c.GatingThreshold
}

func (c *TrackerConfig) GetGatingConfidence() float64 {
	if c.GatingConfidence == nil {
		return 0.99
	}
	return *c.GatingConfidence
}

func (c *TrackerConfig) GetGatingDegreesOfFreedom() int {
	if c.GatingDegreesOfFreedom == nil {
		return 3
	}
	return *c.GatingDegreesOfFreedom
}

func (c *TrackerConfig) GetAssignmentAlgorithm() string {
	if c.AssignmentAlgorithm == nil {
		return "hungarian"
	}
	return *c.AssignmentAlgorithm
}

func (c *TrackerConfig) GetMaxTracksForParallel() int {
	if c.MaxTracksForParallel == nil {
		return 64
	}
	return *c.MaxTracksForParallel
}

func (c *TrackerConfig) GetGateOnVelocityIfPresent() bool {
	if c.GateOnVelocityIfPresent == nil {
		return true
	}
	return *c.GateOnVelocityIfPresent
}

func (c *TrackerConfig) GetSingularCovRepairEpsilon() float64 {
	if c.SingularCovRepairEpsilon == nil {
		return 1e-12
	}
	return *c.SingularCovRepairEpsilon
}

// --- IMM ---

func (c *TrackerConfig) GetIMMProcessNoisePos() float64 {
	if c.IMMProcessNoisePos == nil {
		return 0.5
	}
	return *c.IMMProcessNoisePos
}

func (c *TrackerConfig) GetIMMProcessNoiseVel() float64 {
	if c.IMMProcessNoiseVel == nil {
		return 1.0
	}
	return *c.IMMProcessNoiseVel
}

func (c *TrackerConfig) GetIMMProcessNoiseAcc() float64 {
	if c.IMMProcessNoiseAcc == nil {
		return 2.0
	}
	return *c.IMMProcessNoiseAcc
}

func (c *TrackerConfig) GetIMMProcessNoiseOmega() float64 {
	if c.IMMProcessNoiseOmg == nil {
		return 0.05
	}
	return *c.IMMProcessNoiseOmg
}

func (c *TrackerConfig) GetIMMMeasurementNoise() float64 {
	if c.IMMMeasurementNoise == nil {
		return 25.0
	}
	return *c.IMMMeasurementNoise
}

func (c *TrackerConfig) GetIMMInitialMu() []float64 {
	if len(c.IMMInitialMu) == 0 {
		return []float64{0.6, 0.3, 0.1}
	}
	return c.IMMInitialMu
}

func (c *TrackerConfig) GetIMMTransition() [][]float64 {
	if len(c.IMMTransition) == 0 {
		return [][]float64{
			{0.90, 0.07, 0.03},
			{0.10, 0.80, 0.10},
			{0.05, 0.15, 0.80},
		}
	}
	return c.IMMTransition
}

// --- track_management ---

func (c *TrackerConfig) GetConfirmationThreshold() int {
	if c.ConfirmationThreshold == nil {
		return 3
	}
	return *c.ConfirmationThreshold
}

func (c *TrackerConfig) GetDeletionThresholdTentative() int {
	if c.DeletionThresholdTentative == nil {
		return 3
	}
	return *c.DeletionThresholdTentative
}

func (c *TrackerConfig) GetMaxCoastTimeSec() float64 {
	if c.MaxCoastTimeSec == nil {
		return 10.0
	}
	return *c.MaxCoastTimeSec
}

func (c *TrackerConfig) GetQualityThreshold() float64 {
	if c.QualityThreshold == nil {
		return 0.2
	}
	return *c.QualityThreshold
}

func (c *TrackerConfig) GetCoastingDecayTauSec() float64 {
	if c.CoastingDecayTauSec == nil {
		return 5.0
	}
	return *c.CoastingDecayTauSec
}

func (c *TrackerConfig) GetHistoryDepth() int {
	if c.HistoryDepth == nil {
		return 256
	}
	return *c.HistoryDepth
}

// --- processing ---

func (c *TrackerConfig) GetThreadPoolSize() int {
	if c.ThreadPoolSize == nil {
		return 4
	}
	return *c.ThreadPoolSize
}

func (c *TrackerConfig) GetQueueSizeLimit() int {
	if c.QueueSizeLimit == nil {
		return 1024
	}
	return *c.QueueSizeLimit
}

func (c *TrackerConfig) GetProcessingTimeoutMs() int {
	if c.ProcessingTimeoutMs == nil {
		return 100
	}
	return *c.ProcessingTimeoutMs
}

func (c *TrackerConfig) GetShutdownDrainTimeout() time.Duration {
	if c.ShutdownDrainTimeout == nil || *c.ShutdownDrainTimeout == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.ShutdownDrainTimeout)
	if err != nil {
		return 100 * time.Millisecond
	}
	return d
}

func (c *TrackerConfig) GetShutdownHardDeadline() time.Duration {
	if c.ShutdownHardDeadline == nil || *c.ShutdownHardDeadline == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ShutdownHardDeadline)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// --- output ---

func (c *TrackerConfig) GetPublishRateHMIHz() float64 {
	if c.PublishRateHMIHz == nil {
		return 20.0
	}
	return *c.PublishRateHMIHz
}

func (c *TrackerConfig) GetPublishRateFusionHz() float64 {
	if c.PublishRateFusionHz == nil {
		return 50.0
	}
	return *c.PublishRateFusionHz
}

// --- communication ---

func (c *TrackerConfig) GetMaxCueRateHz() float64 {
	if c.MaxCueRateHz == nil {
		return 10.0
	}
	return *c.MaxCueRateHz
}

// --- logging ---

func (c *TrackerConfig) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}
