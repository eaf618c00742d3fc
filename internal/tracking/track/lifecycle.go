package track

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/shridharbhandiwad/ModularTracker/internal/config"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/imm"
	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/ringbuf"
)

// NewTrack births a TENTATIVE track from an unassociated cluster
// centroid (and velocity, if the cluster carried one), per the MANAGE
// birth transition. Track ids are globally unique and never reused.
func NewTrack(cfg *config.TrackerConfig, sensorID string, x, y, vx, vy float64, hasVelocity bool, snr float64, now time.Time) *Track {
	bundle := imm.NewBundle(immConfig(cfg), x, y, vx, vy, hasVelocity)

	t := &Track{
		ID:                  "trk_" + uuid.NewString(),
		State:               Tentative,
		CreationTimestamp:   now,
		LastUpdateTimestamp: now,
		LastHitTimestamp:    now,
		Hits:                1,
		TotalHits:           1,
		AvgSNR:              snr,
		Bundle:              bundle,
		History:             ringbuf.New[Point](cfg.GetHistoryDepth()),
		SensorID:            sensorID,
	}
	t.History.Push(Point{X: x, Y: y, VX: vx, VY: vy, Timestamp: now})
	t.recomputeQuality(cfg, now)
	return t
}

// immConfig adapts the tracker configuration's IMM tunables into the
// imm package's own Config, keeping the two packages decoupled.
func immConfig(cfg *config.TrackerConfig) imm.Config {
	return imm.Config{
		ProcessNoisePos:      cfg.GetIMMProcessNoisePos(),
		ProcessNoiseVel:      cfg.GetIMMProcessNoiseVel(),
		ProcessNoiseAcc:      cfg.GetIMMProcessNoiseAcc(),
		ProcessNoiseOmega:    cfg.GetIMMProcessNoiseOmega(),
		MeasurementNoise:     cfg.GetIMMMeasurementNoise(),
		InitialMu:            cfg.GetIMMInitialMu(),
		Transition:           cfg.GetIMMTransition(),
		ModeProbabilityFloor: 1e-4,
	}
}

// RecordHit applies a successful association: increments hit counters,
// resets the miss streak, appends to history, recomputes quality, and
// applies the TENTATIVE->CONFIRMED and COASTING->CONFIRMED promotions.
func (t *Track) RecordHit(cfg *config.TrackerConfig, x, y, vx, vy float64, snr float64, now time.Time) {
	t.Hits++
	t.Misses = 0
	t.TotalHits++
	t.LastUpdateTimestamp = now
	t.LastHitTimestamp = now
	t.AvgSNR = 0.8*t.AvgSNR + 0.2*snr
	t.History.Push(Point{X: x, Y: y, VX: vx, VY: vy, Timestamp: now})

	switch t.State {
	case Tentative:
		if t.Hits >= cfg.GetConfirmationThreshold() {
			t.State = Confirmed
		}
	case Coasting:
		t.State = Confirmed
	}

	t.recomputeQuality(cfg, now)
}

// RecordMiss applies a missed association: increments the miss streak,
// recomputes quality against elapsed coasting time, and applies the
// TENTATIVE->TERMINATED, CONFIRMED->COASTING and COASTING->TERMINATED
// transitions.
func (t *Track) RecordMiss(cfg *config.TrackerConfig, now time.Time) {
	t.Misses++
	t.TotalMisses++
	t.LastUpdateTimestamp = now

	switch t.State {
	case Tentative:
		if t.Misses >= cfg.GetDeletionThresholdTentative() {
			t.State = Terminated
		}
	case Confirmed:
		elapsed := now.Sub(t.LastHitTimestamp).Seconds()
		if t.Misses >= 1 && elapsed < cfg.GetMaxCoastTimeSec() {
			t.State = Coasting
		}
	case Coasting:
		elapsed := now.Sub(t.LastHitTimestamp).Seconds()
		t.recomputeQuality(cfg, now)
		if elapsed >= cfg.GetMaxCoastTimeSec() || t.QualityScore < cfg.GetQualityThreshold() {
			t.State = Terminated
		}
	}

	t.recomputeQuality(cfg, now)
}

// recomputeQuality applies the quality-score blend:
// q = 0.5*hit_ratio + 0.3*snr_ratio + 0.2*age_bonus, with coasting
// decay exp(-elapsed/tau) applied on top while in COASTING.
func (t *Track) recomputeQuality(cfg *config.TrackerConfig, now time.Time) {
	hitRatio := t.hitRatio()
	snrRatio := clamp01(t.AvgSNR / 30.0)

	ageSec := now.Sub(t.CreationTimestamp).Seconds()
	ageBonus := clamp01(math.Log1p(ageSec) / math.Log1p(60.0))

	q := 0.5*hitRatio + 0.3*snrRatio + 0.2*ageBonus

	if t.State == Coasting {
		tau := cfg.GetCoastingDecayTauSec()
		if tau <= 0 {
			tau = 5.0
		}
		elapsed := now.Sub(t.LastHitTimestamp).Seconds()
		q *= math.Exp(-elapsed / tau)
	}

	t.QualityScore = clamp01(q)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
