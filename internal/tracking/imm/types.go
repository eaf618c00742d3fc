// Package imm implements the Interacting Multiple Model estimator: a
// bank of Constant Velocity (CV), Constant Acceleration (CA) and
// Coordinated Turn (CT) submodels embedded in a common maximal state
// space, blended by a Markov mixture over model probabilities.
package imm

import "gonum.org/v1/gonum/mat"

// Model identifies a submodel's motion hypothesis.
type Model int

const (
	CV Model = iota
	CA
	CT
)

func (m Model) String() string {
	switch m {
	case CV:
		return "CV"
	case CA:
		return "CA"
	case CT:
		return "CT"
	default:
		return "unknown"
	}
}

// Common embedding space: every submodel's state vector has this shape
// regardless of which components it actually drives. This is the
// uniform-embedding strategy: mixing never has to reshape or project
// between differently-sized submodels because every submodel already
// lives in the same 7-dimensional space.
const (
	idxX = iota
	idxY
	idxVX
	idxVY
	idxAX
	idxAY
	idxOmega
	StateDim
)

// largeVariance seeds the covariance of state components a submodel
// does not drive (e.g. acceleration for CV), so mixing naturally washes
// them out without special-casing dimensionality.
const largeVariance = 1e6

// Config holds the IMM estimator's tunables, populated by the caller
// (normally from the tracker's TrackerConfig) so this package stays
// decoupled from the configuration layer.
type Config struct {
	ProcessNoisePos     float64
	ProcessNoiseVel     float64
	ProcessNoiseAcc     float64
	ProcessNoiseOmega   float64
	MeasurementNoise    float64
	InitialMu           []float64   // length 3: CV, CA, CT
	Transition          [][]float64 // 3x3 row-stochastic
	ModeProbabilityFloor float64
}

// DefaultConfig mirrors the tuning surface's default IMM configuration.
func DefaultConfig() Config {
	return Config{
		ProcessNoisePos:   0.5,
		ProcessNoiseVel:   1.0,
		ProcessNoiseAcc:   2.0,
		ProcessNoiseOmega: 0.05,
		MeasurementNoise:  25.0,
		InitialMu:         []float64{0.6, 0.3, 0.1},
		Transition: [][]float64{
			{0.90, 0.07, 0.03},
			{0.10, 0.80, 0.10},
			{0.05, 0.15, 0.80},
		},
		ModeProbabilityFloor: 1e-4,
	}
}

// Bundle is a track's IMM state: r submodels, each with its own state
// vector and covariance, plus a probability distribution over models.
type Bundle struct {
	Models []Model
	X      []*mat.VecDense // len(Models) vectors of length StateDim
	P      []*mat.SymDense // len(Models) StateDim x StateDim matrices
	Mu     []float64
	Cfg    Config

	// Fused output, recomputed at the end of every Step/PredictOnly.
	FusedX *mat.VecDense
	FusedP *mat.SymDense

	// ModeLikelihoods from the most recent Step, kept for diagnostics and
	// tests. After a prediction-only step it holds each model's mixing
	// weight instead of a likelihood.
	ModeLikelihoods []float64

	// NumericalRepairs counts covariance repairs applied across the
	// bundle's lifetime (health/telemetry signal).
	NumericalRepairs int
}

// Clone returns a deep copy of the bundle: independent submodel state
// vectors/covariances and fused output, safe for a reader to retain
// while the original bundle continues to be stepped in place.
func (b *Bundle) Clone() *Bundle {
	models := make([]Model, len(b.Models))
	copy(models, b.Models)

	xs := make([]*mat.VecDense, len(b.X))
	ps := make([]*mat.SymDense, len(b.P))
	for i := range b.X {
		var v mat.VecDense
		v.CloneFromVec(b.X[i])
		xs[i] = &v

		n := b.P[i].SymmetricDim()
		s := mat.NewSymDense(n, nil)
		s.CopySym(b.P[i])
		ps[i] = s
	}

	mu := make([]float64, len(b.Mu))
	copy(mu, b.Mu)

	likelihoods := make([]float64, len(b.ModeLikelihoods))
	copy(likelihoods, b.ModeLikelihoods)

	var fusedX mat.VecDense
	fusedX.CloneFromVec(b.FusedX)
	fusedPN := b.FusedP.SymmetricDim()
	fusedP := mat.NewSymDense(fusedPN, nil)
	fusedP.CopySym(b.FusedP)

	return &Bundle{
		Models:           models,
		X:                xs,
		P:                ps,
		Mu:               mu,
		Cfg:              b.Cfg,
		FusedX:           &fusedX,
		FusedP:           fusedP,
		ModeLikelihoods:  likelihoods,
		NumericalRepairs: b.NumericalRepairs,
	}
}

func vec(values [StateDim]float64) *mat.VecDense {
	return mat.NewVecDense(StateDim, values[:])
}

func diagSym(variances [StateDim]float64) *mat.SymDense {
	s := mat.NewSymDense(StateDim, nil)
	for i, v := range variances {
		s.SetSym(i, i, v)
	}
	return s
}
