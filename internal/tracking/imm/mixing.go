package imm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/mathutil"
)

// mixed holds one target model's mixed initial condition (step 1 of
// the IMM cycle).
type mixed struct {
	x *mat.VecDense
	p *mat.SymDense
	c float64 // predicted mixing weight for this target model
}

// mix computes, for every target model j, the mixed initial state and
// covariance from the bundle's current per-model estimates (the
// standard IMM interaction/mixing step).
func (b *Bundle) mix() []mixed {
	r := len(b.Models)
	pi := b.Cfg.Transition

	c := make([]float64, r)
	for j := 0; j < r; j++ {
		for i := 0; i < r; i++ {
			c[j] += pi[i][j] * b.Mu[i]
		}
		if c[j] < 1e-12 {
			c[j] = 1e-12
		}
	}

	muCond := make([][]float64, r)
	for i := 0; i < r; i++ {
		muCond[i] = make([]float64, r)
		for j := 0; j < r; j++ {
			muCond[i][j] = pi[i][j] * b.Mu[i] / c[j]
		}
	}

	out := make([]mixed, r)
	for j := 0; j < r; j++ {
		x0 := mat.NewVecDense(StateDim, nil)
		for i := 0; i < r; i++ {
			var scaled mat.VecDense
			scaled.ScaleVec(muCond[i][j], b.X[i])
			x0.AddVec(x0, &scaled)
		}

		p0 := mat.NewDense(StateDim, StateDim, nil)
		for i := 0; i < r; i++ {
			var diff mat.VecDense
			diff.SubVec(b.X[i], x0)
			var outer mat.Dense
			outer.Outer(1, &diff, &diff)

			var contrib mat.Dense
			contrib.Add(b.P[i], &outer)
			contrib.Scale(muCond[i][j], &contrib)
			p0.Add(p0, &contrib)
		}

		out[j] = mixed{x: x0, p: mathutil.Symmetrize(p0), c: c[j]}
	}
	return out
}
