package imm

import "gonum.org/v1/gonum/mat"

// NewBundle seeds a fresh IMM bundle from a cluster's centroid (and
// velocity, if the cluster carries one). CA and CT submodels start
// with their extra dimensions zeroed and a large covariance, reflecting
// the low confidence in those modes before any history accumulates.
func NewBundle(cfg Config, x, y float64, vx, vy float64, hasVelocity bool) *Bundle {
	velVar := 4.0
	if !hasVelocity {
		vx, vy = 0, 0
		velVar = largeVariance
	}

	models := []Model{CV, CA, CT}
	xs := make([]*mat.VecDense, len(models))
	ps := make([]*mat.SymDense, len(models))

	for i, m := range models {
		xs[i] = vec([StateDim]float64{x, y, vx, vy, 0, 0, 0})
		var variances [StateDim]float64
		variances[idxX] = 25.0
		variances[idxY] = 25.0
		variances[idxVX] = velVar
		variances[idxVY] = velVar
		switch m {
		case CV:
			variances[idxAX] = largeVariance
			variances[idxAY] = largeVariance
			variances[idxOmega] = largeVariance
		case CA:
			variances[idxAX] = 9.0
			variances[idxAY] = 9.0
			variances[idxOmega] = largeVariance
		case CT:
			variances[idxAX] = largeVariance
			variances[idxAY] = largeVariance
			variances[idxOmega] = 0.1
		}
		ps[i] = diagSym(variances)
	}

	mu := append([]float64(nil), cfg.InitialMu...)
	if len(mu) != len(models) {
		mu = []float64{0.6, 0.3, 0.1}
	}

	b := &Bundle{
		Models: models,
		X:      xs,
		P:      ps,
		Mu:     mu,
		Cfg:    cfg,
	}
	b.recomputeFused()
	return b
}
