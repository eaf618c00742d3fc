package imm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shridharbhandiwad/ModularTracker/internal/tracking/mathutil"
)

// eigenvalueFloorEpsilon bounds numerical drift: any submodel covariance
// whose minimum eigenvalue falls below this value after a step is
// repaired by adding eigenvalueFloorEpsilon*I.
const eigenvalueFloorEpsilon = 1e-12

// Step runs one IMM cycle: mixing, per-model prediction over dt, and
// (if measurement is non-nil) a per-model measurement update followed
// by a mode-probability update. measurement and H describe the
// observation in the common embedding space (H selects the measured
// components, e.g. position only or position+velocity). A nil
// measurement performs prediction only, used for missed detections
// and coasting tracks; in that case mode probabilities are taken
// directly from the mixing weights and no covariance reduction occurs.
func (b *Bundle) Step(dt float64, measurement *mat.VecDense, h *mat.Dense) {
	mixedStates := b.mix()

	newX := make([]*mat.VecDense, len(b.Models))
	newP := make([]*mat.SymDense, len(b.Models))
	likelihoods := make([]float64, len(b.Models))

	for j, m := range b.Models {
		xPred, f := predict(m, mixedStates[j].x, dt)
		q := processNoise(m, dt, b.Cfg)

		var fp mat.Dense
		fp.Mul(f, mixedStates[j].p)
		var pPred mat.Dense
		pPred.Mul(&fp, f.T())
		pPred.Add(&pPred, q)
		pPredSym := mathutil.Symmetrize(&pPred)

		if measurement == nil {
			newX[j] = xPred
			newP[j] = b.repair(pPredSym)
			likelihoods[j] = mixedStates[j].c // no new information; weight carries through
			continue
		}

		rows, _ := h.Dims()
		r := mat.NewDense(rows, rows, nil)
		for i := 0; i < rows; i++ {
			r.Set(i, i, b.Cfg.MeasurementNoise)
		}

		var hx mat.VecDense
		hx.MulVec(h, xPred)
		var nu mat.VecDense
		nu.SubVec(measurement, &hx)

		var hp mat.Dense
		hp.Mul(h, pPredSym)
		var s mat.Dense
		s.Mul(&hp, h.T())
		s.Add(&s, r)

		var sInv mat.Dense
		err := sInv.Inverse(&s)
		singular := err != nil
		var lambda float64
		if singular {
			lambda = 0 // let the mixer weight this model out gracefully
			newX[j] = xPred
			newP[j] = b.repair(pPredSym)
			likelihoods[j] = lambda
			continue
		}

		var pht mat.Dense
		pht.Mul(pPredSym, h.T())
		var k mat.Dense
		k.Mul(&pht, &sInv)

		var kNu mat.VecDense
		kNu.MulVec(&k, &nu)
		var xUpd mat.VecDense
		xUpd.AddVec(xPred, &kNu)

		pUpdDense := mathutil.JosephUpdate(mat.DenseCopyOf(pPredSym), &k, h, r)
		pUpd := mathutil.Symmetrize(pUpdDense)
		pUpd = b.repair(pUpd)

		newX[j] = &xUpd
		newP[j] = pUpd
		likelihoods[j] = gaussianLikelihood(&nu, &s)
	}

	b.X = newX
	b.P = newP
	b.ModeLikelihoods = likelihoods

	if measurement != nil {
		b.updateModeProbabilities(mixedStates, likelihoods)
	} else {
		for j := range b.Mu {
			b.Mu[j] = mixedStates[j].c
		}
		b.normalizeMu()
	}

	b.recomputeFused()
}

// PredictOnly advances the bundle by dt with no measurement, used for
// coasting tracks: mixing and per-model prediction run, but no
// covariance reduction or mode-probability likelihood update occurs.
func (b *Bundle) PredictOnly(dt float64) {
	b.Step(dt, nil, nil)
}

func (b *Bundle) repair(p *mat.SymDense) *mat.SymDense {
	result := mathutil.EigenvalueFloor(p, eigenvalueFloorEpsilon)
	if result.Repaired {
		b.NumericalRepairs++
	}
	return p
}

func (b *Bundle) updateModeProbabilities(mixedStates []mixed, likelihoods []float64) {
	denom := 0.0
	for j := range b.Mu {
		denom += likelihoods[j] * mixedStates[j].c
	}
	if denom < 1e-300 {
		// All models rejected (e.g. every S singular); fall back to the
		// mixing-only weights rather than dividing by zero.
		for j := range b.Mu {
			b.Mu[j] = mixedStates[j].c
		}
	} else {
		for j := range b.Mu {
			b.Mu[j] = likelihoods[j] * mixedStates[j].c / denom
		}
	}

	floor := b.Cfg.ModeProbabilityFloor
	if floor <= 0 {
		floor = 1e-4
	}
	for j := range b.Mu {
		if b.Mu[j] < floor {
			b.Mu[j] = floor
		}
	}
	b.normalizeMu()
}

func (b *Bundle) normalizeMu() {
	sum := 0.0
	for _, mu := range b.Mu {
		sum += mu
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(b.Mu))
		for j := range b.Mu {
			b.Mu[j] = uniform
		}
		return
	}
	for j := range b.Mu {
		b.Mu[j] /= sum
	}
}

func (b *Bundle) recomputeFused() {
	x := mat.NewVecDense(StateDim, nil)
	for j := range b.Models {
		var scaled mat.VecDense
		scaled.ScaleVec(b.Mu[j], b.X[j])
		x.AddVec(x, &scaled)
	}

	p := mat.NewDense(StateDim, StateDim, nil)
	for j := range b.Models {
		var diff mat.VecDense
		diff.SubVec(b.X[j], x)
		var outer mat.Dense
		outer.Outer(1, &diff, &diff)

		var contrib mat.Dense
		contrib.Add(b.P[j], &outer)
		contrib.Scale(b.Mu[j], &contrib)
		p.Add(p, &contrib)
	}

	b.FusedX = x
	b.FusedP = mathutil.Symmetrize(p)
}

// gaussianLikelihood evaluates N(nu; 0, s).
func gaussianLikelihood(nu *mat.VecDense, s *mat.Dense) float64 {
	n, _ := s.Dims()
	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return 0
	}
	var temp mat.VecDense
	temp.MulVec(&sInv, nu)
	mahalanobis := mat.Dot(nu, &temp)

	det := mat.Det(s)
	if det <= 0 {
		return 0
	}
	norm := 1.0 / math.Sqrt(math.Pow(2*math.Pi, float64(n))*det)
	return norm * math.Exp(-0.5*mahalanobis)
}
