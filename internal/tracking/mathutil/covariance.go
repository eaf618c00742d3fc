package mathutil

import (
	"gonum.org/v1/gonum/mat"
)

// Symmetrize returns P <- 1/2(P + P^T), the cheap numerical-discipline
// step applied after every covariance update.
func Symmetrize(p *mat.Dense) *mat.SymDense {
	r, _ := p.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			v := (p.At(i, j) + p.At(j, i)) / 2
			sym.SetSym(i, j, v)
		}
	}
	return sym
}

// RepairResult reports what EigenvalueFloor had to do.
type RepairResult struct {
	Repaired      bool
	MinEigenvalue float64
}

// EigenvalueFloor adds floor*I to p in place if its minimum eigenvalue
// falls below floor. This restores positive semi-definiteness when the
// drift below zero is smaller than floor; a more negative eigenvalue is
// raised by floor and stays negative. Returns whether a repair was
// applied.
func EigenvalueFloor(p *mat.SymDense, floor float64) RepairResult {
	n := p.SymmetricDim()
	var eig mat.EigenSym
	ok := eig.Factorize(p, false)
	if !ok {
		// Factorization failing at all is itself a sign of a badly
		// conditioned matrix; apply the floor unconditionally.
		addScaledIdentity(p, floor)
		return RepairResult{Repaired: true, MinEigenvalue: 0}
	}
	values := eig.Values(nil)
	minEig := values[0]
	for _, v := range values {
		if v < minEig {
			minEig = v
		}
	}
	if minEig < floor {
		addScaledIdentity(p, floor)
		return RepairResult{Repaired: true, MinEigenvalue: minEig}
	}
	_ = n
	return RepairResult{Repaired: false, MinEigenvalue: minEig}
}

func addScaledIdentity(p *mat.SymDense, eps float64) {
	n := p.SymmetricDim()
	for i := 0; i < n; i++ {
		p.SetSym(i, i, p.At(i, i)+eps)
	}
}

// IsPositiveSemiDefinite reports whether every eigenvalue of p is >= -tol.
func IsPositiveSemiDefinite(p *mat.SymDense, tol float64) bool {
	var eig mat.EigenSym
	if !eig.Factorize(p, false) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if v < -tol {
			return false
		}
	}
	return true
}

// JosephUpdate computes the numerically stable Joseph-form covariance
// update P' = (I - K H) P (I - K H)^T + K R K^T, which preserves
// positive-definiteness even when K is not the exact Kalman gain (e.g.
// after gain clipping).
func JosephUpdate(p, k, h, r *mat.Dense) *mat.Dense {
	n, _ := p.Dims()
	ikh := mat.NewDense(n, n, nil)
	kh := mat.NewDense(n, n, nil)
	kh.Mul(k, h)
	identity := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		identity.Set(i, i, 1)
	}
	ikh.Sub(identity, kh)

	var left mat.Dense
	left.Mul(ikh, p)
	var term1 mat.Dense
	term1.Mul(&left, ikh.T())

	var kr mat.Dense
	kr.Mul(k, r)
	var term2 mat.Dense
	term2.Mul(&kr, k.T())

	out := mat.NewDense(n, n, nil)
	out.Add(&term1, &term2)
	return out
}
