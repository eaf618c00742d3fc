package imm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// predict applies model m's state-transition over dt to x, returning
// the predicted state and the Jacobian used to propagate covariance.
// CV and CA are linear so the Jacobian is just their transition matrix;
// CT is linearised around the current turn rate.
func predict(m Model, x *mat.VecDense, dt float64) (*mat.VecDense, *mat.Dense) {
	switch m {
	case CV:
		return predictCV(x, dt)
	case CA:
		return predictCA(x, dt)
	case CT:
		return predictCT(x, dt)
	default:
		return predictCV(x, dt)
	}
}

func identityF() *mat.Dense {
	f := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < StateDim; i++ {
		f.Set(i, i, 1)
	}
	return f
}

func predictCV(x *mat.VecDense, dt float64) (*mat.VecDense, *mat.Dense) {
	f := identityF()
	f.Set(idxX, idxVX, dt)
	f.Set(idxY, idxVY, dt)

	out := mat.NewVecDense(StateDim, nil)
	out.MulVec(f, x)
	return out, f
}

func predictCA(x *mat.VecDense, dt float64) (*mat.VecDense, *mat.Dense) {
	f := identityF()
	f.Set(idxX, idxVX, dt)
	f.Set(idxX, idxAX, 0.5*dt*dt)
	f.Set(idxY, idxVY, dt)
	f.Set(idxY, idxAY, 0.5*dt*dt)
	f.Set(idxVX, idxAX, dt)
	f.Set(idxVY, idxAY, dt)

	out := mat.NewVecDense(StateDim, nil)
	out.MulVec(f, x)
	return out, f
}

// predictCT applies the coordinated-turn model: the velocity vector
// rotates by omega*dt about the z axis, position advances along the
// resulting arc. Falls back to the CV straight-line formula as omega
// approaches zero to avoid a division singularity.
func predictCT(x *mat.VecDense, dt float64) (*mat.VecDense, *mat.Dense) {
	px, py := x.AtVec(idxX), x.AtVec(idxY)
	vx, vy := x.AtVec(idxVX), x.AtVec(idxVY)
	omega := x.AtVec(idxOmega)

	out := mat.NewVecDense(StateDim, nil)
	f := identityF()

	const omegaEps = 1e-6
	if math.Abs(omega) < omegaEps {
		// Degenerates to CV; Jacobian matches predictCV for the
		// position/velocity block, identity elsewhere.
		out.SetVec(idxX, px+vx*dt)
		out.SetVec(idxY, py+vy*dt)
		out.SetVec(idxVX, vx)
		out.SetVec(idxVY, vy)
		out.SetVec(idxAX, x.AtVec(idxAX))
		out.SetVec(idxAY, x.AtVec(idxAY))
		out.SetVec(idxOmega, omega)
		f.Set(idxX, idxVX, dt)
		f.Set(idxY, idxVY, dt)
		return out, f
	}

	sinWT := math.Sin(omega * dt)
	cosWT := math.Cos(omega * dt)

	newX := px + (vx*sinWT-vy*(1-cosWT))/omega
	newY := py + (vy*sinWT+vx*(1-cosWT))/omega
	newVX := vx*cosWT - vy*sinWT
	newVY := vx*sinWT + vy*cosWT

	out.SetVec(idxX, newX)
	out.SetVec(idxY, newY)
	out.SetVec(idxVX, newVX)
	out.SetVec(idxVY, newVY)
	out.SetVec(idxAX, x.AtVec(idxAX))
	out.SetVec(idxAY, x.AtVec(idxAY))
	out.SetVec(idxOmega, omega)

	// Linearised Jacobian (partial derivatives of the CT transition
	// with respect to x, y, vx, vy, omega; ax/ay are not part of this
	// model and carry identity rows).
	f.Set(idxX, idxVX, sinWT/omega)
	f.Set(idxX, idxVY, -(1-cosWT)/omega)
	f.Set(idxY, idxVX, (1-cosWT)/omega)
	f.Set(idxY, idxVY, sinWT/omega)
	f.Set(idxVX, idxVX, cosWT)
	f.Set(idxVX, idxVY, -sinWT)
	f.Set(idxVY, idxVX, sinWT)
	f.Set(idxVY, idxVY, cosWT)

	dOmega := dt * (vx*cosWT - vy*sinWT) // d(newX)/d(omega) approx term, kept simple
	f.Set(idxX, idxOmega, dOmega/omega)
	f.Set(idxY, idxOmega, dOmega/omega)

	return out, f
}

// processNoise builds Q_m(dt) for submodel m as a diagonal matrix: each
// component the model carries gets its configured noise times dt. It
// has no position/velocity cross terms and no dt^2 or dt^3 scaling, so
// it is not the integrated continuous-white-noise-acceleration form.
func processNoise(m Model, dt float64, cfg Config) *mat.SymDense {
	q := mat.NewSymDense(StateDim, nil)
	posQ := cfg.ProcessNoisePos * dt
	velQ := cfg.ProcessNoiseVel * dt
	accQ := cfg.ProcessNoiseAcc * dt
	omgQ := cfg.ProcessNoiseOmega * dt

	q.SetSym(idxX, idxX, posQ)
	q.SetSym(idxY, idxY, posQ)
	q.SetSym(idxVX, idxVX, velQ)
	q.SetSym(idxVY, idxVY, velQ)

	switch m {
	case CA:
		q.SetSym(idxAX, idxAX, accQ)
		q.SetSym(idxAY, idxAY, accQ)
	case CT:
		q.SetSym(idxOmega, idxOmega, omgQ)
	}
	return q
}
