package mathutil

import "gonum.org/v1/gonum/stat/distuv"

// GatingThreshold returns the chi-squared quantile gamma such that a
// pairing with squared Mahalanobis distance <= gamma passes the gate at
// the given confidence and degrees of freedom. At 99% confidence and 3
// degrees of freedom this evaluates to approximately 11.345, matching
// the default gating threshold.
func GatingThreshold(confidence float64, degreesOfFreedom int) float64 {
	if confidence <= 0 {
		confidence = 0.99
	}
	if confidence >= 1 {
		confidence = 0.999999
	}
	if degreesOfFreedom <= 0 {
		degreesOfFreedom = 1
	}
	chi2 := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return chi2.Quantile(confidence)
}
