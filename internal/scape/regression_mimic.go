package scape

import (
	"context"
	"math"
)

// RegressionMimicScape treats the phenotype as polynomial coefficients
// (constant term first) and rewards reproducing y=x on [0, 1]. Fitness is
// 1-mse, so higher is better.
type RegressionMimicScape struct{}

var regressionMimicInputs = []float64{0.0, 0.25, 0.5, 0.75, 1.0}

func (RegressionMimicScape) Name() string {
	return "regression-mimic"
}

func (RegressionMimicScape) ShouldMinimize() bool {
	return false
}

func (RegressionMimicScape) DefaultBounds() (float64, float64) {
	return -2, 2
}

func (RegressionMimicScape) Score(ctx context.Context, coefficients []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := requireDimensions("regression-mimic", coefficients, 1); err != nil {
		return 0, err
	}

	var squaredErr float64
	for _, x := range regressionMimicInputs {
		delta := evaluatePolynomial(coefficients, x) - x
		squaredErr += delta * delta
	}
	mse := squaredErr / float64(len(regressionMimicInputs))
	if math.IsNaN(mse) || math.IsInf(mse, 0) {
		return math.Inf(-1), nil
	}
	return 1.0 - mse, nil
}

func evaluatePolynomial(coefficients []float64, x float64) float64 {
	y := 0.0
	for i := len(coefficients) - 1; i >= 0; i-- {
		y = y*x + coefficients[i]
	}
	return y
}
