package scape

import (
	"context"
	"math"
)

// SphereScape is sum(x^2), minimized at the origin.
type SphereScape struct{}

func (SphereScape) Name() string {
	return "sphere"
}

func (SphereScape) ShouldMinimize() bool {
	return true
}

func (SphereScape) DefaultBounds() (float64, float64) {
	return -5.12, 5.12
}

func (SphereScape) Score(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := requireDimensions("sphere", x, 1); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// RastriginScape is highly multimodal with its global minimum at the origin.
type RastriginScape struct{}

func (RastriginScape) Name() string {
	return "rastrigin"
}

func (RastriginScape) ShouldMinimize() bool {
	return true
}

func (RastriginScape) DefaultBounds() (float64, float64) {
	return -5.12, 5.12
}

func (RastriginScape) Score(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := requireDimensions("rastrigin", x, 1); err != nil {
		return 0, err
	}
	sum := 10.0 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

// RosenbrockScape is the banana valley, minimized at (1, ..., 1).
type RosenbrockScape struct{}

func (RosenbrockScape) Name() string {
	return "rosenbrock"
}

func (RosenbrockScape) ShouldMinimize() bool {
	return true
}

func (RosenbrockScape) DefaultBounds() (float64, float64) {
	return -2.048, 2.048
}

func (RosenbrockScape) Score(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := requireDimensions("rosenbrock", x, 2); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// AckleyScape has a nearly flat outer region and a deep hole at the origin.
type AckleyScape struct{}

func (AckleyScape) Name() string {
	return "ackley"
}

func (AckleyScape) ShouldMinimize() bool {
	return true
}

func (AckleyScape) DefaultBounds() (float64, float64) {
	return -32.768, 32.768
}

func (AckleyScape) Score(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := requireDimensions("ackley", x, 1); err != nil {
		return 0, err
	}
	n := float64(len(x))
	sumSq, sumCos := 0.0, 0.0
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E, nil
}
