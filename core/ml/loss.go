package ml

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const bceEpsilon = 1e-7

// Loss reduces predictions against targets to a scalar and gives dL/dPred.
// Both are means over every element of the batch.
type Loss interface {
	Name() string
	Forward(pred, target *mat.Dense) float64
	Gradient(pred, target *mat.Dense) *mat.Dense
}

func NewLoss(name string) (Loss, error) {
	switch name {
	case "meanSquaredError", "mse":
		return MSELoss{}, nil
	case "binaryCrossentropy", "bce":
		return BinaryCrossEntropyLoss{}, nil
	}
	return nil, errors.Errorf("unknown loss %q", name)
}

type MSELoss struct{}

func (MSELoss) Name() string { return "meanSquaredError" }

func (MSELoss) Forward(pred, target *mat.Dense) float64 {
	r, c := pred.Dims()
	var diff mat.Dense
	diff.Sub(pred, target)
	diff.MulElem(&diff, &diff)
	return mat.Sum(&diff) / float64(r*c)
}

func (MSELoss) Gradient(pred, target *mat.Dense) *mat.Dense {
	r, c := pred.Dims()
	grad := mat.NewDense(r, c, nil)
	grad.Sub(pred, target)
	grad.Scale(2/float64(r*c), grad)
	return grad
}

// BinaryCrossEntropyLoss clamps probabilities to [eps, 1-eps].
// Targets outside {0,1} are accepted as-is.
type BinaryCrossEntropyLoss struct{}

func (BinaryCrossEntropyLoss) Name() string { return "binaryCrossentropy" }

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, bceEpsilon), 1-bceEpsilon)
}

func (BinaryCrossEntropyLoss) Forward(pred, target *mat.Dense) float64 {
	r, c := pred.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p, t := clampProb(pred.At(i, j)), target.At(i, j)
			sum -= t*math.Log(p) + (1-t)*math.Log(1-p)
		}
	}
	return sum / float64(r*c)
}

func (BinaryCrossEntropyLoss) Gradient(pred, target *mat.Dense) *mat.Dense {
	r, c := pred.Dims()
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)
	grad.Apply(func(i, j int, v float64) float64 {
		p := clampProb(v)
		return (p - target.At(i, j)) / (p * (1 - p)) / n
	}, pred)
	return grad
}
