package ml

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type Activation string

const (
	ActivationLinear  Activation = "linear"
	ActivationSigmoid Activation = "sigmoid"
	ActivationReLU    Activation = "relu"
)

func ParseActivation(s string) (Activation, error) {
	switch Activation(s) {
	case "", ActivationLinear:
		return ActivationLinear, nil
	case ActivationSigmoid, ActivationReLU:
		return Activation(s), nil
	}
	return "", errors.Errorf("unknown activation %q", s)
}

func (a Activation) apply(v float64) float64 {
	switch a {
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-v))
	case ActivationReLU:
		return math.Max(0, v)
	default:
		return v
	}
}

// derivative is expressed in terms of the activation's output.
func (a Activation) derivative(out float64) float64 {
	switch a {
	case ActivationSigmoid:
		return out * (1 - out)
	case ActivationReLU:
		if out > 0 {
			return 1
		}
		return 0
	default:
		return 1
	}
}

// Dense is a fully connected layer: out = act(in·W + b).
type Dense struct {
	units      int
	inputDim   int
	activation Activation

	w *mat.Dense // inputDim x units
	b []float64

	gradW *mat.Dense
	gradB []float64

	lastIn  *mat.Dense
	lastOut *mat.Dense
}

// newDense uses Glorot-uniform kernel initialisation and a zero bias.
func newDense(inputDim, units int, act Activation, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6 / float64(inputDim+units))
	data := make([]float64, inputDim*units)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Dense{
		units:      units,
		inputDim:   inputDim,
		activation: act,
		w:          mat.NewDense(inputDim, units, data),
		b:          make([]float64, units),
		gradW:      mat.NewDense(inputDim, units, nil),
		gradB:      make([]float64, units),
	}
}

func (d *Dense) Units() int {
	return d.units
}

func (d *Dense) InputDim() int {
	return d.inputDim
}

// Weights returns copies of the kernel and bias.
func (d *Dense) Weights() (*mat.Dense, []float64) {
	return mat.DenseCopyOf(d.w), append([]float64(nil), d.b...)
}

func (d *Dense) forward(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, d.units, nil)
	out.Mul(x, d.w)
	out.Apply(func(_, j int, v float64) float64 {
		return d.activation.apply(v + d.b[j])
	}, out)
	d.lastIn, d.lastOut = x, out
	return out
}

// backward consumes dL/dOut, stores the parameter gradients and returns dL/dIn.
func (d *Dense) backward(gradOut *mat.Dense) *mat.Dense {
	n, _ := gradOut.Dims()
	dz := mat.NewDense(n, d.units, nil)
	dz.Apply(func(i, j int, g float64) float64 {
		return g * d.activation.derivative(d.lastOut.At(i, j))
	}, gradOut)

	d.gradW.Mul(d.lastIn.T(), dz)
	for j := 0; j < d.units; j++ {
		d.gradB[j] = mat.Sum(dz.ColView(j))
	}

	gradIn := mat.NewDense(n, d.inputDim, nil)
	gradIn.Mul(dz, d.w.T())
	return gradIn
}

func (d *Dense) params() [][]float64 {
	return [][]float64{d.w.RawMatrix().Data, d.b}
}

func (d *Dense) grads() [][]float64 {
	return [][]float64{d.gradW.RawMatrix().Data, d.gradB}
}
