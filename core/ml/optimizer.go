package ml

import (
	"math"

	"github.com/pkg/errors"
)

// Optimizer updates params in place from grads. The i-th grads slice
// belongs to the i-th params slice and the layout must stay the same
// between calls.
type Optimizer interface {
	Name() string
	Step(params, grads [][]float64)
	LearningRate() float64
}

func NewOptimizer(name string, lr float64) (Optimizer, error) {
	if lr <= 0 || math.IsNaN(lr) || math.IsInf(lr, 0) {
		return nil, errors.Errorf("invalid learning rate %v", lr)
	}
	switch name {
	case "sgd":
		return &SGD{lr: lr}, nil
	case "adam":
		return NewAdam(lr), nil
	}
	return nil, errors.Errorf("unknown optimizer %q", name)
}

type SGD struct {
	lr float64
}

func (o *SGD) Name() string { return "sgd" }

func (o *SGD) LearningRate() float64 { return o.lr }

func (o *SGD) Step(params, grads [][]float64) {
	for i, p := range params {
		for j := range p {
			p[j] -= o.lr * grads[i][j]
		}
	}
}

type Adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64

	t int
	m [][]float64
	v [][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, epsilon: 1e-7}
}

func (o *Adam) Name() string { return "adam" }

func (o *Adam) LearningRate() float64 { return o.lr }

func (o *Adam) Step(params, grads [][]float64) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, len(p))
			o.v[i] = make([]float64, len(p))
		}
	}
	o.t++
	corr1 := 1 - math.Pow(o.beta1, float64(o.t))
	corr2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, p := range params {
		m, v, g := o.m[i], o.v[i], grads[i]
		for j := range p {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g[j]
			v[j] = o.beta2*v[j] + (1-o.beta2)*g[j]*g[j]
			p[j] -= o.lr * (m[j] / corr1) / (math.Sqrt(v[j]/corr2) + o.epsilon)
		}
	}
}
