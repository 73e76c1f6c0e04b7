package ml

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotCompiled = errors.New("model is not compiled")
	ErrNoLayers    = errors.New("model has no layers")
	ErrNonFinite   = errors.New("training diverged: loss or weights are not finite")
)

const DefaultBatchSize = 32

type LayerSpec struct {
	Units      int
	InputDim   int // only read for the first layer
	Activation string
}

type ModelSpec struct {
	Layers       []LayerSpec
	Loss         string
	Optimizer    string
	LearningRate float64
}

type FitOptions struct {
	Epochs    int
	BatchSize int
	Shuffle   bool
}

// History holds the mean training loss of every completed epoch.
type History struct {
	Loss []float64
}

func (h *History) Final() float64 {
	if h == nil || len(h.Loss) == 0 {
		return math.NaN()
	}
	return h.Loss[len(h.Loss)-1]
}

// Sequential is a stack of dense layers trained by mini-batch gradient
// descent. Fit and Predict are mutually exclusive.
type Sequential struct {
	mutex  sync.Mutex
	rng    *rand.Rand
	layers []*Dense
	loss   Loss
	opt    Optimizer
}

func NewSequential(rng *rand.Rand) *Sequential {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Sequential{rng: rng}
}

func (m *Sequential) Add(spec LayerSpec) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	act, err := ParseActivation(spec.Activation)
	if err != nil {
		return err
	}
	if spec.Units <= 0 {
		return errors.Errorf("layer needs a positive unit count, got %d", spec.Units)
	}
	inputDim := spec.InputDim
	if len(m.layers) > 0 {
		inputDim = m.layers[len(m.layers)-1].units
	}
	if inputDim <= 0 {
		return errors.New("first layer needs a positive input dimension")
	}
	m.layers = append(m.layers, newDense(inputDim, spec.Units, act, m.rng))
	return nil
}

func (m *Sequential) Compile(loss Loss, opt Optimizer) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.layers) == 0 {
		return ErrNoLayers
	}
	if loss == nil || opt == nil {
		return errors.New("compile needs both a loss and an optimizer")
	}
	m.loss, m.opt = loss, opt
	return nil
}

// Build creates and compiles a model in one step.
func Build(spec ModelSpec, rng *rand.Rand) (*Sequential, error) {
	m := NewSequential(rng)
	for i, l := range spec.Layers {
		if err := m.Add(l); err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
	}
	loss, err := NewLoss(spec.Loss)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(spec.Optimizer, spec.LearningRate)
	if err != nil {
		return nil, err
	}
	if err := m.Compile(loss, opt); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Sequential) Layers() []*Dense {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]*Dense(nil), m.layers...)
}

func (m *Sequential) inputDim() int {
	return m.layers[0].inputDim
}

func (m *Sequential) outputDim() int {
	return m.layers[len(m.layers)-1].units
}

func (m *Sequential) forward(x *mat.Dense) *mat.Dense {
	out := x
	for _, l := range m.layers {
		out = l.forward(out)
	}
	return out
}

func (m *Sequential) Fit(ctx context.Context, x, y *mat.Dense, opts FitOptions) (*History, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.loss == nil {
		return nil, ErrNotCompiled
	}
	n, in := x.Dims()
	ny, out := y.Dims()
	if n == 0 {
		return nil, errors.New("fit needs at least one sample")
	}
	if n != ny {
		return nil, errors.Errorf("input has %d rows but target has %d", n, ny)
	}
	if in != m.inputDim() || out != m.outputDim() {
		return nil, errors.Errorf("data shape %dx%d does not match model %dx%d",
			in, out, m.inputDim(), m.outputDim())
	}
	if opts.Epochs <= 0 {
		return nil, errors.Errorf("epochs must be positive, got %d", opts.Epochs)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	hist := &History{Loss: make([]float64, 0, opts.Epochs)}
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		if opts.Shuffle {
			m.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		total := 0.0
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			xb, yb := gatherRows(x, order[start:end]), gatherRows(y, order[start:end])
			pred := m.forward(xb)
			total += m.loss.Forward(pred, yb) * float64(end-start)

			grad := m.loss.Gradient(pred, yb)
			for i := len(m.layers) - 1; i >= 0; i-- {
				grad = m.layers[i].backward(grad)
			}
			var params, grads [][]float64
			for _, l := range m.layers {
				params = append(params, l.params()...)
				grads = append(grads, l.grads()...)
			}
			m.opt.Step(params, grads)
		}
		epochLoss := total / float64(n)
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) || !m.finite() {
			return hist, errors.Wrapf(ErrNonFinite, "epoch %d", epoch)
		}
		hist.Loss = append(hist.Loss, epochLoss)
	}
	return hist, nil
}

func (m *Sequential) Predict(x *mat.Dense) (*mat.Dense, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.layers) == 0 {
		return nil, ErrNoLayers
	}
	n, in := x.Dims()
	if n == 0 {
		return nil, errors.New("predict needs at least one row")
	}
	if in != m.inputDim() {
		return nil, errors.Errorf("input width %d does not match model input %d", in, m.inputDim())
	}
	return m.forward(x), nil
}

func (m *Sequential) finite() bool {
	for _, l := range m.layers {
		for _, p := range l.params() {
			for _, v := range p {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
	}
	return true
}

func gatherRows(src *mat.Dense, rows []int) *mat.Dense {
	_, c := src.Dims()
	dst := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		dst.SetRow(i, src.RawRowView(r))
	}
	return dst
}
