package ml

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func linearSet(t *testing.T) (*mat.Dense, *mat.Dense) {
	ss := &SampleSet{}
	for i := 0; i <= 10; i++ {
		x := float64(i) / 10
		require.NoError(t, ss.Add(NewSample([]float64{x}, []float64{2*x + 1})))
	}
	x, y, err := ss.Matrices()
	require.NoError(t, err)
	return x, y
}

func TestSampleSetShape(t *testing.T) {
	ss := &SampleSet{}
	require.NoError(t, ss.Add(NewSample([]float64{1, 2}, []float64{0})))
	assert.Error(t, ss.Add(NewSample([]float64{1}, []float64{0})))
	assert.Error(t, ss.Add(NewSample(nil, []float64{0})))
	assert.Equal(t, 1, ss.Len())

	_, _, err := (&SampleSet{}).Matrices()
	assert.Error(t, err)
}

func TestLinearFitConverges(t *testing.T) {
	x, y := linearSet(t)
	m, err := Build(ModelSpec{
		Layers:       []LayerSpec{{Units: 1, InputDim: 1}},
		Loss:         "meanSquaredError",
		Optimizer:    "sgd",
		LearningRate: 0.1,
	}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	hist, err := m.Fit(context.Background(), x, y, FitOptions{Epochs: 800, Shuffle: true})
	require.NoError(t, err)
	require.Len(t, hist.Loss, 800)
	assert.Less(t, hist.Final(), hist.Loss[0])
	assert.Less(t, hist.Final(), 0.01)

	pred, err := m.Predict(mat.NewDense(2, 1, []float64{0, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 0.2)
	assert.InDelta(t, 3.0, pred.At(1, 0), 0.2)
}

func TestLogisticFitSeparatesDiagonal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ss := &SampleSet{}
	for i := 0; i < 200; i++ {
		px, py := rng.Float64(), rng.Float64()
		label := 0.0
		if py > px {
			label = 1
		}
		require.NoError(t, ss.Add(NewSample([]float64{px, py}, []float64{label})))
	}
	x, y, err := ss.Matrices()
	require.NoError(t, err)

	m, err := Build(ModelSpec{
		Layers:       []LayerSpec{{Units: 1, InputDim: 2, Activation: "sigmoid"}},
		Loss:         "binaryCrossentropy",
		Optimizer:    "adam",
		LearningRate: 0.1,
	}, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), x, y, FitOptions{Epochs: 200, Shuffle: true})
	require.NoError(t, err)

	pred, err := m.Predict(x)
	require.NoError(t, err)
	correct := 0
	for i := 0; i < 200; i++ {
		p := pred.At(i, 0)
		assert.True(t, p >= 0 && p <= 1)
		if (p > 0.5) == (y.At(i, 0) == 1) {
			correct++
		}
	}
	assert.Greater(t, correct, 180)
}

func TestFitDivergenceIsReported(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{100, 200})
	y := mat.NewDense(2, 1, []float64{100, 200})
	m, err := Build(ModelSpec{
		Layers:       []LayerSpec{{Units: 1, InputDim: 1}},
		Loss:         "mse",
		Optimizer:    "sgd",
		LearningRate: 1000,
	}, nil)
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), x, y, FitOptions{Epochs: 200})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestFitHonoursContext(t *testing.T) {
	x, y := linearSet(t)
	m, err := Build(ModelSpec{
		Layers:       []LayerSpec{{Units: 1, InputDim: 1}},
		Loss:         "mse",
		Optimizer:    "sgd",
		LearningRate: 0.01,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Fit(ctx, x, y, FitOptions{Epochs: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRejectsBadSpecs(t *testing.T) {
	_, err := Build(ModelSpec{Loss: "mse", Optimizer: "sgd", LearningRate: 0.1}, nil)
	assert.ErrorIs(t, err, ErrNoLayers)

	_, err = Build(ModelSpec{
		Layers: []LayerSpec{{Units: 1, InputDim: 1, Activation: "tanh"}},
		Loss:   "mse", Optimizer: "sgd", LearningRate: 0.1,
	}, nil)
	assert.Error(t, err)

	_, err = Build(ModelSpec{
		Layers: []LayerSpec{{Units: 1, InputDim: 1}},
		Loss:   "hinge", Optimizer: "sgd", LearningRate: 0.1,
	}, nil)
	assert.Error(t, err)

	_, err = Build(ModelSpec{
		Layers: []LayerSpec{{Units: 1, InputDim: 1}},
		Loss:   "mse", Optimizer: "adam", LearningRate: 0,
	}, nil)
	assert.Error(t, err)
}

func TestFitShapeMismatch(t *testing.T) {
	m, err := Build(ModelSpec{
		Layers: []LayerSpec{{Units: 1, InputDim: 2}},
		Loss:   "mse", Optimizer: "sgd", LearningRate: 0.1,
	}, nil)
	require.NoError(t, err)

	_, err = m.Fit(context.Background(), mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil), FitOptions{Epochs: 1})
	assert.Error(t, err)
	_, err = m.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestMultiLayerForwardShape(t *testing.T) {
	m := NewSequential(rand.New(rand.NewSource(1)))
	require.NoError(t, m.Add(LayerSpec{Units: 4, InputDim: 2, Activation: "relu"}))
	require.NoError(t, m.Add(LayerSpec{Units: 1, Activation: "sigmoid"}))
	_, err := m.Predict(mat.NewDense(1, 2, nil))
	require.NoError(t, err)

	pred, err := m.Predict(mat.NewDense(3, 2, []float64{0, 0, 0.5, 0.5, 1, 1}))
	require.NoError(t, err)
	r, c := pred.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)

	_, err = m.Fit(context.Background(), mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), FitOptions{Epochs: 1})
	assert.ErrorIs(t, err, ErrNotCompiled)
}
