package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
	"vizdemo/core/ml"
)

type MockLog struct {
	Name string
}

func (l *MockLog) Debug(args ...interface{}) {
	fmt.Println(args...)
}
func (l *MockLog) Debugf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Info(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Infof(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Warn(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Warnf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func (l *MockLog) Error(args ...interface{}) {
	fmt.Println(args...)
}

func (l *MockLog) Errorf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

func GetMockLogger(name string) *MockLog {
	return &MockLog{name}
}

// MockModel is a scriptable model. FitFunc and PredictFunc default to a
// no-op fit and a constant prediction of Value. It records how many fits
// ran at the same time.
type MockModel struct {
	FitFunc     func(ctx context.Context, x, y *mat.Dense, opts ml.FitOptions) error
	PredictFunc func(x *mat.Dense) (*mat.Dense, error)
	Value       float64

	mutex       sync.Mutex
	fits        []ml.FitOptions
	fitRows     []int
	predictRows []int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *MockModel) Fit(ctx context.Context, x, y *mat.Dense, opts ml.FitOptions) (*ml.History, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	rows, _ := x.Dims()
	m.mutex.Lock()
	m.fits = append(m.fits, opts)
	m.fitRows = append(m.fitRows, rows)
	m.mutex.Unlock()

	if m.FitFunc != nil {
		if err := m.FitFunc(ctx, x, y, opts); err != nil {
			return nil, err
		}
	}
	return &ml.History{Loss: []float64{0}}, nil
}

func (m *MockModel) Predict(x *mat.Dense) (*mat.Dense, error) {
	rows, _ := x.Dims()
	m.mutex.Lock()
	m.predictRows = append(m.predictRows, rows)
	m.mutex.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(x)
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, m.Value)
	}
	return out, nil
}

func (m *MockModel) Fits() []ml.FitOptions {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]ml.FitOptions(nil), m.fits...)
}

func (m *MockModel) FitRows() []int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]int(nil), m.fitRows...)
}

func (m *MockModel) PredictRows() []int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]int(nil), m.predictRows...)
}

func (m *MockModel) MaxConcurrentFits() int {
	return int(m.maxInFlight.Load())
}
