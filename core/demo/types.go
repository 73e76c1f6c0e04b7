package demo

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"vizdemo/common"
	"vizdemo/core/ml"
	"vizdemo/core/render"
)

var (
	ErrBusy        = errors.New("a fit is already running for this mode")
	ErrUnknownMode = errors.New("unknown demo mode")
	ErrNoPoint     = errors.New("no such point")
	ErrNotReady    = errors.New("mode has not been drawn yet")
	ErrInactive    = errors.New("mode is not the active one")
	ErrOutsidePlot = errors.New("point is outside the plot area")
)

type Mode string

const (
	ModeLinear   Mode = "linear"
	ModeLogistic Mode = "logistic"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLinear, ModeLogistic:
		return Mode(s), nil
	}
	return "", errors.Wrapf(ErrUnknownMode, "%q", s)
}

type State int32

const (
	StateIdle State = iota
	StateFitting
	StateRedrawing
)

func (s State) String() string {
	switch s {
	case StateFitting:
		return "fitting"
	case StateRedrawing:
		return "redrawing"
	default:
		return "idle"
	}
}

// Provisional marks a clicked logistic point whose label the model has not
// assigned yet.
const Provisional = -1

type LinearPoint struct {
	ScreenX float64 `json:"screenX"`
	ScreenY float64 `json:"screenY"`
}

type LogisticPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label int     `json:"label"`
}

// LinearSeed is the dataset linear mode restarts from on every activation.
var LinearSeed = []render.Point{{X: 1, Y: 5}, {X: 4, Y: 8}, {X: 5, Y: 10}, {X: 6, Y: 15}, {X: 9, Y: 19}}

var (
	LinearDomainX = [2]float64{0, 10}
	LinearDomainY = [2]float64{0, 20}
)

// Model is the part of a trainable network the controller needs.
type Model interface {
	Fit(ctx context.Context, x, y *mat.Dense, opts ml.FitOptions) (*ml.History, error)
	Predict(x *mat.Dense) (*mat.Dense, error)
}

// ModelProvider creates and compiles a model for a spec.
type ModelProvider func(spec ml.ModelSpec) (Model, error)

// NewProvider builds ml.Sequential models, each seeded from seed plus a
// running counter so two models of a session never share a stream.
func NewProvider(seed int64) ModelProvider {
	var n atomic.Int64
	return func(spec ml.ModelSpec) (Model, error) {
		m, err := ml.Build(spec, rand.New(rand.NewSource(seed+n.Add(1))))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

type Publisher interface {
	Publish(sessionID string, t common.LocalMsgType, payload interface{})
}

type Config struct {
	LinearContainer      string
	LogisticContainer    string
	LinearEpochs         int
	LogisticEpochs       int
	LogisticPoints       int
	GridResolution       int
	LinearLearningRate   float64
	LogisticLearningRate float64
	BatchSize            int
	FitRetry             bool
	Seed                 int64
}

func DefaultConfig() Config {
	return Config{
		LinearContainer:      "plotArea_linear",
		LogisticContainer:    "plotArea_logistic",
		LinearEpochs:         100,
		LogisticEpochs:       50,
		LogisticPoints:       100,
		GridResolution:       50,
		LinearLearningRate:   0.01,
		LogisticLearningRate: 0.1,
		BatchSize:            ml.DefaultBatchSize,
	}
}

func (c Config) linearSpec() ml.ModelSpec {
	return ml.ModelSpec{
		Layers:       []ml.LayerSpec{{Units: 1, InputDim: 1}},
		Loss:         "meanSquaredError",
		Optimizer:    "sgd",
		LearningRate: c.LinearLearningRate,
	}
}

func (c Config) logisticSpec() ml.ModelSpec {
	return ml.ModelSpec{
		Layers:       []ml.LayerSpec{{Units: 1, InputDim: 2, Activation: string(ml.ActivationSigmoid)}},
		Loss:         "binaryCrossentropy",
		Optimizer:    "adam",
		LearningRate: c.LogisticLearningRate,
	}
}

// Event is the payload published on every state change of a mode.
type Event struct {
	Mode    Mode   `json:"mode"`
	State   string `json:"state"`
	Loading bool   `json:"loading"`
	Points  int    `json:"points"`
	Error   string `json:"error,omitempty"`
}

type Status struct {
	Mode        Mode   `json:"mode"`
	Active      bool   `json:"active"`
	State       string `json:"state"`
	Loading     bool   `json:"loading"`
	Points      int    `json:"points"`
	PendingDraw bool   `json:"pendingDraw"`
	Fits        int    `json:"fits"`
	GridCells   int    `json:"gridCells,omitempty"`
	Error       string `json:"error,omitempty"`
}
