package demo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"vizdemo/common"
	"vizdemo/core/ml"
	"vizdemo/core/render"
)

type modeState struct {
	gate
	handle      *render.Handle
	model       Model
	pendingDraw bool
	lastErr     error
	fits        int
}

type linearMode struct {
	modeState
	points []LinearPoint
	x, y   render.LinearScale
	line   [2]render.Point
}

type logisticMode struct {
	modeState
	points    []LogisticPoint
	seeded    bool
	gridCells int
}

// Controller owns the datasets and models of one demo session and runs
// every fit → predict → redraw cycle. Each mode has its own gate, so the
// two modes never block each other but no mode ever runs two fits at once.
type Controller struct {
	// mutex guards the fields below for readers; writers also hold the
	// mode's gate.
	mutex sync.RWMutex

	sessionID string
	cfg       Config
	surface   render.Surface
	provider  ModelProvider
	bus       Publisher
	log       common.Logger
	rng       *rand.Rand

	active   Mode
	linear   linearMode
	logistic logisticMode
}

func NewController(sessionID string, cfg Config, surface render.Surface, provider ModelProvider,
	bus Publisher, log common.Logger) *Controller {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if provider == nil {
		provider = NewProvider(seed)
	}
	return &Controller{
		sessionID: sessionID,
		cfg:       cfg,
		surface:   surface,
		provider:  provider,
		bus:       bus,
		log:       log,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) mode(m Mode) (*modeState, error) {
	switch m {
	case ModeLinear:
		return &c.linear.modeState, nil
	case ModeLogistic:
		return &c.logistic.modeState, nil
	}
	return nil, errors.Wrapf(ErrUnknownMode, "%q", m)
}

func (c *Controller) container(m Mode) string {
	if m == ModeLinear {
		return c.cfg.LinearContainer
	}
	return c.cfg.LogisticContainer
}

// Switch makes m the visible mode, hides the other panel and activates m.
func (c *Controller) Switch(ctx context.Context, m Mode) error {
	if _, err := c.mode(m); err != nil {
		return err
	}
	c.setActive(m)
	c.surface.SetVisible(c.cfg.LinearContainer, m == ModeLinear)
	c.surface.SetVisible(c.cfg.LogisticContainer, m == ModeLogistic)

	if m == ModeLinear {
		return c.ActivateLinear(ctx)
	}
	return c.ActivateLogistic(ctx)
}

func (c *Controller) setActive(m Mode) {
	c.mutex.Lock()
	c.active = m
	c.mutex.Unlock()
}

// requireActive rejects pointer input aimed at the hidden panel.
func (c *Controller) requireActive(m Mode) error {
	if active := c.Active(); active != m {
		return errors.Wrapf(ErrInactive, "%s input while %q is shown", m, active)
	}
	return nil
}

func (c *Controller) Active() Mode {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.active
}

// Resize re-runs the active mode after its container changed size, the way
// a window resize restarts the current demo. Modes that never fitted and
// have no deferred draw are left alone.
func (c *Controller) Resize(ctx context.Context) error {
	c.mutex.RLock()
	active := c.active
	linearReady := c.linear.model != nil || c.linear.pendingDraw
	logisticReady := c.logistic.model != nil || c.logistic.pendingDraw
	c.mutex.RUnlock()

	switch {
	case active == ModeLinear && linearReady:
		return c.ActivateLinear(ctx)
	case active == ModeLogistic && logisticReady:
		return c.ActivateLogistic(ctx)
	}
	return nil
}

func (c *Controller) Status(m Mode) (Status, error) {
	ms, err := c.mode(m)
	if err != nil {
		return Status{}, err
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	st := ms.current()
	s := Status{
		Mode:        m,
		Active:      c.active == m,
		State:       st.String(),
		Loading:     st != StateIdle,
		PendingDraw: ms.pendingDraw,
		Fits:        ms.fits,
	}
	if ms.lastErr != nil {
		s.Error = ms.lastErr.Error()
	}
	if m == ModeLinear {
		s.Points = len(c.linear.points)
	} else {
		s.Points = len(c.logistic.points)
		s.GridCells = c.logistic.gridCells
	}
	return s, nil
}

func (c *Controller) pointCount(m Mode) int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if m == ModeLinear {
		return len(c.linear.points)
	}
	return len(c.logistic.points)
}

func (c *Controller) publish(m Mode, t common.LocalMsgType, err error) {
	if c.bus == nil {
		return
	}
	ms, _ := c.mode(m)
	st := ms.current()
	ev := Event{Mode: m, State: st.String(), Loading: st != StateIdle, Points: c.pointCount(m)}
	if err != nil {
		ev.Error = err.Error()
	}
	c.bus.Publish(c.sessionID, t, ev)
}

// begin takes the mode's gate and shows the loading state.
func (c *Controller) begin(m Mode) error {
	ms, err := c.mode(m)
	if err != nil {
		return err
	}
	if err := ms.enter(); err != nil {
		c.log.Debugf("session %s: %s is busy, rejecting action", c.sessionID, m)
		return err
	}
	c.publish(m, common.LocalDemoMsg_Loading, nil)
	return nil
}

// finish always returns the mode to Idle, so a failed fit can never leave
// the loading state on. A zero-size container defers the draw instead of
// recording an error.
func (c *Controller) finish(m Mode, err error) {
	ms, _ := c.mode(m)

	c.mutex.Lock()
	deferred := errors.Is(err, render.ErrZeroSize)
	ms.pendingDraw = deferred
	if deferred {
		ms.lastErr = nil
	} else {
		ms.lastErr = err
	}
	c.mutex.Unlock()
	ms.leave()

	switch {
	case deferred:
		c.log.Infof("session %s: %s draw deferred: %s", c.sessionID, m, err)
		c.publish(m, common.LocalDemoMsg_Deferred, nil)
	case err != nil:
		c.log.Errorf("session %s: %s cycle failed: %s", c.sessionID, m, err)
		c.publish(m, common.LocalDemoMsg_Failed, err)
	default:
		c.publish(m, common.LocalDemoMsg_Redrawn, nil)
	}
}

// fit runs one training pass, retrying once when configured to and the
// failure did not come from the context.
func (c *Controller) fit(ctx context.Context, m Mode, model Model, x, y *mat.Dense, epochs int) error {
	opts := ml.FitOptions{Epochs: epochs, BatchSize: c.cfg.BatchSize, Shuffle: true}
	start := time.Now()
	hist, err := model.Fit(ctx, x, y, opts)
	if err != nil && c.cfg.FitRetry && ctx.Err() == nil {
		c.log.Warnf("session %s: %s fit failed, retrying once: %s", c.sessionID, m, err)
		hist, err = model.Fit(ctx, x, y, opts)
	}
	if err != nil {
		return errors.Wrapf(err, "%s fit", m)
	}

	ms, _ := c.mode(m)
	c.mutex.Lock()
	ms.fits++
	c.mutex.Unlock()
	c.log.Debugf("session %s: %s fit %d epochs in %s, loss %.5f",
		c.sessionID, m, epochs, time.Since(start), hist.Final())
	return nil
}
