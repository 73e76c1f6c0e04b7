package demo

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"vizdemo/core/render"
)

const (
	ClassRegressionLine = "regression-line"
	ClassLineLabel      = "line-label"
	ClassDot            = "dot"
	ClassDragText       = "drag-text"

	regressionLineID = "regressionLinePath"
	linearDotRadius  = 10
	dragTextOffset   = 15
)

// ActivateLinear makes linear the active mode and restarts it from the seed
// points with a fresh model, fits it and draws the result with drag
// handlers attached.
func (c *Controller) ActivateLinear(ctx context.Context) (err error) {
	if err := c.begin(ModeLinear); err != nil {
		return err
	}
	defer func() { c.finish(ModeLinear, err) }()
	c.setActive(ModeLinear)

	h, err := c.surface.CreatePlotArea(c.cfg.LinearContainer)
	if err != nil {
		return err
	}
	x := render.NewLinearScale(LinearDomainX[0], LinearDomainX[1], 0, h.Width)
	y := render.NewLinearScale(LinearDomainY[0], LinearDomainY[1], h.Height, 0)

	model, err := c.provider(c.cfg.linearSpec())
	if err != nil {
		return errors.Wrap(err, "build linear model")
	}

	points := make([]LinearPoint, len(LinearSeed))
	for i, p := range LinearSeed {
		points[i] = LinearPoint{ScreenX: x.Apply(p.X), ScreenY: y.Apply(p.Y)}
	}

	c.mutex.Lock()
	c.linear.handle = h
	c.linear.x, c.linear.y = x, y
	c.linear.points = points
	c.linear.model = model
	c.mutex.Unlock()

	return c.retrainLinear(ctx)
}

// RetrainLinear refits the current points and redraws. It fails with
// ErrBusy while another linear cycle is running.
func (c *Controller) RetrainLinear(ctx context.Context) (err error) {
	c.mutex.RLock()
	ready := c.linear.model != nil && c.linear.handle != nil
	c.mutex.RUnlock()
	if !ready {
		return errors.Wrap(ErrNotReady, string(ModeLinear))
	}

	if err := c.begin(ModeLinear); err != nil {
		return err
	}
	defer func() { c.finish(ModeLinear, err) }()
	return c.retrainLinear(ctx)
}

// retrainLinear expects the linear gate to be held.
func (c *Controller) retrainLinear(ctx context.Context) error {
	c.mutex.RLock()
	domain := c.linearDomainLocked()
	model := c.linear.model
	c.mutex.RUnlock()

	xs := mat.NewDense(len(domain), 1, nil)
	ys := mat.NewDense(len(domain), 1, nil)
	for i, p := range domain {
		xs.Set(i, 0, p.X)
		ys.Set(i, 0, p.Y)
	}
	if err := c.fit(ctx, ModeLinear, model, xs, ys, c.cfg.LinearEpochs); err != nil {
		return err
	}

	pred, err := model.Predict(mat.NewDense(2, 1, []float64{LinearDomainX[0], LinearDomainX[1]}))
	if err != nil {
		return errors.Wrap(err, "linear predict")
	}
	y0, y1 := pred.At(0, 0), pred.At(1, 0)
	if math.IsNaN(y0) || math.IsNaN(y1) || math.IsInf(y0, 0) || math.IsInf(y1, 0) {
		return errors.New("linear predict returned a non-finite line")
	}

	c.linear.redrawing()
	c.mutex.Lock()
	c.linear.line = [2]render.Point{
		{X: c.linear.x.Apply(LinearDomainX[0]), Y: c.linear.y.Apply(y0)},
		{X: c.linear.x.Apply(LinearDomainX[1]), Y: c.linear.y.Apply(y1)},
	}
	c.mutex.Unlock()

	c.drawLinear()
	return nil
}

func (c *Controller) linearDomainLocked() []render.Point {
	out := make([]render.Point, len(c.linear.points))
	for i, p := range c.linear.points {
		out[i] = render.Point{X: c.linear.x.Invert(p.ScreenX), Y: c.linear.y.Invert(p.ScreenY)}
	}
	return out
}

func (c *Controller) drawLinear() {
	c.mutex.RLock()
	h := c.linear.handle
	x, y := c.linear.x, c.linear.y
	line := c.linear.line
	points := append([]LinearPoint(nil), c.linear.points...)
	c.mutex.RUnlock()

	s := c.surface
	s.Clear(h)
	s.SetScales(h, x, y)
	s.DrawMarks(h, render.MarkPath, ClassRegressionLine, 1, func(int) render.Mark {
		return render.Mark{ID: regressionLineID, Stroke: "steelblue", Points: line[:]}
	})
	s.DrawMarks(h, render.MarkText, ClassLineLabel, 1, func(int) render.Mark {
		return render.Mark{
			X:    (line[0].X + line[1].X) / 2,
			Y:    (line[0].Y + line[1].Y) / 2,
			Text: "Regression Line",
		}
	})
	s.DrawMarks(h, render.MarkCircle, ClassDot, len(points), func(i int) render.Mark {
		return render.Mark{X: points[i].ScreenX, Y: points[i].ScreenY, R: linearDotRadius, Fill: "steelblue", Stroke: "white"}
	})
	s.DrawMarks(h, render.MarkText, ClassDragText, len(points), func(i int) render.Mark {
		return render.Mark{X: points[i].ScreenX, Y: points[i].ScreenY + dragTextOffset, Text: "drag me"}
	})
	s.AttachPointerHandler(h, ClassDot, render.PointerHandlers{
		OnDragMove: c.onLinearDragMove,
		OnDragEnd:  c.onLinearDragEnd,
	})
}

// onLinearDragMove follows the pointer: the point and its caption move, the
// model is left alone until the drag ends. The gate is read under the
// write lock, so a move either lands before a fit snapshots the points or
// is rejected.
func (c *Controller) onLinearDragMove(_ context.Context, index int, p render.Point) error {
	if err := c.checkLinearDrag(index, p); err != nil {
		return err
	}
	c.mutex.Lock()
	if c.linear.busy() {
		c.mutex.Unlock()
		return ErrBusy
	}
	c.linear.points[index] = LinearPoint{ScreenX: p.X, ScreenY: p.Y}
	h := c.linear.handle
	c.mutex.Unlock()
	return c.moveLinearMarks(h, index, p)
}

// onLinearDragEnd holds the linear gate from the move through the retrain,
// so a rejected release leaves the dataset untouched.
func (c *Controller) onLinearDragEnd(ctx context.Context, index int, p render.Point) (err error) {
	if err := c.checkLinearDrag(index, p); err != nil {
		return err
	}
	if err := c.begin(ModeLinear); err != nil {
		return err
	}
	defer func() { c.finish(ModeLinear, err) }()

	c.mutex.Lock()
	c.linear.points[index] = LinearPoint{ScreenX: p.X, ScreenY: p.Y}
	h := c.linear.handle
	c.mutex.Unlock()
	if err := c.moveLinearMarks(h, index, p); err != nil {
		return err
	}
	return c.retrainLinear(ctx)
}

// checkLinearDrag validates a drag before anything is touched. The point
// count never changes after activation.
func (c *Controller) checkLinearDrag(index int, p render.Point) error {
	if err := c.requireActive(ModeLinear); err != nil {
		return err
	}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return errors.Errorf("invalid drag position %v", p)
	}
	c.mutex.RLock()
	n, ready := len(c.linear.points), c.linear.model != nil && c.linear.handle != nil
	c.mutex.RUnlock()
	if !ready {
		return errors.Wrap(ErrNotReady, string(ModeLinear))
	}
	if index < 0 || index >= n {
		return errors.Wrapf(ErrNoPoint, "linear point %d", index)
	}
	return nil
}

func (c *Controller) moveLinearMarks(h *render.Handle, index int, p render.Point) error {
	if err := c.surface.UpdateMark(h, ClassDot, index, func(m *render.Mark) {
		m.X, m.Y = p.X, p.Y
	}); err != nil {
		return err
	}
	return c.surface.UpdateMark(h, ClassDragText, index, func(m *render.Mark) {
		m.X, m.Y = p.X, p.Y+dragTextOffset
	})
}

// LinearPoints returns the current points in screen coordinates.
func (c *Controller) LinearPoints() []LinearPoint {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]LinearPoint(nil), c.linear.points...)
}

// LinearDomainPoints returns the current points mapped back to data space.
func (c *Controller) LinearDomainPoints() []render.Point {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.linearDomainLocked()
}

func (c *Controller) LinearScales() (render.LinearScale, render.LinearScale) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.linear.x, c.linear.y
}

// RegressionLine returns the two screen-space end points of the last fit.
func (c *Controller) RegressionLine() [2]render.Point {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.linear.line
}
