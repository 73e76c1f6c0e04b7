package demo

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"vizdemo/core/render"
)

const (
	ClassBoundary    = "boundary-area"
	ClassLogisticDot = "logistic-dot"

	logisticDotRadius = 5
	classOneColor     = "blue"
	classZeroColor    = "red"
	provisionalColor  = "gray"
	decisionThreshold = 0.5
)

func labelOf(p float64) int {
	if p > decisionThreshold {
		return 1
	}
	return 0
}

// ActivateLogistic makes logistic the active mode, seeds the dataset and builds the model on first use,
// then fits on everything collected so far and redraws. Dataset and model
// survive later activations.
func (c *Controller) ActivateLogistic(ctx context.Context) (err error) {
	if err := c.begin(ModeLogistic); err != nil {
		return err
	}
	defer func() { c.finish(ModeLogistic, err) }()
	c.setActive(ModeLogistic)

	c.mutex.Lock()
	if !c.logistic.seeded {
		c.logistic.points = c.seedLogisticLocked()
		c.logistic.seeded = true
	}
	model := c.logistic.model
	c.mutex.Unlock()

	if model == nil {
		if model, err = c.provider(c.cfg.logisticSpec()); err != nil {
			return errors.Wrap(err, "build logistic model")
		}
		c.mutex.Lock()
		c.logistic.model = model
		c.mutex.Unlock()
	}

	if err := c.fitLogistic(ctx, model); err != nil {
		return err
	}
	if err := c.resolveProvisional(model); err != nil {
		return err
	}

	h, err := c.surface.CreatePlotArea(c.cfg.LogisticContainer)
	c.mutex.Lock()
	c.logistic.handle = h
	c.mutex.Unlock()
	if err != nil {
		return err
	}
	return c.drawLogistic(model)
}

// seedLogisticLocked draws uniform points in the unit square, labelled 1
// above the diagonal.
func (c *Controller) seedLogisticLocked() []LogisticPoint {
	points := make([]LogisticPoint, c.cfg.LogisticPoints)
	for i := range points {
		x, y := c.rng.Float64(), c.rng.Float64()
		label := 0
		if y > x {
			label = 1
		}
		points[i] = LogisticPoint{X: x, Y: y, Label: label}
	}
	return points
}

// HandlePlotClick adds a point at the clicked pixel, refits on the whole
// dataset, lets the model label the new point and redraws. Pixels are
// relative to the inner plot area and must land inside it.
func (c *Controller) HandlePlotClick(ctx context.Context, pixel render.Point) (err error) {
	c.mutex.RLock()
	h, model := c.logistic.handle, c.logistic.model
	c.mutex.RUnlock()
	if h == nil || model == nil {
		return errors.Wrap(ErrNotReady, string(ModeLogistic))
	}
	if err := c.requireActive(ModeLogistic); err != nil {
		return err
	}
	p, err := c.surface.Invert(h, pixel)
	if err != nil {
		return errors.Wrap(err, "invert click")
	}
	if !inUnitSquare(p) {
		return errors.Wrapf(ErrOutsidePlot, "click at %v", pixel)
	}

	if err := c.begin(ModeLogistic); err != nil {
		return err
	}
	defer func() { c.finish(ModeLogistic, err) }()

	c.mutex.Lock()
	c.logistic.points = append(c.logistic.points, LogisticPoint{X: p.X, Y: p.Y, Label: Provisional})
	c.mutex.Unlock()

	if err := c.fitLogistic(ctx, model); err != nil {
		return err
	}
	if err := c.resolveProvisional(model); err != nil {
		return err
	}
	return c.drawLogistic(model)
}

// inUnitSquare also rejects NaN, which fails every comparison.
func inUnitSquare(p render.Point) bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func (c *Controller) onLogisticClick(ctx context.Context, p render.Point) error {
	return c.HandlePlotClick(ctx, p)
}

// fitLogistic trains on every point as-is, provisional labels included.
func (c *Controller) fitLogistic(ctx context.Context, model Model) error {
	c.mutex.RLock()
	n := len(c.logistic.points)
	xs := mat.NewDense(n, 2, nil)
	ys := mat.NewDense(n, 1, nil)
	for i, p := range c.logistic.points {
		xs.Set(i, 0, p.X)
		xs.Set(i, 1, p.Y)
		ys.Set(i, 0, float64(p.Label))
	}
	c.mutex.RUnlock()

	return c.fit(ctx, ModeLogistic, model, xs, ys, c.cfg.LogisticEpochs)
}

// resolveProvisional replaces every provisional label with the model's own
// class for that point. Resolved labels are never touched again.
func (c *Controller) resolveProvisional(model Model) error {
	c.mutex.RLock()
	var idx []int
	for i, p := range c.logistic.points {
		if p.Label == Provisional {
			idx = append(idx, i)
		}
	}
	xs := mat.NewDense(max(len(idx), 1), 2, nil)
	for r, i := range idx {
		xs.Set(r, 0, c.logistic.points[i].X)
		xs.Set(r, 1, c.logistic.points[i].Y)
	}
	c.mutex.RUnlock()
	if len(idx) == 0 {
		return nil
	}

	pred, err := model.Predict(xs)
	if err != nil {
		return errors.Wrap(err, "predict new point")
	}
	c.mutex.Lock()
	for r, i := range idx {
		c.logistic.points[i].Label = labelOf(pred.At(r, 0))
	}
	c.mutex.Unlock()
	return nil
}

// drawLogistic repaints the decision grid from fresh predictions and puts
// every point on top of it.
func (c *Controller) drawLogistic(model Model) error {
	c.logistic.redrawing()

	c.mutex.RLock()
	h := c.logistic.handle
	points := append([]LogisticPoint(nil), c.logistic.points...)
	c.mutex.RUnlock()

	n := c.cfg.GridResolution
	grid := mat.NewDense(n*n, 2, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			grid.Set(i*n+j, 0, float64(i)/float64(n-1))
			grid.Set(i*n+j, 1, float64(j)/float64(n-1))
		}
	}
	pred, err := model.Predict(grid)
	if err != nil {
		return errors.Wrap(err, "predict decision grid")
	}

	x := render.NewLinearScale(0, 1, 0, h.Width)
	y := render.NewLinearScale(0, 1, h.Height, 0)
	cellW := x.Apply(1/float64(n)) - x.Apply(0)
	cellH := y.Apply(0) - y.Apply(1/float64(n))

	s := c.surface
	s.Clear(h)
	s.SetScales(h, x, y)
	render.DrawAxes(s, h, x, y)
	s.DrawMarks(h, render.MarkRect, ClassBoundary, n*n, func(i int) render.Mark {
		fill := classZeroColor
		if labelOf(pred.At(i, 0)) == 1 {
			fill = classOneColor
		}
		return render.Mark{
			X:      x.Apply(grid.At(i, 0)),
			Y:      y.Apply(grid.At(i, 1)),
			Width:  cellW,
			Height: cellH,
			Fill:   fill,
		}
	})
	s.DrawMarks(h, render.MarkCircle, ClassLogisticDot, len(points), func(i int) render.Mark {
		fill := provisionalColor
		switch points[i].Label {
		case 1:
			fill = classOneColor
		case 0:
			fill = classZeroColor
		}
		return render.Mark{X: x.Apply(points[i].X), Y: y.Apply(points[i].Y), R: logisticDotRadius, Fill: fill, Stroke: "black"}
	})
	s.AttachPointerHandler(h, "svg", render.PointerHandlers{OnClick: c.onLogisticClick})

	c.mutex.Lock()
	c.logistic.gridCells = n * n
	c.mutex.Unlock()
	return nil
}

func (c *Controller) LogisticPoints() []LogisticPoint {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]LogisticPoint(nil), c.logistic.points...)
}
