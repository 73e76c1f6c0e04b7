package render

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vizdemo/test/mock"
)

func TestLinearScaleRoundTrip(t *testing.T) {
	x := NewLinearScale(0, 10, 0, 540)
	y := NewLinearScale(0, 20, 350, 0)

	assert.Equal(t, 0.0, x.Apply(0))
	assert.Equal(t, 540.0, x.Apply(10))
	assert.Equal(t, 350.0, y.Apply(0))
	assert.Equal(t, 0.0, y.Apply(20))

	for _, v := range []float64{0, 1, 4.5, 9, 10, -3, 12.25} {
		assert.InDelta(t, v, x.Invert(x.Apply(v)), 1e-9)
		assert.InDelta(t, v, y.Invert(y.Apply(v)), 1e-9)
	}
}

func TestLinearScaleDegenerate(t *testing.T) {
	s := NewLinearScale(1, 1, 0, 100)
	assert.Equal(t, 50.0, s.Apply(1))
	z := NewLinearScale(0, 1, 5, 5)
	assert.Equal(t, 0.5, z.Invert(5))
}

func TestTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, NewLinearScale(0, 10, 0, 1).Ticks(10))
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20}, NewLinearScale(0, 20, 0, 1).Ticks(10))

	ticks := NewLinearScale(0, 1, 0, 1).Ticks(10)
	require.Len(t, ticks, 11)
	assert.InDelta(t, 0.3, ticks[3], 1e-12)
}

func newTestCanvas() *Canvas {
	return NewCanvas(DefaultMargin, mock.GetMockLogger("render"))
}

func TestCreatePlotAreaZeroSize(t *testing.T) {
	c := newTestCanvas()
	h, err := c.CreatePlotArea("plot")
	assert.ErrorIs(t, err, ErrZeroSize)
	require.NotNil(t, h)

	c.SetContainerSize("plot", 600, 400)
	h, err = c.CreatePlotArea("plot")
	require.NoError(t, err)
	assert.Equal(t, 540.0, h.Width)
	assert.Equal(t, 350.0, h.Height)
}

func TestDrawClearAndUpdate(t *testing.T) {
	c := newTestCanvas()
	c.SetContainerSize("plot", 600, 400)
	h, err := c.CreatePlotArea("plot")
	require.NoError(t, err)

	c.DrawMarks(h, MarkCircle, "dot", 3, func(i int) Mark {
		return Mark{X: float64(i), Y: float64(i), R: 5, Fill: "red"}
	})
	require.NoError(t, c.UpdateMark(h, "dot", 1, func(m *Mark) { m.X = 42 }))
	assert.ErrorIs(t, c.UpdateMark(h, "dot", 7, func(m *Mark) {}), ErrMarkOutOfRange)

	scene, err := c.Snapshot("plot")
	require.NoError(t, err)
	dots := scene.ByClass("dot")
	require.Len(t, dots, 3)
	assert.Equal(t, 42.0, dots[1].X)
	assert.Equal(t, MarkCircle, dots[1].Kind)
	assert.Equal(t, 1, dots[1].Index)

	c.Clear(h)
	scene, err = c.Snapshot("plot")
	require.NoError(t, err)
	assert.Empty(t, scene.Marks)
}

func TestPointerDispatch(t *testing.T) {
	c := newTestCanvas()
	c.SetContainerSize("plot", 600, 400)
	h, err := c.CreatePlotArea("plot")
	require.NoError(t, err)

	var moved, ended, clicked []Point
	c.AttachPointerHandler(h, ".dot", PointerHandlers{
		OnDragMove: func(_ context.Context, i int, p Point) error { moved = append(moved, p); return nil },
		OnDragEnd:  func(_ context.Context, i int, p Point) error { ended = append(ended, p); return nil },
	})
	c.AttachPointerHandler(h, "svg", PointerHandlers{
		OnClick: func(_ context.Context, p Point) error { clicked = append(clicked, p); return nil },
	})

	ctx := context.Background()
	require.NoError(t, c.DragMove(ctx, "plot", "dot", 0, Point{X: 1, Y: 2}))
	require.NoError(t, c.DragEnd(ctx, "plot", ".dot", 0, Point{X: 1, Y: 2}))
	require.NoError(t, c.Click(ctx, "plot", Point{X: 3, Y: 4}))
	assert.Len(t, moved, 1)
	assert.Len(t, ended, 1)
	assert.Equal(t, []Point{{X: 3, Y: 4}}, clicked)

	assert.ErrorIs(t, c.DragMove(ctx, "plot", "bar", 0, Point{}), ErrNoHandler)
	assert.ErrorIs(t, c.Click(ctx, "missing", Point{}), ErrUnknownArea)

	c.Clear(h)
	assert.ErrorIs(t, c.Click(ctx, "plot", Point{}), ErrNoHandler)
}

func TestInvertNeedsScales(t *testing.T) {
	c := newTestCanvas()
	c.SetContainerSize("plot", 600, 400)
	h, err := c.CreatePlotArea("plot")
	require.NoError(t, err)

	_, err = c.Invert(h, Point{})
	assert.ErrorIs(t, err, ErrNoScales)

	c.SetScales(h, NewLinearScale(0, 1, 0, h.Width), NewLinearScale(0, 1, h.Height, 0))
	p, err := c.Invert(h, Point{X: h.Width / 2, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.X, 1e-12)
	assert.InDelta(t, 1.0, p.Y, 1e-12)
}

func TestVisibilitySurvivesRedraw(t *testing.T) {
	c := newTestCanvas()
	c.SetContainerSize("plot", 600, 400)
	c.SetVisible("plot", false)
	_, err := c.CreatePlotArea("plot")
	require.NoError(t, err)

	scene, err := c.Snapshot("plot")
	require.NoError(t, err)
	assert.False(t, scene.Visible)
}

func TestWriteSVG(t *testing.T) {
	c := newTestCanvas()
	c.SetContainerSize("plot", 600, 400)
	h, err := c.CreatePlotArea("plot")
	require.NoError(t, err)
	x, y := NewLinearScale(0, 1, 0, h.Width), NewLinearScale(0, 1, h.Height, 0)
	DrawAxes(c, h, x, y)
	c.DrawMarks(h, MarkRect, "cell", 1, func(int) Mark { return Mark{Width: 10, Height: 10, Fill: "#ff0000"} })
	c.DrawMarks(h, MarkCircle, "dot", 1, func(int) Mark { return Mark{X: 5, Y: 5, R: 5, Fill: "blue"} })

	scene, err := c.Snapshot("plot")
	require.NoError(t, err)
	assert.Equal(t, 2, scene.Count(ClassAxis))
	assert.Equal(t, 22, scene.Count(ClassAxisTick))

	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, scene))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "<circle")

	empty := &Scene{}
	assert.ErrorIs(t, WriteSVG(&buf, empty), ErrZeroSize)
}
