package render

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"vizdemo/common"
)

type area struct {
	handle   Handle
	marks    []Mark
	handlers map[string]PointerHandlers
	x, y     *LinearScale
	visible  bool
}

// Canvas is an in-memory Surface. Containers get their size from the page
// (SetContainerSize); pointer events come back through DragMove, DragEnd and
// Click and are routed to whatever handlers the last draw attached.
type Canvas struct {
	mutex      sync.RWMutex
	margin     Margin
	containers map[string]Point
	areas      map[string]*area
	log        common.Logger
}

func NewCanvas(margin Margin, log common.Logger) *Canvas {
	return &Canvas{
		margin:     margin,
		containers: make(map[string]Point),
		areas:      make(map[string]*area),
		log:        log,
	}
}

func (c *Canvas) SetContainerSize(containerID string, width, height float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.containers[containerID] = Point{X: width, Y: height}
}

func (c *Canvas) ContainerSize(containerID string) (float64, float64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	sz := c.containers[containerID]
	return sz.X, sz.Y
}

func (c *Canvas) CreatePlotArea(containerID string) (*Handle, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	sz := c.containers[containerID]
	h := Handle{
		ContainerID: containerID,
		Width:       sz.X - c.margin.Left - c.margin.Right,
		Height:      sz.Y - c.margin.Top - c.margin.Bottom,
		Margin:      c.margin,
	}
	a, ok := c.areas[containerID]
	if !ok {
		a = &area{visible: true}
		c.areas[containerID] = a
	}
	a.handle = h
	a.marks = nil
	a.handlers = make(map[string]PointerHandlers)
	a.x, a.y = nil, nil

	if h.Width <= 0 || h.Height <= 0 {
		c.log.Debugf("container %s is %.0fx%.0f, nothing to draw on", containerID, sz.X, sz.Y)
		return &h, errors.Wrapf(ErrZeroSize, "container %s", containerID)
	}
	return &h, nil
}

func (c *Canvas) area(h *Handle) *area {
	if h == nil {
		return nil
	}
	return c.areas[h.ContainerID]
}

// Clear drops every mark and pointer handler but keeps size and scales.
func (c *Canvas) Clear(h *Handle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if a := c.area(h); a != nil {
		a.marks = nil
		a.handlers = make(map[string]PointerHandlers)
	}
}

func (c *Canvas) DrawMarks(h *Handle, kind MarkKind, class string, n int, style StyleFunc) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	a := c.area(h)
	if a == nil {
		return
	}
	for i := 0; i < n; i++ {
		m := style(i)
		m.Kind, m.Class, m.Index = kind, class, i
		a.marks = append(a.marks, m)
	}
}

func (c *Canvas) UpdateMark(h *Handle, class string, index int, fn func(m *Mark)) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	a := c.area(h)
	if a == nil {
		return ErrUnknownArea
	}
	for i := range a.marks {
		if a.marks[i].Class == class && a.marks[i].Index == index {
			fn(&a.marks[i])
			return nil
		}
	}
	return errors.Wrapf(ErrMarkOutOfRange, "%s[%d]", class, index)
}

func (c *Canvas) AttachPointerHandler(h *Handle, selector string, handlers PointerHandlers) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if a := c.area(h); a != nil {
		a.handlers[normalizeSelector(selector)] = handlers
	}
}

func (c *Canvas) SetScales(h *Handle, x, y LinearScale) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if a := c.area(h); a != nil {
		a.x, a.y = &x, &y
	}
}

func (c *Canvas) Invert(h *Handle, pixel Point) (Point, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	a := c.area(h)
	if a == nil {
		return Point{}, ErrUnknownArea
	}
	if a.x == nil || a.y == nil {
		return Point{}, ErrNoScales
	}
	return Point{X: a.x.Invert(pixel.X), Y: a.y.Invert(pixel.Y)}, nil
}

func (c *Canvas) SetVisible(containerID string, visible bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	a, ok := c.areas[containerID]
	if !ok {
		a = &area{handlers: make(map[string]PointerHandlers)}
		c.areas[containerID] = a
	}
	a.visible = visible
}

func (c *Canvas) Snapshot(containerID string) (*Scene, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	a, ok := c.areas[containerID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownArea, "container %s", containerID)
	}
	return &Scene{
		Handle:  a.handle,
		Visible: a.visible,
		Marks:   append([]Mark(nil), a.marks...),
	}, nil
}

func (c *Canvas) handlers(containerID, selector string) (PointerHandlers, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	a, ok := c.areas[containerID]
	if !ok {
		return PointerHandlers{}, errors.Wrapf(ErrUnknownArea, "container %s", containerID)
	}
	hs, ok := a.handlers[normalizeSelector(selector)]
	if !ok {
		return PointerHandlers{}, errors.Wrapf(ErrNoHandler, "%s on %s", selector, containerID)
	}
	return hs, nil
}

// Handlers run without the canvas lock held so they can redraw.

func (c *Canvas) DragMove(ctx context.Context, containerID, selector string, index int, p Point) error {
	hs, err := c.handlers(containerID, selector)
	if err != nil {
		return err
	}
	if hs.OnDragMove == nil {
		return errors.Wrapf(ErrNoHandler, "drag on %s", selector)
	}
	return hs.OnDragMove(ctx, index, p)
}

func (c *Canvas) DragEnd(ctx context.Context, containerID, selector string, index int, p Point) error {
	hs, err := c.handlers(containerID, selector)
	if err != nil {
		return err
	}
	if hs.OnDragEnd == nil {
		return errors.Wrapf(ErrNoHandler, "drag end on %s", selector)
	}
	return hs.OnDragEnd(ctx, index, p)
}

func (c *Canvas) Click(ctx context.Context, containerID string, p Point) error {
	hs, err := c.handlers(containerID, "")
	if err != nil {
		return err
	}
	if hs.OnClick == nil {
		return errors.Wrapf(ErrNoHandler, "click on %s", containerID)
	}
	return hs.OnClick(ctx, p)
}

func normalizeSelector(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if s == "svg" {
		return ""
	}
	return s
}
