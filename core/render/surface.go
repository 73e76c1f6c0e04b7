package render

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrZeroSize       = errors.New("plot area has no drawable size")
	ErrUnknownArea    = errors.New("unknown plot area")
	ErrNoHandler      = errors.New("no pointer handler attached")
	ErrNoScales       = errors.New("plot area has no scales")
	ErrMarkOutOfRange = errors.New("mark index out of range")
)

type MarkKind string

const (
	MarkCircle MarkKind = "circle"
	MarkPath   MarkKind = "path"
	MarkRect   MarkKind = "rect"
	MarkText   MarkKind = "text"
)

// Mark is one drawn element. Coordinates are relative to the plot area's
// inner origin (inside the margins).
type Mark struct {
	Kind   MarkKind `json:"kind"`
	Class  string   `json:"class,omitempty"`
	ID     string   `json:"id,omitempty"`
	Index  int      `json:"index"`
	X      float64  `json:"x,omitempty"`
	Y      float64  `json:"y,omitempty"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`
	R      float64  `json:"r,omitempty"`
	Points []Point  `json:"points,omitempty"`
	Text   string   `json:"text,omitempty"`
	Fill   string   `json:"fill,omitempty"`
	Stroke string   `json:"stroke,omitempty"`
}

// StyleFunc describes the i-th mark of a DrawMarks call. Kind, Class and
// Index are filled in by the surface.
type StyleFunc func(i int) Mark

type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

var DefaultMargin = Margin{Top: 20, Right: 20, Bottom: 30, Left: 40}

// Handle addresses a plot area. Width and Height are the inner size.
type Handle struct {
	ContainerID string  `json:"container"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Margin      Margin  `json:"margin"`
}

type PointerHandlers struct {
	OnDragMove func(ctx context.Context, index int, p Point) error
	OnDragEnd  func(ctx context.Context, index int, p Point) error
	OnClick    func(ctx context.Context, p Point) error
}

// Surface is what the demo controller draws through.
type Surface interface {
	// CreatePlotArea sizes the area to its container and clears it. It
	// returns the handle together with ErrZeroSize when the container has
	// no room to draw in.
	CreatePlotArea(containerID string) (*Handle, error)
	Clear(h *Handle)
	DrawMarks(h *Handle, kind MarkKind, class string, n int, style StyleFunc)
	UpdateMark(h *Handle, class string, index int, fn func(m *Mark)) error
	AttachPointerHandler(h *Handle, selector string, handlers PointerHandlers)
	SetScales(h *Handle, x, y LinearScale)
	Invert(h *Handle, pixel Point) (Point, error)
	SetVisible(containerID string, visible bool)
}

// Scene is a snapshot of a plot area.
type Scene struct {
	Handle
	Visible bool   `json:"visible"`
	Marks   []Mark `json:"marks"`
}

func (s *Scene) Count(class string) int {
	n := 0
	for _, m := range s.Marks {
		if m.Class == class {
			n++
		}
	}
	return n
}

func (s *Scene) ByClass(class string) []Mark {
	var out []Mark
	for _, m := range s.Marks {
		if m.Class == class {
			out = append(out, m)
		}
	}
	return out
}
