package render

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var namedColors = map[string]drawing.Color{
	"blue":      drawing.ColorBlue,
	"red":       drawing.ColorRed,
	"black":     drawing.ColorBlack,
	"white":     drawing.ColorWhite,
	"gray":      drawing.ColorFromHex("808080"),
	"steelblue": drawing.ColorFromHex("4682b4"),
	"none":      drawing.ColorTransparent,
}

func parseColor(s string) drawing.Color {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") {
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	}
	return drawing.ColorTransparent
}

func px(v float64) int {
	return int(math.Round(v))
}

// WriteSVG renders a scene through go-chart's SVG renderer, translating
// every mark by the scene's margins.
func WriteSVG(w io.Writer, s *Scene) error {
	width := px(s.Width + s.Margin.Left + s.Margin.Right)
	height := px(s.Height + s.Margin.Top + s.Margin.Bottom)
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrZeroSize, "container %s", s.ContainerID)
	}
	r, err := chart.SVG(width, height)
	if err != nil {
		return errors.Wrap(err, "create svg renderer")
	}
	if font, err := chart.GetDefaultFont(); err == nil {
		r.SetFont(font)
	}

	ox, oy := s.Margin.Left, s.Margin.Top
	for _, m := range s.Marks {
		r.ResetStyle()
		r.SetClassName(m.Class)
		switch m.Kind {
		case MarkCircle:
			r.SetFillColor(parseColor(m.Fill))
			r.SetStrokeColor(parseColor(m.Stroke))
			r.SetStrokeWidth(1)
			r.Circle(m.R, px(m.X+ox), px(m.Y+oy))
		case MarkRect:
			r.SetFillColor(parseColor(m.Fill))
			r.SetStrokeColor(parseColor(m.Stroke))
			x0, y0 := px(m.X+ox), px(m.Y+oy)
			x1, y1 := px(m.X+m.Width+ox), px(m.Y+m.Height+oy)
			r.MoveTo(x0, y0)
			r.LineTo(x1, y0)
			r.LineTo(x1, y1)
			r.LineTo(x0, y1)
			r.Close()
			r.Fill()
		case MarkPath:
			if len(m.Points) < 2 {
				continue
			}
			r.SetStrokeColor(parseColor(m.Stroke))
			r.SetStrokeWidth(2)
			r.MoveTo(px(m.Points[0].X+ox), px(m.Points[0].Y+oy))
			for _, p := range m.Points[1:] {
				r.LineTo(px(p.X+ox), px(p.Y+oy))
			}
			r.Stroke()
		case MarkText:
			fill := m.Fill
			if fill == "" {
				fill = "black"
			}
			r.SetFontColor(parseColor(fill))
			r.SetFontSize(10)
			r.Text(m.Text, px(m.X+ox), px(m.Y+oy))
		}
	}
	return r.Save(w)
}

const (
	ClassAxis     = "axis"
	ClassAxisTick = "tick"
	axisTickSize  = 6
)

// DrawAxes adds a bottom and a left axis with tick labels.
func DrawAxes(s Surface, h *Handle, x, y LinearScale) {
	xt, yt := x.Ticks(10), y.Ticks(10)
	s.DrawMarks(h, MarkPath, ClassAxis, 2, func(i int) Mark {
		if i == 0 {
			return Mark{Stroke: "black", Points: []Point{{X: x.R0, Y: h.Height}, {X: x.R1, Y: h.Height}}}
		}
		return Mark{Stroke: "black", Points: []Point{{X: 0, Y: y.R0}, {X: 0, Y: y.R1}}}
	})
	s.DrawMarks(h, MarkText, ClassAxisTick, len(xt)+len(yt), func(i int) Mark {
		if i < len(xt) {
			return Mark{X: x.Apply(xt[i]), Y: h.Height + axisTickSize + 9, Text: formatTick(xt[i])}
		}
		v := yt[i-len(xt)]
		return Mark{X: -axisTickSize - 24, Y: y.Apply(v) + 3, Text: formatTick(v)}
	})
}

func formatTick(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e9)/1e9, 'f', -1, 64)
}
