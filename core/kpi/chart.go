package kpi

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	ChartSales  = "sales"
	ChartAsins  = "asins"
	ChartStates = "states"

	MissingStateFill = "#ccc"
	lowOrdersColor   = "f0f8ff"
	highOrdersColor  = "1f4068"
)

var (
	salesLineColor  = drawing.ColorFromHex("2ecc71")
	salesTitleColor = drawing.ColorFromHex("06472D")
	asinBarColor    = drawing.ColorFromHex("4682b4")
	asinTitleColor  = drawing.ColorFromHex("0B407A")

	chartPadding = chart.Box{Top: 40, Left: 50, Right: 20, Bottom: 40}
)

// SalesChart renders the daily sales trend as an SVG line chart with a dot
// per day.
func SalesChart(w io.Writer, sales []SalesPoint, width, height int) error {
	if len(sales) < 2 {
		return errors.Errorf("sales chart needs at least two days, got %d", len(sales))
	}
	xs := make([]time.Time, len(sales))
	ys := make([]float64, len(sales))
	maxSales := 0.0
	for i, s := range sales {
		t, err := time.Parse(DateLayout, s.Date)
		if err != nil {
			return invalid("salesData[%d].date %q is not YYYY-MM-DD", i, s.Date)
		}
		xs[i], ys[i] = t, s.Sales
		maxSales = math.Max(maxSales, s.Sales)
	}

	ch := chart.Chart{
		Title:      "Daily Sales Trend",
		TitleStyle: chart.Style{FontColor: salesTitleColor, FontSize: 16},
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chartPadding},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 02"),
		},
		YAxis: chart.YAxis{
			Name:  "Sales",
			Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxSales)},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Sales",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: salesLineColor,
					StrokeWidth: 2,
					DotColor:    salesLineColor,
					DotWidth:    4,
				},
			},
		},
	}
	return errors.Wrap(ch.Render(chart.SVG, w), "render sales chart")
}

// RankAsins returns a copy of the ASINs ordered by revenue, highest first.
func RankAsins(asins []AsinStat) []AsinStat {
	out := append([]AsinStat(nil), asins...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

// AsinChart renders revenue per ASIN as an SVG bar chart, highest first.
func AsinChart(w io.Writer, asins []AsinStat, width, height int) error {
	if len(asins) == 0 {
		return errors.New("asin chart needs at least one asin")
	}
	ranked := RankAsins(asins)
	bw, spacing := barLayout(width, len(ranked))
	bars := make([]chart.Value, len(ranked))
	for i, a := range ranked {
		bars[i] = chart.Value{
			Label: a.ASIN,
			Value: a.Revenue,
			Style: chart.Style{FillColor: asinBarColor, StrokeColor: asinBarColor},
		}
	}

	ch := chart.BarChart{
		Title:      "ASIN Performance",
		TitleStyle: chart.Style{FontColor: asinTitleColor, FontSize: 16},
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chartPadding},
		BarWidth:   bw,
		BarSpacing: spacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: niceMax(ranked[0].Revenue)},
		},
		Bars: bars,
	}
	return errors.Wrap(ch.Render(chart.SVG, w), "render asin chart")
}

// barLayout splits the plot width into one band per bar and leaves a fifth
// of each band as the gap.
func barLayout(width, n int) (int, int) {
	inner := width - chartPadding.Left - chartPadding.Right
	if inner <= 0 || n == 0 {
		return 1, 1
	}
	band := float64(inner) / float64(n)
	return int(math.Max(1, band*0.8)), int(math.Max(1, band*0.2))
}

// niceMax rounds the top of an axis up to 1, 2 or 5 times a power of ten.
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	p := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*p {
			return m * p
		}
	}
	return 10 * p
}

// StateFills colours every state by its order count on a linear scale from
// #f0f8ff at zero to #1f4068 at the busiest state. States without orders
// get MissingStateFill.
func StateFills(buyers []BuyerStat, states []string) map[string]string {
	orders := make(map[string]int, len(buyers))
	maxOrders := 0
	for _, b := range buyers {
		orders[b.State] = b.Orders
		if b.Orders > maxOrders {
			maxOrders = b.Orders
		}
	}

	lo, hi := drawing.ColorFromHex(lowOrdersColor), drawing.ColorFromHex(highOrdersColor)
	fills := make(map[string]string, len(states))
	for _, s := range states {
		n := orders[s]
		if n <= 0 || maxOrders == 0 {
			fills[s] = MissingStateFill
			continue
		}
		fills[s] = interpolate(lo, hi, float64(n)/float64(maxOrders))
	}
	return fills
}

func interpolate(a, b drawing.Color, t float64) string {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return fmt.Sprintf("#%02x%02x%02x", mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B))
}
