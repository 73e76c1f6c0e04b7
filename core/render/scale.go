package render

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LinearScale maps a continuous domain onto a pixel range. The range may be
// inverted (R0 > R1), which is how y axes grow upwards.
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

func NewLinearScale(d0, d1, r0, r1 float64) LinearScale {
	return LinearScale{D0: d0, D1: d1, R0: r0, R1: r1}
}

func (s LinearScale) Apply(v float64) float64 {
	if s.D1 == s.D0 {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)/(s.D1-s.D0)*(s.R1-s.R0)
}

func (s LinearScale) Invert(px float64) float64 {
	if s.R1 == s.R0 {
		return (s.D0 + s.D1) / 2
	}
	return s.D0 + (px-s.R0)/(s.R1-s.R0)*(s.D1-s.D0)
}

// Ticks returns roughly count evenly spaced round values inside the domain,
// stepping by 1, 2 or 5 times a power of ten.
func (s LinearScale) Ticks(count int) []float64 {
	lo, hi := math.Min(s.D0, s.D1), math.Max(s.D0, s.D1)
	if count <= 0 || lo == hi {
		return []float64{lo}
	}
	raw := (hi - lo) / float64(count)
	step := math.Pow(10, math.Floor(math.Log10(raw)))
	switch e := raw / step; {
	case e >= math.Sqrt(50):
		step *= 10
	case e >= math.Sqrt(10):
		step *= 5
	case e >= math.Sqrt(2):
		step *= 2
	}
	first, last := math.Ceil(lo/step), math.Floor(hi/step)
	ticks := make([]float64, 0, int(last-first)+1)
	for i := first; i <= last; i++ {
		ticks = append(ticks, i*step)
	}
	return ticks
}
