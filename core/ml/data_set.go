package ml

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Sample is one training row: an input vector and its target vector.
type Sample struct {
	x []float64
	y []float64
}

func NewSample(x, y []float64) Sample {
	return Sample{x: append([]float64(nil), x...), y: append([]float64(nil), y...)}
}

func (s *Sample) GetX() []float64 {
	return s.x
}

func (s *Sample) GetY() []float64 {
	return s.y
}

type SampleSet struct {
	data []Sample
}

// Add appends a sample; every sample in a set must share the first one's widths.
func (ss *SampleSet) Add(s Sample) error {
	if len(s.x) == 0 || len(s.y) == 0 {
		return errors.New("sample has an empty input or target")
	}
	if len(ss.data) > 0 {
		first := ss.data[0]
		if len(first.x) != len(s.x) || len(first.y) != len(s.y) {
			return errors.Errorf("sample shape %dx%d does not match set shape %dx%d",
				len(s.x), len(s.y), len(first.x), len(first.y))
		}
	}
	ss.data = append(ss.data, s)
	return nil
}

func (ss *SampleSet) Len() int {
	return len(ss.data)
}

// Matrices packs the set into an input matrix and a target matrix, one row per sample.
func (ss *SampleSet) Matrices() (*mat.Dense, *mat.Dense, error) {
	if len(ss.data) == 0 {
		return nil, nil, errors.New("sample set is empty")
	}
	in, out := len(ss.data[0].x), len(ss.data[0].y)
	x := mat.NewDense(len(ss.data), in, nil)
	y := mat.NewDense(len(ss.data), out, nil)
	for i, s := range ss.data {
		x.SetRow(i, s.x)
		y.SetRow(i, s.y)
	}
	return x, y, nil
}
