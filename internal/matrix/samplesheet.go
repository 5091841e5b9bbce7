package matrix

import (
	"sort"
)

// SampleSheet maps sample identifiers to binary group indicators.
// Each indicator column holds exactly 0 or 1 per sample.
type SampleSheet struct {
	samples    []string
	sampleIdx  map[string]int
	indicators map[string][]int
}

// NewSampleSheet builds a sample sheet. Indicator columns must be aligned
// with the samples slice and contain only 0/1 values.
func NewSampleSheet(samples []string, indicators map[string][]int) (*SampleSheet, error) {
	idx := make(map[string]int, len(samples))
	for i, s := range samples {
		if s == "" {
			return nil, malformedf("empty sample identifier in sample sheet row %d", i)
		}
		if _, dup := idx[s]; dup {
			return nil, malformedf("duplicate sample %q in sample sheet", s)
		}
		idx[s] = i
	}

	for name, col := range indicators {
		if len(col) != len(samples) {
			return nil, malformedf("indicator %q has %d values, want %d", name, len(col), len(samples))
		}
		for i, v := range col {
			if v != 0 && v != 1 {
				return nil, malformedf("indicator %q has value %d for sample %q, want 0 or 1",
					name, v, samples[i])
			}
		}
	}

	cols := make(map[string][]int, len(indicators))
	for name, col := range indicators {
		cols[name] = append([]int(nil), col...)
	}

	return &SampleSheet{
		samples:    append([]string(nil), samples...),
		sampleIdx:  idx,
		indicators: cols,
	}, nil
}

// Samples returns a copy of the sample identifiers in sheet order.
func (s *SampleSheet) Samples() []string { return append([]string(nil), s.samples...) }

// Indicators returns the indicator column names in sorted order.
func (s *SampleSheet) Indicators() []string {
	names := make([]string, 0, len(s.indicators))
	for name := range s.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Indicator returns the 0/1 value of the named indicator for a sample.
func (s *SampleSheet) Indicator(name, sample string) (int, bool) {
	col, ok := s.indicators[name]
	if !ok {
		return 0, false
	}
	i, ok := s.sampleIdx[sample]
	if !ok {
		return 0, false
	}
	return col[i], true
}

// Validate checks that every matrix column has exactly one sheet row.
func (s *SampleSheet) Validate(m *CountMatrix) error {
	for _, sample := range m.Samples() {
		if _, ok := s.sampleIdx[sample]; !ok {
			return malformedf("count matrix sample %q has no sample sheet row", sample)
		}
	}
	return nil
}

// Contrast is a named control-vs-treatment comparison: a sample subset of
// the shared count matrix plus one binary indicator over those samples.
// It is a view; the matrix itself is never copied or mutated.
type Contrast struct {
	Name      string
	Samples   []string
	Indicator []int
}

// Contrast builds a contrast from an indicator column, restricted to the
// given sample subset (sheet order if samples is nil).
func (s *SampleSheet) Contrast(name, indicator string, samples []string) (Contrast, error) {
	col, ok := s.indicators[indicator]
	if !ok {
		return Contrast{}, malformedf("contrast %q references unknown indicator %q", name, indicator)
	}
	if samples == nil {
		samples = s.samples
	}

	ind := make([]int, len(samples))
	for i, sample := range samples {
		row, ok := s.sampleIdx[sample]
		if !ok {
			return Contrast{}, malformedf("contrast %q references unknown sample %q", name, sample)
		}
		ind[i] = col[row]
	}

	c := Contrast{
		Name:      name,
		Samples:   append([]string(nil), samples...),
		Indicator: ind,
	}
	return c, nil
}

// ColumnIndices resolves the contrast's samples to matrix column indices.
func (c Contrast) ColumnIndices(m *CountMatrix) ([]int, error) {
	cols := make([]int, len(c.Samples))
	for i, sample := range c.Samples {
		j, ok := m.SampleIndex(sample)
		if !ok {
			return nil, malformedf("contrast %q sample %q is not a count matrix column", c.Name, sample)
		}
		cols[i] = j
	}
	return cols, nil
}

// Levels returns how many samples sit at indicator 0 and 1 respectively.
func (c Contrast) Levels() (n0, n1 int) {
	for _, v := range c.Indicator {
		if v == 0 {
			n0++
		} else {
			n1++
		}
	}
	return n0, n1
}
