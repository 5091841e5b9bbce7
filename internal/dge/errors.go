package dge

import "fmt"

// InsufficientSamplesError reports a contrast with too few samples to fit.
// It is fatal to that contrast only, never to the whole batch.
type InsufficientSamplesError struct {
	Contrast string
	Samples  int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("contrast %q has %d samples, need at least %d", e.Contrast, e.Samples, minSamples)
}

// minSamples is the smallest sample count for which a contrast can be fit.
const minSamples = 3
