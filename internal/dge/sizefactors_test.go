package dge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateSizeFactors_ScaledProfiles(t *testing.T) {
	// Each sample is the same expression profile scaled by a library size
	// multiplier, so the factors must recover the multiplier ratios exactly.
	base := []float64{10, 20, 40, 80, 5}
	mult := []float64{1, 2, 4}

	counts := make([][]float64, len(base))
	for i, b := range base {
		row := make([]float64, len(mult))
		for j, m := range mult {
			row[j] = b * m
		}
		counts[i] = row
	}

	sf, err := EstimateSizeFactors(counts)
	require.NoError(t, err)
	require.Len(t, sf, 3)

	assert.InEpsilon(t, 2.0, sf[1]/sf[0], 1e-9)
	assert.InEpsilon(t, 4.0, sf[2]/sf[0], 1e-9)
	for _, s := range sf {
		assert.Positive(t, s)
	}
}

func TestEstimateSizeFactors_ZeroGenesExcluded(t *testing.T) {
	counts := [][]float64{
		{10, 20, 40},
		{20, 40, 80},
		{0, 100, 100}, // zero in one sample, must not enter the reference
	}

	sf, err := EstimateSizeFactors(counts)
	require.NoError(t, err)
	assert.InEpsilon(t, 2.0, sf[1]/sf[0], 1e-9)
	assert.InEpsilon(t, 4.0, sf[2]/sf[0], 1e-9)
}

func TestEstimateSizeFactors_AllGenesHaveZeros(t *testing.T) {
	counts := [][]float64{
		{0, 20},
		{20, 0},
	}
	_, err := EstimateSizeFactors(counts)
	assert.Error(t, err)
}

func TestEstimateSizeFactors_Empty(t *testing.T) {
	_, err := EstimateSizeFactors(nil)
	assert.Error(t, err)
}
