package dge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestEstimateDispersions_OnTrendKeepsRaw(t *testing.T) {
	// All genes share the same counts, so every raw estimate sits exactly on
	// the fitted trend and shrinkage must leave it unchanged.
	row := []float64{50, 100, 150, 200, 250, 300}
	counts := make([][]float64, 5)
	for i := range counts {
		counts[i] = append([]float64(nil), row...)
	}
	sf := []float64{1, 1, 1, 1, 1, 1}

	fit, err := EstimateDispersions(counts, sf, 2)
	require.NoError(t, err)

	for i := range counts {
		assert.Greater(t, fit.Raw[i], minDispersion)
		assert.InEpsilon(t, fit.Raw[i], fit.Shrunk[i], 1e-9)
		assert.False(t, fit.Outlier[i])
	}
}

func TestEstimateDispersions_ShrinksTowardTrend(t *testing.T) {
	src := rand.NewSource(7)
	nSamples := 8
	sf := make([]float64, nSamples)
	for j := range sf {
		sf[j] = 1
	}

	counts := make([][]float64, 60)
	for i := range counts {
		mu := 20.0 + 10*float64(i)
		row := make([]float64, nSamples)
		for j := range row {
			row[j] = simulateNB(src, mu, 0.1)
		}
		counts[i] = row
	}

	fit, err := EstimateDispersions(counts, sf, 2)
	require.NoError(t, err)

	changed := 0
	for i := range counts {
		if fit.BaseMean[i] <= 0 || fit.Outlier[i] {
			continue
		}
		lo := math.Min(fit.Raw[i], fit.Trend(fit.BaseMean[i]))
		hi := math.Max(fit.Raw[i], fit.Trend(fit.BaseMean[i]))
		assert.GreaterOrEqual(t, fit.Shrunk[i], lo-1e-12)
		assert.LessOrEqual(t, fit.Shrunk[i], hi+1e-12)
		if math.Abs(fit.Shrunk[i]-fit.Raw[i]) > 1e-12 {
			changed++
		}
	}
	assert.Greater(t, changed, 0, "shrinkage moved no estimate")
}

func TestEstimateDispersions_NoResidualDF(t *testing.T) {
	counts := [][]float64{{10, 20}}
	_, err := EstimateDispersions(counts, []float64{1, 1}, 2)
	assert.Error(t, err)
}

func TestDispersionFitTrendFloor(t *testing.T) {
	fit := &DispersionFit{A0: 0, A1: 0}
	assert.Equal(t, minDispersion, fit.Trend(100))
}

func TestTrigamma(t *testing.T) {
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-8)
	assert.InDelta(t, math.Pi*math.Pi/6-1, trigamma(2), 1e-8)
	assert.InDelta(t, 0.1051663, trigamma(10), 1e-6)
}

// simulateNB draws one negative-binomial count as a gamma-mixed Poisson.
func simulateNB(src rand.Source, mu, alpha float64) float64 {
	lambda := distuv.Gamma{Alpha: 1 / alpha, Beta: 1 / (alpha * mu), Src: src}.Rand()
	if lambda <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: lambda, Src: src}.Rand()
}
