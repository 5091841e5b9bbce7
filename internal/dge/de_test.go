package dge

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/markziemann/maryam-rnaseq/internal/matrix"
)

func twoGroupContrast(t *testing.T, samples []string, indicator []int) matrix.Contrast {
	t.Helper()
	sheet, err := matrix.NewSampleSheet(samples, map[string][]int{"trt": indicator})
	require.NoError(t, err)
	c, err := sheet.Contrast("trt_vs_ctrl", "trt", nil)
	require.NoError(t, err)
	return c
}

func unitSizeFactors(n int) []float64 {
	sf := make([]float64, n)
	for i := range sf {
		sf[i] = 1
	}
	return sf
}

func TestRun_TwoGeneContrast(t *testing.T) {
	samples := []string{"c1", "c2", "c3", "t1", "t2", "t3"}
	m, err := matrix.NewCountMatrix(
		[]string{"gA", "gB"},
		samples,
		[]int64{
			100, 110, 90, 200, 220, 180, // doubles under treatment
			400, 380, 420, 400, 390, 410, // flat
		},
	)
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 0, 0, 1, 1, 1})

	res, err := New(DefaultOptions()).RunWithSizeFactors(m, c, unitSizeFactors(6))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byGene := map[string]DEResult{}
	for _, r := range res.Rows {
		byGene[r.Gene] = r
	}
	gA, gB := byGene["gA"], byGene["gB"]

	assert.InDelta(t, 1.0, gA.Log2FoldChange, 0.05)
	assert.InDelta(t, 0.0, gB.Log2FoldChange, 0.05)
	assert.Less(t, gA.PValue, gB.PValue)
	assert.Less(t, byGene["gA"].PAdj, 0.05)

	assert.InDelta(t, 150, gA.BaseMean, 1e-9)
	assert.Len(t, res.VST, 2)
	assert.Len(t, res.VST[0], 6)
}

func TestRun_ZeroVarianceGene(t *testing.T) {
	samples := []string{"c1", "c2", "c3", "t1", "t2", "t3"}
	m, err := matrix.NewCountMatrix(
		[]string{"gflat", "gvar"},
		samples,
		[]int64{
			20, 20, 20, 20, 20, 20,
			100, 110, 90, 200, 220, 180,
		},
	)
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 0, 0, 1, 1, 1})

	res, err := New(DefaultOptions()).RunWithSizeFactors(m, c, unitSizeFactors(6))
	require.NoError(t, err)
	require.Len(t, res.Rows, 2, "zero-variance gene must stay in the table")

	byGene := map[string]DEResult{}
	for _, r := range res.Rows {
		byGene[r.Gene] = r
	}
	flat := byGene["gflat"]
	assert.True(t, math.IsNaN(flat.Log2FoldChange))
	assert.True(t, math.IsNaN(flat.PValue))
	assert.True(t, math.IsNaN(flat.PAdj))
	assert.False(t, math.IsNaN(byGene["gvar"].PValue))

	// NaN rows sort last and carry no effect size.
	sorted := res.SortedRows()
	assert.Equal(t, "gflat", sorted[len(sorted)-1].Gene)
	effects := res.EffectSizes()
	assert.Contains(t, effects, "gvar")
	assert.NotContains(t, effects, "gflat")
}

func TestRun_InsufficientSamples(t *testing.T) {
	samples := []string{"c1", "t1"}
	m, err := matrix.NewCountMatrix([]string{"gA"}, samples, []int64{100, 200})
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 1})

	_, err = New(DefaultOptions()).Run(m, c)
	require.Error(t, err)
	var insufficient *InsufficientSamplesError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "trt_vs_ctrl", insufficient.Contrast)
	assert.Equal(t, 2, insufficient.Samples)
}

func TestRun_SingleLevelIndicator(t *testing.T) {
	samples := []string{"c1", "c2", "c3"}
	m, err := matrix.NewCountMatrix([]string{"gA"}, samples, []int64{100, 110, 90})
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 0, 0})

	_, err = New(DefaultOptions()).Run(m, c)
	assert.ErrorContains(t, err, "single level")
}

func TestRun_MeanCountFilter(t *testing.T) {
	samples := []string{"c1", "c2", "t1", "t2"}
	m, err := matrix.NewCountMatrix(
		[]string{"kept", "dropped"},
		samples,
		[]int64{
			50, 60, 55, 45,
			1, 2, 0, 1, // mean 1, below the filter
		},
	)
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 0, 1, 1})

	res, err := New(DefaultOptions()).RunWithSizeFactors(m, c, unitSizeFactors(4))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "kept", res.Rows[0].Gene)
}

func TestRunWithSizeFactors_LengthMismatch(t *testing.T) {
	samples := []string{"c1", "c2", "c3", "t1", "t2", "t3"}
	m, err := matrix.NewCountMatrix([]string{"gA"}, samples, []int64{10, 10, 10, 20, 20, 20})
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, []int{0, 0, 0, 1, 1, 1})

	_, err = New(DefaultOptions()).RunWithSizeFactors(m, c, []float64{1, 1})
	assert.Error(t, err)
}

func TestRun_NullCalibration(t *testing.T) {
	// No true effects: fold changes should sit near zero and p-values near
	// uniform.
	src := rand.NewSource(42)
	nGenes, nSamples := 150, 10
	samples := make([]string, nSamples)
	indicator := make([]int, nSamples)
	for j := range samples {
		samples[j] = string(rune('a' + j))
		if j >= nSamples/2 {
			indicator[j] = 1
		}
	}

	genes := make([]string, nGenes)
	counts := make([]int64, 0, nGenes*nSamples)
	for i := range genes {
		genes[i] = "g" + string(rune('A'+i/26)) + string(rune('A'+i%26))
		for j := 0; j < nSamples; j++ {
			counts = append(counts, int64(simulateNB(src, 100, 0.05)))
		}
	}

	m, err := matrix.NewCountMatrix(genes, samples, counts)
	require.NoError(t, err)
	c := twoGroupContrast(t, samples, indicator)

	res, err := New(Options{MinMeanCount: 10, CooksQuantile: 0.99, Workers: 4}).Run(m, c)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Rows), 140)

	var sumAbsLFC, sumP float64
	var nDefined, nSig int
	for _, r := range res.Rows {
		if math.IsNaN(r.PValue) {
			continue
		}
		nDefined++
		sumAbsLFC += math.Abs(r.Log2FoldChange)
		sumP += r.PValue
		if r.PValue < 0.05 {
			nSig++
		}
	}
	require.Greater(t, nDefined, 100)

	assert.Less(t, sumAbsLFC/float64(nDefined), 0.15, "mean |log2FC| too large under the null")
	meanP := sumP / float64(nDefined)
	assert.Greater(t, meanP, 0.35)
	assert.Less(t, meanP, 0.65)
	assert.Less(t, float64(nSig)/float64(nDefined), 0.15, "too many significant genes under the null")
}
