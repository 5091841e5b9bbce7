package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/matrix"
)

func batchFixture(t *testing.T) (*matrix.CountMatrix, *matrix.SampleSheet) {
	t.Helper()
	samples := []string{"c1", "c2", "c3", "t1", "t2", "t3"}
	m, err := matrix.NewCountMatrix(
		[]string{"g1", "g2", "g3", "g4"},
		samples,
		[]int64{
			100, 110, 90, 200, 220, 180,
			400, 380, 420, 400, 390, 410,
			50, 60, 55, 120, 110, 130,
			30, 35, 25, 30, 28, 33,
		},
	)
	require.NoError(t, err)

	sheet, err := matrix.NewSampleSheet(samples, map[string][]int{
		"treated": {0, 0, 0, 1, 1, 1},
	})
	require.NoError(t, err)
	return m, sheet
}

func TestRunAll_FailureIsolation(t *testing.T) {
	m, sheet := batchFixture(t)
	runner := NewRunner(dge.New(dge.DefaultOptions()))

	specs := []ContrastSpec{
		{Name: "full", Indicator: "treated"},
		{Name: "toosmall", Indicator: "treated", Samples: []string{"c1", "t1"}},
		{Name: "badsample", Indicator: "treated", Samples: []string{"c1", "c2", "nope"}},
	}

	outcomes, err := runner.RunAll(context.Background(), m, sheet, specs)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	require.NotNil(t, outcomes[0].Result)
	assert.Equal(t, "full", outcomes[0].Result.Contrast)

	var insufficient *dge.InsufficientSamplesError
	require.Error(t, outcomes[1].Err)
	assert.True(t, errors.As(outcomes[1].Err, &insufficient))
	assert.Nil(t, outcomes[1].Result)

	var malformed *matrix.MalformedInputError
	require.Error(t, outcomes[2].Err)
	assert.True(t, errors.As(outcomes[2].Err, &malformed))

	assert.Len(t, Succeeded(outcomes), 1)
}

func TestRunAll_ValidatesSheet(t *testing.T) {
	m, _ := batchFixture(t)
	sheet, err := matrix.NewSampleSheet([]string{"c1"}, map[string][]int{"treated": {0}})
	require.NoError(t, err)

	runner := NewRunner(dge.New(dge.DefaultOptions()))
	_, err = runner.RunAll(context.Background(), m, sheet, nil)
	assert.Error(t, err)
}

func TestEnrichmentProfileAndUpDownSets(t *testing.T) {
	m, sheet := batchFixture(t)
	runner := NewRunner(dge.New(dge.DefaultOptions()))

	specs := []ContrastSpec{
		{Name: "full", Indicator: "treated"},
		{Name: "toosmall", Indicator: "treated", Samples: []string{"c1", "t1"}},
	}
	outcomes, err := runner.RunAll(context.Background(), m, sheet, specs)
	require.NoError(t, err)

	p, err := EnrichmentProfile(outcomes)
	require.NoError(t, err)
	assert.Equal(t, []string{"full"}, p.Contrasts())
	assert.Positive(t, p.NGenes())

	sets := UpDownSets(outcomes, 0.05)
	require.Len(t, sets, 2)
	assert.Equal(t, "full_up", sets[0].Label)
	assert.Equal(t, "full_dn", sets[1].Label)
}
