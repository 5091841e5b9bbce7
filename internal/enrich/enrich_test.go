package enrich

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradedEffects returns n genes with strictly increasing effect sizes, so
// gene names sort like their ranks.
func gradedEffects(n int) map[string]float64 {
	m := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		m[fmt.Sprintf("g%04d", i)] = float64(i+1) / 100
	}
	return m
}

func topGenes(n, k int) []string {
	genes := make([]string, 0, k)
	for i := n - k; i < n; i++ {
		genes = append(genes, fmt.Sprintf("g%04d", i))
	}
	return genes
}

func TestScore_TopSetEnriched(t *testing.T) {
	p, err := NewProfile([]string{"ctrl_vs_trt"}, []map[string]float64{gradedEffects(1000)})
	require.NoError(t, err)

	sets := map[string][]string{"top": topGenes(1000, 50)}
	out := NewEngine(DefaultOptions()).Score(p, sets)
	require.Len(t, out, 1)

	s := out[0]
	assert.Equal(t, "top", s.Set)
	assert.Equal(t, 50, s.Size)
	// Members occupy ranks 951..1000: s = 2*(975.5 - 500.5)/1000.
	assert.InDelta(t, 0.95, s.EffectDist, 1e-9)
	require.Len(t, s.Scores, 1)
	assert.Equal(t, s.Scores[0], s.EffectDist)
	assert.Less(t, s.PAdj, 0.01)
}

func TestScore_RandomSetsNearZero(t *testing.T) {
	p, err := NewProfile([]string{"c1"}, []map[string]float64{gradedEffects(1000)})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	sets := make(map[string][]string, 100)
	for i := 0; i < 100; i++ {
		members := make([]string, 50)
		for j := range members {
			members[j] = fmt.Sprintf("g%04d", rng.Intn(1000))
		}
		sets[fmt.Sprintf("rand%03d", i)] = members
	}

	out := NewEngine(DefaultOptions()).Score(p, sets)
	require.NotEmpty(t, out)

	var sumDist, sumP float64
	for _, s := range out {
		sumDist += s.EffectDist
		sumP += s.PValue
	}
	assert.InDelta(t, 0.0, sumDist/float64(len(out)), 0.05)
	assert.Greater(t, sumP/float64(len(out)), 0.2)
}

func TestScore_ConcordantVsDiscordant(t *testing.T) {
	eff := gradedEffects(1000)
	opposite := make(map[string]float64, len(eff))
	for g, v := range eff {
		opposite[g] = -v
	}

	set := map[string][]string{"top": topGenes(1000, 50)}

	concordant, err := NewProfile([]string{"c1", "c2"}, []map[string]float64{eff, eff})
	require.NoError(t, err)
	discordant, err := NewProfile([]string{"c1", "c2"}, []map[string]float64{eff, opposite})
	require.NoError(t, err)

	engine := NewEngine(DefaultOptions())
	con := engine.Score(concordant, set)
	dis := engine.Score(discordant, set)
	require.Len(t, con, 1)
	require.Len(t, dis, 1)

	// Same per-dimension magnitudes, opposite relationships: the combined
	// distance must tell them apart.
	assert.InDelta(t, 2*0.95/math.Sqrt2, con[0].EffectDist, 1e-9)
	assert.InDelta(t, 0.0, dis[0].EffectDist, 1e-9)
	assert.Greater(t, dis[0].ScoreSD, 1.0)
	assert.Less(t, con[0].ScoreSD, 1e-9)

	// Both are extreme under the omnibus null.
	assert.Less(t, con[0].PValue, 0.01)
	assert.Less(t, dis[0].PValue, 0.01)
}

func TestScore_DropsUnusableSets(t *testing.T) {
	p, err := NewProfile([]string{"c1"}, []map[string]float64{gradedEffects(100)})
	require.NoError(t, err)

	sets := map[string][]string{
		"ok":         topGenes(100, 10),
		"unmeasured": {"x1", "x2", "x3", "x4", "x5"},
		"tiny":       topGenes(100, 3),
	}
	out := NewEngine(DefaultOptions()).Score(p, sets)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].Set)
}

func TestScore_TieAwareRanks(t *testing.T) {
	p, err := NewProfile([]string{"c1"}, []map[string]float64{
		{"a": 1, "b": 1, "c": 2},
	})
	require.NoError(t, err)

	out := NewEngine(Options{MinSetSize: 1}).Score(p, map[string][]string{
		"tied": {"a", "b"},
	})
	require.Len(t, out, 1)

	// a and b share average rank 1.5: s = 2*(1.5 - 2)/3.
	assert.InDelta(t, -1.0/3, out[0].EffectDist, 1e-9)
}

func TestScore_WholeProfileSet(t *testing.T) {
	p, err := NewProfile([]string{"c1"}, []map[string]float64{gradedEffects(20)})
	require.NoError(t, err)

	out := NewEngine(Options{MinSetSize: 1}).Score(p, map[string][]string{
		"everything": topGenes(20, 20),
	})
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].PValue)
}

func TestScore_PermutationNull(t *testing.T) {
	p, err := NewProfile([]string{"c1"}, []map[string]float64{gradedEffects(500)})
	require.NoError(t, err)

	opts := Options{
		MinSetSize:   5,
		Null:         NullPermutation,
		Permutations: 400,
		Seed:         9,
		Workers:      2,
	}
	sets := map[string][]string{
		"top":  topGenes(500, 40),
		"rand": {"g0003", "g0117", "g0250", "g0333", "g0481", "g0042", "g0199"},
	}

	first := NewEngine(opts).Score(p, sets)
	second := NewEngine(opts).Score(p, sets)
	require.Len(t, first, 2)
	assert.Equal(t, first, second, "seeded permutation run is not reproducible")

	byName := map[string]SetScore{}
	for _, s := range first {
		byName[s.Set] = s
	}
	assert.Less(t, byName["top"].PValue, 0.01)
	assert.Greater(t, byName["rand"].PValue, 0.05)
}

func TestNewProfile_Validation(t *testing.T) {
	_, err := NewProfile(nil, nil)
	assert.Error(t, err)

	_, err = NewProfile([]string{"a", "a"}, []map[string]float64{{}, {}})
	assert.Error(t, err)

	_, err = NewProfile([]string{"a"}, []map[string]float64{{}, {}})
	assert.Error(t, err)
}

func TestProfile_UnmeasuredGenes(t *testing.T) {
	// g3 is only measured in the second contrast; it must not disturb the
	// first dimension's ranking.
	p, err := NewProfile([]string{"c1", "c2"}, []map[string]float64{
		{"g1": 1, "g2": 2},
		{"g1": 1, "g2": 2, "g3": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, p.NGenes())

	out := NewEngine(Options{MinSetSize: 1}).Score(p, map[string][]string{
		"has-g3": {"g3"},
	})
	require.Len(t, out, 1)
	require.Len(t, out[0].Scores, 2)
	assert.Equal(t, 0.0, out[0].Scores[0], "dimension without measured members must score zero")
	assert.Positive(t, out[0].Scores[1])
}
