package aggregate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTx2Gene = map[string]string{
	"tx1": "ENSG01 GENE1",
	"tx2": "ENSG01 GENE1",
	"tx3": "ENSG02 GENE2",
}

func TestAggregate(t *testing.T) {
	samples := []SampleCounts{
		{Sample: "s1", Transcripts: []TranscriptCount{
			{Accession: "tx1", Count: 10.2},
			{Accession: "tx2", Count: 5.3},
			{Accession: "tx3", Count: 7.0},
		}},
		{Sample: "s2", Transcripts: []TranscriptCount{
			{Accession: "tx1", Count: 1.0},
		}},
	}

	m, err := New().Aggregate(samples, testTx2Gene)
	require.NoError(t, err)

	assert.Equal(t, []string{"ENSG01 GENE1", "ENSG02 GENE2"}, m.Genes())
	assert.Equal(t, []string{"s1", "s2"}, m.Samples())

	// 10.2+5.3 = 15.5 rounds to 16.
	assert.Equal(t, int64(16), m.Count(0, 0))
	assert.Equal(t, int64(7), m.Count(1, 0))

	// Dense zeros for genes with no transcripts in a sample.
	assert.Equal(t, int64(0), m.Count(1, 1))
}

func TestAggregate_OrderInvariant(t *testing.T) {
	forward := []SampleCounts{
		{Sample: "s1", Transcripts: []TranscriptCount{
			{Accession: "tx1", Count: 3},
			{Accession: "tx3", Count: 4},
		}},
	}
	reversed := []SampleCounts{
		{Sample: "s1", Transcripts: []TranscriptCount{
			{Accession: "tx3", Count: 4},
			{Accession: "tx1", Count: 3},
		}},
	}

	a, err := New().Aggregate(forward, testTx2Gene)
	require.NoError(t, err)
	b, err := New().Aggregate(reversed, testTx2Gene)
	require.NoError(t, err)

	assert.Equal(t, a.Genes(), b.Genes())
	for i := range a.Genes() {
		assert.Equal(t, a.Count(i, 0), b.Count(i, 0))
	}
}

func TestAggregate_UnmappedDropped(t *testing.T) {
	samples := []SampleCounts{
		{Sample: "s1", Transcripts: []TranscriptCount{
			{Accession: "tx1", Count: 3},
			{Accession: "novel-tx", Count: 99},
		}},
	}

	m, err := New().Aggregate(samples, testTx2Gene)
	require.NoError(t, err)

	assert.Equal(t, []string{"ENSG01 GENE1"}, m.Genes())
	assert.Equal(t, int64(3), m.Count(0, 0))
}

func TestReadAbundanceTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abundance.tsv")
	content := "target_id\tlength\teff_length\test_counts\ttpm\n" +
		"tx1\t1000\t800\t12.5\t3.2\n" +
		"tx2\t500\t300\t0\t0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	sc, err := ReadAbundanceTSV("s1", path)
	require.NoError(t, err)

	assert.Equal(t, "s1", sc.Sample)
	require.Len(t, sc.Transcripts, 2)
	assert.Equal(t, TranscriptCount{Accession: "tx1", Count: 12.5}, sc.Transcripts[0])
}

func TestReadAbundanceTSV_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abundance.tsv")
	require.NoError(t, os.WriteFile(path, []byte("id\tcount\ntx1\t1\n"), 0644))

	_, err := ReadAbundanceTSV("s1", path)
	assert.ErrorContains(t, err, "missing")
}

func TestReadTx2Gene(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tx2gene.tsv")
	content := "tx1\tENSG01\tGENE1\ntx2\tENSG02\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t2g, err := ReadTx2Gene(path)
	require.NoError(t, err)
	assert.Equal(t, "ENSG01 GENE1", t2g["tx1"])
	assert.Equal(t, "ENSG02", t2g["tx2"])
}
