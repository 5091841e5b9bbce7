package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGMT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sets.gmt")
	content := "pathwayA\thttp://example.org/a\tg1\tg2\tg3\tg2\n" +
		"pathwayB\tdesc\tg1\tg2\n" +
		"pathwayC\t\tg4\tg5\tg6\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	sets, err := ReadGMT(path, 3)
	require.NoError(t, err)

	// pathwayA deduplicates to 3 members, pathwayB falls below the size
	// filter.
	assert.Equal(t, []string{"g1", "g2", "g3"}, sets["pathwayA"])
	assert.NotContains(t, sets, "pathwayB")
	assert.Equal(t, []string{"g4", "g5", "g6"}, sets["pathwayC"])
}

func TestReadGMT_TooFewFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gmt")
	require.NoError(t, os.WriteFile(path, []byte("justname\tdesc\n"), 0644))

	_, err := ReadGMT(path, 1)
	assert.ErrorContains(t, err, "want name, description and members")
}
