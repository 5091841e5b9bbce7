package output

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// DETable is a previously written DE table read back for enrichment or
// overlap reporting: gene-keyed statistics, no fit internals.
type DETable struct {
	Name    string
	Effects map[string]float64 // gene -> log2 fold-change, NaN rows dropped
	PAdj    map[string]float64
}

// ReadDETable reads a table written by WriteDETable. name labels the
// contrast in downstream outputs.
func ReadDETable(name, path string) (*DETable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open de table: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read de table header: %w", err)
		}
		return nil, fmt.Errorf("de table %s is empty", path)
	}

	header := strings.Split(sc.Text(), "\t")
	geneCol, lfcCol, padjCol := -1, -1, -1
	for i, col := range header {
		switch col {
		case "gene":
			geneCol = i
		case "log2FoldChange":
			lfcCol = i
		case "padj":
			padjCol = i
		}
	}
	if geneCol < 0 || lfcCol < 0 {
		return nil, fmt.Errorf("de table %s: missing gene or log2FoldChange column", path)
	}

	t := &DETable{
		Name:    name,
		Effects: make(map[string]float64),
		PAdj:    make(map[string]float64),
	}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("de table %s line %d: %d columns, want %d", path, line, len(fields), len(header))
		}
		gene := fields[geneCol]
		if lfc, ok := parseCell(fields[lfcCol]); ok {
			t.Effects[gene] = lfc
		}
		if padjCol >= 0 {
			if padj, ok := parseCell(fields[padjCol]); ok {
				t.PAdj[gene] = padj
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read de table: %w", err)
	}

	return t, nil
}

// UpDown splits the table into up and down gene lists by adjusted p-value
// cutoff and fold-change sign.
func (t *DETable) UpDown(padjCutoff float64) (up, down []string) {
	for gene, padj := range t.PAdj {
		if padj >= padjCutoff {
			continue
		}
		lfc, ok := t.Effects[gene]
		if !ok || math.IsNaN(lfc) {
			continue
		}
		if lfc > 0 {
			up = append(up, gene)
		} else if lfc < 0 {
			down = append(down, gene)
		}
	}
	return up, down
}

func parseCell(s string) (float64, bool) {
	if s == naCell || s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
