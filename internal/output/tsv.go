// Package output provides tab-delimited formatters for result tables.
package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/enrich"
	"github.com/markziemann/maryam-rnaseq/internal/matrix"
	"github.com/markziemann/maryam-rnaseq/internal/overlap"
)

// Missing statistics are written as NA, the convention downstream plotting
// tools expect.
const naCell = "NA"

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return naCell
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// WriteDETable writes one contrast's gene table sorted by ascending raw
// p-value.
func WriteDETable(w io.Writer, res *dge.Result) error {
	bw := bufio.NewWriter(w)
	columns := []string{"gene", "baseMean", "log2FoldChange", "lfcSE", "stat", "pvalue", "padj"}
	if _, err := bw.WriteString(strings.Join(columns, "\t") + "\n"); err != nil {
		return err
	}

	for _, row := range res.SortedRows() {
		fields := []string{
			row.Gene,
			formatFloat(row.BaseMean),
			formatFloat(row.Log2FoldChange),
			formatFloat(row.LfcSE),
			formatFloat(row.Stat),
			formatFloat(row.PValue),
			formatFloat(row.PAdj),
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteVSTMatrix writes the variance-stabilized expression matrix of one
// contrast, genes in table order, one column per contrast sample.
func WriteVSTMatrix(w io.Writer, res *dge.Result) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("gene\t" + strings.Join(res.Samples, "\t") + "\n"); err != nil {
		return err
	}

	for i, row := range res.Rows {
		fields := make([]string, 0, len(res.Samples)+1)
		fields = append(fields, row.Gene)
		for _, v := range res.VST[i] {
			fields = append(fields, formatFloat(v))
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteEnrichmentTable writes set scores sorted as the engine emitted them
// (adjusted p-value ascending), one score column per contrast dimension.
func WriteEnrichmentTable(w io.Writer, contrasts []string, scores []enrich.SetScore) error {
	bw := bufio.NewWriter(w)
	columns := []string{"set", "setSize"}
	for _, c := range contrasts {
		columns = append(columns, "s."+c)
	}
	columns = append(columns, "effectDist", "scoreSD", "pvalue", "padj")
	if _, err := bw.WriteString(strings.Join(columns, "\t") + "\n"); err != nil {
		return err
	}

	for _, s := range scores {
		fields := []string{s.Set, strconv.Itoa(s.Size)}
		for _, v := range s.Scores {
			fields = append(fields, formatFloat(v))
		}
		fields = append(fields,
			formatFloat(s.EffectDist),
			formatFloat(s.ScoreSD),
			formatFloat(s.PValue),
			formatFloat(s.PAdj),
		)
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// WriteOverlapCounts writes region cardinalities keyed by label
// combination, smallest combinations first.
func WriteOverlapCounts(w io.Writer, counts map[string]int) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("combination\tn\n"); err != nil {
		return err
	}
	for _, key := range overlap.SortedKeys(counts) {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", key, counts[key]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCountMatrix writes a count matrix as a Geneid-headed TSV, the format
// ReadCountMatrixTSV accepts back.
func WriteCountMatrix(w io.Writer, m *matrix.CountMatrix) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("Geneid\t" + strings.Join(m.Samples(), "\t") + "\n"); err != nil {
		return err
	}
	for i := 0; i < m.NGenes(); i++ {
		fields := make([]string, 0, m.NSamples()+1)
		fields = append(fields, m.Gene(i))
		for j := 0; j < m.NSamples(); j++ {
			fields = append(fields, strconv.FormatInt(m.Count(i, j), 10))
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
