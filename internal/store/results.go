package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/markziemann/maryam-rnaseq/internal/dge"
	"github.com/markziemann/maryam-rnaseq/internal/enrich"
)

// WriteDEResults batch-inserts one contrast's gene table using the
// Appender API, replacing any previous rows for the same contrast so a
// re-run never leaves a mixed table behind.
func (s *Store) WriteDEResults(res *dge.Result) error {
	if _, err := s.db.Exec("DELETE FROM de_results WHERE contrast = ?", res.Contrast); err != nil {
		return fmt.Errorf("clear previous de rows: %w", err)
	}

	appender, closeFn, err := s.appender("de_results")
	if err != nil {
		return err
	}
	defer closeFn()

	for _, row := range res.Rows {
		if err := appender.AppendRow(
			res.Contrast, row.Gene, row.BaseMean,
			row.Log2FoldChange, row.LfcSE, row.Stat,
			row.PValue, row.PAdj, row.Outlier,
		); err != nil {
			return fmt.Errorf("append de row: %w", err)
		}
	}

	return appender.Flush()
}

// WriteEnrichmentResults batch-inserts one enrichment run's set table.
func (s *Store) WriteEnrichmentResults(run string, scores []enrich.SetScore) error {
	if _, err := s.db.Exec("DELETE FROM enrichment_results WHERE run = ?", run); err != nil {
		return fmt.Errorf("clear previous enrichment rows: %w", err)
	}

	appender, closeFn, err := s.appender("enrichment_results")
	if err != nil {
		return err
	}
	defer closeFn()

	for _, sc := range scores {
		if err := appender.AppendRow(
			run, sc.Set, int32(sc.Size),
			sc.EffectDist, sc.ScoreSD, sc.PValue, sc.PAdj,
		); err != nil {
			return fmt.Errorf("append enrichment row: %w", err)
		}
	}

	return appender.Flush()
}

// WriteOverlapCounts batch-inserts one run's region cardinalities.
func (s *Store) WriteOverlapCounts(run string, counts map[string]int) error {
	if _, err := s.db.Exec("DELETE FROM overlap_counts WHERE run = ?", run); err != nil {
		return fmt.Errorf("clear previous overlap rows: %w", err)
	}

	appender, closeFn, err := s.appender("overlap_counts")
	if err != nil {
		return err
	}
	defer closeFn()

	for combination, n := range counts {
		if err := appender.AppendRow(run, combination, int32(n)); err != nil {
			return fmt.Errorf("append overlap row: %w", err)
		}
	}

	return appender.Flush()
}

// TopDEGenes returns the most significant genes of a contrast, ascending by
// raw p-value, up to limit rows.
func (s *Store) TopDEGenes(contrast string, limit int) ([]dge.DEResult, error) {
	rows, err := s.db.Query(`SELECT
		gene, base_mean, log2_fold_change, lfc_se, stat, pvalue, padj, outlier
		FROM de_results
		WHERE contrast = ?
		ORDER BY pvalue ASC NULLS LAST
		LIMIT ?`, contrast, limit)
	if err != nil {
		return nil, fmt.Errorf("query de results: %w", err)
	}
	defer rows.Close()

	var out []dge.DEResult
	for rows.Next() {
		var r dge.DEResult
		if err := rows.Scan(&r.Gene, &r.BaseMean, &r.Log2FoldChange, &r.LfcSE,
			&r.Stat, &r.PValue, &r.PAdj, &r.Outlier); err != nil {
			return nil, fmt.Errorf("scan de row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// appender opens a DuckDB appender on one table via the raw driver
// connection.
func (s *Store) appender(table string) (*goduckdb.Appender, func(), error) {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("get connection: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create appender: %w", err)
	}

	closeFn := func() {
		appender.Close()
		conn.Close()
	}
	return appender, closeFn, nil
}
