// Package store persists result tables to DuckDB so downstream report
// tooling can query them without re-running the statistics.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding result tables.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS de_results (
			contrast VARCHAR,
			gene VARCHAR,
			base_mean DOUBLE,
			log2_fold_change DOUBLE,
			lfc_se DOUBLE,
			stat DOUBLE,
			pvalue DOUBLE,
			padj DOUBLE,
			outlier BOOLEAN,
			PRIMARY KEY (contrast, gene)
		)`,
		`CREATE TABLE IF NOT EXISTS enrichment_results (
			run VARCHAR,
			set_name VARCHAR,
			set_size INTEGER,
			effect_distance DOUBLE,
			score_sd DOUBLE,
			pvalue DOUBLE,
			padj DOUBLE,
			PRIMARY KEY (run, set_name)
		)`,
		`CREATE TABLE IF NOT EXISTS overlap_counts (
			run VARCHAR,
			combination VARCHAR,
			n INTEGER,
			PRIMARY KEY (run, combination)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
