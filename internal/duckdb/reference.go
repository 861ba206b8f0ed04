package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/mapviewload/internal/reference"
)

// ImportReference replaces the cached reference table with entries using the
// Appender API. Duplicate identifiers keep the last entry.
func (s *Store) ImportReference(ctx context.Context, entries []reference.Entry) (int, error) {
	index := make(map[string]int, len(entries))
	deduped := make([]reference.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.ID]; ok {
			deduped[i] = e
			continue
		}
		index[e.ID] = len(deduped)
		deduped = append(deduped, e)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM reference_genes"); err != nil {
		return 0, fmt.Errorf("clear reference genes: %w", err)
	}
	if len(deduped) == 0 {
		return 0, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "reference_genes")
		return err
	}); err != nil {
		return 0, fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, e := range deduped {
		if err := appender.AppendRow(e.ID, e.Symbol, e.Chromosome); err != nil {
			return 0, fmt.Errorf("append reference gene: %w", err)
		}
	}

	if err := appender.Flush(); err != nil {
		return 0, fmt.Errorf("flush reference genes: %w", err)
	}
	return len(deduped), nil
}

// Load implements reference.Loader.
func (s *Store) Load(ctx context.Context) ([]reference.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT gene_id, symbol, chromosome FROM reference_genes ORDER BY gene_id")
	if err != nil {
		return nil, fmt.Errorf("query reference genes: %w", err)
	}
	defer rows.Close()

	var entries []reference.Entry
	for rows.Next() {
		var e reference.Entry
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Chromosome); err != nil {
			return nil, fmt.Errorf("scan reference gene: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference genes: %w", err)
	}
	return entries, nil
}

// LookupGene returns the cached entry for a single identifier.
func (s *Store) LookupGene(ctx context.Context, id string) (reference.Entry, bool, error) {
	var e reference.Entry
	err := s.db.QueryRowContext(ctx,
		"SELECT gene_id, symbol, chromosome FROM reference_genes WHERE gene_id = ?", id).
		Scan(&e.ID, &e.Symbol, &e.Chromosome)
	if errors.Is(err, sql.ErrNoRows) {
		return reference.Entry{}, false, nil
	}
	if err != nil {
		return reference.Entry{}, false, fmt.Errorf("lookup reference gene: %w", err)
	}
	return e, true, nil
}

// ReferenceCount returns the number of cached reference entries.
func (s *Store) ReferenceCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reference_genes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count reference genes: %w", err)
	}
	return n, nil
}
