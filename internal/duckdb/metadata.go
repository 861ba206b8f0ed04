package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// SourceInfo describes where the cached reference entries came from.
type SourceInfo struct {
	File    FileFingerprint
	Entries int64
}

// RecordSource replaces the stored source description.
func (s *Store) RecordSource(fp FileFingerprint, entries int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM reference_source"); err != nil {
		return fmt.Errorf("clear reference source: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO reference_source VALUES (?, ?, ?, ?)",
		fp.Path, fp.Size, fp.ModTime.UTC(), entries); err != nil {
		return fmt.Errorf("insert reference source: %w", err)
	}
	return tx.Commit()
}

// Source returns the stored source description. ok is false when nothing has
// been imported yet.
func (s *Store) Source() (info SourceInfo, ok bool, err error) {
	row := s.db.QueryRow("SELECT path, size, mod_time, entries FROM reference_source LIMIT 1")
	err = row.Scan(&info.File.Path, &info.File.Size, &info.File.ModTime, &info.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return SourceInfo{}, false, nil
	}
	if err != nil {
		return SourceInfo{}, false, fmt.Errorf("query reference source: %w", err)
	}
	return info, true, nil
}
