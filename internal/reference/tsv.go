package reference

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// TSVLoader reads reference entries from a tab-delimited file with the
// columns id, symbol, chromosome. Lines starting with # are ignored.
type TSVLoader struct {
	Path string
}

// NewTSVLoader creates a loader for the given file.
func NewTSVLoader(path string) *TSVLoader {
	return &TSVLoader{Path: path}
}

// Load implements Loader.
func (l *TSVLoader) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	return ParseTSV(f)
}

// ParseTSV parses reference entries from r.
func ParseTSV(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("reference line %d: expected 3 columns, found %d", lineNumber, len(fields))
		}

		entries = append(entries, Entry{
			ID:         strings.TrimSpace(fields[0]),
			Symbol:     strings.TrimSpace(fields[1]),
			Chromosome: strings.TrimSpace(fields[2]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reference file: %w", err)
	}

	return entries, nil
}
