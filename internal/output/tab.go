// Package output writes the coordinate files and discrepancy reports.
package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/mapviewload/internal/reconcile"
)

// tabWriter writes tab-delimited rows.
type tabWriter struct {
	w *bufio.Writer
}

func (tw *tabWriter) writeRow(values ...string) error {
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteHeader writes a report header block: title, description, a blank
// line, and the column names.
func (tw *tabWriter) WriteHeader(r Report) error {
	lines := append([]string{r.Title, ""}, r.Description...)
	lines = append(lines, "", strings.Join(r.Columns, "\t"))
	_, err := tw.w.WriteString(strings.Join(lines, "\n") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *tabWriter) Flush() error {
	return tw.w.Flush()
}

// CoordinateWriter writes identifier, chromosome, start, end, strand rows.
type CoordinateWriter struct {
	tabWriter
}

// NewCoordinateWriter creates a new coordinate writer.
func NewCoordinateWriter(w io.Writer) *CoordinateWriter {
	return &CoordinateWriter{tabWriter{w: bufio.NewWriter(w)}}
}

// WriteCoordinate writes a single coordinate row.
func (cw *CoordinateWriter) WriteCoordinate(c reconcile.Coordinate) error {
	return cw.writeRow(c.ID, c.Chromosome, c.Start, c.End, c.Strand)
}

// MismatchWriter writes identifier, observed, expected rows.
type MismatchWriter struct {
	tabWriter
}

// NewMismatchWriter creates a new mismatch report writer.
func NewMismatchWriter(w io.Writer) *MismatchWriter {
	return &MismatchWriter{tabWriter{w: bufio.NewWriter(w)}}
}

// WriteMismatch writes a single mismatch row.
func (mw *MismatchWriter) WriteMismatch(m reconcile.Mismatch) error {
	return mw.writeRow(m.ID, m.Observed, m.Expected)
}
