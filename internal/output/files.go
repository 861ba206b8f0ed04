package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/inodb/mapviewload/internal/reconcile"
)

// Paths names the five output destinations of a run.
type Paths struct {
	Final        string
	Staging      string
	Chromosome   string
	Nomenclature string
	Multiple     string
}

// List returns the paths in a fixed order.
func (p Paths) List() []string {
	return []string{p.Final, p.Staging, p.Chromosome, p.Nomenclature, p.Multiple}
}

// Files holds the open output files and their writers.
type Files struct {
	Final        *CoordinateWriter
	Staging      *CoordinateWriter
	Multiple     *CoordinateWriter
	Chromosome   *MismatchWriter
	Nomenclature *MismatchWriter

	open    []*os.File
	writers []labeledFlusher
}

type labeledFlusher struct {
	label string
	w     interface{ Flush() error }
}

// Create creates (truncating) every output file and writes the report
// headers. If any file cannot be created the files already opened are closed.
func Create(p Paths) (*Files, error) {
	f := &Files{}

	create := func(label, path string) (*os.File, error) {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s file: %w", label, err)
		}
		f.open = append(f.open, file)
		return file, nil
	}

	final, err := create("coordinate", p.Final)
	if err != nil {
		f.Close()
		return nil, err
	}
	staging, err := create("staging coordinate", p.Staging)
	if err != nil {
		f.Close()
		return nil, err
	}
	chr, err := create("chromosome mismatch", p.Chromosome)
	if err != nil {
		f.Close()
		return nil, err
	}
	nomen, err := create("nomenclature mismatch", p.Nomenclature)
	if err != nil {
		f.Close()
		return nil, err
	}
	multiple, err := create("multiple coordinates", p.Multiple)
	if err != nil {
		f.Close()
		return nil, err
	}

	f.Final = NewCoordinateWriter(final)
	f.Staging = NewCoordinateWriter(staging)
	f.Chromosome = NewMismatchWriter(chr)
	f.Nomenclature = NewMismatchWriter(nomen)
	f.Multiple = NewCoordinateWriter(multiple)
	f.writers = []labeledFlusher{
		{"coordinate", f.Final},
		{"staging coordinate", f.Staging},
		{"chromosome mismatch", f.Chromosome},
		{"nomenclature mismatch", f.Nomenclature},
		{"multiple coordinates", f.Multiple},
	}

	if err := f.writeHeaders(); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func (f *Files) writeHeaders() error {
	if err := f.Chromosome.WriteHeader(ChromosomeMismatchReport); err != nil {
		return fmt.Errorf("write chromosome mismatch header: %w", err)
	}
	if err := f.Nomenclature.WriteHeader(NomenclatureMismatchReport); err != nil {
		return fmt.Errorf("write nomenclature mismatch header: %w", err)
	}
	if err := f.Multiple.WriteHeader(MultipleCoordinatesReport); err != nil {
		return fmt.Errorf("write multiple coordinates header: %w", err)
	}
	return nil
}

// Writers returns the writers as reconciliation sinks.
func (f *Files) Writers() reconcile.Writers {
	return reconcile.Writers{
		Final:        f.Final,
		Staging:      f.Staging,
		Multiple:     f.Multiple,
		Chromosome:   f.Chromosome,
		Nomenclature: f.Nomenclature,
	}
}

// Close flushes every writer and closes every open file.
func (f *Files) Close() error {
	var errs []error
	for _, fl := range f.writers {
		if err := fl.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s file: %w", fl.label, err))
		}
	}
	for _, file := range f.open {
		if err := file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", file.Name(), err))
		}
	}
	f.open = nil
	f.writers = nil
	return errors.Join(errs...)
}
