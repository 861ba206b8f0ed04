package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/mapviewload/internal/mapview"
	"github.com/inodb/mapviewload/internal/reference"
)

// RecordSource yields mapview records. Next returns nil, nil at end of input.
type RecordSource interface {
	Next() (*mapview.Record, error)
}

// CoordinateWriter receives coordinate rows.
type CoordinateWriter interface {
	WriteCoordinate(c Coordinate) error
	Flush() error
}

// MismatchWriter receives discrepancy report rows.
type MismatchWriter interface {
	WriteMismatch(m Mismatch) error
	Flush() error
}

// Writers groups the five output destinations of a run.
type Writers struct {
	Final        CoordinateWriter
	Staging      CoordinateWriter
	Multiple     CoordinateWriter
	Chromosome   MismatchWriter
	Nomenclature MismatchWriter
}

func (w Writers) validate() error {
	if w.Final == nil || w.Staging == nil || w.Multiple == nil ||
		w.Chromosome == nil || w.Nomenclature == nil {
		return errors.New("reconcile: all five writers are required")
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Records            int // records read from the source
	DroppedFeatureType int
	DroppedAssembly    int
	DroppedUnknownID   int
	ChromosomeMismatch int
	NomenMismatch      int
	Staged             int // records written to staging
	Final              int // records written to the final coordinate file
	Multiple           int // staged records routed to the multiple-coordinates report
	DuplicateIDs       int // distinct identifiers with multiple coordinates
}

// Fields returns the stats as structured log fields.
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("records", s.Records),
		zap.Int("dropped_feature_type", s.DroppedFeatureType),
		zap.Int("dropped_assembly", s.DroppedAssembly),
		zap.Int("dropped_unknown_id", s.DroppedUnknownID),
		zap.Int("chromosome_mismatch", s.ChromosomeMismatch),
		zap.Int("nomenclature_mismatch", s.NomenMismatch),
		zap.Int("staged", s.Staged),
		zap.Int("final", s.Final),
		zap.Int("multiple", s.Multiple),
		zap.Int("duplicate_ids", s.DuplicateIDs),
	}
}

// Engine runs the two-phase reconciliation: every record is filtered and
// survivors are staged, then staged records are split into final
// coordinates and multiple-coordinate rows once all occurrences are known.
type Engine struct {
	filter *Filter
	mode   Mode
	out    Writers
	logger *zap.Logger
}

// NewEngine creates an engine over the reference map and writers.
func NewEngine(ref *reference.Map, out Writers, mode Mode) *Engine {
	return &Engine{
		filter: NewFilter(ref),
		mode:   mode,
		out:    out,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and debug messages.
func (e *Engine) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Run drains src and writes every output. Writers are flushed but not closed.
func (e *Engine) Run(ctx context.Context, src RecordSource) (Stats, error) {
	var stats Stats
	if err := e.out.validate(); err != nil {
		return stats, err
	}

	ledger := NewLedger(e.mode)
	staged, err := e.stage(ctx, src, ledger, &stats)
	if err != nil {
		return stats, err
	}

	// Staging must be complete before any record is classified.
	if err := e.out.Staging.Flush(); err != nil {
		return stats, fmt.Errorf("flush staging coordinates: %w", err)
	}
	e.logger.Debug("staging complete",
		zap.Int("staged", len(staged)),
		zap.Int("distinct_ids", ledger.Len()))

	if err := e.resolve(staged, ledger, &stats); err != nil {
		return stats, err
	}
	stats.DuplicateIDs = ledger.Duplicates()

	flushers := []struct {
		name string
		w    interface{ Flush() error }
	}{
		{"final coordinates", e.out.Final},
		{"multiple coordinates", e.out.Multiple},
		{"chromosome mismatches", e.out.Chromosome},
		{"nomenclature mismatches", e.out.Nomenclature},
	}
	for _, f := range flushers {
		if err := f.w.Flush(); err != nil {
			return stats, fmt.Errorf("flush %s: %w", f.name, err)
		}
	}

	return stats, nil
}

// stage runs the record filter over the whole source and returns the
// surviving coordinates in input order.
func (e *Engine) stage(ctx context.Context, src RecordSource, ledger *Ledger, stats *Stats) ([]Coordinate, error) {
	var staged []Coordinate

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("read mapview record: %w", err)
		}
		if r == nil {
			return staged, nil
		}
		stats.Records++

		res := e.filter.Apply(r)
		switch res.Outcome {
		case DroppedFeatureType:
			stats.DroppedFeatureType++
			continue
		case DroppedAssembly:
			stats.DroppedAssembly++
			continue
		case DroppedUnknownID:
			stats.DroppedUnknownID++
			continue
		case ChromosomeMismatch:
			stats.ChromosomeMismatch++
			if err := e.out.Chromosome.WriteMismatch(*res.Chromosome); err != nil {
				return nil, fmt.Errorf("write chromosome mismatch: %w", err)
			}
			continue
		}

		if res.Nomenclature != nil {
			stats.NomenMismatch++
			if err := e.out.Nomenclature.WriteMismatch(*res.Nomenclature); err != nil {
				return nil, fmt.Errorf("write nomenclature mismatch: %w", err)
			}
		}

		if err := e.out.Staging.WriteCoordinate(res.Coordinate); err != nil {
			return nil, fmt.Errorf("write staging coordinate: %w", err)
		}
		stats.Staged++
		staged = append(staged, res.Coordinate)
		ledger.Add(res.ID)
	}
}

// resolve routes every staged coordinate to the final or multiple-coordinates output.
func (e *Engine) resolve(staged []Coordinate, ledger *Ledger, stats *Stats) error {
	for _, c := range staged {
		if ledger.IsDuplicate(c.ID) {
			if err := e.out.Multiple.WriteCoordinate(c); err != nil {
				return fmt.Errorf("write multiple coordinates: %w", err)
			}
			stats.Multiple++
			continue
		}
		if err := e.out.Final.WriteCoordinate(c); err != nil {
			return fmt.Errorf("write final coordinate: %w", err)
		}
		stats.Final++
	}
	return nil
}
