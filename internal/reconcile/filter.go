// Package reconcile cross-checks mapview gene features against the reference
// gene table and resolves genes with more than one coordinate span.
package reconcile

import (
	"github.com/inodb/mapviewload/internal/mapview"
	"github.com/inodb/mapviewload/internal/reference"
)

// Coordinate is one row of the coordinate outputs.
type Coordinate struct {
	ID         string
	Chromosome string
	Start      string
	End        string
	Strand     string
}

// Mismatch is one row of a discrepancy report: the value found in the
// mapview record and the value expected by the reference.
type Mismatch struct {
	ID       string
	Observed string
	Expected string
}

// Outcome is the filter decision for a single record.
type Outcome int

const (
	Accepted Outcome = iota
	DroppedFeatureType
	DroppedAssembly
	DroppedUnknownID
	ChromosomeMismatch
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case DroppedFeatureType:
		return "dropped_feature_type"
	case DroppedAssembly:
		return "dropped_assembly"
	case DroppedUnknownID:
		return "dropped_unknown_id"
	case ChromosomeMismatch:
		return "chromosome_mismatch"
	default:
		return "unknown"
	}
}

// Result is the filter decision plus any report row it produced.
type Result struct {
	Outcome Outcome
	ID      string // canonical identifier; empty for feature type and assembly drops

	// Coordinate is set when Outcome is Accepted.
	Coordinate Coordinate
	// Chromosome is set when Outcome is ChromosomeMismatch.
	Chromosome *Mismatch
	// Nomenclature is a soft mismatch; the record is still accepted.
	Nomenclature *Mismatch
}

// Filter applies the per-record checks against a reference map.
type Filter struct {
	ref *reference.Map
}

// NewFilter creates a filter over the given reference map.
func NewFilter(ref *reference.Map) *Filter {
	return &Filter{ref: ref}
}

// Apply classifies a single record. Checks run in order: feature type,
// assembly label, reference membership, chromosome, symbol.
func (f *Filter) Apply(r *mapview.Record) Result {
	if !r.IsGene() {
		return Result{Outcome: DroppedFeatureType}
	}
	if !r.IsPrimaryAssembly() {
		return Result{Outcome: DroppedAssembly}
	}

	id := r.CanonicalID()
	ref, ok := f.ref.Lookup(id)
	if !ok {
		return Result{Outcome: DroppedUnknownID, ID: id}
	}

	if r.Chromosome != ref.Chromosome {
		return Result{
			Outcome:    ChromosomeMismatch,
			ID:         id,
			Chromosome: &Mismatch{ID: id, Observed: r.Chromosome, Expected: ref.Chromosome},
		}
	}

	res := Result{
		Outcome: Accepted,
		ID:      id,
		Coordinate: Coordinate{
			ID:         id,
			Chromosome: r.Chromosome,
			Start:      r.Start,
			End:        r.End,
			Strand:     r.Strand,
		},
	}
	if r.FeatureName != ref.Symbol {
		res.Nomenclature = &Mismatch{ID: id, Observed: r.FeatureName, Expected: ref.Symbol}
	}
	return res
}
