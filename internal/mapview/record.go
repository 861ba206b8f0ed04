// Package mapview provides parsing of NCBI MapView seq_gene feature files.
package mapview

import (
	"fmt"
	"strings"
)

// Column positions (0-based) in a seq_gene record.
const (
	ColTaxID       = 0
	ColChromosome  = 1
	ColStart       = 2
	ColEnd         = 3
	ColStrand      = 4
	ColFeatureName = 9
	ColFeatureID   = 10
	ColFeatureType = 11
	ColGroupLabel  = 12

	// MinColumns is the minimum number of tab-delimited fields per record.
	MinColumns = 13
)

// GeneIDPrefix precedes Entrez Gene identifiers in the feature_id column.
const GeneIDPrefix = "GeneID:"

// Filter tokens.
const (
	GeneFeatureType = "GENE"
	AssemblyToken   = "GRCh"
	PrimaryToken    = "Primary Assembly"
)

// Record is a single feature line from a seq_gene file.
// Coordinates and strand are kept as the raw strings from the file.
type Record struct {
	TaxID       string
	Chromosome  string
	Start       string
	End         string
	Strand      string // "+", "-" or empty
	FeatureName string // symbol as given by NCBI
	FeatureID   string // e.g. GeneID:1017
	FeatureType string
	GroupLabel  string // e.g. GRCh38.p1-Primary Assembly
}

// CanonicalID returns the feature identifier with any leading "GeneID:" removed.
func (r *Record) CanonicalID() string {
	return strings.TrimPrefix(r.FeatureID, GeneIDPrefix)
}

// IsGene reports whether the feature type marks a gene feature.
func (r *Record) IsGene() bool {
	return strings.Contains(r.FeatureType, GeneFeatureType)
}

// IsPrimaryAssembly reports whether the group label names a GRCh primary assembly,
// independent of the build version (GRCh37.p2, GRCh38.p1, ...).
func (r *Record) IsPrimaryAssembly() bool {
	return strings.Contains(r.GroupLabel, AssemblyToken) &&
		strings.Contains(r.GroupLabel, PrimaryToken)
}

// ParseLine parses a single tab-delimited seq_gene line.
// The line must already have its line terminator removed.
func ParseLine(line string, lineNumber int) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < MinColumns {
		return nil, &ParseError{
			Line:    lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", MinColumns, len(fields)),
		}
	}

	return &Record{
		TaxID:       fields[ColTaxID],
		Chromosome:  fields[ColChromosome],
		Start:       fields[ColStart],
		End:         fields[ColEnd],
		Strand:      fields[ColStrand],
		FeatureName: fields[ColFeatureName],
		FeatureID:   fields[ColFeatureID],
		FeatureType: fields[ColFeatureType],
		GroupLabel:  fields[ColGroupLabel],
	}, nil
}

// ParseError represents an error during seq_gene parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mapview parse error at line %d: %s", e.Line, e.Message)
}
