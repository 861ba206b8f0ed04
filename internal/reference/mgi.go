package reference

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// MGI database keys selecting official human markers with Entrez Gene IDs.
const (
	OrganismHuman        = 2
	MarkerStatusOfficial = 1
	MGITypeMarker        = 2
	LogicalDBEntrez      = 55
)

const mgiHumanMarkerQuery = `SELECT a.accID, m.symbol, m.chromosome
FROM MRK_Marker m, ACC_Accession a
WHERE m._Organism_key = ?
AND m._Marker_Status_key = ?
AND m._Marker_key = a._Object_key
AND a._MGIType_key = ?
AND a._LogicalDB_key = ?`

type mgiMarker struct {
	AccID      string `gorm:"column:accID"`
	Symbol     string `gorm:"column:symbol"`
	Chromosome string `gorm:"column:chromosome"`
}

// MGILoader loads official human gene markers from an MGI database.
type MGILoader struct {
	db *gorm.DB
}

// NewMGILoader creates a loader over an open gorm connection.
func NewMGILoader(db *gorm.DB) *MGILoader {
	return &MGILoader{db: db}
}

// Load implements Loader.
func (l *MGILoader) Load(ctx context.Context) ([]Entry, error) {
	var rows []mgiMarker
	err := l.db.WithContext(ctx).
		Raw(mgiHumanMarkerQuery, OrganismHuman, MarkerStatusOfficial, MGITypeMarker, LogicalDBEntrez).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query mgi human markers: %w", err)
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{ID: r.AccID, Symbol: r.Symbol, Chromosome: r.Chromosome}
	}
	return entries, nil
}
