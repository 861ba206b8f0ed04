package reconcile

import "fmt"

// Mode selects how the ledger classifies repeated identifiers.
type Mode string

const (
	// ModeCount flags an identifier as duplicated when it was staged more than once.
	ModeCount Mode = "count"
	// ModeParity reproduces the legacy membership-toggle behaviour: an
	// identifier is duplicated when it was staged an even number of times, so
	// three occurrences are treated like one.
	ModeParity Mode = "parity"
)

// ParseMode parses a duplicate detection mode. Empty selects ModeCount.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCount:
		return ModeCount, nil
	case ModeParity:
		return ModeParity, nil
	default:
		return "", fmt.Errorf("unknown duplicate mode %q (want %q or %q)", s, ModeCount, ModeParity)
	}
}

// Ledger counts staged occurrences per canonical identifier.
type Ledger struct {
	mode   Mode
	counts map[string]int
}

// NewLedger creates an empty ledger.
func NewLedger(mode Mode) *Ledger {
	if mode == "" {
		mode = ModeCount
	}
	return &Ledger{mode: mode, counts: make(map[string]int)}
}

// Mode returns the classification mode.
func (l *Ledger) Mode() Mode {
	return l.mode
}

// Add records one occurrence of id.
func (l *Ledger) Add(id string) {
	l.counts[id]++
}

// Count returns the number of occurrences recorded for id.
func (l *Ledger) Count(id string) int {
	return l.counts[id]
}

// IsDuplicate reports whether staged records for id belong in the
// multiple-coordinates report. Identifiers never added are not duplicates.
func (l *Ledger) IsDuplicate(id string) bool {
	n := l.counts[id]
	if n == 0 {
		return false
	}
	if l.mode == ModeParity {
		return n%2 == 0
	}
	return n > 1
}

// Duplicates returns the number of distinct identifiers classified as duplicated.
func (l *Ledger) Duplicates() int {
	n := 0
	for id := range l.counts {
		if l.IsDuplicate(id) {
			n++
		}
	}
	return n
}

// Len returns the number of distinct identifiers recorded.
func (l *Ledger) Len() int {
	return len(l.counts)
}
