package output

// Report describes the header block of a discrepancy report.
// Headers carry no run-specific data so identical inputs give identical files.
type Report struct {
	Title       string
	Description []string
	Columns     []string
}

// ChromosomeMismatchReport lists genes whose mapview chromosome differs from the reference.
var ChromosomeMismatchReport = Report{
	Title: "Mapview Chromosome Mismatch Report",
	Description: []string{
		"Mapview gene features whose chromosome does not match the reference chromosome.",
		"These features are not loaded.",
	},
	Columns: []string{"Gene ID", "Mapview Chromosome", "Reference Chromosome"},
}

// NomenclatureMismatchReport lists genes whose mapview symbol differs from the reference.
var NomenclatureMismatchReport = Report{
	Title: "Mapview Nomenclature Mismatch Report",
	Description: []string{
		"Mapview gene features whose symbol does not match the reference symbol.",
		"These features are still loaded.",
	},
	Columns: []string{"Gene ID", "Mapview Symbol", "Reference Symbol"},
}

// MultipleCoordinatesReport lists every staged row of a gene with more than one coordinate span.
var MultipleCoordinatesReport = Report{
	Title: "Mapview Multiple Coordinates Report",
	Description: []string{
		"Genes with more than one mapview coordinate on the primary assembly.",
		"None of these coordinates are loaded.",
	},
	Columns: []string{"Gene ID", "Chromosome", "Start", "End", "Strand"},
}
