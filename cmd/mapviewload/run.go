package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/mapviewload/internal/config"
	"github.com/inodb/mapviewload/internal/database"
	"github.com/inodb/mapviewload/internal/duckdb"
	"github.com/inodb/mapviewload/internal/logger"
	"github.com/inodb/mapviewload/internal/mapview"
	"github.com/inodb/mapviewload/internal/output"
	"github.com/inodb/mapviewload/internal/reconcile"
	"github.com/inodb/mapviewload/internal/reference"
	"github.com/inodb/mapviewload/internal/storage"
)

// runFlagKeys maps config keys to run flags.
var runFlagKeys = map[string]string{
	"paths.mapview":         "input",
	"paths.coordinates":     "coords",
	"paths.staging":         "staging",
	"paths.chr_mismatch":    "chr-mismatch",
	"paths.nomen_mismatch":  "nomen-mismatch",
	"paths.multiple_coords": "multiple-coords",
	"reference.source":      "reference-source",
	"reference.path":        "reference",
	"duplicates.mode":       "duplicate-mode",
	"storage.enabled":       "publish",
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the coordinate file and discrepancy reports",
		Long: `Filter MapView gene features to the GRCh primary assembly, check each
against the reference gene table and write:

  coordinates        genes with exactly one coordinate span
  staging            every surviving feature before duplicate resolution
  chr mismatch       features whose chromosome differs from the reference
  nomen mismatch     features whose symbol differs from the reference (still loaded)
  multiple coords    every feature of a gene with more than one coordinate span

Every path may also be set through the environment variables of the original
load scripts (MAPVIEW_FILE, INPUT_COORD_FILE, MAPVIEWQC_ChrMisMatch, ...).`,
		Example: `  mapviewload run --input seq_gene.md.gz --reference reference.duckdb \
    --coords coords.txt --staging coords.staging.txt \
    --chr-mismatch chr.rpt --nomen-mismatch nomen.rpt --multiple-coords multiple.rpt

  MAPVIEW_FILE=seq_gene.md INPUT_COORD_FILE=coords.txt ... mapviewload run`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd, runFlagKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runLoad(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("input", "", "MapView seq_gene file, plain or gzipped ('-' for stdin)")
	f.String("coords", "", "Final coordinate file")
	f.String("staging", "", "Staging coordinate file")
	f.String("chr-mismatch", "", "Chromosome mismatch report")
	f.String("nomen-mismatch", "", "Nomenclature mismatch report")
	f.String("multiple-coords", "", "Multiple coordinates report")
	f.String("reference-source", "", "Reference source: tsv, duckdb, mgi")
	f.String("reference", "", "Reference TSV file or DuckDB database")
	f.String("duplicate-mode", "", "Duplicate detection: count or parity")
	f.Bool("publish", false, "Upload outputs to object storage after the run")

	return cmd
}

// runLoad executes one load and writes a summary to out.
func runLoad(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log, _ = logger.WithRunID(log)

	mode, err := reconcile.ParseMode(cfg.Duplicates.Mode)
	if err != nil {
		return err
	}

	parser, err := mapview.NewParser(cfg.Paths.Mapview)
	if err != nil {
		return err
	}
	defer parser.Close()

	ref, err := loadReference(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("reference loaded",
		zap.String("source", cfg.Reference.Source),
		zap.Int("genes", ref.Len()))
	if ref.Len() == 0 {
		log.Warn("reference table is empty; no features will be loaded")
	}

	paths := outputPaths(cfg.Paths)
	files, err := output.Create(paths)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := files.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close outputs: %w", cerr)
		}
	}()

	engine := reconcile.NewEngine(ref, files.Writers(), mode)
	engine.SetLogger(log)

	stats, err := engine.Run(ctx, parser)
	if err != nil {
		return err
	}
	if err := files.Close(); err != nil {
		return fmt.Errorf("close outputs: %w", err)
	}
	log.Info("load complete", append(stats.Fields(), zap.String("duplicate_mode", string(mode)))...)

	if cfg.Storage.Enabled {
		if err := publish(ctx, cfg.Storage, paths, log); err != nil {
			return err
		}
	}

	printSummary(out, stats)
	return nil
}

func outputPaths(p config.Paths) output.Paths {
	return output.Paths{
		Final:        p.Coordinates,
		Staging:      p.Staging,
		Chromosome:   p.ChrMismatch,
		Nomenclature: p.NomenMismatch,
		Multiple:     p.MultipleCoords,
	}
}

// loadReference builds the reference map from the configured source.
func loadReference(ctx context.Context, cfg *config.Config, log *zap.Logger) (*reference.Map, error) {
	switch cfg.Reference.Source {
	case config.SourceTSV:
		return reference.Build(ctx, reference.NewTSVLoader(cfg.Reference.Path))

	case config.SourceDuckDB:
		if _, err := os.Stat(cfg.Reference.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reference database %s not found (create it with: mapviewload reference import)", cfg.Reference.Path)
			}
			return nil, fmt.Errorf("stat reference database: %w", err)
		}
		store, err := duckdb.Open(cfg.Reference.Path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		info, ok, err := store.Source()
		switch {
		case err != nil:
			log.Debug("reference cache source unavailable", zap.Error(err))
		case ok:
			log.Debug("reference cache source",
				zap.String("path", info.File.Path),
				zap.Time("mod_time", info.File.ModTime),
				zap.Int64("entries", info.Entries))
		}
		return reference.Build(ctx, store)

	case config.SourceMGI:
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		defer database.Close(db)
		return reference.Build(ctx, reference.NewMGILoader(db))

	default:
		return nil, fmt.Errorf("unknown reference source %q", cfg.Reference.Source)
	}
}

func publish(ctx context.Context, cfg storage.Config, paths output.Paths, log *zap.Logger) error {
	client, err := storage.NewClient(cfg)
	if err != nil {
		return err
	}
	names, err := storage.Publish(ctx, client, cfg.Bucket, cfg.Prefix, paths.List())
	if err != nil {
		return fmt.Errorf("publish outputs: %w", err)
	}
	log.Info("outputs published", zap.String("bucket", cfg.Bucket), zap.Strings("objects", names))
	return nil
}

func printSummary(w io.Writer, s reconcile.Stats) {
	fmt.Fprintf(w, "Records read:            %d\n", s.Records)
	fmt.Fprintf(w, "  not a gene feature:    %d\n", s.DroppedFeatureType)
	fmt.Fprintf(w, "  not primary assembly:  %d\n", s.DroppedAssembly)
	fmt.Fprintf(w, "  not in reference:      %d\n", s.DroppedUnknownID)
	fmt.Fprintf(w, "Chromosome mismatches:   %d\n", s.ChromosomeMismatch)
	fmt.Fprintf(w, "Nomenclature mismatches: %d\n", s.NomenMismatch)
	fmt.Fprintf(w, "Staged coordinates:      %d\n", s.Staged)
	fmt.Fprintf(w, "Loaded coordinates:      %d\n", s.Final)
	fmt.Fprintf(w, "Multiple coordinates:    %d rows for %d genes\n", s.Multiple, s.DuplicateIDs)
}
