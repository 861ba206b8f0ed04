package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/mapviewload/internal/config"
	"github.com/inodb/mapviewload/internal/database"
	"github.com/inodb/mapviewload/internal/duckdb"
	"github.com/inodb/mapviewload/internal/reference"
)

func newReferenceCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage the DuckDB reference gene cache",
		Long: `The reference cache is a DuckDB database at reference.path (MAPVIEW_REFERENCE)
holding gene ID, symbol and chromosome for every official human gene. Fill it
from a tab-delimited export or directly from an MGI database, then run loads
with reference.source=duckdb.`,
	}

	cmd.AddCommand(newReferenceImportCmd(v))
	cmd.AddCommand(newReferenceCountCmd(v))
	cmd.AddCommand(newReferenceLookupCmd(v))

	return cmd
}

func newReferenceImportCmd(v *viper.Viper) *cobra.Command {
	var fromMGI bool

	cmd := &cobra.Command{
		Use:   "import [genes.tsv]",
		Short: "Replace the reference cache contents",
		Example: `  mapviewload reference import genes.tsv --reference genes.duckdb
  mapviewload reference import --from-mgi --reference genes.duckdb`,
		Args: func(cmd *cobra.Command, args []string) error {
			if fromMGI {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if cfg.Reference.Path == "" {
				return &config.MissingError{Fields: []string{config.EnvName("reference.path")}}
			}

			var (
				loader reference.Loader
				fp     duckdb.FileFingerprint
			)
			if fromMGI {
				db, err := database.Connect(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer database.Close(db)
				loader = reference.NewMGILoader(db)
				fp = duckdb.FileFingerprint{
					Path:    fmt.Sprintf("mgi://%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name),
					ModTime: time.Now().UTC(),
				}
			} else {
				loader = reference.NewTSVLoader(args[0])
				if fp, err = duckdb.StatFile(args[0]); err != nil {
					return fmt.Errorf("stat reference file: %w", err)
				}
			}

			return importReference(cmd.Context(), cmd.OutOrStdout(), cfg.Reference.Path, loader, fp)
		},
	}

	cmd.Flags().BoolVar(&fromMGI, "from-mgi", false, "Query the MGI database (database.*) instead of reading a file")
	addReferencePathFlag(cmd, v)

	return cmd
}

func importReference(ctx context.Context, w io.Writer, path string, loader reference.Loader, fp duckdb.FileFingerprint) error {
	entries, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	store, err := duckdb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ImportReference(ctx, entries)
	if err != nil {
		return err
	}
	if err := store.RecordSource(fp, int64(n)); err != nil {
		return err
	}

	fmt.Fprintf(w, "Imported %d reference genes into %s\n", n, path)
	return nil
}

func newReferenceCountCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show how many genes the reference cache holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReferenceStore(v)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ReferenceCount(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%d reference genes in %s\n", n, store.Path())

			info, ok, err := store.Source()
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(w, "Imported from %s (%s, modified %s)\n",
					info.File.Path, formatSize(info.File.Size), info.File.ModTime.Format(time.RFC3339))
			}
			return nil
		},
	}
	addReferencePathFlag(cmd, v)
	return cmd
}

func newReferenceLookupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <gene-id>",
		Short: "Print the cached entry for a gene ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReferenceStore(v)
			if err != nil {
				return err
			}
			defer store.Close()

			e, ok, err := store.LookupGene(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("gene %s not in reference", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.ID, e.Symbol, e.Chromosome)
			return nil
		},
	}
	addReferencePathFlag(cmd, v)
	return cmd
}

func addReferencePathFlag(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().String("reference", "", "Reference DuckDB database")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(v, cmd, map[string]string{"reference.path": "reference"})
	}
}

func openReferenceStore(v *viper.Viper) (*duckdb.Store, error) {
	path := v.GetString("reference.path")
	if path == "" {
		return nil, &config.MissingError{Fields: []string{config.EnvName("reference.path")}}
	}
	if _, err := duckdb.StatFile(path); err != nil {
		return nil, fmt.Errorf("reference database %s: %w", path, err)
	}
	return duckdb.Open(path)
}
