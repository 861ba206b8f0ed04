package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/mapviewload/internal/config"
	"github.com/inodb/mapviewload/internal/duckdb"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", "", "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seqGeneLine(chr, start, end, strand, symbol, featureID, featureType, group string) string {
	return strings.Join([]string{
		"9606", chr, start, end, strand,
		"NT_000001.1", "1", "2", "+",
		symbol, featureID, featureType, group,
		"-", "-",
	}, "\t")
}

const primary = "GRCh38.p1-Primary Assembly"

func writeFixtures(t *testing.T) (dir, mapviewPath, referencePath string) {
	t.Helper()
	dir = t.TempDir()

	lines := []string{
		"#tax_id\tchromosome\tchr_start\tchr_stop\tchr_orient\tcontig\tctg_start\tctg_stop\tctg_orient\tfeature_name\tfeature_id\tfeature_type\tgroup_label\ttranscript\tevidence_code",
		seqGeneLine("12", "56360553", "56366568", "+", "CDK2", "GeneID:1017", "GENE", primary),
		seqGeneLine("17", "7661779", "7687538", "-", "TP53", "GeneID:7157", "GENE", primary),
		seqGeneLine("13", "43044295", "43125483", "-", "BRCA1", "GeneID:672", "GENE", primary),
		seqGeneLine("19", "58345178", "58353492", "-", "A1BG-old", "GeneID:1", "GENE", primary),
		seqGeneLine("17", "8000000", "8000100", "+", "TP53", "GeneID:7157", "GENE", primary),
		seqGeneLine("12", "56360553", "56366568", "+", "CDK2", "GeneID:1017", "RNA", primary),
		seqGeneLine("12", "50000000", "50006000", "+", "CDK2", "GeneID:1017", "GENE", "HuRef-Primary Assembly"),
		seqGeneLine("1", "100", "200", "+", "NOPE", "GeneID:555", "GENE", primary),
	}
	mapviewPath = filepath.Join(dir, "seq_gene.md")
	require.NoError(t, os.WriteFile(mapviewPath, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	referencePath = filepath.Join(dir, "genes.tsv")
	ref := "1017\tCDK2\t12\n7157\tTP53\t17\n672\tBRCA1\t17\n1\tA1BG\t19\n"
	require.NoError(t, os.WriteFile(referencePath, []byte(ref), 0644))

	return dir, mapviewPath, referencePath
}

func runArgs(dir, mapviewPath string) []string {
	return []string{
		"run",
		"--input", mapviewPath,
		"--coords", filepath.Join(dir, "coords.txt"),
		"--staging", filepath.Join(dir, "coords.staging.txt"),
		"--chr-mismatch", filepath.Join(dir, "chr.rpt"),
		"--nomen-mismatch", filepath.Join(dir, "nomen.rpt"),
		"--multiple-coords", filepath.Join(dir, "multiple.rpt"),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_TSVReference(t *testing.T) {
	dir, mapviewPath, referencePath := writeFixtures(t)

	args := append(runArgs(dir, mapviewPath), "--reference-source", "tsv", "--reference", referencePath)
	out, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "Records read:            8")
	assert.Contains(t, out, "Loaded coordinates:      2")
	assert.Contains(t, out, "Multiple coordinates:    2 rows for 1 genes")

	assert.Equal(t,
		"1017\t12\t56360553\t56366568\t+\n1\t19\t58345178\t58353492\t-\n",
		readFile(t, filepath.Join(dir, "coords.txt")))
	assert.Equal(t,
		"1017\t12\t56360553\t56366568\t+\n"+
			"7157\t17\t7661779\t7687538\t-\n"+
			"1\t19\t58345178\t58353492\t-\n"+
			"7157\t17\t8000000\t8000100\t+\n",
		readFile(t, filepath.Join(dir, "coords.staging.txt")))

	chr := readFile(t, filepath.Join(dir, "chr.rpt"))
	assert.Contains(t, chr, "672\t13\t17\n")
	assert.NotContains(t, chr, "1017\t")

	nomen := readFile(t, filepath.Join(dir, "nomen.rpt"))
	assert.Contains(t, nomen, "1\tA1BG-old\tA1BG\n")

	multiple := readFile(t, filepath.Join(dir, "multiple.rpt"))
	assert.Contains(t, multiple, "7157\t17\t7661779\t7687538\t-\n")
	assert.Contains(t, multiple, "7157\t17\t8000000\t8000100\t+\n")
	assert.NotContains(t, multiple, "1017\t")
}

func TestRun_RepeatableOutput(t *testing.T) {
	dir, mapviewPath, referencePath := writeFixtures(t)
	args := append(runArgs(dir, mapviewPath), "--reference-source", "tsv", "--reference", referencePath)

	_, err := execute(t, args...)
	require.NoError(t, err)
	names := []string{"coords.txt", "coords.staging.txt", "chr.rpt", "nomen.rpt", "multiple.rpt"}
	first := make(map[string]string)
	for _, n := range names {
		first[n] = readFile(t, filepath.Join(dir, n))
	}

	_, err = execute(t, args...)
	require.NoError(t, err)
	for _, n := range names {
		assert.Equal(t, first[n], readFile(t, filepath.Join(dir, n)), n)
	}
}

func TestRun_ParityMode(t *testing.T) {
	dir, mapviewPath, referencePath := writeFixtures(t)

	// A third TP53 span makes the count odd.
	f, err := os.OpenFile(mapviewPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(seqGeneLine("17", "9000000", "9000100", "+", "TP53", "GeneID:7157", "GENE", primary) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	args := append(runArgs(dir, mapviewPath),
		"--reference-source", "tsv", "--reference", referencePath, "--duplicate-mode", "parity")
	_, err = execute(t, args...)
	require.NoError(t, err)

	coords := readFile(t, filepath.Join(dir, "coords.txt"))
	assert.Equal(t, 3, strings.Count(coords, "7157\t"))
}

func TestRun_LegacyEnvironment(t *testing.T) {
	dir, mapviewPath, referencePath := writeFixtures(t)

	t.Setenv("MAPVIEW_FILE", mapviewPath)
	t.Setenv("INPUT_COORD_FILE", filepath.Join(dir, "coords.txt"))
	t.Setenv("INPUT_COORD_STAGING_FILE", filepath.Join(dir, "coords.staging.txt"))
	t.Setenv("MAPVIEWQC_ChrMisMatch", filepath.Join(dir, "chr.rpt"))
	t.Setenv("MAPVIEWQC_NomenMisMatch", filepath.Join(dir, "nomen.rpt"))
	t.Setenv("MAPVIEWQC_MultipleCoord", filepath.Join(dir, "multiple.rpt"))
	t.Setenv("MAPVIEW_REFERENCE", referencePath)
	t.Setenv("REFERENCE_SOURCE", "tsv")

	_, err := execute(t, "run")
	require.NoError(t, err)
	assert.Equal(t,
		"1017\t12\t56360553\t56366568\t+\n1\t19\t58345178\t58353492\t-\n",
		readFile(t, filepath.Join(dir, "coords.txt")))
}

func TestRun_MissingConfiguration(t *testing.T) {
	_, err := execute(t, "run", "--reference-source", "tsv")
	require.Error(t, err)

	var missing *config.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Fields, "MAPVIEW_FILE")
	assert.Contains(t, missing.Fields, "INPUT_COORD_FILE")
	assert.Contains(t, missing.Fields, "MAPVIEW_REFERENCE")
}

func TestRun_MissingInputLeavesOutputsUntouched(t *testing.T) {
	dir, _, referencePath := writeFixtures(t)
	coords := filepath.Join(dir, "coords.txt")
	require.NoError(t, os.WriteFile(coords, []byte("previous\n"), 0644))

	args := append(runArgs(dir, filepath.Join(dir, "missing.md")),
		"--reference-source", "tsv", "--reference", referencePath)
	_, err := execute(t, args...)
	require.Error(t, err)
	assert.Equal(t, "previous\n", readFile(t, coords))
}

func TestRun_MissingDuckDBReference(t *testing.T) {
	dir, mapviewPath, _ := writeFixtures(t)
	dbPath := filepath.Join(dir, "genes.duckdb")

	args := append(runArgs(dir, mapviewPath), "--reference-source", "duckdb", "--reference", dbPath)
	_, err := execute(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference import")
	assert.NoFileExists(t, dbPath)
}

func TestReference_ImportCountLookupAndRun(t *testing.T) {
	dir, mapviewPath, referencePath := writeFixtures(t)
	dbPath := filepath.Join(dir, "genes.duckdb")

	out, err := execute(t, "reference", "import", referencePath, "--reference", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 4 reference genes")

	out, err = execute(t, "reference", "count", "--reference", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "4 reference genes in "+dbPath)
	assert.Contains(t, out, "Imported from "+referencePath)

	out, err = execute(t, "reference", "lookup", "7157", "--reference", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "7157\tTP53\t17\n", out)

	_, err = execute(t, "reference", "lookup", "555", "--reference", dbPath)
	assert.Error(t, err)

	args := append(runArgs(dir, mapviewPath), "--reference-source", "duckdb", "--reference", dbPath)
	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded coordinates:      2")
}

func TestReference_ImportRequiresFile(t *testing.T) {
	_, err := execute(t, "reference", "import", "--reference", filepath.Join(t.TempDir(), "genes.duckdb"))
	assert.Error(t, err)
}

func TestConfig_SetGet(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "mapviewload.yaml")
	require.NoError(t, os.WriteFile(cfgFile, nil, 0644))

	out, err := execute(t, "--config", cfgFile, "config", "set", "duplicates.mode", "parity")
	require.NoError(t, err)
	assert.Contains(t, out, "Set duplicates.mode = parity")

	out, err = execute(t, "--config", cfgFile, "config", "get", "duplicates.mode")
	require.NoError(t, err)
	assert.Equal(t, "parity\n", out)

	_, err = execute(t, "--config", cfgFile, "config", "set", "storage.secret_key", "hunter2")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfgFile, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, masked)

	// Defaults are not written to the file.
	assert.NotContains(t, readFile(t, cfgFile), "endpoint")

	_, err = execute(t, "--config", cfgFile, "config", "set", "no.such.key", "x")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	payload := []byte("seq_gene payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/seq_gene.md.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "mapview", "seq_gene.md.gz")
	out, err := execute(t, "download", "--url", srv.URL+"/seq_gene.md.gz", "--output", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Done: 16 B")
	assert.Equal(t, string(payload), readFile(t, dest))
	assert.NoFileExists(t, dest+".tmp")

	out, err = execute(t, "download", "--url", srv.URL+"/seq_gene.md.gz", "--output", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	missing := filepath.Join(t.TempDir(), "other.md.gz")
	_, err = execute(t, "download", "--url", srv.URL+"/missing", "--output", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, missing)
}

func TestDownload_ForceKeepsFileOnFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("new release"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "seq_gene.md.gz")
	require.NoError(t, os.WriteFile(dest, []byte("old release"), 0644))

	_, err := execute(t, "download", "--force", "--url", srv.URL, "--output", dest)
	require.Error(t, err)
	assert.Equal(t, "old release", readFile(t, dest))

	fail.Store(false)
	_, err = execute(t, "download", "--force", "--url", srv.URL, "--output", dest)
	require.NoError(t, err)
	assert.Equal(t, "new release", readFile(t, dest))
	assert.NoFileExists(t, dest+".tmp")
}

func TestLoadReference_UnreadableSourceInfoIsNotFatal(t *testing.T) {
	dir, _, referencePath := writeFixtures(t)
	dbPath := filepath.Join(dir, "genes.duckdb")
	_, err := execute(t, "reference", "import", referencePath, "--reference", dbPath)
	require.NoError(t, err)

	store, err := duckdb.Open(dbPath)
	require.NoError(t, err)
	_, err = store.DB().Exec("DROP TABLE reference_source")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	core, logs := observer.New(zap.DebugLevel)
	cfg := &config.Config{Reference: config.Reference{Source: config.SourceDuckDB, Path: dbPath}}
	ref, err := loadReference(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 4, ref.Len())

	entries := logs.FilterMessage("reference cache source unavailable").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "reference_source")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
