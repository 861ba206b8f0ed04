package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NCBI MapView seq_gene release for Homo sapiens.
const seqGeneURL = "https://ftp.ncbi.nlm.nih.gov/genomes/MapView/Homo_sapiens/sequence/current/initial_release/seq_gene.md.gz"

func newDownloadCmd(v *viper.Viper) *cobra.Command {
	var (
		url    string
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the MapView seq_gene file from NCBI",
		Long: `Download the human MapView seq_gene.md.gz file. When --output is not given
the file is written to paths.mapview (MAPVIEW_FILE), or to seq_gene.md.gz in
the current directory. The run command reads gzipped input directly.`,
		Example: `  mapviewload download
  mapviewload download --output /data/mapview/seq_gene.md.gz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := output
			if dest == "" {
				dest = v.GetString("paths.mapview")
			}
			if dest == "" || dest == "-" {
				dest = filepath.Base(seqGeneURL)
			}
			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("cannot create directory %s: %w", dir, err)
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Downloading MapView seq_gene to %s\n", dest)
			if err := downloadFile(cmd.Context(), w, url, dest, force); err != nil {
				return fmt.Errorf("download seq_gene: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", seqGeneURL, "Source URL")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file once the download succeeds")

	return cmd
}

// downloadFile downloads url to destPath via a temporary file, reporting
// progress on w. An existing destPath is kept unless replace is set, and is
// only replaced once the download has completed.
func downloadFile(ctx context.Context, w io.Writer, url, destPath string, replace bool) error {
	if info, err := os.Stat(destPath); err == nil && !replace {
		fmt.Fprintf(w, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	client := &http.Client{
		Timeout: 30 * time.Minute,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{
		out:        w,
		total:      resp.ContentLength,
		downloaded: &downloaded,
		lastPrint:  time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(w, "  Done: %s\n", formatSize(downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r  Progress: %s / %s (%.1f%%)  ",
				formatSize(*pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r  Progress: %s  ", formatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
