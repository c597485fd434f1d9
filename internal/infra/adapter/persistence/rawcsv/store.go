// Package rawcsv persists harvested raw-record batches as CSV files in
// the raw directory and loads them back for reconciliation. One file
// per batch, named <kind>_<timestamp>.csv, so a directory accumulates
// the harvest history a merge run reconciles.
package rawcsv

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"corpusmill/internal/domain/entity"
	"corpusmill/internal/usecase/normalize"
)

// Store implements the staging side of the pipeline: harvest batches go
// in as CSV files, reconciliation loads every file back out.
type Store struct {
	dir string
}

// NewStore creates a staging store rooted at dir. The directory is
// created on the first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// WriteBatch writes one harvested batch as <kind>_<timestamp>.csv under
// the store directory and returns the file path. The header is the
// sorted union of the batch's record keys, so the same batch always
// produces the same file shape.
func (s *Store) WriteBatch(ctx context.Context, kind entity.SourceKind, records []entity.RawRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: empty batch for kind %s", entity.ErrInvalidInput, kind)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create raw directory: %w", err)
	}

	header := unionHeader(records)
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%d.csv", kind, time.Now().Unix()))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create batch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	bufw := bufio.NewWriterSize(f, 1<<20)
	w := csv.NewWriter(bufw)

	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write batch header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, key := range header {
			row[i] = rec[key]
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write batch row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush batch: %w", err)
	}
	if err := bufw.Flush(); err != nil {
		return "", fmt.Errorf("flush batch: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync batch: %w", err)
	}

	slog.Info("staged raw batch",
		slog.String("kind", kind.String()),
		slog.Int("records", len(records)),
		slog.String("path", path))

	return path, nil
}

// LoadBatches reads every *.csv under dir into per-file batches, in
// filename order. The source kind is inferred from the filename prefix;
// files with an unknown prefix are reported and skipped. An empty dir
// falls back to the store's own directory.
func (s *Store) LoadBatches(ctx context.Context, dir string) ([]normalize.Batch, error) {
	if dir == "" {
		dir = s.dir
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan raw directory: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no staged batches in %s", entity.ErrNotFound, dir)
	}

	batches := make([]normalize.Batch, 0, len(paths))
	skipped := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		kind, ok := kindFromFilename(path)
		if !ok {
			slog.Warn("skipping staged file with unknown kind prefix",
				slog.String("path", path))
			skipped++
			continue
		}

		records, err := readBatchFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}

		batches = append(batches, normalize.Batch{Kind: kind, Records: records})
	}

	slog.Info("loaded raw batches",
		slog.String("dir", dir),
		slog.Int("batches", len(batches)),
		slog.Int("skipped_files", skipped))

	return batches, nil
}

// unionHeader returns the sorted union of keys across the batch.
func unionHeader(records []entity.RawRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for key := range rec {
			seen[key] = struct{}{}
		}
	}

	header := make([]string, 0, len(seen))
	for key := range seen {
		header = append(header, key)
	}
	sort.Strings(header)
	return header
}

// kindFromFilename infers the source kind from a <kind>_<timestamp>.csv name.
func kindFromFilename(path string) (entity.SourceKind, bool) {
	base := filepath.Base(path)
	prefix, _, found := strings.Cut(base, "_")
	if !found {
		return "", false
	}

	kind, err := entity.ParseSourceKind(prefix)
	if err != nil {
		return "", false
	}
	return kind, true
}

// readBatchFile reads one staged CSV back into raw records. Blank cells
// are dropped so loaded records look like freshly harvested ones.
func readBatchFile(path string) ([]entity.RawRecord, error) {
	f, err := os.Open(path) // #nosec G304 -- paths come from the run's own raw directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(bufio.NewReader(f))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]entity.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(entity.RawRecord, len(header))
		for i, key := range header {
			if i < len(row) && row[i] != "" {
				rec[key] = row[i]
			}
		}
		records = append(records, rec)
	}

	return records, nil
}
