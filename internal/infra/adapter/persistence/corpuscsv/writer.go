// Package corpuscsv serializes the assembled corpus to its tabular
// output file, in the fixed schema column order the coding team works
// with.
package corpuscsv

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"corpusmill/internal/domain/entity"
)

// Writer writes corpus files. Quoting follows RFC 4180, so titles and
// excerpts may carry embedded delimiters and newlines.
type Writer struct{}

// NewWriter creates a corpus writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteCorpus writes records to path under the schema header. The
// extrait_texte column is appended only when withExcerpts is set.
// Annotation columns are written empty except mots_cles, which the
// harvest mapping may have prefilled.
func (w *Writer) WriteCorpus(ctx context.Context, path string, records []entity.CorpusRecord, withExcerpts bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create corpus directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create corpus file: %w", err)
	}
	defer func() { _ = f.Close() }()

	bufw := bufio.NewWriterSize(f, 1<<20)
	cw := csv.NewWriter(bufw)

	header := entity.CorpusColumns
	if withExcerpts {
		header = make([]string, 0, len(entity.CorpusColumns)+1)
		header = append(header, entity.CorpusColumns...)
		header = append(header, entity.ExcerptColumn)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write corpus header: %w", err)
	}

	for i := range records {
		if err := cw.Write(corpusRow(&records[i], withExcerpts)); err != nil {
			return fmt.Errorf("write corpus row id=%d: %w", records[i].ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush corpus: %w", err)
	}
	if err := bufw.Flush(); err != nil {
		return fmt.Errorf("flush corpus: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync corpus: %w", err)
	}

	slog.Info("corpus written",
		slog.String("path", path),
		slog.Int("records", len(records)),
		slog.Bool("with_excerpts", withExcerpts))

	return nil
}

// corpusRow lays one record out in CorpusColumns order. Annotation
// columns are absent from the value map and resolve to empty cells.
func corpusRow(r *entity.CorpusRecord, withExcerpts bool) []string {
	values := map[string]string{
		"id":             strconv.FormatInt(r.ID, 10),
		"date_pub":       r.DateString(),
		"type_source":    r.TypeSource,
		"titre":          r.Titre,
		"lien":           r.Lien,
		"langue":         r.Langue,
		"mots_cles":      r.MotsCles,
		"source_name":    r.SourceName,
		"source_type":    r.SourceType,
		"source_country": r.SourceCountry,
	}

	row := make([]string, 0, len(entity.CorpusColumns)+1)
	for _, col := range entity.CorpusColumns {
		row = append(row, values[col])
	}
	if withExcerpts {
		row = append(row, r.ExtraitTexte)
	}
	return row
}
