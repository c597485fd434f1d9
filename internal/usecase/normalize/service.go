package normalize

import (
	"log/slog"
	"strings"

	"corpusmill/internal/domain/entity"
)

// Batch is one harvested batch: a declared source kind plus its raw records.
type Batch struct {
	Kind    entity.SourceKind
	Records []entity.RawRecord
}

// Result carries the normalized stream and the per-run counts the pipeline
// folds into its counters.
type Result struct {
	Records  []entity.NormalizedRecord
	In       int
	Rejected int
}

// Service maps raw per-source records into the unified schema. Normalization
// is a synchronous, deterministic transformation; normalizing the same input
// twice yields identical output.
type Service struct {
	mappings map[entity.SourceKind]FieldMapping
}

// NewService creates a normalizer backed by the built-in per-kind mappings.
func NewService() Service {
	return Service{mappings: builtinMappings}
}

// NormalizeAll consumes every staged batch in order and produces the single
// normalized stream. Records missing a usable title or URL are dropped and
// counted, never raised. The only error condition is a missing or invalid
// field mapping for a declared kind, which aborts the run.
func (s Service) NormalizeAll(batches []Batch) (Result, error) {
	logger := slog.Default()
	var res Result

	for _, batch := range batches {
		m, err := lookupMapping(s.mappings, batch.Kind)
		if err != nil {
			return res, err
		}
		typeSource := batch.Kind.TypeSource()

		rejectedBefore := res.Rejected
		for _, raw := range batch.Records {
			res.In++
			rec, ok := normalizeOne(m, typeSource, raw, len(res.Records))
			if !ok {
				res.Rejected++
				continue
			}
			res.Records = append(res.Records, rec)
		}

		logger.Info("batch normalized",
			slog.String("kind", batch.Kind.String()),
			slog.Int("records_in", len(batch.Records)),
			slog.Int("rejected", res.Rejected-rejectedBefore),
		)
	}

	return res, nil
}

// normalizeOne projects a single raw record through the mapping. The second
// return is false when the record fails the schema invariants (empty title
// or no canonical URL after normalization).
func normalizeOne(m FieldMapping, typeSource string, raw entity.RawRecord, seq int) (entity.NormalizedRecord, bool) {
	titre := CleanTitle(firstValue(raw, m.TitleFields))
	lien, domain := CanonicalURL(firstValue(raw, m.URLFields))
	if titre == "" || lien == "" {
		return entity.NormalizedRecord{}, false
	}

	sourceType := firstValue(raw, m.SourceTypeFields)
	if sourceType == "" {
		sourceType = m.SourceTypeLabel
	}

	return entity.NormalizedRecord{
		DatePub:       parseDate(firstValue(raw, m.DateFields), m.DateLayouts),
		TypeSource:    typeSource,
		Titre:         titre,
		Lien:          lien,
		Langue:        NormalizeLanguage(firstValue(raw, m.LanguageFields)),
		SourceName:    collapseWhitespace(firstValue(raw, m.SourceNameFields)),
		SourceType:    sourceType,
		SourceCountry: collapseWhitespace(firstValue(raw, m.SourceCountryFields)),
		MotsCles:      collapseWhitespace(firstValue(raw, m.KeywordFields)),
		TitleKey:      TitleKey(titre),
		Domain:        domain,
		Seq:           seq,
	}, true
}

// firstValue returns the first non-blank value among the candidate fields.
func firstValue(raw entity.RawRecord, fields []string) string {
	for _, field := range fields {
		if v, ok := raw[field]; ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
