package normalize

import (
	"fmt"
	"time"

	"corpusmill/internal/domain/entity"
)

// FieldMapping describes how one source kind's raw fields project onto the
// unified schema. Candidate field names are tried in order; the first
// non-empty value wins. KeywordFields prefill mots_cles and are only set for
// the academic kind (concept labels). SourceTypeLabel is the kind's provider
// label, used when no SourceTypeFields value is present.
type FieldMapping struct {
	TitleFields         []string
	URLFields           []string
	DateFields          []string
	DateLayouts         []string
	LanguageFields      []string
	SourceNameFields    []string
	SourceCountryFields []string
	SourceTypeFields    []string
	SourceTypeLabel     string
	KeywordFields       []string
}

// Validate reports whether the mapping can produce records that satisfy the
// schema invariants. A mapping with neither title nor URL fields can never
// emit a valid record, which makes the whole run pointless.
func (m FieldMapping) Validate() error {
	if len(m.TitleFields) == 0 && len(m.URLFields) == 0 {
		return fmt.Errorf("%w: mapping has no title field and no URL field", entity.ErrInvalidMapping)
	}
	return nil
}

// layoutCompactEvent is the event index's seendate form (20240115T083000Z).
const layoutCompactEvent = "20060102T150405Z"

// builtinMappings carries one mapping per source kind. Keys follow each
// provider's native field names as the harvest clients emit them.
var builtinMappings = map[entity.SourceKind]FieldMapping{
	entity.SourceKindSyndication: {
		TitleFields:         []string{"title"},
		URLFields:           []string{"link"},
		DateFields:          []string{"published", "updated"},
		DateLayouts:         []string{time.RFC3339, time.RFC1123Z, time.RFC1123, entity.DateLayout},
		LanguageFields:      []string{"language"},
		SourceNameFields:    []string{"feed_title", "author"},
		SourceCountryFields: []string{"country"},
		SourceTypeLabel:     "rss",
	},
	entity.SourceKindAcademic: {
		TitleFields:         []string{"display_name", "title"},
		URLFields:           []string{"doi", "landing_page_url", "id"},
		DateFields:          []string{"publication_date"},
		DateLayouts:         []string{entity.DateLayout, time.RFC3339},
		LanguageFields:      []string{"language"},
		SourceNameFields:    []string{"host_venue"},
		SourceCountryFields: []string{"country"},
		SourceTypeLabel:     "openalex",
		KeywordFields:       []string{"concepts"},
	},
	entity.SourceKindEvents: {
		TitleFields:         []string{"title"},
		URLFields:           []string{"url"},
		DateFields:          []string{"seendate"},
		DateLayouts:         []string{layoutCompactEvent, entity.DateLayout},
		LanguageFields:      []string{"language"},
		SourceNameFields:    []string{"domain", "sourcecountry"},
		SourceCountryFields: []string{"sourcecountry"},
		SourceTypeLabel:     "gdelt",
	},
	entity.SourceKindCivic: {
		TitleFields:         []string{"title"},
		URLFields:           []string{"url", "link"},
		DateFields:          []string{"date", "published"},
		DateLayouts:         []string{time.RFC3339, entity.DateLayout, time.RFC1123},
		LanguageFields:      []string{"language"},
		SourceNameFields:    []string{"site_name", "feed_title"},
		SourceCountryFields: []string{"country"},
		SourceTypeFields:    []string{"source_type"},
		SourceTypeLabel:     "civic",
	},
}

// MappingFor resolves the built-in field mapping for a declared source kind.
// A missing or structurally invalid mapping is the one fatal configuration
// condition of a run.
func MappingFor(kind entity.SourceKind) (FieldMapping, error) {
	return lookupMapping(builtinMappings, kind)
}

func lookupMapping(mappings map[entity.SourceKind]FieldMapping, kind entity.SourceKind) (FieldMapping, error) {
	m, ok := mappings[kind]
	if !ok {
		return FieldMapping{}, fmt.Errorf("%w: no mapping for source kind %q", entity.ErrInvalidMapping, kind)
	}
	if err := m.Validate(); err != nil {
		return FieldMapping{}, fmt.Errorf("mapping for kind %q: %w", kind, err)
	}
	return m, nil
}
