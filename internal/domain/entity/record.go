// Package entity defines the core domain entities and validation logic for the
// corpus pipeline. It contains the fundamental business objects such as
// NormalizedRecord and Source, along with their validation rules and
// domain-specific errors.
package entity

import "time"

// Corpus type_source values. Every record in the corpus carries exactly one.
const (
	TypeSourceNews     = "NEWS"
	TypeSourceAcademic = "ACADEMIC"
	TypeSourceCivic    = "CIVIC"
)

// CorpusColumns is the exact header of the written corpus file, in order.
// The annotation columns between langue and source_name stay empty at write
// time; they belong to the human coding pass.
var CorpusColumns = []string{
	"id",
	"date_pub",
	"type_source",
	"titre",
	"lien",
	"langue",
	"controverse",
	"secteur",
	"territoire",
	"acteurs",
	"role_acteurs",
	"rapports_pouvoir",
	"issue",
	"mots_cles",
	"extrait_citation",
	"note_analytique",
	"source_name",
	"source_type",
	"source_country",
}

// AnnotationColumns lists the manual-coding columns, in schema order.
// The harvester may prefill mots_cles with provider concept labels; the
// reconciliation stages never touch any of them.
var AnnotationColumns = []string{
	"controverse",
	"secteur",
	"territoire",
	"acteurs",
	"role_acteurs",
	"rapports_pouvoir",
	"issue",
	"mots_cles",
	"extrait_citation",
	"note_analytique",
}

// ExcerptColumn is appended to CorpusColumns only when the text-extraction
// stage ran for the corpus being written.
const ExcerptColumn = "extrait_texte"

// DateLayout is the serialized form of date_pub.
const DateLayout = "2006-01-02"

// RawRecord is one provider row as harvested, keyed by the provider's own
// column names. The staging store persists it verbatim; only the Normalizer
// assigns it meaning, through the field mapping of its declared source kind.
type RawRecord map[string]string

// NormalizedRecord is one record in the unified schema, produced by the
// Normalizer and passed by value through deduplication and enrichment.
type NormalizedRecord struct {
	DatePub       *time.Time // publication date, nil when unknown
	TypeSource    string     // NEWS, ACADEMIC or CIVIC
	Titre         string     // display title, whitespace-normalized
	Lien          string     // canonical URL, never empty
	Langue        string     // lowercase ISO language code
	SourceName    string
	SourceType    string
	SourceCountry string
	MotsCles      string // harvester-prefilled concept labels, usually empty

	// Comparison-only fields. Derived by the Normalizer, consumed by the
	// Deduplicator, never serialized.
	TitleKey string // NFKC-folded, lowercased title
	Domain   string // host of Lien without port or www prefix
	Seq      int    // position in the normalized stream; the final id replaces it
}

// DateString returns date_pub in its serialized form, or "" when unknown.
func (r *NormalizedRecord) DateString() string {
	if r.DatePub == nil {
		return ""
	}
	return r.DatePub.Format(DateLayout)
}

// HasDate reports whether the record carries a publication date.
func (r *NormalizedRecord) HasDate() bool {
	return r.DatePub != nil
}

// CorpusRecord is one row of the final corpus: a surviving NormalizedRecord
// with its stable sequential id and, when extraction ran, its excerpt.
type CorpusRecord struct {
	ID int64
	NormalizedRecord
	ExtraitTexte string
}
