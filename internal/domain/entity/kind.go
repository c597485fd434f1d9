package entity

import "fmt"

// SourceKind identifies which harvesting family a raw batch came from.
// The kind selects the Normalizer's field mapping and fixes the record's
// type_source value.
type SourceKind string

const (
	// SourceKindSyndication covers RSS/Atom news feeds.
	SourceKindSyndication SourceKind = "syndication"

	// SourceKindEvents covers the global-event metadata index.
	SourceKindEvents SourceKind = "events"

	// SourceKindAcademic covers the academic-works index.
	SourceKindAcademic SourceKind = "academic"

	// SourceKindCivic covers NGO/civic feeds and listing pages.
	SourceKindCivic SourceKind = "civic"
)

// SourceKinds lists every valid kind, in the order batches are reconciled.
var SourceKinds = []SourceKind{
	SourceKindSyndication,
	SourceKindEvents,
	SourceKindAcademic,
	SourceKindCivic,
}

// IsValid reports whether k is one of the closed set of source kinds.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindSyndication, SourceKindEvents, SourceKindAcademic, SourceKindCivic:
		return true
	}
	return false
}

// String returns the kind's wire form, as used in staging filenames.
func (k SourceKind) String() string {
	return string(k)
}

// TypeSource returns the corpus type_source value for records of this kind.
// Both syndication feeds and the event index describe press coverage, so
// they share NEWS. Invalid kinds return "".
func (k SourceKind) TypeSource() string {
	switch k {
	case SourceKindSyndication, SourceKindEvents:
		return TypeSourceNews
	case SourceKindAcademic:
		return TypeSourceAcademic
	case SourceKindCivic:
		return TypeSourceCivic
	}
	return ""
}

// ParseSourceKind converts a wire string (e.g. a staging filename prefix or
// a configuration value) into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown source kind %q", ErrInvalidInput, s)
	}
	return k, nil
}
