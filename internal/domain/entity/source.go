package entity

import (
	"errors"
	"fmt"
)

// Source describes one configured harvest origin: a syndication feed, a
// provider query, or a civic listing page. Feeds and listing pages both use
// URL; provider-backed kinds (events, academic) treat URL as optional and
// take their query from the run configuration instead.
type Source struct {
	Name     string         `yaml:"name"`
	URL      string         `yaml:"url"`
	Kind     SourceKind     `yaml:"kind"`
	Language string         `yaml:"language,omitempty"` // hint when the feed does not declare one
	Country  string         `yaml:"country,omitempty"`
	Listing  *ListingConfig `yaml:"listing,omitempty"` // present only for scraped civic pages
}

// ListingConfig holds the selectors for scraping a civic site without a feed.
// ItemSelector scopes each entry; the remaining selectors are evaluated
// relative to it.
type ListingConfig struct {
	ItemSelector  string `yaml:"item_selector"`
	TitleSelector string `yaml:"title_selector"`
	URLSelector   string `yaml:"url_selector,omitempty"`  // defaults to the first <a> in the item
	DateSelector  string `yaml:"date_selector,omitempty"` // optional; missing dates stay null
	DateFormat    string `yaml:"date_format,omitempty"`   // Go reference layout for DateSelector text
	URLPrefix     string `yaml:"url_prefix,omitempty"`    // prepended to relative URLs
}

// Validate validates the Source fields.
// It checks that the kind is valid and that listing sources carry the
// selectors the scraper needs.
func (s *Source) Validate() error {
	// An empty kind means a plain news feed (the common case in run files).
	if s.Kind == "" {
		s.Kind = SourceKindSyndication
	}

	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid kind: %s (must be syndication, events, academic, or civic)", s.Kind)
	}

	if s.URL == "" && (s.Kind == SourceKindSyndication || s.Kind == SourceKindCivic) {
		return errors.New("url is required for feed and listing sources")
	}

	if s.Listing != nil {
		if s.Kind != SourceKindCivic {
			return fmt.Errorf("listing selectors are only valid for civic sources, got kind %s", s.Kind)
		}
		if s.Listing.ItemSelector == "" || s.Listing.TitleSelector == "" {
			return errors.New("listing sources require item_selector and title_selector")
		}
	}

	return nil
}

// IsListing reports whether this civic source is scraped from an HTML page
// rather than parsed from a feed.
func (s *Source) IsListing() bool {
	return s.Listing != nil
}
