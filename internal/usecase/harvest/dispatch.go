package harvest

import (
	"context"

	"corpusmill/internal/domain/entity"
)

// FeedOrListing routes civic sources to the right client. Civic bodies
// publish either a syndication feed or a plain listing page, and the
// source config decides which; a kind-level client cannot.
type FeedOrListing struct {
	// Feed handles sources without listing selectors.
	Feed SourceClient

	// Listing handles sources configured with CSS selectors.
	Listing SourceClient
}

// Harvest dispatches to the listing client when the source carries a
// listing configuration, otherwise to the feed client.
func (d FeedOrListing) Harvest(ctx context.Context, src entity.Source, q Query) ([]entity.RawRecord, error) {
	if src.IsListing() {
		return d.Listing.Harvest(ctx, src, q)
	}
	return d.Feed.Harvest(ctx, src, q)
}
