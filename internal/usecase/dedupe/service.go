package dedupe

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"corpusmill/internal/domain/entity"
)

// Options tune candidate pairing and scoring.
type Options struct {
	Algorithm  string  // token_set (default) or jaccard
	Threshold  float64 // fuzzy match floor in [0,1]
	WindowDays int     // date proximity window for fuzzy candidates
}

// DefaultOptions returns the stock configuration: token_set at 0.90 within
// a ±14 day window.
func DefaultOptions() Options {
	return Options{
		Algorithm:  AlgorithmTokenSet,
		Threshold:  0.90,
		WindowDays: 14,
	}
}

// Result carries the surviving records plus the counts the pipeline folds
// into its run counters.
type Result struct {
	Survivors []entity.NormalizedRecord
	Removed   int
	Clusters  int
}

// Service partitions a normalized stream into clusters of records that
// describe one real-world item and keeps one survivor per cluster. The
// transformation is synchronous and deterministic given the input order.
type Service struct {
	score Scorer
	opts  Options
}

// NewService validates the options and resolves the similarity scorer.
func NewService(opts Options) (Service, error) {
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return Service{}, &entity.ValidationError{
			Field:   "threshold",
			Message: fmt.Sprintf("must be within [0,1], got %g", opts.Threshold),
		}
	}
	if opts.WindowDays < 0 {
		return Service{}, &entity.ValidationError{
			Field:   "window_days",
			Message: fmt.Sprintf("must not be negative, got %d", opts.WindowDays),
		}
	}
	score, err := NewScorer(opts.Algorithm)
	if err != nil {
		return Service{}, err
	}
	return Service{score: score, opts: opts}, nil
}

// exactKey identifies an exact duplicate independent of URL: same comparison
// title, same source domain, same calendar date.
type exactKey struct {
	titleKey string
	domain   string
	date     string
}

// Dedupe clusters the records and returns one survivor per cluster, in
// input-stream order of the survivors. It never fails: the normalizer's
// contract guarantees every record carries a title and a URL.
func (s Service) Dedupe(records []entity.NormalizedRecord) Result {
	n := len(records)
	if n == 0 {
		return Result{}
	}

	uf := newUnionFind(n)

	// Pass 1: exact URL matches.
	byURL := make(map[string]int, n)
	for i, rec := range records {
		if first, ok := byURL[rec.Lien]; ok {
			uf.union(first, i)
		} else {
			byURL[rec.Lien] = i
		}
	}

	// Pass 2: exact (title, domain, date) matches.
	byExact := make(map[exactKey]int, n)
	for i, rec := range records {
		key := exactKey{titleKey: rec.TitleKey, domain: rec.Domain, date: rec.DateString()}
		if first, ok := byExact[key]; ok {
			uf.union(first, i)
		} else {
			byExact[key] = i
		}
	}

	// Pass 3: fuzzy title matches, restricted to candidates on the same
	// domain and (when both sides carry one) nearby dates.
	byDomain := make(map[string][]int)
	for i, rec := range records {
		byDomain[rec.Domain] = append(byDomain[rec.Domain], i)
	}
	window := time.Duration(s.opts.WindowDays) * 24 * time.Hour
	for _, group := range byDomain {
		for gi := 0; gi < len(group); gi++ {
			for gj := gi + 1; gj < len(group); gj++ {
				i, j := group[gi], group[gj]
				if uf.same(i, j) {
					continue
				}
				if !withinWindow(records[i].DatePub, records[j].DatePub, window) {
					continue
				}
				if s.score(records[i].TitleKey, records[j].TitleKey) >= s.opts.Threshold {
					uf.union(i, j)
				}
			}
		}
	}

	// Collapse each cluster to its survivor, keeping input-stream order.
	best := make(map[int]int, n)
	for i := range records {
		root := uf.find(i)
		cur, ok := best[root]
		if !ok || better(records[i], records[cur]) {
			best[root] = i
		}
	}

	survivorAt := make(map[int]bool, len(best))
	for _, idx := range best {
		survivorAt[idx] = true
	}
	survivors := make([]entity.NormalizedRecord, 0, len(best))
	for i := range records {
		if survivorAt[i] {
			survivors = append(survivors, records[i])
		}
	}

	res := Result{
		Survivors: survivors,
		Removed:   n - len(survivors),
		Clusters:  len(survivors),
	}
	slog.Default().Info("dedupe completed",
		slog.Int("records_in", n),
		slog.Int("clusters", res.Clusters),
		slog.Int("duplicates_removed", res.Removed),
	)
	return res
}

// withinWindow applies the date proximity gate. A null date on either side
// waives the gate: the pair is judged on title and URL evidence alone.
func withinWindow(a, b *time.Time, window time.Duration) bool {
	if a == nil || b == nil {
		return true
	}
	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// better reports whether candidate should replace current as the cluster
// survivor. Priority: non-null and later date, then richer source type
// (ACADEMIC > NEWS > CIVIC), then longer title, then earliest position in
// the normalized stream.
func better(candidate, current entity.NormalizedRecord) bool {
	switch {
	case candidate.HasDate() != current.HasDate():
		return candidate.HasDate()
	case candidate.HasDate() && !candidate.DatePub.Equal(*current.DatePub):
		return candidate.DatePub.After(*current.DatePub)
	}

	if pa, pb := typePriority(candidate.TypeSource), typePriority(current.TypeSource); pa != pb {
		return pa > pb
	}

	if la, lb := utf8.RuneCountInString(candidate.Titre), utf8.RuneCountInString(current.Titre); la != lb {
		return la > lb
	}

	return candidate.Seq < current.Seq
}

func typePriority(typeSource string) int {
	switch typeSource {
	case entity.TypeSourceAcademic:
		return 3
	case entity.TypeSourceNews:
		return 2
	case entity.TypeSourceCivic:
		return 1
	default:
		return 0
	}
}
