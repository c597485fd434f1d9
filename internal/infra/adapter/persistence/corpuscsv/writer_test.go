package corpuscsv

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpusmill/internal/domain/entity"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// sampleRecords covers the quoting cases the schema has to survive: a
// comma in a title, literal quotes, a multi-line excerpt, a prefilled
// mots_cles and a record without a date.
func sampleRecords() []entity.CorpusRecord {
	return []entity.CorpusRecord{
		{
			ID: 1,
			NormalizedRecord: entity.NormalizedRecord{
				DatePub:       date(2024, time.January, 15),
				TypeSource:    entity.TypeSourceNews,
				Titre:         "AI hiring audit, regulators step in",
				Lien:          "https://news.example.org/audit",
				Langue:        "en",
				SourceName:    "Example Wire",
				SourceType:    "press",
				SourceCountry: "US",
			},
			ExtraitTexte: "The audit found systemic issues.\nRegulators responded.",
		},
		{
			ID: 2,
			NormalizedRecord: entity.NormalizedRecord{
				DatePub:    date(2024, time.February, 2),
				TypeSource: entity.TypeSourceAcademic,
				Titre:      `Measuring "fairness" in deployed models`,
				Lien:       "https://doi.org/10.1234/fair",
				Langue:     "en",
				MotsCles:   "algorithmic fairness,accountability",
				SourceName: "Journal of Audits",
				SourceType: "journal",
			},
			ExtraitTexte: "Abstract text.",
		},
		{
			ID: 3,
			NormalizedRecord: entity.NormalizedRecord{
				TypeSource:    entity.TypeSourceCivic,
				Titre:         "Plateforme de surveillance citoyenne",
				Lien:          "https://ong.example.org/plateforme",
				Langue:        "fr",
				SourceName:    "Observatoire",
				SourceType:    "ngo",
				SourceCountry: "FR",
			},
		},
	}
}

func TestWriteCorpus_GoldenWithExcerpts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, sampleRecords(), true)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "corpus_with_excerpts", got)
}

func TestWriteCorpus_GoldenBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, sampleRecords(), false)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "corpus_base", got)
}

func TestWriteCorpus_RoundTripParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, sampleRecords(), true)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}

	assert.Equal(t, "1", rows[1][col["id"]])
	assert.Equal(t, "2024-01-15", rows[1][col["date_pub"]])
	assert.Equal(t, "AI hiring audit, regulators step in", rows[1][col["titre"]])
	assert.Equal(t, "The audit found systemic issues.\nRegulators responded.",
		rows[1][col["extrait_texte"]])

	assert.Equal(t, `Measuring "fairness" in deployed models`, rows[2][col["titre"]])
	assert.Equal(t, "algorithmic fairness,accountability", rows[2][col["mots_cles"]])

	assert.Equal(t, "", rows[3][col["date_pub"]], "missing date stays empty")
	assert.Equal(t, "FR", rows[3][col["source_country"]])

	// Annotation columns other than mots_cles belong to the coding pass
	// and must come out empty.
	for _, name := range entity.AnnotationColumns {
		if name == "mots_cles" {
			continue
		}
		for r := 1; r < len(rows); r++ {
			assert.Empty(t, rows[r][col[name]], "row %d column %s", r, name)
		}
	}
}

func TestWriteCorpus_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, nil, false)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.CorpusColumns, rows[0])
}

func TestWriteCorpus_ExcerptHeaderLeavesColumnsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, nil, true)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(entity.CorpusColumns)+1)
	assert.Equal(t, entity.ExcerptColumn, rows[0][len(rows[0])-1])

	// The shared schema slice must not grow an excerpt column.
	assert.Equal(t, "source_country", entity.CorpusColumns[len(entity.CorpusColumns)-1])
}

func TestWriteCorpus_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "corpus.csv")

	err := NewWriter().WriteCorpus(context.Background(), path, sampleRecords(), false)

	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteCorpus_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWriter().WriteCorpus(ctx, filepath.Join(t.TempDir(), "corpus.csv"), nil, false)

	assert.ErrorIs(t, err, context.Canceled)
}
