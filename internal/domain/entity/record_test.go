package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedRecord_Struct(t *testing.T) {
	date := time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC)

	record := NormalizedRecord{
		DatePub:       &date,
		TypeSource:    TypeSourceNews,
		Titre:         "AI hiring bias sparks outrage",
		Lien:          "https://a.com/x",
		Langue:        "en",
		SourceName:    "Example Wire",
		SourceType:    "rss",
		SourceCountry: "US",
		TitleKey:      "ai hiring bias sparks outrage",
		Domain:        "a.com",
		Seq:           3,
	}

	assert.Equal(t, &date, record.DatePub)
	assert.Equal(t, TypeSourceNews, record.TypeSource)
	assert.Equal(t, "AI hiring bias sparks outrage", record.Titre)
	assert.Equal(t, "https://a.com/x", record.Lien)
	assert.Equal(t, "en", record.Langue)
	assert.Equal(t, "Example Wire", record.SourceName)
	assert.Equal(t, "a.com", record.Domain)
	assert.Equal(t, 3, record.Seq)
}

func TestNormalizedRecord_ZeroValue(t *testing.T) {
	var record NormalizedRecord

	assert.Nil(t, record.DatePub)
	assert.False(t, record.HasDate())
	assert.Equal(t, "", record.Titre)
	assert.Equal(t, "", record.Lien)
	assert.Equal(t, "", record.DateString())
}

func TestNormalizedRecord_DateString(t *testing.T) {
	t.Run("nil date serializes empty", func(t *testing.T) {
		record := NormalizedRecord{}
		assert.Equal(t, "", record.DateString())
	})

	t.Run("date serializes as calendar day", func(t *testing.T) {
		date := time.Date(2021, 3, 2, 15, 4, 5, 0, time.UTC)
		record := NormalizedRecord{DatePub: &date}
		assert.Equal(t, "2021-03-02", record.DateString())
	})

	t.Run("single digit month and day are zero padded", func(t *testing.T) {
		date := time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC)
		record := NormalizedRecord{DatePub: &date}
		assert.Equal(t, "2020-01-07", record.DateString())
	})
}

func TestCorpusRecord_EmbedsNormalizedRecord(t *testing.T) {
	date := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)

	record := CorpusRecord{
		ID: 42,
		NormalizedRecord: NormalizedRecord{
			DatePub:    &date,
			TypeSource: TypeSourceAcademic,
			Titre:      "Algorithmic accountability in public institutions",
			Lien:       "https://doi.org/10.1000/example",
			Langue:     "en",
			SourceName: "Journal of Examples",
		},
		ExtraitTexte: "The study surveys...",
	}

	// Promoted fields read through the embedding
	assert.Equal(t, int64(42), record.ID)
	assert.Equal(t, "Algorithmic accountability in public institutions", record.Titre)
	assert.Equal(t, "2022-06-01", record.DateString())
	assert.Equal(t, "The study surveys...", record.ExtraitTexte)
}

func TestCorpusColumns_Contract(t *testing.T) {
	// The header is a stable contract with downstream annotation tooling.
	expected := "id,date_pub,type_source,titre,lien,langue,controverse,secteur," +
		"territoire,acteurs,role_acteurs,rapports_pouvoir,issue,mots_cles," +
		"extrait_citation,note_analytique,source_name,source_type,source_country"

	assert.Equal(t, expected, strings.Join(CorpusColumns, ","))
	assert.Len(t, CorpusColumns, 19)
	assert.Equal(t, "extrait_texte", ExcerptColumn)
}

func TestAnnotationColumns_AreCorpusColumns(t *testing.T) {
	position := make(map[string]int, len(CorpusColumns))
	for i, col := range CorpusColumns {
		position[col] = i
	}

	prev := -1
	for _, col := range AnnotationColumns {
		idx, ok := position[col]
		assert.True(t, ok, "annotation column %s must appear in CorpusColumns", col)
		assert.Greater(t, idx, prev, "annotation columns must keep schema order")
		prev = idx
	}
	assert.Len(t, AnnotationColumns, 10)
}

func TestRawRecord_IsPlainMap(t *testing.T) {
	raw := RawRecord{
		"title":    "Some provider title",
		"url":      "https://example.com/item",
		"seendate": "20210302T120000Z",
	}

	assert.Equal(t, "Some provider title", raw["title"])
	assert.Equal(t, "", raw["missing_field"])
}
