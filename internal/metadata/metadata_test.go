package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/registry"
)

func documentRecord() *domain.ExportRecord {
	return &domain.ExportRecord{
		DatabaseID: 42,
		Kind:       domain.KindDocument,
		Type:       "JOURNAL_PUBLICATION",
		Title: []domain.MultilingualContent{
			{LanguageTag: "en", Content: "English Title", Priority: 2},
			{LanguageTag: "sr", Content: "Srpski naslov", Priority: 1},
		},
		Keywords: []domain.MultilingualContent{
			{LanguageTag: "en", Content: "harvesting", Priority: 1},
		},
		Contributions: []domain.ExportContribution{
			{DisplayName: "Alice Doe", OrderNumber: 2},
			{DisplayName: "Ana Simic", OrderNumber: 1, Institutions: []string{"University of Novi Sad"}},
		},
		DocumentDate: "2021-06-15",
		DOI:          "10.1000/doc",
		JournalName: []domain.MultilingualContent{
			{LanguageTag: "en", Content: "Journal of Tests", Priority: 1},
		},
	}
}

func TestDocumentDublinCoreConversion(t *testing.T) {
	reg := Default()
	model, err := reg.Convert(Key{domain.KindDocument, FormatDublinCore}, documentRecord(), ConvertOptions{})
	require.NoError(t, err)

	dc, ok := model.(*DublinCore)
	require.True(t, ok)

	// Multilingual fields come out priority-ordered.
	require.Len(t, dc.Titles, 2)
	assert.Equal(t, "Srpski naslov", dc.Titles[0].Value)
	assert.Equal(t, "sr", dc.Titles[0].Lang)
	assert.Equal(t, "English Title", dc.Titles[1].Value)

	// Creators come out contribution-ordered.
	assert.Equal(t, []string{"Ana Simic", "Alice Doe"}, dc.Creators)

	assert.Equal(t, []string{"2021-06-15"}, dc.Dates)
	assert.Equal(t, []string{"JOURNAL_PUBLICATION"}, dc.Types)
	assert.Equal(t, []string{"https://doi.org/10.1000/doc"}, dc.Identifiers)
	require.Len(t, dc.Sources, 1)
	assert.Equal(t, "Journal of Tests", dc.Sources[0].Value)
}

func TestDocumentDublinCoreLanguageRestriction(t *testing.T) {
	reg := Default()
	model, err := reg.Convert(Key{domain.KindDocument, FormatDublinCore}, documentRecord(),
		ConvertOptions{Languages: []string{"en"}})
	require.NoError(t, err)

	dc := model.(*DublinCore)
	require.Len(t, dc.Titles, 1)
	assert.Equal(t, "English Title", dc.Titles[0].Value)
}

func TestPersonDublinCoreConversion(t *testing.T) {
	reg := Default()
	rec := &domain.ExportRecord{
		Kind: domain.KindPerson,
		PersonName: &domain.PersonName{
			FirstName: "Ana", LastName: "Simic",
		},
		Affiliations: []string{"University of Novi Sad"},
		ORCID:        "0000-0001-0000-0001",
	}
	model, err := reg.Convert(Key{domain.KindPerson, FormatDublinCore}, rec, ConvertOptions{})
	require.NoError(t, err)

	dc := model.(*DublinCore)
	require.Len(t, dc.Titles, 1)
	assert.Equal(t, "Ana Simic", dc.Titles[0].Value)
	assert.Equal(t, []string{"University of Novi Sad"}, dc.Relations)
	assert.Equal(t, []string{"https://orcid.org/0000-0001-0000-0001"}, dc.Identifiers)
}

func TestEventDublinCoreDateRange(t *testing.T) {
	reg := Default()
	from := time.Date(2022, 9, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2022, 9, 9, 0, 0, 0, 0, time.UTC)
	rec := &domain.ExportRecord{
		Kind:          domain.KindEvent,
		Title:         []domain.MultilingualContent{{LanguageTag: "en", Content: "TestConf", Priority: 1}},
		EventDateFrom: &from,
		EventDateTo:   &to,
		Place:         "Novi Sad",
	}
	model, err := reg.Convert(Key{domain.KindEvent, FormatDublinCore}, rec, ConvertOptions{})
	require.NoError(t, err)

	dc := model.(*DublinCore)
	assert.Equal(t, []string{"2022-09-05/2022-09-09"}, dc.Dates)
	require.Len(t, dc.Coverages, 1)
	assert.Equal(t, "Novi Sad", dc.Coverages[0].Value)
}

func TestDocumentETDMSConversion(t *testing.T) {
	reg := Default()
	rec := documentRecord()
	rec.Type = "PHD"
	model, err := reg.Convert(Key{domain.KindDocument, FormatETDMS}, rec, ConvertOptions{})
	require.NoError(t, err)

	thesis, ok := model.(*ETDMSThesis)
	require.True(t, ok)
	require.NotNil(t, thesis.Degree)
	assert.Equal(t, "2", thesis.Degree.Level)
	require.Len(t, thesis.Degree.Grantor, 1)
	assert.Equal(t, "University of Novi Sad", thesis.Degree.Grantor[0].Value)
	assert.Equal(t, []string{"2021-06-15"}, thesis.Dates)
}

func TestResolveUnknownCombination(t *testing.T) {
	reg := Default()
	_, err := reg.Resolve(Key{domain.KindPerson, FormatETDMS})
	require.Error(t, err)
	var noStrategy *ErrNoStrategy
	assert.True(t, errors.As(err, &noStrategy))
}

func TestETDMSTitleDedupe(t *testing.T) {
	reg := Default()
	rec := documentRecord()
	rec.Title = append(rec.Title, domain.MultilingualContent{LanguageTag: "en", Content: "Duplicate", Priority: 3})
	model, err := reg.Convert(Key{domain.KindDocument, FormatETDMS}, rec, ConvertOptions{})
	require.NoError(t, err)

	thesis := model.(*ETDMSThesis)
	langs := make(map[string]int)
	for _, title := range thesis.Titles {
		langs[title.Lang]++
	}
	for lang, n := range langs {
		assert.Equal(t, 1, n, "language %s repeated", lang)
	}
}

func TestSchemaFor(t *testing.T) {
	schema, ns, ok := SchemaFor(FormatDublinCore)
	assert.True(t, ok)
	assert.Contains(t, schema, "oai_dc.xsd")
	assert.Contains(t, ns, "oai_dc")

	_, _, ok = SchemaFor("marcxml")
	assert.False(t, ok)
}

func TestValidateAgainst(t *testing.T) {
	reg := Default()

	valid := &registry.HandlerConfiguration{
		Identifier:      "uns",
		MetadataFormats: []string{FormatDublinCore, FormatETDMS},
		Sets: []registry.SetConfiguration{
			{SetSpec: "Publications", EntityKind: domain.KindDocument},
			{SetSpec: "Persons", EntityKind: domain.KindPerson},
		},
	}
	assert.NoError(t, reg.ValidateAgainst([]*registry.HandlerConfiguration{valid}))

	missingDC := &registry.HandlerConfiguration{
		Identifier:      "uns",
		MetadataFormats: []string{FormatETDMS},
		Sets: []registry.SetConfiguration{
			{SetSpec: "Publications", EntityKind: domain.KindDocument},
		},
	}
	assert.Error(t, reg.ValidateAgainst([]*registry.HandlerConfiguration{missingDC}))

	unknownFormat := &registry.HandlerConfiguration{
		Identifier:      "uns",
		MetadataFormats: []string{FormatDublinCore, "marcxml"},
		Sets: []registry.SetConfiguration{
			{SetSpec: "Publications", EntityKind: domain.KindDocument},
		},
	}
	assert.Error(t, reg.ValidateAgainst([]*registry.HandlerConfiguration{unknownFormat}))

	// oai_etdms advertised but only person sets configured: no set can
	// ever disseminate it, so the configuration is rejected eagerly.
	etdmsNoDocs := &registry.HandlerConfiguration{
		Identifier:      "uns",
		MetadataFormats: []string{FormatDublinCore, FormatETDMS},
		Sets: []registry.SetConfiguration{
			{SetSpec: "Persons", EntityKind: domain.KindPerson},
		},
	}
	assert.Error(t, reg.ValidateAgainst([]*registry.HandlerConfiguration{etdmsNoDocs}))
}
