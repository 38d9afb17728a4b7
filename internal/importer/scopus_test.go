package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

const scopusEnvelope = `{
  "search-results": {
    "entry": [
      {
        "dc:identifier": "SCOPUS_ID:85001234567",
        "eid": "2-s2.0-85001234567",
        "dc:title": "Deep Harvesting",
        "subtypeDescription": "Article",
        "prism:publicationName": "Journal of Tests",
        "prism:issn": "12345678",
        "prism:volume": "7",
        "prism:issueIdentifier": "2",
        "prism:pageRange": "100-110",
        "prism:coverDate": "2022-05-01",
        "prism:doi": "10.1000/abc",
        "authkeywords": "oai | pmh",
        "author": [
          {
            "authid": "1",
            "given-name": "Ana",
            "surname": "Simic",
            "orcid": "0000-0001-2345-6789",
            "afid": [{"$": "60001"}]
          },
          {"authid": "2", "given-name": "", "surname": ""}
        ],
        "affiliation": [
          {"afid": "60001", "affilname": "University of Novi Sad"}
        ]
      }
    ]
  }
}`

func TestParseScopusEnvelope(t *testing.T) {
	entries, err := ParseScopus(strings.NewReader(scopusEnvelope))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Deep Harvesting", entries[0].Title)
}

func TestParseScopusBareArray(t *testing.T) {
	entries, err := ParseScopus(strings.NewReader(`[{"dc:title": "One"}]`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "One", entries[0].Title)
}

func TestConvertScopusEntry(t *testing.T) {
	entries, err := ParseScopus(strings.NewReader(scopusEnvelope))
	require.NoError(t, err)

	rec, err := ConvertScopusEntry(entries[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Valid())

	assert.Equal(t, domain.JournalPublication, rec.PublicationType)
	assert.Equal(t, "85001234567", rec.ScopusID)
	assert.Equal(t, "10.1000/abc", rec.DOI)
	assert.Equal(t, 2022, rec.Year)

	require.NotNil(t, rec.Journal)
	assert.Equal(t, "1234-5678", rec.Journal.ISSN)

	// The nameless second author is dropped; affiliations resolve via afid.
	require.Len(t, rec.Contributions, 1)
	assert.Equal(t, "Simic", rec.Contributions[0].Person.LastName)
	assert.Equal(t, []string{"University of Novi Sad"}, rec.Contributions[0].Institutions)
	assert.Equal(t, "0000-0001-2345-6789", rec.Contributions[0].ORCID)

	require.Len(t, rec.Keywords, 1)
	assert.Equal(t, "oai\npmh", rec.Keywords[0].Content)

	assert.Equal(t, "100", rec.StartPage)
	assert.Equal(t, "110", rec.EndPage)
	require.NotNil(t, rec.NumberOfPages)
	assert.Equal(t, 10, *rec.NumberOfPages)
}

func TestConvertScopusEntryConferencePaper(t *testing.T) {
	rec, err := ConvertScopusEntry(ScopusEntry{
		Title:              "Talk",
		SubtypeDescription: "Conference Paper",
		PublicationName:    "TestConf 2022",
		Authors:            []ScopusAuthor{{GivenName: "Bob", Surname: "Jones"}},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.ProceedingsPublication, rec.PublicationType)
	require.NotNil(t, rec.Event)
	assert.Equal(t, "TestConf 2022", rec.Event.Name[0].Content)
}

func TestConvertScopusEntryUnknownSubtype(t *testing.T) {
	rec, err := ConvertScopusEntry(ScopusEntry{
		Title:              "Book chapter",
		SubtypeDescription: "Book Chapter",
		PublicationName:    "Some Book",
	})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFormatISSN(t *testing.T) {
	assert.Equal(t, "1234-5678", formatISSN("12345678"))
	assert.Equal(t, "1234-5678", formatISSN("1234-5678"))
	assert.Equal(t, "", formatISSN(""))
	assert.Equal(t, "123", formatISSN("123"))
}
