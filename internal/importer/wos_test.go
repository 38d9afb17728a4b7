package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

const wosExport = `FN Clarivate Analytics Web of Science
VR 1.0
PT J
AU Smith, J
   Doe, A
AF Smith, John
   Doe, Alice
TI A Very Long Title That
   Wraps Onto Two Lines
SO JOURNAL OF HARVESTING
SN 1111-2222
EI 3333-4444
DE metadata; protocols
AB This is the abstract,
   continued on a second line.
PY 2019
VL 5
IS 2
BP 33
EP 47
PG 15
DI 10.1000/wos
UT WOS:000123456700001
ER

PT C
AU Jones, B
TI Short Conference Paper
SO PROC SERIES VOL 9
CT 12th International Harvesting Conference
CL Novi Sad, SERBIA
PY 2018
ER
EF
`

func TestParseWOS(t *testing.T) {
	records, err := ParseWOS(strings.NewReader(wosExport))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, []string{"Smith, John", "Doe, Alice"}, first.Fields["AF"])
	assert.Equal(t, "A Very Long Title That Wraps Onto Two Lines", first.joined("TI"))
	assert.Equal(t, "This is the abstract, continued on a second line.", first.joined("AB"))
	assert.Equal(t, "WOS:000123456700001", first.first("UT"))

	// FN and VR header tags never become fields.
	assert.Empty(t, first.Fields["FN"])
	assert.Empty(t, first.Fields["VR"])
}

func TestConvertWOSRecordJournal(t *testing.T) {
	records, err := ParseWOS(strings.NewReader(wosExport))
	require.NoError(t, err)

	rec, err := ConvertWOSRecord(records[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Valid())

	assert.Equal(t, domain.JournalPublication, rec.PublicationType)
	assert.Equal(t, "000123456700001", rec.WebOfScienceID)
	assert.Equal(t, "10.1000/wos", rec.DOI)
	assert.Equal(t, 2019, rec.Year)

	require.NotNil(t, rec.Journal)
	assert.Equal(t, "JOURNAL OF HARVESTING", rec.Journal.Name[0].Content)
	assert.Equal(t, "1111-2222", rec.Journal.ISSN)
	assert.Equal(t, "3333-4444", rec.Journal.EISSN)

	// AF full names win over the abbreviated AU list.
	require.Len(t, rec.Contributions, 2)
	assert.Equal(t, "John", rec.Contributions[0].Person.FirstName)
	assert.Equal(t, "Smith", rec.Contributions[0].Person.LastName)

	// Explicit PG beats the computed span.
	require.NotNil(t, rec.NumberOfPages)
	assert.Equal(t, 15, *rec.NumberOfPages)
	assert.Equal(t, "33", rec.StartPage)
	assert.Equal(t, "47", rec.EndPage)
}

func TestConvertWOSRecordProceedings(t *testing.T) {
	records, err := ParseWOS(strings.NewReader(wosExport))
	require.NoError(t, err)

	rec, err := ConvertWOSRecord(records[1])
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, domain.ProceedingsPublication, rec.PublicationType)
	require.NotNil(t, rec.Event)
	// CT is preferred over SO for the event name.
	assert.Equal(t, "12th International Harvesting Conference", rec.Event.Name[0].Content)
	assert.Equal(t, "Novi Sad, SERBIA", rec.Event.Place)
}

func TestConvertWOSRecordUnknownSourceType(t *testing.T) {
	rec, err := ConvertWOSRecord(WOSRecord{Fields: map[string][]string{
		"PT": {"B"},
		"TI": {"A book"},
	}})
	require.NoError(t, err)
	assert.Nil(t, rec)
}
