package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// CSV column headers accepted by the generic tabular import. Header
// matching is case-insensitive; unknown columns are ignored.
const (
	csvColIdentifier = "identifier"
	csvColType       = "type"
	csvColTitle      = "title"
	csvColAuthors    = "authors"
	csvColJournal    = "journal"
	csvColEvent      = "event"
	csvColISSN       = "issn"
	csvColDOI        = "doi"
	csvColVolume     = "volume"
	csvColIssue      = "issue"
	csvColPages      = "pages"
	csvColYear       = "year"
	csvColLanguage   = "language"
	csvColKeywords   = "keywords"
	csvColAbstract   = "abstract"
)

// CSVRow is one raw row keyed by lowercased header name.
type CSVRow map[string]string

// ParseCSV reads a headed CSV export. Rows with a column count different
// from the header are skipped, not fatal.
func ParseCSV(r io.Reader) ([]CSVRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []CSVRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(record) != len(header) {
			continue
		}
		row := make(CSVRow, len(header))
		for i, value := range record {
			row[header[i]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ConvertCSVRow normalizes one tabular row. The type column accepts the
// canonical names, short journal/proceedings literals and the Serbian
// M-category codes used in local reporting exports.
func ConvertCSVRow(row CSVRow) (*domain.NormalizedRecord, error) {
	pubType, ok := csvPublicationType(row[csvColType])
	if !ok {
		return nil, nil
	}
	title := row[csvColTitle]
	if title == "" {
		return nil, nil
	}

	lang := strings.ToLower(row[csvColLanguage])
	if lang == "" {
		lang = "en"
	}

	rec := &domain.NormalizedRecord{
		Identifier:      row[csvColIdentifier],
		Source:          "csv",
		PublicationType: pubType,
		Title:           mergeMultilingual(nil, lang, title),
		DOI:             row[csvColDOI],
		Volume:          row[csvColVolume],
		Issue:           row[csvColIssue],
	}

	switch pubType {
	case domain.JournalPublication:
		if row[csvColJournal] == "" {
			return nil, nil
		}
		rec.Journal = &domain.JournalRef{
			Name: mergeMultilingual(nil, lang, row[csvColJournal]),
			ISSN: row[csvColISSN],
		}
	case domain.ProceedingsPublication:
		if row[csvColEvent] == "" {
			return nil, nil
		}
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, lang, row[csvColEvent])}
	}

	rec.Contributions = authorContributions(strings.Split(row[csvColAuthors], ";"))
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	if abstract := row[csvColAbstract]; abstract != "" {
		rec.Description = mergeMultilingual(nil, lang, abstract)
	}
	for _, kw := range strings.Split(row[csvColKeywords], ";") {
		rec.Keywords = mergeMultilingual(rec.Keywords, lang, strings.TrimSpace(kw))
	}

	pages := parsePageRange(row[csvColPages])
	rec.StartPage, rec.EndPage, rec.NumberOfPages = pages.Start, pages.End, pages.NumberOfPages

	if year, err := strconv.Atoi(row[csvColYear]); err == nil {
		rec.Year = year
	}
	return rec, nil
}

func csvPublicationType(value string) (domain.PublicationType, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "JOURNAL_PUBLICATION", "JOURNAL", "M21", "M22", "M23", "M24":
		return domain.JournalPublication, true
	case "PROCEEDINGS_PUBLICATION", "PROCEEDINGS", "CONFERENCE", "M33", "M63":
		return domain.ProceedingsPublication, true
	}
	return "", false
}
