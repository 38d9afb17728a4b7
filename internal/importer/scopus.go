package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// ScopusEntry is one raw record from a Scopus search export.
type ScopusEntry struct {
	Identifier         string          `json:"dc:identifier"`
	EID                string          `json:"eid"`
	Title              string          `json:"dc:title"`
	Description        string          `json:"dc:description"`
	Keywords           string          `json:"authkeywords"`
	SubtypeDescription string          `json:"subtypeDescription"`
	PublicationName    string          `json:"prism:publicationName"`
	ISSN               string          `json:"prism:issn"`
	EISSN              string          `json:"prism:eIssn"`
	Volume             string          `json:"prism:volume"`
	IssueIdentifier    string          `json:"prism:issueIdentifier"`
	PageRange          string          `json:"prism:pageRange"`
	CoverDate          string          `json:"prism:coverDate"`
	DOI                string          `json:"prism:doi"`
	Authors            []ScopusAuthor  `json:"author"`
	Affiliations       []ScopusAffiliation `json:"affiliation"`
}

type ScopusAuthor struct {
	AuthID       string   `json:"authid"`
	GivenName    string   `json:"given-name"`
	Surname      string   `json:"surname"`
	ORCID        string   `json:"orcid"`
	AffiliationIDs []struct {
		ID string `json:"$"`
	} `json:"afid"`
}

type ScopusAffiliation struct {
	ID   string `json:"afid"`
	Name string `json:"affilname"`
}

// ParseScopus reads a Scopus JSON export: either a bare array of entries
// or the search-results envelope.
func ParseScopus(r io.Reader) ([]ScopusEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scopus input: %w", err)
	}

	var entries []ScopusEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var envelope struct {
		SearchResults struct {
			Entries []ScopusEntry `json:"entry"`
		} `json:"search-results"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse scopus input: %w", err)
	}
	return envelope.SearchResults.Entries, nil
}

// scopusJournalSubtypes is the subtypeDescription vocabulary mapped to
// JOURNAL_PUBLICATION; Conference Paper maps to proceedings; everything
// else yields no result.
var scopusJournalSubtypes = map[string]bool{
	"Article":          true,
	"Review":           true,
	"Short Survey":     true,
	"Note":             true,
	"Letter":           true,
	"Editorial":        true,
	"Erratum":          true,
	"Data Paper":       true,
	"Article in Press": true,
}

// ConvertScopusEntry normalizes one Scopus entry. Author affiliations are
// resolved against the entry's own affiliation list by afid.
func ConvertScopusEntry(entry ScopusEntry) (*domain.NormalizedRecord, error) {
	var pubType domain.PublicationType
	switch {
	case scopusJournalSubtypes[entry.SubtypeDescription]:
		pubType = domain.JournalPublication
	case entry.SubtypeDescription == "Conference Paper":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	if entry.Title == "" || entry.PublicationName == "" {
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Identifier:      entry.EID,
		Source:          "scopus",
		PublicationType: pubType,
		Title:           mergeMultilingual(nil, "en", entry.Title),
		ScopusID:        strings.TrimPrefix(entry.Identifier, "SCOPUS_ID:"),
		DOI:             entry.DOI,
		Volume:          entry.Volume,
		Issue:           entry.IssueIdentifier,
	}

	switch pubType {
	case domain.JournalPublication:
		rec.Journal = &domain.JournalRef{
			Name:  mergeMultilingual(nil, "en", entry.PublicationName),
			ISSN:  formatISSN(entry.ISSN),
			EISSN: formatISSN(entry.EISSN),
		}
	case domain.ProceedingsPublication:
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, "en", entry.PublicationName)}
	}

	affiliations := make(map[string]string, len(entry.Affiliations))
	for _, aff := range entry.Affiliations {
		affiliations[aff.ID] = aff.Name
	}
	order := 1
	for _, author := range entry.Authors {
		person := domain.PersonName{FirstName: author.GivenName, LastName: author.Surname}
		if person.LastName == "" {
			continue
		}
		contrib := domain.Contribution{
			Person:      person,
			ORCID:       author.ORCID,
			OrderNumber: order,
			Role:        domain.RoleAuthor,
		}
		for _, afid := range author.AffiliationIDs {
			if name := affiliations[afid.ID]; name != "" {
				contrib.Institutions = append(contrib.Institutions, name)
			}
		}
		rec.Contributions = append(rec.Contributions, contrib)
		order++
	}
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	if entry.Description != "" {
		rec.Description = mergeMultilingual(nil, "en", entry.Description)
	}
	for _, kw := range strings.Split(entry.Keywords, "|") {
		rec.Keywords = mergeMultilingual(rec.Keywords, "en", strings.TrimSpace(kw))
	}

	pages := parsePageRange(entry.PageRange)
	rec.StartPage, rec.EndPage, rec.NumberOfPages = pages.Start, pages.End, pages.NumberOfPages

	if len(entry.CoverDate) >= 4 {
		if year, err := strconv.Atoi(entry.CoverDate[:4]); err == nil {
			rec.Year = year
		}
	}
	return rec, nil
}

// formatISSN normalizes a bare 8-char ISSN to the dashed form.
func formatISSN(issn string) string {
	issn = strings.TrimSpace(issn)
	if len(issn) == 8 && !strings.Contains(issn, "-") {
		return issn[:4] + "-" + issn[4:]
	}
	return issn
}
