package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// OpenAlexWork is one raw work from an OpenAlex dump or API page.
type OpenAlexWork struct {
	ID                    string                `json:"id"`
	DOI                   string                `json:"doi"`
	Title                 string                `json:"title"`
	DisplayName           string                `json:"display_name"`
	PublicationYear       int                   `json:"publication_year"`
	Language              string                `json:"language"`
	TypeCrossref          string                `json:"type_crossref"`
	Authorships           []OpenAlexAuthorship  `json:"authorships"`
	PrimaryLocation       *OpenAlexLocation     `json:"primary_location"`
	Biblio                OpenAlexBiblio        `json:"biblio"`
	Keywords              []OpenAlexKeyword     `json:"keywords"`
	AbstractInvertedIndex map[string][]int      `json:"abstract_inverted_index"`
	IDs                   map[string]string     `json:"ids"`
}

type OpenAlexAuthorship struct {
	AuthorPosition  string `json:"author_position"`
	IsCorresponding bool   `json:"is_corresponding"`
	Author          struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		ORCID       string `json:"orcid"`
	} `json:"author"`
	Institutions []struct {
		DisplayName string `json:"display_name"`
	} `json:"institutions"`
}

type OpenAlexLocation struct {
	Source *struct {
		DisplayName string `json:"display_name"`
		ISSNL       string `json:"issn_l"`
		Type        string `json:"type"`
	} `json:"source"`
}

type OpenAlexBiblio struct {
	Volume    string `json:"volume"`
	Issue     string `json:"issue"`
	FirstPage string `json:"first_page"`
	LastPage  string `json:"last_page"`
}

type OpenAlexKeyword struct {
	DisplayName string `json:"display_name"`
}

// ParseOpenAlex reads either a JSON array of works or an API results page.
func ParseOpenAlex(r io.Reader) ([]OpenAlexWork, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read openalex input: %w", err)
	}
	var works []OpenAlexWork
	if err := json.Unmarshal(data, &works); err == nil {
		return works, nil
	}
	var page struct {
		Results []OpenAlexWork `json:"results"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("parse openalex input: %w", err)
	}
	return page.Results, nil
}

// ConvertOpenAlexWork normalizes one OpenAlex work, classifying on the
// Crossref type. Source-author order is preserved and the corresponding
// flag honored.
func ConvertOpenAlexWork(work OpenAlexWork) (*domain.NormalizedRecord, error) {
	var pubType domain.PublicationType
	switch work.TypeCrossref {
	case "journal-article":
		pubType = domain.JournalPublication
	case "proceedings-article":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	title := work.Title
	if title == "" {
		title = work.DisplayName
	}
	if title == "" {
		return nil, nil
	}
	if work.PrimaryLocation == nil || work.PrimaryLocation.Source == nil || work.PrimaryLocation.Source.DisplayName == "" {
		return nil, nil
	}

	lang := work.Language
	if lang == "" {
		lang = "en"
	}

	rec := &domain.NormalizedRecord{
		Identifier:      strings.TrimPrefix(work.ID, "https://openalex.org/"),
		Source:          "openalex",
		PublicationType: pubType,
		Title:           mergeMultilingual(nil, lang, title),
		OpenAlexID:      strings.TrimPrefix(work.ID, "https://openalex.org/"),
		DOI:             strings.TrimPrefix(work.DOI, "https://doi.org/"),
		Volume:          work.Biblio.Volume,
		Issue:           work.Biblio.Issue,
		Year:            work.PublicationYear,
	}

	venue := work.PrimaryLocation.Source.DisplayName
	switch pubType {
	case domain.JournalPublication:
		rec.Journal = &domain.JournalRef{
			Name: mergeMultilingual(nil, lang, venue),
			ISSN: work.PrimaryLocation.Source.ISSNL,
		}
	case domain.ProceedingsPublication:
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, lang, venue)}
	}

	order := 1
	for _, authorship := range work.Authorships {
		person, ok := parsePersonName(authorship.Author.DisplayName)
		if !ok {
			continue
		}
		contrib := domain.Contribution{
			Person:          person,
			ORCID:           strings.TrimPrefix(authorship.Author.ORCID, "https://orcid.org/"),
			OrderNumber:     order,
			Role:            domain.RoleAuthor,
			IsCorresponding: authorship.IsCorresponding,
		}
		for _, inst := range authorship.Institutions {
			if inst.DisplayName != "" {
				contrib.Institutions = append(contrib.Institutions, inst.DisplayName)
			}
		}
		rec.Contributions = append(rec.Contributions, contrib)
		order++
	}
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	if abstract := reconstructAbstract(work.AbstractInvertedIndex); abstract != "" {
		rec.Description = mergeMultilingual(nil, lang, abstract)
	}
	for _, kw := range work.Keywords {
		rec.Keywords = mergeMultilingual(rec.Keywords, lang, kw.DisplayName)
	}

	rec.StartPage = work.Biblio.FirstPage
	rec.EndPage = work.Biblio.LastPage
	if count, ok := pageCount(work.Biblio.FirstPage, work.Biblio.LastPage); ok {
		rec.NumberOfPages = intPtr(count)
	}
	return rec, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index
// format {"word": [pos, ...]}.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	maxPos := 0
	for _, positions := range invertedIndex {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	words := make([]string, maxPos+1)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 && pos <= maxPos {
				words[pos] = word
			}
		}
	}

	var sb strings.Builder
	for _, word := range words {
		if word != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(word)
		}
	}
	return sb.String()
}
