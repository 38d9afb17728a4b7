package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// ScindeksExport is the XML export of the Serbian citation index. Titles
// and abstracts come bilingual (Serbian and English).
type ScindeksExport struct {
	XMLName  xml.Name          `xml:"articles"`
	Articles []ScindeksArticle `xml:"article"`
}

type ScindeksArticle struct {
	ID          string             `xml:"id,attr"`
	ContentType string             `xml:"content-type,attr"`
	Titles      []ScindeksLangText `xml:"title"`
	Abstracts   []ScindeksLangText `xml:"abstract"`
	Keywords    []ScindeksLangText `xml:"keywords"`
	Journal     string             `xml:"journal"`
	ISSN        string             `xml:"issn"`
	Event       string             `xml:"event"`
	Authors     []string           `xml:"authors>author"`
	DOI         string             `xml:"doi"`
	Volume      string             `xml:"volume"`
	Issue       string             `xml:"issue"`
	Pages       string             `xml:"pages"`
	Year        string             `xml:"year"`
}

type ScindeksLangText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// ParseScindeks reads a Scindeks XML article export.
func ParseScindeks(r io.Reader) ([]ScindeksArticle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scindeks input: %w", err)
	}
	var export ScindeksExport
	if err := xml.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse scindeks input: %w", err)
	}
	return export.Articles, nil
}

// ConvertScindeksArticle normalizes one Scindeks article, classifying on
// the content-type attribute and merging the bilingual fields
// multilingually.
func ConvertScindeksArticle(article ScindeksArticle) (*domain.NormalizedRecord, error) {
	var pubType domain.PublicationType
	switch article.ContentType {
	case "article", "review", "preliminary-communication":
		pubType = domain.JournalPublication
	case "conference-paper", "proceedings":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Identifier:      article.ID,
		Source:          "scindeks",
		PublicationType: pubType,
		DOI:             article.DOI,
		Volume:          article.Volume,
		Issue:           article.Issue,
	}

	for _, t := range article.Titles {
		rec.Title = mergeMultilingual(rec.Title, scindeksLang(t.Lang), t.Value)
	}
	if len(rec.Title) == 0 {
		return nil, nil
	}
	for _, a := range article.Abstracts {
		rec.Description = mergeMultilingual(rec.Description, scindeksLang(a.Lang), a.Value)
	}
	for _, k := range article.Keywords {
		for _, kw := range strings.Split(k.Value, ";") {
			rec.Keywords = mergeMultilingual(rec.Keywords, scindeksLang(k.Lang), strings.TrimSpace(kw))
		}
	}

	switch pubType {
	case domain.JournalPublication:
		if article.Journal == "" {
			return nil, nil
		}
		rec.Journal = &domain.JournalRef{
			Name: mergeMultilingual(nil, "sr", article.Journal),
			ISSN: article.ISSN,
		}
	case domain.ProceedingsPublication:
		if article.Event == "" {
			return nil, nil
		}
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, "sr", article.Event)}
	}

	rec.Contributions = authorContributions(article.Authors)
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	pages := parsePageRange(article.Pages)
	rec.StartPage, rec.EndPage, rec.NumberOfPages = pages.Start, pages.End, pages.NumberOfPages

	if year, err := strconv.Atoi(article.Year); err == nil {
		rec.Year = year
	}
	return rec, nil
}

func scindeksLang(lang string) string {
	if lang == "" {
		return "sr"
	}
	return strings.ToLower(lang)
}
