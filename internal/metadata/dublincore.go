package metadata

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// DublinCore is the oai_dc wire model.
type DublinCore struct {
	XMLName        xml.Name `xml:"oai_dc:dc"`
	XmlnsOaiDC     string   `xml:"xmlns:oai_dc,attr"`
	XmlnsDC        string   `xml:"xmlns:dc,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Titles       []LangValue `xml:"dc:title,omitempty"`
	Creators     []string    `xml:"dc:creator,omitempty"`
	Subjects     []LangValue `xml:"dc:subject,omitempty"`
	Descriptions []LangValue `xml:"dc:description,omitempty"`
	Dates        []string    `xml:"dc:date,omitempty"`
	Types        []string    `xml:"dc:type,omitempty"`
	Sources      []LangValue `xml:"dc:source,omitempty"`
	Identifiers  []string    `xml:"dc:identifier,omitempty"`
	Languages    []string    `xml:"dc:language,omitempty"`
	Relations    []string    `xml:"dc:relation,omitempty"`
	Coverages    []LangValue `xml:"dc:coverage,omitempty"`
}

type LangValue struct {
	Lang  string `xml:"xml:lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

func newDublinCore() *DublinCore {
	return &DublinCore{
		XmlnsOaiDC:     "http://www.openarchives.org/OAI/2.0/oai_dc/",
		XmlnsDC:        "http://purl.org/dc/elements/1.1/",
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
	}
}

// langValues filters multilingual content down to the handler's supported
// languages (all when unrestricted) and orders it by priority.
func langValues(content []domain.MultilingualContent, languages []string) []LangValue {
	allowed := func(tag string) bool {
		if len(languages) == 0 {
			return true
		}
		for _, l := range languages {
			if strings.EqualFold(l, tag) {
				return true
			}
		}
		return false
	}

	sorted := make([]domain.MultilingualContent, 0, len(content))
	for _, c := range content {
		if c.Content != "" && allowed(c.LanguageTag) {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	out := make([]LangValue, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, LangValue{Lang: c.LanguageTag, Value: c.Content})
	}
	return out
}

func contributorNames(contribs []domain.ExportContribution) []string {
	sorted := make([]domain.ExportContribution, len(contribs))
	copy(sorted, contribs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderNumber < sorted[j].OrderNumber })
	names := make([]string, 0, len(sorted))
	for _, c := range sorted {
		if c.DisplayName != "" {
			names = append(names, c.DisplayName)
		}
	}
	return names
}

// ---------- document ----------

type documentDublinCore struct{}

func (documentDublinCore) Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	dc := newDublinCore()
	dc.Titles = langValues(rec.Title, opts.Languages)
	dc.Creators = contributorNames(rec.Contributions)
	dc.Subjects = langValues(rec.Keywords, opts.Languages)
	dc.Descriptions = langValues(rec.Description, opts.Languages)
	if rec.DocumentDate != "" {
		dc.Dates = []string{rec.DocumentDate}
	}
	if rec.Type != "" {
		dc.Types = []string{rec.Type}
	}
	dc.Sources = langValues(rec.JournalName, opts.Languages)
	if len(dc.Sources) == 0 {
		dc.Sources = langValues(rec.EventName, opts.Languages)
	}
	if rec.DOI != "" {
		dc.Identifiers = append(dc.Identifiers, "https://doi.org/"+rec.DOI)
	}
	dc.Identifiers = append(dc.Identifiers, rec.URLs...)
	return dc, nil
}

// ---------- person ----------

type personDublinCore struct{}

func (personDublinCore) Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	dc := newDublinCore()
	if rec.PersonName != nil {
		name := strings.TrimSpace(strings.Join([]string{
			rec.PersonName.FirstName, rec.PersonName.MiddleName, rec.PersonName.LastName,
		}, " "))
		dc.Titles = []LangValue{{Value: strings.Join(strings.Fields(name), " ")}}
	}
	for _, aff := range rec.Affiliations {
		dc.Relations = append(dc.Relations, aff)
	}
	if rec.ORCID != "" {
		dc.Identifiers = append(dc.Identifiers, "https://orcid.org/"+rec.ORCID)
	}
	return dc, nil
}

// ---------- organisation unit ----------

type orgUnitDublinCore struct{}

func (orgUnitDublinCore) Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	dc := newDublinCore()
	dc.Titles = langValues(rec.Title, opts.Languages)
	if rec.Acronym != "" {
		dc.Descriptions = append(dc.Descriptions, LangValue{Value: rec.Acronym})
	}
	return dc, nil
}

// ---------- event ----------

type eventDublinCore struct{}

func (eventDublinCore) Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	dc := newDublinCore()
	dc.Titles = langValues(rec.Title, opts.Languages)
	dc.Descriptions = langValues(rec.Description, opts.Languages)
	if rec.EventDateFrom != nil {
		date := rec.EventDateFrom.Format("2006-01-02")
		if rec.EventDateTo != nil {
			date = fmt.Sprintf("%s/%s", date, rec.EventDateTo.Format("2006-01-02"))
		}
		dc.Dates = []string{date}
	}
	if rec.Place != "" {
		dc.Coverages = []LangValue{{Value: rec.Place}}
	}
	return dc, nil
}
