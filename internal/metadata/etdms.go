package metadata

import (
	"encoding/xml"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// ETDMSThesis is the oai_etdms (ETD-MS 1.1) wire model for document-kind
// records. It reuses the DC element set plus the thesis degree block.
type ETDMSThesis struct {
	XMLName        xml.Name `xml:"thesis:thesis"`
	XmlnsThesis    string   `xml:"xmlns:thesis,attr"`
	XmlnsDC        string   `xml:"xmlns:dc,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Titles       []LangValue `xml:"dc:title,omitempty"`
	Creators     []string    `xml:"dc:creator,omitempty"`
	Subjects     []LangValue `xml:"dc:subject,omitempty"`
	Descriptions []LangValue `xml:"dc:description,omitempty"`
	Dates        []string    `xml:"dc:date,omitempty"`
	Types        []string    `xml:"dc:type,omitempty"`
	Identifiers  []string    `xml:"dc:identifier,omitempty"`
	Degree       *Degree     `xml:"thesis:degree,omitempty"`
}

type Degree struct {
	Name       []LangValue `xml:"thesis:name,omitempty"`
	Level      string      `xml:"thesis:level,omitempty"`
	Discipline []LangValue `xml:"thesis:discipline,omitempty"`
	Grantor    []LangValue `xml:"thesis:grantor,omitempty"`
}

type documentETDMS struct{}

func (documentETDMS) Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	t := &ETDMSThesis{
		XmlnsThesis:    "http://www.ndltd.org/standards/metadata/etdms/1.1/",
		XmlnsDC:        "http://purl.org/dc/elements/1.1/",
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.ndltd.org/standards/metadata/etdms/1.1/ http://www.ndltd.org/standards/metadata/etdms/1.1/etdms11.xsd",
	}
	t.Titles = langValues(rec.Title, opts.Languages)
	t.Creators = contributorNames(rec.Contributions)
	t.Subjects = langValues(rec.Keywords, opts.Languages)
	t.Descriptions = langValues(rec.Description, opts.Languages)
	if rec.DocumentDate != "" {
		t.Dates = []string{rec.DocumentDate}
	}
	if rec.Type != "" {
		t.Types = []string{rec.Type}
	}
	if rec.DOI != "" {
		t.Identifiers = append(t.Identifiers, "https://doi.org/"+rec.DOI)
	}
	t.Identifiers = append(t.Identifiers, rec.URLs...)
	if level, ok := thesisLevels[rec.Type]; ok {
		// The degree grantor is the candidate's first listed institution.
		var grantor []LangValue
		for _, c := range rec.Contributions {
			if len(c.Institutions) > 0 {
				grantor = []LangValue{{Value: c.Institutions[0]}}
				break
			}
		}
		t.Degree = &Degree{Level: level, Grantor: grantor}
	}
	return t, nil
}

// thesisLevels maps thesis publication types to the ETD-MS level code.
var thesisLevels = map[string]string{
	"PHD":             "2",
	"PHD_ART_PROJECT": "2",
	"MASTER":          "1",
	"BACHELOR":        "0",
}
