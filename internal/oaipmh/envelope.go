package oaipmh

import (
	"encoding/xml"
	"time"
)

const (
	Namespace      = "http://www.openarchives.org/OAI/2.0/"
	XSINamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	SchemaLocation = "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"

	// Repository constants advertised by Identify.
	ProtocolVersion     = "2.0"
	DeletedRecordPolicy = "persistent"
	Granularity         = "YYYY-MM-DD"
)

// DateFormat is the date-only granularity used for datestamps and the
// from/until arguments.
const DateFormat = "2006-01-02"

// Verb names.
const (
	VerbIdentify            = "Identify"
	VerbListMetadataFormats = "ListMetadataFormats"
	VerbListSets            = "ListSets"
	VerbListIdentifiers     = "ListIdentifiers"
	VerbListRecords         = "ListRecords"
	VerbGetRecord           = "GetRecord"
)

// Response is the top-level OAI-PMH envelope. Exactly one of Error or a
// verb payload is set.
type Response struct {
	XMLName        xml.Name `xml:"OAI-PMH"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	ResponseDate string  `xml:"responseDate"`
	Request      Request `xml:"request"`

	Error               *Error               `xml:"error,omitempty"`
	Identify            *Identify            `xml:"Identify,omitempty"`
	ListMetadataFormats *ListMetadataFormats `xml:"ListMetadataFormats,omitempty"`
	ListSets            *ListSets            `xml:"ListSets,omitempty"`
	ListIdentifiers     *ListIdentifiers     `xml:"ListIdentifiers,omitempty"`
	ListRecords         *ListRecords         `xml:"ListRecords,omitempty"`
	GetRecord           *GetRecord           `xml:"GetRecord,omitempty"`
}

// NewResponse returns an envelope with namespaces and responseDate filled.
func NewResponse(baseURL string) *Response {
	return &Response{
		Xmlns:          Namespace,
		XmlnsXSI:       XSINamespace,
		SchemaLocation: SchemaLocation,
		ResponseDate:   time.Now().UTC().Format(time.RFC3339),
		Request:        Request{BaseURL: baseURL},
	}
}

// Request echoes the client's request attributes, as required by the spec.
// Per protocol, attributes are omitted entirely on badVerb/badArgument.
type Request struct {
	Verb            string `xml:"verb,attr,omitempty"`
	Identifier      string `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string `xml:"metadataPrefix,attr,omitempty"`
	From            string `xml:"from,attr,omitempty"`
	Until           string `xml:"until,attr,omitempty"`
	Set             string `xml:"set,attr,omitempty"`
	ResumptionToken string `xml:"resumptionToken,attr,omitempty"`
	BaseURL         string `xml:",chardata"`
}

type Error struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type Identify struct {
	RepositoryName    string   `xml:"repositoryName"`
	BaseURL           string   `xml:"baseURL"`
	ProtocolVersion   string   `xml:"protocolVersion"`
	AdminEmail        []string `xml:"adminEmail"`
	EarliestDatestamp string   `xml:"earliestDatestamp"`
	DeletedRecord     string   `xml:"deletedRecord"`
	Granularity       string   `xml:"granularity"`
	Compression       []string `xml:"compression"`
}

type ListMetadataFormats struct {
	MetadataFormats []MetadataFormat `xml:"metadataFormat"`
}

type MetadataFormat struct {
	MetadataPrefix    string `xml:"metadataPrefix"`
	Schema            string `xml:"schema"`
	MetadataNamespace string `xml:"metadataNamespace"`
}

type ListSets struct {
	Sets []Set `xml:"set"`
}

type Set struct {
	SetSpec string `xml:"setSpec"`
	SetName string `xml:"setName"`
}

type ListRecords struct {
	Records         []Record             `xml:"record"`
	ResumptionToken *ResumptionTokenElem `xml:"resumptionToken,omitempty"`
}

type ListIdentifiers struct {
	Headers         []Header             `xml:"header"`
	ResumptionToken *ResumptionTokenElem `xml:"resumptionToken,omitempty"`
}

type GetRecord struct {
	Record Record `xml:"record"`
}

type Record struct {
	Header   Header    `xml:"header"`
	Metadata *Metadata `xml:"metadata,omitempty"`
}

type Header struct {
	Status     string   `xml:"status,attr,omitempty"` // "deleted" for tombstones
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec,omitempty"`
}

// Metadata wraps the converted per-format model. Body must be a struct with
// its own XMLName and namespace declarations.
type Metadata struct {
	Body any
}

func (m Metadata) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "metadata"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if m.Body != nil {
		if err := e.Encode(m.Body); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

type ResumptionTokenElem struct {
	Token            string `xml:",chardata"`
	ExpirationDate   string `xml:"expirationDate,attr,omitempty"`
	CompleteListSize int    `xml:"completeListSize,attr,omitempty"`
	Cursor           int    `xml:"cursor,attr"`
}
