package domain

import "time"

// PublicationType is the canonical type vocabulary every ingest source maps
// into. Records of any other kind produce no normalized record.
type PublicationType string

const (
	JournalPublication     PublicationType = "JOURNAL_PUBLICATION"
	ProceedingsPublication PublicationType = "PROCEEDINGS_PUBLICATION"
)

// ContributionRole for normalized contributions.
type ContributionRole string

const (
	RoleAuthor ContributionRole = "AUTHOR"
	RoleEditor ContributionRole = "EDITOR"
)

// Contribution is one person's part in a normalized record. OrderNumber is
// 1-indexed and assigned in source-author order.
type Contribution struct {
	Person          PersonName       `json:"person"`
	ORCID           string           `json:"orcid,omitempty"`
	Institutions    []string         `json:"institutions,omitempty"`
	OrderNumber     int              `json:"order_number"`
	Role            ContributionRole `json:"role"`
	IsCorresponding bool             `json:"is_corresponding"`
}

// JournalRef is the container of a JOURNAL_PUBLICATION.
type JournalRef struct {
	Name  []MultilingualContent `json:"name"`
	ISSN  string                `json:"issn,omitempty"`
	EISSN string                `json:"eissn,omitempty"`
}

// EventRef is the container of a PROCEEDINGS_PUBLICATION.
type EventRef struct {
	Name  []MultilingualContent `json:"name"`
	Place string                `json:"place,omitempty"`
	From  *time.Time            `json:"from,omitempty"`
	Until *time.Time            `json:"until,omitempty"`
}

// NormalizedRecord is the transient, source-agnostic representation of one
// harvested external publication, handed straight to the primary-store
// loader and never persisted in this form.
//
// A valid record always has a non-empty Title, at least one Contribution,
// and exactly one of Journal/Event matching PublicationType. Converters
// must return no result instead of constructing an invalid record.
type NormalizedRecord struct {
	Identifier      string                `json:"identifier"`
	Source          string                `json:"source"`
	PublicationType PublicationType       `json:"publication_type"`
	Title           []MultilingualContent `json:"title"`
	Description     []MultilingualContent `json:"description,omitempty"`
	Keywords        []MultilingualContent `json:"keywords,omitempty"`
	Contributions   []Contribution        `json:"contributions"`
	Journal         *JournalRef           `json:"journal,omitempty"`
	Event           *EventRef             `json:"event,omitempty"`
	DOI             string                `json:"doi,omitempty"`
	ScopusID        string                `json:"scopus_id,omitempty"`
	OpenAlexID      string                `json:"open_alex_id,omitempty"`
	WebOfScienceID  string                `json:"web_of_science_id,omitempty"`
	StartPage       string                `json:"start_page,omitempty"`
	EndPage         string                `json:"end_page,omitempty"`
	NumberOfPages   *int                  `json:"number_of_pages,omitempty"`
	Volume          string                `json:"volume,omitempty"`
	Issue           string                `json:"issue,omitempty"`
	Year            int                   `json:"year,omitempty"`
}

// Valid reports whether the record satisfies the construction invariant.
func (r *NormalizedRecord) Valid() bool {
	if r == nil || len(r.Title) == 0 || len(r.Contributions) == 0 {
		return false
	}
	switch r.PublicationType {
	case JournalPublication:
		return r.Journal != nil && r.Event == nil
	case ProceedingsPublication:
		return r.Event != nil && r.Journal == nil
	}
	return false
}
