package domain

import (
	"context"
	"time"
)

// ExportKind discriminates the denormalized record variants mirrored from
// the primary store for exchange purposes.
type ExportKind string

const (
	KindDocument         ExportKind = "document"
	KindPerson           ExportKind = "person"
	KindOrganisationUnit ExportKind = "organisation-unit"
	KindEvent            ExportKind = "event"
)

// MultilingualContent is one language-tagged fragment of a multilingual
// field, ordered by Priority (lower comes first).
type MultilingualContent struct {
	LanguageTag string `json:"language_tag"`
	Content     string `json:"content"`
	Priority    int    `json:"priority"`
}

// ExportContribution is a denormalized author/editor entry on an export
// document.
type ExportContribution struct {
	DisplayName  string   `json:"display_name"`
	PersonID     int      `json:"person_id,omitempty"`
	Institutions []string `json:"institutions,omitempty"`
	OrderNumber  int      `json:"order_number"`
}

// ExportRecord is the exchange representation of one entity, mirrored from
// the primary store. Identifier construction is deterministic from
// (OldIDs, DatabaseID, Kind) plus handler configuration and never depends
// on display fields.
//
// Deleted is a tombstone: the row is retained forever (OAI-PMH "persistent"
// deleted-record policy) but all content fields are suppressed.
type ExportRecord struct {
	LocalIdentifier               string                `json:"local_identifier"`
	DatabaseID                    int                   `json:"database_id"`
	OldIDs                        []int                 `json:"old_ids,omitempty"`
	LastUpdated                   time.Time             `json:"last_updated"`
	Deleted                       bool                  `json:"deleted"`
	Kind                          ExportKind            `json:"kind"`
	Type                          string                `json:"type,omitempty"`
	RelatedInstitutionIDs         []int                 `json:"related_institution_ids,omitempty"`
	ActivelyRelatedInstitutionIDs []int                 `json:"actively_related_institution_ids,omitempty"`
	Title                         []MultilingualContent `json:"title,omitempty"`
	Description                   []MultilingualContent `json:"description,omitempty"`
	Keywords                      []MultilingualContent `json:"keywords,omitempty"`
	Contributions                 []ExportContribution  `json:"contributions,omitempty"`
	DocumentDate                  string                `json:"document_date,omitempty"`
	DOI                           string                `json:"doi,omitempty"`
	ScopusID                      string                `json:"scopus_id,omitempty"`
	OpenAlexID                    string                `json:"open_alex_id,omitempty"`
	URLs                          []string              `json:"urls,omitempty"`

	// Document extras.
	JournalName []MultilingualContent `json:"journal_name,omitempty"`
	EventName   []MultilingualContent `json:"event_name,omitempty"`
	Volume      string                `json:"volume,omitempty"`
	Issue       string                `json:"issue,omitempty"`
	StartPage   string                `json:"start_page,omitempty"`
	EndPage     string                `json:"end_page,omitempty"`

	// Person extras.
	PersonName   *PersonName `json:"person_name,omitempty"`
	Affiliations []string    `json:"affiliations,omitempty"`
	ORCID        string      `json:"orcid,omitempty"`

	// Organisation-unit extras.
	Acronym string `json:"acronym,omitempty"`

	// Event extras.
	EventDateFrom *time.Time `json:"event_date_from,omitempty"`
	EventDateTo   *time.Time `json:"event_date_to,omitempty"`
	Place         string     `json:"place,omitempty"`
}

type PersonName struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
}

// ConcreteTypeFilter admits a record when the discriminating field is absent
// entirely or its value is in Allowed. Multiple filters AND together.
type ConcreteTypeFilter struct {
	Field   string
	Allowed []string
}

/// FieldFilter is a literal field = value comparison. A "bool:" value prefix
// compares as boolean, otherwise as string.
type FieldFilter struct {
	Field string
	Value string
}

// ExportQuery selects a page of export records for harvesting.
// From/Until are date-granularity bounds on LastUpdated.
type ExportQuery struct {
	From                *time.Time
	Until               *time.Time
	InstitutionIDs      []int
	ActiveOnly          bool
	Kind                ExportKind
	Types               []string
	ConcreteTypeFilters []ConcreteTypeFilter
	FieldFilters        []FieldFilter
	Page                int
	PageSize            int
}

// IdentifierQuery locates a single record for GetRecord. Exactly one of
// DatabaseID/OldID is set, per the identifier scheme prefix. Types narrows
// sibling entity types sharing one id space when the identifier carried a
// type suffix.
type IdentifierQuery struct {
	Kinds          []ExportKind
	Types          []string
	DatabaseID     *int
	OldID          *int
	InstitutionIDs []int
}

// ExportRecordStore is the canonical export store. Query returns one page
// plus the total match count; FindOne returns nil when nothing matches.
type ExportRecordStore interface {
	Query(ctx context.Context, q ExportQuery) ([]ExportRecord, int, error)
	FindOne(ctx context.Context, q IdentifierQuery) (*ExportRecord, error)
	EarliestDatestamp(ctx context.Context, institutionIDs []int) (*time.Time, error)
	Upsert(ctx context.Context, rec *ExportRecord) error
	MarkDeleted(ctx context.Context, kind ExportKind, databaseID int) error
}

// InstitutionStore resolves the institution hierarchy closure: SubtreeIDs
// returns rootID plus every descendant id.
type InstitutionStore interface {
	SubtreeIDs(ctx context.Context, rootID int) ([]int, error)
}

// ResumptionToken is the persisted pagination cursor for a ListRecords
// harvesting session. Tokens are write-once, one per page transition, and
// swept once past ExpirationDate.
type ResumptionToken struct {
	Value            string
	ExpirationDate   time.Time
	CursorOffset     int
	CompleteListSize int
}

type ResumptionTokenStore interface {
	Create(ctx context.Context, token *ResumptionToken) error
	Exists(ctx context.Context, value string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
