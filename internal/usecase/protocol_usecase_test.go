package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/metadata"
	"github.com/sci2zero/cris-exchange/internal/oaipmh"
	"github.com/sci2zero/cris-exchange/internal/registry"
)

// ---------- fakes ----------

type fakeExportStore struct {
	records []domain.ExportRecord
	queries int
}

func (f *fakeExportStore) Query(_ context.Context, q domain.ExportQuery) ([]domain.ExportRecord, int, error) {
	f.queries++
	var matched []domain.ExportRecord
	for _, r := range f.records {
		if r.Kind != q.Kind {
			continue
		}
		if q.From != nil && r.LastUpdated.Before(*q.From) {
			continue
		}
		if q.Until != nil && r.LastUpdated.After(*q.Until) {
			continue
		}
		if len(q.Types) > 0 && !containsString(q.Types, r.Type) {
			continue
		}
		matched = append(matched, r)
	}
	total := len(matched)
	start := q.Page * q.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeExportStore) FindOne(_ context.Context, q domain.IdentifierQuery) (*domain.ExportRecord, error) {
	for i, r := range f.records {
		if len(q.Kinds) > 0 && !containsKind(q.Kinds, r.Kind) {
			continue
		}
		if len(q.Types) > 0 && !containsString(q.Types, r.Type) {
			continue
		}
		if q.DatabaseID != nil && r.DatabaseID != *q.DatabaseID {
			continue
		}
		if q.OldID != nil && !containsInt(r.OldIDs, *q.OldID) {
			continue
		}
		return &f.records[i], nil
	}
	return nil, nil
}

func (f *fakeExportStore) EarliestDatestamp(_ context.Context, _ []int) (*time.Time, error) {
	var earliest *time.Time
	for i := range f.records {
		ts := f.records[i].LastUpdated
		if earliest == nil || ts.Before(*earliest) {
			earliest = &ts
		}
	}
	return earliest, nil
}

func (f *fakeExportStore) Upsert(_ context.Context, rec *domain.ExportRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeExportStore) MarkDeleted(_ context.Context, kind domain.ExportKind, databaseID int) error {
	for i := range f.records {
		if f.records[i].Kind == kind && f.records[i].DatabaseID == databaseID {
			f.records[i].Deleted = true
		}
	}
	return nil
}

type fakeInstitutions struct{ ids []int }

func (f *fakeInstitutions) SubtreeIDs(_ context.Context, _ int) ([]int, error) {
	return f.ids, nil
}

type fakeTokenStore struct {
	tokens map[string]*domain.ResumptionToken
}

func (f *fakeTokenStore) Create(_ context.Context, token *domain.ResumptionToken) error {
	f.tokens[token.Value] = token
	return nil
}

func (f *fakeTokenStore) Exists(_ context.Context, value string) (bool, error) {
	token, ok := f.tokens[value]
	return ok && token.ExpirationDate.After(time.Now()), nil
}

func (f *fakeTokenStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsKind(values []domain.ExportKind, v domain.ExportKind) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// ---------- wiring ----------

const protocolHandlerYAML = `
identifier: uns
repositoryName: CRIS UNS
baseURL: https://cris.example.org/api/export/oai/uns
adminEmail: [admin@example.org]
internalInstitutionId: 1
supportLegacyIdentifiers: true
metadataFormats: [oai_dc, oai_etdms]
typeToIdentifierSuffixMapping:
  PHD_THESIS: T
sets:
  - setSpec: Publications
    setName: Publications
    identifierSetSpec: Publications
    isDefaultSet: true
    entityKind: document
  - setSpec: Theses
    setName: Theses
    identifierSetSpec: Publications
    entityKind: document
    publicationTypes: [PHD_THESIS]
  - setSpec: Persons
    setName: Researchers
    identifierSetSpec: Persons
    entityKind: person
`

func newTestService(t *testing.T, store *fakeExportStore) (*ProtocolService, *fakeTokenStore) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uns.yaml"), []byte(protocolHandlerYAML), 0o644))

	formats := metadata.Default()
	reg, err := registry.New(dir, registry.WithValidator(formats.ValidateAgainst))
	require.NoError(t, err)

	tokens := &fakeTokenStore{tokens: make(map[string]*domain.ResumptionToken)}
	svc := NewProtocolService(reg, store, &fakeInstitutions{ids: []int{1, 2}}, tokens, formats)
	return svc, tokens
}

func documentFixture(id int) domain.ExportRecord {
	return domain.ExportRecord{
		Kind:        domain.KindDocument,
		DatabaseID:  id,
		Type:        "JOURNAL_PUBLICATION",
		LastUpdated: time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC),
		Title: []domain.MultilingualContent{
			{LanguageTag: "en", Content: fmt.Sprintf("Document %d", id), Priority: 1},
		},
		Contributions: []domain.ExportContribution{
			{DisplayName: "Ana Simic", OrderNumber: 1},
		},
		DocumentDate: "2023-06-01",
	}
}

func fixtureStore(n int) *fakeExportStore {
	store := &fakeExportStore{}
	for i := 1; i <= n; i++ {
		store.records = append(store.records, documentFixture(i))
	}
	return store
}

func protocolCode(t *testing.T, err error) string {
	t.Helper()
	var perr *oaipmh.ProtocolError
	require.True(t, errors.As(err, &perr), "expected protocol error, got %v", err)
	return perr.Code
}

var listArgs = ListRequest{
	MetadataPrefix: "oai_dc",
	From:           "2023-01-01",
	Until:          "2023-12-31",
}

// ---------- ListRecords ----------

func TestListRecordsPagination(t *testing.T) {
	store := fixtureStore(25)
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	seen := make(map[string]bool)
	req := listArgs
	pages := 0
	for {
		result, err := svc.ListRecords(ctx, "uns", req)
		require.NoError(t, err)
		pages++

		for _, rec := range result.Records {
			assert.False(t, seen[rec.Header.Identifier], "identifier %s repeated across pages", rec.Header.Identifier)
			seen[rec.Header.Identifier] = true
			assert.Equal(t, "2023-06-15", rec.Header.Datestamp)
			assert.Equal(t, []string{"Publications"}, rec.Header.SetSpec)
			require.NotNil(t, rec.Metadata)
		}

		if result.Token == nil {
			assert.Len(t, result.Records, 5, "final page carries the remainder")
			break
		}
		assert.Len(t, result.Records, PageSize)
		assert.Equal(t, 25, result.Token.CompleteListSize)
		assert.Equal(t, (pages-1)*PageSize, result.Token.Cursor)
		req = ListRequest{ResumptionToken: result.Token.Token}
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 25, "pagination covers the complete list exactly once")
}

func TestListRecordsCannotDisseminateFormatSkipsQuery(t *testing.T) {
	store := fixtureStore(3)
	svc, _ := newTestService(t, store)

	req := listArgs
	req.MetadataPrefix = "marcxml"
	_, err := svc.ListRecords(context.Background(), "uns", req)
	assert.Equal(t, oaipmh.CodeCannotDisseminateFormat, protocolCode(t, err))
	assert.Equal(t, 0, store.queries, "format check must precede the store query")
}

func TestListRecordsNoRecordsMatch(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	req := listArgs
	req.From, req.Until = "2001-01-01", "2001-12-31"
	_, err := svc.ListRecords(context.Background(), "uns", req)
	assert.Equal(t, oaipmh.CodeNoRecordsMatch, protocolCode(t, err))
}

func TestListRecordsUnknownSetNoRecordsMatch(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	req := listArgs
	req.Set = "Nonexistent"
	_, err := svc.ListRecords(context.Background(), "uns", req)
	assert.Equal(t, oaipmh.CodeNoRecordsMatch, protocolCode(t, err))
}

func TestListRecordsBadArguments(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))
	ctx := context.Background()

	_, err := svc.ListRecords(ctx, "uns", ListRequest{MetadataPrefix: "oai_dc"})
	assert.Equal(t, oaipmh.CodeBadArgument, protocolCode(t, err))

	// The resumption token is exclusive.
	req := listArgs
	req.ResumptionToken = "whatever"
	_, err = svc.ListRecords(ctx, "uns", req)
	assert.Equal(t, oaipmh.CodeBadArgument, protocolCode(t, err))
}

func TestListRecordsBadResumptionToken(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	_, err := svc.ListRecords(context.Background(), "uns", ListRequest{ResumptionToken: "never-minted"})
	assert.Equal(t, oaipmh.CodeBadResumptionToken, protocolCode(t, err))
}

func TestListRecordsExpiredResumptionToken(t *testing.T) {
	svc, tokens := newTestService(t, fixtureStore(25))
	ctx := context.Background()

	result, err := svc.ListRecords(ctx, "uns", listArgs)
	require.NoError(t, err)
	require.NotNil(t, result.Token)

	tokens.tokens[result.Token.Token].ExpirationDate = time.Now().Add(-time.Minute)
	_, err = svc.ListRecords(ctx, "uns", ListRequest{ResumptionToken: result.Token.Token})
	assert.Equal(t, oaipmh.CodeBadResumptionToken, protocolCode(t, err))
}

func TestListRecordsTombstoneTerminatesPage(t *testing.T) {
	store := fixtureStore(5)
	store.records[2].Deleted = true
	svc, _ := newTestService(t, store)

	result, err := svc.ListRecords(context.Background(), "uns", listArgs)
	require.NoError(t, err)

	// Two live records, then the tombstone header closes the list.
	require.Len(t, result.Records, 3)
	assert.Equal(t, "", result.Records[0].Header.Status)
	assert.Equal(t, "deleted", result.Records[2].Header.Status)
	assert.Nil(t, result.Records[2].Metadata)
}

func TestListIdentifiersReturnsAllHeaders(t *testing.T) {
	store := fixtureStore(5)
	store.records[2].Deleted = true
	svc, _ := newTestService(t, store)

	req := listArgs
	req.IdentifiersOnly = true
	result, err := svc.ListRecords(context.Background(), "uns", req)
	require.NoError(t, err)

	// Tombstones do not terminate a header-only listing.
	require.Len(t, result.Headers, 5)
	assert.Empty(t, result.Records)
	assert.Equal(t, "deleted", result.Headers[2].Status)
}

func TestListRecordsTypedSetFilters(t *testing.T) {
	store := fixtureStore(4)
	store.records[1].Type = "PHD_THESIS"
	svc, _ := newTestService(t, store)

	req := listArgs
	req.Set = "Theses"
	result, err := svc.ListRecords(context.Background(), "uns", req)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Contains(t, result.Records[0].Header.Identifier, "TESLARIS2_T")
	assert.Equal(t, []string{"Theses"}, result.Records[0].Header.SetSpec)
}

// ---------- GetRecord ----------

func TestGetRecord(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	rec, err := svc.GetRecord(context.Background(), "uns", "oai_dc", "oai:CRIS UNS:Publications/TESLARIS2")
	require.NoError(t, err)
	require.NotNil(t, rec.Metadata)
	assert.Equal(t, "oai:CRIS UNS:Publications/TESLARIS2", rec.Header.Identifier)
}

func TestGetRecordImplicitPublicationsSet(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	// Identifier without a set segment falls back to the Publications set.
	rec, err := svc.GetRecord(context.Background(), "uns", "oai_dc", "oai:CRIS UNS:TESLARIS2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Publications"}, rec.Header.SetSpec)
}

func TestGetRecordLegacyIdentifier(t *testing.T) {
	store := fixtureStore(3)
	store.records[0].OldIDs = []int{900}
	svc, _ := newTestService(t, store)

	rec, err := svc.GetRecord(context.Background(), "uns", "oai_dc", "oai:CRIS UNS:Publications/BISIS900")
	require.NoError(t, err)
	assert.Equal(t, "oai:CRIS UNS:Publications/BISIS900", rec.Header.Identifier)
}

func TestGetRecordTypeSuffixNarrows(t *testing.T) {
	store := fixtureStore(2)
	store.records[1].Type = "PHD_THESIS"
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	rec, err := svc.GetRecord(ctx, "uns", "oai_dc", "oai:CRIS UNS:Publications/TESLARIS2_T")
	require.NoError(t, err)
	assert.Contains(t, rec.Header.Identifier, "_T")

	// The suffix excludes records of other types sharing the id space.
	_, err = svc.GetRecord(ctx, "uns", "oai_dc", "oai:CRIS UNS:Publications/TESLARIS1_T")
	assert.Equal(t, oaipmh.CodeIDDoesNotExist, protocolCode(t, err))
}

func TestGetRecordNotFound(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))
	ctx := context.Background()

	_, err := svc.GetRecord(ctx, "uns", "oai_dc", "oai:CRIS UNS:Publications/TESLARIS999")
	assert.Equal(t, oaipmh.CodeIDDoesNotExist, protocolCode(t, err))

	_, err = svc.GetRecord(ctx, "uns", "oai_dc", "oai:CRIS UNS:Publications/garbage")
	assert.Equal(t, oaipmh.CodeIDDoesNotExist, protocolCode(t, err))
}

func TestGetRecordTombstone(t *testing.T) {
	store := fixtureStore(3)
	store.records[1].Deleted = true
	svc, _ := newTestService(t, store)

	rec, err := svc.GetRecord(context.Background(), "uns", "oai_dc", "oai:CRIS UNS:Publications/TESLARIS2")
	require.NoError(t, err)
	assert.Equal(t, "deleted", rec.Header.Status)
	assert.Nil(t, rec.Metadata)
}

func TestGetRecordBadFormat(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	_, err := svc.GetRecord(context.Background(), "uns", "marcxml", "oai:CRIS UNS:Publications/TESLARIS2")
	assert.Equal(t, oaipmh.CodeCannotDisseminateFormat, protocolCode(t, err))
}

// ---------- Identify / ListSets / ListMetadataFormats ----------

func TestIdentify(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))

	identify, err := svc.Identify(context.Background(), "uns")
	require.NoError(t, err)

	assert.Equal(t, "CRIS UNS", identify.RepositoryName)
	assert.Equal(t, "2.0", identify.ProtocolVersion)
	assert.Equal(t, "persistent", identify.DeletedRecord)
	assert.Equal(t, "YYYY-MM-DD", identify.Granularity)
	assert.Equal(t, "2023-06-15", identify.EarliestDatestamp)
	assert.Equal(t, []string{"gzip", "deflate"}, identify.Compression)
}

func TestListSets(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(1))

	sets, err := svc.ListSets(context.Background(), "uns")
	require.NoError(t, err)
	require.Len(t, sets.Sets, 3)
	assert.Equal(t, "Publications", sets.Sets[0].SetSpec)
}

func TestListMetadataFormats(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(3))
	ctx := context.Background()

	formats, err := svc.ListMetadataFormats(ctx, "uns", "")
	require.NoError(t, err)
	require.Len(t, formats.MetadataFormats, 2)
	assert.Equal(t, "oai_dc", formats.MetadataFormats[0].MetadataPrefix)
	assert.NotEmpty(t, formats.MetadataFormats[0].Schema)

	// With an identifier the record must exist.
	_, err = svc.ListMetadataFormats(ctx, "uns", "oai:CRIS UNS:Publications/TESLARIS999")
	assert.Equal(t, oaipmh.CodeIDDoesNotExist, protocolCode(t, err))

	formats, err = svc.ListMetadataFormats(ctx, "uns", "oai:CRIS UNS:Publications/TESLARIS1")
	require.NoError(t, err)
	assert.Len(t, formats.MetadataFormats, 2)
}

func TestListMetadataFormatsTypeSuffixNarrows(t *testing.T) {
	store := fixtureStore(2)
	store.records[1].Type = "PHD_THESIS"
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	formats, err := svc.ListMetadataFormats(ctx, "uns", "oai:CRIS UNS:Publications/TESLARIS2_T")
	require.NoError(t, err)
	assert.Len(t, formats.MetadataFormats, 2)

	// The suffix excludes records of other types sharing the id space,
	// matching GetRecord.
	_, err = svc.ListMetadataFormats(ctx, "uns", "oai:CRIS UNS:Publications/TESLARIS1_T")
	assert.Equal(t, oaipmh.CodeIDDoesNotExist, protocolCode(t, err))
}

func TestUnknownHandlerIsLoadingError(t *testing.T) {
	svc, _ := newTestService(t, fixtureStore(1))

	_, err := svc.Identify(context.Background(), "ghost")
	var loadErr *registry.LoadingError
	assert.True(t, errors.As(err, &loadErr))
}
