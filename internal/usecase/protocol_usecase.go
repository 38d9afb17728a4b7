package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/metadata"
	"github.com/sci2zero/cris-exchange/internal/oaipmh"
	"github.com/sci2zero/cris-exchange/internal/registry"
)

// PageSize is the fixed harvest page size.
const PageSize = 10

// ProtocolService orchestrates the five OAI-PMH verbs. It is stateless per
// call; the logical ListRecords session spans requests chained by
// resumption tokens, with all state externalized to the token store.
type ProtocolService struct {
	registry     *registry.Registry
	store        domain.ExportRecordStore
	institutions domain.InstitutionStore
	tokens       domain.ResumptionTokenStore
	formats      *metadata.Registry
}

func NewProtocolService(
	reg *registry.Registry,
	store domain.ExportRecordStore,
	institutions domain.InstitutionStore,
	tokens domain.ResumptionTokenStore,
	formats *metadata.Registry,
) *ProtocolService {
	return &ProtocolService{
		registry:     reg,
		store:        store,
		institutions: institutions,
		tokens:       tokens,
		formats:      formats,
	}
}

// handlerFor resolves the endpoint configuration. An unknown handler is a
// configuration fault, not a protocol-level error: the endpoint itself
// does not exist.
func (s *ProtocolService) handlerFor(handlerID string) (*registry.HandlerConfiguration, error) {
	h, ok := s.registry.Get(handlerID)
	if !ok {
		return nil, &registry.LoadingError{Err: fmt.Errorf("unknown handler %q", handlerID)}
	}
	return h, nil
}

func (s *ProtocolService) scopeFor(ctx context.Context, h *registry.HandlerConfiguration) ([]int, error) {
	ids, err := s.institutions.SubtreeIDs(ctx, h.InternalInstitutionID)
	if err != nil {
		return nil, fmt.Errorf("resolve institution subtree: %w", err)
	}
	return ids, nil
}

// ---------- ListRecords / ListIdentifiers ----------

// ListRequest carries the harvest arguments of a ListRecords or
// ListIdentifiers call.
type ListRequest struct {
	MetadataPrefix  string
	From            string
	Until           string
	Set             string
	ResumptionToken string
	IdentifiersOnly bool
}

// ListResult is one harvest page. Records is populated for ListRecords,
// Headers for ListIdentifiers; Token is nil on the final page.
type ListResult struct {
	Records []oaipmh.Record
	Headers []oaipmh.Header
	Token   *oaipmh.ResumptionTokenElem
}

func (s *ProtocolService) ListRecords(ctx context.Context, handlerID string, req ListRequest) (*ListResult, error) {
	h, err := s.handlerFor(handlerID)
	if err != nil {
		return nil, err
	}

	page := 0
	if req.ResumptionToken != "" {
		if req.MetadataPrefix != "" || req.From != "" || req.Until != "" || req.Set != "" {
			return nil, oaipmh.BadArgument("resumptionToken is an exclusive argument")
		}
		// Tokens are opaque to clients: an incoming token must match a
		// persisted, unexpired one before its embedded cursor is trusted.
		ok, err := s.tokens.Exists(ctx, req.ResumptionToken)
		if err != nil {
			return nil, fmt.Errorf("look up resumption token: %w", err)
		}
		if !ok {
			return nil, oaipmh.Errorf(oaipmh.CodeBadResumptionToken, "resumption token is invalid or expired")
		}
		state, err := decodeTokenValue(req.ResumptionToken)
		if err != nil {
			return nil, oaipmh.Errorf(oaipmh.CodeBadResumptionToken, "malformed resumption token: %v", err)
		}
		req.From, req.Until, req.Set, req.MetadataPrefix = state.From, state.Until, state.Set, state.Format
		page = state.NextPage
	}

	if req.MetadataPrefix == "" || req.From == "" || req.Until == "" {
		return nil, oaipmh.BadArgument("from, until and metadataPrefix are required")
	}
	if len(h.Sets) == 0 {
		return nil, &registry.LoadingError{Err: fmt.Errorf("handler %q has no sets configured", handlerID)}
	}
	if !h.SupportsFormat(req.MetadataPrefix) {
		return nil, oaipmh.Errorf(oaipmh.CodeCannotDisseminateFormat, "format %q is not supported by this repository", req.MetadataPrefix)
	}

	var set *registry.SetConfiguration
	if req.Set == "" {
		set = h.DefaultSet()
	} else {
		set = h.SetBySpec(req.Set)
	}
	if set == nil || set.EntityKind == "" {
		return nil, oaipmh.NoRecordsMatch()
	}

	key := metadata.Key{Kind: set.EntityKind, Format: req.MetadataPrefix}
	if _, err := s.formats.Resolve(key); err != nil {
		// New formats and entities arrive independently; a missing
		// strategy is a per-request degradation, not a fault.
		return nil, oaipmh.NoRecordsMatch()
	}

	from, err := time.Parse(oaipmh.DateFormat, req.From)
	if err != nil {
		return nil, oaipmh.BadArgument("from is not a valid YYYY-MM-DD date")
	}
	until, err := time.Parse(oaipmh.DateFormat, req.Until)
	if err != nil {
		return nil, oaipmh.BadArgument("until is not a valid YYYY-MM-DD date")
	}
	until = until.Add(24*time.Hour - time.Second)

	instIDs, err := s.scopeFor(ctx, h)
	if err != nil {
		return nil, err
	}

	query := domain.ExportQuery{
		From:           &from,
		Until:          &until,
		InstitutionIDs: instIDs,
		ActiveOnly:     h.ExportOnlyActiveEmployees,
		Kind:           set.EntityKind,
		Types:          set.PublicationTypes,
		Page:           page,
		PageSize:       PageSize,
	}
	for _, f := range set.ConcreteTypeFilters {
		query.ConcreteTypeFilters = append(query.ConcreteTypeFilters, domain.ConcreteTypeFilter{
			Field: f.Field, Allowed: f.Allowed,
		})
	}
	for _, f := range set.AdditionalFilters {
		query.FieldFilters = append(query.FieldFilters, domain.FieldFilter{Field: f.Field, Value: f.Value})
	}

	records, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query export store: %w", err)
	}
	if total == 0 {
		return nil, oaipmh.NoRecordsMatch()
	}

	opts := s.convertOptions(h, set)
	result := &ListResult{}
	for i := range records {
		rec := &records[i]
		header := s.buildHeader(h, set, rec)
		if req.IdentifiersOnly {
			result.Headers = append(result.Headers, header)
			continue
		}
		if rec.Deleted {
			// A tombstone terminates the page's record list.
			result.Records = append(result.Records, oaipmh.Record{Header: header})
			break
		}
		model, err := s.formats.Convert(key, rec, opts)
		if err != nil {
			var noStrategy *metadata.ErrNoStrategy
			if errors.As(err, &noStrategy) {
				return nil, oaipmh.NoRecordsMatch()
			}
			return nil, fmt.Errorf("convert record %s: %w", header.Identifier, err)
		}
		result.Records = append(result.Records, oaipmh.Record{
			Header:   header,
			Metadata: &oaipmh.Metadata{Body: model},
		})
	}

	if (page+1)*PageSize < total {
		state := TokenState{
			From:     req.From,
			Until:    req.Until,
			Set:      set.SetSpec,
			NextPage: page + 1,
			Format:   req.MetadataPrefix,
		}
		token, err := mintToken(ctx, s.tokens, state, h.TokenTTL(), page*PageSize, total)
		if err != nil {
			return nil, err
		}
		result.Token = &oaipmh.ResumptionTokenElem{
			Token:            token.Value,
			ExpirationDate:   token.ExpirationDate.Format(time.RFC3339),
			CompleteListSize: total,
			Cursor:           page * PageSize,
		}
	}
	return result, nil
}

func (s *ProtocolService) convertOptions(h *registry.HandlerConfiguration, set *registry.SetConfiguration) metadata.ConvertOptions {
	opts := metadata.ConvertOptions{
		SupportLegacyIdentifiers: h.SupportLegacyIdentifiers,
		Languages:                h.Languages,
	}
	// The suffix mapping only applies to container-typed (document) sets.
	if set.EntityKind == domain.KindDocument {
		opts.TypeSuffixes = h.TypeToIdentifierSuffix
	}
	return opts
}

func (s *ProtocolService) buildHeader(h *registry.HandlerConfiguration, set *registry.SetConfiguration, rec *domain.ExportRecord) oaipmh.Header {
	header := oaipmh.Header{
		Identifier: BuildIdentifier(h, set, rec),
		Datestamp:  rec.LastUpdated.UTC().Format(oaipmh.DateFormat),
		SetSpec:    []string{set.SetSpec},
	}
	if rec.Deleted {
		header.Status = "deleted"
	}
	return header
}

// ---------- GetRecord ----------

func (s *ProtocolService) GetRecord(ctx context.Context, handlerID, metadataPrefix, identifier string) (*oaipmh.Record, error) {
	h, err := s.handlerFor(handlerID)
	if err != nil {
		return nil, err
	}
	if metadataPrefix == "" || identifier == "" {
		return nil, oaipmh.BadArgument("identifier and metadataPrefix are required")
	}
	if !h.SupportsFormat(metadataPrefix) {
		return nil, oaipmh.Errorf(oaipmh.CodeCannotDisseminateFormat, "format %q is not supported by this repository", metadataPrefix)
	}

	parsed, err := ParseIdentifier(h, identifier)
	if err != nil {
		return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
	}

	set := s.resolveIdentifierSet(h, parsed.SetSpec)
	if set == nil {
		return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
	}

	instIDs, err := s.scopeFor(ctx, h)
	if err != nil {
		return nil, err
	}

	query := domain.IdentifierQuery{
		Kinds:          []domain.ExportKind{set.EntityKind},
		InstitutionIDs: instIDs,
	}
	if parsed.Suffix != "" {
		query.Types = h.TypesForSuffix(parsed.Suffix)
	}
	if parsed.Legacy {
		query.OldID = &parsed.ID
	} else {
		query.DatabaseID = &parsed.ID
	}

	rec, err := s.store.FindOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("look up record: %w", err)
	}
	if rec == nil {
		return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
	}

	header := s.buildHeader(h, set, rec)
	if rec.Deleted {
		return &oaipmh.Record{Header: header}, nil
	}

	key := metadata.Key{Kind: set.EntityKind, Format: metadataPrefix}
	model, err := s.formats.Convert(key, rec, s.convertOptions(h, set))
	if err != nil {
		var noStrategy *metadata.ErrNoStrategy
		if errors.As(err, &noStrategy) {
			return nil, oaipmh.NoRecordsMatch()
		}
		return nil, fmt.Errorf("convert record %s: %w", header.Identifier, err)
	}
	return &oaipmh.Record{Header: header, Metadata: &oaipmh.Metadata{Body: model}}, nil
}

// resolveIdentifierSet matches the identifier-embedded set segment, falling
// back to the implicit Publications (document) set when no segment was
// embedded.
func (s *ProtocolService) resolveIdentifierSet(h *registry.HandlerConfiguration, spec string) *registry.SetConfiguration {
	if spec != "" {
		return h.SetByIdentifierSpec(spec)
	}
	if set := h.SetBySpec("Publications"); set != nil {
		return set
	}
	for i := range h.Sets {
		if h.Sets[i].EntityKind == domain.KindDocument {
			return &h.Sets[i]
		}
	}
	return nil
}

// ---------- Identify / ListSets / ListMetadataFormats ----------

func (s *ProtocolService) Identify(ctx context.Context, handlerID string) (*oaipmh.Identify, error) {
	h, err := s.handlerFor(handlerID)
	if err != nil {
		return nil, err
	}
	instIDs, err := s.scopeFor(ctx, h)
	if err != nil {
		return nil, err
	}
	earliest, err := s.store.EarliestDatestamp(ctx, instIDs)
	if err != nil {
		return nil, fmt.Errorf("query earliest datestamp: %w", err)
	}
	earliestStamp := time.Now().UTC().Format(oaipmh.DateFormat)
	if earliest != nil {
		earliestStamp = earliest.UTC().Format(oaipmh.DateFormat)
	}
	return &oaipmh.Identify{
		RepositoryName:    h.RepositoryName,
		BaseURL:           h.BaseURL,
		ProtocolVersion:   oaipmh.ProtocolVersion,
		AdminEmail:        h.AdminEmail,
		EarliestDatestamp: earliestStamp,
		DeletedRecord:     oaipmh.DeletedRecordPolicy,
		Granularity:       oaipmh.Granularity,
		Compression:       []string{"gzip", "deflate"},
	}, nil
}

func (s *ProtocolService) ListSets(ctx context.Context, handlerID string) (*oaipmh.ListSets, error) {
	h, err := s.handlerFor(handlerID)
	if err != nil {
		return nil, err
	}
	if len(h.Sets) == 0 {
		return nil, oaipmh.Errorf(oaipmh.CodeNoSetHierarchy, "this repository does not support sets")
	}
	out := &oaipmh.ListSets{}
	for _, set := range h.Sets {
		name := set.SetName
		if name == "" {
			name = set.SetSpec
		}
		out.Sets = append(out.Sets, oaipmh.Set{SetSpec: set.SetSpec, SetName: name})
	}
	return out, nil
}

func (s *ProtocolService) ListMetadataFormats(ctx context.Context, handlerID, identifier string) (*oaipmh.ListMetadataFormats, error) {
	h, err := s.handlerFor(handlerID)
	if err != nil {
		return nil, err
	}
	if identifier != "" {
		parsed, err := ParseIdentifier(h, identifier)
		if err != nil {
			return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
		}
		set := s.resolveIdentifierSet(h, parsed.SetSpec)
		if set == nil {
			return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
		}
		instIDs, err := s.scopeFor(ctx, h)
		if err != nil {
			return nil, err
		}
		query := domain.IdentifierQuery{
			Kinds:          []domain.ExportKind{set.EntityKind},
			InstitutionIDs: instIDs,
		}
		if parsed.Suffix != "" {
			query.Types = h.TypesForSuffix(parsed.Suffix)
		}
		if parsed.Legacy {
			query.OldID = &parsed.ID
		} else {
			query.DatabaseID = &parsed.ID
		}
		rec, err := s.store.FindOne(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("look up record: %w", err)
		}
		if rec == nil {
			return nil, oaipmh.Errorf(oaipmh.CodeIDDoesNotExist, "unknown identifier %q", identifier)
		}
	}

	out := &oaipmh.ListMetadataFormats{}
	for _, prefix := range h.MetadataFormats {
		schema, namespace, ok := metadata.SchemaFor(prefix)
		if !ok {
			continue
		}
		out.MetadataFormats = append(out.MetadataFormats, oaipmh.MetadataFormat{
			MetadataPrefix:    prefix,
			Schema:            schema,
			MetadataNamespace: namespace,
		})
	}
	return out, nil
}
