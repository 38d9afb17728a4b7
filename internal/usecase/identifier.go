package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/registry"
)

// BuildIdentifier constructs the OAI identifier for a record:
//
//	oai:<repoName>:[<identifierSetSpec>/]<prefix><entityId>[_<suffix>]
//
// The legacy-id prefix is used only when the handler supports legacy
// identifiers AND the record actually carries one; otherwise the internal
// prefix and the canonical database id. The type suffix applies to
// document-kind records only and disambiguates sibling types sharing one
// id space.
func BuildIdentifier(h *registry.HandlerConfiguration, set *registry.SetConfiguration, rec *domain.ExportRecord) string {
	var sb strings.Builder
	sb.WriteString("oai:")
	sb.WriteString(h.RepositoryName)
	sb.WriteString(":")
	if set != nil && set.IdentifierSetSpec != "" {
		sb.WriteString(set.IdentifierSetSpec)
		sb.WriteString("/")
	}

	if h.SupportLegacyIdentifiers && len(rec.OldIDs) > 0 {
		sb.WriteString(h.LegacyIdentifierPrefix)
		sb.WriteString(strconv.Itoa(rec.OldIDs[0]))
	} else {
		sb.WriteString(h.InternalIdentifierPrefix)
		sb.WriteString(strconv.Itoa(rec.DatabaseID))
	}

	if rec.Kind == domain.KindDocument {
		if suffix := h.SuffixForType(rec.Type); suffix != "" {
			sb.WriteString("_")
			sb.WriteString(suffix)
		}
	}
	return sb.String()
}

// ParsedIdentifier is the outcome of decomposing an incoming OAI
// identifier.
type ParsedIdentifier struct {
	SetSpec string // identifier-embedded set segment, "" when absent
	Legacy  bool   // id searches oldIds instead of databaseId
	ID      int
	Suffix  string // underscore-delimited type suffix, "" when absent
}

// ParseIdentifier decomposes an identifier produced by BuildIdentifier.
// The "oai:<repoName>:" envelope is tolerated but not required, matching
// harvesters that strip it before re-requesting.
func ParseIdentifier(h *registry.HandlerConfiguration, identifier string) (*ParsedIdentifier, error) {
	rest := identifier
	if strings.HasPrefix(rest, "oai:") {
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed oai identifier %q", identifier)
		}
		if parts[1] != h.RepositoryName {
			return nil, fmt.Errorf("identifier %q does not belong to repository %q", identifier, h.RepositoryName)
		}
		rest = parts[2]
	}

	parsed := &ParsedIdentifier{}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		parsed.SetSpec = rest[:idx]
		rest = rest[idx+1:]
	}

	if idx := strings.LastIndex(rest, "_"); idx >= 0 {
		parsed.Suffix = rest[idx+1:]
		rest = rest[:idx]
	}

	switch {
	case strings.HasPrefix(rest, h.LegacyIdentifierPrefix) && h.LegacyIdentifierPrefix != "":
		parsed.Legacy = true
		rest = rest[len(h.LegacyIdentifierPrefix):]
	case strings.HasPrefix(rest, h.InternalIdentifierPrefix) && h.InternalIdentifierPrefix != "":
		rest = rest[len(h.InternalIdentifierPrefix):]
	}

	id, err := strconv.Atoi(rest)
	if err != nil {
		return nil, fmt.Errorf("identifier %q has no numeric id", identifier)
	}
	parsed.ID = id
	return parsed, nil
}
