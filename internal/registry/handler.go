// Package registry loads and serves the declarative per-institution OAI
// handler configurations. Readers always observe one complete snapshot;
// reloads build a fresh snapshot and swap it in atomically.
package registry

import (
	"time"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// HandlerConfiguration describes one configured OAI-PMH endpoint, scoped to
// one institution, with its own sets, formats and filters.
type HandlerConfiguration struct {
	Identifier                 string            `yaml:"identifier"`
	RepositoryName             string            `yaml:"repositoryName"`
	BaseURL                    string            `yaml:"baseURL"`
	AdminEmail                 []string          `yaml:"adminEmail"`
	InternalInstitutionID      int               `yaml:"internalInstitutionId"`
	SupportLegacyIdentifiers   bool              `yaml:"supportLegacyIdentifiers"`
	ExportOnlyActiveEmployees  bool              `yaml:"exportOnlyActiveEmployees"`
	TokenExpirationTimeMinutes int               `yaml:"tokenExpirationTimeMinutes"`
	MetadataFormats            []string          `yaml:"metadataFormats"`
	Languages                  []string          `yaml:"languages"`
	LegacyIdentifierPrefix     string            `yaml:"legacyIdentifierPrefix"`
	InternalIdentifierPrefix   string            `yaml:"internalIdentifierPrefix"`
	TypeToIdentifierSuffix     map[string]string `yaml:"typeToIdentifierSuffixMapping"`
	Sets                       []SetConfiguration `yaml:"sets"`
}

// SetConfiguration declares one OAI set: which entity kind backs it, which
// strategy group converts it, and how records are filtered into it.
type SetConfiguration struct {
	SetSpec             string                     `yaml:"setSpec"`
	SetName             string                     `yaml:"setName"`
	IdentifierSetSpec   string                     `yaml:"identifierSetSpec"`
	IsDefaultSet        bool                       `yaml:"isDefaultSet"`
	EntityKind          domain.ExportKind          `yaml:"entityKind"`
	PublicationTypes    []string                   `yaml:"publicationTypes"`
	ConcreteTypeFilters []ConcreteTypeFilterConfig `yaml:"concreteTypeFilters"`
	AdditionalFilters   []FieldFilterConfig        `yaml:"additionalFilters"`
}

type ConcreteTypeFilterConfig struct {
	Field   string   `yaml:"field"`
	Allowed []string `yaml:"allowed"`
}

type FieldFilterConfig struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// TokenTTL is the resumption-token lifetime for this handler.
func (h *HandlerConfiguration) TokenTTL() time.Duration {
	if h.TokenExpirationTimeMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(h.TokenExpirationTimeMinutes) * time.Minute
}

// SupportsFormat reports whether metadataPrefix is advertised by this
// handler.
func (h *HandlerConfiguration) SupportsFormat(metadataPrefix string) bool {
	for _, f := range h.MetadataFormats {
		if f == metadataPrefix {
			return true
		}
	}
	return false
}

// DefaultSet returns the set marked default, else the first configured set,
// else nil.
func (h *HandlerConfiguration) DefaultSet() *SetConfiguration {
	for i := range h.Sets {
		if h.Sets[i].IsDefaultSet {
			return &h.Sets[i]
		}
	}
	if len(h.Sets) > 0 {
		return &h.Sets[0]
	}
	return nil
}

// SetBySpec finds a set by its setSpec.
func (h *HandlerConfiguration) SetBySpec(spec string) *SetConfiguration {
	for i := range h.Sets {
		if h.Sets[i].SetSpec == spec {
			return &h.Sets[i]
		}
	}
	return nil
}

// SetByIdentifierSpec finds a set by the identifier-embedded set segment.
func (h *HandlerConfiguration) SetByIdentifierSpec(spec string) *SetConfiguration {
	for i := range h.Sets {
		if h.Sets[i].IdentifierSetSpec == spec {
			return &h.Sets[i]
		}
	}
	return nil
}

// SuffixForType returns the identifier suffix disambiguating sibling
// document types sharing one id space, if configured.
func (h *HandlerConfiguration) SuffixForType(entityType string) string {
	return h.TypeToIdentifierSuffix[entityType]
}

// TypesForSuffix inverts the suffix mapping: every entity type whose
// configured suffix matches.
func (h *HandlerConfiguration) TypesForSuffix(suffix string) []string {
	var types []string
	for t, s := range h.TypeToIdentifierSuffix {
		if s == suffix {
			types = append(types, t)
		}
	}
	return types
}
