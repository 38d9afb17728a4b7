// Package metadata converts export records into the wire models of the
// advertised metadata formats. Strategies are registered per
// (entity kind, format) pair at startup; there is no runtime class lookup.
package metadata

import (
	"fmt"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/internal/registry"
)

// Format prefixes implemented by this service.
const (
	FormatDublinCore = "oai_dc"
	FormatETDMS      = "oai_etdms"
)

// ConvertOptions carries the handler-specific knobs a strategy needs.
type ConvertOptions struct {
	SupportLegacyIdentifiers bool
	// Languages restricts multilingual output; empty means all languages.
	Languages []string
	// TypeSuffixes is the handler's type-to-identifier-suffix mapping,
	// passed for container-typed (document) sets only.
	TypeSuffixes map[string]string
}

// Strategy converts one export record into a format-specific model ready
// for XML marshalling inside the <metadata> element.
type Strategy interface {
	Convert(rec *domain.ExportRecord, opts ConvertOptions) (any, error)
}

type Key struct {
	Kind   domain.ExportKind
	Format string
}

// ErrNoStrategy marks a missing (kind, format) combination. This is a
// recoverable per-request failure: new formats and entities are added
// independently and may lag behind handler configuration.
type ErrNoStrategy struct {
	Key Key
}

func (e *ErrNoStrategy) Error() string {
	return fmt.Sprintf("metadata: no strategy for %s/%s", e.Key.Kind, e.Key.Format)
}

// Registry maps (entity kind, format) to a typed strategy.
type Registry struct {
	strategies map[Key]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Key]Strategy)}
}

// Default returns a registry populated with every built-in strategy.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Key{domain.KindDocument, FormatDublinCore}, &documentDublinCore{})
	r.Register(Key{domain.KindPerson, FormatDublinCore}, &personDublinCore{})
	r.Register(Key{domain.KindOrganisationUnit, FormatDublinCore}, &orgUnitDublinCore{})
	r.Register(Key{domain.KindEvent, FormatDublinCore}, &eventDublinCore{})
	r.Register(Key{domain.KindDocument, FormatETDMS}, &documentETDMS{})
	return r
}

func (r *Registry) Register(key Key, s Strategy) {
	r.strategies[key] = s
}

// Resolve returns the strategy for key, or ErrNoStrategy.
func (r *Registry) Resolve(key Key) (Strategy, error) {
	s, ok := r.strategies[key]
	if !ok {
		return nil, &ErrNoStrategy{Key: key}
	}
	return s, nil
}

// Convert resolves and invokes the strategy, then runs the two universal
// post-processing passes on the produced model: custom field remapping and
// the exceptional necessary corrections. Both run on every converted
// record regardless of source.
func (r *Registry) Convert(key Key, rec *domain.ExportRecord, opts ConvertOptions) (any, error) {
	s, err := r.Resolve(key)
	if err != nil {
		return nil, err
	}
	model, err := s.Convert(rec, opts)
	if err != nil {
		return nil, err
	}
	model = applyFieldRemappings(key.Format, model)
	model = applyNecessaryCorrections(key.Format, model)
	return model, nil
}

// SchemaFor returns the ListMetadataFormats advertisement for a prefix.
func SchemaFor(prefix string) (schema, namespace string, ok bool) {
	switch prefix {
	case FormatDublinCore:
		return "http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
			"http://www.openarchives.org/OAI/2.0/oai_dc/", true
	case FormatETDMS:
		return "http://www.ndltd.org/standards/metadata/etdms/1.1/etdms11.xsd",
			"http://www.ndltd.org/standards/metadata/etdms/1.1/", true
	}
	return "", "", false
}

// ValidateAgainst checks the active handler configurations against the
// registered strategies, failing fast at startup and on reload instead of
// discovering gaps per request. Every advertised format must be known,
// oai_dc (mandatory per OAI-PMH) must cover each set's entity kind, and any
// additional format must be convertible for at least one configured set.
// Combinations a specialized format cannot serve (e.g. a person set asked
// for oai_etdms) stay per-request failures and degrade to noRecordsMatch.
func (r *Registry) ValidateAgainst(handlers []*registry.HandlerConfiguration) error {
	for _, h := range handlers {
		if !h.SupportsFormat(FormatDublinCore) {
			return fmt.Errorf("handler %q does not advertise mandatory %s", h.Identifier, FormatDublinCore)
		}
		for _, format := range h.MetadataFormats {
			if _, _, known := SchemaFor(format); !known {
				return fmt.Errorf("handler %q advertises unknown format %q", h.Identifier, format)
			}
			usable := false
			for _, set := range h.Sets {
				key := Key{Kind: set.EntityKind, Format: format}
				if _, err := r.Resolve(key); err == nil {
					usable = true
				} else if format == FormatDublinCore {
					return fmt.Errorf("handler %q set %q: %w", h.Identifier, set.SetSpec, err)
				}
			}
			if !usable && len(h.Sets) > 0 {
				return fmt.Errorf("handler %q: no configured set can disseminate %q", h.Identifier, format)
			}
		}
	}
	return nil
}
