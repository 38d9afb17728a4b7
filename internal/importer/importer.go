// Package importer normalizes heterogeneous external bibliographic sources
// (BibTeX, Scopus, OpenAlex, Web of Science, SKG-IF, Scindeks, CSV) into
// the canonical NormalizedRecord consumed by the primary-store loader.
//
// Converters are pure: no side effects beyond read-only lookups needed to
// classify or resolve references. A record that cannot yield a valid
// normalized form (no title, no journal/event container, no authors at
// all) produces no result rather than an error; genuine parse failures
// abort only that record's conversion, never the batch.
package importer

import (
	"strings"

	"github.com/sci2zero/cris-exchange/internal/domain"
)

// othersSentinel is the BibTeX-style "and others" author marker. It is
// dropped outright, never counted as an author.
const othersSentinel = "others"

// parsePersonName splits an author string into first/middle/last by token
// count: two tokens are first/last, three are first/middle/last, one is a
// bare last name. The "Last, First" comma form is normalized first.
// Returns false for the others sentinel and for empty input.
func parsePersonName(raw string) (domain.PersonName, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, othersSentinel) {
		return domain.PersonName{}, false
	}

	if comma := strings.Index(raw, ","); comma >= 0 {
		last := strings.TrimSpace(raw[:comma])
		rest := strings.Fields(raw[comma+1:])
		name := domain.PersonName{LastName: last}
		if len(rest) > 0 {
			name.FirstName = rest[0]
		}
		if len(rest) > 1 {
			name.MiddleName = strings.Join(rest[1:], " ")
		}
		return name, true
	}

	tokens := strings.Fields(raw)
	switch len(tokens) {
	case 0:
		return domain.PersonName{}, false
	case 1:
		return domain.PersonName{LastName: tokens[0]}, true
	case 2:
		return domain.PersonName{FirstName: tokens[0], LastName: tokens[1]}, true
	case 3:
		return domain.PersonName{FirstName: tokens[0], MiddleName: tokens[1], LastName: tokens[2]}, true
	default:
		return domain.PersonName{
			FirstName:  tokens[0],
			MiddleName: strings.Join(tokens[1:len(tokens)-1], " "),
			LastName:   tokens[len(tokens)-1],
		}, true
	}
}

// authorContributions builds 1-indexed AUTHOR contributions in source
// order, dropping sentinel and empty entries without consuming an order
// number.
func authorContributions(names []string) []domain.Contribution {
	var contribs []domain.Contribution
	order := 1
	for _, raw := range names {
		person, ok := parsePersonName(raw)
		if !ok {
			continue
		}
		contribs = append(contribs, domain.Contribution{
			Person:      person,
			OrderNumber: order,
			Role:        domain.RoleAuthor,
		})
		order++
	}
	return contribs
}

// mergeMultilingual appends a language-tagged fragment. Fragments sharing
// a language key are newline-joined under one entry; a new language gets
// the next priority index.
func mergeMultilingual(existing []domain.MultilingualContent, languageTag, content string) []domain.MultilingualContent {
	content = strings.TrimSpace(content)
	if content == "" {
		return existing
	}
	for i := range existing {
		if strings.EqualFold(existing[i].LanguageTag, languageTag) {
			existing[i].Content += "\n" + content
			return existing
		}
	}
	return append(existing, domain.MultilingualContent{
		LanguageTag: languageTag,
		Content:     content,
		Priority:    len(existing) + 1,
	})
}

func intPtr(v int) *int { return &v }
