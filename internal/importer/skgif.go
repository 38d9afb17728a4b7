package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sci2zero/cris-exchange/internal/domain"
	"github.com/sci2zero/cris-exchange/pkg/skgif"
)

// SKGProduct is one raw SKG-IF research product. Contributor and venue
// entries are references into the graph, resolved through a
// skgif.Fetcher.
type SKGProduct struct {
	LocalIdentifier string                 `json:"local_identifier"`
	ProductType     string                 `json:"product_type"`
	Titles          map[string][]string    `json:"titles"`
	Abstracts       map[string][]string    `json:"abstracts"`
	Topics          []string               `json:"topics"`
	Identifiers     []SKGIdentifier        `json:"identifiers"`
	Contributions   []SKGContribution      `json:"contributions"`
	Manifestations  []SKGManifestation     `json:"manifestations"`
}

type SKGIdentifier struct {
	Scheme string `json:"scheme"`
	Value  string `json:"value"`
}

type SKGContribution struct {
	By                   string   `json:"by"` // person reference
	Rank                 int      `json:"rank"`
	Role                 string   `json:"role"`
	DeclaredAffiliations []string `json:"declared_affiliations"`
}

type SKGManifestation struct {
	Venue  string `json:"venue"` // venue reference
	Volume string `json:"volume"`
	Issue  string `json:"issue"`
	Pages  struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"pages"`
	Year int `json:"year"`
}

// ParseSKGIF reads a JSON array of SKG-IF research products.
func ParseSKGIF(r io.Reader) ([]SKGProduct, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read skg-if input: %w", err)
	}
	var products []SKGProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse skg-if input: %w", err)
	}
	return products, nil
}

// SKGIFConverter resolves SKG-IF graph references while converting. An
// unresolvable reference fails that one record's conversion; the batch
// continues.
type SKGIFConverter struct {
	fetcher skgif.Fetcher
}

func NewSKGIFConverter(fetcher skgif.Fetcher) *SKGIFConverter {
	return &SKGIFConverter{fetcher: fetcher}
}

func (c *SKGIFConverter) Convert(ctx context.Context, product SKGProduct) (*domain.NormalizedRecord, error) {
	if product.ProductType != "" && product.ProductType != "literature" {
		return nil, nil
	}
	if len(product.Manifestations) == 0 {
		return nil, nil
	}
	manifestation := product.Manifestations[0]
	if manifestation.Venue == "" {
		return nil, nil
	}

	venue, err := c.fetcher.Venue(ctx, manifestation.Venue)
	if err != nil {
		return nil, fmt.Errorf("resolve venue %q: %w", manifestation.Venue, err)
	}

	var pubType domain.PublicationType
	switch venue.Type {
	case "journal":
		pubType = domain.JournalPublication
	case "conference", "workshop":
		pubType = domain.ProceedingsPublication
	default:
		return nil, nil
	}

	rec := &domain.NormalizedRecord{
		Identifier:      product.LocalIdentifier,
		Source:          "skgif",
		PublicationType: pubType,
		Volume:          manifestation.Volume,
		Issue:           manifestation.Issue,
		Year:            manifestation.Year,
	}

	for lang, values := range product.Titles {
		for _, v := range values {
			rec.Title = mergeMultilingual(rec.Title, lang, v)
		}
	}
	if len(rec.Title) == 0 {
		return nil, nil
	}
	for lang, values := range product.Abstracts {
		for _, v := range values {
			rec.Description = mergeMultilingual(rec.Description, lang, v)
		}
	}
	for _, topic := range product.Topics {
		rec.Keywords = mergeMultilingual(rec.Keywords, "en", topic)
	}

	switch pubType {
	case domain.JournalPublication:
		rec.Journal = &domain.JournalRef{
			Name: mergeMultilingual(nil, "en", venue.Name),
			ISSN: venue.ISSN,
		}
	case domain.ProceedingsPublication:
		rec.Event = &domain.EventRef{Name: mergeMultilingual(nil, "en", venue.Name)}
	}

	order := 1
	for _, contribution := range product.Contributions {
		person, err := c.fetcher.Person(ctx, contribution.By)
		if err != nil {
			return nil, fmt.Errorf("resolve contributor %q: %w", contribution.By, err)
		}
		role := domain.RoleAuthor
		if contribution.Role == "editor" {
			role = domain.RoleEditor
		}
		contrib := domain.Contribution{
			Person: domain.PersonName{
				FirstName: person.GivenName,
				LastName:  person.FamilyName,
			},
			ORCID:        person.ORCID,
			Institutions: contribution.DeclaredAffiliations,
			OrderNumber:  order,
			Role:         role,
		}
		rec.Contributions = append(rec.Contributions, contrib)
		order++
	}
	if len(rec.Contributions) == 0 {
		return nil, nil
	}

	for _, id := range product.Identifiers {
		switch id.Scheme {
		case "doi":
			rec.DOI = id.Value
		case "scopus":
			rec.ScopusID = id.Value
		case "openalex":
			rec.OpenAlexID = id.Value
		case "wos":
			rec.WebOfScienceID = id.Value
		}
	}

	rec.StartPage = manifestation.Pages.First
	rec.EndPage = manifestation.Pages.Last
	if count, ok := pageCount(rec.StartPage, rec.EndPage); ok {
		rec.NumberOfPages = intPtr(count)
	}
	return rec, nil
}
