// Package skgif implements a client for SKG-IF scientific knowledge
// graphs. Converters use it to resolve contributor and venue references
// embedded in research products.
package skgif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher resolves SKG-IF graph references by identifier.
type Fetcher interface {
	Person(ctx context.Context, id string) (*Person, error)
	Venue(ctx context.Context, id string) (*Venue, error)
}

type Person struct {
	LocalIdentifier string `json:"local_identifier"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	ORCID           string `json:"orcid"`
}

type Venue struct {
	LocalIdentifier string `json:"local_identifier"`
	Name            string `json:"name"`
	Type            string `json:"type"` // journal, conference, workshop, ...
	ISSN            string `json:"issn"`
}

// Client fetches SKG-IF entities over HTTP, politely rate limited.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Person(ctx context.Context, id string) (*Person, error) {
	var person Person
	if err := c.get(ctx, "persons", id, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

func (c *Client) Venue(ctx context.Context, id string) (*Venue, error) {
	var venue Venue
	if err := c.get(ctx, "venues", id, &venue); err != nil {
		return nil, err
	}
	return &venue, nil
}

func (c *Client) get(ctx context.Context, collection, id string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, collection, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "cris-exchange/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("skg-if request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("skg-if %s %q not found", collection, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("skg-if returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse skg-if response: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
