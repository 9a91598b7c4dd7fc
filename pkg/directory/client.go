// Package directory scrapes an industrial business directory as an
// alternate listing source. Unlike the Maps API, results come from parsing
// listing markup, so every field beyond the name is optional.
package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://www.paginasamarillas.com.pe"

// Client searches the industrial directory.
type Client interface {
	Search(ctx context.Context, query, city string) ([]Listing, error)
}

// Listing is one directory entry.
type Listing struct {
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the directory base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a directory client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Listing markup: one <article class="listing"> per business, with
// data-* attributes for the structured fields.
var (
	listingRe = regexp.MustCompile(`(?is)<article[^>]*class="[^"]*listing[^"]*"[^>]*>(.*?)</article>`)
	nameRe    = regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`)
	phoneRe   = regexp.MustCompile(`(?is)data-phone="([^"]*)"`)
	emailRe   = regexp.MustCompile(`(?is)data-email="([^"]*)"`)
	addressRe = regexp.MustCompile(`(?is)<span[^>]*class="[^"]*address[^"]*"[^>]*>(.*?)</span>`)
	descRe    = regexp.MustCompile(`(?is)<p[^>]*class="[^"]*description[^"]*"[^>]*>(.*?)</p>`)
	websiteRe = regexp.MustCompile(`(?is)data-website="([^"]*)"`)
	catRe     = regexp.MustCompile(`(?is)data-category="([^"]*)"`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
)

func (c *httpClient) Search(ctx context.Context, query, city string) ([]Listing, error) {
	searchURL := fmt.Sprintf("%s/buscar/%s/%s", c.baseURL, url.PathEscape(strings.ToLower(query)), url.PathEscape(strings.ToLower(city)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SuperscrapBot/1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "directory: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("directory: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "directory: read body")
	}

	return parseListings(string(body)), nil
}

func parseListings(html string) []Listing {
	var listings []Listing
	for _, m := range listingRe.FindAllStringSubmatch(html, -1) {
		block := m[1]
		l := Listing{
			Name:        cleanText(firstMatch(nameRe, block)),
			Phone:       strings.TrimSpace(firstMatch(phoneRe, block)),
			Email:       strings.TrimSpace(firstMatch(emailRe, block)),
			Address:     cleanText(firstMatch(addressRe, block)),
			Description: cleanText(firstMatch(descRe, block)),
			Website:     strings.TrimSpace(firstMatch(websiteRe, block)),
			Category:    strings.TrimSpace(firstMatch(catRe, block)),
		}
		if l.Name == "" {
			continue
		}
		listings = append(listings, l)
	}
	return listings
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
