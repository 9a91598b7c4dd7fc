// Package serper wraps the Serper.dev Google Maps search API, the primary
// listing source for prospect candidates.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs Google Maps searches through Serper.
type Client interface {
	Search(ctx context.Context, businessType, city string, page int) ([]Place, error)
}

// Place is one Maps listing from a search page.
type Place struct {
	Title       string  `json:"title"`
	Address     string  `json:"address"`
	Phone       string  `json:"phoneNumber"`
	Website     string  `json:"website"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"ratingCount"`
	Category    string  `json:"type"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnailUrl"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CID         string  `json:"cid"`
}

// ExternalID returns the stable identifier used for dedupe across pages.
func (p Place) ExternalID() string {
	if p.CID != "" {
		return p.CID
	}
	return p.Title + "|" + p.Address
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Serper Maps client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type mapsRequest struct {
	Query string `json:"q"`
	Page  int    `json:"page,omitempty"`
	GL    string `json:"gl"`
	HL    string `json:"hl"`
}

type mapsResponse struct {
	Places []Place `json:"places"`
}

func (c *httpClient) Search(ctx context.Context, businessType, city string, page int) ([]Place, error) {
	body, err := json.Marshal(mapsRequest{
		Query: fmt.Sprintf("%s en %s", businessType, city),
		Page:  page,
		GL:    "pe",
		HL:    "es",
	})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/maps", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serper: status %d: %s", resp.StatusCode, respBody)
	}

	var result mapsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serper: parse response")
	}

	return result.Places, nil
}
