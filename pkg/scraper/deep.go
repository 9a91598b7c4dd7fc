package scraper

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// servicePaths are the sub-paths most likely to describe a business's
// amenities and services, probed in addition to the homepage.
var servicePaths = []string{
	"",
	"/servicios",
	"/services",
	"/amenities",
	"/instalaciones",
	"/habitaciones",
	"/nosotros",
}

// maxDeepContentChars bounds the concatenated deep-scrape output.
const maxDeepContentChars = 20000

// deepConcurrency limits parallel sub-path fetches per site.
const deepConcurrency = 3

// FetchDeep probes the homepage plus likely service sub-paths and returns
// their concatenated plaintext, bounded in total length. Individual path
// failures are ignored; an empty result means nothing was reachable.
func (s *Scraper) FetchDeep(ctx context.Context, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")

	contents := make([]string, len(servicePaths))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(deepConcurrency)
	for i, path := range servicePaths {
		g.Go(func() error {
			body, err := s.fetch(gCtx, base+path)
			if err != nil {
				return nil // sub-path probe failures are expected
			}
			text := stripHTML(string(body))
			mu.Lock()
			contents[i] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var sb strings.Builder
	for _, c := range contents {
		if c == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		remaining := maxDeepContentChars - sb.Len()
		if remaining <= 0 {
			break
		}
		if len(c) > remaining {
			c = c[:remaining]
		}
		sb.WriteString(c)
	}
	return sb.String()
}
