// Package scraper fetches prospect websites and pulls out contact details
// and plaintext content. Scraping is best-effort: callers treat every error
// as "no contact info", never as a fatal condition.
package scraper

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// maxPageBytes limits how much HTML is downloaded per page.
const maxPageBytes = 512 * 1024

// Contacts is what a single-page scrape yields.
type Contacts struct {
	Content string   `json:"content,omitempty"`
	Title   string   `json:"title,omitempty"`
	Emails  []string `json:"emails,omitempty"`
	Phones  []string `json:"phones,omitempty"`
}

// Scraper fetches pages via net/http with a bounded timeout.
type Scraper struct {
	client *http.Client
}

// New creates a Scraper. timeout bounds each page fetch.
func New(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// FetchContacts fetches one URL and extracts emails, phones and plaintext.
func (s *Scraper) FetchContacts(ctx context.Context, targetURL string) (*Contacts, error) {
	body, err := s.fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	text := stripHTML(string(body))
	return &Contacts{
		Content: text,
		Title:   extractTitle(body),
		Emails:  extractEmails(string(body)),
		Phones:  extractPhones(text),
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		targetURL = "https://" + targetURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SuperscrapBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("scraper: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scraper: read body")
	}
	if len(body) < 100 {
		return nil, eris.New("scraper: empty page")
	}
	return body, nil
}

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Peruvian numbers: 9-digit mobiles, Lima landlines, with optional +51.
	phoneRe = regexp.MustCompile(`(?:\+51\s?)?(?:9\d{2}[\s\-]?\d{3}[\s\-]?\d{3}|\(0?1\)\s?\d{3}[\s\-]?\d{4}|0?1[\s\-]?\d{3}[\s\-]?\d{4})`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// extractEmails finds de-duplicated email addresses, skipping asset names
// that match the pattern (logo@2x.png and friends).
func extractEmails(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range emailRe.FindAllString(s, -1) {
		lower := strings.ToLower(e)
		if strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") ||
			strings.HasSuffix(lower, ".svg") || strings.HasSuffix(lower, ".webp") {
			continue
		}
		if !seen[lower] {
			seen[lower] = true
			out = append(out, lower)
		}
	}
	return out
}

// extractPhones finds de-duplicated phone numbers in plaintext.
func extractPhones(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range phoneRe.FindAllString(s, -1) {
		norm := strings.Join(strings.Fields(p), " ")
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes entities,
// and collapses whitespace into plaintext.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
		"&aacute;", "á",
		"&eacute;", "é",
		"&iacute;", "í",
		"&oacute;", "ó",
		"&uacute;", "ú",
		"&ntilde;", "ñ",
	)
	html = r.Replace(html)

	spaceRe := regexp.MustCompile(`[ \t]+`)
	html = spaceRe.ReplaceAllString(html, " ")

	nlRe := regexp.MustCompile(`\n{3,}`)
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
