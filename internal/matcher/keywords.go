package matcher

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

// evidenceWindow is how many characters of surrounding text are kept on
// each side of a keyword hit for audit display.
const evidenceWindow = 90

// TextMatch reports whether a required service was found in scraped text.
type TextMatch struct {
	Service string `json:"service"`
	Found   bool   `json:"found"`
	Keyword string `json:"keyword,omitempty"`
	Window  string `json:"window,omitempty"`
}

// KeywordTable maps canonical service names to their surface-form keywords.
// The table is versioned domain knowledge, loaded from the embedded YAML.
type KeywordTable struct {
	services map[string][]string
}

type keywordsFile struct {
	Services map[string][]string `yaml:"services"`
}

// LoadKeywordTable parses the embedded taxonomy.
func LoadKeywordTable() (*KeywordTable, error) {
	var f keywordsFile
	if err := yaml.Unmarshal(keywordsYAML, &f); err != nil {
		return nil, eris.Wrap(err, "matcher: parse keyword taxonomy")
	}
	services := make(map[string][]string, len(f.Services))
	for name, kws := range f.Services {
		folded := make([]string, 0, len(kws))
		for _, kw := range kws {
			folded = append(folded, fold(kw))
		}
		services[fold(name)] = folded
	}
	return &KeywordTable{services: services}, nil
}

// MustKeywordTable panics if the embedded taxonomy fails to parse. The file
// is compiled into the binary, so a failure here is a build defect.
func MustKeywordTable() *KeywordTable {
	t, err := LoadKeywordTable()
	if err != nil {
		panic(err)
	}
	return t
}

// Keywords returns the surface forms for a service. Services outside the
// taxonomy fall back to their own name as the only keyword.
func (t *KeywordTable) Keywords(service string) []string {
	key := fold(service)
	if kws, ok := t.services[key]; ok {
		return kws
	}
	// Unknown services also match via any taxonomy entry whose canonical
	// name the required service contains ("toallas de piscina" → toallas).
	for name, kws := range t.services {
		if strings.Contains(key, name) {
			return kws
		}
	}
	return []string{key}
}

// FindInText checks each required service against the scraped page text and
// reports which keyword hit, with a short surrounding window as evidence.
func (t *KeywordTable) FindInText(text string, required []string) []TextMatch {
	folded := fold(text)

	matches := make([]TextMatch, 0, len(required))
	for _, svc := range required {
		m := TextMatch{Service: svc}
		for _, kw := range t.Keywords(svc) {
			if kw == "" {
				continue
			}
			if idx := strings.Index(folded, kw); idx >= 0 {
				m.Found = true
				m.Keyword = kw
				m.Window = window(folded, idx, len(kw))
				break
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// FoundServices returns just the service names that were found in the text.
func (t *KeywordTable) FoundServices(text string, required []string) []string {
	var found []string
	for _, m := range t.FindInText(text, required) {
		if m.Found {
			found = append(found, m.Service)
		}
	}
	return found
}

// ServiceNames returns the canonical taxonomy entries, for auto-detect mode
// where the caller scans for every known service.
func (t *KeywordTable) ServiceNames() []string {
	names := make([]string, 0, len(t.services))
	for name := range t.services {
		names = append(names, name)
	}
	return names
}

func window(text string, idx, kwLen int) string {
	start := idx - evidenceWindow
	if start < 0 {
		start = 0
	}
	end := idx + kwLen + evidenceWindow
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
