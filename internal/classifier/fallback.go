package classifier

import (
	"fmt"
	"strings"
)

// KeywordFallback classifies a directory listing without the LLM: the search
// term itself is matched against the listing title and description. Used when
// the Claude call errors on directory-sourced candidates.
func KeywordFallback(title, description, businessType string) *Classification {
	term := strings.ToLower(strings.TrimSpace(businessType))
	haystack := strings.ToLower(title + " " + description)

	if term == "" || !strings.Contains(haystack, term) {
		return &Classification{
			Confidence: 0,
			Evidence:   fmt.Sprintf("Listado del directorio sin coincidencia con %q.", businessType),
		}
	}

	return &Classification{
		DetectedServices: []string{businessType},
		Confidence:       0.5,
		Evidence:         fmt.Sprintf("Listado del directorio menciona %q en su título o descripción.", businessType),
	}
}
