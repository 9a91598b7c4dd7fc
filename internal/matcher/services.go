// Package matcher decides whether a business's detected services cover the
// textile services a search is looking for. It has no side effects and no
// dependencies beyond text normalization.
package matcher

import "strings"

// synonymRules maps a required-service key to detected-name fragments that
// count as a match even without substring overlap. The key applies when the
// required service contains it.
var synonymRules = map[string][]string{
	"spa":           {"bienestar", "relax"},
	"sauna":         {"vapor"},
	"masajes":       {"masaje", "massage"},
	"entrenamiento": {"personal", "trainer", "coaching"},
	"toallas":       {"toalla", "towel", "amenities"},
}

// ServiceMatches reports whether a single required service is satisfied by
// any of the detected service names: substring containment in either
// direction, or a domain synonym rule.
func ServiceMatches(required string, detected []string) bool {
	req := fold(required)
	if req == "" {
		return false
	}

	for _, d := range detected {
		det := fold(d)
		if det == "" {
			continue
		}
		if strings.Contains(det, req) || strings.Contains(req, det) {
			return true
		}
	}

	for key, fragments := range synonymRules {
		if !strings.Contains(req, key) {
			continue
		}
		for _, d := range detected {
			det := fold(d)
			for _, frag := range fragments {
				if strings.Contains(det, frag) {
					return true
				}
			}
		}
	}

	return false
}

// CountMatches returns how many of the required services are satisfied by
// the detected set.
func CountMatches(required, detected []string) int {
	n := 0
	for _, r := range required {
		if ServiceMatches(r, detected) {
			n++
		}
	}
	return n
}
