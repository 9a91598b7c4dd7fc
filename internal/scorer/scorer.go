// Package scorer turns a raw listing plus scraped website text into a
// confidence-weighted lead decision.
package scorer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/martinbeasnunez/superscrap-sub000/internal/classifier"
	"github.com/martinbeasnunez/superscrap-sub000/internal/matcher"
)

// enrichedContentLimit caps how much scraped text is appended to the
// description sent to the classifier.
const enrichedContentLimit = 500

// matchThreshold is the fraction of required services that must be covered
// for a business to count as a lead.
const matchThreshold = 0.5

// autoDetectConfidenceFloor is the minimum classifier confidence for a lead
// when no required services were specified.
const autoDetectConfidenceFloor = 0.4

// fallbackConfidence is used when the classifier fails but keywords were
// found on the website.
const fallbackConfidence = 0.7

// Input is everything known about a candidate before scoring.
type Input struct {
	Name             string
	Description      string
	BusinessType     string
	WebsiteContent   string
	RequiredServices []string

	// TitleFallback switches the degradation path on classifier failure
	// from website keyword evidence to search-term matching in the listing
	// title and description. Used for directory-sourced candidates, which
	// rarely have a scrapeable site.
	TitleFallback bool
}

// Analysis is the scoring outcome, persisted as a ServiceAnalysis.
type Analysis struct {
	DetectedServices   []string
	Confidence         float64
	Evidence           string
	MatchesRequirement bool
	MatchPercentage    float64
	WebsiteMatches     []matcher.TextMatch
}

// Scorer combines keyword evidence with the external classifier.
type Scorer struct {
	classifier classifier.Classifier
	keywords   *matcher.KeywordTable
}

// New creates a Scorer. The keyword table defaults to the embedded taxonomy.
func New(c classifier.Classifier, table *matcher.KeywordTable) *Scorer {
	if table == nil {
		table = matcher.MustKeywordTable()
	}
	return &Scorer{classifier: c, keywords: table}
}

// Score runs the keyword pre-pass, the enriched classifier call with
// degradation on failure, the merge, then the requirement decision.
// It never returns an error: classifier failure degrades to keyword-only
// evidence so one bad candidate cannot abort ingestion.
func (s *Scorer) Score(ctx context.Context, in Input) *Analysis {
	// Keyword pre-pass over the scraped site, before any LLM call.
	scanFor := in.RequiredServices
	if len(scanFor) == 0 {
		scanFor = s.keywords.ServiceNames()
	}
	var websiteMatches []matcher.TextMatch
	var servicesInWebsite []string
	if in.WebsiteContent != "" {
		websiteMatches = s.keywords.FindInText(in.WebsiteContent, scanFor)
		for _, m := range websiteMatches {
			if m.Found {
				servicesInWebsite = append(servicesInWebsite, m.Service)
			}
		}
	}

	result, err := s.classifier.Classify(ctx, in.Name, s.enrich(in, servicesInWebsite), in.BusinessType, in.RequiredServices)
	if err != nil {
		zap.L().Warn("scorer: classifier failed, using keyword evidence",
			zap.String("business", in.Name),
			zap.Error(err),
		)
		if in.TitleFallback {
			result = classifier.KeywordFallback(in.Name, in.Description, in.BusinessType)
		} else {
			result = fallbackClassification(servicesInWebsite)
		}
	}

	detected, evidence := mergeWebsiteServices(result.DetectedServices, result.Evidence, servicesInWebsite)

	analysis := &Analysis{
		DetectedServices: detected,
		Confidence:       result.Confidence,
		Evidence:         evidence,
		WebsiteMatches:   websiteMatches,
	}

	if len(in.RequiredServices) > 0 {
		matchCount := matcher.CountMatches(in.RequiredServices, detected)
		analysis.MatchPercentage = float64(matchCount) / float64(len(in.RequiredServices))
		analysis.MatchesRequirement = analysis.MatchPercentage >= matchThreshold
	} else if len(detected) > 0 {
		// Auto-detect mode: confidence stands in for the match fraction.
		analysis.MatchPercentage = result.Confidence
		analysis.MatchesRequirement = result.Confidence >= autoDetectConfidenceFloor
	}

	return analysis
}

// enrich builds the richer description fed to the classifier: the original
// text, a bounded slice of the scraped site, and the keyword findings.
func (s *Scorer) enrich(in Input, servicesInWebsite []string) string {
	var sb strings.Builder
	sb.WriteString(in.Description)

	if in.WebsiteContent != "" {
		content := in.WebsiteContent
		if len(content) > enrichedContentLimit {
			content = content[:enrichedContentLimit]
		}
		fmt.Fprintf(&sb, "\n\nContenido del sitio web:\n%s", content)
	}
	if len(servicesInWebsite) > 0 {
		fmt.Fprintf(&sb, "\n\nServicios mencionados en el sitio web: %s", strings.Join(servicesInWebsite, ", "))
	}
	return sb.String()
}

// fallbackClassification synthesizes a classification from website keywords
// when the classifier is unavailable.
func fallbackClassification(servicesInWebsite []string) *classifier.Classification {
	if len(servicesInWebsite) == 0 {
		return &classifier.Classification{
			Evidence: "Clasificador no disponible y sin evidencia en el sitio web.",
		}
	}
	return &classifier.Classification{
		DetectedServices: servicesInWebsite,
		Confidence:       fallbackConfidence,
		Evidence: fmt.Sprintf("Clasificador no disponible; servicios detectados por palabras clave en el sitio web: %s.",
			strings.Join(servicesInWebsite, ", ")),
	}
}

// mergeWebsiteServices appends website-found services missing from the
// classifier's list (case-insensitive substring match in either direction)
// and annotates the evidence when anything was added.
func mergeWebsiteServices(detected []string, evidence string, fromWebsite []string) ([]string, string) {
	merged := detected
	var added []string
	for _, ws := range fromWebsite {
		if containsService(merged, ws) {
			continue
		}
		merged = append(merged, ws)
		added = append(added, ws)
	}
	if len(added) > 0 {
		evidence = strings.TrimSpace(evidence + fmt.Sprintf(" [Sitio web menciona: %s]", strings.Join(added, ", ")))
	}
	return merged, evidence
}

func containsService(list []string, svc string) bool {
	s := strings.ToLower(svc)
	for _, d := range list {
		dl := strings.ToLower(d)
		if strings.Contains(dl, s) || strings.Contains(s, dl) {
			return true
		}
	}
	return false
}
