package scorer

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinbeasnunez/superscrap-sub000/internal/classifier"
)

type mockClassifier struct {
	result      *classifier.Classification
	err         error
	lastDesc    string
	lastName    string
	lastReq     []string
	invocations int
}

func (m *mockClassifier) Classify(_ context.Context, name, description, _ string, required []string) (*classifier.Classification, error) {
	m.invocations++
	m.lastName = name
	m.lastDesc = description
	m.lastReq = required
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestScore_RequiredServicesSubstringMatch(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{
		DetectedServices: []string{"Toallas de piscina"},
		Confidence:       0.9,
		Evidence:         "piscina con toallas",
	}}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		RequiredServices: []string{"toallas"},
	})

	assert.InDelta(t, 1.0, a.MatchPercentage, 0.001)
	assert.True(t, a.MatchesRequirement)
}

func TestScore_HalfThreshold(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{
		DetectedServices: []string{"toallas"},
		Confidence:       0.9,
	}}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		RequiredServices: []string{"toallas", "manteles"},
	})

	assert.InDelta(t, 0.5, a.MatchPercentage, 0.001)
	assert.True(t, a.MatchesRequirement, "50% coverage meets the threshold")
}

func TestScore_AutoDetectMode(t *testing.T) {
	tests := []struct {
		name       string
		detected   []string
		confidence float64
		wantPct    float64
		wantMatch  bool
	}{
		{"confident detection", []string{"lavanderia"}, 0.75, 0.75, true},
		{"low confidence", []string{"lavanderia"}, 0.3, 0.3, false},
		{"nothing detected", nil, 0.9, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockClassifier{result: &classifier.Classification{
				DetectedServices: tt.detected,
				Confidence:       tt.confidence,
			}}
			s := New(mc, nil)

			a := s.Score(context.Background(), Input{Name: "X"})
			assert.InDelta(t, tt.wantPct, a.MatchPercentage, 0.001)
			assert.Equal(t, tt.wantMatch, a.MatchesRequirement)
		})
	}
}

func TestScore_EmptyRequiredEmptyDetected(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{Confidence: 0.9}}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{Name: "X"})
	assert.Zero(t, a.MatchPercentage)
	assert.False(t, a.MatchesRequirement)
}

func TestScore_ClassifierFailureFallsBackToKeywords(t *testing.T) {
	mc := &mockClassifier{err: eris.New("timeout")}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		WebsiteContent:   "ofrecemos toallas para nuestros huéspedes",
		RequiredServices: []string{"toallas"},
	})

	assert.Equal(t, []string{"toallas"}, a.DetectedServices)
	assert.InDelta(t, 0.7, a.Confidence, 0.001)
	assert.True(t, a.MatchesRequirement)
	assert.Contains(t, a.Evidence, "palabras clave")
}

func TestScore_ClassifierFailureNoWebsiteEvidence(t *testing.T) {
	mc := &mockClassifier{err: eris.New("timeout")}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		RequiredServices: []string{"toallas"},
	})

	assert.Empty(t, a.DetectedServices)
	assert.Zero(t, a.Confidence)
	assert.False(t, a.MatchesRequirement)
}

func TestScore_EnrichesClassifierInput(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{Confidence: 0.5}}
	s := New(mc, nil)

	long := strings.Repeat("contenido ", 200) // well past the 500-char cap
	s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		Description:      "hotel boutique",
		WebsiteContent:   "tenemos sauna y " + long,
		RequiredServices: []string{"sauna"},
	})

	require.Equal(t, 1, mc.invocations)
	assert.Contains(t, mc.lastDesc, "hotel boutique")
	assert.Contains(t, mc.lastDesc, "Servicios mencionados en el sitio web: sauna")
	assert.Less(t, len(mc.lastDesc), len(long), "scraped content must be truncated")
}

func TestScore_MergesWebsiteServicesIntoDetected(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{
		DetectedServices: []string{"spa"},
		Confidence:       0.8,
		Evidence:         "hotel con spa",
	}}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		WebsiteContent:   "contamos con servicio de lavanderia y spa",
		RequiredServices: []string{"spa", "lavanderia"},
	})

	assert.Contains(t, a.DetectedServices, "spa")
	assert.Contains(t, a.DetectedServices, "lavanderia")
	assert.Contains(t, a.Evidence, "Sitio web menciona")
	assert.True(t, a.MatchesRequirement)
	assert.InDelta(t, 1.0, a.MatchPercentage, 0.001)
}

func TestScore_SynonymRuleViaClassifier(t *testing.T) {
	mc := &mockClassifier{result: &classifier.Classification{
		DetectedServices: []string{"servicio de bienestar"},
		Confidence:       0.8,
	}}
	s := New(mc, nil)

	a := s.Score(context.Background(), Input{
		Name:             "Hotel Aqua",
		RequiredServices: []string{"spa"},
	})

	assert.True(t, a.MatchesRequirement, "spa/bienestar synonym rule")
}
