package classifier

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinbeasnunez/superscrap-sub000/pkg/anthropic"
)

type mockAnthropicClient struct {
	response *anthropic.MessageResponse
	err      error
	calls    int
}

func (m *mockAnthropicClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
	}
}

func TestClassify_Success(t *testing.T) {
	ai := &mockAnthropicClient{
		response: textResponse(`{"detected_services": ["toallas", "spa"], "confidence": 0.82, "evidence": "hotel con spa"}`),
	}
	c := NewClaude(ai, "claude-haiku-4-5-20251001", 0)

	result, err := c.Classify(context.Background(), "Hotel Miraflores", "hotel con spa y piscina", "hotel", []string{"toallas"})
	require.NoError(t, err)
	assert.Equal(t, []string{"toallas", "spa"}, result.DetectedServices)
	assert.InDelta(t, 0.82, result.Confidence, 0.001)
	assert.NotEmpty(t, result.Evidence)
}

func TestClassify_ParsesEmbeddedJSON(t *testing.T) {
	ai := &mockAnthropicClient{
		response: textResponse(`Sure, here is the analysis: {"detected_services": ["lavanderia"], "confidence": 0.6, "evidence": "x"} hope that helps`),
	}
	c := NewClaude(ai, "claude-haiku-4-5-20251001", 0)

	result, err := c.Classify(context.Background(), "Clinica San Borja", "", "clinica", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lavanderia"}, result.DetectedServices)
}

func TestClassify_ClampsConfidence(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
	}{
		{"above one", `{"detected_services": [], "confidence": 1.7, "evidence": ""}`, 1.0},
		{"below zero", `{"detected_services": [], "confidence": -0.2, "evidence": ""}`, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClaude(&mockAnthropicClient{response: textResponse(tt.raw)}, "m", 0)
			result, err := c.Classify(context.Background(), "X", "", "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Confidence)
		})
	}
}

func TestClassify_EmptyResponse(t *testing.T) {
	c := NewClaude(&mockAnthropicClient{response: &anthropic.MessageResponse{}}, "m", 0)
	_, err := c.Classify(context.Background(), "X", "", "", nil)
	assert.Error(t, err)
}

func TestClassify_InvalidJSON(t *testing.T) {
	c := NewClaude(&mockAnthropicClient{response: textResponse("not json at all")}, "m", 0)
	_, err := c.Classify(context.Background(), "X", "", "", nil)
	assert.Error(t, err)
}

func TestClassify_PropagatesAPIError(t *testing.T) {
	ai := &mockAnthropicClient{err: eris.New("api down")}
	c := NewClaude(ai, "m", 0)
	_, err := c.Classify(context.Background(), "X", "", "", nil)
	assert.Error(t, err)
}

func TestKeywordFallback(t *testing.T) {
	result := KeywordFallback("Hotel Costa del Sol", "Hotel de 4 estrellas en Lima", "hotel")
	assert.Equal(t, []string{"hotel"}, result.DetectedServices)
	assert.InDelta(t, 0.5, result.Confidence, 0.001)

	miss := KeywordFallback("Ferreteria Perez", "venta de herramientas", "hotel")
	assert.Empty(t, miss.DetectedServices)
	assert.Zero(t, miss.Confidence)
}
