// Package classifier decides which textile-related services a business
// offers, using Claude with a strict JSON contract.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/martinbeasnunez/superscrap-sub000/internal/resilience"
	"github.com/martinbeasnunez/superscrap-sub000/pkg/anthropic"
)

// systemPrompt instructs the model to detect hospitality services that imply
// textile/laundry demand.
const systemPrompt = `You are evaluating a business to determine which hospitality and textile-related services it offers or needs (towels, bed linen, tablecloths, uniforms, laundry, spa, sauna, massages, pool, gym).

Given the business name, type and description, list the services you can identify and how confident you are overall.

Respond with ONLY valid JSON, no other text:
{"detected_services": ["..."], "confidence": 0.0, "evidence": "brief explanation citing the description"}`

// Classification is the result of a service-detection call.
type Classification struct {
	DetectedServices []string `json:"detected_services"`
	Confidence       float64  `json:"confidence"`
	Evidence         string   `json:"evidence"`
}

// Classifier detects services from a business listing.
type Classifier interface {
	Classify(ctx context.Context, name, description, businessType string, requiredServices []string) (*Classification, error)
}

// ClaudeClassifier implements Classifier over the Anthropic messages API,
// with retry on transient errors and a circuit breaker so a degraded API is
// not hammered once per candidate.
type ClaudeClassifier struct {
	ai      anthropic.Client
	model   string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

// NewClaude creates a ClaudeClassifier.
func NewClaude(ai anthropic.Client, model string, timeout time.Duration) *ClaudeClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClaudeClassifier{
		ai:      ai,
		model:   model,
		timeout: timeout,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Classify asks Claude which services the business offers. Callers treat any
// error as non-fatal and fall back to keyword evidence.
func (c *ClaudeClassifier) Classify(ctx context.Context, name, description, businessType string, requiredServices []string) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\nType: %s\n", name, businessType)
	if len(requiredServices) > 0 {
		fmt.Fprintf(&sb, "Services being sought: %s\n", strings.Join(requiredServices, ", "))
	}
	fmt.Fprintf(&sb, "Description:\n%s", description)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = 2

	resp, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.ai.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     c.model,
				MaxTokens: 1024,
				System:    systemPrompt,
				Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
			})
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: claude call")
	}

	resp.Usage.LogUsage(c.model, "classify")

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("classifier: empty response")
	}

	result, err := parseClassification(text)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("classifier: detected services",
		zap.String("business", name),
		zap.Strings("services", result.DetectedServices),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

// parseClassification extracts the JSON object from the model output, which
// occasionally wraps it in prose despite the prompt.
func parseClassification(text string) (*Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("classifier: no JSON in response: %q", truncate(text, 120))
	}

	var result Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, eris.Wrap(err, "classifier: parse response")
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
