// internal/pipeline/generate/generator.go
package generate

import (
	"context"
	"fmt"
	"strings"

	"support-triage/internal/common/logger"
	"support-triage/internal/llm"
	"support-triage/internal/models"
)

const Stage = "generate"

// Completer is the slice of the language-model surface this stage uses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	// defaultSelfConfidence applies when the model omits a confidence field.
	defaultSelfConfidence = 0.8

	hedgeCap    = 0.6
	fallbackCap = 0.5
	groundedMax = 0.95
)

// hedgeMarkers are phrases that indicate the model is unsure of its own
// answer. A hedged response is capped regardless of self-reported confidence.
var hedgeMarkers = []string{
	"not sure",
	"don't know",
	"do not know",
	"cannot help",
	"can't help",
	"unable to",
	"i'm sorry",
	"i am sorry",
	"unclear",
}

const failureResponseText = "I'm having trouble generating a response right now. Let me find someone who can help you."

// Generator produces the candidate answer conditioned on retrieved context.
type Generator struct {
	completer Completer
	logger    logger.Logger
}

func NewGenerator(completer Completer, log logger.Logger) *Generator {
	return &Generator{
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// Generate never fails: a model error yields a low-confidence fallback marked
// Failed, which the orchestrator turns into its fixed outage result.
func (g *Generator) Generate(ctx context.Context, query string, retrieval *models.RetrievalResult) *models.GenerationResult {
	text, err := g.completer.Complete(ctx, g.buildPrompt(query, retrieval))
	if err != nil {
		g.logger.Warn("generation call failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return &models.GenerationResult{
			ResponseText:      failureResponseText,
			SelfConfidence:    0.3,
			SuggestsHumanHelp: true,
			Failed:            true,
		}
	}

	responseText := text
	selfConfidence := defaultSelfConfidence
	suggestsHuman := false

	if payload, ok := llm.ExtractPayload(text); ok {
		responseText = llm.String(payload, "response", text)
		selfConfidence = models.Clamp01(llm.Float(payload, "confidence", defaultSelfConfidence))
		suggestsHuman = llm.Bool(payload, "needs_human", false)
	}

	if strings.TrimSpace(responseText) == "" {
		responseText = "I don't have enough information to answer that question."
		selfConfidence = 0.1
	}

	selfConfidence = applyConfidencePolicy(selfConfidence, responseText, retrieval)

	g.logger.Info("response generated", map[string]interface{}{
		"selfConfidence":    selfConfidence,
		"suggestsHumanHelp": suggestsHuman,
		"usedFallback":      retrieval.UsedFallback,
	})

	return &models.GenerationResult{
		ResponseText:      responseText,
		SelfConfidence:    selfConfidence,
		SuggestsHumanHelp: suggestsHuman,
	}
}

// applyConfidencePolicy applies the composable adjustments in order: hedge cap,
// fallback-context cap, grounded boost. Caps are not alternatives: a hedged
// answer with real sources is capped before the boost is considered, so the
// boost only lifts answers that are already confident and grounded.
func applyConfidencePolicy(confidence float64, responseText string, retrieval *models.RetrievalResult) float64 {
	lower := strings.ToLower(responseText)
	for _, marker := range hedgeMarkers {
		if strings.Contains(lower, marker) {
			if confidence > hedgeCap {
				confidence = hedgeCap
			}
			break
		}
	}

	if retrieval.UsedFallback {
		if confidence > fallbackCap {
			confidence = fallbackCap
		}
	} else if len(retrieval.Sources) > 0 {
		confidence += 0.1
		if confidence > groundedMax {
			confidence = groundedMax
		}
	}

	return models.Clamp01(confidence)
}

func (g *Generator) buildPrompt(query string, retrieval *models.RetrievalResult) string {
	var parts []string

	parts = append(parts, "You are a helpful customer support assistant. Answer the customer's question based ONLY on the provided passages.")
	parts = append(parts, fmt.Sprintf("\nCustomer question: %s", query))

	parts = append(parts, "\nKnowledge passages:")
	for i, p := range retrieval.Passages {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, p))
	}

	if len(retrieval.Sources) > 0 {
		parts = append(parts, "\nSources:")
		for _, s := range retrieval.Sources {
			parts = append(parts, fmt.Sprintf("- %s", s.DisplayName))
		}
	}

	parts = append(parts, "\nRespond with a single JSON object:")
	parts = append(parts, `{"response": "your answer", "confidence": 0.0-1.0, "needs_human": true|false}`)
	parts = append(parts, "Set needs_human to true if the question requires account access, refunds, or anything you cannot resolve from the passages.")

	return strings.Join(parts, "\n")
}
