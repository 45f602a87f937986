// internal/pipeline/analyze/analyzer.go
package analyze

import (
	"context"
	"fmt"
	"strings"

	"support-triage/internal/common/logger"
	"support-triage/internal/llm"
	"support-triage/internal/models"
)

const Stage = "analyze"

// Completer is the slice of the language-model surface this stage uses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// analysisSchema gates the extracted payload before its fields are trusted.
const analysisSchema = `{
	"type": "object",
	"properties": {
		"intent": {"type": "string"},
		"urgency": {"type": "string"},
		"complexity": {"type": "string"},
		"ai_confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"needs_immediate_human": {"type": "boolean"},
		"reasoning": {"type": "string"}
	},
	"required": ["intent", "ai_confidence"]
}`

var knownIntents = map[string]bool{
	"account_help":      true,
	"billing":           true,
	"technical_support": true,
	"general_inquiry":   true,
	"urgent_issue":      true,
}

// Analyzer classifies a query's intent, urgency, and complexity and estimates
// whether the AI can handle the turn alone.
type Analyzer struct {
	completer Completer
	logger    logger.Logger
}

func NewAnalyzer(completer Completer, log logger.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// defaultResult is the safe fallback for any analysis failure. The 0.5
// confidence is deliberate: low enough to keep the turn out of green, high
// enough not to force a needless escalation.
func defaultResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Intent:              "general_inquiry",
		Urgency:             "medium",
		Complexity:          "moderate",
		AIConfidence:        0.5,
		NeedsImmediateHuman: false,
	}
}

// Analyze never fails: model errors, missing payloads, and schema violations
// all collapse to the safe default.
func (a *Analyzer) Analyze(ctx context.Context, query string) *models.AnalysisResult {
	text, err := a.completer.Complete(ctx, a.buildPrompt(query))
	if err != nil {
		a.logger.Warn("analysis call failed, using default", map[string]interface{}{
			"error": err.Error(),
		})
		return defaultResult()
	}

	payload, ok := llm.ExtractPayload(text)
	if !ok || !llm.ValidatePayload(payload, analysisSchema) {
		a.logger.Warn("analysis payload unusable, using default", map[string]interface{}{
			"responseChars": len(text),
		})
		return defaultResult()
	}

	result := &models.AnalysisResult{
		Intent:              strings.ToLower(llm.String(payload, "intent", "general_inquiry")),
		Urgency:             strings.ToLower(llm.String(payload, "urgency", "medium")),
		Complexity:          strings.ToLower(llm.String(payload, "complexity", "moderate")),
		AIConfidence:        models.Clamp01(llm.Float(payload, "ai_confidence", 0.5)),
		NeedsImmediateHuman: llm.Bool(payload, "needs_immediate_human", false),
		Reasoning:           llm.String(payload, "reasoning", ""),
	}

	if !knownIntents[result.Intent] {
		result.Intent = "general_inquiry"
	}

	a.logger.Info("query analyzed", map[string]interface{}{
		"intent":              result.Intent,
		"urgency":             result.Urgency,
		"aiConfidence":        result.AIConfidence,
		"needsImmediateHuman": result.NeedsImmediateHuman,
	})

	return result
}

func (a *Analyzer) buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are a support triage classifier. Analyze the customer message below and respond with a single JSON object:\n")
	b.WriteString(`{"intent": "account_help|billing|technical_support|general_inquiry|urgent_issue", "urgency": "low|medium|high", "complexity": "simple|moderate|complex", "ai_confidence": 0.0-1.0, "needs_immediate_human": true|false, "reasoning": "one sentence"}`)
	b.WriteString("\n\nai_confidence is your estimate of whether an AI assistant can resolve this alone. Set needs_immediate_human only for emergencies, legal threats, or explicit demands for a person.\n\n")
	b.WriteString(fmt.Sprintf("Customer message: %s\n", query))
	return b.String()
}
