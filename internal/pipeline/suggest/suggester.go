// internal/pipeline/suggest/suggester.go
package suggest

import (
	"context"
	"fmt"
	"strings"

	"support-triage/internal/common/logger"
	"support-triage/internal/llm"
	"support-triage/internal/models"
)

const Stage = "suggest"

// Completer is the slice of the language-model surface this stage uses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the suggestion settings.
type Config struct {
	MaxSuggestions int
	// SkipThreshold is the combined confidence above which no suggestions are
	// generated; the AI's own answer is trusted enough.
	SkipThreshold float64
}

const fallbackSuggestionText = "Review the conversation context and assist the customer manually."

// Suggester produces agent-facing candidate replies when the AI's own answer
// is in doubt.
type Suggester struct {
	config    *Config
	completer Completer
	logger    logger.Logger
}

func NewSuggester(config *Config, completer Completer, log logger.Logger) *Suggester {
	return &Suggester{
		config:    config,
		completer: completer,
		logger:    log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// Suggest returns up to MaxSuggestions candidate replies, or nil when the
// combined confidence clears the skip threshold. Generation failure degrades
// to a single static suggestion rather than an error.
func (s *Suggester) Suggest(ctx context.Context, query string, passages []string, combinedConfidence float64) []models.Suggestion {
	if combinedConfidence > s.config.SkipThreshold {
		return nil
	}

	text, err := s.completer.Complete(ctx, s.buildPrompt(query, passages))
	if err != nil {
		s.logger.Warn("suggestion call failed, using static fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return s.fallback()
	}

	payload, ok := llm.ExtractPayload(text)
	if !ok {
		return s.fallback()
	}

	rawList, ok := payload["suggestions"].([]interface{})
	if !ok || len(rawList) == 0 {
		return s.fallback()
	}

	suggestions := make([]models.Suggestion, 0, s.config.MaxSuggestions)
	for _, raw := range rawList {
		if len(suggestions) == s.config.MaxSuggestions {
			break
		}
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		suggestionText := strings.TrimSpace(llm.String(entry, "text", ""))
		if suggestionText == "" {
			continue
		}
		suggestions = append(suggestions, models.Suggestion{
			ID:         fmt.Sprintf("suggestion-%d", len(suggestions)+1),
			Text:       suggestionText,
			Confidence: models.Clamp01(llm.Float(entry, "confidence", 0.7)),
		})
	}

	if len(suggestions) == 0 {
		return s.fallback()
	}

	s.logger.Info("suggestions generated", map[string]interface{}{
		"count": len(suggestions),
	})

	return suggestions
}

func (s *Suggester) fallback() []models.Suggestion {
	return []models.Suggestion{{
		ID:         "suggestion-1",
		Text:       fallbackSuggestionText,
		Confidence: 0.8,
	}}
}

func (s *Suggester) buildPrompt(query string, passages []string) string {
	var parts []string

	parts = append(parts, "You are assisting a human support agent. The AI assistant is not confident enough to answer autonomously.")
	parts = append(parts, fmt.Sprintf("Propose up to %d short candidate replies the agent could send.", s.config.MaxSuggestions))
	parts = append(parts, fmt.Sprintf("\nCustomer question: %s", query))

	if len(passages) > 0 {
		parts = append(parts, "\nKnowledge passages:")
		for i, p := range passages {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, p))
		}
	}

	parts = append(parts, "\nRespond with a single JSON object:")
	parts = append(parts, `{"suggestions": [{"text": "candidate reply", "confidence": 0.0-1.0}]}`)

	return strings.Join(parts, "\n")
}
