// internal/pipeline/generate/generator_test.go
package generate

import (
	"context"
	"errors"
	"testing"

	"support-triage/internal/common/logger"
	"support-triage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func newTestGenerator(t *testing.T, completer *fakeCompleter) *Generator {
	return NewGenerator(completer, logger.NewTestLogger(t))
}

func groundedRetrieval() *models.RetrievalResult {
	return &models.RetrievalResult{
		Passages: []string{"Refunds are processed within 5 business days."},
		Sources: []models.SourceRef{
			{DocumentID: "doc-refunds", DisplayName: "Refund Policy", PassageCount: 1},
		},
	}
}

func fallbackRetrieval() *models.RetrievalResult {
	return &models.RetrievalResult{
		Passages:     []string{"Our support team is available to help."},
		Sources:      []models.SourceRef{{DocumentID: "general-support-guide", DisplayName: "General Support Guide", PassageCount: 1}},
		UsedFallback: true,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestGenerator_Generate_StructuredResponse(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"response": "Refunds take 5 business days.", "confidence": 0.7, "needs_human": false}`,
	}
	generator := newTestGenerator(t, completer)

	result := generator.Generate(context.Background(), "when will I get my refund?", groundedRetrieval())

	require.NotNil(t, result)
	assert.Equal(t, "Refunds take 5 business days.", result.ResponseText)
	// 0.7 self-reported, +0.1 grounded boost.
	assert.InDelta(t, 0.8, result.SelfConfidence, 1e-9)
	assert.False(t, result.SuggestsHumanHelp)
	assert.Contains(t, completer.prompt, "Refunds are processed within 5 business days.")
	assert.Contains(t, completer.prompt, "Refund Policy")
}

func TestGenerator_Generate_PlainTextResponse(t *testing.T) {
	completer := &fakeCompleter{response: "Refunds take 5 business days."}
	generator := newTestGenerator(t, completer)

	result := generator.Generate(context.Background(), "refund timing?", groundedRetrieval())

	assert.Equal(t, "Refunds take 5 business days.", result.ResponseText)
	// Default 0.8 self-confidence, +0.1 grounded boost.
	assert.InDelta(t, 0.9, result.SelfConfidence, 1e-9)
	assert.False(t, result.SuggestsHumanHelp)
}

func TestGenerator_Generate_NeedsHumanFlagPropagates(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"response": "I can see the charge but cannot reverse it myself.", "confidence": 0.6, "needs_human": true}`,
	}
	generator := newTestGenerator(t, completer)

	result := generator.Generate(context.Background(), "reverse this charge", groundedRetrieval())

	assert.True(t, result.SuggestsHumanHelp)
}

// ==========================
// Confidence Policy Tests
// ==========================

func TestApplyConfidencePolicy(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		response   string
		retrieval  *models.RetrievalResult
		expected   float64
	}{
		{
			name:       "grounded boost",
			confidence: 0.7,
			response:   "Here is the answer.",
			retrieval:  groundedRetrieval(),
			expected:   0.8,
		},
		{
			name:       "grounded boost clamps at 0.95",
			confidence: 0.92,
			response:   "Here is the answer.",
			retrieval:  groundedRetrieval(),
			expected:   0.95,
		},
		{
			name:       "hedge cap applies",
			confidence: 0.9,
			response:   "I'm not sure, but it might be five days.",
			retrieval:  &models.RetrievalResult{},
			expected:   0.6,
		},
		{
			name:       "hedge cap leaves lower values alone",
			confidence: 0.4,
			response:   "I don't know the exact policy.",
			retrieval:  &models.RetrievalResult{},
			expected:   0.4,
		},
		{
			name:       "fallback context caps at 0.5",
			confidence: 0.9,
			response:   "Here is a general answer.",
			retrieval:  fallbackRetrieval(),
			expected:   0.5,
		},
		{
			name:       "hedged answer with real sources is capped before any boost",
			confidence: 0.9,
			response:   "I'm not sure about this one.",
			retrieval:  groundedRetrieval(),
			expected:   0.7, // capped to 0.6, then +0.1 grounded
		},
		{
			name:       "hedged fallback answer takes both caps",
			confidence: 0.9,
			response:   "I'm unable to say for certain.",
			retrieval:  fallbackRetrieval(),
			expected:   0.5,
		},
		{
			name:       "no sources and no fallback leaves confidence untouched",
			confidence: 0.7,
			response:   "Here is the answer.",
			retrieval:  &models.RetrievalResult{},
			expected:   0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyConfidencePolicy(tt.confidence, tt.response, tt.retrieval)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

// ==========================
// Fallback Behavior Tests
// ==========================

func TestGenerator_Generate_ModelFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream 503")}
	generator := newTestGenerator(t, completer)

	result := generator.Generate(context.Background(), "anything", groundedRetrieval())

	require.NotNil(t, result)
	assert.Equal(t, failureResponseText, result.ResponseText)
	assert.Equal(t, 0.3, result.SelfConfidence)
	assert.True(t, result.SuggestsHumanHelp)
	assert.True(t, result.Failed)
}

func TestGenerator_Generate_SuccessIsNotMarkedFailed(t *testing.T) {
	completer := &fakeCompleter{response: `{"response": "All set.", "confidence": 0.9}`}
	generator := newTestGenerator(t, completer)

	result := generator.Generate(context.Background(), "anything", groundedRetrieval())

	assert.False(t, result.Failed)
}

func TestGenerator_Generate_EmptyResponseText(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "payload with empty response field", response: `{"response": "  ", "confidence": 0.9}`},
		{name: "completely empty completion", response: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: tt.response}
			generator := newTestGenerator(t, completer)

			result := generator.Generate(context.Background(), "question", &models.RetrievalResult{})

			assert.Equal(t, "I don't have enough information to answer that question.", result.ResponseText)
			assert.InDelta(t, 0.1, result.SelfConfidence, 1e-9)
		})
	}
}
