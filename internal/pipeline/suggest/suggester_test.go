// internal/pipeline/suggest/suggester_test.go
package suggest

import (
	"context"
	"errors"
	"testing"

	"support-triage/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeCompleter struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func newTestSuggester(t *testing.T, completer *fakeCompleter) *Suggester {
	return NewSuggester(&Config{
		MaxSuggestions: 3,
		SkipThreshold:  0.7,
	}, completer, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSuggester_Suggest_ParsesSuggestions(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"suggestions": [
			{"text": "Ask the customer for their invoice number.", "confidence": 0.85},
			{"text": "Offer to resend the receipt by email.", "confidence": 0.75}
		]}`,
	}
	suggester := newTestSuggester(t, completer)

	suggestions := suggester.Suggest(context.Background(), "missing receipt", []string{"Receipts are emailed on purchase."}, 0.6)

	require.Len(t, suggestions, 2)
	assert.Equal(t, "suggestion-1", suggestions[0].ID)
	assert.Equal(t, "Ask the customer for their invoice number.", suggestions[0].Text)
	assert.Equal(t, 0.85, suggestions[0].Confidence)
	assert.Equal(t, "suggestion-2", suggestions[1].ID)
	assert.Contains(t, completer.prompt, "Receipts are emailed on purchase.")
}

func TestSuggester_Suggest_SkipsAboveThreshold(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		expectCall bool
	}{
		{name: "well above threshold", confidence: 0.9, expectCall: false},
		{name: "just above threshold", confidence: 0.71, expectCall: false},
		{name: "exactly at threshold", confidence: 0.7, expectCall: true},
		{name: "below threshold", confidence: 0.5, expectCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{
				response: `{"suggestions": [{"text": "candidate", "confidence": 0.8}]}`,
			}
			suggester := newTestSuggester(t, completer)

			suggestions := suggester.Suggest(context.Background(), "query", nil, tt.confidence)

			if tt.expectCall {
				assert.Equal(t, 1, completer.calls)
				assert.NotEmpty(t, suggestions)
			} else {
				assert.Equal(t, 0, completer.calls)
				assert.Nil(t, suggestions)
			}
		})
	}
}

func TestSuggester_Suggest_CapsAtMax(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"suggestions": [
			{"text": "one", "confidence": 0.9},
			{"text": "two", "confidence": 0.8},
			{"text": "three", "confidence": 0.7},
			{"text": "four", "confidence": 0.6},
			{"text": "five", "confidence": 0.5}
		]}`,
	}
	suggester := newTestSuggester(t, completer)

	suggestions := suggester.Suggest(context.Background(), "query", nil, 0.5)

	require.Len(t, suggestions, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{
		suggestions[0].Text, suggestions[1].Text, suggestions[2].Text,
	})
	assert.Equal(t, "suggestion-3", suggestions[2].ID)
}

func TestSuggester_Suggest_SkipsBlankEntries(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"suggestions": [
			{"text": "   ", "confidence": 0.9},
			{"confidence": 0.8},
			{"text": "usable", "confidence": 0.7},
			"not an object"
		]}`,
	}
	suggester := newTestSuggester(t, completer)

	suggestions := suggester.Suggest(context.Background(), "query", nil, 0.5)

	require.Len(t, suggestions, 1)
	assert.Equal(t, "suggestion-1", suggestions[0].ID)
	assert.Equal(t, "usable", suggestions[0].Text)
}

// ==========================
// Fallback Behavior Tests
// ==========================

func TestSuggester_Suggest_FallsBackToStatic(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "model call fails", err: errors.New("timeout")},
		{name: "response has no payload", response: "no structure here"},
		{name: "payload missing suggestions", response: `{"answers": []}`},
		{name: "suggestions list is empty", response: `{"suggestions": []}`},
		{name: "all entries unusable", response: `{"suggestions": [{"text": ""}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: tt.response, err: tt.err}
			suggester := newTestSuggester(t, completer)

			suggestions := suggester.Suggest(context.Background(), "query", nil, 0.5)

			require.Len(t, suggestions, 1)
			assert.Equal(t, "suggestion-1", suggestions[0].ID)
			assert.Equal(t, fallbackSuggestionText, suggestions[0].Text)
			assert.Equal(t, 0.8, suggestions[0].Confidence)
		})
	}
}
