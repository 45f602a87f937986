// internal/llm/payload_test.go
package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Payload Extraction Tests
// ==========================

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expectOK bool
		validate func(t *testing.T, payload map[string]interface{})
	}{
		{
			name:     "bare JSON object",
			text:     `{"intent": "billing", "ai_confidence": 0.9}`,
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, "billing", payload["intent"])
				assert.Equal(t, 0.9, payload["ai_confidence"])
			},
		},
		{
			name:     "JSON wrapped in prose",
			text:     "Sure! Here is my analysis:\n{\"intent\": \"account_help\"}\nLet me know if you need more.",
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, "account_help", payload["intent"])
			},
		},
		{
			name:     "JSON inside a markdown fence",
			text:     "```json\n{\"confidence\": 0.75, \"needs_human\": false}\n```",
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, 0.75, payload["confidence"])
				assert.Equal(t, false, payload["needs_human"])
			},
		},
		{
			name:     "nested objects balance correctly",
			text:     `prefix {"outer": {"inner": {"deep": 1}}, "flag": true} suffix`,
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, true, payload["flag"])
				outer, ok := payload["outer"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, outer, "inner")
			},
		},
		{
			name:     "braces inside string values are ignored",
			text:     `{"response": "use {curly} braces like this }", "confidence": 0.8}`,
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, "use {curly} braces like this }", payload["response"])
				assert.Equal(t, 0.8, payload["confidence"])
			},
		},
		{
			name:     "escaped quotes inside strings",
			text:     `{"response": "she said \"hello\" to me"}`,
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Equal(t, `she said "hello" to me`, payload["response"])
			},
		},
		{
			name:     "no JSON object at all",
			text:     "I am just plain prose with no structure.",
			expectOK: false,
		},
		{
			name:     "unterminated object",
			text:     `{"intent": "billing", "ai_confidence": 0.9`,
			expectOK: false,
		},
		{
			name:     "malformed JSON inside balanced braces",
			text:     `{"intent": billing}`,
			expectOK: false,
		},
		{
			name:     "empty input",
			text:     "",
			expectOK: false,
		},
		{
			name:     "empty object",
			text:     "{}",
			expectOK: true,
			validate: func(t *testing.T, payload map[string]interface{}) {
				assert.Empty(t, payload)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok := ExtractPayload(tt.text)
			assert.Equal(t, tt.expectOK, ok)
			if tt.expectOK {
				require.NotNil(t, payload)
				if tt.validate != nil {
					tt.validate(t, payload)
				}
			} else {
				assert.Nil(t, payload)
			}
		})
	}
}

func TestExtractPayload_FirstObjectWins(t *testing.T) {
	payload, ok := ExtractPayload(`{"first": 1} {"second": 2}`)
	require.True(t, ok)
	assert.Contains(t, payload, "first")
	assert.NotContains(t, payload, "second")
}

// ==========================
// Schema Validation Tests
// ==========================

func TestValidatePayload(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"intent": {"type": "string"},
			"ai_confidence": {"type": "number", "minimum": 0, "maximum": 1}
		},
		"required": ["intent", "ai_confidence"]
	}`

	tests := []struct {
		name    string
		payload map[string]interface{}
		valid   bool
	}{
		{
			name:    "conforming payload",
			payload: map[string]interface{}{"intent": "billing", "ai_confidence": 0.9},
			valid:   true,
		},
		{
			name:    "missing required field",
			payload: map[string]interface{}{"intent": "billing"},
			valid:   false,
		},
		{
			name:    "confidence out of range",
			payload: map[string]interface{}{"intent": "billing", "ai_confidence": 1.5},
			valid:   false,
		},
		{
			name:    "wrong field type",
			payload: map[string]interface{}{"intent": 42, "ai_confidence": 0.9},
			valid:   false,
		},
		{
			name:    "extra fields are tolerated",
			payload: map[string]interface{}{"intent": "billing", "ai_confidence": 0.9, "reasoning": "clear"},
			valid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidatePayload(tt.payload, schema))
		})
	}
}

func TestValidatePayload_BrokenSchema(t *testing.T) {
	payload := map[string]interface{}{"intent": "billing"}
	assert.False(t, ValidatePayload(payload, `{"type": `))
}

// ==========================
// Field Accessor Tests
// ==========================

func TestFieldAccessors(t *testing.T) {
	payload := map[string]interface{}{
		"confidence": 0.42,
		"intent":     "billing",
		"empty":      "",
		"flag":       true,
		"number_str": "0.9",
	}

	t.Run("Float", func(t *testing.T) {
		assert.Equal(t, 0.42, Float(payload, "confidence", 0.5))
		assert.Equal(t, 0.5, Float(payload, "missing", 0.5))
		assert.Equal(t, 0.5, Float(payload, "intent", 0.5))
		assert.Equal(t, 0.5, Float(payload, "number_str", 0.5))
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "billing", String(payload, "intent", "fallback"))
		assert.Equal(t, "fallback", String(payload, "missing", "fallback"))
		assert.Equal(t, "fallback", String(payload, "empty", "fallback"))
		assert.Equal(t, "fallback", String(payload, "confidence", "fallback"))
	})

	t.Run("Bool", func(t *testing.T) {
		assert.True(t, Bool(payload, "flag", false))
		assert.False(t, Bool(payload, "missing", false))
		assert.True(t, Bool(payload, "missing", true))
		assert.False(t, Bool(payload, "intent", false))
	})
}
