// internal/llm/payload.go
package llm

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ExtractPayload locates the first balanced JSON object embedded in untrusted
// model output and unmarshals it. Models wrap payloads in prose, markdown
// fences, or nothing at all; the scan tolerates all three. Returns ok=false on
// any parse failure so callers fall back to their stage defaults.
func ExtractPayload(text string) (map[string]interface{}, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					var payload map[string]interface{}
					if err := json.Unmarshal([]byte(text[start:i+1]), &payload); err != nil {
						return nil, false
					}
					return payload, true
				}
			}
		}
	}

	return nil, false
}

// ValidatePayload checks an extracted payload against a JSON schema document.
// A schema failure is reported the same way as a parse failure: the payload is
// unusable and the caller's default applies.
func ValidatePayload(payload map[string]interface{}, schemaJSON string) bool {
	docBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return false
	}
	return result.Valid()
}

// Float reads a numeric field from a payload, returning def when the field is
// absent or not a number.
func Float(payload map[string]interface{}, key string, def float64) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return def
}

// String reads a string field from a payload, returning def when the field is
// absent or empty.
func String(payload map[string]interface{}, key, def string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool reads a boolean field from a payload, returning def when absent.
func Bool(payload map[string]interface{}, key string, def bool) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return def
}
