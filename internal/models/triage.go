// internal/models/triage.go
package models

import "time"

// Severity is the tri-state classification of a conversation turn's need for
// human attention.
type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

// Message is a single prior turn in a conversation. Role is "user" or
// "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationTurn is the unit of work entering the pipeline. It is built per
// inbound message and discarded after one WorkflowResult.
type ConversationTurn struct {
	ConversationID string    `json:"conversationId"`
	TenantID       string    `json:"tenantId"`
	UserQuery      string    `json:"userQuery"`
	PriorMessages  []Message `json:"priorMessages,omitempty"`
}

// AnalysisResult is the analyzer's judgment of a single query.
type AnalysisResult struct {
	Intent              string  `json:"intent"`
	Urgency             string  `json:"urgency"`
	Complexity          string  `json:"complexity"`
	AIConfidence        float64 `json:"aiConfidence"`
	NeedsImmediateHuman bool    `json:"needsImmediateHuman"`
	Reasoning           string  `json:"reasoning,omitempty"`
}

// SourceRef describes one knowledge-base document that contributed passages
// to a retrieval, for citation display.
type SourceRef struct {
	DocumentID   string `json:"documentId"`
	DisplayName  string `json:"displayName"`
	PassageCount int    `json:"passageCount"`
}

// RetrievalResult carries ranked grounding passages plus provenance.
// UsedFallback is true when tenant-specific retrieval yielded nothing and the
// static fallback set was substituted.
type RetrievalResult struct {
	Passages     []string    `json:"passages"`
	Sources      []SourceRef `json:"sources"`
	UsedFallback bool        `json:"usedFallback"`
}

// GenerationResult is the generator's candidate answer with its self-reported
// quality estimate after the confidence policy has been applied.
type GenerationResult struct {
	ResponseText      string  `json:"responseText"`
	SelfConfidence    float64 `json:"selfConfidence"`
	SuggestsHumanHelp bool    `json:"suggestsHumanHelp"`
	// Failed marks the fallback emitted when the model produced no usable
	// output at all, as opposed to a low-quality answer.
	Failed bool `json:"failed,omitempty"`
}

// Suggestion is an agent-facing candidate reply.
type Suggestion struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// WorkflowResult is the orchestrator's output contract. Confidence is the
// combined analyzer/generator blend and the only confidence value callers
// should trust.
type WorkflowResult struct {
	Response    string       `json:"response"`
	Severity    Severity     `json:"severity"`
	Confidence  float64      `json:"confidence"`
	Suggestions []Suggestion `json:"suggestions"`
	Sources     []SourceRef  `json:"sources"`
}

// ConversationRecord mirrors the conversations table row returned by the
// status store after an update.
type ConversationRecord struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	Status          Severity  `json:"status"`
	AssignedAgentID string    `json:"assignedAgentId,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Clamp01 bounds a confidence score to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
