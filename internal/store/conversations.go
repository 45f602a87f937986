// internal/store/conversations.go
package store

import (
	"context"
	"database/sql"

	stderrors "support-triage/internal/common/errors"
	"support-triage/internal/common/logger"
	"support-triage/internal/models"
)

// ConversationStore persists conversation status transitions. The pipeline
// only writes red transitions; creation, resolution, and archiving are owned
// elsewhere.
type ConversationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewConversationStore(db *sql.DB, log logger.Logger) *ConversationStore {
	return &ConversationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "conversation-store"}),
	}
}

const updateStatusQuery = `
	UPDATE conversations
	SET status = $2,
	    assigned_agent_id = COALESCE(NULLIF($3, ''), assigned_agent_id),
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, tenant_id, status, COALESCE(assigned_agent_id, ''), updated_at`

// UpdateConversationStatus sets the conversation's status tier and returns the
// updated record. The statement is idempotent: repeating the same transition
// rewrites the same values.
func (s *ConversationStore) UpdateConversationStatus(ctx context.Context, conversationID string, severity models.Severity, assignedAgentID string) (*models.ConversationRecord, error) {
	var record models.ConversationRecord
	err := s.db.QueryRowContext(ctx, updateStatusQuery, conversationID, string(severity), assignedAgentID).
		Scan(&record.ID, &record.TenantID, &record.Status, &record.AssignedAgentID, &record.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, stderrors.NewConversationMissingError(conversationID)
		}
		return nil, stderrors.NewStatusUpdateFailedError(err)
	}

	s.logger.Info("conversation status updated", map[string]interface{}{
		"conversationId": record.ID,
		"status":         string(record.Status),
	})

	return &record, nil
}
