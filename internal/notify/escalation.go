// internal/notify/escalation.go
package notify

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"support-triage/internal/common/config"
	stderrors "support-triage/internal/common/errors"
	"support-triage/internal/common/logger"
	"support-triage/internal/models"
)

// EmailSender and SMSPublisher are the AWS surfaces this package uses; the
// concrete clients live in internal/common/aws.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// EscalationNotifier tells the agent desk about red transitions over email
// and/or SMS. Both channels are optional; a partially delivered notification
// still counts as delivered.
type EscalationNotifier struct {
	config *config.NotificationConfig
	email  EmailSender
	sms    SMSPublisher
	logger logger.Logger
}

func NewEscalationNotifier(cfg *config.NotificationConfig, email EmailSender, sms SMSPublisher, log logger.Logger) *EscalationNotifier {
	return &EscalationNotifier{
		config: cfg,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"component": "escalation-notifier"}),
	}
}

// NotifyEscalation publishes the escalation to every enabled channel. It
// returns an error only when every enabled channel failed.
func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, turn *models.ConversationTurn, result *models.WorkflowResult) error {
	var attempted, delivered int
	var lastErr error

	if n.config.Email.Enabled && n.email != nil {
		attempted++
		if err := n.sendEmail(ctx, turn, result); err != nil {
			lastErr = err
			n.logger.Warn("escalation email failed", map[string]interface{}{
				"conversationId": turn.ConversationID,
				"error":          err.Error(),
			})
		} else {
			delivered++
		}
	}

	if n.config.SMS.Enabled && n.sms != nil {
		attempted++
		if err := n.publishSMS(ctx, turn); err != nil {
			lastErr = err
			n.logger.Warn("escalation sms failed", map[string]interface{}{
				"conversationId": turn.ConversationID,
				"error":          err.Error(),
			})
		} else {
			delivered++
		}
	}

	if attempted > 0 && delivered == 0 {
		return stderrors.NewNotificationSendFailedError("escalation", lastErr)
	}
	return nil
}

func (n *EscalationNotifier) sendEmail(ctx context.Context, turn *models.ConversationTurn, result *models.WorkflowResult) error {
	subject := fmt.Sprintf("[Escalation] Conversation %s needs an agent", turn.ConversationID)
	body := fmt.Sprintf(
		"Tenant: %s\nConversation: %s\nConfidence: %.2f\n\nCustomer message:\n%s\n",
		turn.TenantID, turn.ConversationID, result.Confidence, turn.UserQuery,
	)

	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.config.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.config.Email.AgentDesk},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	return err
}

func (n *EscalationNotifier) publishSMS(ctx context.Context, turn *models.ConversationTurn) error {
	message := fmt.Sprintf("Support escalation: conversation %s (tenant %s) needs a human agent.", turn.ConversationID, turn.TenantID)

	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.config.SMS.TopicARN),
		Message:  awssdk.String(message),
	})
	return err
}
