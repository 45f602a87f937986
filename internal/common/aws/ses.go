// internal/common/aws/ses.go

// Package aws holds the thin AWS clients behind the escalation notifier.
// The wrappers expose one method each so internal/notify can be tested
// against small interfaces instead of the full SDK surface.
package aws

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"support-triage/internal/common/config"
)

// SESClient sends the agent-desk escalation emails.
type SESClient struct {
	client *ses.Client
}

func NewSESClient(ctx context.Context, cfg config.AWSConfig) (*SESClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(awsCfg)}, nil
}

func (s *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	return s.client.SendEmail(ctx, input)
}
