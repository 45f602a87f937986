// internal/common/aws/sns.go
package aws

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"support-triage/internal/common/config"
)

// SNSClient publishes escalation notices to the agent-desk SMS topic.
type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(ctx context.Context, cfg config.AWSConfig) (*SNSClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}
