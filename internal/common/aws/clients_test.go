// internal/common/aws/clients_test.go
package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-triage/internal/common/config"
)

func TestNewSESClient(t *testing.T) {
	client, err := NewSESClient(context.Background(), config.AWSConfig{Region: "eu-central-1"})

	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewSNSClient(t *testing.T) {
	client, err := NewSNSClient(context.Background(), config.AWSConfig{Region: "eu-central-1"})

	require.NoError(t, err)
	assert.NotNil(t, client)
}
