package channels

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/pulsemetrics/pulseboard/internal/engine"
)

// snsPublisher is the slice of the SNS client the adapter needs.
type snsPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushAdapter delivers notifications to an SNS topic that mobile clients
// subscribe to.
type PushAdapter struct {
	client   snsPublisher
	topicARN string
}

// NewPushAdapter loads the default AWS configuration for the region and
// binds the adapter to a topic.
func NewPushAdapter(ctx context.Context, region, topicARN string) (*PushAdapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("push: load aws config: %w", err)
	}
	return &PushAdapter{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

// NewPushAdapterWithClient binds the adapter to an existing client, for tests.
func NewPushAdapterWithClient(client snsPublisher, topicARN string) *PushAdapter {
	return &PushAdapter{client: client, topicARN: topicARN}
}

// Channel implements engine.Adapter.
func (a *PushAdapter) Channel() engine.Channel { return engine.ChannelPush }

// Deliver implements engine.Adapter.
func (a *PushAdapter) Deliver(ctx context.Context, n engine.Notification) error {
	payload, err := json.Marshal(map[string]any{
		"id":       n.ID,
		"type":     n.Type,
		"priority": n.Priority,
		"title":    n.Title,
		"message":  n.Message,
	})
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	message := string(payload)
	subject := n.Title
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &a.topicARN,
		Subject:  &subject,
		Message:  &message,
	})
	if err != nil {
		return fmt.Errorf("push: publish: %w", err)
	}
	return nil
}
