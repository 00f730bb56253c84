package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/qr-nexus/internal/config"
	"github.com/qr-nexus/internal/domain"
)

// Publisher fans ledger and admin events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

type topicPublisher struct {
	client   *sns.Client
	topicARN string
}

// NewPublisher returns a publisher for cfg.SNSTopicARN, or a no-op publisher
// when no topic is configured. Each round-trip is bounded by cfg.StoreTimeout.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, error) {
	if cfg.SNSTopicARN == "" {
		return Nop{}, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.StoreTimeout)),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SNS: %w", err)
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &topicPublisher{client: client, topicARN: cfg.SNSTopicARN}, nil
}

func (p *topicPublisher) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", ev.Type, err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }
