package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/qr-nexus/internal/domain"
)

// EventRepo appends raw engagement events. Rows expire through the
// table's TTL on expires_at.
type EventRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEventRepo(client *dynamodb.Client, tableName string) *EventRepo {
	return &EventRepo{client: client, tableName: tableName}
}

func (r *EventRepo) Append(ctx context.Context, ev *domain.EngagementEvent) error {
	item, err := attributevalue.MarshalMap(ev)
	if err != nil {
		return fmt.Errorf("marshal engagement event: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("append engagement event", err)
	}
	return nil
}
