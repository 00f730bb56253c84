package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qr-nexus/internal/domain"
)

// AuditRepo stores append-only admin audit entries.
type AuditRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAuditRepo(client *dynamodb.Client, tableName string) *AuditRepo {
	return &AuditRepo{client: client, tableName: tableName}
}

func (r *AuditRepo) Put(ctx context.Context, e *domain.AuditLogEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(entry_id)"),
	})
	if err != nil {
		return storeErr("put audit entry", err)
	}
	return nil
}

// ListPage returns a page of audit entries, optionally only those written by
// adminID. cursor is a base64-encoded entry_id used as ExclusiveStartKey.
func (r *AuditRepo) ListPage(ctx context.Context, adminID string, limit int32, cursor string) ([]domain.AuditLogEntry, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Limit:     aws.Int32(limit),
	}
	if adminID != "" {
		input.FilterExpression = aws.String("admin_id = :a")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{":a": str(adminID)}
	}
	if cursor != "" {
		entryID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey("entry_id", entryID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", storeErr("scan audit logs", err)
	}
	var entries []domain.AuditLogEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, "", fmt.Errorf("unmarshal audit logs: %w", err)
	}
	next := ""
	if v, ok := out.LastEvaluatedKey["entry_id"].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return entries, next, nil
}
