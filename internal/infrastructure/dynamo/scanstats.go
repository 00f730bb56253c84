package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qr-nexus/internal/domain"
)

// batchGetLimit is DynamoDB's per-request cap for BatchGetItem.
const batchGetLimit = 100

// ScanStatRepo provides typed DynamoDB operations for the scan_stats table.
type ScanStatRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewScanStatRepo(client *dynamodb.Client, tableName string) *ScanStatRepo {
	return &ScanStatRepo{client: client, tableName: tableName}
}

// IncrementStat adds one to the counter for kind, creating the row when it
// does not exist yet. The ADD is applied server-side so concurrent calls
// never lose an increment.
func (r *ScanStatRepo) IncrementStat(ctx context.Context, t domain.StatTarget, kind domain.EngagementKind, at time.Time) error {
	counter, last := "total_scans", "last_scan_at"
	if kind == domain.EngagementView {
		counter, last = "total_views", "last_view_at"
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("target_id", t.TargetID),
		UpdateExpression: aws.String("ADD #c :one SET #l = :at, target_type = :tt, identity_id = :iid"),
		ExpressionAttributeNames: map[string]string{
			"#c": counter,
			"#l": last,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": num(1),
			":at":  str(at.UTC().Format(time.RFC3339Nano)),
			":tt":  str(t.TargetType),
			":iid": str(t.IdentityID),
		},
	})
	if err != nil {
		return storeErr("increment "+counter, err)
	}
	return nil
}

// Get returns the counters of a target. A target that was never engaged
// yields a zero-valued stat, not an error.
func (r *ScanStatRepo) Get(ctx context.Context, targetID string) (*domain.ScanStat, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("target_id", targetID),
	})
	if err != nil {
		return nil, storeErr("get scan stat", err)
	}
	st := domain.ScanStat{TargetID: targetID}
	if out.Item == nil {
		return &st, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("unmarshal scan stat: %w", err)
	}
	return &st, nil
}

// BatchGet loads the stats of many targets keyed by target_id. Targets
// without a row are absent from the result.
func (r *ScanStatRepo) BatchGet(ctx context.Context, targetIDs []string) (map[string]domain.ScanStat, error) {
	items, err := batchGetItems(ctx, r.client, r.tableName, "target_id", targetIDs)
	if err != nil {
		return nil, err
	}
	var rows []domain.ScanStat
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal scan stats: %w", err)
	}
	stats := make(map[string]domain.ScanStat, len(rows))
	for _, st := range rows {
		stats[st.TargetID] = st
	}
	return stats, nil
}

func (r *ScanStatRepo) DeleteMany(ctx context.Context, targetIDs []string) error {
	return batchDelete(ctx, r.client, r.tableName, "target_id", targetIDs)
}
