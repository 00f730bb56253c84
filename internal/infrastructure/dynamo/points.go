package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qr-nexus/internal/domain"
)

// PointsRepo provides typed DynamoDB operations for the user_points table.
type PointsRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewPointsRepo(client *dynamodb.Client, tableName string) *PointsRepo {
	return &PointsRepo{client: client, tableName: tableName}
}

// Get returns the balance of a user; a user who never earned points gets
// a zero balance.
func (r *PointsRepo) Get(ctx context.Context, userID string) (*domain.UserPoints, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, storeErr("get points", err)
	}
	p := domain.UserPoints{UserID: userID}
	if out.Item == nil {
		return &p, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal points: %w", err)
	}
	return &p, nil
}

// BatchGet loads the balances of many users keyed by user_id. Users who
// never earned points are absent from the result.
func (r *PointsRepo) BatchGet(ctx context.Context, userIDs []string) (map[string]domain.UserPoints, error) {
	items, err := batchGetItems(ctx, r.client, r.tableName, "user_id", userIDs)
	if err != nil {
		return nil, err
	}
	var rows []domain.UserPoints
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal points: %w", err)
	}
	balances := make(map[string]domain.UserPoints, len(rows))
	for _, p := range rows {
		balances[p.UserID] = p
	}
	return balances, nil
}

// AwardShare adds the share award in a single conditional update. The
// condition admits the first share ever or one at least Cooldown after the
// previous. On rejection the old row comes back with the exception, so the
// remaining wait is computed without a second read.
func (r *PointsRepo) AwardShare(ctx context.Context, a domain.ShareAward) (*domain.UserPoints, error) {
	cutoff := a.Now.Add(-a.Cooldown).Unix()
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", a.UserID),
		UpdateExpression: aws.String(
			"ADD #pts :award, #shares :one SET #last = :now, #chan = :chan, #upd = :upd"),
		ConditionExpression: aws.String("attribute_not_exists(#last) OR #last <= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#pts":    fieldTotalPoints,
			"#shares": fieldTotalShares,
			"#last":   fieldLastShareAt,
			"#chan":   fieldLastShareChannel,
			"#upd":    fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":award":  num(a.Points),
			":one":    num(1),
			":now":    num(a.Now.Unix()),
			":cutoff": num(cutoff),
			":chan":   str(a.Channel),
			":upd":    str(a.Now.UTC().Format(time.RFC3339)),
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, &domain.CooldownError{Remaining: remainingCooldown(ccf.Item, a.Now, a.Cooldown)}
		}
		return nil, storeErr("award share", err)
	}
	var p domain.UserPoints
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal points: %w", err)
	}
	return &p, nil
}

// remainingCooldown reads last_share_at (unix seconds) off the rejected row.
func remainingCooldown(old map[string]types.AttributeValue, now time.Time, cooldown time.Duration) time.Duration {
	n, ok := old[fieldLastShareAt].(*types.AttributeValueMemberN)
	if !ok {
		return cooldown
	}
	secs, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return cooldown
	}
	return time.Unix(secs, 0).Add(cooldown).Sub(now)
}

// SetTotal overwrites total_points and returns the previous value.
func (r *PointsRepo) SetTotal(ctx context.Context, userID string, total int64) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("user_id", userID),
		UpdateExpression: aws.String("SET #pts = :n, #upd = :upd"),
		ExpressionAttributeNames: map[string]string{
			"#pts": fieldTotalPoints,
			"#upd": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":   num(total),
			":upd": str(time.Now().UTC().Format(time.RFC3339)),
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return 0, storeErr("set points", err)
	}
	var old domain.UserPoints
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return 0, fmt.Errorf("unmarshal points: %w", err)
	}
	return old.TotalPoints, nil
}
