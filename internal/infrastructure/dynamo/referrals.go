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

// ReferralRepo writes referral conversions together with the referrer's award.
type ReferralRepo struct {
	client      *dynamodb.Client
	tableName   string
	pointsTable string
}

func NewReferralRepo(client *dynamodb.Client, tableName, pointsTable string) *ReferralRepo {
	return &ReferralRepo{client: client, tableName: tableName, pointsTable: pointsTable}
}

// Convert inserts the (referrer, visitor) row and credits the referrer in
// one transaction. It reports false, with no error, when the pair already
// converted; in that case nothing was written.
func (r *ReferralRepo) Convert(ctx context.Context, conv *domain.ReferralConversion, award int64) (bool, error) {
	item, err := attributevalue.MarshalMap(conv)
	if err != nil {
		return false, fmt.Errorf("marshal referral conversion: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(referrer_id)"),
			}},
			{Update: &types.Update{
				TableName:        aws.String(r.pointsTable),
				Key:              strKey("user_id", conv.ReferrerID),
				UpdateExpression: aws.String("ADD #pts :award, #refs :one SET #upd = :upd"),
				ExpressionAttributeNames: map[string]string{
					"#pts":  fieldTotalPoints,
					"#refs": fieldTotalReferrals,
					"#upd":  fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":award": num(award),
					":one":   num(1),
					":upd":   str(conv.CreatedAt.UTC().Format(time.RFC3339)),
				},
			}},
		},
	})
	if cancelledBy(err, 0) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("convert referral", err)
	}
	return true, nil
}
