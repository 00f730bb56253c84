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

// IdentityRepo provides typed DynamoDB operations for the identities table.
// Claim and Delete also touch the owner's users row so that the
// users.identity_id pointer and identities.owner_user_id never disagree.
type IdentityRepo struct {
	client     *dynamodb.Client
	tableName  string
	usersTable string
}

func NewIdentityRepo(client *dynamodb.Client, tableName, usersTable string) *IdentityRepo {
	return &IdentityRepo{client: client, tableName: tableName, usersTable: usersTable}
}

// Claim inserts the identity and points its owner at it in one transaction.
// A handle collision returns ErrHandleTaken; an owner who already holds an
// identity returns ErrConflict.
func (r *IdentityRepo) Claim(ctx context.Context, ident *domain.Identity) error {
	item, err := attributevalue.MarshalMap(ident)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(identity_id)"),
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.usersTable),
				Key:                 strKey("user_id", ident.OwnerUserID),
				UpdateExpression:    aws.String("SET identity_id = :id, updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(user_id) AND attribute_not_exists(identity_id)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id":  str(ident.IdentityID),
					":now": str(ident.CreatedAt.UTC().Format(time.RFC3339)),
				},
			}},
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledBy(err, 0):
		return fmt.Errorf("claim %s: %w", ident.IdentityID, domain.ErrHandleTaken)
	case cancelledBy(err, 1):
		return fmt.Errorf("user already owns an identity: %w", domain.ErrConflict)
	default:
		return storeErr("claim identity", err)
	}
}

func (r *IdentityRepo) Get(ctx context.Context, identityID string) (*domain.Identity, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("identity_id", identityID),
	})
	if err != nil {
		return nil, storeErr("get identity", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	var ident domain.Identity
	if err := attributevalue.UnmarshalMap(out.Item, &ident); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &ident, nil
}

func (r *IdentityRepo) GetByOwner(ctx context.Context, userID string) (*domain.Identity, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("owner_user_id-index"),
		KeyConditionExpression: aws.String("owner_user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": str(userID),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, storeErr("query identities", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	var ident domain.Identity
	if err := attributevalue.UnmarshalMap(out.Items[0], &ident); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &ident, nil
}

// Update applies a partial SET and returns the stored identity afterwards.
func (r *IdentityRepo) Update(ctx context.Context, identityID string, updates map[string]interface{}) (*domain.Identity, error) {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("identity_id", identityID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(identity_id)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("identity not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("update identity", err)
	}
	var ident domain.Identity
	if err := attributevalue.UnmarshalMap(out.Attributes, &ident); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &ident, nil
}

// Delete removes the identity and clears the owner's pointer in one
// transaction. The delete is conditioned on ownership.
func (r *IdentityRepo) Delete(ctx context.Context, identityID, ownerID string) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 strKey("identity_id", identityID),
				ConditionExpression: aws.String("owner_user_id = :uid"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":uid": str(ownerID),
				},
			}},
			{Update: &types.Update{
				TableName:        aws.String(r.usersTable),
				Key:              strKey("user_id", ownerID),
				UpdateExpression: aws.String("REMOVE identity_id SET updated_at = :now"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":now": str(time.Now().UTC().Format(time.RFC3339)),
				},
			}},
		},
	})
	if cancelledBy(err, 0) {
		return fmt.Errorf("identity %s not owned: %w", identityID, domain.ErrForbidden)
	}
	if err != nil {
		return storeErr("delete identity", err)
	}
	return nil
}

// ScanPage returns a page of owned identities for the discovery hub.
// cursor is a base64-encoded identity_id used as ExclusiveStartKey.
func (r *IdentityRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Identity, string, error) {
	return scanPage[domain.Identity](ctx, r.client, pageQuery{
		table:   r.tableName,
		keyAttr: "identity_id",
		filter:  "attribute_exists(owner_user_id)",
		limit:   limit,
		cursor:  cursor,
	})
}

// ScanAllPage is ScanPage including orphaned identities.
func (r *IdentityRepo) ScanAllPage(ctx context.Context, limit int32, cursor string) ([]domain.Identity, string, error) {
	return scanPage[domain.Identity](ctx, r.client, pageQuery{
		table:   r.tableName,
		keyAttr: "identity_id",
		limit:   limit,
		cursor:  cursor,
	})
}

func (r *IdentityRepo) Count(ctx context.Context) (int64, error) {
	return countTable(ctx, r.client, r.tableName)
}
