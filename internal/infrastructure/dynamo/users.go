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

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Put inserts a new user. An existing user_id is reported as ErrConflict.
func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s exists: %w", u.UserID, domain.ErrConflict)
	}
	if err != nil {
		return storeErr("put user", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, "username-index", "username", username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

// Update applies a partial SET on an existing user. A missing user is
// reported as ErrNotFound instead of silently creating a stub row.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return storeErr("update user", err)
	}
	return nil
}

// SetStatus overwrites the account status and returns the previous one.
func (r *UserRepo) SetStatus(ctx context.Context, userID, status, reason string) (string, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("user_id", userID),
		UpdateExpression: aws.String("SET #s = :s, status_reason = :r, updated_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":   str(status),
			":r":   str(reason),
			":now": str(time.Now().UTC().Format(time.RFC3339)),
		},
		ConditionExpression: aws.String("attribute_exists(user_id)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return "", fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", storeErr("set user status", err)
	}
	var old domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return "", fmt.Errorf("unmarshal user: %w", err)
	}
	if old.Status == "" {
		old.Status = domain.UserStatusActive
	}
	return old.Status, nil
}

// ScanPage returns a page of users in table order.
func (r *UserRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	return scanPage[domain.User](ctx, r.client, pageQuery{
		table:   r.tableName,
		keyAttr: "user_id",
		limit:   limit,
		cursor:  cursor,
	})
}

// Count returns the number of user rows.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	return countTable(ctx, r.client, r.tableName)
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": str(value)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, storeErr("query users", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// countTable runs a paginated COUNT scan over a whole table.
func countTable(ctx context.Context, client *dynamodb.Client, table string) (int64, error) {
	p := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Select:    types.SelectCount,
	})
	var total int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, storeErr("count "+table, err)
		}
		total += int64(page.Count)
	}
	return total, nil
}
