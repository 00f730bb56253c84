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

// CodeRepo provides typed DynamoDB operations for the codes table. Create and
// Delete keep identities.codes_count in step through a transaction.
type CodeRepo struct {
	client          *dynamodb.Client
	tableName       string
	identitiesTable string
}

func NewCodeRepo(client *dynamodb.Client, tableName, identitiesTable string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName, identitiesTable: identitiesTable}
}

// Create inserts a code under an identity owned by ownerID. If the identity
// is gone or owned by someone else the transaction is cancelled and
// ErrForbidden is returned.
func (r *CodeRepo) Create(ctx context.Context, c *domain.Code, ownerID string) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(code_id)"),
			}},
			r.countDelta(c.IdentityID, ownerID, 1),
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledBy(err, 0):
		return fmt.Errorf("code %s exists: %w", c.CodeID, domain.ErrConflict)
	case cancelledBy(err, 1):
		return fmt.Errorf("identity %s not owned: %w", c.IdentityID, domain.ErrForbidden)
	default:
		return storeErr("create code", err)
	}
}

func (r *CodeRepo) Get(ctx context.Context, codeID string) (*domain.Code, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("code_id", codeID),
	})
	if err != nil {
		return nil, storeErr("get code", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	var c domain.Code
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	return &c, nil
}

// ListByIdentity returns every code of an identity, following GSI pages.
func (r *CodeRepo) ListByIdentity(ctx context.Context, identityID string) ([]domain.Code, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("identity_id-index"),
		KeyConditionExpression: aws.String("identity_id = :iid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": str(identityID),
		},
	})
	var codes []domain.Code
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("query codes", err)
		}
		var batch []domain.Code
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal codes: %w", err)
		}
		codes = append(codes, batch...)
	}
	return codes, nil
}

// Update applies a partial SET to a code that still belongs to identityID.
func (r *CodeRepo) Update(ctx context.Context, codeID, identityID string, updates map[string]interface{}) (*domain.Code, error) {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#iid"] = fieldIdentityID
	ue.Values[":iid"] = str(identityID)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("code_id", codeID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("#iid = :iid"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("code %s moved or deleted: %w", codeID, domain.ErrForbidden)
	}
	if err != nil {
		return nil, storeErr("update code", err)
	}
	var c domain.Code
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	return &c, nil
}

// Delete removes a code and decrements its identity's codes_count.
func (r *CodeRepo) Delete(ctx context.Context, c *domain.Code, ownerID string) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:           aws.String(r.tableName),
				Key:                 strKey("code_id", c.CodeID),
				ConditionExpression: aws.String("identity_id = :iid"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":iid": str(c.IdentityID),
				},
			}},
			r.countDelta(c.IdentityID, ownerID, -1),
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledBy(err, 0), cancelledBy(err, 1):
		return fmt.Errorf("code %s not owned: %w", c.CodeID, domain.ErrForbidden)
	default:
		return storeErr("delete code", err)
	}
}

// DeleteMany removes codes by id without touching codes_count; used when the
// owning identity itself is being deleted.
func (r *CodeRepo) DeleteMany(ctx context.Context, codeIDs []string) error {
	return batchDelete(ctx, r.client, r.tableName, "code_id", codeIDs)
}

func (r *CodeRepo) Count(ctx context.Context) (int64, error) {
	return countTable(ctx, r.client, r.tableName)
}

func (r *CodeRepo) countDelta(identityID, ownerID string, delta int64) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           aws.String(r.identitiesTable),
		Key:                 strKey("identity_id", identityID),
		UpdateExpression:    aws.String("ADD codes_count :d SET updated_at = :now"),
		ConditionExpression: aws.String("owner_user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   num(delta),
			":uid": str(ownerID),
			":now": str(time.Now().UTC().Format(time.RFC3339)),
		},
	}}
}

// batchWriteLimit is DynamoDB's per-request cap for BatchWriteItem.
const batchWriteLimit = 25

// batchDelete deletes items by single-attribute key in chunks, resubmitting
// unprocessed items a bounded number of times.
func batchDelete(ctx context.Context, client *dynamodb.Client, table, keyName string, ids []string) error {
	for start := 0; start < len(ids); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(ids))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, id := range ids[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(keyName, id)},
			})
		}
		pending := map[string][]types.WriteRequest{table: reqs}
		for attempt := 0; len(pending[table]) > 0; attempt++ {
			if attempt == 3 {
				return storeErr("batch delete "+table, fmt.Errorf("%d items unprocessed", len(pending[table])))
			}
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return storeErr("batch delete "+table, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
