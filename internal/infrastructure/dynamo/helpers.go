package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qr-nexus/internal/domain"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func num(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", v)}
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are emitted in sorted order so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (updateExpr, error) {
	if len(updates) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := updateExpr{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	parts := make([]string, 0, len(keys))
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		parts = append(parts, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	ue.Expr = "SET " + strings.Join(parts, ", ")
	return ue, nil
}

// storeErr marks an SDK failure as a transient store fault while keeping the
// original error in the chain for logging.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelledBy reports whether a transaction was cancelled because the
// condition on item index failed.
func cancelledBy(err error, index int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || index >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[index].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// pageQuery describes one paged scan over a table keyed by a single string
// attribute. filter is optional.
type pageQuery struct {
	table   string
	keyAttr string
	filter  string
	limit   int32
	cursor  string
}

// scanPage fills a page of up to q.limit items. A filtered Scan may match
// fewer items than it evaluates, so it keeps scanning until the page is full
// or the table is exhausted. Each round asks for only the missing items, so
// when the page fills the last evaluated key is the last item returned.
// The cursor is empty once nothing remains.
func scanPage[T any](ctx context.Context, client *dynamodb.Client, q pageQuery) ([]T, string, error) {
	var start map[string]types.AttributeValue
	if q.cursor != "" {
		id, err := decodeCursor(q.cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		start = strKey(q.keyAttr, id)
	}
	items := make([]T, 0, q.limit)
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(q.table),
			Limit:             aws.Int32(q.limit - int32(len(items))),
			ExclusiveStartKey: start,
		}
		if q.filter != "" {
			input.FilterExpression = aws.String(q.filter)
		}
		out, err := client.Scan(ctx, input)
		if err != nil {
			return nil, "", storeErr("scan "+q.table, err)
		}
		var page []T
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, "", fmt.Errorf("unmarshal %s: %w", q.table, err)
		}
		items = append(items, page...)
		start = out.LastEvaluatedKey
		if len(start) == 0 {
			return items, "", nil
		}
		if int32(len(items)) >= q.limit {
			break
		}
	}
	v, ok := start[q.keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return items, "", nil
	}
	return items, encodeCursor(v.Value), nil
}

// batchGetItems loads the rows of ids from a table keyed by keyAttr,
// retrying unprocessed keys a bounded number of times. Missing rows are
// absent from the result.
func batchGetItems(ctx context.Context, client *dynamodb.Client, table, keyAttr string, ids []string) ([]map[string]types.AttributeValue, error) {
	var rows []map[string]types.AttributeValue
	for start := 0; start < len(ids); start += batchGetLimit {
		end := min(start+batchGetLimit, len(ids))
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, strKey(keyAttr, id))
		}
		pending := map[string]types.KeysAndAttributes{table: {Keys: keys}}
		for attempt := 0; len(pending[table].Keys) > 0; attempt++ {
			if attempt == 3 {
				return nil, storeErr("batch get "+table, fmt.Errorf("%d keys unprocessed", len(pending[table].Keys)))
			}
			out, err := client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, storeErr("batch get "+table, err)
			}
			rows = append(rows, out.Responses[table]...)
			pending = out.UnprocessedKeys
		}
	}
	return rows, nil
}
