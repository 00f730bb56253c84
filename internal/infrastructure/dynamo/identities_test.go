package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qr-nexus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityRow(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"identity_id":   str(id),
		"owner_user_id": str("owner-" + id),
		"display_name":  str(id),
	}
}

func TestScanPage_KeepsScanningPastFilteredRows(t *testing.T) {
	rec := &recorder{answers: []answer{
		{out: &dynamodb.ScanOutput{Items: nil, LastEvaluatedKey: strKey("identity_id", "nx-orphan")}},
		{out: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{identityRow("nx-aaaaaa")}, LastEvaluatedKey: strKey("identity_id", "nx-aaaaaa")}},
		{out: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{identityRow("nx-bbbbbb")}, LastEvaluatedKey: strKey("identity_id", "nx-bbbbbb")}},
	}}
	repo := NewIdentityRepo(stubClient(t, rec.respond), "identities", "users")

	idents, next, err := repo.ScanPage(context.Background(), 2, "")

	require.NoError(t, err)
	require.Len(t, idents, 2)
	assert.Equal(t, "nx-aaaaaa", idents[0].IdentityID)
	assert.Equal(t, "nx-bbbbbb", idents[1].IdentityID)
	assert.Equal(t, encodeCursor("nx-bbbbbb"), next)

	require.Len(t, rec.inputs, 3)
	first := rec.inputs[0].(*dynamodb.ScanInput)
	assert.Equal(t, "attribute_exists(owner_user_id)", *first.FilterExpression)
	assert.Equal(t, int32(2), *first.Limit)
	assert.Nil(t, first.ExclusiveStartKey)
	second := rec.inputs[1].(*dynamodb.ScanInput)
	assert.Equal(t, strKey("identity_id", "nx-orphan"), second.ExclusiveStartKey)
	third := rec.inputs[2].(*dynamodb.ScanInput)
	assert.Equal(t, int32(1), *third.Limit)
}

func TestScanPage_ExhaustedTableHasNoCursor(t *testing.T) {
	rec := &recorder{answers: []answer{
		{out: &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{identityRow("nx-aaaaaa")}, LastEvaluatedKey: strKey("identity_id", "nx-aaaaaa")}},
		{out: &dynamodb.ScanOutput{}},
	}}
	repo := NewIdentityRepo(stubClient(t, rec.respond), "identities", "users")

	idents, next, err := repo.ScanPage(context.Background(), 5, encodeCursor("nx-start0"))

	require.NoError(t, err)
	assert.Len(t, idents, 1)
	assert.Empty(t, next)
	assert.Equal(t, strKey("identity_id", "nx-start0"), rec.inputs[0].(*dynamodb.ScanInput).ExclusiveStartKey)
}

func TestScanPage_BadCursor(t *testing.T) {
	repo := NewIdentityRepo(stubClient(t, (&recorder{}).respond), "identities", "users")
	_, _, err := repo.ScanPage(context.Background(), 5, "%%%")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestScanAllPage_HasNoFilter(t *testing.T) {
	rec := &recorder{answers: []answer{{out: &dynamodb.ScanOutput{}}}}
	repo := NewIdentityRepo(stubClient(t, rec.respond), "identities", "users")

	_, _, err := repo.ScanAllPage(context.Background(), 10, "")

	require.NoError(t, err)
	assert.Nil(t, rec.inputs[0].(*dynamodb.ScanInput).FilterExpression)
}

func TestPointsBatchGet_RetriesUnprocessedKeys(t *testing.T) {
	rec := &recorder{answers: []answer{
		{out: &dynamodb.BatchGetItemOutput{
			Responses: map[string][]map[string]types.AttributeValue{
				"user_points": {{"user_id": str("u1"), fieldTotalPoints: num(30)}},
			},
			UnprocessedKeys: map[string]types.KeysAndAttributes{
				"user_points": {Keys: []map[string]types.AttributeValue{strKey("user_id", "u2")}},
			},
		}},
		{out: &dynamodb.BatchGetItemOutput{
			Responses: map[string][]map[string]types.AttributeValue{
				"user_points": {{"user_id": str("u2"), fieldTotalPoints: num(5)}},
			},
		}},
	}}
	repo := NewPointsRepo(stubClient(t, rec.respond), "user_points")

	got, err := repo.BatchGet(context.Background(), []string{"u1", "u2", "u3"})

	require.NoError(t, err)
	assert.Equal(t, int64(30), got["u1"].TotalPoints)
	assert.Equal(t, int64(5), got["u2"].TotalPoints)
	_, ok := got["u3"]
	assert.False(t, ok)
	assert.Len(t, rec.inputs, 2)
}
