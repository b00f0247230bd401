package table

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/filterir"
)

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	st, _ := seededTable(t)

	require.NoError(t, CreateMetaTable(ctx, st, "meta"))
	require.NoError(t, AddTableSchema(ctx, st, "meta", "t", []attr.Attribute{
		{Name: "numberCol", Kind: attr.KindNumber},
		{Name: "stringCol", Kind: attr.KindString},
		{Name: "sortKey", Kind: attr.KindString},
		{Name: "hashKey", Kind: attr.KindString},
	}))

	busy := attr.MustSchema([]attr.Attribute{{Name: "id", Kind: attr.KindString}}, "id", "")
	require.NoError(t, CreateDataTable(ctx, st, "busy", busy))
	require.NoError(t, AddTableSchema(ctx, st, "meta", "busy", busy.Attributes()))
	require.NoError(t, st.SetTableStatus(ctx, "busy", types.TableStatusUpdating))

	cat, err := Discover(ctx, st, "meta")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, cat.Names())

	tbl, ok := cat.Table("t")
	require.True(t, ok)
	assert.Equal(t, []string{"hashKey", "sortKey", "numberCol", "stringCol"}, tbl.Schema().Names())
	assert.Equal(t, "hashKey", tbl.Schema().HashKey())
	assert.Equal(t, "sortKey", tbl.Schema().SortKey())

	_, ok = cat.Table("busy")
	assert.False(t, ok)

	exec, err := tbl.Execute(ctx, nil, []string{"numberCol"}, filterir.Eq("hashKey", "hashKey2"), false)
	require.NoError(t, err)
	assert.Len(t, exec.Rows, 5)
}

func TestDiscover_Errors(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		item    map[string]types.AttributeValue
		wantErr string
	}{
		{
			name:    "unsupported kind",
			item:    map[string]types.AttributeValue{MetaKey: &types.AttributeValueMemberS{Value: "t"}, "flag": &types.AttributeValueMemberS{Value: "BOOL"}},
			wantErr: string(fault.ErrCodeUnsupportedKind),
		},
		{
			name:    "kind is not a string",
			item:    map[string]types.AttributeValue{MetaKey: &types.AttributeValueMemberS{Value: "t"}, "flag": &types.AttributeValueMemberN{Value: "1"}},
			wantErr: "kind must be a string attribute",
		},
		{
			name:    "key column not registered",
			item:    map[string]types.AttributeValue{MetaKey: &types.AttributeValueMemberS{Value: "t"}, "stringCol": &types.AttributeValueMemberS{Value: "S"}},
			wantErr: "hashKey",
		},
		{
			name:    "described table missing",
			item:    map[string]types.AttributeValue{MetaKey: &types.AttributeValueMemberS{Value: "ghost"}},
			wantErr: "describe table ghost",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, _ := seededTable(t)
			require.NoError(t, CreateMetaTable(ctx, st, "meta"))
			_, err := st.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String("meta"), Item: tc.item})
			require.NoError(t, err)

			_, err = Discover(ctx, st, "meta")
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestDiscover_MissingMetaTable(t *testing.T) {
	st := openStore(t)
	_, err := Discover(context.Background(), st, "meta")
	var rnf *types.ResourceNotFoundException
	assert.ErrorAs(t, err, &rnf)
}

func TestAddTableSchema_Rejects(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, CreateMetaTable(ctx, st, "meta"))

	err := AddTableSchema(ctx, st, "meta", "t", []attr.Attribute{{Name: MetaKey, Kind: attr.KindString}})
	assert.ErrorContains(t, err, "reserved")

	err = AddTableSchema(ctx, st, "meta", "t", []attr.Attribute{{Name: "x", Kind: attr.Kind("BOOL")}})
	assert.ErrorContains(t, err, "invalid kind")
}

func TestCreateMetaTable_Twice(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, CreateMetaTable(ctx, st, "meta"))

	err := CreateMetaTable(ctx, st, "meta")
	var inUse *types.ResourceInUseException
	assert.ErrorAs(t, err, &inUse)
}

func TestPutRow(t *testing.T) {
	ctx := context.Background()
	st, tbl := seededTable(t)

	require.NoError(t, PutRow(ctx, st, "t", tbl.Schema(), map[string]any{
		"hashKey":   "hashKey3",
		"sortKey":   "sortKey1",
		"stringCol": nil,
		"numberCol": 42,
	}))
	exec, err := tbl.Execute(ctx, nil, []string{"stringCol", "numberCol"}, filterir.Eq("hashKey", "hashKey3"), false)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{nil, 42.0}}, exec.Rows)

	err = PutRow(ctx, st, "t", tbl.Schema(), map[string]any{"hashKey": "h", "sortKey": "s", "extra": 1})
	assert.ErrorContains(t, err, "column extra is not declared")

	err = PutRow(ctx, st, "t", tbl.Schema(), map[string]any{"hashKey": "h", "sortKey": "s", "numberCol": "eight"})
	assert.Error(t, err)
}
