package table

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/enumerator"
	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/localstore"
	"github.com/roach88/dynaql/internal/pushdown"
	"github.com/roach88/dynaql/internal/testutil"
)

func testSchema() *attr.Schema {
	return attr.MustSchema([]attr.Attribute{
		{Name: "hashKey", Kind: attr.KindString},
		{Name: "sortKey", Kind: attr.KindString},
		{Name: "stringCol", Kind: attr.KindString},
		{Name: "numberCol", Kind: attr.KindNumber},
	}, "hashKey", "sortKey")
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	st, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seededTable creates "t" with hashKey{1,2} x sortKey{1..5}; numberCol counts
// 0..9 in key order.
func seededTable(t *testing.T, opts ...Option) (*localstore.Store, *Table) {
	t.Helper()
	ctx := context.Background()
	st := openStore(t)
	schema := testSchema()
	require.NoError(t, CreateDataTable(ctx, st, "t", schema))

	i := 0
	for h := 1; h <= 2; h++ {
		for k := 1; k <= 5; k++ {
			require.NoError(t, PutRow(ctx, st, "t", schema, map[string]any{
				"hashKey":   fmt.Sprintf("hashKey%d", h),
				"sortKey":   fmt.Sprintf("sortKey%d", k),
				"stringCol": fmt.Sprintf("stringCol%d", i),
				"numberCol": float64(i),
			}))
			i++
		}
	}
	return st, New(st, Config{Name: "t", Schema: schema}, opts...)
}

func TestExecute_Scenarios(t *testing.T) {
	_, tbl := seededTable(t, WithIDGenerator(testutil.NewFixedIDGenerator("exec-1")))

	testCases := []struct {
		name       string
		filter     filterir.Predicate
		projection []string
		access     pushdown.Access
		want       []any
	}{
		{
			name: "sort key range without hash key scans",
			filter: filterir.AllOf(
				filterir.Cmp("sortKey", filterir.OpGe, "sortKey2"),
				filterir.Cmp("sortKey", filterir.OpLe, "sortKey3"),
			),
			projection: []string{"sortKey"},
			access:     pushdown.AccessScan,
			want:       []any{"sortKey2", "sortKey3", "sortKey2", "sortKey3"},
		},
		{
			name: "keyed disjuncts query",
			filter: filterir.AnyOf(
				filterir.Eq("hashKey", "hashKey1"),
				filterir.AllOf(
					filterir.Eq("hashKey", "hashKey2"),
					filterir.Cmp("sortKey", filterir.OpGe, "sortKey4"),
				),
			),
			projection: []string{"numberCol"},
			access:     pushdown.AccessQuery,
			want:       []any{0.0, 1.0, 2.0, 3.0, 4.0, 8.0, 9.0},
		},
		{
			name:       "numeric residual",
			filter:     filterir.Cmp("numberCol", filterir.OpGt, 8),
			projection: []string{"stringCol", "numberCol"},
			access:     pushdown.AccessScan,
			want:       []any{[]any{"stringCol9", 9.0}},
		},
		{
			name:       "select all",
			filter:     nil,
			projection: []string{"hashKey"},
			access:     pushdown.AccessScan,
			want: []any{
				"hashKey1", "hashKey1", "hashKey1", "hashKey1", "hashKey1",
				"hashKey2", "hashKey2", "hashKey2", "hashKey2", "hashKey2",
			},
		},
	}

	for _, tc := range testCases {
		for _, parallel := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/parallel=%v", tc.name, parallel), func(t *testing.T) {
				exec, err := tbl.Execute(context.Background(), nil, tc.projection, tc.filter, parallel)
				require.NoError(t, err)

				assert.Equal(t, "exec-1", exec.ID)
				assert.Equal(t, tc.access, exec.Access)
				assert.Equal(t, tc.want, exec.Rows)
				assert.Positive(t, exec.Requests)
			})
		}
	}
}

func TestExecute_PageLimitCountsRequests(t *testing.T) {
	_, tbl := seededTable(t, WithPageLimit(3))

	exec, err := tbl.Execute(context.Background(), nil, []string{"sortKey"}, nil, false)
	require.NoError(t, err)
	assert.Len(t, exec.Rows, 10)
	assert.Equal(t, 4, exec.Requests)
}

func TestExecute_TranslationError(t *testing.T) {
	_, tbl := seededTable(t)

	_, err := tbl.Execute(context.Background(), nil, nil, filterir.Eq("numberCol", true), false)
	require.Error(t, err)

	var fe *fault.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, fault.ErrCodeUnsupportedKind, fe.Code)
	assert.Equal(t, "numberCol", fe.Attribute)
}

func TestExecute_RemoteErrorPassesThrough(t *testing.T) {
	client := &testutil.ScriptedClient{
		ScanPages: []testutil.Page{{Err: &types.ResourceNotFoundException{Message: aws.String("gone")}}},
	}
	tbl := New(client, Config{Name: "t", Schema: testSchema()})

	_, err := tbl.Execute(context.Background(), nil, nil, nil, false)
	var rnf *types.ResourceNotFoundException
	assert.True(t, errors.As(err, &rnf))
}

func TestOpen_ReturnsQueryEnumerator(t *testing.T) {
	_, tbl := seededTable(t)

	e, err := tbl.Open(nil, []string{"sortKey"}, filterir.AllOf(
		filterir.Eq("hashKey", "hashKey2"),
		filterir.Cmp("sortKey", filterir.OpLt, "sortKey3"),
	))
	require.NoError(t, err)
	assert.Equal(t, enumerator.VariantQuery, e.Variant())

	var rows []any
	for e.Next(context.Background()) {
		row, err := e.Current()
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, e.Err())
	assert.Equal(t, []any{"sortKey1", "sortKey2"}, rows)
}

func TestOpen_CancelStopsIteration(t *testing.T) {
	_, tbl := seededTable(t, WithPageLimit(2))
	cancel := enumerator.NewCancelFlag()

	e, err := tbl.Open(cancel, []string{"sortKey"}, nil)
	require.NoError(t, err)

	require.True(t, e.Next(context.Background()))
	cancel.Cancel()
	assert.False(t, e.Next(context.Background()))
	assert.NoError(t, e.Err())
}

func TestScanOrQuery_Validation(t *testing.T) {
	tbl := New(&testutil.ScriptedClient{}, Config{Name: "t", Schema: testSchema()})

	_, err := tbl.ScanOrQuery(nil, nil, []string{""}, []string{":v1"}, nil, nil)
	assert.ErrorContains(t, err, "1 placeholder names for 0 values")

	_, err = tbl.ScanOrQuery(nil, nil, []string{"numberCol > :v1"}, []string{":v1"}, []any{struct{}{}}, nil)
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))

	_, err = tbl.ScanOrQuery(nil, []string{"nope"}, []string{""}, nil, nil, nil)
	assert.Error(t, err)
}

func TestScanOrQuery_EncodesValues(t *testing.T) {
	client := &testutil.ScriptedClient{}
	tbl := New(client, Config{Name: "t", Schema: testSchema()})

	e, err := tbl.ScanOrQuery(nil, nil,
		[]string{"numberCol > :v1 AND stringCol = :v2"},
		[]string{":v1", ":v2"}, []any{8, "x"}, nil)
	require.NoError(t, err)
	assert.False(t, e.Next(context.Background()))
	require.NoError(t, e.Err())

	inputs := client.ScanInputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, testutil.N("8"), inputs[0].ExpressionAttributeValues[":v1"])
	assert.Equal(t, testutil.S("x"), inputs[0].ExpressionAttributeValues[":v2"])
}

func TestDrainParallel_FirstErrorWins(t *testing.T) {
	good := New(&testutil.ScriptedClient{ScanPages: []testutil.Page{
		{Items: []map[string]types.AttributeValue{{"hashKey": testutil.S("a")}}},
	}}, Config{Name: "t", Schema: testSchema()})
	bad := New(&testutil.ScriptedClient{ScanPages: []testutil.Page{
		{Err: errors.New("throttled")},
	}}, Config{Name: "t", Schema: testSchema()})

	e1, err := good.ScanOrQuery(nil, []string{"hashKey"}, []string{""}, nil, nil, nil)
	require.NoError(t, err)
	e2, err := bad.ScanOrQuery(nil, []string{"hashKey"}, []string{""}, nil, nil, nil)
	require.NoError(t, err)

	_, err = DrainParallel(context.Background(), []*enumerator.Enumerator{e1, e2})
	assert.ErrorContains(t, err, "stream 1: throttled")
}

func TestDrainParallel_KeepsOrder(t *testing.T) {
	mk := func(v string) *enumerator.Enumerator {
		tbl := New(&testutil.ScriptedClient{ScanPages: []testutil.Page{
			{Items: []map[string]types.AttributeValue{{"hashKey": testutil.S(v + "1")}}},
			{Items: []map[string]types.AttributeValue{{"hashKey": testutil.S(v + "2")}}},
		}}, Config{Name: "t", Schema: testSchema()})
		e, err := tbl.ScanOrQuery(nil, []string{"hashKey"}, []string{""}, nil, nil, nil)
		require.NoError(t, err)
		return e
	}

	rows, err := DrainParallel(context.Background(), []*enumerator.Enumerator{mk("a"), mk("b"), mk("c")})
	require.NoError(t, err)
	assert.Equal(t, []any{"a1", "a2", "b1", "b2", "c1", "c2"}, rows)
}
