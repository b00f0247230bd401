package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/pushdown"
)

const testFixture = "testdata/fixtures/test_table.cue"

func count(n int) *int { return &n }

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestRun_RecordsRequests(t *testing.T) {
	filter := &filterir.Node{Attr: "numberCol", Op: ">", Value: 8}
	scenario := &Scenario{
		Name:        "recorded",
		Description: "records the scan and its rows",
		Fixture:     testFixture,
		Table:       "testTable",
		Filter:      filter,
		Project:     []string{"stringCol"},
		Assertions: []Assertion{
			{Type: AssertAccess, Access: "scan"},
			{Type: AssertRowCount, Count: count(1)},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
	assert.Equal(t, pushdown.AccessScan, result.Access)
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "scan", result.Requests[0].Op)
	assert.Equal(t, "numberCol > :v1", result.Requests[0].Filter)
	assert.Equal(t, "stringCol", result.Requests[0].Projection)
	assert.Equal(t, 1, result.Requests[0].Items)
	assert.False(t, result.Requests[0].More)
	assert.Equal(t, []any{"stringCol9"}, result.Rows)
}

func TestRun_FailingAssertionsMarkResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "expects the wrong access path",
		Fixture:     testFixture,
		Table:       "testTable",
		Assertions: []Assertion{
			{Type: AssertAccess, Access: "query"},
			{Type: AssertRowCount, Count: count(3)},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected query, got scan")
	assert.Contains(t, result.Errors[1], "expected 3 rows, got 10")
}

func TestRun_TranslationFailureIsAResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "ambiguous",
		Description: "two hash key equalities in one conjunction",
		Fixture:     testFixture,
		Table:       "testTable",
		Filter: &filterir.Node{And: []filterir.Node{
			{Attr: "hashKey", Op: "=", Value: "hashKey1"},
			{Attr: "hashKey", Op: "=", Value: "hashKey2"},
		}},
		Assertions: []Assertion{
			{Type: AssertErrorCode, Code: "AMBIGUOUS_HASH_KEY_FILTER"},
			{Type: AssertAccess, Access: "query"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Nil(t, result.Plan)
	assert.Empty(t, result.Requests)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "translation failed with AMBIGUOUS_HASH_KEY_FILTER")
}

func TestRun_UnknownTable(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_table",
		Description: "reads a table the fixture does not define",
		Fixture:     testFixture,
		Table:       "nope",
		Assertions:  []Assertion{{Type: AssertRowCount, Count: count(0)}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table nope is not in the fixture")
}

func TestRun_PageLimitSplitsRequests(t *testing.T) {
	scenario := &Scenario{
		Name:        "paged",
		Description: "three pages of four",
		Fixture:     testFixture,
		Table:       "testTable",
		Project:     []string{"numberCol"},
		PageLimit:   4,
		Assertions: []Assertion{
			{Type: AssertRequestCount, Count: count(3)},
			{Type: AssertRowCount, Count: count(10)},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)

	for i, req := range result.Requests {
		assert.Equal(t, int32(4), req.Limit, "request %d", i)
		assert.Equal(t, i < 2, req.More, "request %d", i)
	}
}

func TestSnapshot_Error(t *testing.T) {
	r := NewResult()
	r.ErrorCode = "UNSUPPORTED_OPERATOR"

	data, err := Snapshot("s", r)
	require.NoError(t, err)
	assert.Equal(t, `{"error":"UNSUPPORTED_OPERATOR","scenario":"s"}`, string(data))
}

func TestSnapshot_EmptyRows(t *testing.T) {
	r := NewResult()
	r.Access = pushdown.AccessScan

	data, err := Snapshot("s", r)
	require.NoError(t, err)
	assert.Equal(t, `{"access":"scan","plan":[],"requests":[],"rows":[],"scenario":"s"}`, string(data))
}
