package fixture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/localstore"
	"github.com/roach88/dynaql/internal/table"
)

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(filepath.Join("testdata", "test_table.cue"))
	require.NoError(t, err)
	require.Len(t, f.Tables, 2)

	tt := f.Tables[0]
	assert.Equal(t, "testTable", tt.Name)
	assert.Equal(t, []string{"hashKey", "sortKey", "stringCol", "numberCol"}, tt.Schema.Names())
	assert.Equal(t, "sortKey", tt.Schema.SortKey())
	require.Len(t, tt.Items, 10)
	assert.Equal(t, map[string]any{
		"hashKey":   "hashKey3",
		"sortKey":   "sortKey3",
		"stringCol": "stringCol3",
		"numberCol": 3.0,
	}, tt.Items[3])

	blobs := f.Tables[1]
	assert.Equal(t, "", blobs.Schema.SortKey())
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "payload": []byte{0, 1}},
		{"id": 2.5},
	}, blobs.Items)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "syntax",
			src:     `table: t: {`,
			wantErr: "cue",
		},
		{
			name:    "unknown kind",
			src:     `table: t: {hashKey: "id", columns: {id: "BOOL"}}`,
			wantErr: "cue",
		},
		{
			name:    "unknown top-level field",
			src:     `tables: t: {hashKey: "id", columns: {id: "S"}}`,
			wantErr: "cue",
		},
		{
			name:    "no tables",
			src:     `table: {}`,
			wantErr: "fixture declares no tables",
		},
		{
			name:    "hash key not a column",
			src:     `table: t: {hashKey: "id", columns: {other: "S"}}`,
			wantErr: "hash key id is not a declared attribute",
		},
		{
			name:    "undeclared item column",
			src:     `table: t: {hashKey: "id", columns: {id: "S"}, items: [{id: "a", extra: 1}]}`,
			wantErr: "table.t.items[0].extra: column is not declared",
		},
		{
			name:    "kind mismatch",
			src:     `table: t: {hashKey: "id", columns: {id: "S", n: "N"}, items: [{id: "a", n: "eight"}]}`,
			wantErr: "table.t.items[0].n: want kind N",
		},
		{
			name:    "missing key",
			src:     `table: t: {hashKey: "id", sortKey: "k", columns: {id: "S", k: "N"}, items: [{id: "a"}]}`,
			wantErr: "table.t.items[0].k: key attribute is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("inline.cue", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)

			var fe *Error
			assert.True(t, errors.As(err, &fe))
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	defer st.Close()

	f, err := LoadFile(filepath.Join("testdata", "test_table.cue"))
	require.NoError(t, err)
	require.NoError(t, f.Seed(ctx, st, "meta", nil))

	cat, err := table.Discover(ctx, st, "meta")
	require.NoError(t, err)
	assert.Equal(t, []string{"blobs", "testTable"}, cat.Names())

	tbl, ok := cat.Table("testTable")
	require.True(t, ok)
	exec, err := tbl.Execute(ctx, nil, []string{"stringCol"}, filterir.Cmp("numberCol", filterir.OpGt, 8), false)
	require.NoError(t, err)
	assert.Equal(t, []any{"stringCol9"}, exec.Rows)

	// A second fixture reuses the existing meta table.
	more, err := Parse("more.cue", []byte(`table: extra: {hashKey: "id", columns: {id: "S"}}`))
	require.NoError(t, err)
	require.NoError(t, more.Seed(ctx, st, "meta", nil))

	cat, err = table.Discover(ctx, st, "meta")
	require.NoError(t, err)
	assert.Equal(t, []string{"blobs", "extra", "testTable"}, cat.Names())
}
