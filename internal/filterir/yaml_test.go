package filterir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Shorthand(t *testing.T) {
	p, err := Parse([]byte(`
or:
  - attr: hashKey
    op: "="
    value: hashKey1
  - and:
      - attr: hashKey
        op: "="
        value: hashKey2
      - attr: sortKey
        op: ">="
        value: sortKey1
`))
	require.NoError(t, err)

	want := AnyOf(
		Eq("hashKey", "hashKey1"),
		AllOf(
			Eq("hashKey", "hashKey2"),
			Cmp("sortKey", OpGe, "sortKey1"),
		),
	)
	assert.Equal(t, want, p)
}

func TestParse_GeneralForms(t *testing.T) {
	p, err := Parse([]byte(`
and:
  - left: {value: 8}
    op: "<"
    right: {item: numberCol}
  - left: {cast: {ref: 1}, type: VARCHAR}
    op: "="
    right: {bytes: "AQI="}
  - call: LIKE
    args: [{field: stringCol}, {value: "a%"}]
`))
	require.NoError(t, err)

	want := AllOf(
		Compare{Op: OpLt, Left: Literal{Value: 8}, Right: Item{Key: "numberCol"}},
		Compare{Op: OpEq, Left: Cast{Operand: Ref{Index: 1}, Type: "VARCHAR"}, Right: Literal{Value: []byte{1, 2}}},
		Call{Op: "LIKE", Operands: []Operand{Field{Name: "stringCol"}, Literal{Value: "a%"}}},
	)
	assert.Equal(t, want, p)
}

func TestParse_NumbersKeepYAMLTypes(t *testing.T) {
	p, err := Parse([]byte("attr: numberCol\nop: \">\"\nvalue: 8.5\n"))
	require.NoError(t, err)
	assert.Equal(t, Cmp("numberCol", OpGt, 8.5), p)
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = Parse([]byte("{}\n"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"bad yaml", "or: [", "decode filter"},
		{"no shape", "op: \"=\"", "no recognizable shape"},
		{"missing literal", "attr: a\nop: \"=\"", "missing literal value"},
		{"bad base64", "attr: a\nop: \"=\"\nbytes: \"***\"", "decode bytes literal"},
		{"nested error path", "or:\n  - and:\n      - op: \"=\"", "or: [0]: and: [0]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("attr: numberCol\nop: \">\"\nvalue: 8\n"), 0o644))

	p, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, Cmp("numberCol", OpGt, 8), p)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
