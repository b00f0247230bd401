package attr

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema([]Attribute{
		{Name: "hashKey", Kind: KindString},
		{Name: "sortKey", Kind: KindString},
		{Name: "stringCol", Kind: KindString},
		{Name: "numberCol", Kind: KindNumber},
		{Name: "blobCol", Kind: KindBinary},
	}, "hashKey", "sortKey")
	require.NoError(t, err)
	return s
}

func TestNewSchema_Validation(t *testing.T) {
	attrs := []Attribute{{Name: "id", Kind: KindString}, {Name: "n", Kind: KindNumber}}

	testCases := []struct {
		name    string
		attrs   []Attribute
		hash    string
		sort    string
		wantErr string
	}{
		{"no hash key", attrs, "", "", "no hash key"},
		{"undeclared hash key", attrs, "missing", "", "hash key missing"},
		{"undeclared sort key", attrs, "id", "missing", "sort key missing"},
		{"sort equals hash", attrs, "id", "id", "also the hash key"},
		{"duplicate attribute", append(attrs, Attribute{Name: "id", Kind: KindString}), "id", "", "declared twice"},
		{"bad kind", []Attribute{{Name: "id", Kind: "BOOL"}}, "id", "", "UNSUPPORTED_SCALAR_KIND"},
		{"unnamed", []Attribute{{Kind: KindString}}, "id", "", "has no name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSchema(tc.attrs, tc.hash, tc.sort)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	s, err := NewSchema(attrs, "id", "")
	require.NoError(t, err)
	assert.Equal(t, "id", s.HashKey())
	assert.Equal(t, "", s.SortKey())
}

func TestSchema_AccessorsCopy(t *testing.T) {
	s := testSchema(t)

	assert.Equal(t, []string{"hashKey", "sortKey", "stringCol", "numberCol", "blobCol"}, s.Names())
	assert.Equal(t, 5, s.Len())

	attrs := s.Attributes()
	attrs[0].Name = "mutated"
	assert.Equal(t, "hashKey", s.Names()[0], "Attributes must return a copy")

	k, ok := s.Kind("numberCol")
	assert.True(t, ok)
	assert.Equal(t, KindNumber, k)
	assert.False(t, s.Has("nope"))
}

func TestSchema_Row_DeclaredOrder(t *testing.T) {
	s := testSchema(t)
	item := map[string]types.AttributeValue{
		"numberCol": &types.AttributeValueMemberN{Value: "9"},
		"stringCol": &types.AttributeValueMemberS{Value: "stringCol9"},
		"sortKey":   &types.AttributeValueMemberS{Value: "sortKey9"},
		"hashKey":   &types.AttributeValueMemberS{Value: "hashKey9"},
		"blobCol":   &types.AttributeValueMemberB{Value: []byte{9}},
	}

	// Map iteration order is random; the row must not be.
	for i := 0; i < 20; i++ {
		row, err := s.Row(nil, item)
		require.NoError(t, err)
		assert.Equal(t, []any{"hashKey9", "sortKey9", "stringCol9", 9.0, []byte{9}}, row)
	}
}

func TestSchema_Row_Projection(t *testing.T) {
	s := testSchema(t)
	item := map[string]types.AttributeValue{
		"numberCol": &types.AttributeValueMemberN{Value: "9"},
		"hashKey":   &types.AttributeValueMemberS{Value: "hashKey9"},
	}

	row, err := s.Row([]string{"numberCol"}, item)
	require.NoError(t, err)
	assert.Equal(t, 9.0, row, "single column must be a bare scalar")

	row, err = s.Row([]string{"numberCol", "hashKey"}, item)
	require.NoError(t, err)
	assert.Equal(t, []any{9.0, "hashKey9"}, row)

	row, err = s.Row([]string{"hashKey", "stringCol"}, item)
	require.NoError(t, err)
	assert.Equal(t, []any{"hashKey9", nil}, row, "absent attribute yields nil")
}

func TestSchema_Row_Errors(t *testing.T) {
	s := testSchema(t)

	_, err := s.Row([]string{"ghost"}, map[string]types.AttributeValue{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	_, err = s.Row([]string{"numberCol"}, map[string]types.AttributeValue{
		"numberCol": &types.AttributeValueMemberS{Value: "nine"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numberCol")
}
