package attr

import (
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaql/internal/fault"
)

func TestEncode_Tags(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  types.AttributeValue
	}{
		{"string", "hashKey1", &types.AttributeValueMemberS{Value: "hashKey1"}},
		{"empty string", "", &types.AttributeValueMemberS{Value: ""}},
		{"bytes", []byte{0x01, 0xff}, &types.AttributeValueMemberB{Value: []byte{0x01, 0xff}}},
		{"float", 8.5, &types.AttributeValueMemberN{Value: "8.5"}},
		{"integral float", float64(9), &types.AttributeValueMemberN{Value: "9"}},
		{"int", 8, &types.AttributeValueMemberN{Value: "8"}},
		{"negative int64", int64(-42), &types.AttributeValueMemberN{Value: "-42"}},
		{"uint32", uint32(7), &types.AttributeValueMemberN{Value: "7"}},
		{"float32", float32(0.5), &types.AttributeValueMemberN{Value: "0.5"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(true)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))

	_, err = Encode(nil)
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))

	_, err = Encode(math.NaN())
	require.Error(t, err)
	_, err = Encode(math.Inf(1))
	require.Error(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	values := []any{
		0.0,
		-1.25,
		3.141592653589793,
		1e21,
		5e-324,
		math.MaxFloat64,
		"",
		"stringCol9",
		"ünïcödé",
		[]byte{},
		[]byte("payload"),
	}

	for _, v := range values {
		av, err := Encode(v)
		require.NoError(t, err)

		kind, ok := KindOf(av)
		require.True(t, ok)

		back, err := Decode("col", kind, av)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestDecode_KindMismatch(t *testing.T) {
	_, err := Decode("numberCol", KindNumber, &types.AttributeValueMemberS{Value: "9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numberCol")

	_, err = Decode("numberCol", KindNumber, &types.AttributeValueMemberBOOL{Value: true})
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))
}

func TestDecode_UnsupportedKind(t *testing.T) {
	_, err := Decode("flags", Kind("SS"), &types.AttributeValueMemberSS{Value: []string{"a"}})
	require.Error(t, err)

	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fault.ErrCodeUnsupportedKind, fe.Code)
	assert.Equal(t, "flags", fe.Attribute)
	assert.Equal(t, "SS", fe.Operator)
}

func TestEncodeAs(t *testing.T) {
	av, err := EncodeAs("numberCol", KindNumber, 8)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "8"}, av)

	_, err = EncodeAs("numberCol", KindNumber, "8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numberCol")

	_, err = EncodeAs("x", Kind("BOOL"), true)
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"N", "S", "B"} {
		k, err := ParseKind("a", s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}

	_, err := ParseKind("a", "BOOL")
	assert.True(t, fault.Is(err, fault.ErrCodeUnsupportedKind))
}
