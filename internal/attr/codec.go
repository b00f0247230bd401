package attr

import (
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/fault"
)

// Encode converts a generic scalar into its tagged form.
//
// Strings become S, byte slices become B, and every Go numeric type becomes N.
// Numbers are rendered with the shortest representation that parses back to
// the same float64, so Decode(Encode(x)) == x for any finite float64.
func Encode(v any) (types.AttributeValue, error) {
	switch val := v.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: val}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: val}, nil
	case float64:
		return encodeFloat(val)
	case float32:
		return encodeFloat(float64(val))
	case int:
		return numberMember(strconv.FormatInt(int64(val), 10)), nil
	case int8:
		return numberMember(strconv.FormatInt(int64(val), 10)), nil
	case int16:
		return numberMember(strconv.FormatInt(int64(val), 10)), nil
	case int32:
		return numberMember(strconv.FormatInt(int64(val), 10)), nil
	case int64:
		return numberMember(strconv.FormatInt(val, 10)), nil
	case uint:
		return numberMember(strconv.FormatUint(uint64(val), 10)), nil
	case uint8:
		return numberMember(strconv.FormatUint(uint64(val), 10)), nil
	case uint16:
		return numberMember(strconv.FormatUint(uint64(val), 10)), nil
	case uint32:
		return numberMember(strconv.FormatUint(uint64(val), 10)), nil
	case uint64:
		return numberMember(strconv.FormatUint(val, 10)), nil
	case nil:
		return nil, fault.UnsupportedKind("", "NULL")
	default:
		return nil, fault.UnsupportedKind("", fmt.Sprintf("%T", v))
	}
}

// EncodeAs converts a generic scalar into the tagged form of a declared kind.
// A mismatch between the Go value and the kind is an error naming the attribute.
func EncodeAs(attribute string, kind Kind, v any) (types.AttributeValue, error) {
	if !kind.Valid() {
		return nil, fault.UnsupportedKind(attribute, string(kind))
	}
	av, err := Encode(v)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", attribute, err)
	}
	if got, _ := KindOf(av); got != kind {
		return nil, fmt.Errorf("attribute %s: value of kind %s does not match declared kind %s", attribute, got, kind)
	}
	return av, nil
}

// Decode converts a tagged value of a declared kind into its Go scalar.
// N decodes to float64, S to string and B to []byte.
func Decode(attribute string, kind Kind, av types.AttributeValue) (any, error) {
	switch kind {
	case KindNumber:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return nil, mismatch(attribute, kind, av)
		}
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: parse number %q: %w", attribute, n.Value, err)
		}
		return f, nil
	case KindString:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, mismatch(attribute, kind, av)
		}
		return s.Value, nil
	case KindBinary:
		b, ok := av.(*types.AttributeValueMemberB)
		if !ok {
			return nil, mismatch(attribute, kind, av)
		}
		return b.Value, nil
	default:
		return nil, fault.UnsupportedKind(attribute, string(kind))
	}
}

// DecodeAny decodes a tagged value using its own tag.
func DecodeAny(attribute string, av types.AttributeValue) (any, error) {
	kind, ok := KindOf(av)
	if !ok {
		return nil, fault.UnsupportedKind(attribute, fmt.Sprintf("%T", av))
	}
	return Decode(attribute, kind, av)
}

func encodeFloat(f float64) (types.AttributeValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number %v has no tagged representation", f)
	}
	return numberMember(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func numberMember(s string) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: s}
}

func mismatch(attribute string, kind Kind, av types.AttributeValue) error {
	got, ok := KindOf(av)
	if !ok {
		return fault.UnsupportedKind(attribute, fmt.Sprintf("%T", av))
	}
	return fmt.Errorf("attribute %s: stored kind %s does not match declared kind %s", attribute, got, kind)
}
