// Package attr converts scalar values between Go and the store's tagged
// attribute format, and describes table schemas in terms of those scalars.
//
// Only the three primitive scalar kinds are supported:
//
//	Kind  Tagged member                 Go value
//	----  -------------                 --------
//	N     *types.AttributeValueMemberN  float64
//	S     *types.AttributeValueMemberS  string
//	B     *types.AttributeValueMemberB  []byte
//
// Sets, lists, maps, booleans and NULL have no relational column type here
// and are rejected.
package attr

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/fault"
)

// Kind is a scalar attribute kind. Values match the store's
// ScalarAttributeType strings so they can be stored and described verbatim.
type Kind string

const (
	KindNumber Kind = Kind(types.ScalarAttributeTypeN)
	KindString Kind = Kind(types.ScalarAttributeTypeS)
	KindBinary Kind = Kind(types.ScalarAttributeTypeB)
)

// Valid reports whether k is one of N, S or B.
func (k Kind) Valid() bool {
	switch k {
	case KindNumber, KindString, KindBinary:
		return true
	}
	return false
}

// ParseKind validates a kind string read from a schema definition.
// The attribute name is only used for the error message.
func ParseKind(attribute, s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fault.UnsupportedKind(attribute, s)
	}
	return k, nil
}

// KindOf returns the kind of a tagged value.
// Returns false for members outside N, S and B.
func KindOf(av types.AttributeValue) (Kind, bool) {
	switch av.(type) {
	case *types.AttributeValueMemberN:
		return KindNumber, true
	case *types.AttributeValueMemberS:
		return KindString, true
	case *types.AttributeValueMemberB:
		return KindBinary, true
	}
	return "", false
}
