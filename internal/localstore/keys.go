package localstore

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tableMeta is one row of kv_tables.
type tableMeta struct {
	name     string
	hashKey  string
	hashType types.ScalarAttributeType
	sortKey  string
	sortType types.ScalarAttributeType
	status   types.TableStatus
}

// itemKey is the stored, order-preserving form of an item's primary key.
type itemKey struct {
	hashText string
	sortNum  float64
	sortText string
}

// keyOf extracts and validates an item's primary key.
func (m *tableMeta) keyOf(item map[string]types.AttributeValue) (itemKey, error) {
	var k itemKey

	hv, ok := item[m.hashKey]
	if !ok {
		return k, validationError("missing the key %s in the item", m.hashKey)
	}
	text, _, err := keyText(m.hashKey, m.hashType, hv)
	if err != nil {
		return k, err
	}
	k.hashText = text

	if m.sortKey == "" {
		return k, nil
	}
	sv, ok := item[m.sortKey]
	if !ok {
		return k, validationError("missing the key %s in the item", m.sortKey)
	}
	k.sortText, k.sortNum, err = keyText(m.sortKey, m.sortType, sv)
	if err != nil {
		return k, err
	}
	if m.sortType == types.ScalarAttributeTypeN {
		k.sortText = ""
	}
	return k, nil
}

// keyOnly returns the primary-key attributes of item.
func (m *tableMeta) keyOnly(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := map[string]types.AttributeValue{m.hashKey: item[m.hashKey]}
	if m.sortKey != "" {
		out[m.sortKey] = item[m.sortKey]
	}
	return out
}

// keyText renders a key value in its stored form. Numbers also return their
// float value for the numeric sort column.
func keyText(name string, kind types.ScalarAttributeType, av types.AttributeValue) (string, float64, error) {
	switch kind {
	case types.ScalarAttributeTypeS:
		if v, ok := av.(*types.AttributeValueMemberS); ok {
			return v.Value, 0, nil
		}
	case types.ScalarAttributeTypeN:
		if v, ok := av.(*types.AttributeValueMemberN); ok {
			f, err := strconv.ParseFloat(v.Value, 64)
			if err != nil {
				return "", 0, validationError("key %s: invalid number %q", name, v.Value)
			}
			return strconv.FormatFloat(f, 'g', -1, 64), f, nil
		}
	case types.ScalarAttributeTypeB:
		if v, ok := av.(*types.AttributeValueMemberB); ok {
			return hex.EncodeToString(v.Value), 0, nil
		}
	default:
		return "", 0, validationError("key %s: unsupported key type %q", name, kind)
	}
	return "", 0, validationError("key %s: expected type %s, got %s", name, kind, tagOf(av))
}

func tagOf(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberB:
		return "B"
	case nil:
		return "nothing"
	}
	return fmt.Sprintf("%T", av)
}

// checkScalars rejects attribute types the emulator does not store.
func checkScalars(item map[string]types.AttributeValue) error {
	for name, av := range item {
		switch av.(type) {
		case *types.AttributeValueMemberN, *types.AttributeValueMemberS, *types.AttributeValueMemberB:
		default:
			return validationError("attribute %s: only N, S and B values are supported, got %s", name, tagOf(av))
		}
	}
	return nil
}
