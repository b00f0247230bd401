// Package canonical produces deterministic JSON for plan snapshots, CLI
// output and stored items.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units (RFC 8785), not UTF-8 bytes
//  2. No HTML escaping (< > & are written as-is)
//  3. U+2028 and U+2029 are written unescaped
//  4. Marshal NFC-normalizes strings; MarshalItem keeps them byte-exact
//  5. Integral floats within ±2^53 are written without a fraction
//
// Tagged attribute values render as single-key objects: {"N":"8"},
// {"S":"x"}, {"B":"<base64>"}.
package canonical

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf16"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/text/unicode/norm"
)

// Marshal encodes v canonically with NFC-normalized strings.
//
// Supported: nil, string, bool, every integer kind, float32/64 (finite),
// []byte (base64), []any, []string, map[string]any, tagged attribute values,
// items (map[string]types.AttributeValue), and json.Marshaler.
func Marshal(v any) ([]byte, error) {
	e := encoder{nfc: true}
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// MarshalItem encodes a stored item without altering string bytes.
func MarshalItem(item map[string]types.AttributeValue) ([]byte, error) {
	var e encoder
	if err := e.value(item); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// UnmarshalItem decodes an item written by MarshalItem.
func UnmarshalItem(data []byte) (map[string]types.AttributeValue, error) {
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	item := make(map[string]types.AttributeValue, len(raw))
	for name, tagged := range raw {
		if len(tagged) != 1 {
			return nil, fmt.Errorf("decode item: attribute %s: want exactly one tag, got %d", name, len(tagged))
		}
		for tag, v := range tagged {
			switch tag {
			case "N":
				item[name] = &types.AttributeValueMemberN{Value: v}
			case "S":
				item[name] = &types.AttributeValueMemberS{Value: v}
			case "B":
				b, err := base64.StdEncoding.DecodeString(v)
				if err != nil {
					return nil, fmt.Errorf("decode item: attribute %s: %w", name, err)
				}
				item[name] = &types.AttributeValueMemberB{Value: b}
			default:
				return nil, fmt.Errorf("decode item: attribute %s: unsupported tag %q", name, tag)
			}
		}
	}
	return item, nil
}

type encoder struct {
	buf bytes.Buffer
	nfc bool
}

func (e *encoder) value(v any) error {
	switch val := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case string:
		return e.string(val)
	case bool:
		e.buf.WriteString(strconv.FormatBool(val))
	case int:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		e.buf.WriteString(strconv.FormatInt(val, 10))
	case float32:
		return e.float(float64(val))
	case float64:
		return e.float(val)
	case []byte:
		return e.string(base64.StdEncoding.EncodeToString(val))
	case []string:
		return e.array(len(val), func(i int) any { return val[i] })
	case []any:
		return e.array(len(val), func(i int) any { return val[i] })
	case map[string]any:
		return e.object(keys(val), func(k string) any { return val[k] })
	case map[string]types.AttributeValue:
		return e.object(keys(val), func(k string) any { return val[k] })
	case *types.AttributeValueMemberN:
		return e.tagged("N", val.Value)
	case *types.AttributeValueMemberS:
		return e.tagged("S", val.Value)
	case *types.AttributeValueMemberB:
		return e.tagged("B", base64.StdEncoding.EncodeToString(val.Value))
	case json.Marshaler:
		raw, err := val.MarshalJSON()
		if err != nil {
			return err
		}
		var decoded any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return err
		}
		return e.value(decoded)
	case json.Number:
		e.buf.WriteString(val.String())
	default:
		return e.reflectValue(v)
	}
	return nil
}

// reflectValue covers the remaining integer kinds and named string types.
func (e *encoder) reflectValue(v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return e.string(rv.String())
	case reflect.Int8, reflect.Int16:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil
	}
	return fmt.Errorf("unsupported type for canonical JSON: %T", v)
}

func (e *encoder) float(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v has no JSON form", f)
	}
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		e.buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	e.buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func (e *encoder) tagged(tag, v string) error {
	e.buf.WriteString(`{"` + tag + `":`)
	if err := e.string(v); err != nil {
		return err
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) array(n int, at func(int) any) error {
	e.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.value(at(i)); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) object(keys []string, at func(string) any) error {
	e.buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.string(k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		e.buf.WriteByte(':')
		if err := e.value(at(k)); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	e.buf.WriteByte('}')
	return nil
}

// string writes a JSON string with HTML escaping disabled and U+2028/U+2029
// left literal.
func (e *encoder) string(s string) error {
	if e.nfc {
		s = norm.NFC.String(s)
	}

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	e.buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes back into
// literal characters. An escape preceded by an odd run of backslashes is
// literal text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+6 <= len(data) && bytes.HasPrefix(data[i:], []byte(`\u202`)) && (data[i+5] == '8' || data[i+5] == '9') {
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.SortFunc(out, compareUTF16)
	return out
}

// compareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native string order is by UTF-8 bytes, which differs above U+FFFF.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
