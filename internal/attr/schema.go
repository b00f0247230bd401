package attr

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute is a named scalar column.
type Attribute struct {
	Name string
	Kind Kind
}

// Schema is the declared, ordered column set of one table.
//
// INVARIANTS:
//   - the hash key is always declared
//   - the sort key, when set, is declared and differs from the hash key
//   - attribute names are unique and every kind is valid
//
// A Schema is immutable after NewSchema and safe to share across goroutines.
type Schema struct {
	attrs   []Attribute
	index   map[string]int
	hashKey string
	sortKey string
}

// NewSchema validates and builds a schema. sortKey may be empty.
// The attribute slice is copied.
func NewSchema(attrs []Attribute, hashKey, sortKey string) (*Schema, error) {
	s := &Schema{
		attrs:   make([]Attribute, len(attrs)),
		index:   make(map[string]int, len(attrs)),
		hashKey: hashKey,
		sortKey: sortKey,
	}
	copy(s.attrs, attrs)

	for i, a := range s.attrs {
		if a.Name == "" {
			return nil, fmt.Errorf("attribute %d has no name", i)
		}
		if _, dup := s.index[a.Name]; dup {
			return nil, fmt.Errorf("attribute %s declared twice", a.Name)
		}
		if _, err := ParseKind(a.Name, string(a.Kind)); err != nil {
			return nil, err
		}
		s.index[a.Name] = i
	}

	if hashKey == "" {
		return nil, fmt.Errorf("schema has no hash key")
	}
	if _, ok := s.index[hashKey]; !ok {
		return nil, fmt.Errorf("hash key %s is not a declared attribute", hashKey)
	}
	if sortKey != "" {
		if sortKey == hashKey {
			return nil, fmt.Errorf("sort key %s is also the hash key", sortKey)
		}
		if _, ok := s.index[sortKey]; !ok {
			return nil, fmt.Errorf("sort key %s is not a declared attribute", sortKey)
		}
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error. Intended for tests and
// package-level fixtures.
func MustSchema(attrs []Attribute, hashKey, sortKey string) *Schema {
	s, err := NewSchema(attrs, hashKey, sortKey)
	if err != nil {
		panic(err)
	}
	return s
}

// HashKey returns the partition key attribute name.
func (s *Schema) HashKey() string { return s.hashKey }

// SortKey returns the sort key attribute name, or "" if the table has none.
func (s *Schema) SortKey() string { return s.sortKey }

// Len returns the number of declared attributes.
func (s *Schema) Len() int { return len(s.attrs) }

// Attributes returns a copy of the declared attributes in order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Names returns the declared attribute names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Kind returns the declared kind of an attribute.
func (s *Schema) Kind(name string) (Kind, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.attrs[i].Kind, true
}

// Has reports whether name is a declared attribute.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Row materializes one raw item into a typed row.
//
// Columns are walked in the given order, or in declaration order when columns
// is empty. A column absent from the item yields nil. A single column yields a
// bare scalar; otherwise the result is a []any tuple of len(columns).
func (s *Schema) Row(columns []string, item map[string]types.AttributeValue) (any, error) {
	if len(columns) == 0 {
		columns = s.Names()
	}

	row := make([]any, len(columns))
	for i, name := range columns {
		kind, ok := s.Kind(name)
		if !ok {
			return nil, fmt.Errorf("column %s is not declared in the table schema", name)
		}
		av, present := item[name]
		if !present {
			continue
		}
		v, err := Decode(name, kind, av)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}

	if len(row) == 1 {
		return row[0], nil
	}
	return row, nil
}
