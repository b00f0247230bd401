package pushdown

import (
	"errors"
	"fmt"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/filterir"
)

// Filter is one normalized comparison: <Attribute> <Op> <Placeholder>.
type Filter struct {
	Attribute   string
	Op          filterir.Op
	Placeholder string
}

// String renders the filter as a native expression clause.
func (f Filter) String() string {
	return f.Attribute + " " + string(f.Op) + " " + f.Placeholder
}

// Disjunct is the classified form of one AND-group.
type Disjunct struct {
	// HashKey is the hash-key equality, or nil if the group has none.
	HashKey *Filter

	// SortKey holds zero, one, or a >= / <= pair of sort-key filters in the
	// order they appeared.
	SortKey []Filter

	// Residual holds every other comparison in the order it appeared.
	Residual []Filter
}

// Range returns the lower (>=) and upper (<=) bounds when SortKey is a closed
// range. ok is false otherwise.
func (d Disjunct) Range() (lo, hi Filter, ok bool) {
	if len(d.SortKey) != 2 {
		return Filter{}, Filter{}, false
	}
	lo, hi = d.SortKey[0], d.SortKey[1]
	if lo.Op == filterir.OpLe {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// Result is the output of Translate.
type Result struct {
	// Disjuncts in the order they appear in the filter.
	Disjuncts []Disjunct

	// Names lists every generated placeholder in creation order.
	Names []string

	// Values maps each placeholder to its literal.
	Values map[string]any

	// HashKeyFilterCount is the number of disjuncts carrying a hash-key filter.
	HashKeyFilterCount int
}

// AllKeyed reports whether every disjunct carries a hash-key filter.
// A result with no disjuncts is not keyed: an absent filter is a full scan.
func (r *Result) AllKeyed() bool {
	return len(r.Disjuncts) > 0 && r.HashKeyFilterCount == len(r.Disjuncts)
}

// Translate decomposes a DNF filter against a table schema.
//
// fields is the ordered input field list used to resolve positional column
// references; nil means the schema's declaration order. A nil predicate
// translates to a result with no disjuncts.
//
// Any comparison that cannot be normalized, or any key-filter combination the
// store cannot express, is returned as a *fault.Error. These are contract
// violations and must not be retried.
func Translate(schema *attr.Schema, fields []string, p filterir.Predicate) (*Result, error) {
	if fields == nil {
		fields = schema.Names()
	}
	t := &translator{
		schema: schema,
		fields: fields,
		result: &Result{Values: make(map[string]any)},
	}

	for i, node := range filterir.Disjunctions(p) {
		d, err := t.translateAnd(node)
		if err != nil {
			return nil, fmt.Errorf("or-group %d: %w", i, err)
		}
		if d.HashKey != nil {
			t.result.HashKeyFilterCount++
		}
		t.result.Disjuncts = append(t.result.Disjuncts, d)
	}

	return t.result, nil
}

// translator carries the placeholder counter across disjuncts so every
// literal gets a unique name within one translation.
type translator struct {
	schema  *attr.Schema
	fields  []string
	result  *Result
	counter int
}

func (t *translator) translateAnd(node filterir.Predicate) (Disjunct, error) {
	var d Disjunct
	for _, conj := range filterir.Conjunctions(node) {
		if err := t.translateMatch(&d, conj); err != nil {
			return Disjunct{}, err
		}
	}
	return d, nil
}

func (t *translator) translateMatch(d *Disjunct, node filterir.Predicate) error {
	switch pred := node.(type) {
	case filterir.Compare:
		return t.translateBinary(d, pred)
	case *filterir.Compare:
		return t.translateBinary(d, *pred)
	case filterir.Call:
		return fault.UnsupportedOperator(pred.Op, filterir.Format(pred))
	case *filterir.Call:
		return fault.UnsupportedOperator(pred.Op, filterir.Format(*pred))
	case filterir.Or, *filterir.Or:
		return fault.UnsupportedOperator("OR", filterir.Format(node))
	default:
		return fault.UnsupportedOperator(fmt.Sprintf("%T", node), filterir.Format(node))
	}
}

// translateBinary normalizes a comparison so the attribute is on the left,
// swapping operands and flipping the operator when the literal comes first.
func (t *translator) translateBinary(d *Disjunct, cmp filterir.Compare) error {
	if !cmp.Op.Valid() {
		return fault.UnsupportedOperator(string(cmp.Op), filterir.Format(cmp))
	}

	if name, lit, ok, err := t.attributeAndLiteral(cmp.Left, cmp.Right); err != nil {
		return err
	} else if ok {
		return t.classify(d, cmp.Op, name, lit)
	}

	flipped, _ := cmp.Op.Flip()
	if name, lit, ok, err := t.attributeAndLiteral(cmp.Right, cmp.Left); err != nil {
		return err
	} else if ok {
		return t.classify(d, flipped, name, lit)
	}

	return fault.UnsupportedOperand(string(cmp.Op), "",
		fmt.Sprintf("cannot translate %s: expected one attribute and one literal", filterir.Format(cmp)))
}

// attributeAndLiteral reports whether (left, right) is (attribute, literal).
// An attribute reference that names no known column is an error.
func (t *translator) attributeAndLiteral(left, right filterir.Operand) (string, any, bool, error) {
	lit, ok := unwrapCast(right).(filterir.Literal)
	if !ok {
		return "", nil, false, nil
	}

	switch ref := unwrapCast(left).(type) {
	case filterir.Field:
		if !containsString(t.fields, ref.Name) {
			return "", nil, false, fault.UnsupportedOperand("", ref.Name, "field is not part of the input row")
		}
		return ref.Name, lit.Value, true, nil
	case filterir.Ref:
		if ref.Index < 0 || ref.Index >= len(t.fields) {
			return "", nil, false, fault.UnsupportedOperand("", fmt.Sprintf("$%d", ref.Index),
				fmt.Sprintf("field ordinal out of range [0,%d)", len(t.fields)))
		}
		return t.fields[ref.Index], lit.Value, true, nil
	case filterir.Item:
		if !t.schema.Has(ref.Key) {
			return "", nil, false, fault.UnsupportedOperand("", ref.Key, "item key is not a declared attribute")
		}
		return ref.Key, lit.Value, true, nil
	}
	return "", nil, false, nil
}

func unwrapCast(o filterir.Operand) filterir.Operand {
	for {
		c, ok := o.(filterir.Cast)
		if !ok {
			return o
		}
		o = c.Operand
	}
}

// classify binds the literal to a placeholder and files the comparison under
// the disjunct's hash-key, sort-key or residual filters.
func (t *translator) classify(d *Disjunct, op filterir.Op, name string, value any) error {
	if _, err := attr.Encode(value); err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) {
			fe.Attribute = name
			return fe
		}
		return fmt.Errorf("attribute %s: %w", name, err)
	}

	f := Filter{Attribute: name, Op: op, Placeholder: t.bind(value)}

	switch {
	case name == t.schema.HashKey() && op == filterir.OpEq:
		if d.HashKey != nil {
			return fault.AmbiguousHashKey(name)
		}
		d.HashKey = &f

	case name == t.schema.SortKey() && isSortKeyOp(op):
		if err := addSortKeyFilter(d, f); err != nil {
			return err
		}

	default:
		d.Residual = append(d.Residual, f)
	}
	return nil
}

func (t *translator) bind(value any) string {
	t.counter++
	name := fmt.Sprintf(":v%d", t.counter)
	t.result.Names = append(t.result.Names, name)
	t.result.Values[name] = value
	return name
}

func isSortKeyOp(op filterir.Op) bool {
	switch op {
	case filterir.OpEq, filterir.OpLt, filterir.OpLe, filterir.OpGt, filterir.OpGe:
		return true
	}
	return false
}

// addSortKeyFilter enforces the sort-key rule: one filter, or exactly one >=
// with one <=. Operators are compared by value.
func addSortKeyFilter(d *Disjunct, f Filter) error {
	switch len(d.SortKey) {
	case 0:
		d.SortKey = append(d.SortKey, f)
		return nil
	case 1:
		prev := d.SortKey[0].Op
		if (prev == filterir.OpGe && f.Op == filterir.OpLe) || (prev == filterir.OpLe && f.Op == filterir.OpGe) {
			d.SortKey = append(d.SortKey, f)
			return nil
		}
	}
	return fault.IllegalSortKey(f.Attribute, string(f.Op))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
