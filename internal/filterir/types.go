package filterir

import (
	"fmt"
	"strings"
)

// Predicate is a node of the filter tree. Sealed.
type Predicate interface {
	predicateNode()
}

// Operand is one side of a comparison. Sealed.
type Operand interface {
	operandNode()
}

// Op is a binary comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether op is one of the six supported comparisons.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Flip returns the operator that keeps a comparison true when its operands
// are swapped: = and <> map to themselves, < ↔ >, <= ↔ >=.
// Returns false for unsupported operators.
func (op Op) Flip() (Op, bool) {
	switch op {
	case OpEq, OpNe:
		return op, true
	case OpLt:
		return OpGt, true
	case OpGt:
		return OpLt, true
	case OpLe:
		return OpGe, true
	case OpGe:
		return OpLe, true
	}
	return "", false
}

// Or holds when any of its children holds.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// And holds when every child holds. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Compare is a binary comparison between two operands.
//
// Example:
//
//	Compare{Op: OpGt, Left: Field{Name: "numberCol"}, Right: Literal{Value: 8}}
//
// renders as
//
//	numberCol > 8
type Compare struct {
	Op    Op
	Left  Operand
	Right Operand
}

func (Compare) predicateNode() {}

// Call is any operator the push-down layer does not model, such as LIKE,
// IS NULL or NOT. It exists so those shapes reach the translator intact.
type Call struct {
	Op       string
	Operands []Operand
}

func (Call) predicateNode() {}

// Field references a column by name.
type Field struct {
	Name string
}

func (Field) operandNode() {}

// Ref references a column by its ordinal in the input field list.
type Ref struct {
	Index int
}

func (Ref) operandNode() {}

// Item is single-level keyed access into the row, e.g. _MAP['numberCol'].
// It resolves to the attribute named by Key.
type Item struct {
	Key string
}

func (Item) operandNode() {}

// Cast wraps an operand in a type conversion. Push-down ignores the cast.
type Cast struct {
	Operand Operand
	Type    string
}

func (Cast) operandNode() {}

// Literal is a constant scalar: string, []byte, or any Go number.
type Literal struct {
	Value any
}

func (Literal) operandNode() {}

// Eq is shorthand for Compare{OpEq, Field{name}, Literal{value}}.
func Eq(name string, value any) Compare {
	return Compare{Op: OpEq, Left: Field{Name: name}, Right: Literal{Value: value}}
}

// Cmp is shorthand for Compare{op, Field{name}, Literal{value}}.
func Cmp(name string, op Op, value any) Compare {
	return Compare{Op: op, Left: Field{Name: name}, Right: Literal{Value: value}}
}

// AllOf builds an And.
func AllOf(preds ...Predicate) And {
	return And{Predicates: preds}
}

// AnyOf builds an Or.
func AnyOf(preds ...Predicate) Or {
	return Or{Predicates: preds}
}

// Disjunctions splits p on OR, flattening nested ORs.
// A nil predicate has no disjunctions.
func Disjunctions(p Predicate) []Predicate {
	if p == nil {
		return nil
	}
	switch pred := p.(type) {
	case Or:
		return flatten(pred.Predicates, Disjunctions)
	case *Or:
		return flatten(pred.Predicates, Disjunctions)
	}
	return []Predicate{p}
}

// Conjunctions splits p on AND, flattening nested ANDs.
func Conjunctions(p Predicate) []Predicate {
	if p == nil {
		return nil
	}
	switch pred := p.(type) {
	case And:
		return flatten(pred.Predicates, Conjunctions)
	case *And:
		return flatten(pred.Predicates, Conjunctions)
	}
	return []Predicate{p}
}

func flatten(preds []Predicate, split func(Predicate) []Predicate) []Predicate {
	var out []Predicate
	for _, child := range preds {
		out = append(out, split(child)...)
	}
	return out
}

// Format renders a predicate in SQL-like text for diagnostics.
func Format(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "TRUE"
	case Or:
		return joinFormatted(pred.Predicates, " OR ")
	case *Or:
		return joinFormatted(pred.Predicates, " OR ")
	case And:
		return joinFormatted(pred.Predicates, " AND ")
	case *And:
		return joinFormatted(pred.Predicates, " AND ")
	case Compare:
		return FormatOperand(pred.Left) + " " + string(pred.Op) + " " + FormatOperand(pred.Right)
	case *Compare:
		return Format(*pred)
	case Call:
		args := make([]string, len(pred.Operands))
		for i, o := range pred.Operands {
			args[i] = FormatOperand(o)
		}
		return pred.Op + "(" + strings.Join(args, ", ") + ")"
	case *Call:
		return Format(*pred)
	default:
		return fmt.Sprintf("%T", p)
	}
}

func joinFormatted(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, child := range preds {
		parts[i] = "(" + Format(child) + ")"
	}
	return strings.Join(parts, sep)
}

// FormatOperand renders an operand for diagnostics.
func FormatOperand(o Operand) string {
	switch op := o.(type) {
	case nil:
		return "<nil>"
	case Field:
		return op.Name
	case Ref:
		return fmt.Sprintf("$%d", op.Index)
	case Item:
		return fmt.Sprintf("_MAP[%q]", op.Key)
	case Cast:
		return fmt.Sprintf("CAST(%s AS %s)", FormatOperand(op.Operand), op.Type)
	case Literal:
		switch v := op.Value.(type) {
		case string:
			return "'" + strings.ReplaceAll(v, "'", "''") + "'"
		case []byte:
			return fmt.Sprintf("X'%x'", v)
		default:
			return fmt.Sprint(v)
		}
	default:
		return fmt.Sprintf("%T", o)
	}
}
