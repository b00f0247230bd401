package filterir

import (
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Node is the YAML form of a predicate. Exactly one shape must be used per
// node:
//
//	or:  [<node>, ...]
//	and: [<node>, ...]
//	attr: numberCol          # shorthand comparison: attribute on the left
//	op: ">"
//	value: 8
//	left: {value: 8}         # general comparison, either side may be literal
//	op: "<"
//	right: {field: numberCol}
//	call: LIKE               # any other operator
//	args: [{field: name}, {value: "a%"}]
type Node struct {
	Or    []Node         `yaml:"or,omitempty"`
	And   []Node         `yaml:"and,omitempty"`
	Attr  string         `yaml:"attr,omitempty"`
	Op    string         `yaml:"op,omitempty"`
	Value any            `yaml:"value,omitempty"`
	Bytes string         `yaml:"bytes,omitempty"`
	Left  *OperandNode   `yaml:"left,omitempty"`
	Right *OperandNode   `yaml:"right,omitempty"`
	Call  string         `yaml:"call,omitempty"`
	Args  []*OperandNode `yaml:"args,omitempty"`
}

// OperandNode is the YAML form of an operand.
type OperandNode struct {
	Field string       `yaml:"field,omitempty"`
	Ref   *int         `yaml:"ref,omitempty"`
	Item  string       `yaml:"item,omitempty"`
	Cast  *OperandNode `yaml:"cast,omitempty"`
	Type  string       `yaml:"type,omitempty"`
	Value any          `yaml:"value,omitempty"`
	Bytes string       `yaml:"bytes,omitempty"` // base64 binary literal
}

// Parse decodes a YAML filter document. An empty document means no filter
// and yields a nil predicate.
func Parse(data []byte) (Predicate, error) {
	var n Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if n.isEmpty() {
		return nil, nil
	}
	return n.Predicate()
}

// ParseFile reads and decodes a YAML filter file.
func ParseFile(path string) (Predicate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter file: %w", err)
	}
	return Parse(data)
}

func (n *Node) isEmpty() bool {
	return len(n.Or) == 0 && len(n.And) == 0 && n.Attr == "" && n.Op == "" &&
		n.Left == nil && n.Right == nil && n.Call == "" && n.Value == nil && n.Bytes == ""
}

// Predicate converts the node into a filter tree.
func (n *Node) Predicate() (Predicate, error) {
	switch {
	case len(n.Or) > 0:
		children, err := convertNodes(n.Or)
		if err != nil {
			return nil, fmt.Errorf("or: %w", err)
		}
		return Or{Predicates: children}, nil
	case len(n.And) > 0:
		children, err := convertNodes(n.And)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}
		return And{Predicates: children}, nil
	case n.Call != "":
		args := make([]Operand, len(n.Args))
		for i, a := range n.Args {
			o, err := a.Operand()
			if err != nil {
				return nil, fmt.Errorf("call %s arg %d: %w", n.Call, i, err)
			}
			args[i] = o
		}
		return Call{Op: n.Call, Operands: args}, nil
	case n.Attr != "":
		lit, err := literal(n.Value, n.Bytes)
		if err != nil {
			return nil, fmt.Errorf("attr %s: %w", n.Attr, err)
		}
		return Compare{Op: Op(n.Op), Left: Field{Name: n.Attr}, Right: lit}, nil
	case n.Left != nil && n.Right != nil:
		left, err := n.Left.Operand()
		if err != nil {
			return nil, fmt.Errorf("left: %w", err)
		}
		right, err := n.Right.Operand()
		if err != nil {
			return nil, fmt.Errorf("right: %w", err)
		}
		return Compare{Op: Op(n.Op), Left: left, Right: right}, nil
	}
	return nil, fmt.Errorf("filter node has no recognizable shape")
}

func convertNodes(nodes []Node) ([]Predicate, error) {
	out := make([]Predicate, len(nodes))
	for i := range nodes {
		p, err := nodes[i].Predicate()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Operand converts the node into an operand.
func (o *OperandNode) Operand() (Operand, error) {
	switch {
	case o == nil:
		return nil, fmt.Errorf("missing operand")
	case o.Field != "":
		return Field{Name: o.Field}, nil
	case o.Ref != nil:
		return Ref{Index: *o.Ref}, nil
	case o.Item != "":
		return Item{Key: o.Item}, nil
	case o.Cast != nil:
		inner, err := o.Cast.Operand()
		if err != nil {
			return nil, fmt.Errorf("cast: %w", err)
		}
		return Cast{Operand: inner, Type: o.Type}, nil
	}
	return literal(o.Value, o.Bytes)
}

func literal(value any, b64 string) (Operand, error) {
	if b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode bytes literal: %w", err)
		}
		return Literal{Value: raw}, nil
	}
	if value == nil {
		return nil, fmt.Errorf("missing literal value")
	}
	return Literal{Value: value}, nil
}
