// Package filterir provides the relational filter tree that the push-down
// layer consumes.
//
// The tree is what a query compiler hands over after it has normalized a
// WHERE clause into disjunctive normal form: an OR of ANDs of binary
// comparisons.
//
//	[WHERE clause] → [filterir tree] → [pushdown.Translate] → [pushdown.Plan]
//
// SEALED INTERFACES:
//
// Predicate and Operand are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so the translator's type switches
// are exhaustive.
//
// Predicate types:
//   - Or: any child must hold
//   - And: every child must hold
//   - Compare: <operand> <op> <operand>
//   - Call: any other operator (LIKE, IS NULL, NOT, ...), carried through so the
//     translator can reject it with a precise error
//
// Operand types:
//   - Field: direct column reference by name
//   - Ref: column reference by ordinal in the field list
//   - Item: single-level keyed access, e.g. _MAP['name']
//   - Cast: a type cast around another operand (transparent to push-down)
//   - Literal: a constant scalar
//
// The tree does not need to be flat: nested ORs under an OR and nested ANDs
// under an AND are flattened by Disjunctions and Conjunctions. An OR nested
// under an AND is not DNF and surfaces as an unsupported operator.
package filterir
