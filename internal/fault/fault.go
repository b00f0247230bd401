// Package fault defines the closed set of translation and configuration
// errors raised while pushing a relational filter down to the store.
//
// These errors signal a contract violation between the query compiler and the
// push-down layer, not a data error. They are raised immediately at
// translation or row-conversion time and are never retried.
//
// Remote store failures are NOT represented here: they propagate to the
// caller unmodified so SDK error types remain inspectable with errors.As.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes push-down errors.
type Code string

const (
	// ErrCodeUnsupportedOperator indicates a node in a conjunction that is not
	// one of the supported binary comparisons.
	ErrCodeUnsupportedOperator Code = "UNSUPPORTED_OPERATOR"

	// ErrCodeUnsupportedOperand indicates a comparison whose operands are not
	// exactly one attribute reference and one literal.
	ErrCodeUnsupportedOperand Code = "UNSUPPORTED_OPERAND_SHAPE"

	// ErrCodeAmbiguousHashKey indicates two hash-key equalities in one disjunct.
	ErrCodeAmbiguousHashKey Code = "AMBIGUOUS_HASH_KEY_FILTER"

	// ErrCodeIllegalSortKey indicates sort-key filters that cannot be expressed
	// as one key condition (anything other than one filter or a >=/<= pair).
	ErrCodeIllegalSortKey Code = "ILLEGAL_SORT_KEY_COMBINATION"

	// ErrCodeUnsupportedKind indicates a scalar kind outside N, S and B, or a
	// Go value that has no tagged representation.
	ErrCodeUnsupportedKind Code = "UNSUPPORTED_SCALAR_KIND"
)

// Codes lists every code in declaration order.
var Codes = []Code{
	ErrCodeUnsupportedOperator,
	ErrCodeUnsupportedOperand,
	ErrCodeAmbiguousHashKey,
	ErrCodeIllegalSortKey,
	ErrCodeUnsupportedKind,
}

// Error is a push-down contract violation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Attribute names the offending attribute, when known.
	Attribute string

	// Operator names the offending operator or scalar kind, when known.
	Operator string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Attribute != "" && e.Operator != "":
		return fmt.Sprintf("%s: %s (attribute=%s, operator=%s)", e.Code, e.Message, e.Attribute, e.Operator)
	case e.Attribute != "":
		return fmt.Sprintf("%s: %s (attribute=%s)", e.Code, e.Message, e.Attribute)
	case e.Operator != "":
		return fmt.Sprintf("%s: %s (operator=%s)", e.Code, e.Message, e.Operator)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether err is a push-down error with the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// UnsupportedOperator creates an error for a node that is not a comparison.
func UnsupportedOperator(op, node string) *Error {
	return &Error{
		Code:     ErrCodeUnsupportedOperator,
		Message:  fmt.Sprintf("cannot translate %s", node),
		Operator: op,
	}
}

// UnsupportedOperand creates an error for a comparison that cannot be
// normalized to attribute-op-literal.
func UnsupportedOperand(op, attribute, detail string) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedOperand,
		Message:   detail,
		Attribute: attribute,
		Operator:  op,
	}
}

// AmbiguousHashKey creates an error for a second hash-key equality.
func AmbiguousHashKey(hashKey string) *Error {
	return &Error{
		Code:      ErrCodeAmbiguousHashKey,
		Message:   "only one condition is allowed on the hash key in each OR group",
		Attribute: hashKey,
		Operator:  "=",
	}
}

// IllegalSortKey creates an error for a sort-key filter that cannot join the
// ones already collected for the group.
func IllegalSortKey(sortKey, op string) *Error {
	return &Error{
		Code:      ErrCodeIllegalSortKey,
		Message:   "only one condition or a >= / <= range is allowed on the sort key in each OR group",
		Attribute: sortKey,
		Operator:  op,
	}
}

// UnsupportedKind creates an error for an unknown scalar kind.
func UnsupportedKind(attribute, kind string) *Error {
	return &Error{
		Code:      ErrCodeUnsupportedKind,
		Message:   fmt.Sprintf("not a supported scalar kind: %q", kind),
		Attribute: attribute,
		Operator:  kind,
	}
}
