package harness

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/pushdown"
)

// Request is one store request observed at the client boundary.
type Request struct {
	Op           string // "query" or "scan"
	KeyCondition string
	Filter       string
	Projection   string
	Values       map[string]types.AttributeValue
	Limit        int32

	// Items is the number of items the response carried; More reports a
	// cursor.
	Items int
	More  bool
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Access and Plan are unset when translation failed.
	Access pushdown.Access
	Plan   *pushdown.Plan

	Requests []Request
	Rows     []any

	// ErrorCode is the fault code of a failed translation.
	ErrorCode fault.Code

	// Errors holds assertion failures.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
