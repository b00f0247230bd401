// Package enumerator executes a rendered access plan against the store, one
// page at a time, behind a pull-based iterator.
//
// An Enumerator is either a Scan (one stream over the whole table) or a Query
// (one stream per disjunct, drained in order). Both variants share the same
// driver: a page cache with an in-page index, a continuation cursor, and an
// exhausted flag. A request is made only when the cached page is used up and
// the current stream may still have data. Pages that come back empty with a
// cursor are skipped.
//
// Enumerators are single-consumer. Fetches are synchronous; there is no
// prefetch and no retry. Remote errors surface unmodified through Err.
// Cancellation through a CancelFlag is not an error: Next returns false and
// Err stays nil.
package enumerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/time/rate"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/logging"
	"github.com/roach88/dynaql/internal/pushdown"
)

// Client is the subset of the store API the enumerator uses.
// *dynamodb.Client satisfies it.
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Item is one raw stored item.
type Item = map[string]types.AttributeValue

// ErrNoCurrent is returned by Current when Next has not returned true.
var ErrNoCurrent = errors.New("enumerator: no current item")

// Variant names the closed set of enumerator kinds.
type Variant string

const (
	VariantScan  Variant = "scan"
	VariantQuery Variant = "query"
)

// Spec describes what an enumerator reads.
//
// An empty KeyConditions selects the Scan variant, which uses at most one
// filter. Otherwise Filters is either empty or aligned with KeyConditions.
type Spec struct {
	Table         string
	Schema        *attr.Schema
	Projection    []string
	Filters       []string
	KeyConditions []string
	Values        map[string]types.AttributeValue
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithCancel sets the shared cancellation flag.
func WithCancel(c *CancelFlag) Option {
	return func(e *Enumerator) {
		e.cancel = c
	}
}

// WithPageLimit caps the number of items evaluated per request.
// Zero leaves the limit to the store.
func WithPageLimit(n int32) Option {
	return func(e *Enumerator) {
		e.limit = n
	}
}

// WithLimiter paces requests. Each fetch waits for one token.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Enumerator) {
		e.limiter = l
	}
}

// WithLogger sets the logger for page fetch events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enumerator) {
		e.logger = l
	}
}

// Enumerator is a cancellable, resettable pull iterator over plan results.
type Enumerator struct {
	client     Client
	variant    Variant
	table      string
	schema     *attr.Schema
	projection string
	columns    []string
	streams    []stream

	cancel  *CancelFlag
	limit   int32
	limiter *rate.Limiter
	logger  *slog.Logger

	// Driver state, cleared by Reset.
	stream    int
	started   bool
	cursor    Item
	page      []Item
	index     int
	current   Item
	exhausted bool
	err       error
	requests  int
}

// stream is one independently paged request shape. A scan has exactly one;
// a query has one per disjunct.
type stream struct {
	keyCondition string
	filter       string
	values       map[string]types.AttributeValue
}

// New builds an enumerator for spec. The variant is chosen by whether spec
// carries key conditions.
func New(client Client, spec Spec, opts ...Option) (*Enumerator, error) {
	if client == nil {
		return nil, fmt.Errorf("enumerator: nil client")
	}
	if spec.Table == "" {
		return nil, fmt.Errorf("enumerator: table name is required")
	}
	if spec.Schema == nil {
		return nil, fmt.Errorf("enumerator: table %s: schema is required", spec.Table)
	}
	for _, col := range spec.Projection {
		if !spec.Schema.Has(col) {
			return nil, fmt.Errorf("enumerator: table %s: projected column %s is not declared", spec.Table, col)
		}
	}

	e := &Enumerator{
		client:     client,
		table:      spec.Table,
		schema:     spec.Schema,
		projection: strings.Join(spec.Projection, ", "),
		columns:    append([]string(nil), spec.Projection...),
		index:      -1,
	}

	if len(spec.KeyConditions) == 0 {
		if len(spec.Filters) > 1 {
			return nil, fmt.Errorf("enumerator: table %s: scan takes at most one filter, got %d", spec.Table, len(spec.Filters))
		}
		e.variant = VariantScan
		var filter string
		if len(spec.Filters) == 1 {
			filter = strings.TrimSpace(spec.Filters[0])
		}
		e.streams = []stream{{filter: filter, values: trimValues(spec.Values, filter)}}
	} else {
		if len(spec.Filters) != 0 && len(spec.Filters) != len(spec.KeyConditions) {
			return nil, fmt.Errorf("enumerator: table %s: %d filters for %d key conditions",
				spec.Table, len(spec.Filters), len(spec.KeyConditions))
		}
		e.variant = VariantQuery
		for i, kc := range spec.KeyConditions {
			var filter string
			if len(spec.Filters) > 0 {
				filter = strings.TrimSpace(spec.Filters[i])
			}
			e.streams = append(e.streams, stream{
				keyCondition: kc,
				filter:       filter,
				values:       trimValues(spec.Values, kc, filter),
			})
		}
	}

	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.Default(e.logger)

	return e, nil
}

// trimValues keeps only the placeholders the expressions reference. The store
// rejects requests carrying unused values. An empty result is nil so the
// request omits the map entirely.
func trimValues(values map[string]types.AttributeValue, exprs ...string) map[string]types.AttributeValue {
	var out map[string]types.AttributeValue
	for name, v := range values {
		if pushdown.Mentions(name, exprs...) {
			if out == nil {
				out = make(map[string]types.AttributeValue)
			}
			out[name] = v
		}
	}
	return out
}

// Variant reports which kind of enumerator this is.
func (e *Enumerator) Variant() Variant {
	return e.variant
}

// Requests reports how many remote requests have been made since the last
// Reset.
func (e *Enumerator) Requests() int {
	return e.requests
}

// Next advances to the next item. It returns false when the results are
// exhausted, when the cancel flag is set, or when a request fails; Err tells
// the last case apart.
func (e *Enumerator) Next(ctx context.Context) bool {
	e.current = nil
	if e.cancel.Cancelled() || e.exhausted || e.err != nil {
		return false
	}

	for {
		if e.index+1 < len(e.page) {
			e.index++
			e.current = e.page[e.index]
			return true
		}

		if e.started && e.cursor == nil {
			// Only leave a disjunct once its cursor is exhausted.
			if e.stream+1 >= len(e.streams) {
				e.exhausted = true
				return false
			}
			e.stream++
			e.started = false
		}

		if err := e.fetch(ctx); err != nil {
			e.err = err
			return false
		}
		if e.cancel.Cancelled() {
			return false
		}
	}
}

func (e *Enumerator) fetch(ctx context.Context) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	s := e.streams[e.stream]
	var (
		items []Item
		next  Item
	)

	switch e.variant {
	case VariantScan:
		out, err := e.client.Scan(ctx, e.scanInput(s))
		if err != nil {
			return err
		}
		items, next = out.Items, out.LastEvaluatedKey
	case VariantQuery:
		out, err := e.client.Query(ctx, e.queryInput(s))
		if err != nil {
			return err
		}
		items, next = out.Items, out.LastEvaluatedKey
	}

	e.requests++
	e.started = true
	e.page = items
	e.index = -1
	if len(next) == 0 {
		next = nil
	}
	e.cursor = next

	e.logger.Debug("page fetched",
		"table", e.table,
		"variant", e.variant,
		"disjunct", e.stream,
		"items", len(items),
		"has_cursor", next != nil,
	)
	return nil
}

func (e *Enumerator) scanInput(s stream) *dynamodb.ScanInput {
	in := &dynamodb.ScanInput{
		TableName:         aws.String(e.table),
		ExclusiveStartKey: e.cursor,
	}
	if s.filter != "" {
		in.FilterExpression = aws.String(s.filter)
		in.ExpressionAttributeValues = s.values
	}
	if e.projection != "" {
		in.ProjectionExpression = aws.String(e.projection)
	}
	if e.limit > 0 {
		in.Limit = aws.Int32(e.limit)
	}
	return in
}

func (e *Enumerator) queryInput(s stream) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(e.table),
		KeyConditionExpression:    aws.String(s.keyCondition),
		ExpressionAttributeValues: s.values,
		ExclusiveStartKey:         e.cursor,
	}
	if s.filter != "" {
		in.FilterExpression = aws.String(s.filter)
	}
	if e.projection != "" {
		in.ProjectionExpression = aws.String(e.projection)
	}
	if e.limit > 0 {
		in.Limit = aws.Int32(e.limit)
	}
	return in
}

// Current converts the current item into a row: a bare scalar when one
// column is read, a []any tuple otherwise.
func (e *Enumerator) Current() (any, error) {
	if e.current == nil {
		return nil, ErrNoCurrent
	}
	return e.schema.Row(e.columns, e.current)
}

// Item returns the current raw item, or nil if there is none.
func (e *Enumerator) Item() Item {
	return e.current
}

// Err returns the remote error that stopped iteration, if any.
func (e *Enumerator) Err() error {
	return e.err
}

// Reset rewinds to the state before the first Next. The cancel flag is not
// cleared.
func (e *Enumerator) Reset() {
	e.stream = 0
	e.started = false
	e.cursor = nil
	e.page = nil
	e.index = -1
	e.current = nil
	e.exhausted = false
	e.err = nil
	e.requests = 0
}

// Close releases nothing: the client belongs to the table.
func (e *Enumerator) Close() error {
	return nil
}
