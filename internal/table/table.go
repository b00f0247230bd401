// Package table binds a discovered table's schema to a store client and
// exposes the enumerator factory the query compiler calls.
//
// ARCHITECTURE:
//
//	Catalog (discovered once) → Table (immutable Config + borrowed client)
//	  → Plan (pushdown) → ScanOrQuery → enumerator.Enumerator
//
// A Table is safe for concurrent use. Every enumerator it creates is
// independent; enumerators share only the client and, when the caller passes
// one, a cancel flag.
package table

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/time/rate"

	"github.com/roach88/dynaql/internal/attr"
	"github.com/roach88/dynaql/internal/enumerator"
	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/logging"
	"github.com/roach88/dynaql/internal/pushdown"
)

// Config is the immutable per-table configuration built at discovery time.
type Config struct {
	Name   string
	Schema *attr.Schema
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the table's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// WithPageLimit caps items evaluated per request for every enumerator.
func WithPageLimit(n int32) Option {
	return func(t *Table) {
		t.pageLimit = n
	}
}

// WithLimiter paces requests across every enumerator the table creates.
func WithLimiter(l *rate.Limiter) Option {
	return func(t *Table) {
		t.limiter = l
	}
}

// WithIDGenerator sets the execution id source.
//
// Default: UUIDv7Generator.
// Use testutil.NewFixedIDGenerator for byte-stable output in tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Table) {
		t.ids = g
	}
}

// Table is one queryable table.
type Table struct {
	cfg       Config
	client    enumerator.Client
	logger    *slog.Logger
	pageLimit int32
	limiter   *rate.Limiter
	ids       IDGenerator
}

// New binds cfg to client.
func New(client enumerator.Client, cfg Config, opts ...Option) *Table {
	t := &Table{
		cfg:    cfg,
		client: client,
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.Default(t.logger).With("table", cfg.Name)
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.cfg.Name }

// Schema returns the table schema.
func (t *Table) Schema() *attr.Schema { return t.cfg.Schema }

// ScanOrQuery creates an enumerator from a rendered plan's argument lists.
//
// names and values are aligned placeholder bindings. An empty keyConditions
// selects the Scan variant; otherwise filters is aligned with keyConditions.
func (t *Table) ScanOrQuery(
	cancel *enumerator.CancelFlag,
	projection []string,
	filters []string,
	names []string,
	values []any,
	keyConditions []string,
) (*enumerator.Enumerator, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("table %s: %d placeholder names for %d values", t.cfg.Name, len(names), len(values))
	}

	encoded := make(map[string]types.AttributeValue, len(names))
	for i, name := range names {
		av, err := attr.Encode(values[i])
		if err != nil {
			return nil, fmt.Errorf("table %s: bind %s: %w", t.cfg.Name, name, err)
		}
		encoded[name] = av
	}

	return enumerator.New(t.client, enumerator.Spec{
		Table:         t.cfg.Name,
		Schema:        t.cfg.Schema,
		Projection:    projection,
		Filters:       filters,
		KeyConditions: keyConditions,
		Values:        encoded,
	}, t.enumeratorOptions(cancel)...)
}

func (t *Table) enumeratorOptions(cancel *enumerator.CancelFlag) []enumerator.Option {
	opts := []enumerator.Option{
		enumerator.WithCancel(cancel),
		enumerator.WithLogger(t.logger),
	}
	if t.pageLimit > 0 {
		opts = append(opts, enumerator.WithPageLimit(t.pageLimit))
	}
	if t.limiter != nil {
		opts = append(opts, enumerator.WithLimiter(t.limiter))
	}
	return opts
}

// Plan translates a filter against the table schema and renders it.
func (t *Table) Plan(filter filterir.Predicate) (*pushdown.Plan, error) {
	r, err := pushdown.Translate(t.cfg.Schema, nil, filter)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.cfg.Name, err)
	}
	p := pushdown.NewPlan(r)

	t.logger.Debug("plan selected",
		"access", p.Access(),
		"disjuncts", len(r.Disjuncts),
		"keyed_disjuncts", r.HashKeyFilterCount,
	)
	return p, nil
}

// Open plans a filter and returns the enumerator that executes it.
func (t *Table) Open(cancel *enumerator.CancelFlag, projection []string, filter filterir.Predicate) (*enumerator.Enumerator, error) {
	p, err := t.Plan(filter)
	if err != nil {
		return nil, err
	}
	return t.ScanOrQuery(cancel, projection, p.Filters, p.Names, p.Values, p.KeyConditions)
}

// Execution is the result of a fully drained run.
type Execution struct {
	ID       string
	Access   pushdown.Access
	Plan     *pushdown.Plan
	Rows     []any
	Requests int
}

// Execute plans the filter and drains every row. With parallel set, each
// query disjunct runs on its own enumerator concurrently; rows are still
// returned in disjunct order.
func (t *Table) Execute(
	ctx context.Context,
	cancel *enumerator.CancelFlag,
	projection []string,
	filter filterir.Predicate,
	parallel bool,
) (*Execution, error) {
	p, err := t.Plan(filter)
	if err != nil {
		return nil, err
	}

	exec := &Execution{ID: t.ids.Generate(), Access: p.Access(), Plan: p}
	logger := t.logger.With("execution", exec.ID)
	logger.Info("execution starting", "access", exec.Access, "parallel", parallel)
	start := time.Now()

	parts := []*pushdown.Plan{p}
	if parallel {
		parts = p.Split()
	}

	enums := make([]*enumerator.Enumerator, len(parts))
	for i, part := range parts {
		e, err := t.ScanOrQuery(cancel, projection, part.Filters, part.Names, part.Values, part.KeyConditions)
		if err != nil {
			return nil, err
		}
		enums[i] = e
	}

	rows, err := DrainParallel(ctx, enums)
	for _, e := range enums {
		exec.Requests += e.Requests()
	}
	if err != nil {
		logger.Error("execution failed", "error", err, "requests", exec.Requests)
		return nil, fmt.Errorf("table %s: execution %s: %w", t.cfg.Name, exec.ID, err)
	}
	exec.Rows = rows

	logger.Info("execution finished",
		"rows", len(rows),
		"requests", exec.Requests,
		"elapsed", time.Since(start),
	)
	return exec, nil
}
