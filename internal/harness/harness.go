package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/fixture"
	"github.com/roach88/dynaql/internal/localstore"
	"github.com/roach88/dynaql/internal/table"
	"github.com/roach88/dynaql/internal/testutil"
)

// MetaTable is the meta table every scenario run seeds.
const MetaTable = "meta"

// Run executes a scenario and evaluates its assertions.
//
// Each run uses a fresh in-memory store for isolation.
//
// Execution flow:
//  1. Seed the fixture into the store
//  2. Discover tables through a recording client
//  3. Plan and drain the filter
//  4. Evaluate assertions against the result
//
// A translation failure is part of the result, not an error: scenarios
// assert on it with error_code. Any other failure aborts the run.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := localstore.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	fx, err := fixture.LoadFile(scenario.Fixture)
	if err != nil {
		return nil, err
	}
	if err := fx.Seed(ctx, st, MetaTable, nil); err != nil {
		return nil, fmt.Errorf("failed to seed fixture: %w", err)
	}

	rec := &recorder{API: st}
	opts := []table.Option{table.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.ExecutionID))}
	if scenario.PageLimit > 0 {
		opts = append(opts, table.WithPageLimit(scenario.PageLimit))
	}
	cat, err := table.Discover(ctx, rec, MetaTable, opts...)
	if err != nil {
		return nil, err
	}
	rec.reset()

	tbl, ok := cat.Table(scenario.Table)
	if !ok {
		return nil, fmt.Errorf("table %s is not in the fixture", scenario.Table)
	}
	pred, err := scenario.Predicate()
	if err != nil {
		return nil, err
	}

	result := NewResult()
	exec, err := tbl.Execute(ctx, nil, scenario.Project, pred, scenario.Parallel)
	switch {
	case err == nil:
		result.Access = exec.Access
		result.Plan = exec.Plan
		result.Rows = exec.Rows
	default:
		var fe *fault.Error
		if !errors.As(err, &fe) {
			return nil, fmt.Errorf("failed to execute: %w", err)
		}
		result.ErrorCode = fe.Code
	}
	result.Requests = rec.snapshot(scenario.Parallel)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// recorder logs every read request passing through to the store.
type recorder struct {
	table.API

	mu       sync.Mutex
	requests []Request
}

func (r *recorder) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	out, err := r.API.Query(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	r.record(Request{
		Op:           "query",
		KeyCondition: aws.ToString(in.KeyConditionExpression),
		Filter:       aws.ToString(in.FilterExpression),
		Projection:   aws.ToString(in.ProjectionExpression),
		Values:       in.ExpressionAttributeValues,
		Limit:        aws.ToInt32(in.Limit),
		Items:        len(out.Items),
		More:         len(out.LastEvaluatedKey) > 0,
	})
	return out, nil
}

func (r *recorder) Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out, err := r.API.Scan(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	r.record(Request{
		Op:         "scan",
		Filter:     aws.ToString(in.FilterExpression),
		Projection: aws.ToString(in.ProjectionExpression),
		Values:     in.ExpressionAttributeValues,
		Limit:      aws.ToInt32(in.Limit),
		Items:      len(out.Items),
		More:       len(out.LastEvaluatedKey) > 0,
	})
	return out, nil
}

func (r *recorder) record(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

// snapshot returns the recorded requests. Concurrent streams interleave, so
// grouped orders them by key condition, keeping each stream's page order.
func (r *recorder) snapshot(grouped bool) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]Request(nil), r.requests...)
	if grouped {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].KeyCondition < out[j].KeyCondition
		})
	}
	return out
}
