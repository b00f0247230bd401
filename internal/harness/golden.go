package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dynaql/internal/canonical"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// Successful runs record access, plan lines, requests and rows; failed
// translations record only the fault code. Empty request fields are left
// out.
func Snapshot(name string, r *Result) ([]byte, error) {
	snap := map[string]any{"scenario": name}
	if r.ErrorCode != "" {
		snap["error"] = string(r.ErrorCode)
		return canonical.Marshal(snap)
	}

	plan := []any{}
	if r.Plan != nil {
		for _, line := range strings.Split(r.Plan.String(), "\n") {
			plan = append(plan, line)
		}
	}

	requests := make([]any, len(r.Requests))
	for i, req := range r.Requests {
		m := map[string]any{
			"op":    req.Op,
			"items": req.Items,
			"more":  req.More,
		}
		if req.KeyCondition != "" {
			m["key_condition"] = req.KeyCondition
		}
		if req.Filter != "" {
			m["filter"] = req.Filter
		}
		if req.Projection != "" {
			m["projection"] = req.Projection
		}
		if len(req.Values) > 0 {
			m["values"] = req.Values
		}
		if req.Limit > 0 {
			m["limit"] = req.Limit
		}
		requests[i] = m
	}

	rows := r.Rows
	if rows == nil {
		rows = []any{}
	}

	snap["access"] = string(r.Access)
	snap["plan"] = plan
	snap["requests"] = requests
	snap["rows"] = rows
	return canonical.Marshal(snap)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
