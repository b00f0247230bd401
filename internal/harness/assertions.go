package harness

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/dynaql/internal/canonical"
)

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(r *Result, a Assertion) error {
	if a.Type != AssertErrorCode && a.Type != AssertRequestCount && r.ErrorCode != "" {
		return fmt.Errorf("translation failed with %s", r.ErrorCode)
	}

	switch a.Type {
	case AssertAccess:
		if string(r.Access) != a.Access {
			return fmt.Errorf("expected %s, got %s", a.Access, r.Access)
		}
	case AssertKeyConditions:
		return compareExpressions(a.Expressions, r.Plan.KeyConditions)
	case AssertFilters:
		return compareExpressions(a.Expressions, r.Plan.Filters)
	case AssertRequestCount:
		if len(r.Requests) != *a.Count {
			return fmt.Errorf("expected %d requests, got %d", *a.Count, len(r.Requests))
		}
	case AssertRowCount:
		if len(r.Rows) != *a.Count {
			return fmt.Errorf("expected %d rows, got %d", *a.Count, len(r.Rows))
		}
	case AssertRows:
		return compareRows(a.Rows, r.Rows)
	case AssertErrorCode:
		if string(r.ErrorCode) != a.Code {
			if r.ErrorCode == "" {
				return fmt.Errorf("expected %s, translation succeeded", a.Code)
			}
			return fmt.Errorf("expected %s, got %s", a.Code, r.ErrorCode)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func compareExpressions(want, got []string) error {
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if !slices.Equal(want, got) {
		return fmt.Errorf("expected %q, got %q", want, got)
	}
	return nil
}

// compareRows compares rows as multisets of their canonical JSON, so 9 and
// 9.0 are the same value.
func compareRows(want, got []any) error {
	w, err := canonicalRows(want)
	if err != nil {
		return fmt.Errorf("expected rows: %w", err)
	}
	g, err := canonicalRows(got)
	if err != nil {
		return fmt.Errorf("actual rows: %w", err)
	}
	if !slices.Equal(w, g) {
		return fmt.Errorf("expected rows %v, got %v", w, g)
	}
	return nil
}

func canonicalRows(rows []any) ([]string, error) {
	out := make([]string, len(rows))
	for i, row := range rows {
		data, err := canonical.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = string(data)
	}
	sort.Strings(out)
	return out, nil
}
