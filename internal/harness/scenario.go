package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dynaql/internal/fault"
	"github.com/roach88/dynaql/internal/filterir"
	"github.com/roach88/dynaql/internal/pushdown"
)

// Scenario defines one conformance run: a fixture, a table, a filter and
// the assertions the run must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the CUE fixture to seed, relative to the scenario file.
	Fixture string `yaml:"fixture"`

	// Table is the fixture table to read.
	Table string `yaml:"table"`

	// Filter is the predicate in filterir YAML form. Nil reads everything.
	Filter *filterir.Node `yaml:"filter,omitempty"`

	// Project lists the columns to read. Empty reads every column.
	Project []string `yaml:"project,omitempty"`

	// Parallel drains each query disjunct on its own goroutine.
	Parallel bool `yaml:"parallel,omitempty"`

	// PageLimit caps items evaluated per request. Zero uses the store default.
	PageLimit int32 `yaml:"page_limit,omitempty"`

	// ExecutionID is the fixed execution id. Defaults to "test-exec-default".
	ExecutionID string `yaml:"execution_id,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Access is "query" or "scan" (access).
	Access string `yaml:"access,omitempty"`

	// Count is the expected number (request_count, row_count).
	Count *int `yaml:"count,omitempty"`

	// Rows are the expected rows, in any order (rows).
	Rows []any `yaml:"rows,omitempty"`

	// Expressions are the expected key conditions or filters, in order.
	Expressions []string `yaml:"expressions,omitempty"`

	// Code is the expected fault code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertAccess        = "access"
	AssertKeyConditions = "key_conditions"
	AssertFilters       = "filters"
	AssertRequestCount  = "request_count"
	AssertRowCount      = "row_count"
	AssertRows          = "rows"
	AssertErrorCode     = "error_code"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Predicate converts the scenario's filter.
func (s *Scenario) Predicate() (filterir.Predicate, error) {
	if s.Filter == nil {
		return nil, nil
	}
	return s.Filter.Predicate()
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture)
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if s.PageLimit < 0 {
		return fmt.Errorf("page_limit must be non-negative")
	}
	if _, err := s.Predicate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAccess:
		if a.Access != string(pushdown.AccessQuery) && a.Access != string(pushdown.AccessScan) {
			return fmt.Errorf("assertions[%d]: access must be query or scan, got %q", index, a.Access)
		}
	case AssertKeyConditions, AssertFilters:
		if a.Expressions == nil {
			return fmt.Errorf("assertions[%d]: expressions is required for %s", index, a.Type)
		}
	case AssertRequestCount, AssertRowCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertRows:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for rows", index)
		}
	case AssertErrorCode:
		if !knownCode(a.Code) {
			return fmt.Errorf("assertions[%d]: unknown fault code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownCode(code string) bool {
	for _, c := range fault.Codes {
		if string(c) == code {
			return true
		}
	}
	return false
}
