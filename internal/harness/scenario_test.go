package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario file next to a placeholder fixture and
// returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.cue"), []byte("tables: {}\n"), 0644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
fixture: fixture.cue
table: testTable
project: [hashKey]
page_limit: 2
filter:
  or:
    - {attr: hashKey, op: "=", value: hashKey1}
    - {attr: numberCol, op: "<", value: 3}
assertions:
  - type: access
    access: scan
  - type: rows
    rows: [hashKey1]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "fixture.cue"), scenario.Fixture)
	assert.Equal(t, "testTable", scenario.Table)
	assert.Equal(t, []string{"hashKey"}, scenario.Project)
	assert.Equal(t, int32(2), scenario.PageLimit)
	assert.Len(t, scenario.Assertions, 2)

	pred, err := scenario.Predicate()
	require.NoError(t, err)
	assert.NotNil(t, pred)
}

func TestLoadScenario_NoFilter(t *testing.T) {
	path := writeScenario(t, `
name: all
description: "reads everything"
fixture: fixture.cue
table: testTable
assertions:
  - type: row_count
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	pred, err := scenario.Predicate()
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/path/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled field"
fixture: fixture.cue
tabel: testTable
assertions:
  - type: row_count
    count: 0
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
fixture: fixture.cue
table: t
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
fixture: fixture.cue
table: t
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing fixture",
			content: `
name: n
description: d
table: t
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "fixture is required",
		},
		{
			name: "fixture not found",
			content: `
name: n
description: d
fixture: missing.cue
table: t
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "fixture file not found",
		},
		{
			name: "missing table",
			content: `
name: n
description: d
fixture: fixture.cue
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "table is required",
		},
		{
			name: "negative page limit",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
page_limit: -1
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "page_limit must be non-negative",
		},
		{
			name: "bad filter",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
filter: {attr: numberCol, op: "~", value: 1}
assertions: [{type: row_count, count: 0}]
`,
			wantErr: "filter:",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: []
`,
			wantErr: "assertions list is required",
		},
		{
			name: "assertion without type",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{count: 1}]
`,
			wantErr: "assertions[0]: type is required",
		},
		{
			name: "bad access",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: access, access: index}]
`,
			wantErr: "access must be query or scan",
		},
		{
			name: "count missing",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: request_count}]
`,
			wantErr: "non-negative count is required for request_count",
		},
		{
			name: "expressions missing",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: filters}]
`,
			wantErr: "expressions is required for filters",
		},
		{
			name: "rows missing",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: rows}]
`,
			wantErr: "rows is required",
		},
		{
			name: "unknown code",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: error_code, code: BOOM}]
`,
			wantErr: `unknown fault code "BOOM"`,
		},
		{
			name: "unknown type",
			content: `
name: n
description: d
fixture: fixture.cue
table: t
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
