package testutil

// FixedIDGenerator returns the same execution id every time.
//
// Execution ids show up in logs and in the JSON output of query runs. A fixed
// id makes that output byte-identical across runs so it can be compared
// against golden files.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed execution id generator.
//
// If id is empty, Generate() returns "test-exec-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-exec-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements table.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
