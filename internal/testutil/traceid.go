package testutil

import "fmt"

// FixedTraceIDs returns a predictable sequence of trace IDs so CLI output can
// be compared against golden files.
//
// The first call to Generate returns "trace-0001".
type FixedTraceIDs struct {
	prefix string
	n      int
}

// NewFixedTraceIDs creates a generator. An empty prefix defaults to "trace".
func NewFixedTraceIDs(prefix string) *FixedTraceIDs {
	if prefix == "" {
		prefix = "trace"
	}
	return &FixedTraceIDs{prefix: prefix}
}

// Generate returns the next trace ID. Not safe for concurrent use.
func (g *FixedTraceIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
