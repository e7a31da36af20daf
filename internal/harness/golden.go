package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tessera/internal/ir"
)

// TraceSnapshot is the golden-file form of a scenario trace.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// toValue builds the ir form of the snapshot. Rendering it through
// canonical JSON gives stable key order, so golden comparison works
// byte for byte.
func (s *TraceSnapshot) toValue() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.toValue()
	}
	return ir.Object{
		"scenario": ir.String(s.Scenario),
		"trace":    trace,
	}
}

// RunWithGolden executes the scenario and compares the canonical trace
// against testdata/golden/<scenario.Name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// The returned result still carries the expectation outcomes; golden
// comparison covers the trace shape only.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-computed result against the golden
// file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{Scenario: name, Trace: result.Trace}
	data, err := ir.MarshalCanonical(snapshot.toValue())
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
