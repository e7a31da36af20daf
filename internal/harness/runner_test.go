package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uppercaseScenario() *Scenario {
	return &Scenario{
		Name:        "uppercase_literal",
		Description: "Uppercase one value.",
		Plugins:     []string{"text/uppercase"},
		Steps: []Step{
			{Insert: &InsertStep{As: "in", Tag: "text", Value: "hello"}},
			{Call: &CallStep{
				Ref:    "text/uppercase",
				Args:   []string{"in"},
				As:     []string{"out"},
				Expect: &ExpectClause{Values: []any{"HELLO"}},
			}},
		},
	}
}

func TestRunUppercase(t *testing.T) {
	result, err := Run(uppercaseScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)

	ins, call := result.Trace[0], result.Trace[1]
	assert.Equal(t, KindInsert, ins.Kind)
	assert.Equal(t, int64(1), ins.Seq)
	assert.Equal(t, "text", ins.Tag)
	assert.Len(t, ins.Address, 64)

	assert.Equal(t, KindCall, call.Kind)
	assert.Equal(t, int64(2), call.Seq)
	assert.Equal(t, outcomeOK, call.Outcome)
	require.Len(t, call.Outputs, 1)
	assert.NotEqual(t, ins.Address, call.Outputs[0])
}

func TestRunDedupVisibleInTrace(t *testing.T) {
	s := &Scenario{
		Name:        "dedup",
		Description: "Identical inserts share one address.",
		Steps: []Step{
			{Insert: &InsertStep{As: "a", Tag: "text", Value: "same"}},
			{Insert: &InsertStep{As: "b", Tag: "text", Value: "same"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, result.Trace[0].Address, result.Trace[1].Address)
}

func TestRunValueMismatch(t *testing.T) {
	s := uppercaseScenario()
	s.Steps[1].Call.Expect = &ExpectClause{Values: []any{"WRONG"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "output 0")
}

func TestRunExpectedFault(t *testing.T) {
	s := &Scenario{
		Name:        "fail_expected",
		Description: "Plugin failure matches the expectation.",
		Plugins:     []string{"demo/fail"},
		Steps: []Step{
			{Call: &CallStep{
				Ref:    "demo/fail",
				Args:   []string{},
				Expect: &ExpectClause{Error: "PLUGIN_FAILURE"},
			}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "PLUGIN_FAILURE", result.Trace[0].Outcome)
	assert.Empty(t, result.Trace[0].Outputs)
}

func TestRunFaultCodeMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "fail_wrong_code",
		Description: "Expected fault code disagrees with the actual one.",
		Plugins:     []string{"demo/fail"},
		Steps: []Step{
			{Call: &CallStep{
				Ref:    "demo/fail",
				Args:   []string{},
				Expect: &ExpectClause{Error: "TYPE_MISMATCH"},
			}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected TYPE_MISMATCH fault, got PLUGIN_FAILURE")
}

func TestRunUnexpectedFault(t *testing.T) {
	s := &Scenario{
		Name:        "fail_unexpected",
		Description: "A call without an expect clause must succeed.",
		Plugins:     []string{"demo/fail"},
		Steps: []Step{
			{Call: &CallStep{Ref: "demo/fail", Args: []string{}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected failure")
}

func TestRunCallUnregistered(t *testing.T) {
	// concat is a builtin but this scenario never registers it, so the
	// call fails with a lookup fault the expect clause can name.
	s := &Scenario{
		Name:        "not_registered",
		Description: "Calling an unregistered ref yields NOT_FOUND.",
		Plugins:     []string{"text/uppercase"},
		Steps: []Step{
			{Insert: &InsertStep{As: "a", Tag: "text", Value: "x"}},
			{Insert: &InsertStep{As: "b", Tag: "text", Value: "y"}},
			{Call: &CallStep{
				Ref:    "text/concat",
				Args:   []string{"a", "b"},
				Expect: &ExpectClause{Error: "NOT_FOUND"},
			}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunTypeMismatch(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_tag",
		Description: "An argument with the wrong tag fails validation.",
		Plugins:     []string{"text/uppercase"},
		Steps: []Step{
			{Insert: &InsertStep{As: "obj", Tag: "json", Value: map[string]any{"k": 1}}},
			{Call: &CallStep{
				Ref:    "text/uppercase",
				Args:   []string{"obj"},
				Expect: &ExpectClause{Error: "TYPE_MISMATCH"},
			}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "TYPE_MISMATCH", result.Trace[1].Outcome)
}

func TestRunReleaseEvent(t *testing.T) {
	s := &Scenario{
		Name:        "release",
		Description: "Releasing a handle is traced with its address.",
		Steps: []Step{
			{Insert: &InsertStep{As: "v", Tag: "text", Value: "gone"}},
			{Release: &ReleaseStep{Handle: "v"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, KindRelease, result.Trace[1].Kind)
	assert.Equal(t, result.Trace[0].Address, result.Trace[1].Address)
}

func TestRunUnknownHandleAborts(t *testing.T) {
	s := &Scenario{
		Name:        "bad_binding",
		Description: "A call naming an unbound handle is a scenario bug.",
		Plugins:     []string{"text/uppercase"},
		Steps: []Step{
			{Call: &CallStep{Ref: "text/uppercase", Args: []string{"missing"}}},
		},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown handle "missing"`)
}

func TestRunInvalidScenarioRejected(t *testing.T) {
	s := &Scenario{
		Name:        "no_description",
		Description: "",
		Steps: []Step{
			{Insert: &InsertStep{As: "v", Tag: "text", Value: "x"}},
		},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRunTokenInTrace(t *testing.T) {
	s := uppercaseScenario()
	s.Token = "trace-custom"

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "trace-custom", result.Trace[1].Token)

	s.Token = ""
	result, err = Run(s)
	require.NoError(t, err)
	assert.Equal(t, "test-call-default", result.Trace[1].Token)
}
