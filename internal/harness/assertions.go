package harness

import (
	"fmt"
	"strings"
)

// AssertionError is a failed trace assertion. The rendered message
// carries the full trace so a failure is debuggable from the test log
// alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\ntrace:\n")
	for _, ev := range e.Trace {
		switch ev.Kind {
		case KindCall:
			fmt.Fprintf(&buf, "  [%d] call %s -> %s\n", ev.Seq, ev.Ref, ev.Outcome)
		case KindInsert:
			fmt.Fprintf(&buf, "  [%d] insert %s %s\n", ev.Seq, ev.Tag, shortAddr(ev.Address))
		case KindRelease:
			fmt.Fprintf(&buf, "  [%d] release %s\n", ev.Seq, shortAddr(ev.Address))
		}
	}
	return buf.String()
}

func shortAddr(hex string) string {
	if len(hex) > 12 {
		return hex[:12]
	}
	return hex
}

// EvaluateAssertions checks every assertion against the trace and
// returns one message per failure.
func EvaluateAssertions(trace []TraceEvent, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertTraceContains passes when some event matches every set matcher
// field.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if eventMatches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatcher(a),
		Actual:   "no matching event",
		Trace:    trace,
	}
}

func eventMatches(ev TraceEvent, a Assertion) bool {
	if a.Kind != "" && ev.Kind != a.Kind {
		return false
	}
	if a.Ref != "" && ev.Ref != a.Ref {
		return false
	}
	if a.Tag != "" && ev.Tag != a.Tag {
		return false
	}
	if a.Outcome != "" && ev.Outcome != a.Outcome {
		return false
	}
	return true
}

func describeMatcher(a Assertion) string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Ref != "" {
		parts = append(parts, "ref="+a.Ref)
	}
	if a.Tag != "" {
		parts = append(parts, "tag="+a.Tag)
	}
	if a.Outcome != "" {
		parts = append(parts, "outcome="+a.Outcome)
	}
	return "event with " + strings.Join(parts, " ")
}

// assertTraceOrder passes when call events with the given refs appear
// in the given order. Intervening events are allowed; only the first
// occurrence of each ref counts.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Kind != KindCall {
			continue
		}
		for _, ref := range a.Refs {
			if ev.Ref == ref && positions[ref] == 0 {
				positions[ref] = i + 1
			}
		}
	}

	for _, ref := range a.Refs {
		if positions[ref] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Refs),
				Actual:   fmt.Sprintf("no call to %s", ref),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Refs); i++ {
		prev, curr := a.Refs[i-1], a.Refs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Refs),
				Actual: fmt.Sprintf("%s (event %d) should precede %s (event %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount passes when exactly Count call events carry the ref.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == KindCall && ev.Ref == a.Ref {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls to %s", a.Count, a.Ref),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}
