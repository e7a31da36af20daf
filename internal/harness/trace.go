package harness

import "github.com/roach88/tessera/internal/ir"

// Trace event kinds, one per step type.
const (
	KindInsert  = "insert"
	KindCall    = "call"
	KindRelease = "release"
)

// outcomeOK marks a step that completed without a fault. Failed calls
// carry the fault code instead.
const outcomeOK = "ok"

// TraceEvent records one executed step. Addresses rather than slot
// identifiers go into the trace: addresses are deterministic and stable
// across runs, slots are not meaningful outside one process.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Kind    string   `json:"kind"`
	Outcome string   `json:"outcome"`
	Tag     string   `json:"tag,omitempty"`     // insert
	Address string   `json:"address,omitempty"` // insert, release
	Ref     string   `json:"ref,omitempty"`     // call
	Token   string   `json:"token,omitempty"`   // call
	Outputs []string `json:"outputs,omitempty"` // call output addresses
}

// toValue builds the ir form of the event for canonical rendering.
func (e TraceEvent) toValue() ir.Object {
	obj := ir.Object{
		"seq":     ir.Int(e.Seq),
		"kind":    ir.String(e.Kind),
		"outcome": ir.String(e.Outcome),
	}
	if e.Tag != "" {
		obj["tag"] = ir.String(e.Tag)
	}
	if e.Address != "" {
		obj["address"] = ir.String(e.Address)
	}
	if e.Ref != "" {
		obj["ref"] = ir.String(e.Ref)
	}
	if e.Token != "" {
		obj["token"] = ir.String(e.Token)
	}
	if len(e.Outputs) > 0 {
		outs := make(ir.Array, len(e.Outputs))
		for i, addr := range e.Outputs {
			outs[i] = ir.String(addr)
		}
		obj["outputs"] = outs
	}
	return obj
}

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists the failed expectations. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult returns an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

func (r *Result) addEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
