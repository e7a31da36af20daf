package dispatch

import (
	"context"

	"github.com/roach88/tessera/internal/store"
)

// Pending is an in-flight asynchronous call. Wait blocks until the call
// finishes; Done exposes the completion signal for select loops.
type Pending struct {
	done chan struct{}
	out  []store.Handle
	err  error
}

// Submit starts the call in its own goroutine and returns immediately.
// The call observes the same context, options, and fault taxonomy as
// Call; queuing and backpressure belong to the layer above.
func (r *Resolver) Submit(ctx context.Context, ref Ref, args []store.Handle, opts ...CallOption) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.out, p.err = r.Call(ctx, ref, args, opts...)
	}()
	return p
}

// Wait blocks until the call completes and returns its outcome. Safe to
// call from multiple goroutines and more than once.
func (p *Pending) Wait() ([]store.Handle, error) {
	<-p.done
	return p.out, p.err
}

// Done returns a channel closed when the call completes.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}
