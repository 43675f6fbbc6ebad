// Package latest guards asynchronous requests against stale responses.
//
// Each request is tagged with a ticket from a monotonically increasing generation
// counter. Issuing a new ticket supersedes every earlier one, so a response that
// arrives late can be recognised and dropped by comparing its ticket with the
// tracker at the moment it is applied. Cancellation is logical: the request's
// context is cancelled as a courtesy, but callers must still check Current.
package latest

import (
	"context"
	"fmt"
	"sync"
)

// Ticket identifies one issued request. The zero Ticket is never current.
type Ticket struct {
	seq uint64
}

// Seq returns the generation number of the ticket.
func (t Ticket) Seq() uint64 {
	return t.seq
}

// Tracker hands out tickets. It is safe for concurrent use and never calls out
// while holding its lock.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Issue supersedes the current request and returns a ticket and context for a new one.
func (t *Tracker) Issue(parent context.Context) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	t.cancel = cancel

	return Ticket{seq: t.seq}, ctx
}

// Invalidate supersedes the current request without starting a new one.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.seq++
}

// Current reports whether ticket is the most recently issued one and has not
// been invalidated.
func (t *Tracker) Current(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return ticket.seq != 0 && ticket.seq == t.seq
}

// Settle releases the context of a current ticket once its response has been
// applied. The ticket stays current until the next Issue or Invalidate.
func (t *Tracker) Settle(ticket Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ticket.seq == t.seq && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Result is the outcome of a request started with Go.
type Result[T any] struct {
	Ticket Ticket
	Value  T
	Err    error
}

// Go issues a ticket, runs fn on its own goroutine and hands the outcome to
// deliver. deliver runs on that goroutine; it usually forwards the result to the
// owner of the tracker, which checks Current before applying it. A panic in fn
// is reported as an error.
func Go[T any](t *Tracker, parent context.Context, fn func(context.Context) (T, error), deliver func(Result[T])) Ticket {
	ticket, ctx := t.Issue(parent)

	go func() {
		res := Result[T]{Ticket: ticket}
		func() {
			defer func() {
				if p := recover(); p != nil {
					res.Err = fmt.Errorf("request panicked: %v", p)
				}
			}()
			res.Value, res.Err = fn(ctx)
		}()
		deliver(res)
	}()

	return ticket
}
