package latest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_IssueSupersedes(t *testing.T) {
	var tr Tracker

	first, firstCtx := tr.Issue(context.Background())
	assert.True(t, tr.Current(first))

	second, secondCtx := tr.Issue(context.Background())
	assert.False(t, tr.Current(first))
	assert.True(t, tr.Current(second))
	assert.Greater(t, second.Seq(), first.Seq())

	assert.ErrorIs(t, firstCtx.Err(), context.Canceled, "superseded context is cancelled")
	assert.NoError(t, secondCtx.Err())
}

func TestTracker_Invalidate(t *testing.T) {
	var tr Tracker

	ticket, ctx := tr.Issue(context.Background())
	tr.Invalidate()

	assert.False(t, tr.Current(ticket))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// Invalidate with nothing in flight is harmless.
	tr.Invalidate()
}

func TestTracker_ZeroTicketNeverCurrent(t *testing.T) {
	var tr Tracker
	assert.False(t, tr.Current(Ticket{}))
}

func TestTracker_Settle(t *testing.T) {
	var tr Tracker

	old, _ := tr.Issue(context.Background())
	ticket, ctx := tr.Issue(context.Background())

	tr.Settle(old)
	assert.NoError(t, ctx.Err(), "settling a stale ticket must not touch the live request")

	tr.Settle(ticket)
	assert.True(t, tr.Current(ticket))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestGo_DeliversResult(t *testing.T) {
	var tr Tracker
	results := make(chan Result[int], 1)

	ticket := Go(&tr, context.Background(), func(ctx context.Context) (int, error) {
		return 7, nil
	}, func(r Result[int]) { results <- r })

	select {
	case r := <-results:
		assert.Equal(t, ticket, r.Ticket)
		assert.Equal(t, 7, r.Value)
		assert.NoError(t, r.Err)
		assert.True(t, tr.Current(r.Ticket))
	case <-time.After(time.Second):
		t.Fatal("result not delivered")
	}
}

func TestGo_LateResponseIsStale(t *testing.T) {
	var tr Tracker
	release := make(chan struct{})
	results := make(chan Result[string], 2)

	slow := Go(&tr, context.Background(), func(ctx context.Context) (string, error) {
		<-release
		return "A", nil
	}, func(r Result[string]) { results <- r })

	fast := Go(&tr, context.Background(), func(ctx context.Context) (string, error) {
		return "B", nil
	}, func(r Result[string]) { results <- r })

	first := <-results
	require.Equal(t, fast, first.Ticket)
	assert.True(t, tr.Current(first.Ticket))

	close(release)
	second := <-results
	require.Equal(t, slow, second.Ticket)
	assert.False(t, tr.Current(second.Ticket))
}

func TestGo_PanicBecomesError(t *testing.T) {
	var tr Tracker
	results := make(chan Result[int], 1)

	Go(&tr, context.Background(), func(ctx context.Context) (int, error) {
		panic("boom")
	}, func(r Result[int]) { results <- r })

	r := <-results
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "boom")
}

func TestGo_ContextCancelledOnSupersede(t *testing.T) {
	var tr Tracker
	results := make(chan Result[int], 1)

	Go(&tr, context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(r Result[int]) { results <- r })

	tr.Invalidate()

	r := <-results
	assert.True(t, errors.Is(r.Err, context.Canceled))
	assert.False(t, tr.Current(r.Ticket))
}
