package testing

import (
	"context"
	"sync"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a testify mock of drilldown.Fetcher
type MockFetcher struct {
	mock.Mock
}

// FetchTop implements drilldown.Fetcher
func (m *MockFetcher) FetchTop(ctx context.Context, kind drilldown.Kind) ([]domain.CustomerSummary, error) {
	args := m.Called(ctx, kind)
	var rows []domain.CustomerSummary
	if v := args.Get(0); v != nil {
		rows = v.([]domain.CustomerSummary)
	}
	return rows, args.Error(1)
}

type fetchResponse struct {
	rows []domain.CustomerSummary
	err  error
}

// ControlledFetcher is a drilldown.Fetcher whose responses are released by the
// test, so the order in which fetches resolve can be chosen freely.
type ControlledFetcher struct {
	mu       sync.Mutex
	pending  map[drilldown.Kind][]chan fetchResponse
	requests chan drilldown.Kind
}

// NewControlledFetcher creates a fetcher with no pending requests
func NewControlledFetcher() *ControlledFetcher {
	return &ControlledFetcher{
		pending:  make(map[drilldown.Kind][]chan fetchResponse),
		requests: make(chan drilldown.Kind, 64),
	}
}

// FetchTop blocks until the test resolves the request or ctx ends.
// Cancellation is ignored unless the test never resolves, mirroring a slow
// network that still answers.
func (f *ControlledFetcher) FetchTop(ctx context.Context, kind drilldown.Kind) ([]domain.CustomerSummary, error) {
	ch := make(chan fetchResponse, 1)
	f.mu.Lock()
	f.pending[kind] = append(f.pending[kind], ch)
	f.mu.Unlock()

	f.requests <- kind

	resp := <-ch
	if resp.err != nil {
		return nil, &drilldown.NetworkError{Kind: kind, Err: resp.err}
	}
	return resp.rows, nil
}

// Requests receives the kind of every fetch as it starts
func (f *ControlledFetcher) Requests() <-chan drilldown.Kind {
	return f.requests
}

// Resolve answers the oldest pending fetch for kind. It reports false if none is pending.
func (f *ControlledFetcher) Resolve(kind drilldown.Kind, rows []domain.CustomerSummary) bool {
	return f.respond(kind, fetchResponse{rows: rows})
}

// Fail fails the oldest pending fetch for kind
func (f *ControlledFetcher) Fail(kind drilldown.Kind, err error) bool {
	return f.respond(kind, fetchResponse{err: err})
}

func (f *ControlledFetcher) respond(kind drilldown.Kind, resp fetchResponse) bool {
	f.mu.Lock()
	queue := f.pending[kind]
	if len(queue) == 0 {
		f.mu.Unlock()
		return false
	}
	ch := queue[0]
	f.pending[kind] = queue[1:]
	f.mu.Unlock()

	ch <- resp
	return true
}
