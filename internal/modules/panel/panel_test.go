package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	testingpkg "github.com/aristath/cardrisk/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventData
}

func (r *recordingEmitter) Emit(events.EventType, string, map[string]interface{}) {}

func (r *recordingEmitter) EmitTyped(_ string, data events.EventData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
}

func (r *recordingEmitter) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func newTestPanel(t *testing.T, fetcher drilldown.Fetcher, timeout time.Duration) (*Panel, *recordingEmitter) {
	t.Helper()
	rec := &recordingEmitter{}
	p := New("test-panel", fetcher, Options{
		FetchTimeout: timeout,
		Events:       rec,
		Log:          zerolog.Nop(),
	})
	t.Cleanup(p.Close)
	return p, rec
}

func awaitRequest(t *testing.T, f *testingpkg.ControlledFetcher, want drilldown.Kind) {
	t.Helper()
	select {
	case got := <-f.Requests():
		require.Equal(t, want, got)
	case <-time.After(waitFor):
		t.Fatalf("no %s fetch started", want)
	}
}

func mustSnapshot(t *testing.T, p *Panel) Snapshot {
	t.Helper()
	snap, err := p.Snapshot()
	require.NoError(t, err)
	return snap
}

func TestPanel_StartsCollapsed(t *testing.T) {
	p, _ := newTestPanel(t, testingpkg.NewControlledFetcher(), time.Second)

	snap := mustSnapshot(t, p)
	assert.Equal(t, Collapsed(), snap.State)
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.Loading)
	assert.Equal(t, "test-panel", snap.PanelID)
}

func TestPanel_ToggleExpandsAndLoads(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	snap, err := p.Toggle(KPIAvgUtilisation)
	require.NoError(t, err)
	assert.Equal(t, Expanded(KPIAvgUtilisation), snap.State)
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Rows)

	awaitRequest(t, f, drilldown.KindUtilisation)
	rows := testingpkg.NewSummaryFixtures("util", 3)
	require.True(t, f.Resolve(drilldown.KindUtilisation, rows))

	require.Eventually(t, func() bool {
		return !mustSnapshot(t, p).Loading
	}, waitFor, 5*time.Millisecond)

	snap = mustSnapshot(t, p)
	assert.Equal(t, rows, snap.Rows)
	assert.False(t, snap.Unavailable)
	assert.Equal(t, 1, rec.count(events.PanelExpanded))
	assert.Equal(t, 1, rec.count(events.DrillDownLoaded))
}

func TestPanel_ToggleSameKeyCollapses(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	_, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindLatest)
	require.True(t, f.Resolve(drilldown.KindLatest, testingpkg.NewSummaryFixtures("latest", 2)))
	require.Eventually(t, func() bool {
		return len(mustSnapshot(t, p).Rows) == 2
	}, waitFor, 5*time.Millisecond)

	snap, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	assert.Equal(t, Collapsed(), snap.State)
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, rec.count(events.PanelCollapsed))
}

func TestPanel_LateResponseForSupersededKPIIsDiscarded(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	_, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindLatest)

	snap, err := p.Toggle(KPIAvgCashUsage)
	require.NoError(t, err)
	assert.Equal(t, Expanded(KPIAvgCashUsage), snap.State)
	assert.Empty(t, snap.Rows, "switching clears rows immediately")
	awaitRequest(t, f, drilldown.KindCash)

	cashRows := testingpkg.NewSummaryFixtures("cash", 2)
	require.True(t, f.Resolve(drilldown.KindCash, cashRows))
	require.Eventually(t, func() bool {
		return len(mustSnapshot(t, p).Rows) == 2
	}, waitFor, 5*time.Millisecond)

	// The first request answers last; its rows must never show.
	require.True(t, f.Resolve(drilldown.KindLatest, testingpkg.NewSummaryFixtures("latest", 5)))
	require.Eventually(t, func() bool {
		return rec.count(events.DrillDownDiscarded) == 1
	}, waitFor, 5*time.Millisecond)

	snap = mustSnapshot(t, p)
	assert.Equal(t, Expanded(KPIAvgCashUsage), snap.State)
	assert.Equal(t, cashRows, snap.Rows)
}

func TestPanel_ResponseAfterCollapseIsDiscarded(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	_, err := p.Toggle(KPIFlaggedCustomers)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindFlagged)

	changed, err := p.CollapseAll()
	require.NoError(t, err)
	assert.True(t, changed)

	require.True(t, f.Resolve(drilldown.KindFlagged, testingpkg.NewSummaryFixtures("flagged", 3)))
	require.Eventually(t, func() bool {
		return rec.count(events.DrillDownDiscarded) == 1
	}, waitFor, 5*time.Millisecond)

	snap := mustSnapshot(t, p)
	assert.Equal(t, Collapsed(), snap.State)
	assert.Empty(t, snap.Rows)
}

func TestPanel_FetchFailureShowsUnavailable(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	_, err := p.Toggle(KPIFlaggedCustomers)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindFlagged)
	require.True(t, f.Fail(drilldown.KindFlagged, errors.New("connection refused")))

	require.Eventually(t, func() bool {
		return mustSnapshot(t, p).Unavailable
	}, waitFor, 5*time.Millisecond)

	snap := mustSnapshot(t, p)
	assert.Equal(t, Expanded(KPIFlaggedCustomers), snap.State)
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, rec.count(events.DrillDownFailed))
}

func TestPanel_FetchTimeout(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, _ := newTestPanel(t, f, 20*time.Millisecond)

	_, err := p.Toggle(KPIAvgCashUsage)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindCash)

	require.Eventually(t, func() bool {
		return mustSnapshot(t, p).Unavailable
	}, waitFor, 5*time.Millisecond)
	assert.False(t, mustSnapshot(t, p).Loading)

	// Release the blocked fetcher goroutine.
	f.Resolve(drilldown.KindCash, nil)
}

func TestPanel_EmptySuccessIsNotUnavailable(t *testing.T) {
	fetcher := drilldown.FetcherFunc(func(context.Context, drilldown.Kind) ([]domain.CustomerSummary, error) {
		return []domain.CustomerSummary{}, nil
	})
	p, rec := newTestPanel(t, fetcher, time.Second)

	_, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return rec.count(events.DrillDownLoaded) == 1
	}, waitFor, 5*time.Millisecond)

	snap := mustSnapshot(t, p)
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.Unavailable)
	assert.False(t, snap.Loading)
}

func TestPanel_FetcherPanicIsUnavailable(t *testing.T) {
	fetcher := drilldown.FetcherFunc(func(context.Context, drilldown.Kind) ([]domain.CustomerSummary, error) {
		panic("boom")
	})
	p, rec := newTestPanel(t, fetcher, time.Second)

	_, err := p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return mustSnapshot(t, p).Unavailable
	}, waitFor, 5*time.Millisecond)

	snap := mustSnapshot(t, p)
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.Loading)
	assert.Equal(t, 1, rec.count(events.DrillDownFailed))

	// The panel keeps serving after a panicking fetch
	_, err = p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	assert.Equal(t, Collapsed(), mustSnapshot(t, p).State)
}

func TestPanel_CollapseAllWhenCollapsedIsNoop(t *testing.T) {
	p, rec := newTestPanel(t, testingpkg.NewControlledFetcher(), time.Second)

	before := mustSnapshot(t, p)
	changed, err := p.CollapseAll()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before.Version, mustSnapshot(t, p).Version)
	assert.Zero(t, rec.count(events.PanelCollapsed))
}

func TestPanel_UnknownKPI(t *testing.T) {
	p, _ := newTestPanel(t, testingpkg.NewControlledFetcher(), time.Second)

	_, err := p.Toggle(KPI("avg_balance"))
	assert.ErrorIs(t, err, ErrUnknownKPI)
	assert.Equal(t, Collapsed(), mustSnapshot(t, p).State)
}

func TestPanel_Subscribe(t *testing.T) {
	fetcher := drilldown.FetcherFunc(func(_ context.Context, kind drilldown.Kind) ([]domain.CustomerSummary, error) {
		return testingpkg.NewSummaryFixtures(string(kind), 1), nil
	})
	p, _ := newTestPanel(t, fetcher, time.Second)

	ch, cancel, err := p.Subscribe()
	require.NoError(t, err)
	defer cancel()

	first := <-ch
	assert.Equal(t, Collapsed(), first.State)

	_, err = p.Toggle(KPIAvgUtilisation)
	require.NoError(t, err)

	deadline := time.After(waitFor)
	for {
		select {
		case snap := <-ch:
			assert.Equal(t, Expanded(KPIAvgUtilisation), snap.State)
			if !snap.Loading {
				require.Len(t, snap.Rows, 1)
				return
			}
		case <-deadline:
			t.Fatal("no loaded snapshot published")
		}
	}
}

func TestPanel_CloseStopsEverything(t *testing.T) {
	f := testingpkg.NewControlledFetcher()
	p, rec := newTestPanel(t, f, time.Second)

	ch, _, err := p.Subscribe()
	require.NoError(t, err)
	<-ch

	_, err = p.Toggle(KPITotalCustomers)
	require.NoError(t, err)
	awaitRequest(t, f, drilldown.KindLatest)

	p.Close()
	p.Close()

	_, err = p.Toggle(KPIAvgUtilisation)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.CollapseAll()
	assert.ErrorIs(t, err, ErrClosed)

	// Drain until closed.
	for range ch {
	}

	// A response after unmount goes nowhere.
	require.True(t, f.Resolve(drilldown.KindLatest, testingpkg.NewSummaryFixtures("latest", 1)))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, rec.count(events.DrillDownLoaded))
}
