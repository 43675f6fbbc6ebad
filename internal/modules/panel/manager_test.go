package panel

import (
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	testingpkg "github.com/aristath/cardrisk/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *recordingEmitter, *time.Time) {
	t.Helper()
	rec := &recordingEmitter{}
	m := NewManager(testingpkg.NewControlledFetcher(), Options{
		FetchTimeout: time.Second,
		Events:       rec,
		Log:          zerolog.Nop(),
	})
	now := testingpkg.FixtureEpoch
	m.now = func() time.Time { return now }
	t.Cleanup(m.CloseAll)
	return m, rec, &now
}

func TestManager_MountGetUnmount(t *testing.T) {
	m, rec, _ := newTestManager(t)

	s := m.Mount()
	require.NotEmpty(t, s.ID)
	assert.Equal(t, s.ID, s.Panel.ID())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1, rec.count(events.PanelMounted))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Unmount(s.ID))
	assert.Zero(t, m.Count())
	assert.Equal(t, 1, rec.count(events.PanelUnmounted))

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Unmount(s.ID), ErrSessionNotFound)

	_, err = s.Panel.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_EvictIdle(t *testing.T) {
	m, _, now := newTestManager(t)

	stale := m.Mount()
	*now = now.Add(20 * time.Minute)
	fresh := m.Mount()
	*now = now.Add(15 * time.Minute)

	evicted := m.EvictIdle(*now, 30*time.Minute)
	assert.Equal(t, 1, evicted)

	_, err := m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestManager_GetKeepsSessionAlive(t *testing.T) {
	m, _, now := newTestManager(t)

	s := m.Mount()
	*now = now.Add(25 * time.Minute)
	_, err := m.Get(s.ID)
	require.NoError(t, err)
	*now = now.Add(25 * time.Minute)

	assert.Zero(t, m.EvictIdle(*now, 30*time.Minute))
}

func TestEvictionJob(t *testing.T) {
	m, _, now := newTestManager(t)
	m.Mount()
	m.Mount()
	*now = now.Add(time.Hour)

	job := NewEvictionJob(m, 30*time.Minute, zerolog.Nop())
	assert.Equal(t, "panel_eviction", job.Name())
	require.NoError(t, job.Run())
	assert.Zero(t, m.Count())
}

func TestManager_CloseAll(t *testing.T) {
	m, _, _ := newTestManager(t)
	a := m.Mount()
	b := m.Mount()

	m.CloseAll()
	assert.Zero(t, m.Count())
	<-a.Panel.Done()
	<-b.Panel.Done()
}

func TestManager_SessionsShareFetcher(t *testing.T) {
	fetcher := &testingpkg.MockFetcher{}
	rows := testingpkg.NewSummaryFixtures("cash", 2)
	fetcher.On("FetchTop", mock.Anything, drilldown.KindCash).Return(rows, nil).Twice()

	m := NewManager(fetcher, Options{FetchTimeout: time.Second, Log: zerolog.Nop()})
	t.Cleanup(m.CloseAll)

	for _, s := range []*Session{m.Mount(), m.Mount()} {
		_, err := s.Panel.Toggle(KPIAvgCashUsage)
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			snap := mustSnapshot(t, s.Panel)
			return !snap.Loading && len(snap.Rows) == 2
		}, waitFor, 5*time.Millisecond)
	}

	fetcher.AssertExpectations(t)
}
