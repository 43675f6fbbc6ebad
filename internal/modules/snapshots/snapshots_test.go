package snapshots

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/risk"
	testingpkg "github.com/aristath/cardrisk/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCollection struct {
	customers []domain.Customer
	err       error
}

func (s *staticCollection) Collection(context.Context) ([]domain.Customer, error) {
	return s.customers, s.err
}

type capturingEmitter struct {
	events.Nop
	taken []*events.SnapshotTakenData
}

func (c *capturingEmitter) EmitTyped(_ string, data events.EventData) {
	if d, ok := data.(*events.SnapshotTakenData); ok {
		c.taken = append(c.taken, d)
	}
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func newTestService(t *testing.T, src *staticCollection, retention int) (*Service, *capturingEmitter) {
	t.Helper()
	overview := risk.NewService(src, config.NewPolicyStore(config.DefaultRiskPolicy()), zerolog.Nop())
	emitter := &capturingEmitter{}
	svc := NewService(overview, src, newTestRepository(t), emitter, retention, zerolog.Nop())

	now := testingpkg.FixtureEpoch
	svc.now = func() time.Time {
		now = now.Add(time.Hour)
		return now
	}
	return svc, emitter
}

func TestComputePercentiles(t *testing.T) {
	assert.Equal(t, Percentiles{}, ComputePercentiles(nil))

	values := make([]float64, 100)
	for i := range values {
		values[99-i] = float64(i + 1)
	}
	p := ComputePercentiles(values)
	assert.Equal(t, 50.0, p.P50)
	assert.Equal(t, 90.0, p.P90)
	assert.Equal(t, 99.0, p.P99)
	assert.Equal(t, 100.0, p.Max)

	p = ComputePercentiles([]float64{math.NaN(), 10})
	assert.Equal(t, 10.0, p.Max)
	assert.Equal(t, 0.0, p.P50)
}

func TestRepository_InsertListLatest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	kpis := risk.Aggregate(testingpkg.NewCustomerFixtures(), risk.PolicyFrom(config.DefaultRiskPolicy()))
	for i := 0; i < 3; i++ {
		s := &Snapshot{
			TakenAt:     testingpkg.FixtureEpoch.Add(time.Duration(i) * time.Hour),
			KPIs:        kpis,
			Utilisation: Percentiles{P50: float64(i)},
		}
		require.NoError(t, repo.Insert(ctx, s))
		assert.NotZero(t, s.ID)
	}

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2.0, list[0].Utilisation.P50, "newest first")
	assert.Equal(t, 1.0, list[1].Utilisation.P50)
	assert.Equal(t, testingpkg.FixtureEpoch.Add(2*time.Hour), list[0].TakenAt)
	assert.Equal(t, kpis, list[0].KPIs)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, list[0].ID, latest.ID)

	deleted, err := repo.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err = repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, latest.ID, list[0].ID)
}

func TestService_Take(t *testing.T) {
	src := &staticCollection{customers: testingpkg.NewCustomerFixtures()}
	svc, emitter := newTestService(t, src, 2)
	ctx := context.Background()

	snap, err := svc.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, snap.KPIs.TotalCustomers)
	assert.Equal(t, 4, snap.KPIs.FlaggedCustomers)
	assert.Equal(t, 99.0, snap.Utilisation.Max)
	assert.Equal(t, 60.0, snap.Cash.Max)
	require.Len(t, emitter.taken, 1)
	assert.Equal(t, snap.ID, emitter.taken[0].SnapshotID)

	for i := 0; i < 3; i++ {
		_, err = svc.Take(ctx)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "pruned to retention")
	assert.True(t, history[0].TakenAt.After(history[1].TakenAt))
}

func TestService_TakeFailsWhenCollectionFails(t *testing.T) {
	src := &staticCollection{err: errors.New("database is locked")}
	svc, emitter := newTestService(t, src, 0)

	_, err := svc.Take(context.Background())
	assert.Error(t, err)
	assert.Empty(t, emitter.taken)

	history, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestJob(t *testing.T) {
	src := &staticCollection{customers: testingpkg.NewCustomerFixtures()}
	svc, _ := newTestService(t, src, 0)

	job := NewJob(svc, zerolog.Nop())
	assert.Equal(t, "kpi_snapshot", job.Name())
	require.NoError(t, job.Run())

	history, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxHistoryLimit, ClampLimit(10_000))
}
