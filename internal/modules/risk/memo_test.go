package risk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_ReusesResultForSameSlice(t *testing.T) {
	m := NewMemo()
	customers := []domain.Customer{customer(40, domain.BandLow), customer(60, domain.BandHigh)}
	policy := Policy{Scheme: domain.ThreeBand, Flagged: domain.NewBandSet(domain.BandHigh)}

	first := m.Aggregate(customers, policy, 1)
	// Same slice identity: the cached result is returned even though the element changed
	customers[0].UtilisationPct = 100
	second := m.Aggregate(customers, policy, 1)
	assert.Equal(t, first, second)

	// Returned distributions are copies
	second.BandDistribution[0].Count = 99
	third := m.Aggregate(customers, policy, 1)
	assert.Equal(t, 1, third.BandDistribution[0].Count)
}

func TestMemo_RecomputesOnNewSliceOrPolicy(t *testing.T) {
	m := NewMemo()
	policy := Policy{Scheme: domain.ThreeBand, Flagged: domain.NewBandSet(domain.BandHigh)}

	a := []domain.Customer{customer(40, domain.BandHigh)}
	assert.Equal(t, 1, m.Aggregate(a, policy, 1).FlaggedCustomers)

	b := []domain.Customer{customer(40, domain.BandLow)}
	assert.Equal(t, 0, m.Aggregate(b, policy, 1).FlaggedCustomers)

	// Shorter view of the same backing array is a different input
	c := append(b, customer(10, domain.BandHigh))
	assert.Equal(t, 2, m.Aggregate(c, policy, 1).TotalCustomers)
	assert.Equal(t, 1, m.Aggregate(c[:1], policy, 1).TotalCustomers)

	policy.Flagged = domain.NewBandSet(domain.BandLow)
	assert.Equal(t, 1, m.Aggregate(c[:1], policy, 2).FlaggedCustomers)

	m.Reset()
	assert.Equal(t, 1, m.Aggregate(c[:1], policy, 2).TotalCustomers)
}

func TestMemo_ConcurrentUse(t *testing.T) {
	m := NewMemo()
	customers := []domain.Customer{customer(40, domain.BandLow)}
	policy := Policy{Scheme: domain.ThreeBand}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 1, m.Aggregate(customers, policy, 1).TotalCustomers)
		}()
	}
	wg.Wait()
}

type fakeCollection struct {
	customers []domain.Customer
	err       error
}

func (f *fakeCollection) Collection(context.Context) ([]domain.Customer, error) {
	return f.customers, f.err
}

func TestService_OverviewFollowsPolicy(t *testing.T) {
	src := &fakeCollection{customers: []domain.Customer{
		customer(80, domain.BandHigh),
		customer(20, domain.BandLow),
		customer(50, domain.BandMedium),
	}}
	store := config.NewPolicyStore(config.DefaultRiskPolicy())
	svc := NewService(src, store, zerolog.Nop())

	kpis, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, kpis.FlaggedCustomers)
	assert.Len(t, kpis.BandDistribution, 5)

	three := config.DefaultRiskPolicy()
	three.Scheme = domain.ThreeBand
	three.Flagged = domain.NewBandSet(domain.BandHigh)
	store.Set(three)

	kpis, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, kpis.FlaggedCustomers)
	assert.Len(t, kpis.BandDistribution, 3)

	src.err = errors.New("boom")
	_, err = svc.Overview(context.Background())
	assert.Error(t, err)
}
