package risk

import (
	"sync"

	"github.com/aristath/cardrisk/internal/domain"
)

// Memo caches the last aggregation. It recomputes only when the customer slice
// (backing array and length) or the policy version changes.
type Memo struct {
	mu      sync.Mutex
	valid   bool
	first   *domain.Customer
	length  int
	version uint64
	result  PortfolioKPIs
}

// NewMemo creates an empty memo
func NewMemo() *Memo {
	return &Memo{}
}

// Aggregate returns the cached KPIs when inputs are unchanged, otherwise computes
// and caches them. Callers must not mutate a slice after passing it in.
func (m *Memo) Aggregate(customers []domain.Customer, policy Policy, policyVersion uint64) PortfolioKPIs {
	var first *domain.Customer
	if len(customers) > 0 {
		first = &customers[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.first == first && m.length == len(customers) && m.version == policyVersion {
		return m.result.clone()
	}

	m.result = Aggregate(customers, policy)
	m.first = first
	m.length = len(customers)
	m.version = policyVersion
	m.valid = true
	return m.result.clone()
}

// Reset drops the cached result
func (m *Memo) Reset() {
	m.mu.Lock()
	m.valid = false
	m.first = nil
	m.mu.Unlock()
}

func (k PortfolioKPIs) clone() PortfolioKPIs {
	out := k
	out.BandDistribution = append([]BandCount(nil), k.BandDistribution...)
	return out
}
