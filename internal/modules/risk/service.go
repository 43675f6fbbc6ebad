package risk

import (
	"context"
	"fmt"

	"github.com/aristath/cardrisk/internal/config"
	"github.com/aristath/cardrisk/internal/domain"
	"github.com/rs/zerolog"
)

// CollectionSource supplies the current customer collection
type CollectionSource interface {
	Collection(ctx context.Context) ([]domain.Customer, error)
}

// PolicySource supplies the live risk policy and its version
type PolicySource interface {
	Snapshot() (config.RiskPolicy, uint64)
}

// Service computes the KPI set over the live collection and policy
type Service struct {
	customers CollectionSource
	policies  PolicySource
	memo      *Memo
	log       zerolog.Logger
}

// NewService creates a risk service
func NewService(customers CollectionSource, policies PolicySource, log zerolog.Logger) *Service {
	return &Service{
		customers: customers,
		policies:  policies,
		memo:      NewMemo(),
		log:       log.With().Str("service", "risk").Logger(),
	}
}

// Overview returns the KPI set for the current collection
func (s *Service) Overview(ctx context.Context) (PortfolioKPIs, error) {
	all, err := s.customers.Collection(ctx)
	if err != nil {
		return PortfolioKPIs{}, fmt.Errorf("failed to load customers: %w", err)
	}

	policy, version := s.policies.Snapshot()
	kpis := s.memo.Aggregate(all, PolicyFrom(policy), version)
	s.log.Debug().
		Int("total", kpis.TotalCustomers).
		Int("flagged", kpis.FlaggedCustomers).
		Msg("Computed portfolio overview")
	return kpis, nil
}

// PolicyFrom extracts the aggregation policy from the configured risk policy
func PolicyFrom(p config.RiskPolicy) Policy {
	return Policy{Scheme: p.Scheme, Flagged: p.Flagged}
}
