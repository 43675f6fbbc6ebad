package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/risk"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultHistoryLimit is the number of snapshots listed when no limit is given
	DefaultHistoryLimit = 24
	// MaxHistoryLimit caps a history request
	MaxHistoryLimit = 500
	// DefaultRetention is the number of snapshots kept after pruning (30 days hourly)
	DefaultRetention = 720
)

// OverviewProvider computes the current KPI set
type OverviewProvider interface {
	Overview(ctx context.Context) (risk.PortfolioKPIs, error)
}

// CollectionSource supplies the current customer collection
type CollectionSource interface {
	Collection(ctx context.Context) ([]domain.Customer, error)
}

// Service takes and lists KPI snapshots
type Service struct {
	overview  OverviewProvider
	customers CollectionSource
	repo      *Repository
	events    events.Emitter
	retention int
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a snapshot service. retention <= 0 uses DefaultRetention.
func NewService(overview OverviewProvider, customers CollectionSource, repo *Repository, emitter events.Emitter, retention int, log zerolog.Logger) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		overview:  overview,
		customers: customers,
		repo:      repo,
		events:    emitter,
		retention: retention,
		log:       log.With().Str("service", "snapshots").Logger(),
		now:       time.Now,
	}
}

// Take computes and stores a snapshot of the current portfolio, then prunes old ones
func (s *Service) Take(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: s.now().UTC().Truncate(time.Millisecond)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kpis, err := s.overview.Overview(gctx)
		if err != nil {
			return fmt.Errorf("failed to compute overview: %w", err)
		}
		snap.KPIs = kpis
		return nil
	})
	g.Go(func() error {
		all, err := s.customers.Collection(gctx)
		if err != nil {
			return fmt.Errorf("failed to load customers: %w", err)
		}
		utilisation := make([]float64, len(all))
		cash := make([]float64, len(all))
		for i, c := range all {
			utilisation[i] = c.UtilisationPct
			cash[i] = c.CashWithdrawalPct
		}
		snap.Utilisation = ComputePercentiles(utilisation)
		snap.Cash = ComputePercentiles(cash)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, snap); err != nil {
		return nil, err
	}
	if _, err := s.repo.Prune(ctx, s.retention); err != nil {
		s.log.Warn().Err(err).Msg("Failed to prune snapshots")
	}

	s.log.Info().
		Int64("snapshot_id", snap.ID).
		Int("total", snap.KPIs.TotalCustomers).
		Int("flagged", snap.KPIs.FlaggedCustomers).
		Msg("KPI snapshot taken")
	s.events.EmitTyped("snapshots", &events.SnapshotTakenData{
		SnapshotID:       snap.ID,
		TotalCustomers:   snap.KPIs.TotalCustomers,
		FlaggedCustomers: snap.KPIs.FlaggedCustomers,
	})
	return snap, nil
}

// History returns up to limit snapshots, newest first
func (s *Service) History(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, ClampLimit(limit))
}

// ClampLimit maps a requested history size into [1, MaxHistoryLimit]; 0 means the default
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
