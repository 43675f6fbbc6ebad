package drilldown

import (
	"context"

	"github.com/aristath/cardrisk/internal/domain"
)

// TopSource answers drill-down queries in-process
type TopSource interface {
	TopCustomers(ctx context.Context, kind Kind, flagged domain.BandSet, limit int) ([]domain.CustomerSummary, error)
}

// LocalFetcher serves drill-downs from the local customer store.
// flagged is consulted on every fetch so policy reloads apply immediately.
type LocalFetcher struct {
	source  TopSource
	flagged func() domain.BandSet
	limit   int
}

// NewLocalFetcher creates a fetcher over source
func NewLocalFetcher(source TopSource, flagged func() domain.BandSet, limit int) *LocalFetcher {
	return &LocalFetcher{
		source:  source,
		flagged: flagged,
		limit:   ClampLimit(limit),
	}
}

// FetchTop implements Fetcher
func (f *LocalFetcher) FetchTop(ctx context.Context, kind Kind) ([]domain.CustomerSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, networkError(kind, err)
	}

	var flagged domain.BandSet
	if f.flagged != nil {
		flagged = f.flagged()
	}

	rows, err := f.source.TopCustomers(ctx, kind, flagged, f.limit)
	if err != nil {
		return nil, networkError(kind, err)
	}
	return rows, nil
}
