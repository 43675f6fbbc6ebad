package drilldown

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/cardrisk/internal/domain"
)

// Fetcher retrieves a drill-down list. Rows come back in the backend's order.
// Every error a Fetcher returns is, or wraps, a *NetworkError.
type Fetcher interface {
	FetchTop(ctx context.Context, kind Kind) ([]domain.CustomerSummary, error)
}

// NetworkError reports a failed drill-down fetch
type NetworkError struct {
	Kind Kind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("drill-down %s fetch failed: %v", e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is or wraps a *NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func networkError(kind Kind, err error) error {
	if err == nil || IsNetworkError(err) {
		return err
	}
	return &NetworkError{Kind: kind, Err: err}
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, kind Kind) ([]domain.CustomerSummary, error)

// FetchTop calls f and wraps any error in a *NetworkError
func (f FetcherFunc) FetchTop(ctx context.Context, kind Kind) ([]domain.CustomerSummary, error) {
	rows, err := f(ctx, kind)
	if err != nil {
		return nil, networkError(kind, err)
	}
	return rows, nil
}
