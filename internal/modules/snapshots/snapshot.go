// Package snapshots records the KPI set over time so trends can be charted.
package snapshots

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/risk"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"
)

// Percentiles summarises the spread of one customer metric
type Percentiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Snapshot is the KPI set at one point in time
type Snapshot struct {
	ID          int64              `json:"id"`
	TakenAt     time.Time          `json:"taken_at"`
	KPIs        risk.PortfolioKPIs `json:"kpis"`
	Utilisation Percentiles        `json:"utilisation"`
	Cash        Percentiles        `json:"cash"`
}

// payload is the stored blob; the columns duplicate the headline counts for filtering
type payload struct {
	KPIs        risk.PortfolioKPIs `json:"kpis"`
	Utilisation Percentiles        `json:"utilisation"`
	Cash        Percentiles        `json:"cash"`
}

// ComputePercentiles returns empirical percentiles of values. Non-finite values count as 0.
func ComputePercentiles(values []float64) Percentiles {
	if len(values) == 0 {
		return Percentiles{}
	}

	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = domain.Finite(v)
	}
	sort.Float64s(sorted)

	return Percentiles{
		P50: stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90: stat.Quantile(0.90, stat.Empirical, sorted, nil),
		P99: stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max: sorted[len(sorted)-1],
	}
}

func encodePayload(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(payload{KPIs: s.KPIs, Utilisation: s.Utilisation, Cash: s.Cash}); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(data []byte, s *Snapshot) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	var p payload
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	s.KPIs = p.KPIs
	s.Utilisation = p.Utilisation
	s.Cash = p.Cash
	return nil
}
