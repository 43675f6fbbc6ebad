// Package risk computes portfolio-level risk KPIs from the customer collection.
package risk

import (
	"github.com/aristath/cardrisk/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Policy is the band configuration an aggregation runs under
type Policy struct {
	Scheme  domain.BandScheme
	Flagged domain.BandSet
}

// UtilisationProfile is the reading of the average utilisation
type UtilisationProfile string

const (
	ProfileAggressive UtilisationProfile = "aggressive" // above 70%
	ProfileBalanced   UtilisationProfile = "balanced"   // above 30%
	ProfileLow        UtilisationProfile = "low"
)

// BandCount is one entry of the band distribution
type BandCount struct {
	Band     domain.Band `json:"band"`
	Count    int         `json:"count"`
	SharePct float64     `json:"share_pct"`
}

// PortfolioKPIs is the KPI set of one aggregation
type PortfolioKPIs struct {
	TotalCustomers       int                `json:"total_customers"`
	FlaggedCustomers     int                `json:"flagged_customers"`
	AvgUtilisation       float64            `json:"avg_utilisation"`
	AvgCashUsage         float64            `json:"avg_cash_usage"`
	AvgMerchantMix       float64            `json:"avg_merchant_mix"`
	AvgRecentSpendChange float64            `json:"avg_recent_spend_change"`
	BandDistribution     []BandCount        `json:"band_distribution"`
	// Unbanded counts customers with no band or a band outside the scheme.
	// The distribution sums to TotalCustomers only when Unbanded is zero;
	// BandTotal()+Unbanded always equals TotalCustomers.
	Unbanded             int                `json:"unbanded"`
	UtilisationProfile   UtilisationProfile `json:"utilisation_profile"`
}

// Aggregate computes the KPI set. It never fails: non-finite field values count
// as 0, an empty collection yields zero averages, and customers whose band is
// missing or outside the scheme are counted in Unbanded.
func Aggregate(customers []domain.Customer, policy Policy) PortfolioKPIs {
	n := len(customers)
	bands := policy.Scheme.Bands()

	kpis := PortfolioKPIs{
		TotalCustomers:   n,
		BandDistribution: make([]BandCount, len(bands)),
	}
	for i, b := range bands {
		kpis.BandDistribution[i].Band = b
	}

	utilisation := make([]float64, n)
	cash := make([]float64, n)
	merchantMix := make([]float64, n)
	spendChange := make([]float64, n)

	for i, c := range customers {
		utilisation[i] = domain.Finite(c.UtilisationPct)
		cash[i] = domain.Finite(c.CashWithdrawalPct)
		merchantMix[i] = domain.Finite(c.MerchantMixIndex)
		spendChange[i] = domain.Finite(c.RecentSpendChangePct)

		band := domain.CanonicalBand(string(c.RiskBand))
		if policy.Flagged.Has(band) {
			kpis.FlaggedCustomers++
		}
		if idx, ok := policy.Scheme.Index(band); ok {
			kpis.BandDistribution[idx].Count++
		} else {
			kpis.Unbanded++
		}
	}

	kpis.AvgUtilisation = mean(utilisation)
	kpis.AvgCashUsage = mean(cash)
	kpis.AvgMerchantMix = mean(merchantMix)
	kpis.AvgRecentSpendChange = mean(spendChange)
	kpis.UtilisationProfile = ProfileFor(kpis.AvgUtilisation)

	if n > 0 {
		for i := range kpis.BandDistribution {
			kpis.BandDistribution[i].SharePct = float64(kpis.BandDistribution[i].Count) / float64(n) * 100
		}
	}

	return kpis
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	// Large finite inputs can still overflow the running sum
	return domain.Finite(stat.Mean(values, nil))
}

// ProfileFor classifies an average utilisation percentage
func ProfileFor(avgUtilisation float64) UtilisationProfile {
	switch {
	case avgUtilisation > 70:
		return ProfileAggressive
	case avgUtilisation > 30:
		return ProfileBalanced
	default:
		return ProfileLow
	}
}

// BandTotal returns the sum of the distribution counts
func (k PortfolioKPIs) BandTotal() int {
	counts := make([]float64, len(k.BandDistribution))
	for i, bc := range k.BandDistribution {
		counts[i] = float64(bc.Count)
	}
	return int(floats.Sum(counts))
}

// Count returns the distribution count for band, or 0 if it is not in the scheme
func (k PortfolioKPIs) Count(band domain.Band) int {
	for _, bc := range k.BandDistribution {
		if bc.Band == band {
			return bc.Count
		}
	}
	return 0
}
