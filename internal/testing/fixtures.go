package testing

import (
	"fmt"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
)

// FixtureEpoch is the creation time of the first fixture customer
var FixtureEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// NewCustomerFixtures returns a small mixed portfolio. Customers are created
// one hour apart in slice order; c6 is an upload, the rest are app users.
func NewCustomerFixtures() []domain.Customer {
	type row struct {
		band        domain.Band
		utilisation float64
		cash        float64
		source      string
	}
	rows := []row{
		{domain.BandLow, 12, 1, domain.SourceAppUser},
		{domain.BandMedium, 45, 8, domain.SourceAppUser},
		{domain.BandHigh, 88, 22, domain.SourceAppUser},
		{domain.BandCritical, 97, 41, domain.SourceAppUser},
		{domain.BandVeryLow, 5, 0, domain.SourceAppUser},
		{domain.BandCritical, 99, 60, domain.SourceUpload},
	}

	out := make([]domain.Customer, len(rows))
	for i, s := range rows {
		created := FixtureEpoch.Add(time.Duration(i) * time.Hour)
		out[i] = domain.Customer{
			ID:                   fmt.Sprintf("c%d", i+1),
			CustomerID:           fmt.Sprintf("C%05d", i+1),
			Username:             fmt.Sprintf("user%d", i+1),
			CreditLimit:          5000,
			UtilisationPct:       s.utilisation,
			CashWithdrawalPct:    s.cash,
			MerchantMixIndex:     0.5,
			RecentSpendChangePct: 10,
			AvgPaymentRatio:      0.8,
			MinDuePaidFrequency:  0.2,
			RiskBand:             s.band,
			Source:               s.source,
			CreatedAt:            created,
			UpdatedAt:            created,
		}
	}
	return out
}

// NewSummaryFixtures returns n drill-down rows labelled with prefix
func NewSummaryFixtures(prefix string, n int) []domain.CustomerSummary {
	out := make([]domain.CustomerSummary, n)
	for i := range out {
		out[i] = domain.CustomerSummary{
			ID:                fmt.Sprintf("%s-%d", prefix, i+1),
			CustomerID:        fmt.Sprintf("C%s%d", prefix, i+1),
			UtilisationPct:    float64(90 - i),
			CashWithdrawalPct: float64(10 + i),
			RiskBand:          domain.BandHigh,
		}
	}
	return out
}
