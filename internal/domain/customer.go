package domain

import "time"

// Customer sources. Drill-down lists only consider app users.
const (
	SourceAppUser = "app_user"
	SourceUpload  = "upload"
)

// Customer is a cardholder account as consumed by the portfolio aggregator.
// Numeric fields that were missing or malformed upstream are already zero here.
type Customer struct {
	ID                   string    `json:"id"`
	CustomerID           string    `json:"CustomerID"`
	Username             string    `json:"username,omitempty"`
	CreditLimit          float64   `json:"CreditLimit"`
	UtilisationPct       float64   `json:"UtilisationPct"`
	CashWithdrawalPct    float64   `json:"CashWithdrawalPct"`
	MerchantMixIndex     float64   `json:"MerchantMixIndex"`
	RecentSpendChangePct float64   `json:"RecentSpendChangePct"`
	AvgPaymentRatio      float64   `json:"AvgPaymentRatio"`
	MinDuePaidFrequency  float64   `json:"MinDuePaidFrequency"`
	RiskBand             Band      `json:"risk_band,omitempty"`
	LastScore            *float64  `json:"last_score,omitempty"`
	Source               string    `json:"source"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Summary projects the customer onto a drill-down row.
func (c Customer) Summary() CustomerSummary {
	return CustomerSummary{
		ID:                c.ID,
		Username:          c.Username,
		CustomerID:        c.CustomerID,
		UtilisationPct:    c.UtilisationPct,
		CashWithdrawalPct: c.CashWithdrawalPct,
		RiskBand:          c.RiskBand,
	}
}

// CustomerSummary is one row of a KPI drill-down list.
type CustomerSummary struct {
	ID                string  `json:"id"`
	Username          string  `json:"username,omitempty"`
	CustomerID        string  `json:"CustomerID"`
	UtilisationPct    float64 `json:"UtilisationPct"`
	CashWithdrawalPct float64 `json:"CashWithdrawalPct"`
	RiskBand          Band    `json:"risk_band,omitempty"`
}

// Transaction is a simulated card spend.
type Transaction struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Controls are the admin-managed card controls of a customer. They are stored
// alongside the account and do not feed the portfolio KPIs.
type Controls struct {
	SpendCap       *float64  `json:"spend_cap"`
	CategoryBlocks []string  `json:"category_blocks"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// DefaultControls are the controls of a customer nobody has configured yet.
func DefaultControls() Controls {
	return Controls{CategoryBlocks: []string{}, AlertsEnabled: true}
}
