// Package panel implements the expandable KPI drill-down panel: a state machine
// with at most one expanded tile, stale-response protection for drill-down
// fetches, and outside-interaction dismissal.
package panel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/cardrisk/internal/modules/drilldown"
)

// KPI identifies an expandable KPI tile
type KPI string

const (
	KPITotalCustomers   KPI = "total_customers"
	KPIFlaggedCustomers KPI = "flagged_customers"
	KPIAvgUtilisation   KPI = "avg_utilisation"
	KPIAvgCashUsage     KPI = "avg_cash_usage"
)

// ErrUnknownKPI is returned for KPI identifiers that have no tile
var ErrUnknownKPI = errors.New("unknown KPI")

var kindOf = map[KPI]drilldown.Kind{
	KPITotalCustomers:   drilldown.KindLatest,
	KPIFlaggedCustomers: drilldown.KindFlagged,
	KPIAvgUtilisation:   drilldown.KindUtilisation,
	KPIAvgCashUsage:     drilldown.KindCash,
}

// KPIs lists the expandable tiles in display order
func KPIs() []KPI {
	return []KPI{KPITotalCustomers, KPIFlaggedCustomers, KPIAvgUtilisation, KPIAvgCashUsage}
}

// KindOf returns the drill-down kind listed under a KPI tile
func KindOf(k KPI) (drilldown.Kind, bool) {
	kind, ok := kindOf[k]
	return kind, ok
}

// ParseKPI validates a KPI identifier
func ParseKPI(s string) (KPI, error) {
	k := KPI(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindOf[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKPI, s)
	}
	return k, nil
}
