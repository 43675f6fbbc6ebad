package drilldown

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a drill-down response is read
const maxResponseBytes = 4 << 20

// HTTPClient fetches drill-down lists from the admin backend
type HTTPClient struct {
	baseURL string
	limit   int
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPClient creates a client for the backend at baseURL.
// Per-request deadlines come from the caller's context.
func NewHTTPClient(baseURL string, limit int, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		limit:   ClampLimit(limit),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "drilldown").Logger(),
	}
}

// wireSummary is a drill-down row as the backend sends it
type wireSummary struct {
	ID                domain.Text   `json:"id"`
	Username          domain.Text   `json:"username"`
	CustomerID        domain.Text   `json:"CustomerID"`
	UtilisationPct    domain.Number `json:"UtilisationPct"`
	CashWithdrawalPct domain.Number `json:"CashWithdrawalPct"`
	RiskBand          domain.Text   `json:"risk_band"`
}

// FetchTop implements Fetcher
func (c *HTTPClient) FetchTop(ctx context.Context, kind Kind) ([]domain.CustomerSummary, error) {
	q := url.Values{}
	q.Set("kind", string(kind))
	q.Set("limit", strconv.Itoa(c.limit))
	endpoint := fmt.Sprintf("%s/api/admin/top/customers?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, networkError(kind, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", endpoint).Msg("Fetching drill-down")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, networkError(kind, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, networkError(kind, fmt.Errorf("backend returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(kind, fmt.Errorf("failed to read response: %w", err))
	}

	wire, err := decodeRows(body)
	if err != nil {
		return nil, networkError(kind, fmt.Errorf("failed to parse response: %w", err))
	}

	rows := make([]domain.CustomerSummary, len(wire))
	for i, w := range wire {
		rows[i] = domain.CustomerSummary{
			ID:                w.ID.String(),
			Username:          w.Username.String(),
			CustomerID:        w.CustomerID.String(),
			UtilisationPct:    w.UtilisationPct.Float(),
			CashWithdrawalPct: w.CashWithdrawalPct.Float(),
			RiskBand:          domain.CanonicalBand(w.RiskBand.String()),
		}
	}

	c.log.Debug().Str("kind", string(kind)).Int("rows", len(rows)).Msg("Fetched drill-down")
	return rows, nil
}

// decodeRows accepts either {"customers": [...]} or a bare array
func decodeRows(body []byte) ([]wireSummary, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []wireSummary
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var envelope struct {
		Customers []wireSummary `json:"customers"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Customers, nil
}
