package customers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/events"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a customer id does not exist
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidInput is returned for rejected request values
	ErrInvalidInput = errors.New("invalid input")
)

// ImportRecord is one customer in a bulk import. Every field decodes leniently.
type ImportRecord struct {
	ID                   domain.Text    `json:"id"`
	CustomerID           domain.Text    `json:"CustomerID"`
	Username             domain.Text    `json:"username"`
	CreditLimit          domain.Number  `json:"CreditLimit"`
	UtilisationPct       domain.Number  `json:"UtilisationPct"`
	CashWithdrawalPct    domain.Number  `json:"CashWithdrawalPct"`
	MerchantMixIndex     domain.Number  `json:"MerchantMixIndex"`
	RecentSpendChangePct domain.Number  `json:"RecentSpendChangePct"`
	AvgPaymentRatio      domain.Number  `json:"AvgPaymentRatio"`
	MinDuePaidFrequency  domain.Number  `json:"MinDuePaidFrequency"`
	RiskBand             domain.Text    `json:"risk_band"`
	LastScore            *domain.Number `json:"last_score"`
	Source               domain.Text    `json:"source"`
}

// SpendRequest is a simulated card transaction
type SpendRequest struct {
	Amount      domain.Number `json:"amount"`
	Category    domain.Text   `json:"category"`
	Description domain.Text   `json:"description"`
}

// Service owns the customer collection. It keeps the last loaded collection so
// repeated aggregation sees the same slice until something changes.
type Service struct {
	repo             *Repository
	events           events.Emitter
	drilldownFlagged func() domain.BandSet
	now              func() time.Time
	log              zerolog.Logger

	mu         sync.Mutex
	cached     []domain.Customer
	cacheValid bool
	generation uint64
}

// NewService creates the customer service. drilldownFlagged supplies the bands
// listed by the flagged drill-down.
func NewService(repo *Repository, emitter events.Emitter, drilldownFlagged func() domain.BandSet, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Service{
		repo:             repo,
		events:           emitter,
		drilldownFlagged: drilldownFlagged,
		now:              time.Now,
		log:              log.With().Str("service", "customers").Logger(),
	}
}

// Collection returns the current customer collection. Callers must not modify it.
func (s *Service) Collection(ctx context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	if s.cacheValid {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	gen := s.generation
	s.mu.Unlock()

	loaded, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheValid {
		return s.cached, nil
	}
	if s.generation == gen {
		s.cached = loaded
		s.cacheValid = true
	}
	return loaded, nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.generation++
	s.cached = nil
	s.cacheValid = false
	s.mu.Unlock()
}

// Get returns a single customer
func (s *Service) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Import upserts records and returns how many were stored
func (s *Service) Import(ctx context.Context, records []ImportRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	customers := make([]domain.Customer, 0, len(records))
	for _, rec := range records {
		customers = append(customers, recordToCustomer(rec, now))
	}

	if err := s.repo.Upsert(ctx, customers); err != nil {
		return 0, err
	}
	s.invalidate()

	s.log.Info().Int("count", len(customers)).Msg("Imported customers")
	s.events.EmitTyped("customers", &events.CustomersChangedData{Reason: "import", Count: len(customers)})
	return len(customers), nil
}

func recordToCustomer(rec ImportRecord, now time.Time) domain.Customer {
	id := rec.ID.String()
	if id == "" {
		id = uuid.New().String()
	}

	customerID := rec.CustomerID.String()
	if customerID == "" {
		customerID = defaultCustomerID(id)
	}

	source := strings.ToLower(rec.Source.String())
	if source != domain.SourceAppUser {
		source = domain.SourceUpload
	}

	c := domain.Customer{
		ID:                   id,
		CustomerID:           customerID,
		Username:             rec.Username.String(),
		CreditLimit:          rec.CreditLimit.Float(),
		UtilisationPct:       rec.UtilisationPct.Float(),
		CashWithdrawalPct:    rec.CashWithdrawalPct.Float(),
		MerchantMixIndex:     rec.MerchantMixIndex.Float(),
		RecentSpendChangePct: rec.RecentSpendChangePct.Float(),
		AvgPaymentRatio:      rec.AvgPaymentRatio.Float(),
		MinDuePaidFrequency:  rec.MinDuePaidFrequency.Float(),
		RiskBand:             domain.CanonicalBand(rec.RiskBand.String()),
		Source:               source,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if rec.LastScore != nil {
		v := rec.LastScore.Float()
		c.LastScore = &v
	}
	return c
}

// defaultCustomerID derives a display id from the last six characters of id
func defaultCustomerID(id string) string {
	compact := strings.ReplaceAll(id, "-", "")
	if len(compact) > 6 {
		compact = compact[len(compact)-6:]
	}
	return "C" + strings.ToUpper(compact)
}

// UpdateCreditLimit changes a customer's credit limit
func (s *Service) UpdateCreditLimit(ctx context.Context, id string, limit float64) (*domain.Customer, error) {
	if math.IsNaN(limit) || math.IsInf(limit, 0) || limit < 0 {
		return nil, fmt.Errorf("%w: credit limit must be a non-negative number", ErrInvalidInput)
	}

	found, err := s.repo.UpdateCreditLimit(ctx, id, limit, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.invalidate()

	s.events.EmitTyped("customers", &events.CustomersChangedData{Reason: "credit_limit", CustomerID: id})
	return s.Get(ctx, id)
}

// ControlsUpdate is a partial change to a customer's controls. Nil fields are
// left as they are.
type ControlsUpdate struct {
	SpendCap       *float64
	ClearSpendCap  bool
	CategoryBlocks []string
	AlertsEnabled  *bool
}

// Controls returns a customer's card controls
func (s *Service) Controls(ctx context.Context, id string) (*domain.Controls, error) {
	c, err := s.repo.GetControls(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// UpdateControls applies a partial controls change
func (s *Service) UpdateControls(ctx context.Context, id string, upd ControlsUpdate) (*domain.Controls, error) {
	if upd.SpendCap != nil {
		if v := *upd.SpendCap; math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: spend cap must be a non-negative number", ErrInvalidInput)
		}
	}
	blocks := normalizeCategories(upd.CategoryBlocks)

	c, err := s.repo.UpdateControls(ctx, id, func(c *domain.Controls) {
		switch {
		case upd.ClearSpendCap:
			c.SpendCap = nil
		case upd.SpendCap != nil:
			v := *upd.SpendCap
			c.SpendCap = &v
		}
		if upd.CategoryBlocks != nil {
			c.CategoryBlocks = blocks
		}
		if upd.AlertsEnabled != nil {
			c.AlertsEnabled = *upd.AlertsEnabled
		}
	}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.log.Info().Str("customer_id", id).Msg("Updated customer controls")
	s.events.EmitTyped("customers", &events.CustomersChangedData{Reason: "controls", CustomerID: id})
	return c, nil
}

// normalizeCategories lowercases, trims and dedupes category names, keeping order
func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SimulateSpend records a transaction and recomputes utilisation
func (s *Service) SimulateSpend(ctx context.Context, id string, req SpendRequest) (*domain.Transaction, *domain.Customer, error) {
	amount := req.Amount.Float()
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	category := req.Category.String()
	if category == "" {
		category = "general"
	}

	txn := domain.Transaction{
		ID:          uuid.New().String(),
		CustomerID:  id,
		Amount:      amount,
		Category:    category,
		Description: req.Description.String(),
		CreatedAt:   s.now().UTC(),
	}

	found, err := s.repo.AddTransaction(ctx, txn)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.invalidate()

	s.events.EmitTyped("customers", &events.CustomersChangedData{Reason: "transaction", CustomerID: id})

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &txn, c, nil
}

// Transactions lists a customer's transactions, newest first
func (s *Service) Transactions(ctx context.Context, id string, limit int) ([]domain.Transaction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.Transactions(ctx, id, limit)
}

// Top answers the drill-down backend endpoint
func (s *Service) Top(ctx context.Context, kind drilldown.Kind, limit int) ([]domain.CustomerSummary, error) {
	var flagged domain.BandSet
	if s.drilldownFlagged != nil {
		flagged = s.drilldownFlagged()
	}
	return s.repo.TopCustomers(ctx, kind, flagged, limit)
}
