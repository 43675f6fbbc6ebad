// Package customers stores the card portfolio and answers drill-down queries over it.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/cardrisk/internal/database"
	"github.com/aristath/cardrisk/internal/domain"
	"github.com/aristath/cardrisk/internal/modules/drilldown"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Repository handles customer persistence in customers.db.
// Timestamps are stored as Unix milliseconds.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new customer repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "customers").Logger(),
	}
}

const customerColumns = `id, customer_id, username, credit_limit, utilisation_pct, cash_withdrawal_pct,
	merchant_mix_index, recent_spend_change_pct, avg_payment_ratio, min_due_paid_frequency,
	risk_band, last_score, source, created_at, updated_at`

const summaryColumns = `id, username, customer_id, utilisation_pct, cash_withdrawal_pct, risk_band`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var (
		c                    domain.Customer
		band                 string
		lastScore            sql.NullFloat64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Username, &c.CreditLimit, &c.UtilisationPct, &c.CashWithdrawalPct,
		&c.MerchantMixIndex, &c.RecentSpendChangePct, &c.AvgPaymentRatio, &c.MinDuePaidFrequency,
		&band, &lastScore, &c.Source, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Customer{}, err
	}

	c.RiskBand = domain.Band(band)
	if lastScore.Valid {
		v := lastScore.Float64
		c.LastScore = &v
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return c, nil
}

// GetAll returns every customer, oldest first
func (r *Repository) GetAll(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}

	return customers, nil
}

// GetByID returns a customer, or nil if none exists
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}
	return &c, nil
}

// Count returns the number of stored customers
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

// Upsert inserts or replaces customers in a single transaction. created_at is
// preserved for existing rows.
func (r *Repository) Upsert(ctx context.Context, customers []domain.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO customers (`+customerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				customer_id = excluded.customer_id,
				username = excluded.username,
				credit_limit = excluded.credit_limit,
				utilisation_pct = excluded.utilisation_pct,
				cash_withdrawal_pct = excluded.cash_withdrawal_pct,
				merchant_mix_index = excluded.merchant_mix_index,
				recent_spend_change_pct = excluded.recent_spend_change_pct,
				avg_payment_ratio = excluded.avg_payment_ratio,
				min_due_paid_frequency = excluded.min_due_paid_frequency,
				risk_band = excluded.risk_band,
				last_score = excluded.last_score,
				source = excluded.source,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range customers {
			var lastScore interface{}
			if c.LastScore != nil {
				lastScore = *c.LastScore
			}
			_, err := stmt.ExecContext(ctx,
				c.ID, c.CustomerID, c.Username, c.CreditLimit, c.UtilisationPct, c.CashWithdrawalPct,
				c.MerchantMixIndex, c.RecentSpendChangePct, c.AvgPaymentRatio, c.MinDuePaidFrequency,
				string(c.RiskBand), lastScore, c.Source, c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert customer %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// UpdateCreditLimit sets a new limit and recomputes utilisation from recorded spend.
// Returns false if the customer does not exist.
func (r *Repository) UpdateCreditLimit(ctx context.Context, id string, limit float64, now time.Time) (bool, error) {
	found := false
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE customers SET credit_limit = ?, updated_at = ? WHERE id = ?`,
			limit, now.UnixMilli(), id)
		if err != nil {
			return fmt.Errorf("failed to update credit limit: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}
		found = true
		return recomputeUtilisation(ctx, tx, id, now)
	})
	return found, err
}

// AddTransaction records a simulated spend and recomputes the customer's utilisation.
// Returns false if the customer does not exist.
func (r *Repository) AddTransaction(ctx context.Context, t domain.Transaction) (bool, error) {
	found := false
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, t.CustomerID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up customer: %w", err)
		}
		if exists == 0 {
			return nil
		}
		found = true

		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (id, customer_id, amount, category, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.CustomerID, t.Amount, t.Category, t.Description, t.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		return recomputeUtilisation(ctx, tx, t.CustomerID, t.CreatedAt)
	})
	return found, err
}

// recomputeUtilisation sets utilisation to total spend over credit limit, as a
// percentage. A zero limit is treated as 1.
func recomputeUtilisation(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	var total, limit float64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT SUM(amount) FROM transactions WHERE customer_id = ?), 0), credit_limit
		FROM customers WHERE id = ?`, id, id).Scan(&total, &limit)
	if err != nil {
		return fmt.Errorf("failed to total spend: %w", err)
	}
	if total == 0 {
		// No simulated spend yet; keep the imported utilisation
		return nil
	}
	if limit == 0 {
		limit = 1
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE customers SET utilisation_pct = ?, updated_at = ? WHERE id = ?`,
		total/limit*100, now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update utilisation: %w", err)
	}
	return nil
}

// Transactions returns a customer's transactions, newest first
func (r *Repository) Transactions(ctx context.Context, customerID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, category, description, created_at
		FROM transactions WHERE customer_id = ?
		ORDER BY created_at DESC, id LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			t         domain.Transaction
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Amount, &t.Category, &t.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAt).UTC()
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// loadControls reads a customer's controls. Customers without a row get the defaults.
func loadControls(ctx context.Context, q queryRower, id string) (domain.Controls, error) {
	var (
		spendCap  sql.NullFloat64
		blocks    string
		alerts    int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT spend_cap, category_blocks, alerts_enabled, updated_at FROM customer_controls WHERE customer_id = ?`,
		id).Scan(&spendCap, &blocks, &alerts, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultControls(), nil
	}
	if err != nil {
		return domain.Controls{}, fmt.Errorf("failed to get controls for %s: %w", id, err)
	}

	c := domain.Controls{
		AlertsEnabled: alerts != 0,
		UpdatedAt:     time.UnixMilli(updatedAt).UTC(),
	}
	if spendCap.Valid {
		v := spendCap.Float64
		c.SpendCap = &v
	}
	if err := json.Unmarshal([]byte(blocks), &c.CategoryBlocks); err != nil {
		return domain.Controls{}, fmt.Errorf("failed to decode category blocks for %s: %w", id, err)
	}
	if c.CategoryBlocks == nil {
		c.CategoryBlocks = []string{}
	}
	return c, nil
}

// GetControls returns a customer's controls, or nil if the customer does not exist
func (r *Repository) GetControls(ctx context.Context, id string) (*domain.Controls, error) {
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	c, err := loadControls(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateControls applies mutate to a customer's current controls and stores the
// result. Returns nil if the customer does not exist.
func (r *Repository) UpdateControls(ctx context.Context, id string, mutate func(*domain.Controls), now time.Time) (*domain.Controls, error) {
	var updated *domain.Controls
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up customer: %w", err)
		}
		if exists == 0 {
			return nil
		}

		c, err := loadControls(ctx, tx, id)
		if err != nil {
			return err
		}
		mutate(&c)
		c.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()

		blocks, err := json.Marshal(c.CategoryBlocks)
		if err != nil {
			return fmt.Errorf("failed to encode category blocks: %w", err)
		}
		var spendCap interface{}
		if c.SpendCap != nil {
			spendCap = *c.SpendCap
		}
		alerts := 0
		if c.AlertsEnabled {
			alerts = 1
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO customer_controls (customer_id, spend_cap, category_blocks, alerts_enabled, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(customer_id) DO UPDATE SET
				spend_cap = excluded.spend_cap,
				category_blocks = excluded.category_blocks,
				alerts_enabled = excluded.alerts_enabled,
				updated_at = excluded.updated_at`,
			id, spendCap, string(blocks), alerts, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to save controls: %w", err)
		}
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TopCustomers returns the top-N app users for a drill-down kind.
// flagged is only consulted for drilldown.KindFlagged; an empty set yields no rows.
func (r *Repository) TopCustomers(ctx context.Context, kind drilldown.Kind, flagged domain.BandSet, limit int) ([]domain.CustomerSummary, error) {
	limit = drilldown.ClampLimit(limit)
	args := []interface{}{domain.SourceAppUser}
	where := `source = ?`
	var order string

	switch kind {
	case drilldown.KindLatest:
		order = `created_at DESC, id`
	case drilldown.KindFlagged:
		names := flagged.Names()
		if len(names) == 0 {
			return []domain.CustomerSummary{}, nil
		}
		where += ` AND risk_band IN (?` + strings.Repeat(`, ?`, len(names)-1) + `)`
		for _, n := range names {
			args = append(args, n)
		}
		order = `updated_at DESC, id`
	case drilldown.KindUtilisation:
		order = `utilisation_pct DESC, id`
	case drilldown.KindCash:
		order = `cash_withdrawal_pct DESC, id`
	default:
		return nil, fmt.Errorf("%w: %q", drilldown.ErrUnknownKind, kind)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM customers WHERE `+where+` ORDER BY `+order+` LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top %s customers: %w", kind, err)
	}
	defer rows.Close()

	out := make([]domain.CustomerSummary, 0, limit)
	for rows.Next() {
		var (
			s    domain.CustomerSummary
			band string
		)
		if err := rows.Scan(&s.ID, &s.Username, &s.CustomerID, &s.UtilisationPct, &s.CashWithdrawalPct, &band); err != nil {
			return nil, fmt.Errorf("failed to scan customer summary: %w", err)
		}
		s.RiskBand = domain.Band(band)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customer summaries: %w", err)
	}
	return out, nil
}
