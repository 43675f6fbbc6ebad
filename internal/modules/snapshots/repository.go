package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository stores KPI snapshots in the cache database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Insert stores s and sets its ID
func (r *Repository) Insert(ctx context.Context, s *Snapshot) error {
	blob, err := encodePayload(s)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO kpi_snapshots (taken_at, total_customers, flagged_customers, payload)
		VALUES (?, ?, ?, ?)
	`, s.TakenAt.UnixMilli(), s.KPIs.TotalCustomers, s.KPIs.FlaggedCustomers, blob)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}
	s.ID = id
	return nil
}

// List returns up to limit snapshots, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, taken_at, payload FROM kpi_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// Latest returns the newest snapshot, or nil if there is none
func (r *Repository) Latest(ctx context.Context) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at, payload FROM kpi_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// Prune keeps the newest keep snapshots and deletes the rest
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM kpi_snapshots WHERE id NOT IN (
			SELECT id FROM kpi_snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	if n > 0 {
		r.log.Debug().Int64("deleted", n).Int("kept", keep).Msg("Pruned snapshots")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var (
		s       Snapshot
		takenAt int64
		blob    []byte
	)
	if err := row.Scan(&s.ID, &takenAt, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	s.TakenAt = time.UnixMilli(takenAt).UTC()
	if err := decodePayload(blob, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
