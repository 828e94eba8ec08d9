package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/astrobalance/vaultgate/internal/model"
	"github.com/jmoiron/sqlx"
)

// PostgresHistoryRepo keeps the full rebalance archive. The ledger only
// retains the most recent entries, so this is where old ones survive.
type PostgresHistoryRepo struct {
	db *sqlx.DB
}

func NewPostgresHistoryRepo(db *sqlx.DB) *PostgresHistoryRepo {
	repo := &PostgresHistoryRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresHistoryRepo) Insert(ctx context.Context, record *model.RebalanceRecord) error {
	if record == nil {
		return nil
	}
	oldJSON, _ := json.Marshal(record.OldAllocations)
	newJSON, _ := json.Marshal(record.NewAllocations)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rebalance_history (
			ts, initiated_by, old_allocations, new_allocations, reason
		) VALUES ($1,$2,$3,$4,$5)
	`, record.Timestamp, record.InitiatedBy, oldJSON, newJSON, record.Reason)
	return err
}

// List returns archived records newest first.
func (r *PostgresHistoryRepo) List(ctx context.Context, limit int, from, to *time.Time) ([]*model.RebalanceRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT ts, initiated_by, old_allocations, new_allocations, reason FROM rebalance_history`
	clauses := []string{}
	args := []interface{}{}
	idx := 1
	if from != nil {
		clauses = append(clauses, fmt.Sprintf("ts >= $%d", idx))
		args = append(args, *from)
		idx++
	}
	if to != nil {
		clauses = append(clauses, fmt.Sprintf("ts <= $%d", idx))
		args = append(args, *to)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.RebalanceRecord, 0, limit)
	for rows.Next() {
		var rec model.RebalanceRecord
		var oldJSON, newJSON []byte
		if err := rows.Scan(&rec.Timestamp, &rec.InitiatedBy, &oldJSON, &newJSON, &rec.Reason); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(oldJSON, &rec.OldAllocations)
		_ = json.Unmarshal(newJSON, &rec.NewAllocations)
		records = append(records, &rec)
	}
	return records, nil
}

func (r *PostgresHistoryRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rebalance_history (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			initiated_by TEXT NOT NULL,
			old_allocations JSONB,
			new_allocations JSONB,
			reason TEXT
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rebalance_history_ts ON rebalance_history(ts DESC)`)
	return nil
}
