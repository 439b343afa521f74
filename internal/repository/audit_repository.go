package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// appendAudit inserts entries for one aggregate inside tx. Rows are never updated or deleted.
func appendAudit(ctx context.Context, tx pgx.Tx, aggregate domain.AggregateType, aggregateID string, entries []domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (aggregate_type, aggregate_id, action, by_id, by_name, note, diff, at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, entry := range entries {
		var diff any
		if len(entry.Diff) > 0 {
			raw, err := json.Marshal(entry.Diff)
			if err != nil {
				return fmt.Errorf("encode audit diff: %w", err)
			}
			diff = raw
		}
		if _, err := tx.Exec(ctx, query,
			aggregate,
			aggregateID,
			entry.Action,
			entry.By,
			entry.ByName,
			entry.Note,
			diff,
			entry.At,
		); err != nil {
			return err
		}
	}
	return nil
}

// loadAudit returns the audit trail of each aggregate id in insertion order.
func loadAudit(ctx context.Context, q querier, aggregate domain.AggregateType, ids []string) (map[string][]domain.AuditEntry, error) {
	result := make(map[string][]domain.AuditEntry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `
        SELECT aggregate_id::text, action, by_id, by_name, note, diff, at
        FROM audit_entries
        WHERE aggregate_type=$1 AND aggregate_id = ANY($2::uuid[])
        ORDER BY seq ASC`
	rows, err := q.Query(ctx, query, aggregate, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			aggregateID string
			entry       domain.AuditEntry
			rawDiff     []byte
		)
		if err := rows.Scan(
			&aggregateID,
			&entry.Action,
			&entry.By,
			&entry.ByName,
			&entry.Note,
			&rawDiff,
			&entry.At,
		); err != nil {
			return nil, err
		}
		if len(rawDiff) > 0 {
			if err := json.Unmarshal(rawDiff, &entry.Diff); err != nil {
				return nil, fmt.Errorf("decode audit diff: %w", err)
			}
		}
		result[aggregateID] = append(result[aggregateID], entry)
	}
	return result, rows.Err()
}
