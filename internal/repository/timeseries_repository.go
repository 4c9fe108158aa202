package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rmorley/dqcheck/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type resultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore wires the check-result time-series store backed by pgxpool.
func NewResultStore(pool *pgxpool.Pool) ResultStore {
	return &resultStore{pool: pool}
}

func (r *resultStore) Append(ctx context.Context, fqn string, result domain.CheckResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal check result: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO check_results (entity_fqn, ts, json) VALUES ($1, $2, $3)`,
		fqn, result.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to append check result: %w", err)
	}
	return nil
}

func (r *resultStore) Latest(ctx context.Context, fqn string) (*domain.CheckResult, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT json FROM check_results WHERE entity_fqn = $1 ORDER BY ts DESC LIMIT 1`,
		fqn).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest check result: %w", err)
	}

	var result domain.CheckResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode check result: %w", err)
	}
	return &result, nil
}

func (r *resultStore) Range(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.CheckResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT json FROM check_results
		 WHERE entity_fqn = $1 AND ts >= $2 AND ts <= $3
		 ORDER BY ts DESC`,
		fqn, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	results := []domain.CheckResult{}
	for rows.Next() {
		var payload json.RawMessage
		if scanErr := rows.Scan(&payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", scanErr)
		}
		var result domain.CheckResult
		if decodeErr := json.Unmarshal(payload, &result); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode check result: %w", decodeErr)
		}
		results = append(results, result)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate check results: %w", rowsErr)
	}

	return results, nil
}

func (r *resultStore) DeleteAll(ctx context.Context, fqn string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM check_results WHERE entity_fqn = $1`, fqn)
	if err != nil {
		return fmt.Errorf("failed to delete check results: %w", err)
	}
	return nil
}

type resolutionStatusStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStatusStore wires the resolution-status time-series store
// backed by pgxpool.
func NewResolutionStatusStore(pool *pgxpool.Pool) ResolutionStatusStore {
	return &resolutionStatusStore{pool: pool}
}

func (r *resolutionStatusStore) Append(ctx context.Context, fqn string, status domain.ResolutionStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution status: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO resolution_statuses (entity_fqn, state_id, ts, json) VALUES ($1, $2, $3, $4)`,
		fqn, status.StateID, status.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("failed to append resolution status: %w", err)
	}
	return nil
}

func (r *resolutionStatusStore) Latest(ctx context.Context, fqn string) (*domain.ResolutionStatus, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT json FROM resolution_statuses WHERE entity_fqn = $1 ORDER BY ts DESC LIMIT 1`,
		fqn).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest resolution status: %w", err)
	}

	var status domain.ResolutionStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("failed to decode resolution status: %w", err)
	}
	return &status, nil
}

func (r *resolutionStatusStore) Range(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.ResolutionStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT json FROM resolution_statuses
		 WHERE entity_fqn = $1 AND ts >= $2 AND ts <= $3
		 ORDER BY ts DESC`,
		fqn, fromTs, toTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution statuses: %w", err)
	}
	defer rows.Close()

	statuses := []domain.ResolutionStatus{}
	for rows.Next() {
		var payload json.RawMessage
		if scanErr := rows.Scan(&payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan resolution status: %w", scanErr)
		}
		var status domain.ResolutionStatus
		if decodeErr := json.Unmarshal(payload, &status); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode resolution status: %w", decodeErr)
		}
		statuses = append(statuses, status)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate resolution statuses: %w", rowsErr)
	}

	return statuses, nil
}

func (r *resolutionStatusStore) DeleteAll(ctx context.Context, fqn string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM resolution_statuses WHERE entity_fqn = $1`, fqn)
	if err != nil {
		return fmt.Errorf("failed to delete resolution statuses: %w", err)
	}
	return nil
}
