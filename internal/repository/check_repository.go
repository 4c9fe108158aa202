package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rmorley/dqcheck/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type checkRepository struct {
	pool *pgxpool.Pool
}

// NewCheckRepository wires a check repository backed by pgxpool.
func NewCheckRepository(pool *pgxpool.Pool) CheckRepository {
	return &checkRepository{pool: pool}
}

// stripDerived clears the relationship-derived fields before the record is
// stored. Group, definition, result and inherited fields are rebuilt from
// edges and the parent entity on read, never persisted on the check.
func stripDerived(check domain.Check) domain.Check {
	check.Group = nil
	check.Groups = nil
	check.Definition = nil
	check.LatestResult = nil
	check.IncidentID = nil
	check.Owners = nil
	check.Domain = nil
	check.Tags = nil
	return check
}

func (r *checkRepository) Create(ctx context.Context, check domain.Check) (domain.Check, error) {
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}

	payload, err := json.Marshal(stripDerived(check))
	if err != nil {
		return domain.Check{}, fmt.Errorf("failed to marshal check: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO check_entities (id, name, fqn, entity_fqn, json, version, deleted, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		check.ID, check.Name, check.FullyQualifiedName, check.EntityFQN,
		payload, check.Version, check.Deleted, check.UpdatedBy, check.UpdatedAt,
	)
	if err != nil {
		return domain.Check{}, fmt.Errorf("failed to create check: %w", err)
	}

	return check, nil
}

func (r *checkRepository) GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (domain.Check, error) {
	query := `SELECT json FROM check_entities WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted = false`
	}
	return r.getOne(ctx, query, id)
}

func (r *checkRepository) GetByName(ctx context.Context, fqn string, includeDeleted bool) (domain.Check, error) {
	query := `SELECT json FROM check_entities WHERE fqn = $1`
	if !includeDeleted {
		query += ` AND deleted = false`
	}
	return r.getOne(ctx, query, fqn)
}

func (r *checkRepository) getOne(ctx context.Context, query string, arg any) (domain.Check, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx, query, arg).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Check{}, fmt.Errorf("check %v: %w", arg, domain.ErrNotFound)
		}
		return domain.Check{}, fmt.Errorf("failed to get check: %w", err)
	}

	return decodeCheck(payload)
}

func (r *checkRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Check, error) {
	if len(ids) == 0 {
		return []domain.Check{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT json FROM check_entities WHERE id = ANY($1) AND deleted = false`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get checks by ids: %w", err)
	}
	defer rows.Close()

	return collectChecks(rows)
}

func (r *checkRepository) List(ctx context.Context, limit, offset int) ([]domain.Check, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT json, count(*) OVER() AS total_count
		 FROM check_entities
		 WHERE deleted = false
		 ORDER BY fqn
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	checks := []domain.Check{}
	totalCount := 0
	for rows.Next() {
		var payload json.RawMessage
		if scanErr := rows.Scan(&payload, &totalCount); scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan check: %w", scanErr)
		}
		check, decodeErr := decodeCheck(payload)
		if decodeErr != nil {
			return nil, 0, decodeErr
		}
		checks = append(checks, check)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, fmt.Errorf("failed to iterate checks: %w", rowsErr)
	}

	return checks, totalCount, nil
}

func (r *checkRepository) ListByEntityFQN(ctx context.Context, entityFQN string) ([]domain.Check, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT json FROM check_entities WHERE entity_fqn = $1 AND deleted = false ORDER BY fqn`,
		entityFQN)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks by entity: %w", err)
	}
	defer rows.Close()

	return collectChecks(rows)
}

func (r *checkRepository) Update(ctx context.Context, check domain.Check) (domain.Check, error) {
	payload, err := json.Marshal(stripDerived(check))
	if err != nil {
		return domain.Check{}, fmt.Errorf("failed to marshal check: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE check_entities
		 SET name = $2, fqn = $3, entity_fqn = $4, json = $5, version = $6, deleted = $7,
		     updated_by = $8, updated_at = $9
		 WHERE id = $1`,
		check.ID, check.Name, check.FullyQualifiedName, check.EntityFQN,
		payload, check.Version, check.Deleted, check.UpdatedBy, check.UpdatedAt,
	)
	if err != nil {
		return domain.Check{}, fmt.Errorf("failed to update check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Check{}, fmt.Errorf("check %s: %w", check.ID, domain.ErrNotFound)
	}

	return check, nil
}

func (r *checkRepository) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE check_entities
		 SET deleted = true, json = jsonb_set(json, '{deleted}', 'true'), updated_by = $2, updated_at = now()
		 WHERE id = $1 AND deleted = false`,
		id, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to soft delete check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *checkRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM check_entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *checkRepository) CountByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM check_entities WHERE id = ANY($1) AND deleted = false`, ids).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count checks: %w", err)
	}
	return count, nil
}

func collectChecks(rows pgx.Rows) ([]domain.Check, error) {
	checks := []domain.Check{}
	for rows.Next() {
		var payload json.RawMessage
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		check, err := decodeCheck(payload)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checks: %w", err)
	}
	return checks, nil
}

func decodeCheck(payload json.RawMessage) (domain.Check, error) {
	var check domain.Check
	if err := json.Unmarshal(payload, &check); err != nil {
		return domain.Check{}, fmt.Errorf("failed to decode check: %w", err)
	}
	return check, nil
}
