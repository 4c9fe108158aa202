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

type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository wires a check-group repository backed by pgxpool.
func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &groupRepository{pool: pool}
}

func (r *groupRepository) Create(ctx context.Context, group domain.CheckGroup) (domain.CheckGroup, error) {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}

	payload, err := json.Marshal(group)
	if err != nil {
		return domain.CheckGroup{}, fmt.Errorf("failed to marshal check group: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO check_groups (id, name, fqn, executable, json, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, group.Name, group.FullyQualifiedName, group.Executable, payload, group.UpdatedAt)
	if err != nil {
		return domain.CheckGroup{}, fmt.Errorf("failed to create check group: %w", err)
	}

	return group, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.CheckGroup, error) {
	return r.getOne(ctx, `SELECT json FROM check_groups WHERE id = $1`, id)
}

func (r *groupRepository) GetByName(ctx context.Context, fqn string) (domain.CheckGroup, error) {
	return r.getOne(ctx, `SELECT json FROM check_groups WHERE fqn = $1`, fqn)
}

func (r *groupRepository) getOne(ctx context.Context, query string, arg any) (domain.CheckGroup, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx, query, arg).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CheckGroup{}, fmt.Errorf("check group %v: %w", arg, domain.ErrNotFound)
		}
		return domain.CheckGroup{}, fmt.Errorf("failed to get check group: %w", err)
	}

	var group domain.CheckGroup
	if err := json.Unmarshal(payload, &group); err != nil {
		return domain.CheckGroup{}, fmt.Errorf("failed to decode check group: %w", err)
	}
	return group, nil
}

func (r *groupRepository) List(ctx context.Context, limit, offset int) ([]domain.CheckGroup, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx,
		`SELECT json FROM check_groups ORDER BY fqn LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list check groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.CheckGroup{}
	for rows.Next() {
		var payload json.RawMessage
		if scanErr := rows.Scan(&payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan check group: %w", scanErr)
		}
		var group domain.CheckGroup
		if decodeErr := json.Unmarshal(payload, &group); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode check group: %w", decodeErr)
		}
		groups = append(groups, group)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate check groups: %w", rowsErr)
	}

	return groups, nil
}
