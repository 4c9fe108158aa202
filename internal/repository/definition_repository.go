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

type definitionRepository struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepository wires a check-definition repository backed by pgxpool.
func NewDefinitionRepository(pool *pgxpool.Pool) DefinitionRepository {
	return &definitionRepository{pool: pool}
}

func (r *definitionRepository) Create(ctx context.Context, definition domain.CheckDefinition) (domain.CheckDefinition, error) {
	if definition.ID == uuid.Nil {
		definition.ID = uuid.New()
	}

	payload, err := json.Marshal(definition)
	if err != nil {
		return domain.CheckDefinition{}, fmt.Errorf("failed to marshal check definition: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO check_definitions (id, name, fqn, json, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		definition.ID, definition.Name, definition.FullyQualifiedName, payload, definition.UpdatedAt)
	if err != nil {
		return domain.CheckDefinition{}, fmt.Errorf("failed to create check definition: %w", err)
	}

	return definition, nil
}

func (r *definitionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.CheckDefinition, error) {
	return r.getOne(ctx, `SELECT json FROM check_definitions WHERE id = $1`, id)
}

func (r *definitionRepository) GetByName(ctx context.Context, fqn string) (domain.CheckDefinition, error) {
	return r.getOne(ctx, `SELECT json FROM check_definitions WHERE fqn = $1`, fqn)
}

func (r *definitionRepository) getOne(ctx context.Context, query string, arg any) (domain.CheckDefinition, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx, query, arg).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CheckDefinition{}, fmt.Errorf("check definition %v: %w", arg, domain.ErrNotFound)
		}
		return domain.CheckDefinition{}, fmt.Errorf("failed to get check definition: %w", err)
	}

	var definition domain.CheckDefinition
	if err := json.Unmarshal(payload, &definition); err != nil {
		return domain.CheckDefinition{}, fmt.Errorf("failed to decode check definition: %w", err)
	}
	return definition, nil
}
