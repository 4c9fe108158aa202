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

type extensionRepository struct {
	pool *pgxpool.Pool
}

// NewExtensionRepository wires the keyed blob store backed by pgxpool.
func NewExtensionRepository(pool *pgxpool.Pool) ExtensionStore {
	return &extensionRepository{pool: pool}
}

func (r *extensionRepository) Put(ctx context.Context, entityID uuid.UUID, extension string, payload json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO entity_extensions (entity_id, extension, json, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (entity_id, extension) DO UPDATE SET json = EXCLUDED.json, updated_at = now()`,
		entityID, extension, payload)
	if err != nil {
		return fmt.Errorf("failed to put extension %s: %w", extension, err)
	}
	return nil
}

func (r *extensionRepository) Get(ctx context.Context, entityID uuid.UUID, extension string) (json.RawMessage, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT json FROM entity_extensions WHERE entity_id = $1 AND extension = $2`,
		entityID, extension).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("extension %s for %s: %w", extension, entityID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get extension %s: %w", extension, err)
	}
	return payload, nil
}

func (r *extensionRepository) Delete(ctx context.Context, entityID uuid.UUID, extension string) error {
	// Absence is not an error.
	_, err := r.pool.Exec(ctx,
		`DELETE FROM entity_extensions WHERE entity_id = $1 AND extension = $2`,
		entityID, extension)
	if err != nil {
		return fmt.Errorf("failed to delete extension %s: %w", extension, err)
	}
	return nil
}

func (r *extensionRepository) DeleteAll(ctx context.Context, entityID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM entity_extensions WHERE entity_id = $1`, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete extensions for %s: %w", entityID, err)
	}
	return nil
}
