package repository

import (
	"context"
	"fmt"

	"github.com/rmorley/dqcheck/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type edgeRepository struct {
	pool *pgxpool.Pool
}

// NewEdgeRepository wires the typed-edge store backed by pgxpool.
func NewEdgeRepository(pool *pgxpool.Pool) EdgeStore {
	return &edgeRepository{pool: pool}
}

func (r *edgeRepository) Add(ctx context.Context, edge domain.Edge) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO entity_edges (source_id, target_id, source_kind, target_kind, edge_type)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		edge.SourceID, edge.TargetID, edge.SourceKind, edge.TargetKind, edge.Type)
	if err != nil {
		return fmt.Errorf("failed to add edge: %w", err)
	}
	return nil
}

func (r *edgeRepository) Remove(ctx context.Context, edge domain.Edge) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM entity_edges
		 WHERE source_id = $1 AND target_id = $2 AND source_kind = $3 AND target_kind = $4 AND edge_type = $5`,
		edge.SourceID, edge.TargetID, edge.SourceKind, edge.TargetKind, edge.Type)
	if err != nil {
		return fmt.Errorf("failed to remove edge: %w", err)
	}
	return nil
}

func (r *edgeRepository) Sources(
	ctx context.Context,
	targetID uuid.UUID,
	targetKind domain.EntityKind,
	edgeType domain.EdgeType,
	sourceKind domain.EntityKind,
) ([]domain.EdgeEnd, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT source_id, source_kind FROM entity_edges
		 WHERE target_id = $1 AND target_kind = $2 AND edge_type = $3 AND source_kind = $4`,
		targetID, targetKind, edgeType, sourceKind)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge sources: %w", err)
	}
	defer rows.Close()

	ends := []domain.EdgeEnd{}
	for rows.Next() {
		var end domain.EdgeEnd
		if scanErr := rows.Scan(&end.ID, &end.Kind); scanErr != nil {
			return nil, fmt.Errorf("failed to scan edge source: %w", scanErr)
		}
		ends = append(ends, end)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate edge sources: %w", rowsErr)
	}

	return ends, nil
}

func (r *edgeRepository) Targets(
	ctx context.Context,
	sourceID uuid.UUID,
	sourceKind domain.EntityKind,
	edgeType domain.EdgeType,
	targetKind domain.EntityKind,
) ([]domain.EdgeEnd, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT target_id, target_kind FROM entity_edges
		 WHERE source_id = $1 AND source_kind = $2 AND edge_type = $3 AND target_kind = $4`,
		sourceID, sourceKind, edgeType, targetKind)
	if err != nil {
		return nil, fmt.Errorf("failed to query edge targets: %w", err)
	}
	defer rows.Close()

	ends := []domain.EdgeEnd{}
	for rows.Next() {
		var end domain.EdgeEnd
		if scanErr := rows.Scan(&end.ID, &end.Kind); scanErr != nil {
			return nil, fmt.Errorf("failed to scan edge target: %w", scanErr)
		}
		ends = append(ends, end)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate edge targets: %w", rowsErr)
	}

	return ends, nil
}

func (r *edgeRepository) RemoveAllFor(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM entity_edges WHERE source_id = $1 OR target_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove edges for %s: %w", id, err)
	}
	return nil
}
