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

type tableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository wires the parent-table entity store backed by pgxpool.
func NewTableRepository(pool *pgxpool.Pool) TableRepository {
	return &tableRepository{pool: pool}
}

func (r *tableRepository) GetByName(ctx context.Context, fqn string) (domain.Table, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT json FROM table_entities WHERE fqn = $1`, fqn).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Table{}, fmt.Errorf("table %s: %w", fqn, domain.ErrNotFound)
		}
		return domain.Table{}, fmt.Errorf("failed to get table: %w", err)
	}

	var table domain.Table
	if err := json.Unmarshal(payload, &table); err != nil {
		return domain.Table{}, fmt.Errorf("failed to decode table: %w", err)
	}
	return table, nil
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository wires the user identity store backed by pgxpool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByName(ctx context.Context, name string) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, fqn, display_name FROM users WHERE name = $1`, name).
		Scan(&user.ID, &user.Name, &user.FullyQualifiedName, &user.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %s: %w", name, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
