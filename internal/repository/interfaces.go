package repository

import (
	"context"
	"encoding/json"

	"github.com/rmorley/dqcheck/internal/domain"

	"github.com/google/uuid"
)

// CheckRepository defines the primary record store for checks.
type CheckRepository interface {
	Create(ctx context.Context, check domain.Check) (domain.Check, error)
	GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (domain.Check, error)
	GetByName(ctx context.Context, fqn string, includeDeleted bool) (domain.Check, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Check, error)
	List(ctx context.Context, limit, offset int) ([]domain.Check, int, error)
	ListByEntityFQN(ctx context.Context, entityFQN string) ([]domain.Check, error)
	Update(ctx context.Context, check domain.Check) (domain.Check, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	CountByIDs(ctx context.Context, ids []uuid.UUID) (int, error)
}

// GroupRepository defines the store for check groups.
type GroupRepository interface {
	Create(ctx context.Context, group domain.CheckGroup) (domain.CheckGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CheckGroup, error)
	GetByName(ctx context.Context, fqn string) (domain.CheckGroup, error)
	List(ctx context.Context, limit, offset int) ([]domain.CheckGroup, error)
}

// DefinitionRepository defines the store for check definitions.
type DefinitionRepository interface {
	Create(ctx context.Context, definition domain.CheckDefinition) (domain.CheckDefinition, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CheckDefinition, error)
	GetByName(ctx context.Context, fqn string) (domain.CheckDefinition, error)
}

// TableRepository resolves parent table entities addressed by entity links.
type TableRepository interface {
	GetByName(ctx context.Context, fqn string) (domain.Table, error)
}

// UserRepository resolves user identities by name.
type UserRepository interface {
	GetByName(ctx context.Context, name string) (domain.User, error)
}

// EdgeStore is the append-only directed typed-edge store. It is the sole
// source of truth for group membership and definition linkage.
type EdgeStore interface {
	Add(ctx context.Context, edge domain.Edge) error
	Remove(ctx context.Context, edge domain.Edge) error
	// Sources returns the source endpoints of edges of the given type and
	// source kind pointing at the target entity.
	Sources(ctx context.Context, targetID uuid.UUID, targetKind domain.EntityKind, edgeType domain.EdgeType, sourceKind domain.EntityKind) ([]domain.EdgeEnd, error)
	// Targets returns the target endpoints of edges of the given type and
	// target kind leaving the source entity.
	Targets(ctx context.Context, sourceID uuid.UUID, sourceKind domain.EntityKind, edgeType domain.EdgeType, targetKind domain.EntityKind) ([]domain.EdgeEnd, error)
	// RemoveAllFor removes every edge touching the given entity on either end.
	RemoveAllFor(ctx context.Context, id uuid.UUID) error
}

// ResultStore is the authoritative time-series store for check results,
// keyed by the check's fully-qualified name. Latest returns (nil, nil) when
// no record exists; absence is a normal state, not an error.
type ResultStore interface {
	Append(ctx context.Context, fqn string, result domain.CheckResult) error
	Latest(ctx context.Context, fqn string) (*domain.CheckResult, error)
	Range(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.CheckResult, error)
	DeleteAll(ctx context.Context, fqn string) error
}

// ResolutionStatusStore is the append-only time-series store for incident
// resolution statuses, keyed by the check's fully-qualified name. Records are
// never mutated; the current state is always the latest record.
type ResolutionStatusStore interface {
	Append(ctx context.Context, fqn string, status domain.ResolutionStatus) error
	Latest(ctx context.Context, fqn string) (*domain.ResolutionStatus, error)
	Range(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.ResolutionStatus, error)
	DeleteAll(ctx context.Context, fqn string) error
}

// ExtensionStore is a keyed blob store for auxiliary artifacts that live
// outside the main versioned record.
type ExtensionStore interface {
	Put(ctx context.Context, entityID uuid.UUID, extension string, payload json.RawMessage) error
	Get(ctx context.Context, entityID uuid.UUID, extension string) (json.RawMessage, error)
	Delete(ctx context.Context, entityID uuid.UUID, extension string) error
	DeleteAll(ctx context.Context, entityID uuid.UUID) error
}
