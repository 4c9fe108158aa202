// Package memory provides in-memory implementations of the store interfaces.
// They back package-level tests and local development without Postgres.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/repository"

	"github.com/google/uuid"
)

// CheckStore is an in-memory repository.CheckRepository.
type CheckStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]domain.Check
	byName map[string]uuid.UUID
}

// NewCheckStore builds an empty in-memory check store.
func NewCheckStore() *CheckStore {
	return &CheckStore{
		byID:   map[uuid.UUID]domain.Check{},
		byName: map[string]uuid.UUID{},
	}
}

var _ repository.CheckRepository = (*CheckStore)(nil)

func (s *CheckStore) Create(_ context.Context, check domain.Check) (domain.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if check.ID == uuid.Nil {
		check.ID = uuid.New()
	}
	s.byID[check.ID] = check
	s.byName[check.FullyQualifiedName] = check.ID
	return check, nil
}

func (s *CheckStore) GetByID(_ context.Context, id uuid.UUID, includeDeleted bool) (domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	check, ok := s.byID[id]
	if !ok || (check.Deleted && !includeDeleted) {
		return domain.Check{}, fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	return check, nil
}

func (s *CheckStore) GetByName(_ context.Context, fqn string, includeDeleted bool) (domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[fqn]
	if !ok {
		return domain.Check{}, fmt.Errorf("check %s: %w", fqn, domain.ErrNotFound)
	}
	check := s.byID[id]
	if check.Deleted && !includeDeleted {
		return domain.Check{}, fmt.Errorf("check %s: %w", fqn, domain.ErrNotFound)
	}
	return check, nil
}

func (s *CheckStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := []domain.Check{}
	for _, id := range ids {
		if check, ok := s.byID[id]; ok && !check.Deleted {
			checks = append(checks, check)
		}
	}
	return checks, nil
}

func (s *CheckStore) List(_ context.Context, limit, offset int) ([]domain.Check, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := []domain.Check{}
	for _, check := range s.byID {
		if !check.Deleted {
			all = append(all, check)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].FullyQualifiedName < all[j].FullyQualifiedName
	})
	total := len(all)
	if offset > len(all) {
		return []domain.Check{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *CheckStore) ListByEntityFQN(_ context.Context, entityFQN string) ([]domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := []domain.Check{}
	for _, check := range s.byID {
		if !check.Deleted && check.EntityFQN == entityFQN {
			checks = append(checks, check)
		}
	}
	sort.Slice(checks, func(i, j int) bool {
		return checks[i].FullyQualifiedName < checks[j].FullyQualifiedName
	})
	return checks, nil
}

func (s *CheckStore) Update(_ context.Context, check domain.Check) (domain.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[check.ID]
	if !ok {
		return domain.Check{}, fmt.Errorf("check %s: %w", check.ID, domain.ErrNotFound)
	}
	delete(s.byName, old.FullyQualifiedName)
	s.byID[check.ID] = check
	s.byName[check.FullyQualifiedName] = check.ID
	return check, nil
}

func (s *CheckStore) SoftDelete(_ context.Context, id uuid.UUID, deletedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.byID[id]
	if !ok || check.Deleted {
		return fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	check.Deleted = true
	check.UpdatedBy = deletedBy
	s.byID[id] = check
	return nil
}

func (s *CheckStore) HardDelete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	delete(s.byName, check.FullyQualifiedName)
	delete(s.byID, id)
	return nil
}

func (s *CheckStore) CountByIDs(_ context.Context, ids []uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, id := range ids {
		if check, ok := s.byID[id]; ok && !check.Deleted {
			count++
		}
	}
	return count, nil
}

// GroupStore is an in-memory repository.GroupRepository.
type GroupStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]domain.CheckGroup
	byName map[string]uuid.UUID
}

// NewGroupStore builds an empty in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{
		byID:   map[uuid.UUID]domain.CheckGroup{},
		byName: map[string]uuid.UUID{},
	}
}

var _ repository.GroupRepository = (*GroupStore)(nil)

func (s *GroupStore) Create(_ context.Context, group domain.CheckGroup) (domain.CheckGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	s.byID[group.ID] = group
	s.byName[group.FullyQualifiedName] = group.ID
	return group, nil
}

func (s *GroupStore) GetByID(_ context.Context, id uuid.UUID) (domain.CheckGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.byID[id]
	if !ok {
		return domain.CheckGroup{}, fmt.Errorf("check group %s: %w", id, domain.ErrNotFound)
	}
	return group, nil
}

func (s *GroupStore) GetByName(_ context.Context, fqn string) (domain.CheckGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[fqn]
	if !ok {
		return domain.CheckGroup{}, fmt.Errorf("check group %s: %w", fqn, domain.ErrNotFound)
	}
	return s.byID[id], nil
}

func (s *GroupStore) List(_ context.Context, limit, offset int) ([]domain.CheckGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := []domain.CheckGroup{}
	for _, group := range s.byID {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].FullyQualifiedName < groups[j].FullyQualifiedName
	})
	if offset > len(groups) {
		return []domain.CheckGroup{}, nil
	}
	groups = groups[offset:]
	if limit > 0 && limit < len(groups) {
		groups = groups[:limit]
	}
	return groups, nil
}

// DefinitionStore is an in-memory repository.DefinitionRepository.
type DefinitionStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]domain.CheckDefinition
	byName map[string]uuid.UUID
}

// NewDefinitionStore builds an empty in-memory definition store.
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{
		byID:   map[uuid.UUID]domain.CheckDefinition{},
		byName: map[string]uuid.UUID{},
	}
}

var _ repository.DefinitionRepository = (*DefinitionStore)(nil)

func (s *DefinitionStore) Create(_ context.Context, definition domain.CheckDefinition) (domain.CheckDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if definition.ID == uuid.Nil {
		definition.ID = uuid.New()
	}
	s.byID[definition.ID] = definition
	s.byName[definition.FullyQualifiedName] = definition.ID
	return definition, nil
}

func (s *DefinitionStore) GetByID(_ context.Context, id uuid.UUID) (domain.CheckDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	definition, ok := s.byID[id]
	if !ok {
		return domain.CheckDefinition{}, fmt.Errorf("check definition %s: %w", id, domain.ErrNotFound)
	}
	return definition, nil
}

func (s *DefinitionStore) GetByName(_ context.Context, fqn string) (domain.CheckDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[fqn]
	if !ok {
		return domain.CheckDefinition{}, fmt.Errorf("check definition %s: %w", fqn, domain.ErrNotFound)
	}
	return s.byID[id], nil
}

// TableStore is an in-memory repository.TableRepository.
type TableStore struct {
	mu     sync.RWMutex
	byName map[string]domain.Table
}

// NewTableStore builds an empty in-memory table store.
func NewTableStore() *TableStore {
	return &TableStore{byName: map[string]domain.Table{}}
}

var _ repository.TableRepository = (*TableStore)(nil)

// Put stores a table for later lookup.
func (s *TableStore) Put(table domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[table.FullyQualifiedName] = table
}

func (s *TableStore) GetByName(_ context.Context, fqn string) (domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.byName[fqn]
	if !ok {
		return domain.Table{}, fmt.Errorf("table %s: %w", fqn, domain.ErrNotFound)
	}
	return table, nil
}

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu     sync.RWMutex
	byName map[string]domain.User
}

// NewUserStore builds an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{byName: map[string]domain.User{}}
}

var _ repository.UserRepository = (*UserStore)(nil)

// Put stores a user for later lookup.
func (s *UserStore) Put(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[user.Name] = user
}

func (s *UserStore) GetByName(_ context.Context, name string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byName[name]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", name, domain.ErrNotFound)
	}
	return user, nil
}

// EdgeStore is an in-memory repository.EdgeStore.
type EdgeStore struct {
	mu    sync.RWMutex
	edges []domain.Edge
}

// NewEdgeStore builds an empty in-memory edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{}
}

var _ repository.EdgeStore = (*EdgeStore)(nil)

func (s *EdgeStore) Add(_ context.Context, edge domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.edges {
		if existing == edge {
			return nil
		}
	}
	s.edges = append(s.edges, edge)
	return nil
}

func (s *EdgeStore) Remove(_ context.Context, edge domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.edges[:0]
	for _, existing := range s.edges {
		if existing != edge {
			kept = append(kept, existing)
		}
	}
	s.edges = kept
	return nil
}

func (s *EdgeStore) Sources(
	_ context.Context,
	targetID uuid.UUID,
	targetKind domain.EntityKind,
	edgeType domain.EdgeType,
	sourceKind domain.EntityKind,
) ([]domain.EdgeEnd, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ends := []domain.EdgeEnd{}
	for _, edge := range s.edges {
		if edge.TargetID == targetID && edge.TargetKind == targetKind &&
			edge.Type == edgeType && edge.SourceKind == sourceKind {
			ends = append(ends, domain.EdgeEnd{ID: edge.SourceID, Kind: edge.SourceKind})
		}
	}
	return ends, nil
}

func (s *EdgeStore) Targets(
	_ context.Context,
	sourceID uuid.UUID,
	sourceKind domain.EntityKind,
	edgeType domain.EdgeType,
	targetKind domain.EntityKind,
) ([]domain.EdgeEnd, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ends := []domain.EdgeEnd{}
	for _, edge := range s.edges {
		if edge.SourceID == sourceID && edge.SourceKind == sourceKind &&
			edge.Type == edgeType && edge.TargetKind == targetKind {
			ends = append(ends, domain.EdgeEnd{ID: edge.TargetID, Kind: edge.TargetKind})
		}
	}
	return ends, nil
}

func (s *EdgeStore) RemoveAllFor(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.edges[:0]
	for _, edge := range s.edges {
		if edge.SourceID != id && edge.TargetID != id {
			kept = append(kept, edge)
		}
	}
	s.edges = kept
	return nil
}

// Edges returns a copy of all stored edges.
func (s *EdgeStore) Edges() []domain.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// ResultStore is an in-memory repository.ResultStore.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string][]domain.CheckResult
}

// NewResultStore builds an empty in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{records: map[string][]domain.CheckResult{}}
}

var _ repository.ResultStore = (*ResultStore)(nil)

func (s *ResultStore) Append(_ context.Context, fqn string, result domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fqn] = append(s.records[fqn], result)
	return nil
}

func (s *ResultStore) Latest(_ context.Context, fqn string) (*domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.records[fqn]
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[0]
	for _, record := range records[1:] {
		if record.Timestamp >= latest.Timestamp {
			latest = record
		}
	}
	return &latest, nil
}

func (s *ResultStore) Range(_ context.Context, fqn string, fromTs, toTs int64) ([]domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.CheckResult{}
	for _, record := range s.records[fqn] {
		if record.Timestamp >= fromTs && record.Timestamp <= toTs {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (s *ResultStore) DeleteAll(_ context.Context, fqn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, fqn)
	return nil
}

// ResolutionStatusStore is an in-memory repository.ResolutionStatusStore.
type ResolutionStatusStore struct {
	mu      sync.RWMutex
	records map[string][]domain.ResolutionStatus
}

// NewResolutionStatusStore builds an empty in-memory resolution-status store.
func NewResolutionStatusStore() *ResolutionStatusStore {
	return &ResolutionStatusStore{records: map[string][]domain.ResolutionStatus{}}
}

var _ repository.ResolutionStatusStore = (*ResolutionStatusStore)(nil)

func (s *ResolutionStatusStore) Append(_ context.Context, fqn string, status domain.ResolutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fqn] = append(s.records[fqn], status)
	return nil
}

func (s *ResolutionStatusStore) Latest(_ context.Context, fqn string) (*domain.ResolutionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.records[fqn]
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[0]
	for _, record := range records[1:] {
		if record.Timestamp >= latest.Timestamp {
			latest = record
		}
	}
	return &latest, nil
}

func (s *ResolutionStatusStore) Range(_ context.Context, fqn string, fromTs, toTs int64) ([]domain.ResolutionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ResolutionStatus{}
	for _, record := range s.records[fqn] {
		if record.Timestamp >= fromTs && record.Timestamp <= toTs {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (s *ResolutionStatusStore) DeleteAll(_ context.Context, fqn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, fqn)
	return nil
}

// All returns every record stored for a key, in append order.
func (s *ResolutionStatusStore) All(fqn string) []domain.ResolutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResolutionStatus, len(s.records[fqn]))
	copy(out, s.records[fqn])
	return out
}

// ExtensionStore is an in-memory repository.ExtensionStore.
type ExtensionStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]map[string]json.RawMessage
}

// NewExtensionStore builds an empty in-memory extension store.
func NewExtensionStore() *ExtensionStore {
	return &ExtensionStore{blobs: map[uuid.UUID]map[string]json.RawMessage{}}
}

var _ repository.ExtensionStore = (*ExtensionStore)(nil)

func (s *ExtensionStore) Put(_ context.Context, entityID uuid.UUID, extension string, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs[entityID] == nil {
		s.blobs[entityID] = map[string]json.RawMessage{}
	}
	s.blobs[entityID][extension] = payload
	return nil
}

func (s *ExtensionStore) Get(_ context.Context, entityID uuid.UUID, extension string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.blobs[entityID][extension]
	if !ok {
		return nil, fmt.Errorf("extension %s for %s: %w", extension, entityID, domain.ErrNotFound)
	}
	return payload, nil
}

func (s *ExtensionStore) Delete(_ context.Context, entityID uuid.UUID, extension string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs[entityID], extension)
	return nil
}

func (s *ExtensionStore) DeleteAll(_ context.Context, entityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, entityID)
	return nil
}
