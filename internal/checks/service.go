// Package checks is the entity service for data-quality checks: creation,
// reads with derived-field resolution, updates, result recording and
// deletion, with relationship edges and the search index kept in step.
package checks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rmorley/dqcheck/internal/auth"
	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"
	"github.com/rmorley/dqcheck/internal/resolver"
	"github.com/rmorley/dqcheck/internal/search"
	"github.com/rmorley/dqcheck/internal/updater"
	"github.com/rmorley/dqcheck/internal/validation"
	"github.com/rmorley/dqcheck/internal/workflow"

	"github.com/google/uuid"
)

// SearchIndex is the write side of the search store. All methods are best
// effort from the service's point of view: index failures are logged, never
// surfaced, since the authoritative stores already hold the data.
type SearchIndex interface {
	IndexResult(ctx context.Context, fqn string, result domain.CheckResult) error
	IndexGroupSnapshot(ctx context.Context, snapshot search.GroupSnapshot) error
	DeleteCheck(ctx context.Context, fqn string) error
}

// CreateRequest carries everything needed to create a check.
type CreateRequest struct {
	Name                        string                  `json:"name"`
	Description                 string                  `json:"description,omitempty"`
	EntityLink                  string                  `json:"entityLink"`
	GroupFQN                    string                  `json:"groupFQN"`
	DefinitionFQN               string                  `json:"definitionFQN"`
	ParameterValues             []domain.ParameterValue `json:"parameterValues,omitempty"`
	ComputePassedFailedRowCount *bool                   `json:"computePassedFailedRowCount,omitempty"`
	UseDynamicAssertion         *bool                   `json:"useDynamicAssertion,omitempty"`
	InspectionQuery             string                  `json:"inspectionQuery,omitempty"`
}

// Service coordinates the check entity lifecycle.
type Service struct {
	checks      repository.CheckRepository
	groups      repository.GroupRepository
	definitions repository.DefinitionRepository
	tables      repository.TableRepository
	edges       repository.EdgeStore
	results     repository.ResultStore
	statuses    repository.ResolutionStatusStore
	extensions  repository.ExtensionStore
	resolver    *resolver.Resolver
	updater     *updater.Updater
	validator   *validation.ParameterValidator
	incidents   *workflow.IncidentWorkflow
	index       SearchIndex
	log         *logger.Logger
	now         func() time.Time
}

// Deps bundles the service's collaborators.
type Deps struct {
	Checks      repository.CheckRepository
	Groups      repository.GroupRepository
	Definitions repository.DefinitionRepository
	Tables      repository.TableRepository
	Edges       repository.EdgeStore
	Results     repository.ResultStore
	Statuses    repository.ResolutionStatusStore
	Extensions  repository.ExtensionStore
	Resolver    *resolver.Resolver
	Updater     *updater.Updater
	Validator   *validation.ParameterValidator
	Incidents   *workflow.IncidentWorkflow
	Index       SearchIndex
	Log         *logger.Logger
}

// NewService wires a check service.
func NewService(deps Deps) *Service {
	return &Service{
		checks:      deps.Checks,
		groups:      deps.Groups,
		definitions: deps.Definitions,
		tables:      deps.Tables,
		edges:       deps.Edges,
		results:     deps.Results,
		statuses:    deps.Statuses,
		extensions:  deps.Extensions,
		resolver:    deps.Resolver,
		updater:     deps.Updater,
		validator:   deps.Validator,
		incidents:   deps.Incidents,
		index:       deps.Index,
		log:         deps.Log.With("component", "checks"),
		now:         time.Now,
	}
}

// Create validates and stores a new check, then links its edges: CONTAINS
// from the executable group and the definition, HAS from the parent table.
// The named group must be executable; logical membership is added separately.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Check, error) {
	link, err := domain.ParseEntityLink(req.EntityLink)
	if err != nil {
		return domain.Check{}, err
	}
	table, err := s.tables.GetByName(ctx, link.EntityFQN)
	if err != nil {
		return domain.Check{}, fmt.Errorf("resolving parent entity %s: %w", link.EntityFQN, err)
	}

	group, err := s.groups.GetByName(ctx, req.GroupFQN)
	if err != nil {
		return domain.Check{}, fmt.Errorf("resolving group %s: %w", req.GroupFQN, err)
	}
	if !group.Executable {
		return domain.Check{}, domain.NewValidationError("groupFQN", req.GroupFQN,
			"a check must be created in an executable group")
	}

	definition, err := s.definitions.GetByName(ctx, req.DefinitionFQN)
	if err != nil {
		return domain.Check{}, fmt.Errorf("resolving definition %s: %w", req.DefinitionFQN, err)
	}
	if err := s.validator.Validate(req.ParameterValues, definition.Parameters); err != nil {
		return domain.Check{}, err
	}

	check := domain.Check{
		ID:                          uuid.New(),
		Name:                        req.Name,
		Description:                 req.Description,
		EntityLink:                  req.EntityLink,
		ParameterValues:             req.ParameterValues,
		ComputePassedFailedRowCount: req.ComputePassedFailedRowCount,
		UseDynamicAssertion:         req.UseDynamicAssertion,
		InspectionQuery:             req.InspectionQuery,
		Status:                      domain.CheckStatusQueued,
		Version:                     1,
		UpdatedBy:                   auth.ActorName(ctx),
		UpdatedAt:                   s.now().UTC(),
	}
	if err := check.SetFullyQualifiedName(); err != nil {
		return domain.Check{}, err
	}

	created, err := s.checks.Create(ctx, check)
	if err != nil {
		return domain.Check{}, err
	}

	for _, edge := range []domain.Edge{
		containsEdge(group.ID, domain.KindCheckGroup, created.ID),
		containsEdge(definition.ID, domain.KindCheckDefinition, created.ID),
		{
			SourceID:   table.ID,
			TargetID:   created.ID,
			SourceKind: domain.KindTable,
			TargetKind: domain.KindCheck,
			Type:       domain.EdgeHas,
		},
	} {
		if err := s.edges.Add(ctx, edge); err != nil {
			return domain.Check{}, err
		}
	}

	s.refreshGroupSnapshot(ctx, group)
	s.log.Info("created check", "check", created.FullyQualifiedName, "group", group.FullyQualifiedName)
	return created, nil
}

// Get returns a check by id with the requested derived fields populated.
func (s *Service) Get(ctx context.Context, id uuid.UUID, fields domain.FieldSet, includeDeleted bool) (domain.Check, error) {
	check, err := s.checks.GetByID(ctx, id, includeDeleted)
	if err != nil {
		return domain.Check{}, err
	}
	if err := s.resolver.Populate(ctx, &check, fields); err != nil {
		return domain.Check{}, err
	}
	return check, nil
}

// GetByName returns a check by FQN with the requested derived fields populated.
func (s *Service) GetByName(ctx context.Context, fqn string, fields domain.FieldSet, includeDeleted bool) (domain.Check, error) {
	check, err := s.checks.GetByName(ctx, fqn, includeDeleted)
	if err != nil {
		return domain.Check{}, err
	}
	if err := s.resolver.Populate(ctx, &check, fields); err != nil {
		return domain.Check{}, err
	}
	return check, nil
}

// List returns a page of checks and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Check, int, error) {
	return s.checks.List(ctx, limit, offset)
}

// ListByEntityFQN returns every check attached to the given parent entity.
func (s *Service) ListByEntityFQN(ctx context.Context, entityFQN string) ([]domain.Check, error) {
	return s.checks.ListByEntityFQN(ctx, entityFQN)
}

// CountByIDs returns how many of the given ids exist as live checks.
func (s *Service) CountByIDs(ctx context.Context, ids []uuid.UUID) (int, error) {
	return s.checks.CountByIDs(ctx, ids)
}

// Update merges the incoming revision over the stored record and persists the
// result when anything changed. A revision that moves the check to another
// group republishes the snapshots of every group touched by the move.
func (s *Service) Update(ctx context.Context, id uuid.UUID, updated domain.Check, operation updater.Operation) (domain.Check, error) {
	original, err := s.checks.GetByID(ctx, id, false)
	if err != nil {
		return domain.Check{}, err
	}

	var affected []domain.CheckGroup
	if updated.Group != nil {
		if affected, err = s.resolver.AllGroups(ctx, &original); err != nil {
			return domain.Check{}, err
		}
	}

	merged, err := s.updater.Apply(ctx, original, updated, operation, auth.ActorName(ctx))
	if err != nil {
		return domain.Check{}, err
	}
	if merged.Version == original.Version {
		return original, nil
	}
	merged.UpdatedAt = s.now().UTC()
	stored, err := s.checks.Update(ctx, merged)
	if err != nil {
		return domain.Check{}, err
	}

	if updated.Group != nil {
		if after, err := s.resolver.AllGroups(ctx, &stored); err == nil {
			affected = append(affected, after...)
		}
		seen := make(map[uuid.UUID]bool, len(affected))
		for _, group := range affected {
			if !seen[group.ID] {
				seen[group.ID] = true
				s.refreshGroupSnapshot(ctx, group)
			}
		}
	}
	return stored, nil
}

// SetInspectionQuery updates only the inspection query, through the regular
// merge path so the change is tracked and versioned.
func (s *Service) SetInspectionQuery(ctx context.Context, id uuid.UUID, query string) (domain.Check, error) {
	patch := domain.Check{InspectionQuery: query}
	return s.Update(ctx, id, patch, updater.OperationPatch)
}

// AddToLogicalGroups adds the check to the named logical groups. Executable
// membership cannot be granted this way; exactly one executable group owns a
// check and that link is fixed at creation. The membership change is recorded
// on the check's change history.
func (s *Service) AddToLogicalGroups(ctx context.Context, id uuid.UUID, groupFQNs []string) error {
	check, err := s.checks.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	before, err := s.resolver.AllGroups(ctx, &check)
	if err != nil {
		return err
	}

	for _, fqn := range groupFQNs {
		group, err := s.groups.GetByName(ctx, fqn)
		if err != nil {
			return fmt.Errorf("resolving group %s: %w", fqn, err)
		}
		if group.Executable {
			return domain.NewValidationError("groupFQNs", fqn,
				"cannot add a check to a second executable group")
		}
		if err := s.edges.Add(ctx, containsEdge(group.ID, domain.KindCheckGroup, check.ID)); err != nil {
			return err
		}
		s.refreshGroupSnapshot(ctx, group)
	}
	return s.recordMembershipChange(ctx, check, before)
}

// RemoveFromLogicalGroup removes the check from a logical group. The
// executable group link is not removable; deleting the check is the only way
// to sever it. The membership change is recorded on the check's change
// history.
func (s *Service) RemoveFromLogicalGroup(ctx context.Context, id uuid.UUID, groupFQN string) error {
	check, err := s.checks.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	before, err := s.resolver.AllGroups(ctx, &check)
	if err != nil {
		return err
	}
	group, err := s.groups.GetByName(ctx, groupFQN)
	if err != nil {
		return fmt.Errorf("resolving group %s: %w", groupFQN, err)
	}
	if group.Executable {
		return domain.NewValidationError("groupFQN", groupFQN,
			"cannot remove a check from its executable group")
	}
	if err := s.edges.Remove(ctx, containsEdge(group.ID, domain.KindCheckGroup, check.ID)); err != nil {
		return err
	}
	s.refreshGroupSnapshot(ctx, group)
	return s.recordMembershipChange(ctx, check, before)
}

// recordMembershipChange versions the check with a diff of its group
// membership before and after an edge mutation. No diff means no new version.
func (s *Service) recordMembershipChange(ctx context.Context, check domain.Check, before []domain.CheckGroup) error {
	after, err := s.resolver.AllGroups(ctx, &check)
	if err != nil {
		return err
	}
	tracker := domain.NewChangeTracker(check.Version)
	tracker.RecordChange("groups", groupRefs(before), groupRefs(after))
	if !tracker.Changed() {
		return nil
	}
	check.Version++
	check.ChangeDescription = tracker.Description()
	check.UpdatedBy = auth.ActorName(ctx)
	check.UpdatedAt = s.now().UTC()
	_, err = s.checks.Update(ctx, check)
	return err
}

// groupRefs lists group references in FQN order so the recorded diff does not
// depend on edge enumeration order.
func groupRefs(groups []domain.CheckGroup) []domain.EntityReference {
	refs := make([]domain.EntityReference, len(groups))
	for i := range groups {
		refs[i] = groups[i].Reference()
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].FullyQualifiedName < refs[j].FullyQualifiedName
	})
	return refs
}

// RecordResult appends an evaluation result to the check's time series. A
// failed result opens an incident, or joins the ongoing one, and the result
// carries that incident's stateId. The stored record's status mirrors the
// latest result without a version bump.
func (s *Service) RecordResult(ctx context.Context, fqn string, result domain.CheckResult) (domain.CheckResult, error) {
	check, err := s.checks.GetByName(ctx, fqn, false)
	if err != nil {
		return domain.CheckResult{}, err
	}

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.CheckFQN = check.FullyQualifiedName
	if result.Timestamp == 0 {
		result.Timestamp = s.now().UnixMilli()
	}

	if result.Status == domain.CheckStatusFailed {
		stateID, err := s.incidents.OnFailure(ctx, &check)
		if err != nil {
			return domain.CheckResult{}, err
		}
		result.IncidentID = &stateID
	}

	if err := s.results.Append(ctx, check.FullyQualifiedName, result); err != nil {
		return domain.CheckResult{}, err
	}

	if check.Status != result.Status {
		check.Status = result.Status
		check.UpdatedAt = s.now().UTC()
		if _, err := s.checks.Update(ctx, check); err != nil {
			return domain.CheckResult{}, err
		}
	}

	if s.index != nil {
		if err := s.index.IndexResult(ctx, check.FullyQualifiedName, result); err != nil {
			s.log.Warn("failed to index result, search view may lag",
				"check", check.FullyQualifiedName, "error", err)
		}
	}
	return result, nil
}

// LatestResult returns the most recent result for a check FQN.
func (s *Service) LatestResult(ctx context.Context, fqn string) (*domain.CheckResult, error) {
	check, err := s.checks.GetByName(ctx, fqn, false)
	if err != nil {
		return nil, err
	}
	return s.resolver.LatestResult(ctx, &check)
}

// ResultsRange returns results within [fromTs, toTs], newest first.
func (s *Service) ResultsRange(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.CheckResult, error) {
	if _, err := s.checks.GetByName(ctx, fqn, false); err != nil {
		return nil, err
	}
	return s.results.Range(ctx, fqn, fromTs, toTs)
}

// ResolutionTimeline returns the incident timeline within [fromTs, toTs].
func (s *Service) ResolutionTimeline(ctx context.Context, fqn string, fromTs, toTs int64) ([]domain.ResolutionStatus, error) {
	if _, err := s.checks.GetByName(ctx, fqn, true); err != nil {
		return nil, err
	}
	return s.statuses.Range(ctx, fqn, fromTs, toTs)
}

// Delete removes a check. A soft delete marks the record; a hard delete also
// removes its edges, result series, incident timeline, extension blobs and
// search documents.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, hard bool) error {
	check, err := s.checks.GetByID(ctx, id, true)
	if err != nil {
		return err
	}

	groups, err := s.resolver.AllGroups(ctx, &check)
	if err != nil {
		return err
	}

	if !hard {
		if err := s.checks.SoftDelete(ctx, id, auth.ActorName(ctx)); err != nil {
			return err
		}
	} else {
		if err := s.edges.RemoveAllFor(ctx, id); err != nil {
			return err
		}
		if err := s.results.DeleteAll(ctx, check.FullyQualifiedName); err != nil {
			return err
		}
		if err := s.statuses.DeleteAll(ctx, check.FullyQualifiedName); err != nil {
			return err
		}
		if err := s.extensions.DeleteAll(ctx, id); err != nil {
			return err
		}
		if err := s.checks.HardDelete(ctx, id); err != nil {
			return err
		}
	}

	if s.index != nil {
		if err := s.index.DeleteCheck(ctx, check.FullyQualifiedName); err != nil {
			s.log.Warn("failed to drop search documents for deleted check",
				"check", check.FullyQualifiedName, "error", err)
		}
	}
	for _, group := range groups {
		s.refreshGroupSnapshot(ctx, group)
	}
	s.log.Info("deleted check", "check", check.FullyQualifiedName, "hard", hard)
	return nil
}

// refreshGroupSnapshot republishes a group's aggregate search view. Failures
// are logged and swallowed; the snapshot is a derived view of authoritative
// state.
func (s *Service) refreshGroupSnapshot(ctx context.Context, group domain.CheckGroup) {
	if s.index == nil {
		return
	}

	ends, err := s.edges.Targets(ctx, group.ID, domain.KindCheckGroup, domain.EdgeContains, domain.KindCheck)
	if err != nil {
		s.log.Warn("failed to list group members for snapshot", "group", group.FullyQualifiedName, "error", err)
		return
	}
	ids := make([]uuid.UUID, len(ends))
	for i, end := range ends {
		ids[i] = end.ID
	}
	members, err := s.checks.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("failed to load group members for snapshot", "group", group.FullyQualifiedName, "error", err)
		return
	}

	snapshot := search.GroupSnapshot{
		Group:      group.Reference(),
		Executable: group.Executable,
		Checks:     make([]search.CheckSummary, len(members)),
		UpdatedAt:  s.now().UnixMilli(),
	}
	for i, member := range members {
		snapshot.Checks[i] = search.CheckSummary{
			ID:                 member.ID.String(),
			Name:               member.Name,
			FullyQualifiedName: member.FullyQualifiedName,
			Status:             member.Status,
		}
	}
	if err := s.index.IndexGroupSnapshot(ctx, snapshot); err != nil {
		s.log.Warn("failed to publish group snapshot", "group", group.FullyQualifiedName, "error", err)
	}
}

func containsEdge(sourceID uuid.UUID, sourceKind domain.EntityKind, checkID uuid.UUID) domain.Edge {
	return domain.Edge{
		SourceID:   sourceID,
		TargetID:   checkID,
		SourceKind: sourceKind,
		TargetKind: domain.KindCheck,
		Type:       domain.EdgeContains,
	}
}
