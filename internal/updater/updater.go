// Package updater applies incoming check revisions over the stored record,
// producing a field-level change description and keeping relationship edges
// in sync with the revised parent link.
package updater

import (
	"context"
	"fmt"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"
	"github.com/rmorley/dqcheck/internal/resolver"
	"github.com/rmorley/dqcheck/internal/validation"

	"github.com/google/uuid"
)

// Operation selects the merge semantics of an update.
type Operation string

const (
	// OperationReplace treats the incoming check as the full desired state.
	// Optional fields absent from it are removed from the stored record.
	OperationReplace Operation = "replace"
	// OperationPatch only overwrites fields the incoming check carries.
	OperationPatch Operation = "patch"
)

// Updater merges check revisions and records what changed between versions.
type Updater struct {
	edges       repository.EdgeStore
	tables      repository.TableRepository
	groups      repository.GroupRepository
	definitions repository.DefinitionRepository
	resolver    *resolver.Resolver
	validator   *validation.ParameterValidator
	log         *logger.Logger
}

// New wires an updater with its required collaborators.
func New(
	edges repository.EdgeStore,
	tables repository.TableRepository,
	groups repository.GroupRepository,
	definitions repository.DefinitionRepository,
	fieldResolver *resolver.Resolver,
	validator *validation.ParameterValidator,
	log *logger.Logger,
) *Updater {
	return &Updater{
		edges:       edges,
		tables:      tables,
		groups:      groups,
		definitions: definitions,
		resolver:    fieldResolver,
		validator:   validator,
		log:         log.With("component", "updater"),
	}
}

// Apply merges updated over original per the operation's semantics. When any
// tracked field differs the returned check carries a bumped version and a
// change description; otherwise the original is returned untouched. Parameter
// revisions are re-validated against the check's definition, a revised parent
// link resyncs the ownership edge, and a revision naming a different group or
// definition moves the corresponding containment edge.
func (u *Updater) Apply(
	ctx context.Context,
	original, updated domain.Check,
	operation Operation,
	updatedBy string,
) (domain.Check, error) {
	if operation == OperationPatch {
		carryOver(&updated, original)
	}

	merged := original
	merged.Description = updated.Description
	merged.ParameterValues = updated.ParameterValues
	merged.InspectionQuery = updated.InspectionQuery
	merged.ComputePassedFailedRowCount = updated.ComputePassedFailedRowCount
	merged.UseDynamicAssertion = updated.UseDynamicAssertion
	merged.Status = updated.Status
	merged.EntityLink = updated.EntityLink

	tracker := domain.NewChangeTracker(original.Version)
	tracker.RecordChange("description", original.Description, merged.Description)
	tracker.RecordChange("parameterValues", original.ParameterValues, merged.ParameterValues)
	tracker.RecordChange("inspectionQuery", original.InspectionQuery, merged.InspectionQuery)
	tracker.RecordChange("computePassedFailedRowCount", original.ComputePassedFailedRowCount, merged.ComputePassedFailedRowCount)
	tracker.RecordChange("useDynamicAssertion", original.UseDynamicAssertion, merged.UseDynamicAssertion)
	tracker.RecordChange("status", original.Status, merged.Status)
	tracker.RecordChange("entityLink", original.EntityLink, merged.EntityLink)

	groupMove, err := u.planGroupMove(ctx, original, updated.Group, tracker)
	if err != nil {
		return domain.Check{}, err
	}
	definitionMove, err := u.planDefinitionMove(ctx, original, updated.Definition, tracker)
	if err != nil {
		return domain.Check{}, err
	}

	if !tracker.Changed() {
		return original, nil
	}

	if parametersChanged(original.ParameterValues, merged.ParameterValues) || definitionMove != nil {
		parameters, err := u.parameterSchema(ctx, &merged, definitionMove)
		if err != nil {
			return domain.Check{}, err
		}
		if err := u.validator.Validate(merged.ParameterValues, parameters); err != nil {
			return domain.Check{}, err
		}
	}

	if merged.EntityLink != original.EntityLink {
		if err := u.resyncParentEdge(ctx, original, &merged); err != nil {
			return domain.Check{}, err
		}
	}

	if groupMove != nil {
		if err := u.moveContainsEdge(ctx, merged.ID, groupMove.fromID, groupMove.toID, domain.KindCheckGroup); err != nil {
			return domain.Check{}, err
		}
		merged.Group = &groupMove.toRef
		u.log.Info("moved check to a new executable group",
			"check", merged.Name, "group", groupMove.toRef.FullyQualifiedName)
	}
	if definitionMove != nil {
		if err := u.moveContainsEdge(ctx, merged.ID, definitionMove.fromID, definitionMove.toID, domain.KindCheckDefinition); err != nil {
			return domain.Check{}, err
		}
		merged.Definition = &definitionMove.toRef
		u.log.Info("relinked check to a new definition",
			"check", merged.Name, "definition", definitionMove.toRef.FullyQualifiedName)
	}

	merged.Version = original.Version + 1
	merged.ChangeDescription = tracker.Description()
	merged.UpdatedBy = updatedBy
	return merged, nil
}

// edgeMove is a planned containment-edge replacement, resolved before any
// write so a bad reference leaves the stored relationships intact.
type edgeMove struct {
	fromID uuid.UUID
	toID   uuid.UUID
	toRef  domain.EntityReference
	// parameters holds the target definition's schema when the move changes
	// the definition, so revised values validate against it.
	parameters []domain.ParameterDefinition
}

// planGroupMove resolves a revision's group reference against the currently
// owning executable group. A nil reference means the relationship is
// untouched; naming a non-executable group is a validation error.
func (u *Updater) planGroupMove(
	ctx context.Context,
	original domain.Check,
	ref *domain.EntityReference,
	tracker *domain.ChangeTracker,
) (*edgeMove, error) {
	if ref == nil {
		return nil, nil
	}
	current, err := u.resolver.ExecutableGroup(ctx, &original)
	if err != nil {
		return nil, err
	}
	target, err := u.lookupGroup(ctx, *ref)
	if err != nil {
		return nil, fmt.Errorf("resolving revised group: %w", err)
	}
	if target.ID == current.ID {
		return nil, nil
	}
	if !target.Executable {
		return nil, domain.NewValidationError("group", target.FullyQualifiedName,
			"a check's owning group must be executable")
	}
	tracker.RecordChange("group", current.Reference(), target.Reference())
	return &edgeMove{fromID: current.ID, toID: target.ID, toRef: target.Reference()}, nil
}

// planDefinitionMove resolves a revision's definition reference against the
// currently linked definition. A nil reference means no change.
func (u *Updater) planDefinitionMove(
	ctx context.Context,
	original domain.Check,
	ref *domain.EntityReference,
	tracker *domain.ChangeTracker,
) (*edgeMove, error) {
	if ref == nil {
		return nil, nil
	}
	current, err := u.resolver.Definition(ctx, &original)
	if err != nil {
		return nil, err
	}
	target, err := u.lookupDefinition(ctx, *ref)
	if err != nil {
		return nil, fmt.Errorf("resolving revised definition: %w", err)
	}
	if target.ID == current.ID {
		return nil, nil
	}
	tracker.RecordChange("definition", current.Reference(), target.Reference())
	return &edgeMove{
		fromID:     current.ID,
		toID:       target.ID,
		toRef:      target.Reference(),
		parameters: target.Parameters,
	}, nil
}

func (u *Updater) parameterSchema(
	ctx context.Context,
	merged *domain.Check,
	definitionMove *edgeMove,
) ([]domain.ParameterDefinition, error) {
	if definitionMove != nil {
		return definitionMove.parameters, nil
	}
	definition, err := u.resolver.Definition(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("resolving definition for parameter validation: %w", err)
	}
	return definition.Parameters, nil
}

func (u *Updater) moveContainsEdge(ctx context.Context, checkID, fromID, toID uuid.UUID, kind domain.EntityKind) error {
	if err := u.edges.Remove(ctx, containsEdge(fromID, kind, checkID)); err != nil {
		return err
	}
	return u.edges.Add(ctx, containsEdge(toID, kind, checkID))
}

func (u *Updater) lookupGroup(ctx context.Context, ref domain.EntityReference) (domain.CheckGroup, error) {
	if ref.ID != uuid.Nil {
		return u.groups.GetByID(ctx, ref.ID)
	}
	return u.groups.GetByName(ctx, ref.FullyQualifiedName)
}

func (u *Updater) lookupDefinition(ctx context.Context, ref domain.EntityReference) (domain.CheckDefinition, error) {
	if ref.ID != uuid.Nil {
		return u.definitions.GetByID(ctx, ref.ID)
	}
	return u.definitions.GetByName(ctx, ref.FullyQualifiedName)
}

// carryOver fills fields the patch left unset from the stored record.
func carryOver(updated *domain.Check, original domain.Check) {
	if updated.Description == "" {
		updated.Description = original.Description
	}
	if updated.ParameterValues == nil {
		updated.ParameterValues = original.ParameterValues
	}
	if updated.InspectionQuery == "" {
		updated.InspectionQuery = original.InspectionQuery
	}
	if updated.ComputePassedFailedRowCount == nil {
		updated.ComputePassedFailedRowCount = original.ComputePassedFailedRowCount
	}
	if updated.UseDynamicAssertion == nil {
		updated.UseDynamicAssertion = original.UseDynamicAssertion
	}
	if updated.Status == "" {
		updated.Status = original.Status
	}
	if updated.EntityLink == "" {
		updated.EntityLink = original.EntityLink
	}
}

func parametersChanged(oldValues, newValues []domain.ParameterValue) bool {
	if len(oldValues) != len(newValues) {
		return true
	}
	for i := range oldValues {
		if oldValues[i] != newValues[i] {
			return true
		}
	}
	return false
}

// resyncParentEdge moves the ownership edge from the old parent table to the
// one the revised entity link names, and recomputes the check's FQN to match.
// The old edge is removed only after the new link resolves, so a bad link
// leaves the stored relationship intact.
func (u *Updater) resyncParentEdge(ctx context.Context, original domain.Check, merged *domain.Check) error {
	oldLink, err := domain.ParseEntityLink(original.EntityLink)
	if err != nil {
		return err
	}
	newLink, err := domain.ParseEntityLink(merged.EntityLink)
	if err != nil {
		return err
	}

	newTable, err := u.tables.GetByName(ctx, newLink.EntityFQN)
	if err != nil {
		return fmt.Errorf("resolving revised parent entity: %w", err)
	}

	if err := merged.SetFullyQualifiedName(); err != nil {
		return err
	}

	if oldLink.EntityFQN != newLink.EntityFQN {
		oldTable, err := u.tables.GetByName(ctx, oldLink.EntityFQN)
		if err == nil {
			if err := u.edges.Remove(ctx, parentEdge(oldTable.ID, merged.ID)); err != nil {
				return err
			}
		} else if !domain.IsNotFound(err) {
			return err
		}
		if err := u.edges.Add(ctx, parentEdge(newTable.ID, merged.ID)); err != nil {
			return err
		}
		u.log.Info("moved check to a new parent entity",
			"check", merged.Name, "from", oldLink.EntityFQN, "to", newLink.EntityFQN)
	}

	return nil
}

func parentEdge(tableID, checkID uuid.UUID) domain.Edge {
	return domain.Edge{
		SourceID:   tableID,
		TargetID:   checkID,
		SourceKind: domain.KindTable,
		TargetKind: domain.KindCheck,
		Type:       domain.EdgeHas,
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
