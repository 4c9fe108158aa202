// Package resolver reconstructs a check's derived fields from directed typed
// edges and the linked parent entity.
package resolver

import (
	"context"
	"fmt"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"

	"github.com/google/uuid"
)

// ResultSearcher is the search-optimized read path for latest results. It may
// fail or return stale data; the resolver never treats its failure as fatal.
type ResultSearcher interface {
	LatestResult(ctx context.Context, fqn string) (*domain.CheckResult, error)
}

// Resolver populates requested derived fields on a check. Unrequested fields
// are explicitly cleared so serialized output exactly reflects intent.
type Resolver struct {
	edges       repository.EdgeStore
	groups      repository.GroupRepository
	definitions repository.DefinitionRepository
	tables      repository.TableRepository
	results     repository.ResultStore
	search      ResultSearcher
	log         *logger.Logger
}

// New wires a resolver with its required stores.
func New(
	edges repository.EdgeStore,
	groups repository.GroupRepository,
	definitions repository.DefinitionRepository,
	tables repository.TableRepository,
	results repository.ResultStore,
	search ResultSearcher,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		edges:       edges,
		groups:      groups,
		definitions: definitions,
		tables:      tables,
		results:     results,
		search:      search,
		log:         log.With("component", "resolver"),
	}
}

// Populate fills in the requested derived fields and clears the rest.
func (r *Resolver) Populate(ctx context.Context, check *domain.Check, fields domain.FieldSet) error {
	if fields.Contains(domain.FieldGroups) {
		groups, err := r.AllGroups(ctx, check)
		if err != nil {
			return err
		}
		check.Groups = groups
	} else {
		check.Groups = nil
	}

	if fields.Contains(domain.FieldGroup) {
		group, err := r.ExecutableGroup(ctx, check)
		if err != nil {
			return err
		}
		ref := group.Reference()
		check.Group = &ref
	} else {
		check.Group = nil
	}

	if fields.Contains(domain.FieldDefinition) {
		definition, err := r.Definition(ctx, check)
		if err != nil {
			return err
		}
		ref := definition.Reference()
		check.Definition = &ref
	} else {
		check.Definition = nil
	}

	if fields.Contains(domain.FieldLatestResult) {
		result, err := r.LatestResult(ctx, check)
		if err != nil {
			return err
		}
		check.LatestResult = result
	} else {
		check.LatestResult = nil
	}

	if fields.Contains(domain.FieldIncident) {
		incidentID, err := r.OpenIncident(ctx, check)
		if err != nil {
			return err
		}
		check.IncidentID = incidentID
	} else {
		check.IncidentID = nil
	}

	return r.applyInherited(ctx, check, fields)
}

// ExecutableGroup returns the single executable group containing the check.
// Zero or more than one executable group is a data-integrity violation.
func (r *Resolver) ExecutableGroup(ctx context.Context, check *domain.Check) (domain.CheckGroup, error) {
	ends, err := r.edges.Sources(ctx, check.ID, domain.KindCheck, domain.EdgeContains, domain.KindCheckGroup)
	if err != nil {
		return domain.CheckGroup{}, err
	}

	var executable []domain.CheckGroup
	for _, end := range ends {
		group, err := r.groups.GetByID(ctx, end.ID)
		if err != nil {
			return domain.CheckGroup{}, err
		}
		if group.Executable {
			executable = append(executable, group)
		}
	}

	switch len(executable) {
	case 0:
		return domain.CheckGroup{}, domain.NewIntegrityError(
			"no executable group found for check %s", check.Name)
	case 1:
		return executable[0], nil
	default:
		return domain.CheckGroup{}, domain.NewIntegrityError(
			"%d executable groups found for check %s, expected exactly one", len(executable), check.Name)
	}
}

// AllGroups returns every group containing the check, executable and logical,
// each annotated as inherited with its change history stripped.
func (r *Resolver) AllGroups(ctx context.Context, check *domain.Check) ([]domain.CheckGroup, error) {
	ends, err := r.edges.Sources(ctx, check.ID, domain.KindCheck, domain.EdgeContains, domain.KindCheckGroup)
	if err != nil {
		return nil, err
	}

	groups := make([]domain.CheckGroup, 0, len(ends))
	for _, end := range ends {
		group, err := r.groups.GetByID(ctx, end.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group.AsInherited())
	}

	return groups, nil
}

// Definition returns the single definition linked to the check.
func (r *Resolver) Definition(ctx context.Context, check *domain.Check) (domain.CheckDefinition, error) {
	ends, err := r.edges.Sources(ctx, check.ID, domain.KindCheck, domain.EdgeContains, domain.KindCheckDefinition)
	if err != nil {
		return domain.CheckDefinition{}, err
	}
	if len(ends) == 0 {
		return domain.CheckDefinition{}, fmt.Errorf("definition for check %s: %w", check.Name, domain.ErrNotFound)
	}

	return r.definitions.GetByID(ctx, ends[0].ID)
}

// LatestResult returns the most recent result for the check. A result already
// embedded on the check (from a denormalized read path) is returned unchanged.
// Otherwise the search store is tried first and the time-series store serves
// as the authoritative fallback; search-store staleness or unavailability must
// never block basic result visibility.
func (r *Resolver) LatestResult(ctx context.Context, check *domain.Check) (*domain.CheckResult, error) {
	if check.LatestResult != nil {
		return check.LatestResult, nil
	}

	if result, ok := r.tryLatestFromSearch(ctx, check.FullyQualifiedName); ok {
		return result, nil
	}

	return r.results.Latest(ctx, check.FullyQualifiedName)
}

func (r *Resolver) tryLatestFromSearch(ctx context.Context, fqn string) (*domain.CheckResult, bool) {
	if r.search == nil {
		return nil, false
	}
	result, err := r.search.LatestResult(ctx, fqn)
	if err != nil {
		r.log.Debug("latest result lookup from search store failed, falling back to time series store",
			"fqn", fqn, "error", err)
		return nil, false
	}
	return result, true
}

// OpenIncident returns the stateId of the ongoing incident, if the latest
// result carries one. This is the sole signal for an unresolved incident.
func (r *Resolver) OpenIncident(ctx context.Context, check *domain.Check) (*uuid.UUID, error) {
	latest, err := r.results.Latest(ctx, check.FullyQualifiedName)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return latest.IncidentID, nil
}

// applyInherited loads the parent entity and inherits owners, domain and tags
// onto the check for the requested fields.
func (r *Resolver) applyInherited(ctx context.Context, check *domain.Check, fields domain.FieldSet) error {
	wantsOwners := fields.Contains(domain.FieldOwners)
	wantsDomain := fields.Contains(domain.FieldDomain)
	wantsTags := fields.Contains(domain.FieldTags)

	if !wantsOwners {
		check.Owners = nil
	}
	if !wantsDomain {
		check.Domain = nil
	}
	if !wantsTags {
		check.Tags = nil
	}
	if !wantsOwners && !wantsDomain && !wantsTags {
		return nil
	}

	link, err := domain.ParseEntityLink(check.EntityLink)
	if err != nil {
		return err
	}
	table, err := r.tables.GetByName(ctx, link.EntityFQN)
	if err != nil {
		return err
	}

	if wantsOwners && len(check.Owners) == 0 {
		check.Owners = inheritedRefs(table.Owners)
	}
	if wantsDomain && check.Domain == nil && table.Domain != nil {
		inherited := *table.Domain
		inherited.Inherited = true
		check.Domain = &inherited
	}
	if wantsTags {
		tags := append([]domain.TagLabel{}, table.Tags...)
		if link.IsColumnLink() {
			if column, ok := table.Column(link.ArrayFieldName); ok {
				tags = append(tags, column.Tags...)
			}
		}
		check.Tags = tags
	}

	return nil
}

func inheritedRefs(refs []domain.EntityReference) []domain.EntityReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]domain.EntityReference, len(refs))
	for i, ref := range refs {
		ref.Inherited = true
		out[i] = ref
	}
	return out
}
