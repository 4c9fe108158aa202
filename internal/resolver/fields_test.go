package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository/memory"

	"github.com/google/uuid"
)

type fakeSearcher struct {
	result *domain.CheckResult
	err    error
	calls  int
}

func (f *fakeSearcher) LatestResult(_ context.Context, _ string) (*domain.CheckResult, error) {
	f.calls++
	return f.result, f.err
}

type fixture struct {
	resolver    *Resolver
	edges       *memory.EdgeStore
	groups      *memory.GroupStore
	definitions *memory.DefinitionStore
	tables      *memory.TableStore
	results     *memory.ResultStore
	search      *fakeSearcher
	check       domain.Check
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		edges:       memory.NewEdgeStore(),
		groups:      memory.NewGroupStore(),
		definitions: memory.NewDefinitionStore(),
		tables:      memory.NewTableStore(),
		results:     memory.NewResultStore(),
		search:      &fakeSearcher{},
	}
	f.resolver = New(f.edges, f.groups, f.definitions, f.tables, f.results, f.search, logger.NewNop())
	f.check = domain.Check{
		ID:         uuid.New(),
		Name:       "row_count_between",
		EntityLink: "<#E::table::warehouse.orders>",
	}
	if err := f.check.SetFullyQualifiedName(); err != nil {
		t.Fatalf("SetFullyQualifiedName: %v", err)
	}
	return f
}

func (f *fixture) addGroup(t *testing.T, name string, executable bool) domain.CheckGroup {
	t.Helper()
	group, err := f.groups.Create(context.Background(), domain.CheckGroup{
		Name:               name,
		FullyQualifiedName: name,
		Executable:         executable,
		ChangeDescription:  &domain.ChangeDescription{PreviousVersion: 1},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := f.edges.Add(context.Background(), domain.Edge{
		SourceID:   group.ID,
		TargetID:   f.check.ID,
		SourceKind: domain.KindCheckGroup,
		TargetKind: domain.KindCheck,
		Type:       domain.EdgeContains,
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	return group
}

func TestExecutableGroup_ExactlyOne(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "orders_logical", false)
	want := f.addGroup(t, "orders_suite", true)

	got, err := f.resolver.ExecutableGroup(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("ExecutableGroup returned error: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("got group %s, want %s", got.Name, want.Name)
	}
}

func TestExecutableGroup_NoneIsIntegrityError(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "orders_logical", false)

	_, err := f.resolver.ExecutableGroup(context.Background(), &f.check)
	var integrityErr *domain.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("got %v, want IntegrityError", err)
	}
}

func TestExecutableGroup_MultipleIsIntegrityError(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "orders_suite", true)
	f.addGroup(t, "second_suite", true)

	_, err := f.resolver.ExecutableGroup(context.Background(), &f.check)
	var integrityErr *domain.IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("got %v, want IntegrityError", err)
	}
}

func TestAllGroups_IncludesExecutableAndLogical(t *testing.T) {
	f := newFixture(t)
	f.addGroup(t, "orders_suite", true)
	f.addGroup(t, "orders_logical", false)

	groups, err := f.resolver.AllGroups(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("AllGroups returned error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	for _, group := range groups {
		if !group.Inherited {
			t.Errorf("group %s not marked inherited", group.Name)
		}
		if group.ChangeDescription != nil {
			t.Errorf("group %s kept its change history", group.Name)
		}
	}
}

func TestDefinition_NotLinked(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Definition(context.Background(), &f.check)
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestDefinition_Linked(t *testing.T) {
	f := newFixture(t)
	definition, err := f.definitions.Create(context.Background(), domain.CheckDefinition{
		Name:               "tableRowCountToBeBetween",
		FullyQualifiedName: "tableRowCountToBeBetween",
	})
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}
	if err := f.edges.Add(context.Background(), domain.Edge{
		SourceID:   definition.ID,
		TargetID:   f.check.ID,
		SourceKind: domain.KindCheckDefinition,
		TargetKind: domain.KindCheck,
		Type:       domain.EdgeContains,
	}); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	got, err := f.resolver.Definition(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("Definition returned error: %v", err)
	}
	if got.ID != definition.ID {
		t.Errorf("got definition %s, want %s", got.Name, definition.Name)
	}
}

func TestLatestResult_EmbeddedWins(t *testing.T) {
	f := newFixture(t)
	embedded := &domain.CheckResult{Timestamp: 100, Status: domain.CheckStatusFailed}
	f.check.LatestResult = embedded

	got, err := f.resolver.LatestResult(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("LatestResult returned error: %v", err)
	}
	if got != embedded {
		t.Errorf("embedded result was not returned unchanged")
	}
	if f.search.calls != 0 {
		t.Errorf("search store was consulted despite an embedded result")
	}
}

func TestLatestResult_SearchHit(t *testing.T) {
	f := newFixture(t)
	f.search.result = &domain.CheckResult{Timestamp: 200, Status: domain.CheckStatusSuccess}

	got, err := f.resolver.LatestResult(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("LatestResult returned error: %v", err)
	}
	if got == nil || got.Timestamp != 200 {
		t.Fatalf("got %+v, want search store result", got)
	}
}

func TestLatestResult_SearchFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.search.err = errors.New("connection refused")
	if err := f.results.Append(context.Background(), f.check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 300,
		Status:    domain.CheckStatusFailed,
	}); err != nil {
		t.Fatalf("append result: %v", err)
	}

	got, err := f.resolver.LatestResult(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("LatestResult returned error: %v", err)
	}
	if got == nil || got.Timestamp != 300 {
		t.Fatalf("got %+v, want time-series fallback result", got)
	}
	if f.search.calls != 1 {
		t.Errorf("search store was called %d times, want 1", f.search.calls)
	}
}

func TestLatestResult_NoneRecorded(t *testing.T) {
	f := newFixture(t)
	f.search.err = errors.New("connection refused")

	got, err := f.resolver.LatestResult(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("LatestResult returned error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for a never-run check", got)
	}
}

func TestOpenIncident(t *testing.T) {
	f := newFixture(t)
	incidentID := uuid.New()
	for _, result := range []domain.CheckResult{
		{Timestamp: 100, Status: domain.CheckStatusSuccess},
		{Timestamp: 200, Status: domain.CheckStatusFailed, IncidentID: &incidentID},
	} {
		if err := f.results.Append(context.Background(), f.check.FullyQualifiedName, result); err != nil {
			t.Fatalf("append result: %v", err)
		}
	}

	got, err := f.resolver.OpenIncident(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("OpenIncident returned error: %v", err)
	}
	if got == nil || *got != incidentID {
		t.Fatalf("got %v, want %s", got, incidentID)
	}
}

func TestOpenIncident_LatestResultClean(t *testing.T) {
	f := newFixture(t)
	incidentID := uuid.New()
	for _, result := range []domain.CheckResult{
		{Timestamp: 100, Status: domain.CheckStatusFailed, IncidentID: &incidentID},
		{Timestamp: 200, Status: domain.CheckStatusSuccess},
	} {
		if err := f.results.Append(context.Background(), f.check.FullyQualifiedName, result); err != nil {
			t.Fatalf("append result: %v", err)
		}
	}

	got, err := f.resolver.OpenIncident(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("OpenIncident returned error: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil when the latest result carries no incident", got)
	}
}

func TestPopulate_ClearsUnrequestedFields(t *testing.T) {
	f := newFixture(t)
	group := f.addGroup(t, "orders_suite", true)
	incidentID := uuid.New()
	f.check.Groups = []domain.CheckGroup{{Name: "stale"}}
	f.check.IncidentID = &incidentID
	f.check.Owners = []domain.EntityReference{{Name: "stale-owner"}}
	f.check.Tags = []domain.TagLabel{{TagFQN: "Stale.Tag"}}

	if err := f.resolver.Populate(context.Background(), &f.check, domain.NewFieldSet(domain.FieldGroup)); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	if f.check.Group == nil || f.check.Group.ID != group.ID {
		t.Errorf("requested group was not populated")
	}
	if f.check.Groups != nil {
		t.Errorf("unrequested groups field was not cleared")
	}
	if f.check.IncidentID != nil {
		t.Errorf("unrequested incident field was not cleared")
	}
	if f.check.Owners != nil {
		t.Errorf("unrequested owners field was not cleared")
	}
	if f.check.Tags != nil {
		t.Errorf("unrequested tags field was not cleared")
	}
}

func TestPopulate_InheritsOwnersAndDomain(t *testing.T) {
	f := newFixture(t)
	owner := domain.EntityReference{ID: uuid.New(), Kind: domain.KindUser, Name: "data-platform"}
	tableDomain := domain.EntityReference{ID: uuid.New(), Kind: domain.KindDomain, Name: "Sales"}
	f.tables.Put(domain.Table{
		FullyQualifiedName: "warehouse.orders",
		Owners:             []domain.EntityReference{owner},
		Domain:             &tableDomain,
	})

	fields := domain.NewFieldSet(domain.FieldOwners, domain.FieldDomain)
	if err := f.resolver.Populate(context.Background(), &f.check, fields); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	if len(f.check.Owners) != 1 || f.check.Owners[0].ID != owner.ID {
		t.Fatalf("owners not inherited: %+v", f.check.Owners)
	}
	if !f.check.Owners[0].Inherited {
		t.Errorf("inherited owner not marked as inherited")
	}
	if f.check.Domain == nil || f.check.Domain.ID != tableDomain.ID || !f.check.Domain.Inherited {
		t.Errorf("domain not inherited: %+v", f.check.Domain)
	}
}

func TestPopulate_OwnOwnersNotOverridden(t *testing.T) {
	f := newFixture(t)
	f.tables.Put(domain.Table{
		FullyQualifiedName: "warehouse.orders",
		Owners:             []domain.EntityReference{{ID: uuid.New(), Name: "table-owner"}},
	})
	own := domain.EntityReference{ID: uuid.New(), Name: "check-owner"}
	f.check.Owners = []domain.EntityReference{own}

	if err := f.resolver.Populate(context.Background(), &f.check, domain.NewFieldSet(domain.FieldOwners)); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	if len(f.check.Owners) != 1 || f.check.Owners[0].ID != own.ID {
		t.Fatalf("check's own owners were replaced: %+v", f.check.Owners)
	}
	if f.check.Owners[0].Inherited {
		t.Errorf("check's own owner wrongly marked as inherited")
	}
}

func TestPopulate_ColumnLinkMergesColumnTags(t *testing.T) {
	f := newFixture(t)
	f.check.EntityLink = "<#E::table::warehouse.orders::columns::email>"
	if err := f.check.SetFullyQualifiedName(); err != nil {
		t.Fatalf("SetFullyQualifiedName: %v", err)
	}
	f.tables.Put(domain.Table{
		FullyQualifiedName: "warehouse.orders",
		Tags:               []domain.TagLabel{{TagFQN: "Tier.Gold"}},
		Columns: []domain.Column{
			{Name: "email", Tags: []domain.TagLabel{{TagFQN: "PII.Sensitive"}}},
			{Name: "id"},
		},
	})

	if err := f.resolver.Populate(context.Background(), &f.check, domain.NewFieldSet(domain.FieldTags)); err != nil {
		t.Fatalf("Populate returned error: %v", err)
	}

	if len(f.check.Tags) != 2 {
		t.Fatalf("got %d tags, want table tag plus column tag: %+v", len(f.check.Tags), f.check.Tags)
	}
	found := map[string]bool{}
	for _, tag := range f.check.Tags {
		found[tag.TagFQN] = true
	}
	if !found["Tier.Gold"] || !found["PII.Sensitive"] {
		t.Errorf("missing expected tags: %+v", f.check.Tags)
	}
}
