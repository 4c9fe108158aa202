package checks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository/memory"
	"github.com/rmorley/dqcheck/internal/resolver"
	"github.com/rmorley/dqcheck/internal/search"
	"github.com/rmorley/dqcheck/internal/updater"
	"github.com/rmorley/dqcheck/internal/validation"
	"github.com/rmorley/dqcheck/internal/workflow"

	"github.com/google/uuid"
)

// fakeIndex records index traffic so tests can assert on search-view sync.
type fakeIndex struct {
	mu        sync.Mutex
	results   map[string]domain.CheckResult
	snapshots map[string]search.GroupSnapshot
	deleted   []string
	fail      bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		results:   map[string]domain.CheckResult{},
		snapshots: map[string]search.GroupSnapshot{},
	}
}

func (f *fakeIndex) IndexResult(_ context.Context, fqn string, result domain.CheckResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("index unavailable")
	}
	f.results[fqn] = result
	return nil
}

func (f *fakeIndex) IndexGroupSnapshot(_ context.Context, snapshot search.GroupSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("index unavailable")
	}
	f.snapshots[snapshot.Group.FullyQualifiedName] = snapshot
	return nil
}

func (f *fakeIndex) DeleteCheck(_ context.Context, fqn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("index unavailable")
	}
	f.deleted = append(f.deleted, fqn)
	return nil
}

type fixture struct {
	service     *Service
	checks      *memory.CheckStore
	groups      *memory.GroupStore
	definitions *memory.DefinitionStore
	tables      *memory.TableStore
	edges       *memory.EdgeStore
	results     *memory.ResultStore
	statuses    *memory.ResolutionStatusStore
	extensions  *memory.ExtensionStore
	index       *fakeIndex
	suite       domain.CheckGroup
	logical     domain.CheckGroup
	definition  domain.CheckDefinition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		checks:      memory.NewCheckStore(),
		groups:      memory.NewGroupStore(),
		definitions: memory.NewDefinitionStore(),
		tables:      memory.NewTableStore(),
		edges:       memory.NewEdgeStore(),
		results:     memory.NewResultStore(),
		statuses:    memory.NewResolutionStatusStore(),
		extensions:  memory.NewExtensionStore(),
		index:       newFakeIndex(),
	}

	log := logger.NewNop()
	fieldResolver := resolver.New(f.edges, f.groups, f.definitions, f.tables, f.results, nil, log)
	validator := validation.NewParameterValidator(log)

	f.service = NewService(Deps{
		Checks:      f.checks,
		Groups:      f.groups,
		Definitions: f.definitions,
		Tables:      f.tables,
		Edges:       f.edges,
		Results:     f.results,
		Statuses:    f.statuses,
		Extensions:  f.extensions,
		Resolver:    fieldResolver,
		Updater:     updater.New(f.edges, f.tables, f.groups, f.definitions, fieldResolver, validator, log),
		Validator:   validator,
		Incidents:   workflow.NewIncidentWorkflow(f.checks, f.statuses, log),
		Index:       f.index,
		Log:         log,
	})

	f.tables.Put(domain.Table{ID: uuid.New(), FullyQualifiedName: "warehouse.orders"})

	ctx := context.Background()
	var err error
	f.suite, err = f.groups.Create(ctx, domain.CheckGroup{
		Name: "orders_suite", FullyQualifiedName: "orders_suite", Executable: true,
	})
	if err != nil {
		t.Fatalf("create suite: %v", err)
	}
	f.logical, err = f.groups.Create(ctx, domain.CheckGroup{
		Name: "finance_checks", FullyQualifiedName: "finance_checks",
	})
	if err != nil {
		t.Fatalf("create logical group: %v", err)
	}
	f.definition, err = f.definitions.Create(ctx, domain.CheckDefinition{
		Name:               "tableRowCountToBeBetween",
		FullyQualifiedName: "tableRowCountToBeBetween",
		Parameters: []domain.ParameterDefinition{
			{Name: "minValue", Required: true},
			{Name: "maxValue"},
		},
	})
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}
	return f
}

func (f *fixture) createCheck(t *testing.T) domain.Check {
	t.Helper()
	check, err := f.service.Create(context.Background(), CreateRequest{
		Name:            "row_count_between",
		EntityLink:      "<#E::table::warehouse.orders>",
		GroupFQN:        "orders_suite",
		DefinitionFQN:   "tableRowCountToBeBetween",
		ParameterValues: []domain.ParameterValue{{Name: "minValue", Value: "10"}},
	})
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	return check
}

func TestCreate_LinksEdgesAndComputesFQN(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	if check.FullyQualifiedName != "warehouse.orders.row_count_between" {
		t.Errorf("got FQN %q", check.FullyQualifiedName)
	}
	if check.Version != 1 {
		t.Errorf("got version %d, want 1", check.Version)
	}

	var contains, has int
	for _, edge := range f.edges.Edges() {
		switch edge.Type {
		case domain.EdgeContains:
			contains++
		case domain.EdgeHas:
			has++
		}
	}
	if contains != 2 {
		t.Errorf("got %d CONTAINS edges, want group and definition", contains)
	}
	if has != 1 {
		t.Errorf("got %d HAS edges, want parent link", has)
	}

	snapshot, ok := f.index.snapshots["orders_suite"]
	if !ok {
		t.Fatal("group snapshot not refreshed on create")
	}
	if len(snapshot.Checks) != 1 || snapshot.Checks[0].FullyQualifiedName != check.FullyQualifiedName {
		t.Errorf("snapshot members wrong: %+v", snapshot.Checks)
	}
}

func TestCreate_RejectsLogicalGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), CreateRequest{
		Name:            "row_count_between",
		EntityLink:      "<#E::table::warehouse.orders>",
		GroupFQN:        "finance_checks",
		DefinitionFQN:   "tableRowCountToBeBetween",
		ParameterValues: []domain.ParameterValue{{Name: "minValue", Value: "10"}},
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestCreate_RejectsMissingRequiredParameter(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), CreateRequest{
		Name:            "row_count_between",
		EntityLink:      "<#E::table::warehouse.orders>",
		GroupFQN:        "orders_suite",
		DefinitionFQN:   "tableRowCountToBeBetween",
		ParameterValues: []domain.ParameterValue{{Name: "maxValue", Value: "10"}},
	})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestCreate_RejectsUnknownParent(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), CreateRequest{
		Name:          "row_count_between",
		EntityLink:    "<#E::table::warehouse.missing>",
		GroupFQN:      "orders_suite",
		DefinitionFQN: "tableRowCountToBeBetween",
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestGet_PopulatesRequestedFields(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	got, err := f.service.Get(context.Background(), check.ID,
		domain.NewFieldSet(domain.FieldGroup, domain.FieldDefinition), false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Group == nil || got.Group.ID != f.suite.ID {
		t.Errorf("group not populated: %+v", got.Group)
	}
	if got.Definition == nil || got.Definition.ID != f.definition.ID {
		t.Errorf("definition not populated: %+v", got.Definition)
	}
	if got.Groups != nil {
		t.Errorf("unrequested groups populated")
	}
}

func TestUpdate_PersistsMergedRevision(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	revision := check
	revision.ParameterValues = []domain.ParameterValue{
		{Name: "minValue", Value: "20"},
		{Name: "maxValue", Value: "100"},
	}
	got, err := f.service.Update(context.Background(), check.ID, revision, updater.OperationReplace)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Version != check.Version+1 {
		t.Errorf("got version %d, want %d", got.Version, check.Version+1)
	}

	stored, err := f.checks.GetByID(context.Background(), check.ID, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.ParameterValues) != 2 {
		t.Errorf("revision not persisted: %+v", stored.ParameterValues)
	}
	if stored.ChangeDescription == nil {
		t.Errorf("change description not persisted")
	}
}

func TestUpdate_GroupMoveRelinksEdgeAndSnapshots(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()
	second, err := f.groups.Create(ctx, domain.CheckGroup{
		Name: "orders_suite_v2", FullyQualifiedName: "orders_suite_v2", Executable: true,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	revision := check
	ref := second.Reference()
	revision.Group = &ref
	got, err := f.service.Update(ctx, check.ID, revision, updater.OperationReplace)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Version != check.Version+1 {
		t.Errorf("got version %d, want %d", got.Version, check.Version+1)
	}

	for _, edge := range f.edges.Edges() {
		if edge.Type != domain.EdgeContains || edge.SourceKind != domain.KindCheckGroup {
			continue
		}
		if edge.SourceID == f.suite.ID {
			t.Errorf("old group edge still present")
		}
		if edge.SourceID != second.ID {
			t.Errorf("unexpected group edge source %s", edge.SourceID)
		}
	}

	if members := f.index.snapshots["orders_suite"].Checks; len(members) != 0 {
		t.Errorf("old group snapshot still lists the check: %+v", members)
	}
	members := f.index.snapshots["orders_suite_v2"].Checks
	if len(members) != 1 || members[0].FullyQualifiedName != check.FullyQualifiedName {
		t.Errorf("new group snapshot wrong: %+v", members)
	}
}

func TestUpdate_MoveToLogicalGroupRejected(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	revision := check
	ref := f.logical.Reference()
	revision.Group = &ref
	_, err := f.service.Update(context.Background(), check.ID, revision, updater.OperationReplace)
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}

	stored, err := f.checks.GetByID(context.Background(), check.ID, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Version != check.Version {
		t.Errorf("rejected move bumped the version to %d", stored.Version)
	}
}

func TestSetInspectionQuery(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	got, err := f.service.SetInspectionQuery(context.Background(), check.ID, "SELECT * FROM orders WHERE amount < 0")
	if err != nil {
		t.Fatalf("SetInspectionQuery: %v", err)
	}
	if got.InspectionQuery == "" {
		t.Errorf("inspection query not set")
	}
	if len(got.ParameterValues) != 1 {
		t.Errorf("patch dropped parameter values: %+v", got.ParameterValues)
	}
}

func TestLogicalGroupMembership(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()

	if err := f.service.AddToLogicalGroups(ctx, check.ID, []string{"finance_checks"}); err != nil {
		t.Fatalf("AddToLogicalGroups: %v", err)
	}
	got, err := f.service.Get(ctx, check.ID, domain.NewFieldSet(domain.FieldGroups), false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Groups) != 2 {
		t.Fatalf("got %d groups, want suite plus logical", len(got.Groups))
	}

	if err := f.service.RemoveFromLogicalGroup(ctx, check.ID, "finance_checks"); err != nil {
		t.Fatalf("RemoveFromLogicalGroup: %v", err)
	}
	got, err = f.service.Get(ctx, check.ID, domain.NewFieldSet(domain.FieldGroups), false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Groups) != 1 {
		t.Fatalf("got %d groups after removal, want 1", len(got.Groups))
	}
}

func TestLogicalGroupMembership_RecordsChange(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()

	if err := f.service.AddToLogicalGroups(ctx, check.ID, []string{"finance_checks"}); err != nil {
		t.Fatalf("AddToLogicalGroups: %v", err)
	}
	stored, err := f.checks.GetByID(ctx, check.ID, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Version != check.Version+1 {
		t.Errorf("got version %d, want %d", stored.Version, check.Version+1)
	}
	if stored.ChangeDescription == nil {
		t.Fatal("membership change not recorded")
	}
	var recorded bool
	for _, field := range stored.ChangeDescription.FieldsUpdated {
		if field.Name == "groups" {
			recorded = true
		}
	}
	if !recorded {
		t.Errorf("groups change missing: %+v", stored.ChangeDescription)
	}

	if err := f.service.RemoveFromLogicalGroup(ctx, check.ID, "finance_checks"); err != nil {
		t.Fatalf("RemoveFromLogicalGroup: %v", err)
	}
	stored, err = f.checks.GetByID(ctx, check.ID, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Version != check.Version+2 {
		t.Errorf("got version %d after removal, want %d", stored.Version, check.Version+2)
	}
}

func TestAddToLogicalGroups_RejectsExecutable(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	second, err := f.groups.Create(context.Background(), domain.CheckGroup{
		Name: "second_suite", FullyQualifiedName: "second_suite", Executable: true,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	err = f.service.AddToLogicalGroups(context.Background(), check.ID, []string{second.FullyQualifiedName})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestRemoveFromLogicalGroup_RejectsExecutable(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	err := f.service.RemoveFromLogicalGroup(context.Background(), check.ID, "orders_suite")
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestRecordResult_FailureOpensIncident(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()

	result, err := f.service.RecordResult(ctx, check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 1000,
		Status:    domain.CheckStatusFailed,
	})
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if result.IncidentID == nil {
		t.Fatal("failed result carries no incident stateId")
	}

	second, err := f.service.RecordResult(ctx, check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 2000,
		Status:    domain.CheckStatusFailed,
	})
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if *second.IncidentID != *result.IncidentID {
		t.Errorf("second failure opened a new incident")
	}

	stored, err := f.checks.GetByName(ctx, check.FullyQualifiedName, false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != domain.CheckStatusFailed {
		t.Errorf("check status not mirrored, got %s", stored.Status)
	}
	if stored.Version != check.Version {
		t.Errorf("status mirror bumped the version to %d", stored.Version)
	}
	if _, ok := f.index.results[check.FullyQualifiedName]; !ok {
		t.Errorf("result not published to the search index")
	}
}

func TestRecordResult_SuccessCarriesNoIncident(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	result, err := f.service.RecordResult(context.Background(), check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 1000,
		Status:    domain.CheckStatusSuccess,
	})
	if err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if result.IncidentID != nil {
		t.Errorf("successful result carries an incident stateId")
	}
}

func TestRecordResult_IndexFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	f.index.fail = true

	if _, err := f.service.RecordResult(context.Background(), check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 1000,
		Status:    domain.CheckStatusSuccess,
	}); err != nil {
		t.Fatalf("RecordResult failed on an index outage: %v", err)
	}

	latest, err := f.results.Latest(context.Background(), check.FullyQualifiedName)
	if err != nil || latest == nil {
		t.Fatalf("result not in the authoritative store: %v", err)
	}
}

func TestResultsRange(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000} {
		if _, err := f.service.RecordResult(ctx, check.FullyQualifiedName, domain.CheckResult{
			Timestamp: ts,
			Status:    domain.CheckStatusSuccess,
		}); err != nil {
			t.Fatalf("RecordResult: %v", err)
		}
	}

	got, err := f.service.ResultsRange(ctx, check.FullyQualifiedName, 1500, 3000)
	if err != nil {
		t.Fatalf("ResultsRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Timestamp != 3000 {
		t.Errorf("results not newest first: %+v", got)
	}
}

// seedHistory records a failed result, which opens an incident, and stores a
// sample blob, so delete tests can assert on both kinds of auxiliary state.
func (f *fixture) seedHistory(t *testing.T, check domain.Check) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.RecordResult(ctx, check.FullyQualifiedName, domain.CheckResult{
		Timestamp: 1000, Status: domain.CheckStatusFailed,
	}); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	if err := f.extensions.Put(ctx, check.ID, "check.failedRowsSample",
		json.RawMessage(`{"columns":["id"],"rows":[["1"]]}`)); err != nil {
		t.Fatalf("store sample: %v", err)
	}
	if len(f.statuses.All(check.FullyQualifiedName)) == 0 {
		t.Fatal("failed result did not open an incident")
	}
}

func TestDelete_SoftKeepsHistory(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()
	f.seedHistory(t, check)

	if err := f.service.Delete(ctx, check.ID, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.checks.GetByID(ctx, check.ID, false); !domain.IsNotFound(err) {
		t.Errorf("soft-deleted check still visible: %v", err)
	}
	if _, err := f.checks.GetByID(ctx, check.ID, true); err != nil {
		t.Errorf("soft-deleted check not readable with includeDeleted: %v", err)
	}
	latest, err := f.results.Latest(ctx, check.FullyQualifiedName)
	if err != nil || latest == nil {
		t.Errorf("soft delete dropped the result series")
	}
	if len(f.statuses.All(check.FullyQualifiedName)) == 0 {
		t.Errorf("soft delete dropped the resolution timeline")
	}
	if _, err := f.extensions.Get(ctx, check.ID, "check.failedRowsSample"); err != nil {
		t.Errorf("soft delete dropped the sample extension: %v", err)
	}
}

func TestDelete_HardRemovesEverything(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)
	ctx := context.Background()
	f.seedHistory(t, check)

	if err := f.service.Delete(ctx, check.ID, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.checks.GetByID(ctx, check.ID, true); !domain.IsNotFound(err) {
		t.Errorf("hard-deleted check still stored: %v", err)
	}
	if len(f.edges.Edges()) != 0 {
		t.Errorf("edges survive a hard delete: %+v", f.edges.Edges())
	}
	latest, err := f.results.Latest(ctx, check.FullyQualifiedName)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != nil {
		t.Errorf("result series survives a hard delete")
	}
	if timeline := f.statuses.All(check.FullyQualifiedName); len(timeline) != 0 {
		t.Errorf("resolution timeline survives a hard delete: %+v", timeline)
	}
	if _, err := f.extensions.Get(ctx, check.ID, "check.failedRowsSample"); !domain.IsNotFound(err) {
		t.Errorf("sample extension survives a hard delete: %v", err)
	}
	if len(f.index.deleted) != 1 || f.index.deleted[0] != check.FullyQualifiedName {
		t.Errorf("search documents not dropped: %v", f.index.deleted)
	}
	snapshot := f.index.snapshots["orders_suite"]
	if len(snapshot.Checks) != 0 {
		t.Errorf("group snapshot still lists the deleted check: %+v", snapshot.Checks)
	}
}

func TestCountByIDs(t *testing.T) {
	f := newFixture(t)
	check := f.createCheck(t)

	count, err := f.service.CountByIDs(context.Background(), []uuid.UUID{check.ID, uuid.New()})
	if err != nil {
		t.Fatalf("CountByIDs: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d, want 1", count)
	}
}
