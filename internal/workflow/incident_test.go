package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository/memory"

	"github.com/google/uuid"
)

type fixture struct {
	workflow *IncidentWorkflow
	statuses *memory.ResolutionStatusStore
	check    domain.Check
	actor    domain.User
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	checks := memory.NewCheckStore()
	f := &fixture{
		statuses: memory.NewResolutionStatusStore(),
		actor:    domain.User{ID: uuid.New(), Name: "alice"},
		clock:    time.UnixMilli(1_700_000_000_000),
	}
	f.workflow = NewIncidentWorkflow(checks, f.statuses, logger.NewNop())
	f.workflow.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}

	check, err := checks.Create(context.Background(), domain.Check{
		Name:               "row_count_between",
		FullyQualifiedName: "warehouse.orders.row_count_between",
	})
	if err != nil {
		t.Fatalf("create check: %v", err)
	}
	f.check = check
	return f
}

func (f *fixture) openIncident(t *testing.T) uuid.UUID {
	t.Helper()
	stateID, err := f.workflow.OnFailure(context.Background(), &f.check)
	if err != nil {
		t.Fatalf("OnFailure: %v", err)
	}
	return stateID
}

func (f *fixture) task(reason domain.FailureReason, comment string) Task {
	return Task{
		Type:     TaskTypeFailureResolution,
		CheckFQN: f.check.FullyQualifiedName,
		Reason:   reason,
		Comment:  comment,
	}
}

func TestOnFailure_ReusesOpenIncident(t *testing.T) {
	f := newFixture(t)
	first := f.openIncident(t)
	second := f.openIncident(t)

	if first != second {
		t.Errorf("a second failure opened a new incident: %s vs %s", first, second)
	}
	if got := len(f.statuses.All(f.check.FullyQualifiedName)); got != 1 {
		t.Errorf("got %d timeline records, want 1", got)
	}
}

func TestOnFailure_StartsFreshIncidentAfterResolution(t *testing.T) {
	f := newFixture(t)
	first := f.openIncident(t)
	if _, err := f.workflow.Perform(context.Background(), f.task(domain.FailureReasonMissingData, ""), f.actor); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	second := f.openIncident(t)
	if first == second {
		t.Errorf("failure after resolution reused the closed incident's stateId")
	}
}

func TestPerform_RequiresPriorRecord(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.Perform(context.Background(), f.task(domain.FailureReasonOther, ""), f.actor)
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
	if got := len(f.statuses.All(f.check.FullyQualifiedName)); got != 0 {
		t.Errorf("rejected resolution still appended %d records", got)
	}
}

func TestPerform_AppendsResolvedSharingStateID(t *testing.T) {
	f := newFixture(t)
	stateID := f.openIncident(t)

	check, err := f.workflow.Perform(context.Background(), f.task(domain.FailureReasonDuplicates, "dedup job was down"), f.actor)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if check.IncidentID == nil || *check.IncidentID != stateID {
		t.Errorf("returned check not annotated with the incident stateId")
	}

	records := f.statuses.All(f.check.FullyQualifiedName)
	if len(records) != 2 {
		t.Fatalf("got %d timeline records, want 2", len(records))
	}
	resolved := records[1]
	if resolved.Type != domain.ResolutionStatusResolved {
		t.Errorf("got type %s, want Resolved", resolved.Type)
	}
	if resolved.StateID != stateID {
		t.Errorf("resolution did not share the incident's stateId")
	}
	if resolved.Resolved == nil || resolved.Resolved.Reason != domain.FailureReasonDuplicates {
		t.Errorf("resolution details missing or wrong: %+v", resolved.Resolved)
	}
	if resolved.Resolved.ResolvedBy == nil || resolved.Resolved.ResolvedBy.Name != "alice" {
		t.Errorf("resolver identity not recorded: %+v", resolved.Resolved)
	}
}

func TestPerform_TwiceAppendsTwoRecords(t *testing.T) {
	f := newFixture(t)
	stateID := f.openIncident(t)

	for i := 0; i < 2; i++ {
		if _, err := f.workflow.Perform(context.Background(), f.task(domain.FailureReasonOther, ""), f.actor); err != nil {
			t.Fatalf("Perform %d: %v", i, err)
		}
	}

	records := f.statuses.All(f.check.FullyQualifiedName)
	if len(records) != 3 {
		t.Fatalf("got %d timeline records, want open plus two resolutions", len(records))
	}
	first, second := records[1], records[2]
	if first.StateID != stateID || second.StateID != stateID {
		t.Errorf("repeated resolutions did not share the stateId")
	}
	if first.Timestamp == second.Timestamp {
		t.Errorf("repeated resolutions share a timestamp")
	}
	if first.ID == second.ID {
		t.Errorf("repeated resolutions share a record id")
	}
}

func TestClose_NoIncidentIsNoOp(t *testing.T) {
	f := newFixture(t)

	if err := f.workflow.Close(context.Background(), f.task("", ""), f.actor); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(f.statuses.All(f.check.FullyQualifiedName)); got != 0 {
		t.Errorf("close of a clean check appended %d records", got)
	}
}

func TestClose_AlreadyResolvedIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.openIncident(t)
	if _, err := f.workflow.Perform(context.Background(), f.task(domain.FailureReasonOther, ""), f.actor); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if err := f.workflow.Close(context.Background(), f.task("", ""), f.actor); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(f.statuses.All(f.check.FullyQualifiedName)); got != 2 {
		t.Errorf("close after resolution appended records, got %d want 2", got)
	}
}

func TestClose_OpenIncidentResolvedAsFalsePositive(t *testing.T) {
	f := newFixture(t)
	stateID := f.openIncident(t)

	if err := f.workflow.Close(context.Background(), f.task("", "dismissed"), f.actor); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records := f.statuses.All(f.check.FullyQualifiedName)
	if len(records) != 2 {
		t.Fatalf("got %d timeline records, want 2", len(records))
	}
	closed := records[1]
	if closed.Type != domain.ResolutionStatusResolved {
		t.Errorf("got type %s, want Resolved", closed.Type)
	}
	if closed.StateID != stateID {
		t.Errorf("close did not share the incident's stateId")
	}
	if closed.Resolved == nil || closed.Resolved.Reason != domain.FailureReasonFalsePositive {
		t.Errorf("dismissed task not recorded as false positive: %+v", closed.Resolved)
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	f := newFixture(t)
	registry := NewRegistry()
	registry.Register(TaskTypeFailureResolution, f.workflow)

	handler, err := registry.For(TaskTypeFailureResolution)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if handler != Handler(f.workflow) {
		t.Errorf("registry returned a different handler")
	}

	if _, err := registry.For(TaskType("Unknown")); err == nil {
		t.Errorf("unknown task type did not error")
	}
}
