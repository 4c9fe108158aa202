package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"

	"github.com/google/uuid"
)

// IncidentWorkflow drives a check failure's resolution timeline. Records are
// append-only and share a stateId for the lifetime of one incident; the
// current state is always the record with the latest timestamp.
type IncidentWorkflow struct {
	checks   repository.CheckRepository
	statuses repository.ResolutionStatusStore
	log      *logger.Logger
	now      func() time.Time
}

var _ Handler = (*IncidentWorkflow)(nil)

// NewIncidentWorkflow wires the workflow with its stores.
func NewIncidentWorkflow(
	checks repository.CheckRepository,
	statuses repository.ResolutionStatusStore,
	log *logger.Logger,
) *IncidentWorkflow {
	return &IncidentWorkflow{
		checks:   checks,
		statuses: statuses,
		log:      log.With("component", "incident-workflow"),
		now:      time.Now,
	}
}

// Perform resolves the incident the task points at. Resolving requires a
// prior timeline record; a resolution for a never-failed check is rejected.
// Repeated resolutions append further records sharing the same stateId.
func (w *IncidentWorkflow) Perform(ctx context.Context, task Task, actor domain.User) (domain.Check, error) {
	check, err := w.checks.GetByName(ctx, task.CheckFQN, false)
	if err != nil {
		return domain.Check{}, err
	}

	latest, err := w.statuses.Latest(ctx, task.CheckFQN)
	if err != nil {
		return domain.Check{}, err
	}
	if latest == nil {
		return domain.Check{}, fmt.Errorf(
			"no incident to resolve for check %s: %w", task.CheckFQN, domain.ErrNotFound)
	}

	reason := task.Reason
	if reason == "" {
		reason = domain.FailureReasonOther
	}
	if err := w.appendResolved(ctx, &check, latest.StateID, reason, task.Comment, actor); err != nil {
		return domain.Check{}, err
	}

	stateID := latest.StateID
	check.IncidentID = &stateID
	return check, nil
}

// Close abandons the task without an explicit resolution. An incident that is
// already resolved, or a check with no incident at all, is left untouched;
// otherwise the incident is recorded as resolved with a false-positive
// reason, since a dismissed failure task was judged not to be a real failure.
func (w *IncidentWorkflow) Close(ctx context.Context, task Task, actor domain.User) error {
	latest, err := w.statuses.Latest(ctx, task.CheckFQN)
	if err != nil {
		return err
	}
	if latest == nil || latest.Type == domain.ResolutionStatusResolved {
		return nil
	}

	check, err := w.checks.GetByName(ctx, task.CheckFQN, false)
	if err != nil {
		return err
	}
	return w.appendResolved(ctx, &check, latest.StateID, domain.FailureReasonFalsePositive, task.Comment, actor)
}

// OnFailure ensures an open incident exists for a failed result and returns
// its stateId. A resolved or absent timeline starts a fresh incident; an
// ongoing one is reused so repeated failures stay in a single timeline.
func (w *IncidentWorkflow) OnFailure(ctx context.Context, check *domain.Check) (uuid.UUID, error) {
	latest, err := w.statuses.Latest(ctx, check.FullyQualifiedName)
	if err != nil {
		return uuid.Nil, err
	}
	if latest != nil && latest.Type != domain.ResolutionStatusResolved {
		return latest.StateID, nil
	}

	stateID := uuid.New()
	nowMillis := w.now().UnixMilli()
	checkRef := check.Reference()
	record := domain.ResolutionStatus{
		ID:             uuid.New(),
		StateID:        stateID,
		Timestamp:      nowMillis,
		Type:           domain.ResolutionStatusNew,
		CheckReference: &checkRef,
		UpdatedAt:      nowMillis,
	}
	if err := w.statuses.Append(ctx, check.FullyQualifiedName, record); err != nil {
		return uuid.Nil, err
	}
	w.log.Info("opened incident for failed check",
		"check", check.FullyQualifiedName, "stateId", stateID)
	return stateID, nil
}

func (w *IncidentWorkflow) appendResolved(
	ctx context.Context,
	check *domain.Check,
	stateID uuid.UUID,
	reason domain.FailureReason,
	comment string,
	actor domain.User,
) error {
	nowMillis := w.now().UnixMilli()
	checkRef := check.Reference()
	actorRef := actor.Reference()
	record := domain.ResolutionStatus{
		ID:        uuid.New(),
		StateID:   stateID,
		Timestamp: nowMillis,
		Type:      domain.ResolutionStatusResolved,
		Resolved: &domain.Resolved{
			Reason:     reason,
			Comment:    comment,
			ResolvedBy: &actorRef,
		},
		CheckReference: &checkRef,
		UpdatedBy:      &actorRef,
		UpdatedAt:      nowMillis,
	}
	if err := w.statuses.Append(ctx, check.FullyQualifiedName, record); err != nil {
		return err
	}
	w.log.Info("resolved incident",
		"check", check.FullyQualifiedName, "stateId", stateID, "reason", reason)
	return nil
}
