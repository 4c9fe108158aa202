// Package checkloader batches per-request check lookups by id.
package checkloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

type CheckLoader struct {
	Loader *dataloader.Loader
}

// NewCheckLoader builds a batched loader over the check repository. Keys are
// check id strings; a missing id yields a nil result, not an error.
func NewCheckLoader(repo repository.CheckRepository) *CheckLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, key := range keys {
			id, err := uuid.Parse(key.String())
			if err != nil {
				// The result slice must stay key-aligned even when a key
				// is malformed, so every position gets the parse error.
				results := make([]*dataloader.Result, len(keys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid UUID %q: %w", key.String(), err)}
				}
				return results
			}
			ids[i] = id
		}

		checks, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[uuid.UUID]domain.Check, len(checks))
		for _, check := range checks {
			byID[check.ID] = check
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if check, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: check}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &CheckLoader{Loader: loader}
}

// Load fetches one check through the batch, blocking until the batch fires.
func (l *CheckLoader) Load(ctx context.Context, id uuid.UUID) (domain.Check, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	data, err := thunk()
	if err != nil {
		return domain.Check{}, err
	}
	check, ok := data.(domain.Check)
	if !ok {
		return domain.Check{}, fmt.Errorf("check %s: %w", id, domain.ErrNotFound)
	}
	return check, nil
}
