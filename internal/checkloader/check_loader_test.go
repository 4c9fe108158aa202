package checkloader

import (
	"context"
	"strings"
	"testing"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

func TestLoad_ReturnsStoredCheck(t *testing.T) {
	store := memory.NewCheckStore()
	check, err := store.Create(context.Background(), domain.Check{
		Name:               "row_count_between",
		FullyQualifiedName: "warehouse.orders.row_count_between",
	})
	if err != nil {
		t.Fatalf("create check: %v", err)
	}

	loader := NewCheckLoader(store)
	got, err := loader.Load(context.Background(), check.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != check.ID {
		t.Errorf("got check %s, want %s", got.ID, check.ID)
	}
}

func TestLoadMany_MalformedKeyKeepsResultsKeyAligned(t *testing.T) {
	store := memory.NewCheckStore()
	check, err := store.Create(context.Background(), domain.Check{
		Name:               "row_count_between",
		FullyQualifiedName: "warehouse.orders.row_count_between",
	})
	if err != nil {
		t.Fatalf("create check: %v", err)
	}

	loader := NewCheckLoader(store)
	keys := dataloader.Keys{
		dataloader.StringKey(check.ID.String()),
		dataloader.StringKey("not-a-uuid"),
	}
	_, errs := loader.Loader.LoadMany(context.Background(), keys)()
	if len(errs) != len(keys) {
		t.Fatalf("got %d errors for %d keys", len(errs), len(keys))
	}
	for i, err := range errs {
		if err == nil || !strings.Contains(err.Error(), "invalid UUID") {
			t.Errorf("key %d: got %v, want invalid UUID error", i, err)
		}
	}
}

func TestLoad_MissingIsNotFound(t *testing.T) {
	loader := NewCheckLoader(memory.NewCheckStore())

	_, err := loader.Load(context.Background(), uuid.New())
	if !domain.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}
