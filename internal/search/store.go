// Package search is the search-optimized read store: a redis-backed index of
// latest results and group snapshots. It may be stale or unavailable; callers
// treat its failures as transient and fall back to the authoritative stores.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"

	goredis "github.com/redis/go-redis/v9"
)

const (
	latestResultKeyPrefix  = "dq:result:latest:"
	groupSnapshotKeyPrefix = "dq:group:"
)

// ErrMiss marks a lookup that found no indexed document.
var ErrMiss = errors.New("search store miss")

// Config holds search store connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// DefaultConfig returns a default search store configuration.
func DefaultConfig() Config {
	return Config{Addr: "localhost:6379"}
}

// CheckSummary is the search-visible shape of one check inside a group snapshot.
type CheckSummary struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	FullyQualifiedName string             `json:"fullyQualifiedName"`
	Status             domain.CheckStatus `json:"status,omitempty"`
}

// GroupSnapshot is the externally-visible aggregate view of a group and its
// member checks, refreshed by post-write hooks.
type GroupSnapshot struct {
	Group      domain.EntityReference `json:"group"`
	Executable bool                   `json:"executable"`
	Checks     []CheckSummary         `json:"checks"`
	UpdatedAt  int64                  `json:"updatedAt"`
}

// Store is a redis-backed search index.
type Store struct {
	rdb *goredis.Client
	log *logger.Logger
}

// NewStore connects to redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("search store ping: %w", err)
	}

	return &Store{rdb: rdb, log: log.With("component", "search")}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// LatestResult returns the indexed latest result for a check FQN. A miss or
// any transport failure is returned as an error; callers fall back to the
// time-series store.
func (s *Store) LatestResult(ctx context.Context, fqn string) (*domain.CheckResult, error) {
	payload, err := s.rdb.Get(ctx, latestResultKeyPrefix+fqn).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("search store read: %w", err)
	}

	var result domain.CheckResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("search store decode: %w", err)
	}
	return &result, nil
}

// IndexResult publishes the latest result for a check FQN.
func (s *Store) IndexResult(ctx context.Context, fqn string, result domain.CheckResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("search store encode: %w", err)
	}
	if err := s.rdb.Set(ctx, latestResultKeyPrefix+fqn, payload, 0).Err(); err != nil {
		return fmt.Errorf("search store write: %w", err)
	}
	return nil
}

// IndexGroupSnapshot publishes a group's aggregate view.
func (s *Store) IndexGroupSnapshot(ctx context.Context, snapshot GroupSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("search store encode: %w", err)
	}
	key := groupSnapshotKeyPrefix + snapshot.Group.FullyQualifiedName
	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("search store write: %w", err)
	}
	return nil
}

// GroupSnapshot reads back a group's aggregate view, if indexed.
func (s *Store) GroupSnapshot(ctx context.Context, groupFQN string) (*GroupSnapshot, error) {
	payload, err := s.rdb.Get(ctx, groupSnapshotKeyPrefix+groupFQN).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("search store read: %w", err)
	}

	var snapshot GroupSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("search store decode: %w", err)
	}
	return &snapshot, nil
}

// DeleteCheck drops the indexed latest result for a deleted check.
func (s *Store) DeleteCheck(ctx context.Context, fqn string) error {
	if err := s.rdb.Del(ctx, latestResultKeyPrefix+fqn).Err(); err != nil {
		return fmt.Errorf("search store delete: %w", err)
	}
	return nil
}
