// Package sample stores and serves the failed-rows samples captured when a
// check fails. Samples live in the extension store, outside the versioned
// check record, and are masked on read for unauthorized viewers.
package sample

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rmorley/dqcheck/internal/auth"
	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"

	"github.com/google/uuid"
)

// FailedRowsExtension keys the failed-rows sample blob in the extension store.
const FailedRowsExtension = "check.failedRowsSample"

const maskedValue = "********"

// sensitiveTagPrefix marks column tags whose sample values must be masked for
// viewers without sensitive-data access.
const sensitiveTagPrefix = "PII.Sensitive"

// Service manages failed-rows samples for checks.
type Service struct {
	checks     repository.CheckRepository
	tables     repository.TableRepository
	extensions repository.ExtensionStore
	log        *logger.Logger
}

// NewService wires a sample service with its stores.
func NewService(
	checks repository.CheckRepository,
	tables repository.TableRepository,
	extensions repository.ExtensionStore,
	log *logger.Logger,
) *Service {
	return &Service{
		checks:     checks,
		tables:     tables,
		extensions: extensions,
		log:        log.With("component", "sample"),
	}
}

// PutFailedRowsSample stores a sample for the check, replacing any previous
// one. Every row must match the column count. When validateColumns is set,
// every sample column must also exist on the parent table; callers storing
// derived or aliased columns pass false to skip that check.
func (s *Service) PutFailedRowsSample(ctx context.Context, checkID uuid.UUID, data domain.TableData, validateColumns bool) (domain.TableData, error) {
	check, err := s.checks.GetByID(ctx, checkID, false)
	if err != nil {
		return domain.TableData{}, err
	}

	if validateColumns {
		table, err := s.parentTable(ctx, check)
		if err != nil {
			return domain.TableData{}, err
		}
		for _, column := range data.Columns {
			if _, ok := table.Column(column); !ok {
				return domain.TableData{}, domain.NewValidationError("columns", column,
					fmt.Sprintf("invalid column name %s", column))
			}
		}
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return domain.TableData{}, domain.NewValidationError("rows", "",
				fmt.Sprintf("row %d has %d values for %d columns", i, len(row), len(data.Columns)))
		}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return domain.TableData{}, err
	}
	if err := s.extensions.Put(ctx, check.ID, FailedRowsExtension, payload); err != nil {
		return domain.TableData{}, err
	}
	s.log.Info("stored failed rows sample",
		"check", check.FullyQualifiedName, "rows", len(data.Rows))
	return data, nil
}

// GetSampleData returns the stored sample. Values in columns tagged as
// sensitive are masked unless the acting identity may view sensitive data.
func (s *Service) GetSampleData(ctx context.Context, checkID uuid.UUID) (domain.TableData, error) {
	check, err := s.checks.GetByID(ctx, checkID, false)
	if err != nil {
		return domain.TableData{}, err
	}

	payload, err := s.extensions.Get(ctx, check.ID, FailedRowsExtension)
	if err != nil {
		return domain.TableData{}, err
	}
	var data domain.TableData
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.TableData{}, fmt.Errorf("decoding stored sample for %s: %w", check.FullyQualifiedName, err)
	}

	if actor, ok := auth.ActorFromContext(ctx); ok && actor.CanViewSensitiveData {
		return data, nil
	}

	table, err := s.parentTable(ctx, check)
	if err != nil {
		return domain.TableData{}, err
	}
	maskSensitiveColumns(&data, table)
	return data, nil
}

// DeleteFailedRowsSample removes the stored sample. Deleting a check with no
// sample is not an error.
func (s *Service) DeleteFailedRowsSample(ctx context.Context, checkID uuid.UUID) error {
	check, err := s.checks.GetByID(ctx, checkID, false)
	if err != nil {
		return err
	}
	return s.extensions.Delete(ctx, check.ID, FailedRowsExtension)
}

func (s *Service) parentTable(ctx context.Context, check domain.Check) (domain.Table, error) {
	link, err := domain.ParseEntityLink(check.EntityLink)
	if err != nil {
		return domain.Table{}, err
	}
	return s.tables.GetByName(ctx, link.EntityFQN)
}

func maskSensitiveColumns(data *domain.TableData, table domain.Table) {
	for i, name := range data.Columns {
		column, ok := table.Column(name)
		if !ok || !isSensitive(column) {
			continue
		}
		for _, row := range data.Rows {
			if i < len(row) {
				row[i] = maskedValue
			}
		}
	}
}

func isSensitive(column domain.Column) bool {
	for _, tag := range column.Tags {
		if strings.HasPrefix(tag.TagFQN, sensitiveTagPrefix) {
			return true
		}
	}
	return false
}
