// Package export renders checks and their latest results as a spreadsheet
// report for offline review.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
	"github.com/rmorley/dqcheck/internal/repository"
	"github.com/rmorley/dqcheck/internal/resolver"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Checks"

var reportHeader = []string{
	"Name", "Fully Qualified Name", "Parent Entity", "Status",
	"Last Run", "Passed Rows", "Failed Rows", "Incident",
}

// Service builds check reports.
type Service struct {
	checks   repository.CheckRepository
	resolver *resolver.Resolver
	log      *logger.Logger
	pageSize int
}

// NewService wires an export service.
func NewService(checks repository.CheckRepository, fieldResolver *resolver.Resolver, log *logger.Logger) *Service {
	return &Service{
		checks:   checks,
		resolver: fieldResolver,
		log:      log.With("component", "export"),
		pageSize: 500,
	}
}

// WriteReport writes an xlsx workbook listing every live check with its
// latest result to w. Checks are paged out of the repository so a large
// inventory does not load at once.
func (s *Service) WriteReport(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}
	for i, title := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return err
		}
	}

	row := 2
	for offset := 0; ; offset += s.pageSize {
		page, total, err := s.checks.List(ctx, s.pageSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list checks for report: %w", err)
		}
		for i := range page {
			if err := s.writeCheckRow(ctx, f, row, &page[i]); err != nil {
				return err
			}
			row++
		}
		if offset+len(page) >= total || len(page) == 0 {
			break
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	s.log.Info("wrote check report", "rows", row-2)
	return nil
}

func (s *Service) writeCheckRow(ctx context.Context, f *excelize.File, row int, check *domain.Check) error {
	latest, err := s.resolver.LatestResult(ctx, check)
	if err != nil {
		return err
	}

	values := []any{
		check.Name,
		check.FullyQualifiedName,
		check.EntityFQN,
		string(check.Status),
		"", "", "", "",
	}
	if latest != nil {
		values[4] = time.UnixMilli(latest.Timestamp).UTC().Format(time.RFC3339)
		if latest.PassedRows != nil {
			values[5] = *latest.PassedRows
		}
		if latest.FailedRows != nil {
			values[6] = *latest.FailedRows
		}
		if latest.IncidentID != nil {
			values[7] = latest.IncidentID.String()
		}
	}

	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, value); err != nil {
			return err
		}
	}
	return nil
}
