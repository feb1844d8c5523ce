package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/target/studentdash/internal/domain/model"
)

// RosterSheet is the worksheet name of an exported roster.
const RosterSheet = "Students"

var rosterHeader = []any{"Name", "Email", "Course", "Enrollment Date", "GPA"}

// RosterSource finds the students to export.
type RosterSource interface {
	Search(ctx context.Context, course, query string) ([]model.Student, error)
}

// ExportService renders the roster as an XLSX workbook.
type ExportService struct {
	students RosterSource
}

// NewExportService constructs a new ExportService.
func NewExportService(students RosterSource) *ExportService {
	if students == nil {
		panic("RosterSource is required")
	}
	return &ExportService{students: students}
}

// WriteRoster writes the students matching course and query to w.
func (s *ExportService) WriteRoster(ctx context.Context, w io.Writer, course, query string) error {
	students, err := s.students.Search(ctx, course, query)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", RosterSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(RosterSheet, "A1", &rosterHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetRowStyle(RosterSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, st := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{st.Name, st.Email, st.Course, st.EnrollmentDate, nil}
		if st.GPA != nil {
			row[4] = *st.GPA
		}
		if err := f.SetSheetRow(RosterSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(RosterSheet, "A", "D", 24)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
