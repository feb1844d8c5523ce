package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/studentdash/internal/data"
	"github.com/target/studentdash/internal/domain/model"
	"github.com/target/studentdash/internal/service"
)

const defaultQueryTimeout = 30 * time.Second

type rosterOptions struct {
	Timeout time.Duration
	Course  string
	Query   string
	Out     string
}

func runListStudents(cmdCtx *commandContext, args []string) error {
	opts, err := parseRosterFlags("list-students", args, false)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		students, searchErr := rosterService(db).Search(ctx, opts.Course, opts.Query)
		if searchErr != nil {
			return fmt.Errorf("search students: %w", searchErr)
		}
		return printStudents(cmdCtx.Out, students)
	})
}

func runExportRoster(cmdCtx *commandContext, args []string) error {
	opts, err := parseRosterFlags("export-roster", args, true)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) (retErr error) {
		f, createErr := os.Create(opts.Out)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", opts.Out, createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				retErr = errors.Join(retErr, fmt.Errorf("close %s: %w", opts.Out, closeErr))
			}
		}()

		export := service.NewExportService(rosterService(db))
		if writeErr := export.WriteRoster(ctx, f, opts.Course, opts.Query); writeErr != nil {
			return writeErr
		}
		cmdCtx.Logger.Info("roster exported", "path", opts.Out, "course", opts.Course, "query", opts.Query)
		return nil
	})
}

func rosterService(db *sql.DB) *service.StudentService {
	return service.NewStudentService(service.StudentServiceOptions{Repo: data.NewStudentRepo(db)})
}

func parseRosterFlags(name string, args []string, wantOut bool) (rosterOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := rosterOptions{Timeout: defaultQueryTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration to wait for the query")
	fs.StringVar(&opts.Course, "course", model.CourseAll, "Only include students in this course")
	fs.StringVar(&opts.Query, "q", "", "Case-insensitive match against name or email")
	if wantOut {
		fs.StringVar(&opts.Out, "out", "students.xlsx", "Path of the workbook to write")
	}

	if err := fs.Parse(args); err != nil {
		return rosterOptions{}, err
	}
	if opts.Timeout <= 0 {
		return rosterOptions{}, errors.New("--timeout must be greater than zero")
	}
	if wantOut && strings.TrimSpace(opts.Out) == "" {
		return rosterOptions{}, errors.New("--out is required")
	}
	return opts, nil
}

func printStudents(out io.Writer, students []model.Student) error {
	if len(students) == 0 {
		return writeln(out, "No students found.")
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tName\tEmail\tCourse\tEnrolled\tGPA"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range students {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Email, s.Course, s.EnrollmentDate, formatGPA(s.GPA)); err != nil {
			return fmt.Errorf("write student %s: %w", s.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return writef(out, "\n%d student(s)\n", len(students))
}

func formatGPA(gpa *float64) string {
	if gpa == nil {
		return "-"
	}
	return strconv.FormatFloat(*gpa, 'f', 1, 64)
}
