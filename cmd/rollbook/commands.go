package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"rollbook/internal/attendance"
)

type command struct {
	usage string
	run   func(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error
}

var commands = map[string]command{
	"students": {"list the roster", listStudents},
	"add":      {"add a student: --name N --roll R", addStudent},
	"edit":     {"edit a student: --id I --name N --roll R", editStudent},
	"delete":   {"delete a student and its attendance: --id I", deleteStudent},
	"mark":     {"mark attendance: [--date D] [--all Present|Absent] [id=Present|Absent ...]", markAttendance},
	"show":     {"show attendance recorded on a date: [--date D]", showAttendance},
	"sheet":    {"show the roster with statuses on a date: [--date D]", showSheet},
}

func run(ctx context.Context, svc *attendance.Service, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.Annotate(attendance.ErrValidation, "command required")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(out)
		return errors.Annotatef(attendance.ErrValidation, "unknown command %q", args[0])
	}
	fs := gnuflag.NewFlagSet(args[0], gnuflag.ContinueOnError)
	fs.SetOutput(out)
	return cmd.run(ctx, svc, fs, args[1:], out)
}

func printUsage(out io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	table := uitable.New()
	for _, name := range names {
		table.AddRow("  "+name, commands[name].usage)
	}
	fmt.Fprintln(out, "usage: rollbook <command> [flags]")
	fmt.Fprintln(out, table)
}

func parse(fs *gnuflag.FlagSet, args []string) error {
	if err := fs.Parse(true, args); err != nil {
		return errors.Annotate(attendance.ErrValidation, err.Error())
	}
	return nil
}

func listStudents(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	students, err := svc.ListStudents(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ID", "ROLL", "NAME", "BATCH", "DEPARTMENT")
	for _, st := range students {
		table.AddRow(st.ID, st.Roll, st.Name, st.Batch, st.Department)
	}
	fmt.Fprintln(out, table)
	return nil
}

func addStudent(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var name, roll string
	fs.StringVar(&name, "name", "", "student name")
	fs.StringVar(&roll, "roll", "", "roll number")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := svc.AddStudent(ctx, name, roll)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "added student %d\n", id)
	return nil
}

func editStudent(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var (
		id         int64
		name, roll string
	)
	fs.Int64Var(&id, "id", 0, "student id")
	fs.StringVar(&name, "name", "", "new name")
	fs.StringVar(&roll, "roll", "", "new roll number")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := svc.UpdateStudent(ctx, id, name, roll); err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "updated student %d\n", id)
	return nil
}

func deleteStudent(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var id int64
	fs.Int64Var(&id, "id", 0, "student id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := svc.DeleteStudent(ctx, id); err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "deleted student %d\n", id)
	return nil
}

func markAttendance(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var date, all string
	fs.StringVar(&date, "date", svc.Today(), "date as YYYY-MM-DD")
	fs.StringVar(&all, "all", "", "mark every student with this status")
	if err := parse(fs, args); err != nil {
		return err
	}

	if all != "" {
		status, ok := attendance.ParseStatus(all)
		if !ok {
			return errors.Annotatef(attendance.ErrValidation, "status %q", all)
		}
		if err := svc.MarkAll(ctx, date, status); err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(out, "marked everyone %s on %s\n", status, date)
		return nil
	}

	marks, err := parseMarks(fs.Args())
	if err != nil {
		return err
	}
	if err := svc.MarkAttendanceBulk(ctx, marks, date); err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(out, "marked %d student(s) on %s\n", len(marks), date)
	return nil
}

// parseMarks reads id=Status pairs.
func parseMarks(args []string) ([]attendance.Mark, error) {
	marks := make([]attendance.Mark, 0, len(args))
	for _, arg := range args {
		idStr, statusStr, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.Annotatef(attendance.ErrValidation, "expected id=Status, got %q", arg)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, errors.Annotatef(attendance.ErrValidation, "student id %q", idStr)
		}
		status, ok := attendance.ParseStatus(statusStr)
		if !ok {
			return nil, errors.Annotatef(attendance.ErrValidation, "status %q for student %d", statusStr, id)
		}
		marks = append(marks, attendance.Mark{StudentID: id, Status: status})
	}
	return marks, nil
}

func showAttendance(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var date string
	fs.StringVar(&date, "date", svc.Today(), "date as YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	entries, err := svc.AttendanceByDate(ctx, date)
	if err != nil {
		return errors.Trace(err)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "no attendance recorded on %s\n", date)
		return nil
	}
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ROLL", "NAME", "BATCH", "DEPARTMENT", "STATUS")
	for _, e := range entries {
		table.AddRow(e.Roll, e.Name, e.Batch, e.Department, e.Status)
	}
	fmt.Fprintf(out, "attendance on %s\n", date)
	fmt.Fprintln(out, table)
	return nil
}

func showSheet(ctx context.Context, svc *attendance.Service, fs *gnuflag.FlagSet, args []string, out io.Writer) error {
	var date string
	fs.StringVar(&date, "date", svc.Today(), "date as YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	sheet, err := svc.RosterSheet(ctx, date)
	if err != nil {
		return errors.Trace(err)
	}
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ID", "ROLL", "NAME", "STATUS")
	for _, row := range sheet {
		status := string(row.Status)
		if status == "" {
			status = "-"
		}
		table.AddRow(row.ID, row.Roll, row.Name, status)
	}
	fmt.Fprintln(out, table)
	return nil
}
