package attendance

import (
	"context"
	"database/sql"
	"strings"

	"github.com/juju/errors"
)

// Dialect adapts the repository to a SQL engine. Queries use $n
// placeholders in order of appearance, which both supported engines accept.
type Dialect interface {
	// Schema returns the statements that create the tables if missing.
	Schema() []string
	// RollOrder wraps a roll column so it sorts in byte order.
	RollOrder(col string) string
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
}

// Repository persists students and attendance records.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	cohort  Cohort
}

// NewRepository creates a repo. An empty cohort falls back to DefaultCohort.
func NewRepository(db *sql.DB, dialect Dialect, cohort Cohort) *Repository {
	if cohort.Batch == "" {
		cohort.Batch = DefaultCohort.Batch
	}
	if cohort.Department == "" {
		cohort.Department = DefaultCohort.Department
	}
	return &Repository{db: db, dialect: dialect, cohort: cohort}
}

// Cohort returns the batch and department stamped on new students.
func (r *Repository) Cohort() Cohort {
	return r.cohort
}

// Migrate creates the students and attendance tables. It is safe to call on
// every startup.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range r.dialect.Schema() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Annotate(err, "creating schema")
			}
		}
		return nil
	})
}

// AddStudent inserts a student and returns its id.
func (r *Repository) AddStudent(ctx context.Context, name, roll string) (int64, error) {
	name, roll = strings.TrimSpace(name), strings.TrimSpace(roll)
	if err := validateStudent(name, roll); err != nil {
		return 0, err
	}

	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO students (name, roll, batch, department)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, name, roll, r.cohort.Batch, r.cohort.Department).Scan(&id)
		if r.dialect.IsUniqueViolation(err) {
			return errors.Annotatef(ErrDuplicateRoll, "adding student with roll %q", roll)
		}
		return errors.Annotatef(err, "adding student with roll %q", roll)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateStudent overwrites the name and roll of student id.
func (r *Repository) UpdateStudent(ctx context.Context, id int64, name, roll string) error {
	name, roll = strings.TrimSpace(name), strings.TrimSpace(roll)
	if err := validateStudent(name, roll); err != nil {
		return err
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE students SET name = $1, roll = $2 WHERE id = $3
		`, name, roll, id)
		if r.dialect.IsUniqueViolation(err) {
			return errors.Annotatef(ErrDuplicateRoll, "updating student %d to roll %q", id, roll)
		} else if err != nil {
			return errors.Annotatef(err, "updating student %d", id)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Annotatef(err, "updating student %d", id)
		}
		if affected == 0 {
			return errors.Annotatef(ErrNotFound, "updating student %d", id)
		}
		return nil
	})
}

// DeleteStudent removes student id together with its attendance. Deleting a
// missing id is not an error.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
		return errors.Annotatef(err, "deleting student %d", id)
	})
}

// ListStudents returns every student ordered by roll.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, roll, COALESCE(batch, ''), COALESCE(department, '')
		FROM students
		ORDER BY `+r.dialect.RollOrder("roll"))
	if err != nil {
		return nil, errors.Annotate(err, "listing students")
	}
	defer rows.Close()

	students := []Student{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Roll, &s.Batch, &s.Department); err != nil {
			return nil, errors.Annotate(err, "listing students")
		}
		students = append(students, s)
	}
	return students, errors.Annotate(rows.Err(), "listing students")
}

// GetStudent returns a single student, or nil when id does not exist.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, roll, COALESCE(batch, ''), COALESCE(department, '')
		FROM students WHERE id = $1
	`, id)
	var s Student
	if err := row.Scan(&s.ID, &s.Name, &s.Roll, &s.Batch, &s.Department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Annotatef(err, "getting student %d", id)
	}
	return &s, nil
}

// MarkAttendanceBulk records the status of every mark on date. Existing
// records for the same student and date are overwritten. Either all marks are
// applied or none are.
func (r *Repository) MarkAttendanceBulk(ctx context.Context, marks []Mark, date string) error {
	date = strings.TrimSpace(date)
	if date == "" {
		return errors.Annotate(ErrValidation, "date is required")
	}
	for _, m := range marks {
		if !m.Status.Valid() {
			return errors.Annotatef(ErrValidation, "status %q for student %d", m.Status, m.StudentID)
		}
	}
	if len(marks) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO attendance (student_id, att_date, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (student_id, att_date) DO UPDATE SET status = excluded.status
		`)
		if err != nil {
			return errors.Annotate(err, "preparing attendance upsert")
		}
		defer stmt.Close()

		for _, m := range marks {
			_, err := stmt.ExecContext(ctx, m.StudentID, date, string(m.Status))
			if r.dialect.IsForeignKeyViolation(err) {
				return errors.Annotatef(ErrReferential, "marking student %d on %s", m.StudentID, date)
			} else if err != nil {
				return errors.Annotatef(err, "marking student %d on %s", m.StudentID, date)
			}
		}
		return nil
	})
}

// AttendanceByDate returns the records of date ordered by roll. A date with
// no records yields an empty slice.
func (r *Repository) AttendanceByDate(ctx context.Context, date string) ([]DayEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, s.id, s.roll, s.name, COALESCE(s.batch, ''), COALESCE(s.department, ''), a.status
		FROM attendance a
		JOIN students s ON a.student_id = s.id
		WHERE a.att_date = $1
		ORDER BY `+r.dialect.RollOrder("s.roll"), strings.TrimSpace(date))
	if err != nil {
		return nil, errors.Annotatef(err, "querying attendance on %q", date)
	}
	defer rows.Close()

	entries := []DayEntry{}
	for rows.Next() {
		var e DayEntry
		if err := rows.Scan(&e.RecordID, &e.StudentID, &e.Roll, &e.Name, &e.Batch, &e.Department, &e.Status); err != nil {
			return nil, errors.Annotatef(err, "querying attendance on %q", date)
		}
		entries = append(entries, e)
	}
	return entries, errors.Annotatef(rows.Err(), "querying attendance on %q", date)
}

// RosterSheet returns every student with the status recorded on date, if any.
func (r *Repository) RosterSheet(ctx context.Context, date string) ([]SheetRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.roll, COALESCE(s.batch, ''), COALESCE(s.department, ''), COALESCE(a.status, '')
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.id AND a.att_date = $1
		ORDER BY `+r.dialect.RollOrder("s.roll"), strings.TrimSpace(date))
	if err != nil {
		return nil, errors.Annotatef(err, "building roster sheet for %q", date)
	}
	defer rows.Close()

	sheet := []SheetRow{}
	for rows.Next() {
		var row SheetRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Roll, &row.Batch, &row.Department, &row.Status); err != nil {
			return nil, errors.Annotatef(err, "building roster sheet for %q", date)
		}
		sheet = append(sheet, row)
	}
	return sheet, errors.Annotatef(rows.Err(), "building roster sheet for %q", date)
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Annotate(tx.Commit(), "committing transaction")
}

func validateStudent(name, roll string) error {
	if name == "" {
		return errors.Annotate(ErrValidation, "name is required")
	}
	if roll == "" {
		return errors.Annotate(ErrValidation, "roll is required")
	}
	return nil
}
