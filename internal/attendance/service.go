package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("rollbook.attendance")

// DateLayout is the layout of attendance dates.
const DateLayout = "2006-01-02"

// Cache holds day sheets keyed by date. Implementations swallow their own
// failures; a miss sends the read to the database.
type Cache interface {
	// Day returns the cached sheet of date. On a miss it returns fill, which
	// caches a sheet read after Day returned unless Invalidate ran since.
	Day(ctx context.Context, date string) (entries []DayEntry, fill func([]DayEntry), ok bool)
	// Invalidate drops every cached day sheet.
	Invalidate(ctx context.Context)
}

// Observer receives the outcome and latency of each store operation.
type Observer interface {
	Observe(op, outcome string, elapsed time.Duration)
}

// Service is the entry point for the front ends. It wraps the repository with
// the day cache, metrics and logging.
type Service struct {
	repo     *Repository
	cache    Cache
	observer Observer
	now      func() time.Time
}

// NewService creates a service backed by a repository. A nil cache or
// observer disables that concern.
func NewService(repo *Repository, cache Cache, observer Observer) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{repo: repo, cache: cache, observer: observer, now: time.Now}
}

// Cohort returns the deployment's batch and department.
func (s *Service) Cohort() Cohort {
	return s.repo.Cohort()
}

// Today returns the current local date formatted as YYYY-MM-DD.
func (s *Service) Today() string {
	return s.now().Format(DateLayout)
}

// AddStudent adds a student to the roster.
func (s *Service) AddStudent(ctx context.Context, name, roll string) (id int64, err error) {
	defer s.track("add_student", time.Now(), &err)
	id, err = s.repo.AddStudent(ctx, name, roll)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx)
	logger.Infof("added student %d (roll %q)", id, roll)
	return id, nil
}

// UpdateStudent changes the name and roll of a student.
func (s *Service) UpdateStudent(ctx context.Context, id int64, name, roll string) (err error) {
	defer s.track("update_student", time.Now(), &err)
	if err = s.repo.UpdateStudent(ctx, id, name, roll); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	logger.Infof("updated student %d", id)
	return nil
}

// DeleteStudent removes a student and its attendance.
func (s *Service) DeleteStudent(ctx context.Context, id int64) (err error) {
	defer s.track("delete_student", time.Now(), &err)
	if err = s.repo.DeleteStudent(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	logger.Infof("deleted student %d", id)
	return nil
}

// ListStudents returns the roster ordered by roll.
func (s *Service) ListStudents(ctx context.Context) (students []Student, err error) {
	defer s.track("list_students", time.Now(), &err)
	return s.repo.ListStudents(ctx)
}

// GetStudent returns a student, or nil when it does not exist.
func (s *Service) GetStudent(ctx context.Context, id int64) (student *Student, err error) {
	defer s.track("get_student", time.Now(), &err)
	return s.repo.GetStudent(ctx, id)
}

// MarkAttendanceBulk records attendance for many students on one date.
func (s *Service) MarkAttendanceBulk(ctx context.Context, marks []Mark, date string) (err error) {
	defer s.track("mark_attendance", time.Now(), &err)
	if err = s.repo.MarkAttendanceBulk(ctx, marks, date); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	logger.Infof("marked %d student(s) on %s", len(marks), date)
	return nil
}

// MarkAll records the same status for every student on the roster.
func (s *Service) MarkAll(ctx context.Context, date string, status Status) error {
	if !status.Valid() {
		return errors.Annotatef(ErrValidation, "status %q", status)
	}
	students, err := s.ListStudents(ctx)
	if err != nil {
		return err
	}
	marks := make([]Mark, 0, len(students))
	for _, st := range students {
		marks = append(marks, Mark{StudentID: st.ID, Status: status})
	}
	return s.MarkAttendanceBulk(ctx, marks, date)
}

// AttendanceByDate returns the attendance sheet of date, served from the
// cache when possible.
func (s *Service) AttendanceByDate(ctx context.Context, date string) (entries []DayEntry, err error) {
	defer s.track("attendance_by_date", time.Now(), &err)
	date = strings.TrimSpace(date)
	cached, fill, ok := s.cache.Day(ctx, date)
	if ok {
		logger.Tracef("attendance for %s served from cache", date)
		return cached, nil
	}
	entries, err = s.repo.AttendanceByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if fill != nil {
		fill(entries)
	}
	return entries, nil
}

// RosterSheet returns the roster with each student's status on date.
func (s *Service) RosterSheet(ctx context.Context, date string) (sheet []SheetRow, err error) {
	defer s.track("roster_sheet", time.Now(), &err)
	return s.repo.RosterSheet(ctx, date)
}

func (s *Service) track(op string, started time.Time, errp *error) {
	outcome := Outcome(*errp)
	if outcome == "error" {
		logger.Errorf("%s failed: %v", op, *errp)
	}
	s.observer.Observe(op, outcome, time.Since(started))
}

type noopCache struct{}

func (noopCache) Day(context.Context, string) ([]DayEntry, func([]DayEntry), bool) {
	return nil, nil, false
}

func (noopCache) Invalidate(context.Context) {}

type noopObserver struct{}

func (noopObserver) Observe(string, string, time.Duration) {}
