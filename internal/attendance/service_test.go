package attendance_test

import (
	"context"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"rollbook/internal/attendance"
)

type serviceSuite struct {
	baseSuite
	cache    *fakeCache
	observer *fakeObserver
	svc      *attendance.Service
}

var _ = gc.Suite(&serviceSuite{})

func (s *serviceSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.cache = &fakeCache{days: map[string][]attendance.DayEntry{}}
	s.observer = &fakeObserver{}
	s.svc = attendance.NewService(s.repo, s.cache, s.observer)
}

func (s *serviceSuite) TestAttendanceByDateFillsCache(c *gc.C) {
	ctx := context.Background()
	id, err := s.svc.AddStudent(ctx, "Alice", "101")
	c.Assert(err, jc.ErrorIsNil)
	err = s.svc.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: id, Status: attendance.Present}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)

	entries, err := s.svc.AttendanceByDate(ctx, " 2024-05-01 ")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 1)
	c.Check(s.cache.days["2024-05-01"], jc.DeepEquals, entries)

	// A cached sheet is served without touching the database.
	s.cache.days["2024-05-01"] = []attendance.DayEntry{{Roll: "cached"}}
	entries, err = s.svc.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, jc.DeepEquals, []attendance.DayEntry{{Roll: "cached"}})
}

func (s *serviceSuite) TestWritesInvalidateCache(c *gc.C) {
	ctx := context.Background()
	id, err := s.svc.AddStudent(ctx, "Alice", "101")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.cache.invalidations, gc.Equals, 1)

	c.Assert(s.svc.UpdateStudent(ctx, id, "Alicia", "101"), jc.ErrorIsNil)
	c.Assert(s.svc.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: id, Status: attendance.Absent}}, "2024-05-01"), jc.ErrorIsNil)
	c.Assert(s.svc.DeleteStudent(ctx, id), jc.ErrorIsNil)
	c.Check(s.cache.invalidations, gc.Equals, 4)
}

func (s *serviceSuite) TestFailedWriteKeepsCache(c *gc.C) {
	ctx := context.Background()
	_, err := s.svc.AddStudent(ctx, "Alice", "101")
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.svc.AddStudent(ctx, "Eve", "101")
	c.Assert(err, jc.ErrorIs, attendance.ErrDuplicateRoll)
	c.Check(s.cache.invalidations, gc.Equals, 1)
}

func (s *serviceSuite) TestObserverOutcomes(c *gc.C) {
	ctx := context.Background()
	_, err := s.svc.AddStudent(ctx, "Alice", "101")
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.svc.AddStudent(ctx, "Eve", "101")
	c.Assert(err, gc.NotNil)
	err = s.svc.UpdateStudent(ctx, 77, "Ghost", "999")
	c.Assert(err, gc.NotNil)
	err = s.svc.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: 77, Status: attendance.Present}}, "2024-05-01")
	c.Assert(err, gc.NotNil)
	_, err = s.svc.AddStudent(ctx, "", "")
	c.Assert(err, gc.NotNil)

	c.Check(s.observer.seen, jc.DeepEquals, []string{
		"add_student:ok",
		"add_student:duplicate_roll",
		"update_student:not_found",
		"mark_attendance:referential",
		"add_student:invalid",
	})
}

func (s *serviceSuite) TestMarkAll(c *gc.C) {
	ctx := context.Background()
	for _, roll := range []string{"101", "102", "103"} {
		_, err := s.svc.AddStudent(ctx, "student "+roll, roll)
		c.Assert(err, jc.ErrorIsNil)
	}

	c.Assert(s.svc.MarkAll(ctx, "2024-05-01", attendance.Present), jc.ErrorIsNil)
	entries, err := s.svc.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 3)
	for _, e := range entries {
		c.Check(e.Status, gc.Equals, attendance.Present)
	}

	err = s.svc.MarkAll(ctx, "2024-05-01", "Late")
	c.Check(err, jc.ErrorIs, attendance.ErrValidation)
}

func (s *serviceSuite) TestNilCacheAndObserver(c *gc.C) {
	svc := attendance.NewService(s.repo, nil, nil)
	ctx := context.Background()

	id, err := svc.AddStudent(ctx, "Alice", "101")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(svc.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: id, Status: attendance.Present}}, "2024-05-01"), jc.ErrorIsNil)
	entries, err := svc.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 1)
}

func (s *serviceSuite) TestToday(c *gc.C) {
	_, err := time.Parse(attendance.DateLayout, s.svc.Today())
	c.Assert(err, jc.ErrorIsNil)
}

func (s *serviceSuite) TestParseStatus(c *gc.C) {
	for in, want := range map[string]attendance.Status{
		"Present":  attendance.Present,
		" absent ": attendance.Absent,
		"P":        attendance.Present,
		"a":        attendance.Absent,
	} {
		got, ok := attendance.ParseStatus(in)
		c.Check(ok, jc.IsTrue, gc.Commentf("input %q", in))
		c.Check(got, gc.Equals, want)
	}
	_, ok := attendance.ParseStatus("late")
	c.Check(ok, jc.IsFalse)
}

type fakeCache struct {
	days          map[string][]attendance.DayEntry
	invalidations int
}

func (f *fakeCache) Day(_ context.Context, date string) ([]attendance.DayEntry, func([]attendance.DayEntry), bool) {
	if entries, ok := f.days[date]; ok {
		return entries, nil, true
	}
	return nil, func(entries []attendance.DayEntry) { f.days[date] = entries }, false
}

func (f *fakeCache) Invalidate(context.Context) {
	f.invalidations++
	f.days = map[string][]attendance.DayEntry{}
}

type fakeObserver struct {
	seen []string
}

func (f *fakeObserver) Observe(op, outcome string, _ time.Duration) {
	f.seen = append(f.seen, op+":"+outcome)
}
