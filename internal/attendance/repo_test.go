package attendance_test

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"rollbook/internal/attendance"
)

type repoSuite struct {
	baseSuite
}

var _ = gc.Suite(&repoSuite{})

func (s *repoSuite) TestMigrateIsIdempotent(c *gc.C) {
	s.addStudent(c, "Alice", "101")
	c.Assert(s.repo.Migrate(context.Background()), jc.ErrorIsNil)
	c.Check(s.countRows(c, "students"), gc.Equals, 1)
}

func (s *repoSuite) TestAddStudentTrimsAndStampsCohort(c *gc.C) {
	id := s.addStudent(c, "  Alice ", " 101\t")

	st, err := s.repo.GetStudent(context.Background(), id)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(*st, jc.DeepEquals, attendance.Student{
		ID:         id,
		Name:       "Alice",
		Roll:       "101",
		Batch:      "8th",
		Department: "Software Engineering",
	})
}

func (s *repoSuite) TestAddStudentUsesConfiguredCohort(c *gc.C) {
	repo := attendance.NewRepository(s.db.Client, s.db.Dialect, attendance.Cohort{Batch: "9th", Department: "Data Science"})
	id, err := repo.AddStudent(context.Background(), "Carol", "301")
	c.Assert(err, jc.ErrorIsNil)

	st, err := repo.GetStudent(context.Background(), id)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st.Batch, gc.Equals, "9th")
	c.Check(st.Department, gc.Equals, "Data Science")
}

func (s *repoSuite) TestAddStudentDuplicateRoll(c *gc.C) {
	s.addStudent(c, "Alice", "101")

	_, err := s.repo.AddStudent(context.Background(), "Eve", " 101 ")
	c.Assert(err, jc.ErrorIs, attendance.ErrDuplicateRoll)
	c.Check(attendance.Message(err), gc.Equals, "Roll No already exists.")
	c.Check(s.countRows(c, "students"), gc.Equals, 1)
}

func (s *repoSuite) TestAddStudentRequiresFields(c *gc.C) {
	_, err := s.repo.AddStudent(context.Background(), "Alice", "   ")
	c.Check(err, jc.ErrorIs, attendance.ErrValidation)
	_, err = s.repo.AddStudent(context.Background(), "", "101")
	c.Check(err, jc.ErrorIs, attendance.ErrValidation)
	c.Check(s.countRows(c, "students"), gc.Equals, 0)
}

func (s *repoSuite) TestUpdateStudent(c *gc.C) {
	id := s.addStudent(c, "Alice", "101")

	err := s.repo.UpdateStudent(context.Background(), id, " Alicia ", "110")
	c.Assert(err, jc.ErrorIsNil)

	st, err := s.repo.GetStudent(context.Background(), id)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st.Name, gc.Equals, "Alicia")
	c.Check(st.Roll, gc.Equals, "110")
	c.Check(st.Batch, gc.Equals, "8th")
}

func (s *repoSuite) TestUpdateStudentKeepingOwnRoll(c *gc.C) {
	id := s.addStudent(c, "Alice", "101")

	err := s.repo.UpdateStudent(context.Background(), id, "Alice B.", "101")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *repoSuite) TestUpdateStudentNotFound(c *gc.C) {
	id := s.addStudent(c, "Alice", "101")

	err := s.repo.UpdateStudent(context.Background(), id+100, "Ghost", "999")
	c.Assert(err, jc.ErrorIs, attendance.ErrNotFound)
	c.Check(attendance.Message(err), gc.Equals, "Student not found.")

	students, err := s.repo.ListStudents(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(students, gc.HasLen, 1)
	c.Check(students[0].Name, gc.Equals, "Alice")
	c.Check(students[0].Roll, gc.Equals, "101")
}

func (s *repoSuite) TestUpdateStudentDuplicateRoll(c *gc.C) {
	s.addStudent(c, "Alice", "101")
	bob := s.addStudent(c, "Bob", "102")

	err := s.repo.UpdateStudent(context.Background(), bob, "Bob", "101")
	c.Assert(err, jc.ErrorIs, attendance.ErrDuplicateRoll)

	st, err := s.repo.GetStudent(context.Background(), bob)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st.Roll, gc.Equals, "102")
}

func (s *repoSuite) TestUpdateStudentRequiresFields(c *gc.C) {
	id := s.addStudent(c, "Alice", "101")

	err := s.repo.UpdateStudent(context.Background(), id, "Alice", "")
	c.Assert(err, jc.ErrorIs, attendance.ErrValidation)
}

func (s *repoSuite) TestDeleteStudentCascades(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	bob := s.addStudent(c, "Bob", "102")
	ctx := context.Background()
	for _, date := range []string{"2024-05-01", "2024-05-02"} {
		err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{
			{StudentID: alice, Status: attendance.Present},
			{StudentID: bob, Status: attendance.Absent},
		}, date)
		c.Assert(err, jc.ErrorIsNil)
	}

	c.Assert(s.repo.DeleteStudent(ctx, alice), jc.ErrorIsNil)

	c.Check(s.countRows(c, "attendance"), gc.Equals, 2)
	for _, date := range []string{"2024-05-01", "2024-05-02"} {
		entries, err := s.repo.AttendanceByDate(ctx, date)
		c.Assert(err, jc.ErrorIsNil)
		c.Assert(entries, gc.HasLen, 1)
		c.Check(entries[0].StudentID, gc.Equals, bob)
	}
	st, err := s.repo.GetStudent(ctx, alice)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st, gc.IsNil)
}

func (s *repoSuite) TestDeleteMissingStudentIsNoop(c *gc.C) {
	s.addStudent(c, "Alice", "101")

	c.Assert(s.repo.DeleteStudent(context.Background(), 4242), jc.ErrorIsNil)
	c.Check(s.countRows(c, "students"), gc.Equals, 1)
}

func (s *repoSuite) TestListStudentsOrderedByRoll(c *gc.C) {
	for _, roll := range []string{"B7", "103", "A1", "10", "2"} {
		s.addStudent(c, "student "+roll, roll)
	}

	students, err := s.repo.ListStudents(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	var rolls []string
	for _, st := range students {
		rolls = append(rolls, st.Roll)
	}
	c.Check(rolls, jc.DeepEquals, []string{"10", "103", "2", "A1", "B7"})
}

func (s *repoSuite) TestListStudentsEmpty(c *gc.C) {
	students, err := s.repo.ListStudents(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(students, gc.NotNil)
	c.Check(students, gc.HasLen, 0)
}

func (s *repoSuite) TestGetStudentMissing(c *gc.C) {
	st, err := s.repo.GetStudent(context.Background(), 7)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(st, gc.IsNil)
}

func (s *repoSuite) TestMarkAttendanceOverwrites(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	ctx := context.Background()

	err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Present}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	err = s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Absent}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.countRows(c, "attendance"), gc.Equals, 1)
	entries, err := s.repo.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 1)
	c.Check(entries[0].Status, gc.Equals, attendance.Absent)
}

func (s *repoSuite) TestMarkAttendanceUnknownStudentRollsBack(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")

	err := s.repo.MarkAttendanceBulk(context.Background(), []attendance.Mark{
		{StudentID: alice, Status: attendance.Present},
		{StudentID: alice + 50, Status: attendance.Absent},
	}, "2024-05-01")
	c.Assert(err, jc.ErrorIs, attendance.ErrReferential)
	c.Check(attendance.Message(err), gc.Equals, "Operation failed.")
	c.Check(s.countRows(c, "attendance"), gc.Equals, 0)
}

func (s *repoSuite) TestMarkAttendanceRollbackKeepsPreviousStatus(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	ctx := context.Background()
	err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Present}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)

	err = s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{
		{StudentID: alice, Status: attendance.Absent},
		{StudentID: 999, Status: attendance.Absent},
	}, "2024-05-01")
	c.Assert(err, jc.ErrorIs, attendance.ErrReferential)

	entries, err := s.repo.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 1)
	c.Check(entries[0].Status, gc.Equals, attendance.Present)
}

func (s *repoSuite) TestMarkAttendanceValidation(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	ctx := context.Background()

	err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Present}}, "  ")
	c.Check(err, jc.ErrorIs, attendance.ErrValidation)

	err = s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{
		{StudentID: alice, Status: attendance.Present},
		{StudentID: alice, Status: "Late"},
	}, "2024-05-01")
	c.Check(err, jc.ErrorIs, attendance.ErrValidation)
	c.Check(s.countRows(c, "attendance"), gc.Equals, 0)
}

func (s *repoSuite) TestMarkAttendanceEmptyBatch(c *gc.C) {
	err := s.repo.MarkAttendanceBulk(context.Background(), nil, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
}

func (s *repoSuite) TestMarkAttendanceDateIsOpaque(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	ctx := context.Background()

	err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Present}}, "2024-02-31")
	c.Assert(err, jc.ErrorIsNil)

	entries, err := s.repo.AttendanceByDate(ctx, "2024-02-31")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.HasLen, 1)
}

func (s *repoSuite) TestAttendanceByDateEmpty(c *gc.C) {
	s.addStudent(c, "Alice", "101")

	entries, err := s.repo.AttendanceByDate(context.Background(), "1999-01-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, gc.NotNil)
	c.Check(entries, gc.HasLen, 0)
}

func (s *repoSuite) TestRosterSheet(c *gc.C) {
	alice := s.addStudent(c, "Alice", "101")
	s.addStudent(c, "Bob", "102")
	ctx := context.Background()
	err := s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Absent}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)

	sheet, err := s.repo.RosterSheet(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(sheet, gc.HasLen, 2)
	c.Check(sheet[0].Roll, gc.Equals, "101")
	c.Check(sheet[0].Status, gc.Equals, attendance.Absent)
	c.Check(sheet[1].Roll, gc.Equals, "102")
	c.Check(sheet[1].Status, gc.Equals, attendance.Status(""))

	sheet, err = s.repo.RosterSheet(ctx, "2024-05-02")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(sheet[0].Status, gc.Equals, attendance.Status(""))
}

func (s *repoSuite) TestRosterDayWalkthrough(c *gc.C) {
	ctx := context.Background()
	alice := s.addStudent(c, "Alice", "101")
	bob := s.addStudent(c, "Bob", "102")
	c.Check(alice, gc.Equals, int64(1))
	c.Check(bob, gc.Equals, int64(2))

	_, err := s.repo.AddStudent(ctx, "Eve", "101")
	c.Assert(errors.Is(err, attendance.ErrDuplicateRoll), jc.IsTrue)

	err = s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{
		{StudentID: alice, Status: attendance.Present},
		{StudentID: bob, Status: attendance.Absent},
	}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)

	entries, err := s.repo.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(entries, jc.DeepEquals, []attendance.DayEntry{
		{RecordID: 1, StudentID: alice, Roll: "101", Name: "Alice", Batch: "8th", Department: "Software Engineering", Status: attendance.Present},
		{RecordID: 2, StudentID: bob, Roll: "102", Name: "Bob", Batch: "8th", Department: "Software Engineering", Status: attendance.Absent},
	})

	err = s.repo.MarkAttendanceBulk(ctx, []attendance.Mark{{StudentID: alice, Status: attendance.Absent}}, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	entries, err = s.repo.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 2)
	c.Check(entries[0].Status, gc.Equals, attendance.Absent)

	c.Assert(s.repo.DeleteStudent(ctx, alice), jc.ErrorIsNil)
	entries, err = s.repo.AttendanceByDate(ctx, "2024-05-01")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(entries, gc.HasLen, 1)
	c.Check(entries[0].Name, gc.Equals, "Bob")
}
