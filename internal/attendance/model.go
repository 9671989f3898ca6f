package attendance

import "strings"

// Status is the attendance state recorded for a student on a date.
type Status string

const (
	Present Status = "Present"
	Absent  Status = "Absent"
)

// Valid reports whether s is one of the recorded states.
func (s Status) Valid() bool {
	return s == Present || s == Absent
}

// ParseStatus accepts "present"/"absent" in any case, plus the single-letter
// forms P and A.
func ParseStatus(v string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "present", "p":
		return Present, true
	case "absent", "a":
		return Absent, true
	}
	return "", false
}

// Cohort is the batch and department stamped on every student of a deployment.
type Cohort struct {
	Batch      string `json:"batch" yaml:"batch"`
	Department string `json:"department" yaml:"department"`
}

// DefaultCohort is used when no cohort is configured.
var DefaultCohort = Cohort{Batch: "8th", Department: "Software Engineering"}

// Student is a member of the roster.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Roll       string `json:"roll"`
	Batch      string `json:"batch"`
	Department string `json:"department"`
}

// Mark is one entry of a bulk attendance call.
type Mark struct {
	StudentID int64  `json:"student_id"`
	Status    Status `json:"status"`
}

// DayEntry is a row of the attendance sheet for a single date.
type DayEntry struct {
	RecordID   int64  `json:"record_id"`
	StudentID  int64  `json:"student_id"`
	Roll       string `json:"roll"`
	Name       string `json:"name"`
	Batch      string `json:"batch"`
	Department string `json:"department"`
	Status     Status `json:"status"`
}

// SheetRow pairs a roster student with the status recorded on a date. Status
// is empty when nothing was recorded yet.
type SheetRow struct {
	Student
	Status Status `json:"status"`
}
