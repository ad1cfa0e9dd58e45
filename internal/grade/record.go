// Package grade defines the student grade record, the rules that turn raw
// tabular rows and edit payloads into records, and the store contract the
// rest of the system persists them through.
//
// The derived percentage is never settable from outside this package: a
// [Candidate] can only be produced by [Normalize], [NormalizeEdit] or
// [Restore], and each of them computes the percentage from the marks as
// its final step.
package grade

import "time"

// Canonical column names expected in uploaded files. Matching is exact and
// case-sensitive.
const (
	ColStudentID     = "Student_ID"
	ColStudentName   = "Student_Name"
	ColTotalMarks    = "Total_Marks"
	ColMarksObtained = "Marks_Obtained"
)

// Candidate is a validated grade record that has not been persisted yet.
type Candidate struct {
	studentID     string
	studentName   string
	totalMarks    float64
	marksObtained float64
	percentage    float64
}

// newCandidate builds a candidate and derives its percentage.
func newCandidate(studentID, studentName string, totalMarks, marksObtained float64) Candidate {
	return Candidate{
		studentID:     studentID,
		studentName:   studentName,
		totalMarks:    totalMarks,
		marksObtained: marksObtained,
		percentage:    percentage(marksObtained, totalMarks),
	}
}

// Restore rebuilds a candidate from persisted marks. Stores use it when
// reading, so a stored percentage column is never trusted on the way out.
func Restore(studentID, studentName string, totalMarks, marksObtained float64) Candidate {
	return newCandidate(studentID, studentName, totalMarks, marksObtained)
}

func (c Candidate) StudentID() string      { return c.studentID }
func (c Candidate) StudentName() string    { return c.studentName }
func (c Candidate) TotalMarks() float64    { return c.totalMarks }
func (c Candidate) MarksObtained() float64 { return c.marksObtained }

// Percentage is MarksObtained / TotalMarks * 100 at full precision.
func (c Candidate) Percentage() float64 { return c.percentage }

// Record is a persisted grade record.
type Record struct {
	ID        string    // Assigned by the store, immutable
	CreatedAt time.Time // Set once on insert
	Candidate
}

// percentage returns 0 for a zero total so a restored legacy row can never
// carry NaN or Inf; normalization rejects zero totals before this point.
func percentage(marksObtained, totalMarks float64) float64 {
	if totalMarks == 0 {
		return 0
	}
	return marksObtained / totalMarks * 100
}
