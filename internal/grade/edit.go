package grade

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports an edit payload that cannot be applied. Nothing is
// written when an edit fails validation.
type ValidationError struct {
	Field  string
	Reason Reason
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// EditInput carries the four replaceable fields of an edit request as raw
// strings. A nil field was absent from the payload.
type EditInput struct {
	StudentID     *string
	StudentName   *string
	TotalMarks    *string
	MarksObtained *string
}

// Edit payload field names, as reported in ValidationError.Field.
const (
	FieldStudentID     = "student_id"
	FieldStudentName   = "student_name"
	FieldTotalMarks    = "total_marks"
	FieldMarksObtained = "marks_obtained"
)

// NormalizeEdit validates a full-replacement edit of record id. All four
// fields are required; the percentage is derived, whatever the caller sent.
func NormalizeEdit(id string, in EditInput) (Candidate, error) {
	if strings.TrimSpace(id) == "" {
		return Candidate{}, &ValidationError{Reason: ReasonMissingID}
	}

	required := []struct {
		name  string
		value *string
	}{
		{FieldStudentID, in.StudentID},
		{FieldStudentName, in.StudentName},
		{FieldTotalMarks, in.TotalMarks},
		{FieldMarksObtained, in.MarksObtained},
	}
	for _, f := range required {
		if f.value == nil {
			return Candidate{}, &ValidationError{Field: f.name, Reason: ReasonMissingField}
		}
	}

	total, ok := ParseMarks(*in.TotalMarks)
	if !ok {
		return Candidate{}, &ValidationError{Field: FieldTotalMarks, Reason: ReasonInvalidNumber}
	}
	obtained, ok := ParseMarks(*in.MarksObtained)
	if !ok {
		return Candidate{}, &ValidationError{Field: FieldMarksObtained, Reason: ReasonInvalidNumber}
	}
	if reason := checkTotal(total); reason != "" {
		return Candidate{}, &ValidationError{Field: FieldTotalMarks, Reason: reason}
	}

	return newCandidate(*in.StudentID, *in.StudentName, total, obtained), nil
}
