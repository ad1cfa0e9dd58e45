package grade

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// Reason classifies why a row or an edit was refused.
type Reason string

const (
	ReasonInvalidNumber  Reason = "invalid-number"
	ReasonDivisionByZero Reason = "division-by-zero"
	ReasonNegativeTotal  Reason = "negative-total"
	ReasonMissingField   Reason = "missing-field"
	ReasonMissingID      Reason = "missing-id"
)

// RejectedRow is the diagnostic kept for a row that could not be normalized.
// It is collected by the importer, never returned as an error.
type RejectedRow struct {
	Line   int    // Source line of the row
	Reason Reason // Why the row was refused
	Field  string // Column that caused the rejection
	Value  string // Raw cell value, empty when the column was absent
}

func (r RejectedRow) String() string {
	if r.Field == "" {
		return fmt.Sprintf("line %d: %s", r.Line, r.Reason)
	}
	return fmt.Sprintf("line %d: %s (%s=%q)", r.Line, r.Reason, r.Field, r.Value)
}

// Outcome is the tagged result of normalizing one row: exactly one of
// Candidate (when Rejection is nil) or Rejection is meaningful.
type Outcome struct {
	Candidate Candidate
	Rejection *RejectedRow
}

// OK reports whether the row produced a candidate.
func (o Outcome) OK() bool { return o.Rejection == nil }

// Normalize maps a decoded row to a candidate record. Text columns pass
// through unchanged (missing means empty); both marks columns must parse as
// finite numbers and the total must be positive.
func Normalize(row tabular.Row) Outcome {
	studentID, _ := row.Lookup(ColStudentID)
	studentName, _ := row.Lookup(ColStudentName)

	total, rej := parseCell(row, ColTotalMarks)
	if rej != nil {
		return Outcome{Rejection: rej}
	}
	obtained, rej := parseCell(row, ColMarksObtained)
	if rej != nil {
		return Outcome{Rejection: rej}
	}

	if reason := checkTotal(total); reason != "" {
		raw, _ := row.Lookup(ColTotalMarks)
		return Outcome{Rejection: &RejectedRow{Line: row.Line, Reason: reason, Field: ColTotalMarks, Value: raw}}
	}

	return Outcome{Candidate: newCandidate(studentID, studentName, total, obtained)}
}

// parseCell reads a numeric column, producing a rejection when the column is
// absent or not a number.
func parseCell(row tabular.Row, col string) (float64, *RejectedRow) {
	raw, ok := row.Lookup(col)
	if !ok {
		return 0, &RejectedRow{Line: row.Line, Reason: ReasonInvalidNumber, Field: col}
	}
	v, ok := ParseMarks(raw)
	if !ok {
		return 0, &RejectedRow{Line: row.Line, Reason: ReasonInvalidNumber, Field: col, Value: raw}
	}
	return v, nil
}

// checkTotal returns the reason a total cannot be used as a denominator.
func checkTotal(total float64) Reason {
	switch {
	case total == 0:
		return ReasonDivisionByZero
	case total < 0:
		return ReasonNegativeTotal
	}
	return ""
}

var (
	// numericRegex matches integers, decimals and scientific notation.
	numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

	// thousandsRegex matches a number grouped with commas every three digits.
	// A decimal comma such as "72,5" does not match.
	thousandsRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
)

// ParseMarks parses a marks value. Surrounding whitespace and well-formed
// thousands separators ("1,000") are tolerated; blanks, words, NaN, decimal
// commas and values that overflow float64 are not.
func ParseMarks(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !thousandsRegex.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
