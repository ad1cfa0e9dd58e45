package tabular

import (
	"errors"
	"fmt"
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("invalid file")

// DecodeError reports a structurally malformed file. A decode failure aborts
// the whole file; no partial row sequence is ever returned with it.
type DecodeError struct {
	Format Format
	Line   int // 0 when the failure is not tied to a line
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("invalid %s file", e.Format)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Decode detects the format of data and returns every data row in file order.
func Decode(data []byte, src Source) ([]Row, error) {
	format, err := DetectFormat(src)
	if err != nil {
		return nil, err
	}
	return DecodeAs(data, format)
}

// DecodeAs decodes data with an already resolved format.
func DecodeAs(data []byte, format Format) ([]Row, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: format, Reason: "empty file"}
	}

	switch format {
	case FormatCSV:
		return decodeCSV(data)
	case FormatXLSX:
		return decodeXLSX(data)
	default:
		return nil, &UnsupportedFormatError{ContentType: string(format)}
	}
}
