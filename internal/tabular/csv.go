package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeCSV reads a comma-separated file whose first record is the header.
// Quoting is strict and every record must have as many fields as the header;
// any violation fails the whole file.
func decodeCSV(data []byte) ([]Row, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0 // Fixed by the header record
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &DecodeError{Format: FormatCSV, Reason: "empty file"}
	}
	if err != nil {
		return nil, csvError(err)
	}
	header = trimHeader(header)

	var rows []Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}

		if isEmptyRow(record) {
			continue
		}

		line, _ := r.FieldPos(0)
		rows = append(rows, newRow(line, header, record))
	}

	return rows, nil
}

// csvError converts a reader failure into a DecodeError carrying the line.
func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &DecodeError{Format: FormatCSV, Line: pe.Line, Reason: pe.Err.Error(), Err: err}
	}
	return &DecodeError{Format: FormatCSV, Reason: err.Error(), Err: err}
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD so that exports
// saved in legacy encodings still decode.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
