package tabular

import "strings"

// Field is one (header name, raw cell value) pair.
type Field struct {
	Name  string
	Value string
}

// Row is an ordered set of fields derived from one data row of a file.
type Row struct {
	Line   int // 1-based line (CSV) or row number (XLSX) in the source
	Fields []Field
}

// Lookup returns the value stored under an exact, case-sensitive header name.
// When the header repeats a name the rightmost column wins.
func (r Row) Lookup(name string) (string, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Name == name {
			return r.Fields[i].Value, true
		}
	}
	return "", false
}

// newRow pairs header names with cells. Columns with a blank header are
// dropped and cells beyond the header are ignored; a row shorter than the
// header lacks the trailing fields entirely.
func newRow(line int, header, cells []string) Row {
	n := len(header)
	if len(cells) < n {
		n = len(cells)
	}

	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		if header[i] == "" {
			continue
		}
		fields = append(fields, Field{Name: header[i], Value: strings.TrimSpace(cells[i])})
	}
	return Row{Line: line, Fields: fields}
}

// trimHeader trims every header name of surrounding whitespace.
func trimHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
