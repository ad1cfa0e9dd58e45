// Package tabular decodes uploaded grade files into ordered row mappings.
//
// Two backends are supported: delimited text (CSV) and the first sheet of an
// XLSX workbook. Both produce the same [Row] shape: the first row of the
// source is the header, and every following row maps header names to raw cell
// strings. Decoding is eager because imports commit all-or-nothing.
package tabular

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format identifies a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is matched by every UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// Source is the format hint supplied alongside an uploaded payload.
type Source struct {
	ContentType string // Declared MIME type, may be empty
	FileName    string // Original file name, may be empty
}

// UnsupportedFormatError reports a payload whose declared type and name match
// no known backend.
type UnsupportedFormatError struct {
	ContentType string
	FileName    string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type (content type %q, file %q)", e.ContentType, e.FileName)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Content types accepted for each format.
var (
	csvContentTypes = map[string]bool{
		"text/csv":                    true,
		"application/csv":             true,
		"text/comma-separated-values": true,
	}
	xlsxContentTypes = map[string]bool{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	}
)

// DetectFormat resolves the format from the declared content type, falling
// back to the file extension. Browsers often send application/octet-stream
// for spreadsheets, so the extension is always consulted.
func DetectFormat(src Source) (Format, error) {
	if ct := mediaType(src.ContentType); ct != "" {
		switch {
		case csvContentTypes[ct]:
			return FormatCSV, nil
		case xlsxContentTypes[ct]:
			return FormatXLSX, nil
		}
	}

	switch strings.ToLower(filepath.Ext(src.FileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}

	return "", &UnsupportedFormatError{ContentType: src.ContentType, FileName: src.FileName}
}

// mediaType strips parameters such as charset from a content type.
func mediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Fall back to the raw value before any parameters
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
