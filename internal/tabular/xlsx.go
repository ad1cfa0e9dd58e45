package tabular

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first sheet of a workbook. The first non-blank row is
// the header; blank rows after it are skipped rather than treated as data.
// Raw cell values are used so numbers are not altered by display formats.
func decodeXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: FormatXLSX, Reason: "unreadable workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Format: FormatXLSX, Reason: "workbook has no sheets"}
	}

	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Format: FormatXLSX, Reason: "read sheet " + sheets[0], Err: err}
	}

	var (
		header []string
		rows   []Row
	)
	for i, record := range records {
		if isEmptyRow(record) {
			continue
		}
		if header == nil {
			header = trimHeader(record)
			continue
		}
		rows = append(rows, newRow(i+1, header, record))
	}

	return rows, nil
}
