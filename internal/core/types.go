package core

import (
	"errors"
	"time"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

var (
	// ErrImportFailed wraps any store failure during the bulk insert of an
	// import. Rows rejected during normalization never produce it.
	ErrImportFailed = errors.New("import failed")

	// ErrFileTooLarge is returned before decoding when a payload exceeds the
	// configured maximum size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned by transports when a request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrInvalidRequest is returned by transports for request bodies that
	// cannot be parsed at all.
	ErrInvalidRequest = errors.New("invalid request body")
)

// Upload is a grade file handed to the importer.
type Upload struct {
	Data        []byte
	ContentType string // Declared MIME type, may be empty
	FileName    string // Original name, used for format detection and logs
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	ImportID  string
	FileName  string
	Format    tabular.Format
	TotalRows int                 // Data rows decoded from the file
	Inserted  int                 // Rows persisted by the bulk insert
	Rejected  []grade.RejectedRow // Rows skipped during normalization, in file order
	Duration  time.Duration
}

// RecordList is a full listing of stored records, newest first.
type RecordList struct {
	Records []grade.Record
	Total   int
}
