// Package core provides the business logic for importing and managing
// student grade records.
//
// The package is independent of any transport or storage engine. The HTTP
// server, the gradectl CLI and the drop-folder watcher all drive the same
// [Service], which is built over any [grade.Store].
//
// # Import
//
// [Service.ImportFile] runs one grade file through the pipeline:
//
//  1. Reject payloads over the configured size and take an [ImportLimiter] slot
//  2. Detect the format and decode every row; failures leave the store untouched
//  3. Normalize each row, collecting rejected rows with their source line
//  4. Persist all valid rows with a single [grade.Store] BulkInsert
//
// A failed bulk insert returns an error wrapping [ErrImportFailed].
//
// # Records
//
// [Service.ListRecords] serves the full listing, newest first, from a short
// lived cache that every write invalidates. [Service.UpdateRecord] validates
// an edit completely before writing and always derives the percentage from
// the new marks.
//
// # Error Handling
//
// Errors are mapped to user-facing messages with [MapError]. Codes are
// listed in error_messages.go.
package core
