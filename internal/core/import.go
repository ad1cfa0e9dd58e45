package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/logging"
	"github.com/JonMunkholm/gradebook/internal/tabular"
)

// ImportFile decodes, normalizes and persists one grade file.
//
// The format is resolved and the whole file decoded before the store is
// touched, so unsupported or malformed files leave it unchanged. Rows that
// fail normalization are reported in ImportResult.Rejected; the remaining
// rows are written with a single bulk insert. A failing insert returns an
// error wrapping ErrImportFailed.
func (s *Service) ImportFile(ctx context.Context, up Upload) (*ImportResult, error) {
	start := time.Now()
	importID := uuid.New().String()
	logger := logging.WithFields(ctx, "import_id", importID, "file", up.FileName)

	if int64(len(up.Data)) > s.upload.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(up.Data), s.upload.MaxFileSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.upload.Timeout)
	defer cancel()

	format, err := tabular.DetectFormat(tabular.Source{ContentType: up.ContentType, FileName: up.FileName})
	if err != nil {
		logger.Info("import refused", "error", err)
		return nil, err
	}

	rows, err := tabular.DecodeAs(up.Data, format)
	if err != nil {
		logger.Info("import decode failed", "format", format, "error", err)
		return nil, err
	}

	candidates, rejected := normalizeRows(rows)

	for _, rej := range rejected {
		logger.Debug("row rejected", "line", rej.Line, "reason", rej.Reason, "field", rej.Field)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.invalidate()
	inserted, err := s.store.BulkInsert(ctx, candidates)
	s.invalidate()
	if err != nil {
		logger.Error("bulk insert failed", "format", format, "rows", len(candidates), "error", err)
		return nil, fmt.Errorf("%w: bulk insert: %w", ErrImportFailed, err)
	}

	result := &ImportResult{
		ImportID:  importID,
		FileName:  up.FileName,
		Format:    format,
		TotalRows: len(rows),
		Inserted:  inserted,
		Rejected:  rejected,
		Duration:  time.Since(start),
	}

	logger.Info("import completed",
		"format", format,
		"rows", result.TotalRows,
		"inserted", result.Inserted,
		"rejected", len(result.Rejected),
		"duration", result.Duration,
	)

	return result, nil
}

// normalizeRows splits decoded rows into candidates and rejections, both in
// file order.
func normalizeRows(rows []tabular.Row) ([]grade.Candidate, []grade.RejectedRow) {
	candidates := make([]grade.Candidate, 0, len(rows))
	var rejected []grade.RejectedRow

	for _, row := range rows {
		out := grade.Normalize(row)
		if !out.OK() {
			rejected = append(rejected, *out.Rejection)
			continue
		}
		candidates = append(candidates, out.Candidate)
	}

	return candidates, rejected
}
