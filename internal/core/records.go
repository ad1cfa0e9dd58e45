package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

// ListRecords returns every stored record, newest first.
func (s *Service) ListRecords(ctx context.Context) (*RecordList, error) {
	if list, ok := s.cached(); ok {
		return cloneList(list), nil
	}

	gen := s.generation()
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	list := &RecordList{Records: records, Total: len(records)}
	s.remember(gen, list)
	return cloneList(list), nil
}

// UpdateRecord replaces the editable fields of record id. The payload is
// validated in full before the store is called; the percentage is always
// derived from the new marks.
func (s *Service) UpdateRecord(ctx context.Context, id string, in grade.EditInput) (grade.Record, error) {
	c, err := grade.NormalizeEdit(id, in)
	if err != nil {
		return grade.Record{}, err
	}

	s.invalidate()
	rec, err := s.store.Update(ctx, id, c)
	s.invalidate()
	if err != nil {
		return grade.Record{}, fmt.Errorf("update record %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("record updated", "id", id, "percentage", rec.Percentage())
	return rec, nil
}

// DeleteRecord removes record id.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &grade.ValidationError{Reason: grade.ReasonMissingID}
	}

	s.invalidate()
	err := s.store.Delete(ctx, id)
	s.invalidate()
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("record deleted", "id", id)
	return nil
}

// cloneList copies the record slice so callers cannot alter a cached listing.
func cloneList(list *RecordList) *RecordList {
	return &RecordList{Records: slices.Clone(list.Records), Total: list.Total}
}
