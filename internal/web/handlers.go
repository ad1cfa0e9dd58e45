package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/grade"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

const (
	// multipartOverhead allows for boundaries and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20

	// maxMultipartMemory is held in memory before parts spill to disk.
	maxMultipartMemory = 32 << 20

	maxEditBody = 64 << 10
)

// RecordResponse is the JSON form of a grade record.
type RecordResponse struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	TotalMarks    float64   `json:"total_marks"`
	MarksObtained float64   `json:"marks_obtained"`
	Percentage    float64   `json:"percentage"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRecordResponse(r grade.Record) RecordResponse {
	return RecordResponse{
		ID:            r.ID,
		StudentID:     r.StudentID(),
		StudentName:   r.StudentName(),
		TotalMarks:    r.TotalMarks(),
		MarksObtained: r.MarksObtained(),
		Percentage:    r.Percentage(),
		CreatedAt:     r.CreatedAt,
	}
}

// RejectedRowResponse describes one row skipped during an import.
type RejectedRowResponse struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Field  string `json:"field,omitempty"`
}

// UploadResponse is returned by a successful import.
type UploadResponse struct {
	Message   string                `json:"message"`
	Count     int                   `json:"count"`
	TotalRows int                   `json:"total_rows"`
	Rejected  []RejectedRowResponse `json:"rejected"`
	ImportID  string                `json:"import_id"`
}

// handleUpload imports the multipart "file" field.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(min(s.cfg.Upload.MaxFileSize, maxMultipartMemory)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(w, r, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		fail(w, r, fmt.Errorf("%w: %w", core.ErrNoFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %w", core.ErrNoFile, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := s.service.ImportFile(r.Context(), core.Upload{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		FileName:    header.Filename,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	rejected := make([]RejectedRowResponse, len(result.Rejected))
	for i, rej := range result.Rejected {
		rejected[i] = RejectedRowResponse{Line: rej.Line, Reason: string(rej.Reason), Field: rej.Field}
	}

	writeJSON(w, UploadResponse{
		Message:   fmt.Sprintf("Imported %d of %d rows", result.Inserted, result.TotalRows),
		Count:     result.Inserted,
		TotalRows: result.TotalRows,
		Rejected:  rejected,
		ImportID:  result.ImportID,
	})
}

// handleListStudents returns every record, newest first.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListRecords(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	students := make([]RecordResponse, len(list.Records))
	for i, rec := range list.Records {
		students[i] = toRecordResponse(rec)
	}
	writeJSON(w, map[string]any{
		"students": students,
		"total":    list.Total,
	})
}

// flexString accepts a JSON string or number and keeps its text.
type flexString struct {
	set   bool
	value string
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		if err := json.Unmarshal(b, &f.value); err != nil {
			return err
		}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		f.value = n.String()
	}
	f.set = true
	return nil
}

func (f flexString) ptr() *string {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// editRequest is a full replacement of a record's input fields. A
// percentage in the body is ignored.
type editRequest struct {
	StudentID     flexString `json:"student_id"`
	StudentName   flexString `json:"student_name"`
	TotalMarks    flexString `json:"total_marks"`
	MarksObtained flexString `json:"marks_obtained"`
}

func (e editRequest) input() grade.EditInput {
	return grade.EditInput{
		StudentID:     e.StudentID.ptr(),
		StudentName:   e.StudentName.ptr(),
		TotalMarks:    e.TotalMarks.ptr(),
		MarksObtained: e.MarksObtained.ptr(),
	}
}

// handleUpdateStudent replaces the fields of one record.
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEditBody)).Decode(&req); err != nil {
		fail(w, r, fmt.Errorf("%w: %w", core.ErrInvalidRequest, err))
		return
	}

	rec, err := s.service.UpdateRecord(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, map[string]any{
		"message": "Student updated",
		"student": toRecordResponse(rec),
	})
}

// handleDeleteStudent removes one record.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"message": "Student deleted"})
}

// HealthResponse reports store reachability and import capacity.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Records *int64                   `json:"records,omitempty"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Imports: s.service.ImportLimiterStatus()}

	n, err := s.service.Ping(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status = "unavailable"
		writeJSONStatus(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Records = &n
	writeJSON(w, resp)
}
