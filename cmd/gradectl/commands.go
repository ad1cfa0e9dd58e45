package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/grade"
)

func (a *app) importCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Import CSV or XLSX grade files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				result, err := a.importPath(cmd, path, contentType)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %s\n", path, core.FormatUserError(err))
					continue
				}
				fmt.Fprintf(out, "%s: imported %d of %d rows (import %s)\n",
					path, result.Inserted, result.TotalRows, result.ImportID)
				for _, rej := range result.Rejected {
					fmt.Fprintf(out, "  rejected %s\n", rej)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type to use instead of the file extension")
	return cmd
}

func (a *app) importPath(cmd *cobra.Command, path, contentType string) (*core.ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.service.ImportFile(cmd.Context(), core.Upload{
		Data:        data,
		ContentType: contentType,
		FileName:    filepath.Base(path),
	})
}

// recordJSON is the JSON form of a record, matching the HTTP API.
type recordJSON struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	StudentName   string    `json:"student_name"`
	TotalMarks    float64   `json:"total_marks"`
	MarksObtained float64   `json:"marks_obtained"`
	Percentage    float64   `json:"percentage"`
	CreatedAt     time.Time `json:"created_at"`
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.service.ListRecords(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				out := make([]recordJSON, len(list.Records))
				for i, r := range list.Records {
					out[i] = recordJSON{
						ID:            r.ID,
						StudentID:     r.StudentID(),
						StudentName:   r.StudentName(),
						TotalMarks:    r.TotalMarks(),
						MarksObtained: r.MarksObtained(),
						Percentage:    r.Percentage(),
						CreatedAt:     r.CreatedAt,
					}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTUDENT_ID\tNAME\tTOTAL\tOBTAINED\tPERCENT\tCREATED")
			for _, r := range list.Records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.StudentID(), r.StudentName(),
					formatMarks(r.TotalMarks()), formatMarks(r.MarksObtained()),
					strconv.FormatFloat(r.Percentage(), 'f', 2, 64),
					r.CreatedAt.Local().Format(time.DateTime),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", list.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func formatMarks(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (a *app) updateCmd() *cobra.Command {
	var studentID, studentName, totalMarks, marksObtained string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the fields of a record",
		Long:  "Replace all four fields of a record. Every field flag is required; the percentage is recomputed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flag := func(name, value string) *string {
				if !cmd.Flags().Changed(name) {
					return nil
				}
				return &value
			}
			in := grade.EditInput{
				StudentID:     flag("student-id", studentID),
				StudentName:   flag("student-name", studentName),
				TotalMarks:    flag("total-marks", totalMarks),
				MarksObtained: flag("marks-obtained", marksObtained),
			}

			rec, err := a.service.UpdateRecord(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %s %s %s/%s (%.2f%%)\n",
				rec.ID, rec.StudentID(), rec.StudentName(),
				formatMarks(rec.MarksObtained()), formatMarks(rec.TotalMarks()), rec.Percentage())
			return nil
		},
	}

	cmd.Flags().StringVar(&studentID, "student-id", "", "student identifier")
	cmd.Flags().StringVar(&studentName, "student-name", "", "student name")
	cmd.Flags().StringVar(&totalMarks, "total-marks", "", "total marks, greater than zero")
	cmd.Flags().StringVar(&marksObtained, "marks-obtained", "", "marks obtained")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.DeleteRecord(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
