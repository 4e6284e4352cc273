package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"todoTracker/models"
)

// ErrUnknownFormat is returned for formats other than json, csv and pdf.
var ErrUnknownFormat = errors.New("unknown export format")

// TaskLister is the part of the task store the exporter reads from.
type TaskLister interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Task, error)
}

type Exporter struct{ tasks TaskLister }

func NewExporter(tasks TaskLister) *Exporter { return &Exporter{tasks: tasks} }

// ContentType maps an export format to its MIME type.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv"
	case "pdf":
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Export renders every task of userID in the given format.
func (e *Exporter) Export(ctx context.Context, userID int64, format string) ([]byte, error) {
	format = strings.ToLower(format)
	switch format {
	case "json", "csv", "pdf":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	all, err := e.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return json.MarshalIndent(all, "", "  ")
	case "csv":
		var b bytes.Buffer
		w := csv.NewWriter(&b)
		_ = w.Write([]string{"id", "what_to_do", "due_date", "status", "label"})
		for _, t := range all {
			_ = w.Write([]string{fmt.Sprint(t.ID), t.Description, t.DueDate, string(t.Status), t.Label})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return renderPDF(all)
	}
}

func renderPDF(all []models.Task) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Tasks")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	if len(all) == 0 {
		pdf.Cell(40, 6, "No tasks.")
	}
	for _, t := range all {
		mark := " "
		if t.Status == models.TaskStatusDone {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s  (due %s, %s)", mark, t.Description, t.DueDate, t.Label)
		pdf.MultiCell(0, 6, tr(line), "0", "L", false)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
