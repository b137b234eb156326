package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/docflow-api/internal/models"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
	"github.com/noah-isme/docflow-api/pkg/export"
)

// Export formats accepted by ExportHistory.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// HistoryExport is a rendered audit trail ready to download.
type HistoryExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

var historyHeaders = []string{"#", "Status", "Changed By", "Department", "Remarks", "Date"}

// ExportHistory renders the audit trail of a file.
func (s *FileService) ExportHistory(ctx context.Context, actor models.Actor, id, format string) (*HistoryExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatPDF
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}

	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	dataset := historyDataset(file, s.location())
	name := fmt.Sprintf("file-%d-history.%s", file.UniqueID, format)

	switch format {
	case ExportFormatCSV:
		data, err := (&export.CSVExporter{BOM: true}).Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &HistoryExport{Filename: name, ContentType: "text/csv; charset=utf-8", Data: data}, nil
	default:
		doc := export.Document{
			Title: fmt.Sprintf("File #%d history", file.UniqueID),
			Details: [][2]string{
				{"File", file.FileName},
				{"Department", file.Department.DisplayName()},
				{"Uploaded by", firstNonEmpty(file.UploaderName, file.UploadedBy)},
				{"Current status", string(file.Status)},
			},
			Widths: []float64{0.5, 1.2, 2, 1.4, 3.5, 1.8},
			Data:   dataset,
		}
		data, err := export.NewPDFExporter().Render(doc)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &HistoryExport{Filename: name, ContentType: "application/pdf", Data: data}, nil
	}
}

func historyDataset(file *models.File, loc *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(file.History))
	for i, entry := range file.History {
		dept := ""
		if entry.Department != "" {
			dept = entry.Department.DisplayName()
		}
		rows = append(rows, map[string]string{
			"#":          fmt.Sprintf("%d", i+1),
			"Status":     string(entry.Status),
			"Changed By": firstNonEmpty(entry.ChangedByName, entry.ChangedBy),
			"Department": dept,
			"Remarks":    entry.Remarks,
			"Date":       entry.Date.In(loc).Format("2006-01-02 15:04"),
		})
	}
	return export.Dataset{Headers: historyHeaders, Rows: rows}
}

func (s *FileService) location() *time.Location {
	if s.loc != nil {
		return s.loc
	}
	return time.UTC
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
