package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"respira-data/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ECGExportHeader columns of the record export (payload excluded)
var ECGExportHeader = []string{
	"Record ID",
	"Device ID",
	"Patient ID",
	"Session ID",
	"Recording Date",
	"Duration (s)",
	"Sample Rate (Hz)",
	"Leads",
	"Status",
	"Data Source",
	"JSON Size",
	"PDF Size",
	"Received At",
}

// export handles GET /api/ecg/data/export: same filters as the list
// endpoint, .xlsx out.
func (h *ECGHandler) export(w http.ResponseWriter, r *http.Request) {
	filter, _, _ := ecgFilterFromQuery(r)
	filter.Limit = 10000 // hard cap for a single export
	filter.Offset = 0

	records, _, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query records for export", zap.Error(err))
		writeError(w, err)
		return
	}

	data, err := GenerateECGExport(records)
	if err != nil {
		h.logger.Error("failed to generate export", zap.Error(err))
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("ecg-records-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GenerateECGExport renders records into an .xlsx workbook.
func GenerateECGExport(records []*domain.ECGRecord) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, close only on error paths

	sheetName := "ECG Records"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ECGExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, rec := range records {
		row := i + 2
		values := []any{
			rec.RecordID,
			rec.DeviceID,
			rec.PatientID,
			rec.SessionID,
			rec.RecordingDate.Format(time.RFC3339),
			rec.RecordingDuration,
			rec.SampleRate,
			strings.Join(rec.Leads, ", "),
			rec.Status,
			rec.DataSource,
			rec.JSONArtifact.SizeBytes,
			rec.PDFArtifact.SizeBytes,
			rec.ReceivedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}
