package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"driftq/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes sync log snapshots as .xlsx files for operators.
type Exporter struct {
	dir    string
	logger zerolog.Logger
}

func NewExporter(dir string, logger zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

const logSheet = "Sync Log"

// ExportSyncLog writes entries to a timestamped workbook and returns its path.
// Entries are written in the order given (newest first as QueryLog returns them).
func (e *Exporter) ExportSyncLog(entries []models.SyncLogEntry) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(logSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "Item ID", "Operation", "Collection", "Status", "Error", "Retry Count", "Created At"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(logSheet, cell, header)
		_ = f.SetCellStyle(logSheet, cell, cell, headerStyle)
	}

	for i, entry := range entries {
		row := i + 2
		errText := ""
		if entry.Error != nil {
			errText = *entry.Error
		}
		_ = f.SetCellValue(logSheet, fmt.Sprintf("A%d", row), entry.ID)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("B%d", row), entry.ItemID)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("C%d", row), string(entry.Kind))
		_ = f.SetCellValue(logSheet, fmt.Sprintf("D%d", row), entry.Collection)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("E%d", row), string(entry.Status))
		_ = f.SetCellValue(logSheet, fmt.Sprintf("F%d", row), errText)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("G%d", row), entry.RetryCount)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("H%d", row), entry.CreatedAt.Format("02.01.2006 15:04:05"))
	}

	_ = f.SetColWidth(logSheet, "A", "A", 8)
	_ = f.SetColWidth(logSheet, "B", "B", 38)
	_ = f.SetColWidth(logSheet, "C", "E", 16)
	_ = f.SetColWidth(logSheet, "F", "F", 40)
	_ = f.SetColWidth(logSheet, "G", "G", 12)
	_ = f.SetColWidth(logSheet, "H", "H", 20)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("sync_log_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save export file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("entries", len(entries)).Msg("Sync log exported")
	return filePath, nil
}
