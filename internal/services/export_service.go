package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/xuri/excelize/v2"
)

var stateLabels = map[models.PaymentState]string{
	models.PaymentStateCurrent: "Al día",
	models.PaymentStateOverdue: "En mora",
	models.PaymentStatePaid:    "Pagada",
}

var exportHeader = []string{"Cuota", "Concepto", "Vencimiento", "Valor", "Estado", "Fecha de pago", "Valor pagado", "Días de mora", "Resolución"}

type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

func (s *ExportService) ExportCSV(summary *ReconcileSummary) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Cuotas del acuerdo", summary.AgreementID, time.Now().Format("2006-01-02 15:04")})
	_ = writer.Write([]string{""})
	_ = writer.Write(exportHeader)

	for _, row := range summary.Installments {
		_ = writer.Write(exportRow(row))
	}

	_ = writer.Write([]string{""})
	_ = writer.Write([]string{"Total", "", "", strconv.FormatInt(summary.TotalValue, 10), "", "", strconv.FormatInt(summary.TotalSettled, 10)})

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), exportFilename(summary.AgreementID, "csv"), nil
}

func (s *ExportService) ExportXLSX(summary *ReconcileSummary) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Cuotas"
	_ = f.SetSheetName("Sheet1", sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	overdueStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#B00020"},
	})

	_ = f.SetCellValue(sheet, "A1", "Cuotas del acuerdo "+summary.AgreementID)
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 3)
		_ = f.SetCellValue(sheet, cell, title)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 3)
	_ = f.SetCellStyle(sheet, "A3", last, headerStyle)

	line := 4
	for _, row := range summary.Installments {
		values := []any{
			row.Sequence,
			row.Label,
			row.DueDate,
			row.Value,
			stateLabels[row.PaymentState],
			derefString(row.SettledDate),
			row.SettledAmount,
			row.OverdueDays,
			string(row.Resolution),
		}
		start, _ := excelize.CoordinatesToCellName(1, line)
		_ = f.SetSheetRow(sheet, start, &values)
		if row.PaymentState == models.PaymentStateOverdue {
			end, _ := excelize.CoordinatesToCellName(len(exportHeader), line)
			_ = f.SetCellStyle(sheet, start, end, overdueStyle)
		}
		line++
	}

	line++
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), "Total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), summary.TotalValue)
	_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", line), summary.TotalSettled)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "C", "I", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), exportFilename(summary.AgreementID, "xlsx"), nil
}

func exportRow(row models.InstallmentResponse) []string {
	return []string{
		strconv.Itoa(row.Sequence),
		row.Label,
		row.DueDate,
		strconv.FormatInt(row.Value, 10),
		stateLabels[row.PaymentState],
		derefString(row.SettledDate),
		strconv.FormatInt(row.SettledAmount, 10),
		strconv.Itoa(row.OverdueDays),
		string(row.Resolution),
	}
}

func exportFilename(agreementID, ext string) string {
	return fmt.Sprintf("cuotas_%s_%s.%s", agreementID, time.Now().Format("2006-01-02"), ext)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
