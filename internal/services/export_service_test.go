package services

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportSummary() *ReconcileSummary {
	rows := agreementRows()
	rows[0].PaymentState = models.PaymentStatePaid
	rows[0].SettledAmount = 100_000
	settled := rows[0].DueDate
	rows[0].SettledDate = &settled
	rows[1].PaymentState = models.PaymentStateOverdue
	return Summarize("A-1", rows, reconToday)
}

func TestExportCSV(t *testing.T) {
	svc := NewExportService()

	data, filename, err := svc.ExportCSV(exportSummary())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "cuotas_A-1_"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	// Blank lines are skipped by the reader: title, header, three rows, total
	require.Len(t, records, 6)
	assert.Equal(t, exportHeader, records[1])
	assert.Equal(t, []string{"1", "X - Cuota 1", "2026-03-10", "100000", "Pagada", "2026-03-10", "100000", "0", ""}, records[2])
	assert.Equal(t, "En mora", records[3][4])
	assert.Equal(t, "30", records[3][7])
	assert.Equal(t, "Al día", records[4][4])
	assert.Equal(t, "300000", records[5][3])
	assert.Equal(t, "100000", records[5][6])
}

func TestExportXLSX(t *testing.T) {
	svc := NewExportService()

	data, filename, err := svc.ExportXLSX(exportSummary())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cuotas")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 6)
	assert.Equal(t, "Cuotas del acuerdo A-1", rows[0][0])
	assert.Equal(t, exportHeader, rows[2])
	assert.Equal(t, "X - Cuota 2", rows[4][1])
	assert.Equal(t, "En mora", rows[4][4])
}
