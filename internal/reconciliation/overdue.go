package reconciliation

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/internal/statemachine"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

// DetectOverdue returns a copy of rows where every current installment due
// strictly before today is promoted to overdue. Paid and overdue rows are
// returned as they are, so repeated calls give the same result.
func DetectOverdue(rows []models.Installment, today time.Time) []models.Installment {
	today = schedule.DateOf(today)
	out := make([]models.Installment, len(rows))
	copy(out, rows)

	for i := range out {
		row := &out[i]
		row.DueDate = schedule.DateOf(row.DueDate)
		if !row.MayExpire(today) {
			continue
		}
		if err := statemachine.NewInstallmentFSM(row).Expire(context.Background(), today); err != nil {
			logger.Warn("Failed to expire installment",
				"installment_id", row.ID,
				"state", row.PaymentState,
				"error", err,
			)
		}
	}
	return out
}

// PastDue returns the rows DetectOverdue would promote
func PastDue(rows []models.Installment, today time.Time) []models.Installment {
	today = schedule.DateOf(today)
	var due []models.Installment
	for _, r := range rows {
		r.DueDate = schedule.DateOf(r.DueDate)
		if r.MayExpire(today) {
			due = append(due, r)
		}
	}
	return due
}
