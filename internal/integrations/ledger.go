package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
)

// LedgerClient lists reported payments from the settlement ledger
type LedgerClient struct {
	client
}

// NewLedgerClient creates a ledger client
func NewLedgerClient(baseURL, token string, timeout time.Duration) *LedgerClient {
	return &LedgerClient{client: newClient(baseURL, token, timeout)}
}

// ListReportedPayments calls GET /agreements/{id}/payments. Amounts may come as
// numbers or strings and are rounded to whole units.
func (c *LedgerClient) ListReportedPayments(ctx context.Context, agreementID string) ([]reconciliation.ReportedPayment, error) {
	var dto paymentsDTO
	if err := c.getJSON(ctx, "/agreements/"+escape(agreementID)+"/payments", &dto); err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", agreementID, err)
	}

	payments := make([]reconciliation.ReportedPayment, 0, len(dto.Data))
	for _, p := range dto.Data {
		date, err := parseDate(p.Date)
		if err != nil {
			return nil, fmt.Errorf("payment %q of %s: %w", p.Label, agreementID, err)
		}
		payments = append(payments, reconciliation.ReportedPayment{
			Label:  p.Label,
			Amount: units(p.Amount),
			Date:   date,
		})
	}
	return payments, nil
}
