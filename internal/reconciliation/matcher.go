package reconciliation

import (
	"strings"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/models"
)

// DefaultTolerance is the shortfall still accepted as a full payment
const DefaultTolerance int64 = 1000

// Advisory states sent to the settlement authority
const (
	AdvisoryPaid    = "paid"
	AdvisoryArrears = "en_mora"
)

// ReportedPayment is one line item from the settlement ledger
type ReportedPayment struct {
	Label  string    `json:"label"`
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
}

// Outcome of matching one installment against the ledger
type MatchOutcome string

const (
	OutcomePaid      MatchOutcome = "paid"
	OutcomeArrears   MatchOutcome = "arrears"
	OutcomeUnmatched MatchOutcome = "unmatched"
)

// MatchInput identifies the installment being matched
type MatchInput struct {
	Product   string
	Sequence  int
	Count     int
	Value     int64
	Tolerance int64
}

// MatchResult is the locally derived settlement of one installment
type MatchResult struct {
	Outcome           MatchOutcome
	SettledDate       *time.Time
	SettledAmount     int64
	Matched           int
	ClosedByPazYSalvo bool
}

// InputFor builds the match input of a persisted row
func InputFor(row *models.Installment, tolerance int64) MatchInput {
	return MatchInput{
		Product:   row.Product,
		Sequence:  row.Sequence,
		Count:     row.Count,
		Value:     row.Value,
		Tolerance: tolerance,
	}
}

// Match derives the settlement of one installment from the full ledger listing.
// A paz y salvo line closes the last installment regardless of amounts.
// Otherwise the cuota and mora lines for the installment are summed and the
// installment is paid once the sum reaches its value minus the tolerance.
func Match(payments []ReportedPayment, in MatchInput) MatchResult {
	cuota := normalizeLabel(models.InstallmentLabel(in.Product, in.Sequence))
	mora := normalizeLabel(models.MoraLabel(in.Product, in.Sequence))
	closing := normalizeLabel(models.PazYSalvoLabel(in.Product))
	isLast := in.Sequence == in.Count

	if isLast {
		for _, p := range payments {
			if normalizeLabel(p.Label) == closing {
				date := p.Date
				return MatchResult{
					Outcome:           OutcomePaid,
					SettledDate:       &date,
					SettledAmount:     p.Amount,
					Matched:           1,
					ClosedByPazYSalvo: true,
				}
			}
		}
	}

	var result MatchResult
	var latest time.Time
	for _, p := range payments {
		label := normalizeLabel(p.Label)
		if label != cuota && label != mora {
			continue
		}
		result.Matched++
		result.SettledAmount += p.Amount
		if p.Date.After(latest) {
			latest = p.Date
		}
	}

	switch {
	case result.Matched == 0:
		result.Outcome = OutcomeUnmatched
		return result
	case result.SettledAmount+in.Tolerance >= in.Value:
		result.Outcome = OutcomePaid
	default:
		result.Outcome = OutcomeArrears
	}
	result.SettledDate = &latest
	return result
}

// Advisory maps a match outcome to the state suggested to the authority
func Advisory(r MatchResult) string {
	switch r.Outcome {
	case OutcomePaid:
		return AdvisoryPaid
	case OutcomeArrears:
		return AdvisoryArrears
	default:
		return ""
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
