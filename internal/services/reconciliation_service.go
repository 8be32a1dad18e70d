package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

const sweepBatchSize = 500

// ReconcileSummary reports the result of one reconciliation pass
type ReconcileSummary struct {
	AgreementID   string                       `json:"agreement_id"`
	Paid          int                          `json:"paid"`
	Overdue       int                          `json:"overdue"`
	Current       int                          `json:"current"`
	Pending       int                          `json:"pending"`
	Unresolved    int                          `json:"unresolved"`
	TimedOut      int                          `json:"timed_out"`
	TotalValue    int64                        `json:"total_value"`
	TotalSettled  int64                        `json:"total_settled"`
	Installments  []models.InstallmentResponse `json:"installments"`
	ReconciledAt  time.Time                    `json:"reconciled_at"`
	LedgerEntries int                          `json:"ledger_entries"`
}

// ReconciliationService runs reconciliation passes and the overdue sweep
type ReconciliationService struct {
	repo         repository.InstallmentRepository
	ledger       reconciliation.Ledger
	orchestrator *reconciliation.Orchestrator
	tracker      *reconciliation.Tracker
	auditSvc     *AuditService
	timeout      time.Duration
	today        func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	repo repository.InstallmentRepository,
	ledger reconciliation.Ledger,
	orchestrator *reconciliation.Orchestrator,
	auditSvc *AuditService,
	timeout time.Duration,
	today func() time.Time,
) *ReconciliationService {
	return &ReconciliationService{
		repo:         repo,
		ledger:       ledger,
		orchestrator: orchestrator,
		tracker:      reconciliation.NewTracker(),
		auditSvc:     auditSvc,
		timeout:      timeout,
		today:        today,
	}
}

// Reconcile matches every persisted installment of an agreement against the
// ledger, resolves each row with the authority and saves the outcome. A pass
// started later for the same agreement cancels this one, and then nothing is saved.
func (s *ReconciliationService) Reconcile(ctx context.Context, agreementID string, meta models.AuditMeta) (*ReconcileSummary, error) {
	rows, err := s.repo.FindByAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	passCtx, gen, done := s.tracker.Begin(ctx, agreementID)
	defer done()
	passCtx, cancel := context.WithTimeout(passCtx, s.timeout)
	defer cancel()

	today := schedule.DateOf(s.today())
	start := time.Now()

	payments, err := s.ledger.ListReportedPayments(passCtx, agreementID)
	if err != nil {
		if !s.tracker.Current(agreementID, gen) {
			return nil, reconciliation.ErrSuperseded
		}
		logger.Warn("Ledger fetch failed, keeping last known state",
			"agreement_id", agreementID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	outcomes := s.orchestrator.ResolveAll(passCtx, rows, payments, today)

	if !s.tracker.Current(agreementID, gen) {
		logger.Info("Reconciliation superseded, discarding results", "agreement_id", agreementID)
		return nil, reconciliation.ErrSuperseded
	}

	updated := make([]models.Installment, 0, len(outcomes))
	for _, out := range outcomes {
		if errors.Is(out.Err, reconciliation.ErrSuperseded) {
			continue
		}
		if errors.Is(out.Err, reconciliation.ErrResolutionExhausted) {
			s.report(agreementID, out)
		}
		updated = append(updated, out.Row)
	}
	updated = reconciliation.DetectOverdue(updated, today)

	if err := s.repo.SaveReconciled(ctx, updated); err != nil {
		return nil, err
	}

	final, err := s.repo.FindByAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(agreementID, final, today)
	summary.LedgerEntries = len(payments)

	logger.Info("Reconciliation completed",
		"agreement_id", agreementID,
		"rows", len(rows),
		"paid", summary.Paid,
		"overdue", summary.Overdue,
		"unresolved", summary.Unresolved,
		"timed_out", summary.TimedOut,
		"duration", time.Since(start),
	)

	s.auditSvc.Log(ctx, meta, models.AuditActionReconcile, "Agreement", agreementID, map[string]int{
		"paid":       summary.Paid,
		"overdue":    summary.Overdue,
		"pending":    summary.Pending,
		"unresolved": summary.Unresolved,
		"timed_out":  summary.TimedOut,
	})

	return summary, nil
}

// ListInstallments returns the agreement's installments after an overdue
// pass. Rows promoted by the pass are saved.
func (s *ReconciliationService) ListInstallments(ctx context.Context, agreementID string) ([]models.Installment, error) {
	rows, err := s.repo.FindByAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	today := schedule.DateOf(s.today())
	due := reconciliation.PastDue(rows, today)
	if len(due) > 0 {
		refs := make([]string, 0, len(due))
		for _, r := range due {
			refs = append(refs, r.ID)
		}
		if _, err := s.repo.MarkOverdue(ctx, refs); err != nil {
			return nil, err
		}
	}
	return reconciliation.DetectOverdue(rows, today), nil
}

// Summary returns the agreement's installments with their counts
func (s *ReconciliationService) Summary(ctx context.Context, agreementID string) (*ReconcileSummary, error) {
	rows, err := s.ListInstallments(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	return Summarize(agreementID, rows, schedule.DateOf(s.today())), nil
}

// SweepOverdue promotes every current installment past its due date. It
// works in batches until nothing is left.
func (s *ReconciliationService) SweepOverdue(ctx context.Context) (int64, error) {
	today := schedule.DateOf(s.today())
	var total int64

	for {
		rows, err := s.repo.FindCurrentPastDue(ctx, today, sweepBatchSize)
		if err != nil {
			return total, err
		}

		due := reconciliation.PastDue(rows, today)
		if len(due) == 0 {
			break
		}
		refs := make([]string, 0, len(due))
		for _, r := range due {
			refs = append(refs, r.ID)
		}

		n, err := s.repo.MarkOverdue(ctx, refs)
		if err != nil {
			return total, err
		}
		total += n
		if len(rows) < sweepBatchSize || n == 0 {
			break
		}
	}

	if total > 0 {
		logger.Info("Overdue sweep promoted installments", "count", total)
		s.auditSvc.Log(ctx, models.SystemAudit, models.AuditActionSweep, "Installment", "", map[string]int64{"promoted": total})
	}
	return total, nil
}

// Supersede cancels the pass in flight for an agreement
func (s *ReconciliationService) Supersede(agreementID string) {
	if s.tracker.Supersede(agreementID) {
		logger.Info("Superseded in-flight reconciliation", "agreement_id", agreementID)
	}
}

// AuditExport records that an agreement's installments were downloaded
func (s *ReconciliationService) AuditExport(ctx context.Context, meta models.AuditMeta, agreementID, format string) {
	s.auditSvc.Log(ctx, meta, models.AuditActionExport, "Agreement", agreementID, map[string]string{"format": format})
}

// InFlight returns the number of agreements being reconciled
func (s *ReconciliationService) InFlight() int {
	return s.tracker.Active()
}

func (s *ReconciliationService) report(agreementID string, out reconciliation.Outcome) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("agreement_id", agreementID)
		scope.SetTag("installment_id", out.Row.ID)
		scope.SetExtra("attempts", out.Attempts)
		sentry.CaptureException(out.Err)
	})
	logger.Error("Installment left unresolved",
		"agreement_id", agreementID,
		"installment_id", out.Row.ID,
		"attempts", out.Attempts,
		"error", out.Err,
	)
}

// Summarize counts the installments of an agreement by state
func Summarize(agreementID string, rows []models.Installment, today time.Time) *ReconcileSummary {
	summary := &ReconcileSummary{
		AgreementID:  agreementID,
		Installments: make([]models.InstallmentResponse, 0, len(rows)),
		ReconciledAt: time.Now(),
	}
	for i := range rows {
		row := &rows[i]
		switch row.PaymentState {
		case models.PaymentStatePaid:
			summary.Paid++
		case models.PaymentStateOverdue:
			summary.Overdue++
		default:
			summary.Current++
		}
		switch row.Resolution {
		case models.ResolutionPending:
			summary.Pending++
		case models.ResolutionUnresolved:
			summary.Unresolved++
		case models.ResolutionTimedOut:
			summary.TimedOut++
		}
		summary.TotalValue += row.Value
		summary.TotalSettled += row.SettledAmount
		summary.Installments = append(summary.Installments, row.ToResponse(today))
	}
	return summary
}
