package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/internal/statemachine"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

// Retry defaults
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 600 * time.Millisecond
	DefaultWorkers     = 8
)

// AdvisoryInput is the locally matched settlement offered to the authority
type AdvisoryInput struct {
	State         string     `json:"state"`
	SettledDate   *time.Time `json:"settled_date,omitempty"`
	SettledAmount int64      `json:"settled_amount"`
}

// Verdict is the authority's canonical answer for one installment reference.
// Nil fields leave the row untouched. A nil PendingRefs keeps the current
// references, an empty one clears them.
type Verdict struct {
	State         string
	SettledDate   *time.Time
	SettledAmount *int64
	PendingRefs   []string
}

// Authority resolves the canonical settlement of an installment. Calls are
// idempotent per reference.
type Authority interface {
	ResolveInstallment(ctx context.Context, ref string, advisory AdvisoryInput) (Verdict, error)
}

// Ledger lists the payments reported for an agreement
type Ledger interface {
	ListReportedPayments(ctx context.Context, agreementID string) ([]ReportedPayment, error)
}

// Outcome of resolving one row
type Outcome struct {
	Row      models.Installment
	Attempts int
	Err      error
}

// Orchestrator drives the bounded retry loop against the authority
type Orchestrator struct {
	Authority   Authority
	Tolerance   int64
	MaxAttempts int
	BaseDelay   time.Duration
	Workers     int
	Sleep       func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator with the default retry budget
func NewOrchestrator(authority Authority) *Orchestrator {
	return &Orchestrator{
		Authority:   authority,
		Tolerance:   DefaultTolerance,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Workers:     DefaultWorkers,
		Sleep:       sleepContext,
	}
}

// Delay returns the wait before the given 1-based attempt
func (o *Orchestrator) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return o.BaseDelay << (attempt - 1)
}

// Resolve runs up to MaxAttempts rounds of match then authority for one row.
// The returned Outcome carries the updated row. If ctx ends first the row is
// returned unchanged with ErrSuperseded or ErrTimedOut.
func (o *Orchestrator) Resolve(ctx context.Context, row models.Installment, payments []ReportedPayment, today time.Time) Outcome {
	original := row
	today = schedule.DateOf(today)
	maxAttempts := o.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	match := Match(payments, InputFor(&row, o.Tolerance))
	advisory := AdvisoryInput{
		State:         Advisory(match),
		SettledDate:   match.SettledDate,
		SettledAmount: match.SettledAmount,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if d := o.Delay(attempt); d > 0 {
			if err := o.sleep(ctx, d); err != nil {
				return cancelled(ctx, original, attempt-1)
			}
		}
		if ctx.Err() != nil {
			return cancelled(ctx, original, attempt-1)
		}

		verdict, err := o.Authority.ResolveInstallment(ctx, row.ID, advisory)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(ctx, original, attempt-1)
			}
			lastErr = fmt.Errorf("%w: %w", ErrTransport, err)
			logger.Warn("Authority call failed",
				"installment_id", row.ID,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err,
			)
			continue
		}

		resolution, err := o.apply(ctx, &row, match, verdict, today)
		if err != nil {
			lastErr = err
			continue
		}
		if row.IsResolved() {
			if resolution == models.ResolutionPending {
				return finish(row, attempt, resolution, ErrAmbiguous)
			}
			return finish(row, attempt, resolution, nil)
		}
		lastErr = fmt.Errorf("referencias pendientes: %s", strings.Join(row.Refs(), ","))
	}

	err := fmt.Errorf("%w: cuota %s: %w", ErrResolutionExhausted, row.ID, lastErr)
	return finish(row, maxAttempts, models.ResolutionUnresolved, err)
}

// apply merges the authority's verdict into row. The local match is only used
// when the row ends resolved and the authority gave no canonical state.
func (o *Orchestrator) apply(ctx context.Context, row *models.Installment, match MatchResult, v Verdict, today time.Time) (models.Resolution, error) {
	if v.PendingRefs != nil {
		row.SetRefs(v.PendingRefs)
	}
	if v.SettledDate != nil {
		d := schedule.DateOf(*v.SettledDate)
		row.SettledDate = &d
	}
	if v.SettledAmount != nil {
		row.SettledAmount = *v.SettledAmount
	}

	m := statemachine.NewInstallmentFSM(row)

	if v.State != "" {
		row.SettlementState = v.State
		if target, ok := CanonicalState(v.State); ok {
			if err := m.MoveTo(ctx, target); err != nil {
				return models.ResolutionUnresolved, err
			}
		}
		return models.ResolutionResolved, nil
	}
	if !row.IsResolved() {
		return models.ResolutionNone, nil
	}

	switch match.Outcome {
	case OutcomePaid:
		if v.SettledDate == nil {
			row.SettledDate = match.SettledDate
		}
		if v.SettledAmount == nil {
			row.SettledAmount = match.SettledAmount
		}
		if err := m.MoveTo(ctx, models.PaymentStatePaid); err != nil {
			return models.ResolutionUnresolved, err
		}
		return models.ResolutionResolved, nil

	case OutcomeArrears:
		if v.SettledAmount == nil {
			row.SettledAmount = match.SettledAmount
		}
		if row.PaymentState == models.PaymentStatePaid {
			if err := m.Supersede(ctx); err != nil {
				return models.ResolutionUnresolved, err
			}
		}
		if row.MayExpire(today) {
			if err := m.Expire(ctx, today); err != nil {
				return models.ResolutionUnresolved, err
			}
		}
		// A past-due row has a date basis: it is overdue, not ambiguous
		if schedule.DateOf(row.DueDate).Before(today) {
			return models.ResolutionResolved, nil
		}
		return models.ResolutionPending, nil

	case OutcomeUnmatched:
		// Only a locally derived settlement is undone; canonical ones stay
		if row.SettlementState != "" {
			return models.ResolutionResolved, nil
		}
		if v.SettledDate == nil {
			row.SettledDate = nil
		}
		if v.SettledAmount == nil {
			row.SettledAmount = 0
		}
		if row.PaymentState == models.PaymentStatePaid {
			if err := m.Supersede(ctx); err != nil {
				return models.ResolutionUnresolved, err
			}
		}
		if row.MayExpire(today) {
			if err := m.Expire(ctx, today); err != nil {
				return models.ResolutionUnresolved, err
			}
		}
	}

	return models.ResolutionResolved, nil
}

// ResolveAll resolves every row concurrently, bounded by Workers. Rows still in
// flight when ctx ends keep their last persisted state and are reported as
// timed out, or superseded if ctx was cancelled.
func (o *Orchestrator) ResolveAll(ctx context.Context, rows []models.Installment, payments []ReportedPayment, today time.Time) []Outcome {
	workers := o.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	results := make([]Outcome, len(rows))
	done := make([]bool, len(rows))
	var mu sync.Mutex
	closed := false

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			out := o.Resolve(ctx, rows[i], payments, today)

			mu.Lock()
			defer mu.Unlock()
			if !closed {
				results[i] = out
				done[i] = true
			}
		}(i)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	for i := range rows {
		if !done[i] {
			results[i] = cancelled(ctx, rows[i], 0)
		}
	}
	return results
}

// cancelled reports a row whose pass ended before it finished. A deadline marks
// the row timed out. Any other cancellation means the plan was superseded.
func cancelled(ctx context.Context, row models.Installment, attempts int) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		row.Resolution = models.ResolutionTimedOut
		return Outcome{Row: row, Attempts: attempts, Err: ErrTimedOut}
	}
	return Outcome{Row: row, Attempts: attempts, Err: ErrSuperseded}
}

func finish(row models.Installment, attempts int, resolution models.Resolution, err error) Outcome {
	row.Resolution = resolution
	row.Attempts = attempts
	now := time.Now()
	row.ReconciledAt = &now
	if err != nil {
		msg := err.Error()
		row.LastError = &msg
	} else {
		row.LastError = nil
	}
	return Outcome{Row: row, Attempts: attempts, Err: err}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CanonicalState maps an authority state string to a PaymentState
func CanonicalState(s string) (models.PaymentState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "pagada", "pagado", "aprobada":
		return models.PaymentStatePaid, true
	case "overdue", "en_mora", "mora", "vencida":
		return models.PaymentStateOverdue, true
	case "current", "pendiente", "al_dia":
		return models.PaymentStateCurrent, true
	default:
		return "", false
	}
}
