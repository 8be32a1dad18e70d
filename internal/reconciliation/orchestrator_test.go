package reconciliation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthority struct {
	mu         sync.Mutex
	calls      map[string]int
	advisories []AdvisoryInput
	respond    func(ctx context.Context, ref string, call int) (Verdict, error)
}

func (f *fakeAuthority) ResolveInstallment(ctx context.Context, ref string, advisory AdvisoryInput) (Verdict, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[ref]++
	call := f.calls[ref]
	f.advisories = append(f.advisories, advisory)
	f.mu.Unlock()
	return f.respond(ctx, ref, call)
}

func (f *fakeAuthority) callsFor(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestOrchestrator(a Authority, rec *sleepRecorder) *Orchestrator {
	o := NewOrchestrator(a)
	o.Sleep = rec.sleep
	return o
}

func secondInstallment() models.Installment {
	return models.Installment{
		ID:           "ref-2",
		AgreementID:  "A-1",
		Product:      "X",
		Sequence:     2,
		Count:        3,
		Value:        300_000,
		DueDate:      day(2026, time.April, 15),
		PaymentState: models.PaymentStateCurrent,
	}
}

func cuotaTwoPayments() []ReportedPayment {
	return []ReportedPayment{
		{Label: "X - Cuota 2", Amount: 150_000, Date: day(2026, time.April, 3)},
		{Label: "X - Cuota 2 (Mora)", Amount: 150_000, Date: day(2026, time.April, 20)},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestOrchestrator_Delay(t *testing.T) {
	o := NewOrchestrator(nil)
	assert.Equal(t, time.Duration(0), o.Delay(1))
	assert.Equal(t, 1200*time.Millisecond, o.Delay(2))
	assert.Equal(t, 2400*time.Millisecond, o.Delay(3))
}

func TestResolve_CanonicalStateOnFirstAttempt(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{State: "paid", SettledAmount: int64Ptr(300_000), PendingRefs: []string{}}, nil
	}}
	rec := &sleepRecorder{}
	o := newTestOrchestrator(auth, rec)

	row := secondInstallment()
	row.SetRefs([]string{"ext-1"})

	out := o.Resolve(context.Background(), row, cuotaTwoPayments(), day(2026, time.May, 1))

	require.NoError(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, models.PaymentStatePaid, out.Row.PaymentState)
	assert.Equal(t, "paid", out.Row.SettlementState)
	assert.Equal(t, models.ResolutionResolved, out.Row.Resolution)
	assert.Empty(t, out.Row.Refs())
	assert.NotNil(t, out.Row.ReconciledAt)
	assert.Empty(t, rec.delays)

	// The local match goes out as advisory input
	require.Len(t, auth.advisories, 1)
	assert.Equal(t, AdvisoryPaid, auth.advisories[0].State)
	assert.Equal(t, int64(300_000), auth.advisories[0].SettledAmount)
}

func TestResolve_LocalMatchAppliesWhenNothingPending(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	out := o.Resolve(context.Background(), secondInstallment(), cuotaTwoPayments(), day(2026, time.May, 1))

	require.NoError(t, out.Err)
	assert.Equal(t, models.PaymentStatePaid, out.Row.PaymentState)
	assert.Equal(t, int64(300_000), out.Row.SettledAmount)
	require.NotNil(t, out.Row.SettledDate)
	assert.Equal(t, day(2026, time.April, 20), *out.Row.SettledDate)
	assert.Equal(t, models.ResolutionResolved, out.Row.Resolution)
}

func TestResolve_RetriesWithBackoff(t *testing.T) {
	auth := &fakeAuthority{respond: func(_ context.Context, _ string, call int) (Verdict, error) {
		if call < 3 {
			return Verdict{}, errors.New("connection reset")
		}
		return Verdict{State: "paid"}, nil
	}}
	rec := &sleepRecorder{}
	o := newTestOrchestrator(auth, rec)

	out := o.Resolve(context.Background(), secondInstallment(), cuotaTwoPayments(), day(2026, time.May, 1))

	require.NoError(t, out.Err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{1200 * time.Millisecond, 2400 * time.Millisecond}, rec.delays)
	assert.Equal(t, models.PaymentStatePaid, out.Row.PaymentState)
}

func TestResolve_ExhaustedNeverPromotesToPaid(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{PendingRefs: []string{"ext-1"}}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	row := secondInstallment()
	row.SetRefs([]string{"ext-1"})

	out := o.Resolve(context.Background(), row, cuotaTwoPayments(), day(2026, time.May, 1))

	assert.ErrorIs(t, out.Err, ErrResolutionExhausted)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, auth.callsFor("ref-2"))
	assert.Equal(t, models.PaymentStateCurrent, out.Row.PaymentState)
	assert.Equal(t, models.ResolutionUnresolved, out.Row.Resolution)
	assert.Equal(t, []string{"ext-1"}, out.Row.Refs())
	require.NotNil(t, out.Row.LastError)
}

func TestResolve_TransportFailuresSurfaceAsUnresolved(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, errors.New("503 service unavailable")
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	row := secondInstallment()
	row.PaymentState = models.PaymentStateOverdue

	out := o.Resolve(context.Background(), row, cuotaTwoPayments(), day(2026, time.May, 1))

	assert.ErrorIs(t, out.Err, ErrResolutionExhausted)
	assert.ErrorIs(t, out.Err, ErrTransport)
	assert.Equal(t, models.PaymentStateOverdue, out.Row.PaymentState)
	assert.Equal(t, models.ResolutionUnresolved, out.Row.Resolution)
}

func TestResolve_PartialPayment(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})
	payments := []ReportedPayment{{Label: "X - Cuota 2", Amount: 100_000, Date: day(2026, time.April, 10)}}

	// Past due: classified overdue, nothing ambiguous about it
	out := o.Resolve(context.Background(), secondInstallment(), payments, day(2026, time.May, 1))
	assert.NoError(t, out.Err)
	assert.Equal(t, models.ResolutionResolved, out.Row.Resolution)
	assert.Equal(t, models.PaymentStateOverdue, out.Row.PaymentState)
	assert.Equal(t, int64(100_000), out.Row.SettledAmount)

	// Not yet due: no date basis, stays current and pending
	out = o.Resolve(context.Background(), secondInstallment(), payments, day(2026, time.April, 11))
	assert.ErrorIs(t, out.Err, ErrAmbiguous)
	assert.Equal(t, models.ResolutionPending, out.Row.Resolution)
	assert.Equal(t, models.PaymentStateCurrent, out.Row.PaymentState)

	require.NotEmpty(t, auth.advisories)
	assert.Equal(t, AdvisoryArrears, auth.advisories[0].State)
}

func TestResolve_CanonicalStateRevertsPaidRow(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{State: "en_mora"}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	row := secondInstallment()
	row.PaymentState = models.PaymentStatePaid

	out := o.Resolve(context.Background(), row, nil, day(2026, time.May, 1))
	require.NoError(t, out.Err)
	assert.Equal(t, models.PaymentStateOverdue, out.Row.PaymentState)
	assert.Equal(t, "en_mora", out.Row.SettlementState)
}

func TestResolve_LedgerLosingPaymentRevertsLocalSettlement(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	paid := o.Resolve(context.Background(), secondInstallment(), cuotaTwoPayments(), day(2026, time.May, 1))
	require.NoError(t, paid.Err)
	require.Equal(t, models.PaymentStatePaid, paid.Row.PaymentState)

	t.Run("past due becomes overdue", func(t *testing.T) {
		out := o.Resolve(context.Background(), paid.Row, nil, day(2026, time.May, 1))
		require.NoError(t, out.Err)
		assert.Equal(t, models.PaymentStateOverdue, out.Row.PaymentState)
		assert.Zero(t, out.Row.SettledAmount)
		assert.Nil(t, out.Row.SettledDate)
		assert.Equal(t, models.ResolutionResolved, out.Row.Resolution)
	})

	t.Run("not yet due becomes current", func(t *testing.T) {
		out := o.Resolve(context.Background(), paid.Row, nil, day(2026, time.April, 1))
		require.NoError(t, out.Err)
		assert.Equal(t, models.PaymentStateCurrent, out.Row.PaymentState)
		assert.Zero(t, out.Row.SettledAmount)
		assert.Nil(t, out.Row.SettledDate)
	})
}

func TestResolve_CanonicalSettlementSurvivesEmptyLedger(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	row := secondInstallment()
	row.PaymentState = models.PaymentStatePaid
	row.SettlementState = "paid"
	row.SettledAmount = 300_000
	settled := day(2026, time.April, 14)
	row.SettledDate = &settled

	out := o.Resolve(context.Background(), row, nil, day(2026, time.May, 1))
	require.NoError(t, out.Err)
	assert.Equal(t, models.PaymentStatePaid, out.Row.PaymentState)
	assert.Equal(t, int64(300_000), out.Row.SettledAmount)
	require.NotNil(t, out.Row.SettledDate)
	assert.Equal(t, settled, *out.Row.SettledDate)
}

func TestResolve_CancelledLeavesRowUntouched(t *testing.T) {
	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{State: "paid"}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	row := secondInstallment()
	out := o.Resolve(ctx, row, cuotaTwoPayments(), day(2026, time.May, 1))

	assert.ErrorIs(t, out.Err, ErrSuperseded)
	assert.Equal(t, row, out.Row)
	assert.Zero(t, auth.callsFor("ref-2"))
}

func TestResolve_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := &fakeAuthority{respond: func(context.Context, string, int) (Verdict, error) {
		return Verdict{}, errors.New("timeout")
	}}
	o := NewOrchestrator(auth)
	o.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	row := secondInstallment()
	out := o.Resolve(ctx, row, nil, day(2026, time.May, 1))

	assert.ErrorIs(t, out.Err, ErrSuperseded)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, row, out.Row)
	assert.Equal(t, 1, auth.callsFor("ref-2"))
}

func TestResolveAll_SlowRowTimesOut(t *testing.T) {
	auth := &fakeAuthority{respond: func(ctx context.Context, ref string, _ int) (Verdict, error) {
		if ref == "slow" {
			<-ctx.Done()
			return Verdict{}, ctx.Err()
		}
		return Verdict{State: "paid"}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})

	rows := []models.Installment{secondInstallment(), secondInstallment(), secondInstallment()}
	rows[0].ID = "fast-1"
	rows[1].ID = "slow"
	rows[2].ID = "fast-2"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcomes := o.ResolveAll(ctx, rows, nil, day(2026, time.May, 1))
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, models.PaymentStatePaid, outcomes[0].Row.PaymentState)
	assert.NoError(t, outcomes[2].Err)

	assert.ErrorIs(t, outcomes[1].Err, ErrTimedOut)
	assert.Equal(t, models.ResolutionTimedOut, outcomes[1].Row.Resolution)
	assert.Equal(t, models.PaymentStateCurrent, outcomes[1].Row.PaymentState)
}

func TestResolveAll_RowsAreIsolated(t *testing.T) {
	auth := &fakeAuthority{respond: func(_ context.Context, ref string, _ int) (Verdict, error) {
		if ref == "broken" {
			return Verdict{}, errors.New("boom")
		}
		return Verdict{State: "paid"}, nil
	}}
	o := newTestOrchestrator(auth, &sleepRecorder{})
	o.Workers = 2

	var rows []models.Installment
	for _, id := range []string{"a", "broken", "b", "c", "d"} {
		r := secondInstallment()
		r.ID = id
		rows = append(rows, r)
	}

	outcomes := o.ResolveAll(context.Background(), rows, nil, day(2026, time.May, 1))
	require.Len(t, outcomes, len(rows))

	for i, out := range outcomes {
		assert.Equal(t, rows[i].ID, out.Row.ID)
		if out.Row.ID == "broken" {
			assert.ErrorIs(t, out.Err, ErrResolutionExhausted)
			assert.Equal(t, models.ResolutionUnresolved, out.Row.Resolution)
			continue
		}
		assert.NoError(t, out.Err)
		assert.Equal(t, models.PaymentStatePaid, out.Row.PaymentState)
	}
}

func TestCanonicalState(t *testing.T) {
	tests := []struct {
		in   string
		want models.PaymentState
		ok   bool
	}{
		{"paid", models.PaymentStatePaid, true},
		{" Pagada ", models.PaymentStatePaid, true},
		{"en_mora", models.PaymentStateOverdue, true},
		{"pendiente", models.PaymentStateCurrent, true},
		{"anulada", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalState(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
