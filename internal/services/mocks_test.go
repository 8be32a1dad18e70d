package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
)

// Mock InstallmentRepository backed by a map
type mockInstallmentRepository struct {
	repository.InstallmentRepository
	mu      sync.Mutex
	rows    map[string]models.Installment
	updates []string
	saves   int
}

func newMockInstallmentRepository(rows ...models.Installment) *mockInstallmentRepository {
	m := &mockInstallmentRepository{rows: make(map[string]models.Installment)}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *mockInstallmentRepository) CreateAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.AgreementID == agreementID {
			return repository.ErrAgreementHasSchedule
		}
	}
	for _, r := range rows {
		r.AgreementID = agreementID
		m.rows[r.ID] = r
	}
	return nil
}

func (m *mockInstallmentRepository) ReplaceAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.AgreementID == agreementID {
			delete(m.rows, id)
		}
	}
	for _, r := range rows {
		r.AgreementID = agreementID
		m.rows[r.ID] = r
	}
	return nil
}

func (m *mockInstallmentRepository) UpdateInstallment(ctx context.Context, ref string, patch repository.InstallmentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[ref]
	if !ok {
		return ErrNotFound
	}
	if patch.Value != nil {
		r.Value = *patch.Value
	}
	if patch.DueDate != nil {
		r.DueDate = *patch.DueDate
	}
	m.rows[ref] = r
	m.updates = append(m.updates, ref)
	return nil
}

func (m *mockInstallmentRepository) FindByAgreement(ctx context.Context, agreementID string) ([]models.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Installment
	for _, r := range m.rows {
		if r.AgreementID == agreementID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *mockInstallmentRepository) SaveReconciled(ctx context.Context, rows []models.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return nil
}

func (m *mockInstallmentRepository) FindCurrentPastDue(ctx context.Context, today time.Time, limit int) ([]models.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Installment
	for _, r := range m.rows {
		if r.PaymentState == models.PaymentStateCurrent && r.DueDate.Before(today) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockInstallmentRepository) MarkOverdue(ctx context.Context, refs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ref := range refs {
		r, ok := m.rows[ref]
		if ok && r.PaymentState == models.PaymentStateCurrent {
			r.PaymentState = models.PaymentStateOverdue
			m.rows[ref] = r
			n++
		}
	}
	return n, nil
}

func (m *mockInstallmentRepository) get(ref string) models.Installment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[ref]
}

func (m *mockInstallmentRepository) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Mock AuditRepository
type mockAuditRepository struct {
	repository.AuditRepository
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepository) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockCatalog struct {
	agreements map[string]schedule.AgreementContext
	products   map[string]integrations.ProductMeta
}

func (m *mockCatalog) GetAgreementContext(ctx context.Context, agreementID string) (schedule.AgreementContext, error) {
	a, ok := m.agreements[agreementID]
	if !ok {
		return schedule.AgreementContext{}, integrations.ErrNotFound
	}
	return a, nil
}

func (m *mockCatalog) GetProductMeta(ctx context.Context, product string) (integrations.ProductMeta, error) {
	p, ok := m.products[product]
	if !ok {
		return integrations.ProductMeta{}, integrations.ErrNotFound
	}
	return p, nil
}

type mockLedger struct {
	payments []reconciliation.ReportedPayment
	err      error
	hang     bool
}

func (m *mockLedger) ListReportedPayments(ctx context.Context, agreementID string) ([]reconciliation.ReportedPayment, error) {
	if m.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.payments, m.err
}

type mockAuthority struct {
	respond func(ctx context.Context, ref string) (reconciliation.Verdict, error)
}

func (m *mockAuthority) ResolveInstallment(ctx context.Context, ref string, advisory reconciliation.AdvisoryInput) (reconciliation.Verdict, error) {
	if m.respond == nil {
		return reconciliation.Verdict{}, nil
	}
	return m.respond(ctx, ref)
}

func fixedToday(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
