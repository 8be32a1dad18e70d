package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/jobs"
	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

// BuildPlanInput holds the data to build a plan. Zero Total means the product price.
type BuildPlanInput struct {
	AgreementID string
	Total       int64
	Count       int
	AnchorDate  *time.Time
}

// PlanView is a plan together with what may be edited on each installment
type PlanView struct {
	Plan         *schedule.Plan        `json:"plan"`
	Capabilities []schedule.Capability `json:"capabilities"`
}

// CommitResult reports what a commit wrote
type CommitResult struct {
	AgreementID string `json:"agreement_id"`
	PlanID      string `json:"plan_id"`
	Mode        string `json:"mode"`
	Changed     int    `json:"changed"`
}

// Commit modes
const (
	CommitCreated  = "created"
	CommitUpdated  = "updated"
	CommitReplaced = "replaced"
)

// PlanService builds, edits and persists installment plans
type PlanService struct {
	store    *PlanStore
	catalog  integrations.Catalog
	repo     repository.InstallmentRepository
	recon    *ReconciliationService
	auditSvc *AuditService
	worker   *jobs.Worker
	today    func() time.Time
}

// NewPlanService creates a new plan service
func NewPlanService(
	store *PlanStore,
	catalog integrations.Catalog,
	repo repository.InstallmentRepository,
	recon *ReconciliationService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	today func() time.Time,
) *PlanService {
	return &PlanService{
		store:    store,
		catalog:  catalog,
		repo:     repo,
		recon:    recon,
		auditSvc: auditSvc,
		worker:   worker,
		today:    today,
	}
}

// BuildPlan creates a new plan for an agreement. Plans built earlier for the
// same agreement are discarded together with any reconciliation in flight.
func (s *PlanService) BuildPlan(ctx context.Context, input BuildPlanInput) (*PlanView, error) {
	agreement, err := s.catalog.GetAgreementContext(ctx, input.AgreementID)
	if err != nil {
		return nil, upstream(err)
	}

	total := input.Total
	if total == 0 {
		meta, err := s.catalog.GetProductMeta(ctx, agreement.Product)
		if err != nil {
			return nil, upstream(err)
		}
		total = meta.Price
	}

	today := schedule.DateOf(s.today())
	anchor := today
	if input.AnchorDate != nil {
		anchor = schedule.DateOf(*input.AnchorDate)
	}

	plan, err := schedule.Build(total, input.Count, anchor, agreement)
	if err != nil {
		return nil, err
	}
	plan.SetToday(today)

	s.store.Put(plan)
	if n := s.store.DeleteAgreement(agreement.AgreementID, plan.ID); n > 0 {
		logger.Debug("Discarded previous plans", "agreement_id", agreement.AgreementID, "count", n)
	}
	if s.recon != nil {
		s.recon.Supersede(agreement.AgreementID)
	}

	logger.Info("Plan built",
		"plan_id", plan.ID,
		"agreement_id", agreement.AgreementID,
		"total", total,
		"count", plan.Count(),
		"max_financing", plan.IsMaxFinancing,
	)

	return s.view(plan.Clone()), nil
}

// GetPlan returns a stored plan with its current capabilities
func (s *PlanService) GetPlan(planID string) (*PlanView, error) {
	plan, err := s.store.Get(planID)
	if err != nil {
		return nil, err
	}
	return s.view(plan), nil
}

// EditInstallment changes the value and/or due date of one installment and
// redistributes the rest. Edits to the same plan are applied one at a time.
func (s *PlanService) EditInstallment(planID string, index int, req schedule.EditRequest) (*PlanView, error) {
	var out *schedule.Plan
	err := s.store.With(planID, func(p *schedule.Plan) error {
		if err := schedule.Edit(p, index, req, s.today()); err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(out), nil
}

// CommitPlan persists the plan's installments. The first commit creates the
// rows; later commits update only the rows that changed, or replace the whole
// schedule when the count changed and nothing has been paid yet.
func (s *PlanService) CommitPlan(ctx context.Context, planID string, meta models.AuditMeta) (*CommitResult, error) {
	plan, err := s.store.Get(planID)
	if err != nil {
		return nil, err
	}
	agreementID := plan.Context.AgreementID

	existing, err := s.repo.FindByAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	result := &CommitResult{AgreementID: agreementID, PlanID: plan.ID}

	switch {
	case len(existing) == 0:
		rows := toRows(plan)
		if err := s.repo.CreateAgreementInstallments(ctx, agreementID, rows); err != nil {
			if errors.Is(err, repository.ErrAgreementHasSchedule) {
				return nil, ErrDuplicate
			}
			return nil, err
		}
		result.Mode = CommitCreated
		result.Changed = len(rows)

	case len(existing) == plan.Count():
		changed, err := s.updateChanged(ctx, plan, existing)
		if err != nil {
			return nil, err
		}
		result.Mode = CommitUpdated
		result.Changed = changed

	default:
		for i := range existing {
			if existing[i].PaymentState == models.PaymentStatePaid {
				return nil, fmt.Errorf("%w: la cuota %d ya está pagada", ErrInvalidState, existing[i].Sequence)
			}
		}
		rows := toRows(plan)
		if err := s.repo.ReplaceAgreementInstallments(ctx, agreementID, rows); err != nil {
			return nil, err
		}
		result.Mode = CommitReplaced
		result.Changed = len(rows)
	}

	logger.Info("Plan committed",
		"plan_id", plan.ID,
		"agreement_id", agreementID,
		"mode", result.Mode,
		"changed", result.Changed,
	)

	s.auditSvc.Log(ctx, meta, models.AuditActionCommit, "Agreement", agreementID, result)

	if result.Changed > 0 && s.recon != nil {
		s.recon.Supersede(agreementID)
		if s.worker != nil {
			s.worker.EnqueueAsync("reconcile", func(ctx context.Context) error {
				_, err := s.recon.Reconcile(ctx, agreementID, models.SystemAudit)
				return err
			})
		}
	}

	return result, nil
}

// DiscardPlan forgets a plan
func (s *PlanService) DiscardPlan(planID string) {
	s.store.Delete(planID)
}

// EvictIdle removes plans nobody touched within the store's TTL
func (s *PlanService) EvictIdle(ctx context.Context) error {
	if n := s.store.Evict(); n > 0 {
		logger.Info("Evicted idle plans", "count", n, "remaining", s.store.Len())
	}
	return nil
}

func (s *PlanService) updateChanged(ctx context.Context, plan *schedule.Plan, existing []models.Installment) (int, error) {
	patches := make(map[int]repository.InstallmentPatch)
	for i, inst := range plan.Installments {
		row := existing[i]
		var patch repository.InstallmentPatch
		if row.Value != inst.Value {
			v := inst.Value
			patch.Value = &v
		}
		if !schedule.SameDay(row.DueDate, inst.DueDate) {
			d := schedule.DateOf(inst.DueDate)
			patch.DueDate = &d
		}
		if patch.Value == nil && patch.DueDate == nil {
			continue
		}
		if row.PaymentState == models.PaymentStatePaid {
			return 0, fmt.Errorf("%w: la cuota %d ya está pagada", ErrInvalidState, row.Sequence)
		}
		patches[i] = patch
	}

	changed := 0
	for i := range existing {
		patch, ok := patches[i]
		if !ok {
			continue
		}
		row := existing[i]
		if err := s.repo.UpdateInstallment(ctx, row.ID, patch); err != nil {
			if repository.IsNotFound(err) {
				return changed, ErrNotFound
			}
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (s *PlanService) view(plan *schedule.Plan) *PlanView {
	return &PlanView{
		Plan:         plan,
		Capabilities: schedule.ResolveAll(plan, s.today()),
	}
}

func toRows(plan *schedule.Plan) []models.Installment {
	rows := make([]models.Installment, 0, plan.Count())
	for _, inst := range plan.Installments {
		rows = append(rows, models.Installment{
			ID:           uuid.New().String(),
			AgreementID:  plan.Context.AgreementID,
			PlanID:       plan.ID,
			Product:      plan.Context.Product,
			Sequence:     inst.Sequence,
			Count:        plan.Count(),
			DueDate:      schedule.DateOf(inst.DueDate),
			Value:        inst.Value,
			PaymentState: models.PaymentStateCurrent,
		})
	}
	return rows
}

func upstream(err error) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
