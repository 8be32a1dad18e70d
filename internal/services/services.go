package services

import (
	"github.com/sjperalta/fintera-cuotas/internal/config"
	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/jobs"
	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
)

// Services holds all service instances
type Services struct {
	Plan           *PlanService
	Reconciliation *ReconciliationService
	Audit          *AuditService
	Export         *ExportService
	Job            *JobService
	Catalog        integrations.Catalog
}

// Dependencies groups the external collaborators of the services
type Dependencies struct {
	Catalog   integrations.Catalog
	Ledger    reconciliation.Ledger
	Authority reconciliation.Authority
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, deps Dependencies, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos.Audit)

	orchestrator := reconciliation.NewOrchestrator(deps.Authority)
	orchestrator.Tolerance = cfg.ReconcileTolerance
	orchestrator.MaxAttempts = cfg.ResolveMaxAttempts
	orchestrator.BaseDelay = cfg.ResolveBaseDelay
	orchestrator.Workers = cfg.ReconcileWorkers

	reconSvc := NewReconciliationService(repos.Installment, deps.Ledger, orchestrator, auditSvc, cfg.ReconcileTimeout, cfg.Today)
	store := NewPlanStore(cfg.PlanTTL)

	return &Services{
		Plan:           NewPlanService(store, deps.Catalog, repos.Installment, reconSvc, auditSvc, worker, cfg.Today),
		Reconciliation: reconSvc,
		Audit:          auditSvc,
		Export:         NewExportService(),
		Job:            NewJobService(worker, reconSvc, store),
		Catalog:        deps.Catalog,
	}
}
