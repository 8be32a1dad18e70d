package handlers

import (
	"github.com/sjperalta/fintera-cuotas/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health      *HealthHandler
	Plan        *PlanHandler
	Installment *InstallmentHandler
	Audit       *AuditHandler
	Job         *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, checks map[string]HealthCheck) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(checks),
		Plan:        NewPlanHandler(svcs.Plan),
		Installment: NewInstallmentHandler(svcs.Reconciliation, svcs.Export),
		Audit:       NewAuditHandler(svcs.Audit),
		Job:         NewJobHandler(svcs.Job),
	}
}
