package services

import (
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/jobs"
)

type JobService struct {
	worker *jobs.Worker
	recon  *ReconciliationService
	plans  *PlanStore
}

func NewJobService(worker *jobs.Worker, recon *ReconciliationService, plans *PlanStore) *JobService {
	return &JobService{
		worker: worker,
		recon:  recon,
		plans:  plans,
	}
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()

	lastRuns := make(map[string]interface{}, len(stats.LastRuns))
	for name, run := range stats.LastRuns {
		entry := map[string]interface{}{
			"started_at":  run.StartedAt.Format(time.RFC3339),
			"duration_ms": run.Duration.Milliseconds(),
		}
		if run.Error != "" {
			entry["error"] = run.Error
		}
		lastRuns[name] = entry
	}

	status := map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"max_concurrent": stats.MaxConcurrent,
		"last_runs":      lastRuns,
	}
	if s.recon != nil {
		status["reconciliations_in_flight"] = s.recon.InFlight()
	}
	if s.plans != nil {
		status["open_plans"] = s.plans.Len()
	}
	return status
}
