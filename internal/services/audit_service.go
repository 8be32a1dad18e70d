package services

import (
	"context"
	"encoding/json"

	"github.com/sjperalta/fintera-cuotas/internal/models"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry. Failures are logged and never block the audited action.
func (s *AuditService) Log(ctx context.Context, meta models.AuditMeta, action, entity, entityID string, details any) {
	var text string
	switch d := details.(type) {
	case nil:
	case string:
		text = d
	default:
		raw, err := json.Marshal(d)
		if err == nil {
			text = string(raw)
		}
	}

	actor := meta.Actor
	if actor == "" {
		actor = models.SystemAudit.Actor
	}

	entry := &models.AuditLog{
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   text,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("Failed to write audit log", "action", action, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, entityID string, limit, offset int) ([]models.AuditLog, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, entityID, limit, offset)
}
