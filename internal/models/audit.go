package models

import (
	"time"
)

// Audit actions
const (
	AuditActionCommit    = "COMMIT"
	AuditActionReconcile = "RECONCILE"
	AuditActionSweep     = "SWEEP"
	AuditActionExport    = "EXPORT"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     string    `gorm:"size:100;not null;index" json:"actor"` // JWT subject or "system"
	Action    string    `gorm:"size:50;not null" json:"action"`
	Entity    string    `gorm:"size:50;not null" json:"entity"` // Agreement, Plan
	EntityID  string    `gorm:"size:64;index" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditMeta carries the request origin of an audited action
type AuditMeta struct {
	Actor     string
	IPAddress string
	UserAgent string
}

// SystemAudit is the origin of scheduled and CLI actions
var SystemAudit = AuditMeta{Actor: "system"}
