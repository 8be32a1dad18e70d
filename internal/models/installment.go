package models

import (
	"strings"
	"time"
)

// PaymentState is derived by reconciliation and the overdue sweep, never set by users
type PaymentState string

// Payment state constants
const (
	PaymentStateCurrent PaymentState = "current"
	PaymentStateOverdue PaymentState = "overdue"
	PaymentStatePaid    PaymentState = "paid"
)

// Resolution tracks how the last reconciliation pass ended for a row
type Resolution string

// Resolution constants
const (
	ResolutionNone       Resolution = ""
	ResolutionResolved   Resolution = "resolved"
	ResolutionPending    Resolution = "pending"
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionTimedOut   Resolution = "timed_out"
)

// Installment is one persisted cuota of an agreement. Its ID is the installment
// reference used with the settlement authority.
type Installment struct {
	ID              string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AgreementID     string       `gorm:"not null;uniqueIndex:idx_agreement_sequence,priority:1" json:"agreement_id"`
	PlanID          string       `gorm:"index" json:"plan_id"`
	Product         string       `gorm:"not null" json:"product"`
	Sequence        int          `gorm:"not null;uniqueIndex:idx_agreement_sequence,priority:2" json:"sequence"`
	Count           int          `gorm:"not null" json:"count"`
	DueDate         time.Time    `gorm:"type:date;not null;index" json:"due_date"`
	Value           int64        `gorm:"not null" json:"value"`
	PaymentState    PaymentState `gorm:"type:varchar(16);default:current;not null;index" json:"payment_state"`
	SettlementState string       `gorm:"type:varchar(32)" json:"settlement_state"`
	SettledDate     *time.Time   `gorm:"type:date" json:"settled_date"`
	SettledAmount   int64        `gorm:"default:0" json:"settled_amount"`
	PendingRefs     string       `gorm:"type:text" json:"-"` // Comma separated external references awaiting confirmation
	Resolution      Resolution   `gorm:"type:varchar(16)" json:"resolution"`
	Attempts        int          `gorm:"default:0" json:"attempts"`
	LastError       *string      `gorm:"type:text" json:"last_error,omitempty"`
	ReconciledAt    *time.Time   `json:"reconciled_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName specifies the table name for Installment
func (Installment) TableName() string {
	return "agreement_installments"
}

// Refs returns the outstanding external references
func (i *Installment) Refs() []string {
	if strings.TrimSpace(i.PendingRefs) == "" {
		return nil
	}
	var refs []string
	for _, r := range strings.Split(i.PendingRefs, ",") {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// SetRefs replaces the outstanding external references
func (i *Installment) SetRefs(refs []string) {
	i.PendingRefs = strings.Join(refs, ",")
}

// IsResolved is true once nothing external awaits confirmation or the authority
// already gave the row a state.
func (i *Installment) IsResolved() bool {
	return len(i.Refs()) == 0 || i.SettlementState != ""
}

// IsLast returns true for the closing installment of the agreement
func (i *Installment) IsLast() bool {
	return i.Sequence == i.Count
}

// MayExpire returns true if the row can be promoted to overdue on the given day
func (i *Installment) MayExpire(today time.Time) bool {
	return i.PaymentState == PaymentStateCurrent && i.DueDate.Before(today)
}

// OverdueDays returns the number of whole days past due for overdue rows
func (i *Installment) OverdueDays(today time.Time) int {
	if i.PaymentState != PaymentStateOverdue || !i.DueDate.Before(today) {
		return 0
	}
	return int(today.Sub(i.DueDate).Hours() / 24)
}

// InstallmentResponse is the JSON response format for installments
type InstallmentResponse struct {
	ID              string       `json:"id"`
	AgreementID     string       `json:"agreement_id"`
	Label           string       `json:"label"`
	Sequence        int          `json:"sequence"`
	Count           int          `json:"count"`
	DueDate         string       `json:"due_date"`
	Value           int64        `json:"value"`
	PaymentState    PaymentState `json:"payment_state"`
	SettlementState string       `json:"settlement_state,omitempty"`
	SettledDate     *string      `json:"settled_date"`
	SettledAmount   int64        `json:"settled_amount"`
	Resolution      Resolution   `json:"resolution"`
	OverdueDays     int          `json:"overdue_days"`
	HasPendingRefs  bool         `json:"has_pending_refs"`
	LastError       *string      `json:"last_error,omitempty"`
}

// ToResponse converts Installment to InstallmentResponse
func (i *Installment) ToResponse(today time.Time) InstallmentResponse {
	resp := InstallmentResponse{
		ID:              i.ID,
		AgreementID:     i.AgreementID,
		Label:           InstallmentLabel(i.Product, i.Sequence),
		Sequence:        i.Sequence,
		Count:           i.Count,
		DueDate:         i.DueDate.Format(time.DateOnly),
		Value:           i.Value,
		PaymentState:    i.PaymentState,
		SettlementState: i.SettlementState,
		SettledAmount:   i.SettledAmount,
		Resolution:      i.Resolution,
		OverdueDays:     i.OverdueDays(today),
		HasPendingRefs:  len(i.Refs()) > 0,
		LastError:       i.LastError,
	}
	if i.SettledDate != nil {
		s := i.SettledDate.Format(time.DateOnly)
		resp.SettledDate = &s
	}
	return resp
}
