package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-cuotas/internal/models"
)

// Installment events
const (
	EventExpire    = "expire"
	EventSettle    = "settle"
	EventSupersede = "supersede"
)

// InstallmentFSM wraps an installment row with its payment state machine
type InstallmentFSM struct {
	row *models.Installment
	fsm *fsm.FSM
}

// NewInstallmentFSM creates a new installment state machine
func NewInstallmentFSM(row *models.Installment) *InstallmentFSM {
	if row.PaymentState == "" {
		row.PaymentState = models.PaymentStateCurrent
	}

	ifsm := &InstallmentFSM{
		row: row,
	}

	ifsm.fsm = fsm.NewFSM(
		string(row.PaymentState),
		fsm.Events{
			// current → overdue (due date passed with nothing settled)
			{Name: EventExpire, Src: []string{string(models.PaymentStateCurrent)}, Dst: string(models.PaymentStateOverdue)},

			// current/overdue → paid
			{Name: EventSettle, Src: []string{string(models.PaymentStateCurrent), string(models.PaymentStateOverdue)}, Dst: string(models.PaymentStatePaid)},

			// paid/overdue → current (authority reverted the row)
			{Name: EventSupersede, Src: []string{string(models.PaymentStatePaid), string(models.PaymentStateOverdue)}, Dst: string(models.PaymentStateCurrent)},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Expire transitions a current row to overdue
func (i *InstallmentFSM) Expire(ctx context.Context, today time.Time) error {
	if !i.row.MayExpire(today) {
		return fmt.Errorf("installment cannot expire in state %s with due date %s", i.row.PaymentState, i.row.DueDate.Format(time.DateOnly))
	}
	return i.fire(ctx, EventExpire)
}

// Settle transitions the row to paid
func (i *InstallmentFSM) Settle(ctx context.Context) error {
	return i.fire(ctx, EventSettle)
}

// Supersede moves the row back to current
func (i *InstallmentFSM) Supersede(ctx context.Context) error {
	return i.fire(ctx, EventSupersede)
}

// MoveTo drives the row to target through the allowed events. Reaching overdue
// from paid goes through current first.
func (i *InstallmentFSM) MoveTo(ctx context.Context, target models.PaymentState) error {
	if i.row.PaymentState == target {
		return nil
	}
	switch target {
	case models.PaymentStatePaid:
		return i.fire(ctx, EventSettle)
	case models.PaymentStateCurrent:
		return i.fire(ctx, EventSupersede)
	case models.PaymentStateOverdue:
		if i.row.PaymentState == models.PaymentStatePaid {
			if err := i.fire(ctx, EventSupersede); err != nil {
				return err
			}
		}
		return i.fire(ctx, EventExpire)
	default:
		return fmt.Errorf("unknown payment state: %s", target)
	}
}

func (i *InstallmentFSM) fire(ctx context.Context, event string) error {
	if err := i.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s installment %s: %w", event, i.row.ID, err)
	}

	i.row.PaymentState = models.PaymentState(i.fsm.Current())
	return nil
}

// Current returns the current state
func (i *InstallmentFSM) Current() string {
	return i.fsm.Current()
}

// Can checks if a transition is possible
func (i *InstallmentFSM) Can(event string) bool {
	return i.fsm.Can(event)
}
