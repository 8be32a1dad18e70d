package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sjperalta/fintera-cuotas/internal/models"

	"gorm.io/gorm"
)

// ErrAgreementHasSchedule is returned when an agreement already has persisted installments
var ErrAgreementHasSchedule = errors.New("agreement already has installments")

const agreementSequenceIndex = "idx_agreement_sequence"

// InstallmentPatch carries the user-editable fields of a persisted installment
type InstallmentPatch struct {
	Value   *int64
	DueDate *time.Time
}

// InstallmentRepository defines the interface for installment data access
type InstallmentRepository interface {
	CreateAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error
	ReplaceAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error
	UpdateInstallment(ctx context.Context, ref string, patch InstallmentPatch) error
	FindByAgreement(ctx context.Context, agreementID string) ([]models.Installment, error)
	FindByID(ctx context.Context, ref string) (*models.Installment, error)
	SaveReconciled(ctx context.Context, rows []models.Installment) error
	FindCurrentPastDue(ctx context.Context, today time.Time, limit int) ([]models.Installment, error)
	MarkOverdue(ctx context.Context, refs []string) (int64, error)
	CountByState(ctx context.Context) (map[models.PaymentState]int64, error)
}

// installmentRepository handles database operations for installments
type installmentRepository struct {
	db *gorm.DB
}

// NewInstallmentRepository creates a new installment repository
func NewInstallmentRepository(db *gorm.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

// CreateAgreementInstallments persists the first schedule of an agreement
func (r *installmentRepository) CreateAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error {
	for i := range rows {
		rows[i].AgreementID = agreementID
	}
	err := r.db.WithContext(ctx).Create(&rows).Error
	if isUniqueViolation(err, agreementSequenceIndex) {
		return ErrAgreementHasSchedule
	}
	return err
}

// ReplaceAgreementInstallments swaps the whole schedule of an agreement in one transaction
func (r *installmentRepository) ReplaceAgreementInstallments(ctx context.Context, agreementID string, rows []models.Installment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("agreement_id = ?", agreementID).Delete(&models.Installment{}).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].AgreementID = agreementID
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// UpdateInstallment applies a value and/or due date change to one installment
func (r *installmentRepository) UpdateInstallment(ctx context.Context, ref string, patch InstallmentPatch) error {
	updates := map[string]interface{}{}
	if patch.Value != nil {
		updates["value"] = *patch.Value
	}
	if patch.DueDate != nil {
		updates["due_date"] = *patch.DueDate
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ?", ref).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByAgreement retrieves the installments of an agreement in sequence order
func (r *installmentRepository) FindByAgreement(ctx context.Context, agreementID string) ([]models.Installment, error) {
	var rows []models.Installment
	err := r.db.WithContext(ctx).
		Where("agreement_id = ?", agreementID).
		Order("sequence ASC").
		Find(&rows).Error
	return rows, err
}

// FindByID retrieves an installment by its reference
func (r *installmentRepository) FindByID(ctx context.Context, ref string) (*models.Installment, error) {
	var row models.Installment
	err := r.db.WithContext(ctx).First(&row, "id = ?", ref).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveReconciled writes back the reconciliation columns of each row
func (r *installmentRepository) SaveReconciled(ctx context.Context, rows []models.Installment) error {
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			err := tx.Model(&models.Installment{}).
				Where("id = ?", row.ID).
				Select("payment_state", "settlement_state", "settled_date", "settled_amount",
					"pending_refs", "resolution", "attempts", "last_error", "reconciled_at").
				Updates(&row).Error
			if err != nil {
				return fmt.Errorf("save installment %s: %w", row.ID, err)
			}
		}
		return nil
	})
}

// FindCurrentPastDue retrieves current installments due strictly before today
func (r *installmentRepository) FindCurrentPastDue(ctx context.Context, today time.Time, limit int) ([]models.Installment, error) {
	var rows []models.Installment
	query := r.db.WithContext(ctx).
		Where("payment_state = ? AND due_date < ?", models.PaymentStateCurrent, today).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// MarkOverdue promotes the given current installments to overdue. Rows that
// changed state in the meantime are skipped.
func (r *installmentRepository) MarkOverdue(ctx context.Context, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id IN ? AND payment_state = ?", refs, models.PaymentStateCurrent).
		Update("payment_state", models.PaymentStateOverdue)
	return result.RowsAffected, result.Error
}

// CountByState counts installments per payment state
func (r *installmentRepository) CountByState(ctx context.Context) (map[models.PaymentState]int64, error) {
	var results []struct {
		PaymentState models.PaymentState
		Count        int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Select("payment_state, COUNT(*) as count").
		Group("payment_state").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.PaymentState]int64, len(results))
	for _, r := range results {
		counts[r.PaymentState] = r.Count
	}
	return counts, nil
}

func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraintName
	}
	return false
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
