package settlement

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/apperr"
	"github.com/kareemadel/mustaqill_be/internal/models"
)

type SettlementService struct {
	DB *gorm.DB
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{DB: db}
}

// SettleAcceptance records the money-equivalent events of a bid acceptance:
// one pending project_payment transaction for the freelancer commission and,
// when the project carries a referral code, one pending affiliate_commission
// transaction. Must be called inside the same DB transaction that flipped
// the project to in_progress; the unique (project_id, type) index keeps
// duplicate triggers from double-crediting.
func (s *SettlementService) SettleAcceptance(tx *gorm.DB, project *models.Project, bid *models.Bid) error {
	payment := models.Transaction{
		ProjectID:   &project.ID,
		BidID:       &bid.ID,
		UserID:      bid.FreelancerID,
		Amount:      bid.FreelancerCommission,
		Type:        models.TransactionTypeProjectPayment,
		Status:      models.TransactionStatusPending,
		Description: fmt.Sprintf("Freelancer commission for project %q", project.Title),
	}
	if err := tx.Create(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Already settled for this project.
			return nil
		}
		return apperr.Wrap(apperr.External, "create payment transaction", err)
	}

	if project.ReferralCode != "" {
		if err := s.settleReferral(tx, project); err != nil {
			return err
		}
	}
	return nil
}

// settleReferral credits the affiliate whose code is attached to the project:
// round(budget_min * 10%, cents). Unknown or inactive codes are skipped, the
// same soft-fail as attribution.
func (s *SettlementService) settleReferral(tx *gorm.DB, project *models.Project) error {
	var aff models.Affiliate
	err := tx.Where("referral_code = ? AND is_active = ?", project.ReferralCode, true).
		First(&aff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.External, "lookup affiliate", err)
	}

	commission := models.PercentOf(project.BudgetMin, models.AffiliateCommissionPct)

	ledger := models.Transaction{
		ProjectID:        &project.ID,
		AffiliateID:      &aff.ID,
		UserID:           aff.UserID,
		Amount:           commission,
		CommissionAmount: &commission,
		Type:             models.TransactionTypeAffiliateCommission,
		Status:           models.TransactionStatusPending,
		Description:      fmt.Sprintf("Referral commission for project %q", project.Title),
	}
	if err := tx.Create(&ledger).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return apperr.Wrap(apperr.External, "create commission transaction", err)
	}

	// Complete the referral row for this client, if attribution created one.
	if err := tx.Model(&models.Referral{}).
		Where("affiliate_id = ? AND referred_user_id = ? AND status = ?",
			aff.ID, project.ClientID, models.ReferralStatusPending).
		Updates(map[string]any{
			"status":            models.ReferralStatusCompleted,
			"project_id":        project.ID,
			"commission_amount": commission,
		}).Error; err != nil {
		return apperr.Wrap(apperr.External, "complete referral", err)
	}

	// Counter moves only together with the ledger row above.
	if err := tx.Model(&models.Affiliate{}).
		Where("id = ?", aff.ID).
		UpdateColumn("total_referrals", gorm.Expr("total_referrals + 1")).Error; err != nil {
		return apperr.Wrap(apperr.External, "bump referral counter", err)
	}
	return nil
}

// MarkTransactionStatus drives the pending -> completed|failed transition.
// Completing an affiliate commission also moves the earnings cache and the
// referral row to paid, in the same DB transaction as the ledger update.
func (s *SettlementService) MarkTransactionStatus(txID uuid.UUID, status models.TransactionStatus) (*models.Transaction, error) {
	if status != models.TransactionStatusCompleted && status != models.TransactionStatusFailed {
		return nil, apperr.New(apperr.Validation, "status must be completed or failed")
	}

	var out models.Transaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", txID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "transaction not found")
			}
			return err
		}

		// Only pending rows move; re-running a disbursement is a no-op conflict.
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txID, models.TransactionStatusPending).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.Conflict, "transaction is not pending")
		}
		out.Status = status

		if status == models.TransactionStatusCompleted &&
			out.Type == models.TransactionTypeAffiliateCommission &&
			out.AffiliateID != nil {
			if err := tx.Model(&models.Affiliate{}).
				Where("id = ?", *out.AffiliateID).
				UpdateColumn("total_earnings", gorm.Expr("total_earnings + ?", out.Amount)).Error; err != nil {
				return err
			}
			if out.ProjectID != nil {
				if err := tx.Model(&models.Referral{}).
					Where("affiliate_id = ? AND project_id = ?", *out.AffiliateID, *out.ProjectID).
					Update("status", models.ReferralStatusPaid).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, apperr.Wrap(apperr.External, "update transaction", err)
	}
	return &out, nil
}

// ListForUser returns every transaction the user is a party to: payee
// (freelancer or affiliate commission) or payer (owner of the project the
// row is booked against).
func (s *SettlementService) ListForUser(userID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.DB.
		Joins("LEFT JOIN projects ON projects.id = transactions.project_id").
		Where("transactions.user_id = ? OR projects.client_id = ?", userID, userID).
		Preload("Project").
		Order("transactions.created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.External, "list transactions", err)
	}
	return txs, nil
}

type Summary struct {
	TotalEarnings         int64 `json:"total_earnings"`
	TotalSpent            int64 `json:"total_spent"`
	PendingAmount         int64 `json:"pending_amount"`
	CompletedTransactions int   `json:"completed_transactions"`
}

// Summarize recomputes the aggregate view from the ledger on every call.
// No stored total is authoritative; this is the reconciliation source.
func (s *SettlementService) Summarize(userID uuid.UUID) (Summary, error) {
	txs, err := s.ListForUser(userID)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, t := range txs {
		payee := t.UserID == userID
		payer := t.Project != nil && t.Project.ClientID == userID

		switch t.Status {
		case models.TransactionStatusCompleted:
			sum.CompletedTransactions++
			if payee {
				sum.TotalEarnings += t.Amount
			}
			if payer {
				sum.TotalSpent += t.Amount
			}
		case models.TransactionStatusPending:
			if payee {
				sum.PendingAmount += t.Amount
			}
		}
	}
	return sum, nil
}

// AffiliateEarnings recomputes an affiliate's settled earnings from the
// ledger. Affiliate.total_earnings must always reconcile with this sum.
func (s *SettlementService) AffiliateEarnings(affiliateID uuid.UUID) (completed int64, pending int64, err error) {
	type row struct {
		Status models.TransactionStatus
		Total  int64
	}
	var rows []row
	err = s.DB.Model(&models.Transaction{}).
		Select("status, COALESCE(SUM(amount), 0) AS total").
		Where("affiliate_id = ? AND type = ?", affiliateID, models.TransactionTypeAffiliateCommission).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, apperr.Wrap(apperr.External, "sum affiliate earnings", err)
	}
	for _, r := range rows {
		switch r.Status {
		case models.TransactionStatusCompleted:
			completed = r.Total
		case models.TransactionStatusPending:
			pending = r.Total
		}
	}
	return completed, pending, nil
}
